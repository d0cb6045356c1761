package metrics

import (
	"net/http"
	"strconv"
	"time"

	"kmc/guildbook/account"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "guildbook"

// LockWaitBuckets cover everything from an uncontended lock up to the
// default lock timeout.
var LockWaitBuckets = []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30}

// Metrics is safe to use as a nil pointer; every observation is then dropped.
type Metrics struct {
	gatherer prometheus.Gatherer

	ProvisionTotal *prometheus.CounterVec
	LockWait       prometheus.Histogram
	RequestsTotal  *prometheus.CounterVec
}

// New registers the collectors with reg.
func New(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		gatherer: reg,

		ProvisionTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provision_total",
				Help:      "Account provisioning attempts by outcome",
			},
			[]string{"result"},
		),

		LockWait: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "provision_lock_wait_seconds",
				Help:      "Time spent waiting for the identifier allocation lock",
				Buckets:   LockWaitBuckets,
			},
		),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by route pattern, method and status code",
			},
			[]string{"route", "method", "status_code"},
		),
	}
}

// ObserveResult counts one provisioning attempt that ended with err.
func (m *Metrics) ObserveResult(err error) {
	if m == nil {
		return
	}
	m.ProvisionTotal.WithLabelValues(string(account.OutcomeOf(err))).Inc()
}

func (m *Metrics) ObserveLockWait(d time.Duration) {
	if m == nil {
		return
	}
	m.LockWait.Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Middleware counts requests by their chi route pattern so that paths with
// user names in them do not explode the label space.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.RequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
	})
}
