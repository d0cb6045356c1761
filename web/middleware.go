package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/mordilloSan/go-logger/logger"
)

type contextKey string

const operatorKey contextKey = "operator"

// remoteUser records who is operating the form. The front proxy passes the
// authenticated user in header; basic auth is the fallback.
func remoteUser(header string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			operator := r.Header.Get(header)
			if operator == "" {
				operator, _, _ = r.BasicAuth()
			}
			ctx := context.WithValue(r.Context(), operatorKey, operator)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func operatorFromContext(ctx context.Context) string {
	operator, _ := ctx.Value(operatorKey).(string)
	return operator
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logger.DebugKV("request served",
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start).String())
	})
}
