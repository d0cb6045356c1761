package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"path/filepath"
	"time"

	"kmc/guildbook/account"
	"kmc/guildbook/assets"
	"kmc/guildbook/audit"
	"kmc/guildbook/directory"
	"kmc/guildbook/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mordilloSan/go-logger/logger"
)

//go:embed templates/*.html
var templateFS embed.FS

// AccountProvisioner creates accounts from form submissions.
type AccountProvisioner interface {
	Provision(ctx context.Context, req account.NewAccountRequest) (*account.Entry, error)
}

// UserReader loads existing accounts for display.
type UserReader interface {
	GetUser(ctx context.Context, uid string) (*directory.User, error)
}

// AccountHistory lists recently provisioned accounts.
type AccountHistory interface {
	Recent(ctx context.Context, limit int) ([]audit.AccountRecord, error)
}

type Options struct {
	Addr             string
	RemoteUserHeader string
	// PublicDir holds the bundler output; PublicDir/assets is served under /assets/.
	PublicDir string
	Manifest  *assets.Manifest
	Metrics   *metrics.Metrics
	// History enables /!api/accounts when set.
	History AccountHistory
}

// Server handles HTTP requests for the web interface.
type Server struct {
	provisioner AccountProvisioner
	users       UserReader
	history     AccountHistory
	manifest    *assets.Manifest
	metrics     *metrics.Metrics
	pages       map[string]*template.Template
	router      chi.Router
	opts        Options
}

// NewServer creates a new web server instance.
func NewServer(provisioner AccountProvisioner, users UserReader, opts Options) (*Server, error) {
	if opts.RemoteUserHeader == "" {
		opts.RemoteUserHeader = "X-Remote-User"
	}

	pages, err := parsePages("adduser.html", "user.html")
	if err != nil {
		return nil, err
	}

	s := &Server{
		provisioner: provisioner,
		users:       users,
		history:     opts.History,
		manifest:    opts.Manifest,
		metrics:     opts.Metrics,
		pages:       pages,
		router:      chi.NewRouter(),
		opts:        opts,
	}
	s.registerRoutes()
	return s, nil
}

func parsePages(names ...string) (map[string]*template.Template, error) {
	pages := make(map[string]*template.Template, len(names))
	for _, name := range names {
		tmpl, err := template.ParseFS(templateFS, "templates/layout.html", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		pages[name] = tmpl
	}
	return pages, nil
}

// registerRoutes sets up all HTTP routes. Everything that is not an account
// page lives under a "!" prefix, which valid uids cannot start with.
func (s *Server) registerRoutes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.metrics.Middleware)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(remoteUser(s.opts.RemoteUserHeader))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/!adduser", http.StatusFound)
	})
	r.Get("/!adduser", s.handleAddUserForm)
	r.Post("/!adduser", s.handleAddUser)
	r.Get("/!healthz", s.handleHealth)
	r.Handle("/!metrics", s.metrics.Handler())
	if s.history != nil {
		r.Get("/!api/accounts", s.handleListAccounts)
	}

	if s.opts.PublicDir != "" {
		r.Handle("/assets/*", http.StripPrefix("/assets", assets.FileServer(filepath.Join(s.opts.PublicDir, "assets"))))
	}

	r.Get("/{uid}", s.handleShowUser)
}

// Start listens on the configured address until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("starting web server on %s", s.opts.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Infof("shutting down web server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Handler returns the HTTP handler for use with custom servers.
func (s *Server) Handler() http.Handler {
	return s.router
}
