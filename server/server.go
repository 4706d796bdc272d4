// Package server provides the web front-end of the activity sign-up client.
//
// The server renders the shared sign-up page from in-memory view surfaces and
// turns form posts into ActivityClient submissions. Every browser sees the
// same page state, as on a kiosk.
//
// # Endpoints
//
//   - GET / - Sign-up page
//   - POST /signup - Sign-up form submission
//   - POST /deregister - Deregister form submission
//   - GET /health - Liveness check, returns "ok"
//   - GET /ready - 503 while the activity list shows a load failure
//   - GET /metrics - Prometheus metrics, when a registry is configured
//   - GET /api/view - Page state as JSON
//   - GET /api/diagnostics - Captured log entries, when a collector is configured
//   - GET /api/properties - Build and runtime metadata
//   - POST /api/refresh - Reload the activity catalog
//
// Form posts require a CSRF token and are rate limited per client IP.
//
// # Example
//
//	page := view.NewPage(nil)
//	ctrl, err := controller.New(api, page.Surfaces())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	srv, err := server.New(ctrl, page, logger, server.WithRefresh("@every 1m"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package server

import (
	"context"
	"crypto/rand"
	"crypto/tls"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/csrf"

	"github.com/nomis52/signup/auth"
	"github.com/nomis52/signup/buildinfo"
	"github.com/nomis52/signup/controller"
	"github.com/nomis52/signup/logging"
	"github.com/nomis52/signup/metrics"
	"github.com/nomis52/signup/refresh"
	"github.com/nomis52/signup/server/handlers"
	"github.com/nomis52/signup/server/types"
	"github.com/nomis52/signup/view"
)

const (
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 30 * time.Second
	defaultShutdownTimeout = 5 * time.Second
	defaultListenAddr      = ":8080"

	csrfKeyLen = 32
)

// Controller is the part of controller.ActivityClient the server drives.
type Controller interface {
	LoadActivities(ctx context.Context) error
	SubmitSignup(ctx context.Context, activity, email string) error
	SubmitDeregister(ctx context.Context, activity, email string) error
}

var _ Controller = (*controller.ActivityClient)(nil)

// Server is the HTTP server for the sign-up web interface.
type Server struct {
	addr      string
	logger    *slog.Logger
	ctrl      Controller
	page      *view.Page
	tmpl      *template.Template
	startedAt time.Time
	hostname  string
	apiURL    string

	trigger        *refresh.Trigger
	authenticator  *auth.Authenticator
	limiter        *rateLimiter
	csrfKey        []byte
	secureCookies  bool
	trustedOrigins []string
	certFile       string
	keyFile        string
	registry       *metrics.ScrapeRegistry
	reqMetrics     *requestMetrics
	collector      *logging.LogCollector

	httpServer *http.Server
}

// Option configures a Server.
type Option func(*Server) error

// WithListenAddr configures the address the server listens on.
// Default is ":8080".
func WithListenAddr(addr string) Option {
	return func(s *Server) error {
		s.addr = addr
		return nil
	}
}

// WithRefresh reloads the catalog on a cron schedule.
// The spec follows standard cron format (5 fields) or a descriptor such as "@every 1m".
func WithRefresh(spec string) Option {
	return func(s *Server) error {
		trigger, err := refresh.NewTrigger(spec, s.ctrl, s.logger)
		if err != nil {
			return fmt.Errorf("creating refresh trigger: %w", err)
		}
		s.trigger = trigger
		return nil
	}
}

// WithAuthenticator requires HTTP Basic authentication on every endpoint
// except /health.
func WithAuthenticator(a *auth.Authenticator) Option {
	return func(s *Server) error {
		s.authenticator = a
		return nil
	}
}

// WithRateLimit limits each client IP to perSecond form submissions, with bursts
// of up to burst. A non-positive rate disables limiting.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(s *Server) error {
		if perSecond <= 0 {
			s.limiter = nil
			return nil
		}
		s.limiter = newRateLimiter(perSecond, burst, s.logger)
		return nil
	}
}

// WithCSRFKey sets the 32 byte key used to sign CSRF tokens. Without it a
// random key is generated, so tokens do not survive a restart.
func WithCSRFKey(key []byte) Option {
	return func(s *Server) error {
		if len(key) != csrfKeyLen {
			return fmt.Errorf("csrf key must be %d bytes, got %d", csrfKeyLen, len(key))
		}
		s.csrfKey = key
		return nil
	}
}

// WithInsecureCookies allows the CSRF cookie to be sent over plain HTTP.
func WithInsecureCookies() Option {
	return func(s *Server) error {
		s.secureCookies = false
		return nil
	}
}

// WithTrustedOrigins lists extra origins (host[:port]) allowed to post forms,
// e.g. when behind a reverse proxy.
func WithTrustedOrigins(origins ...string) Option {
	return func(s *Server) error {
		s.trustedOrigins = append(s.trustedOrigins, origins...)
		return nil
	}
}

// WithTLS serves HTTPS using the given certificate and key files. The files
// are re-read when they change.
func WithTLS(certFile, keyFile string) Option {
	return func(s *Server) error {
		if certFile == "" || keyFile == "" {
			return errors.New("both a certificate and a key file are required")
		}
		s.certFile = certFile
		s.keyFile = keyFile
		return nil
	}
}

// WithMetrics exposes reg on /metrics and records request counts in it.
func WithMetrics(reg *metrics.ScrapeRegistry) Option {
	return func(s *Server) error {
		rm, err := newRequestMetrics(reg)
		if err != nil {
			return fmt.Errorf("registering request metrics: %w", err)
		}
		s.registry = reg
		s.reqMetrics = rm
		return nil
	}
}

// WithLogCollector exposes the collector's entries on /api/diagnostics.
func WithLogCollector(c *logging.LogCollector) Option {
	return func(s *Server) error {
		s.collector = c
		return nil
	}
}

// WithAPIURL records the activities API URL reported by /api/properties.
func WithAPIURL(url string) Option {
	return func(s *Server) error {
		s.apiURL = url
		return nil
	}
}

// New creates a new Server for the controller rendering into page.
func New(ctrl Controller, page *view.Page, logger *slog.Logger, opts ...Option) (*Server, error) {
	if ctrl == nil || page == nil {
		return nil, errors.New("controller and page are required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	tmpl, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	s := &Server{
		addr:          defaultListenAddr,
		logger:        logger,
		ctrl:          ctrl,
		page:          page,
		tmpl:          tmpl,
		startedAt:     time.Now(),
		hostname:      hostname,
		secureCookies: true,
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	if s.csrfKey == nil {
		s.csrfKey = make([]byte, csrfKeyLen)
		if _, err := rand.Read(s.csrfKey); err != nil {
			return nil, fmt.Errorf("generating csrf key: %w", err)
		}
	}

	return s, nil
}

// Properties implements handlers.PropertiesProvider.
func (s *Server) Properties() types.ServerProperties {
	props := types.ServerProperties{
		Build:     buildinfo.Get(),
		StartedAt: s.startedAt,
		Hostname:  s.hostname,
		APIURL:    s.apiURL,
	}
	if s.trigger != nil {
		next := s.trigger.NextRun()
		props.Refresh = s.trigger.Spec()
		props.NextRun = &next
	}
	return props
}

// Handler returns the server's routes wrapped in its middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerRoutes(mux)

	var authenticate middleware
	if s.authenticator != nil {
		authenticate = s.requireAuth
	}

	return chain(mux,
		securityHeaders,
		authenticate,
		csrfProtection(s.csrfKey, s.secureCookies, s.trustedOrigins, s.logger),
	)
}

// requireAuth leaves /health open for load balancers.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	protected := s.authenticator.Middleware(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		protected.ServeHTTP(w, r)
	})
}

func (s *Server) handle(mux *http.ServeMux, pattern string, h http.Handler, mws ...middleware) {
	mux.Handle(pattern, s.reqMetrics.wrap(pattern, chain(h, mws...)))
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	var limit middleware
	if s.limiter != nil {
		limit = s.limiter.middleware
	}

	pageHandler := handlers.NewPageHandler(s.logger, s.tmpl, s.page, csrf.TemplateField)
	signupHandler := handlers.NewSubmitHandler(s.logger, "signup", s.page.Signup(), s.ctrl.SubmitSignup)
	deregisterHandler := handlers.NewSubmitHandler(s.logger, "deregister", s.page.Deregister(), s.ctrl.SubmitDeregister)

	s.handle(mux, "GET /{$}", pageHandler)
	s.handle(mux, "POST /signup", signupHandler, limit)
	s.handle(mux, "POST /deregister", deregisterHandler, limit)

	s.handle(mux, "GET /health", http.HandlerFunc(handlers.HandleHealth))
	s.handle(mux, "GET /ready", handlers.NewReadyHandler(s.page))
	s.handle(mux, "GET /api/view", handlers.NewViewHandler(s.page))
	s.handle(mux, "GET /api/properties", handlers.NewPropertiesHandler(s))
	s.handle(mux, "POST /api/refresh", handlers.NewRefreshHandler(s.logger, s.ctrl), limit)

	if s.collector != nil {
		s.handle(mux, "GET /api/diagnostics", handlers.NewDiagnosticsHandler(s.collector))
	}
	if s.registry != nil {
		s.handle(mux, "GET /metrics", s.registry.Handler())
	}

	staticFS, err := fs.Sub(assets, "static")
	if err != nil {
		s.logger.Error("failed to create static file system", "error", err)
		return
	}
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))
}

// Run loads the catalog, starts the HTTP server and blocks until the context
// is cancelled. It performs a graceful shutdown when the context is done.
// If a refresh schedule is configured it is started too.
func (s *Server) Run(ctx context.Context) error {
	if err := s.ctrl.LoadActivities(ctx); err != nil {
		// The page shows the failure; a refresh or the next submission retries.
		s.logger.Warn("initial activity load failed", "error", err)
	}

	s.httpServer = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
		ErrorLog:     slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}

	if s.certFile != "" {
		loader, err := NewCertLoader(s.certFile, s.keyFile, s.logger)
		if err != nil {
			return err
		}
		s.httpServer.TLSConfig = &tls.Config{
			MinVersion:     tls.VersionTLS12,
			GetCertificate: loader.GetCertificate,
		}
	}

	if s.trigger != nil {
		s.logger.Info("starting refresh trigger",
			"schedule", s.trigger.Spec(),
			"next_run", s.trigger.NextRun(),
		)
		s.trigger.Start(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server",
			"addr", s.addr,
			"tls", s.certFile != "",
			"version", buildinfo.Get().Version,
		)
		var err error
		if s.certFile != "" {
			// Certificates come from TLSConfig.GetCertificate.
			err = s.httpServer.ListenAndServeTLS("", "")
		} else {
			err = s.httpServer.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}
