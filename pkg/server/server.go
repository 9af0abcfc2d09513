// Package server serves the review preview page and the same-origin image
// proxy over HTTP. The export pipeline points its browser at this server,
// so proxied images share the page's origin.
package server

import (
	"bytes"
	"context"
	stderrors "errors"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/matzehuels/reviewcraft/pkg/errors"
	"github.com/matzehuels/reviewcraft/pkg/observability"
	"github.com/matzehuels/reviewcraft/pkg/proxy"
	"github.com/matzehuels/reviewcraft/pkg/review"
)

// DefaultAddr binds an ephemeral loopback port.
const DefaultAddr = "127.0.0.1:0"

// Config configures a Server.
type Config struct {
	Addr   string
	Review *review.Review

	// Proxy serves /api/image-proxy. Nil uses a proxy with default settings.
	Proxy http.Handler

	// TrustForwarded takes the client address from X-Forwarded-For and
	// X-Real-IP. Only set it behind a proxy that overwrites those headers.
	TrustForwarded bool

	// Metrics records request metrics; Gatherer backs /metrics. Either may
	// be nil.
	Metrics  *observability.Metrics
	Gatherer prometheus.Gatherer

	Logger *log.Logger
}

// Server is the preview HTTP server.
type Server struct {
	cfg    Config
	review atomic.Pointer[review.Review]
	router chi.Router
	logger *log.Logger

	mu   sync.Mutex
	http *http.Server
	ln   net.Listener
	done chan error
}

// New creates a server. Call Start to listen.
func New(cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.Proxy == nil {
		cfg.Proxy = proxy.New(proxy.Config{Logger: cfg.Logger})
	}
	s := &Server{cfg: cfg, logger: cfg.Logger}
	s.review.Store(cfg.Review)
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if s.cfg.TrustForwarded {
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	if s.cfg.Metrics != nil {
		r.Use(s.cfg.Metrics.Middleware)
	}

	r.Get("/", s.handlePreview)
	r.Get("/preview", s.handlePreview)
	r.Method(http.MethodGet, proxy.Path, s.cfg.Proxy)
	r.Method(http.MethodHead, proxy.Path, s.cfg.Proxy)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if s.cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.cfg.Gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// SetReview replaces the review shown on the preview page.
func (s *Server) SetReview(rv *review.Review) { s.review.Store(rv) }

// Start listens on the configured address and serves in the background.
// It returns the base URL, e.g. "http://127.0.0.1:53211".
func (s *Server) Start(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.http != nil {
		return "", errors.New(errors.ErrCodeInternal, "server already started")
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Addr)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeNetwork, err, "listen on %s", s.cfg.Addr)
	}

	s.ln = ln
	s.done = make(chan error, 1)
	s.http = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		err := s.http.Serve(ln)
		if stderrors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		s.done <- err
	}()

	base := "http://" + ln.Addr().String()
	s.logger.Debug("server: listening", "url", base)
	return base, nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv, done := s.http, s.done
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	if err := srv.Shutdown(ctx); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "shutdown server")
	}
	return <-done
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	rv := s.review.Load()
	if rv == nil {
		http.Error(w, "no review loaded", http.StatusServiceUnavailable)
		return
	}
	var buf bytes.Buffer
	if err := review.RenderPage(&buf, rv); err != nil {
		s.logger.Error("server: render preview", "err", err)
		http.Error(w, "render failed: "+errors.UserMessage(err), errors.HTTPStatus(err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("server: request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}
