// Package api exposes the slide engine over HTTP: slide insertion, layout
// reflection for template authors, and basic deck queries. Request parsing
// and size enforcement live here so the engine only ever sees validated
// bytes.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/slidesmith/slidesmith/internal/config"
	"github.com/slidesmith/slidesmith/pkg/cache"
	"github.com/slidesmith/slidesmith/pkg/compose"
)

// Server wires the HTTP routes to the composition engine.
type Server struct {
	cfg      config.Config
	logger   *log.Logger
	cache    cache.Cache
	composer *compose.Composer
}

// New creates a server. A nil cache disables inspection caching.
func New(cfg config.Config, logger *log.Logger, c cache.Cache) *Server {
	if logger == nil {
		logger = log.Default()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	return &Server{
		cfg:      cfg,
		logger:   logger,
		cache:    c,
		composer: compose.NewComposer(compose.NewMatcher(logger), logger),
	}
}

// Router builds the chi handler tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestID)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/api/health", s.handleHealth)
	r.Post("/api/add-slide", s.handleAddSlide)
	r.Post("/api/debug-layouts", s.handleDebugLayouts)
	r.Post("/api/get-slide-count", s.handleSlideCount)

	return r
}

// Start runs the HTTP server until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.Router(),
		ReadTimeout:  s.cfg.ReadTimeout.Duration,
		WriteTimeout: s.cfg.WriteTimeout.Duration,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

type ctxKey int

const requestIDKey ctxKey = 0

// requestID tags every request with a UUID for log correlation.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

// logRequests emits one structured line per request.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			"id", r.Context().Value(requestIDKey),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start))
	})
}

// requestLogger returns the server logger scoped to one request.
func (s *Server) requestLogger(r *http.Request) *log.Logger {
	if id, ok := r.Context().Value(requestIDKey).(string); ok {
		return s.logger.With("id", id)
	}
	return s.logger
}
