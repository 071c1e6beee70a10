// Package api exposes the case-count report over a REST API.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/epiwatch/leishdash/internal/config"
	"github.com/epiwatch/leishdash/internal/dataset"
	"github.com/epiwatch/leishdash/web"
)

// Server is the dashboard REST API server.
type Server struct {
	loader *dataset.Loader
	router *chi.Mux
	server *http.Server
}

// NewServer wires the router and handlers around a dataset loader.
func NewServer(cfg config.ServerConfig, loader *dataset.Loader) *Server {
	s := &Server{
		loader: loader,
		router: chi.NewRouter(),
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	if cfg.RateLimit > 0 {
		s.router.Use(rateLimiter(rate.NewLimiter(rate.Limit(cfg.RateLimit), int(cfg.RateLimit))))
	}

	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/years", s.handleYears)
		r.Get("/states", s.handleStates)
		r.Get("/report", s.handleReport)
		r.Get("/report/states", s.handleStateTotals)
		r.Get("/report/municipalities", s.handleTopMunicipalities)
		r.Get("/report/map", s.handleMap)
		r.Get("/report/structural", s.handleStructural)
	})

	s.mountUI()

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// mountUI serves the embedded single-page dashboard at the root, falling
// back to index.html for unknown paths.
func (s *Server) mountUI() {
	dist, err := web.DistFS()
	if err != nil {
		zap.L().Warn("api: embedded UI unavailable", zap.Error(err))
		return
	}

	fileServer := http.FileServer(dist)
	s.router.Get("/*", func(w http.ResponseWriter, r *http.Request) {
		if f, err := dist.Open(r.URL.Path); err == nil {
			_ = f.Close()
			fileServer.ServeHTTP(w, r)
			return
		}
		r.URL.Path = "/"
		fileServer.ServeHTTP(w, r)
	})
}

// Start begins serving and blocks until the listener closes.
func (s *Server) Start() error {
	zap.L().Info("api: listening", zap.String("addr", s.server.Addr))
	return s.server.ListenAndServe()
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// requestLogger logs one structured line per request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// rateLimiter rejects requests above the configured sustained rate.
func rateLimiter(limiter *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
