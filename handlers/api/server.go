package api

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nijaru/ytdl-web/config"
	"github.com/nijaru/ytdl-web/middleware"
	"github.com/nijaru/ytdl-web/services/video"
	"github.com/nijaru/ytdl-web/validation"
)

type Server struct {
	video     *VideoHandler
	config    *config.Config
	logger    *logrus.Logger
	server    *http.Server
	startTime time.Time
}

type ServerOption func(*Server)

// NewServer creates a new API server with the provided services and options
func NewServer(cfg *config.Config, opts ...ServerOption) *Server {
	s := &Server{
		config:    cfg,
		logger:    logrus.StandardLogger(),
		startTime: time.Now(),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.server = &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      s.routes(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

func WithServices(videoSvc video.Service) ServerOption {
	return func(s *Server) {
		s.video = NewVideoHandler(videoSvc, validation.NewValidator())
	}
}

func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// Handler returns the fully wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) Start() error {
	s.logger.WithField("port", s.config.ServerPort).Info("Starting server")
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	return s.server.Shutdown(ctx)
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", s.handleHealth)

	if s.video != nil {
		// Downloads stream for as long as the client reads, so only the
		// metadata routes get a deadline.
		mux.Handle("POST /api/video-info", s.withTimeout(s.video.HandleVideoInfo))
		mux.Handle("GET /api/downloads", s.withTimeout(s.video.HandleRecentDownloads))
		mux.Handle("GET /api/downloads/{id}", s.withTimeout(s.video.HandleGetDownload))
		mux.HandleFunc("GET /api/download", s.video.HandleDownload)
	}

	if s.config.StaticDir != "" {
		mux.Handle("GET /", http.FileServer(http.Dir(s.config.StaticDir)))
	}

	return s.middleware(mux)
}

func (s *Server) withTimeout(h http.HandlerFunc) http.Handler {
	if !s.config.Middleware.EnableTimeout || s.config.RequestTimeout <= 0 {
		return h
	}
	return middleware.Timeout(s.config.RequestTimeout)(h)
}

func (s *Server) middleware(handler http.Handler) http.Handler {
	mw := s.config.Middleware
	var middlewares []func(http.Handler) http.Handler

	if mw.EnableRequestID {
		middlewares = append(middlewares, middleware.RequestID())
	}
	if mw.EnableLogger {
		middlewares = append(middlewares, middleware.Logging(s.logger))
	}
	if mw.EnableRecover {
		middlewares = append(middlewares, middleware.Recovery(s.logger))
	}
	if mw.EnableCORS {
		middlewares = append(middlewares, middleware.CORS(s.config.CORS))
	}
	if mw.EnableRateLimit && s.config.RateLimit.Enabled {
		trusted, err := middleware.ParseTrustedProxies(s.config.RateLimit.TrustedProxies)
		if err != nil {
			s.logger.WithError(err).Warn("Ignoring trusted proxies, rate limiting on peer address")
		}
		limiter := middleware.NewRateLimiter(
			s.config.RateLimit.RequestsPerMinute,
			s.config.RateLimit.BurstSize,
			trusted,
		)
		middlewares = append(middlewares, limiter.Middleware)
	}

	return middleware.Chain(handler, middlewares...)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":    "OK",
		"timestamp": time.Now().UTC(),
		"version":   s.config.Version,
		"uptime":    time.Since(s.startTime).String(),
	}

	if s.config.Debug {
		status["goroutines"] = runtime.NumGoroutine()
		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		status["memory"] = map[string]interface{}{
			"allocated": m.Alloc,
			"total":     m.TotalAlloc,
			"system":    m.Sys,
			"gc_cycles": m.NumGC,
		}
	}

	respondJSON(w, r, http.StatusOK, status)
}
