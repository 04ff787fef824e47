// Package http provides the ragify HTTP API.
package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kellywsq03/RAGify/internal/loader"
	"github.com/kellywsq03/RAGify/internal/rag"
	"github.com/kellywsq03/RAGify/internal/storage"
)

// Pipeline indexes sources and answers questions.
type Pipeline interface {
	Index(ctx context.Context, src loader.Source) (rag.IndexResult, error)
	Answer(ctx context.Context, question string) (rag.Answer, error)
}

// FileStore stores user PDFs.
type FileStore interface {
	UploadPDF(ctx context.Context, userID, filename, contentType string, r io.Reader) (storage.UploadResult, error)
	ListUserFiles(ctx context.Context, userID string) ([]storage.ObjectInfo, error)
}

// Server provides HTTP endpoints for ragify.
type Server struct {
	echo     *echo.Echo
	pipeline Pipeline
	files    FileStore
	metrics  *HTTPMetrics
	logger   *zap.Logger
	config   *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host        string
	Port        int
	MaxUploadMB int

	// RateLimit is the sustained requests per second allowed per client
	// IP on the API routes. Zero disables limiting.
	RateLimit float64
	// RateBurst defaults to the rate rounded up.
	RateBurst int

	// PDFRoot is the directory POST /index may read pdf_path from. Empty
	// rejects pdf_path over HTTP.
	PDFRoot string

	// Registerer receives the HTTP metrics. Nil uses the default registry.
	Registerer prometheus.Registerer

	// Gatherer backs GET /metrics. Nil uses the default registry.
	Gatherer prometheus.Gatherer
}

// NewServer creates a new HTTP server. files may be nil when object
// storage is not configured; the upload routes then answer 503.
func NewServer(pipeline Pipeline, files FileStore, logger *zap.Logger, cfg *Config) (*Server, error) {
	if pipeline == nil {
		return nil, fmt.Errorf("pipeline cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 8000,
		}
	}
	if cfg.MaxUploadMB <= 0 {
		cfg.MaxUploadMB = 25
	}
	if cfg.Registerer == nil {
		cfg.Registerer = prometheus.DefaultRegisterer
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}

	metrics, err := NewHTTPMetrics(cfg.Registerer)
	if err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(logger)

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.BodyLimit(fmt.Sprintf("%dM", cfg.MaxUploadMB)))
	if cfg.RateLimit > 0 {
		e.Use(rateLimiter(cfg.RateLimit, cfg.RateBurst))
	}
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})
	e.Use(metrics.MetricsMiddleware())

	s := &Server{
		echo:     e,
		pipeline: pipeline,
		files:    files,
		metrics:  metrics,
		logger:   logger,
		config:   cfg,
	}

	s.registerRoutes()

	return s, nil
}

// rateLimiter limits API requests per client IP. Health checks and
// scrapes are never limited.
func rateLimiter(limit float64, burst int) echo.MiddlewareFunc {
	if burst <= 0 {
		burst = int(math.Ceil(limit))
	}
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Skipper: func(c echo.Context) bool {
			p := c.Path()
			return p == "/health" || p == "/metrics"
		},
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(limit),
			Burst:     burst,
			ExpiresIn: 3 * time.Minute,
		}),
	})
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.config.Gatherer, promhttp.HandlerOpts{})))

	s.echo.POST("/index", s.handleIndex)
	s.echo.POST("/query", s.handleQuery)

	// The web backend mounts the same handlers under /rag.
	r := s.echo.Group("/rag")
	r.POST("/index", s.handleIndex)
	r.POST("/query", s.handleQuery)

	u := s.echo.Group("/upload")
	u.POST("/pdf", s.handleUploadPDF)
	u.POST("/getFiles", s.handleGetFiles)
}

// Handler returns the server's http.Handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Run starts the server and shuts it down gracefully when ctx ends.
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
