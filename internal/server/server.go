// Package server exposes the auditor over an HTTP JSON API.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"cspAudit/internal/audit"
	"cspAudit/internal/config"
	"cspAudit/internal/discovery"
	"cspAudit/internal/fetch"
)

// Auditor runs a browser-driven audit over a list of pages.
type Auditor interface {
	Run(ctx context.Context, urls []string) (*audit.Result, error)
}

// Server routes the /api endpoints.
type Server struct {
	config   *config.Config
	fetcher  fetch.Fetcher
	analyzer *discovery.Analyzer
	auditor  Auditor
	engine   *gin.Engine
}

// New creates a Server. auditor may be nil, in which case the runtime
// endpoint reports that it is unavailable.
func New(cfg *config.Config, f fetch.Fetcher, auditor Auditor) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		config:   cfg,
		fetcher:  f,
		analyzer: discovery.NewAnalyzer(cfg, f),
		auditor:  auditor,
		engine:   gin.New(),
	}
	s.engine.Use(gin.Recovery(), cors(), requestLogger(cfg))

	api := s.engine.Group("/api")
	api.POST("/analyze-page", s.analyzePage)
	api.POST("/analyze-csp-violations", s.analyzeViolations)
	api.POST("/process-sitemap", s.processSitemap)
	api.POST("/analyze-urls", s.analyzeURLs)
	api.POST("/extract-csp", s.extractCSP)
	return s
}

// Handler returns the HTTP handler serving the API.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Addr(),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.config.Logger.Info("server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.config.Logger.Info("shutting down server")
		return srv.Shutdown(shutdownCtx)
	}
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET,HEAD,PUT,PATCH,POST,DELETE")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func requestLogger(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		cfg.Logger.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
		)
	}
}
