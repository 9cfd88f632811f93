// Package api assembles the HTTP server: routes, middleware, and
// lifecycle.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/edgestats/edgestats/internal/api/handlers/dashboard"
	"github.com/edgestats/edgestats/internal/api/middleware"
	"github.com/edgestats/edgestats/internal/buildinfo"
	"github.com/edgestats/edgestats/internal/logging"
)

// Server hosts the dashboard API.
type Server struct {
	engine *gin.Engine
	srv    *http.Server

	// trustProxy is reload-safe; the handler reads it per request.
	trustProxy atomic.Bool
}

// Options configures the server.
type Options struct {
	Port             int
	Debug            bool
	TrustProxyHeader bool
}

// New builds the router and wires the dashboard handlers.
func New(service dashboard.Service, opts Options) *Server {
	if opts.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{}
	s.trustProxy.Store(opts.TrustProxyHeader)

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestID())

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"version": buildinfo.Version,
		})
	})

	handler := dashboard.NewHandler(service, s.trustProxy.Load)
	v1 := engine.Group("/v1")
	v1.Use(middleware.RequestSizeLimit(middleware.DefaultMaxRequestSize))
	{
		v1.GET("/analytics", handler.GetAnalytics)
		v1.POST("/connection/test", handler.TestConnection)
	}

	s.engine = engine
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// SetTrustProxyHeader applies the reloaded proxy trust setting.
func (s *Server) SetTrustProxyHeader(trust bool) {
	s.trustProxy.Store(trust)
}

// Handler exposes the router, primarily for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until the listener fails or Shutdown is called.
func (s *Server) Run() error {
	logging.Infof("api: listening on %s", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
