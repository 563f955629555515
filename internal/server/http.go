package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const httpShutdownTimeout = 10 * time.Second

// Checker reports readiness. *healthhandler.Server implements it.
type Checker interface {
	Check(ctx context.Context) error
}

// NewHTTPRouter serves the operational endpoints next to the gRPC API:
// /metrics for Prometheus, /healthz for liveness and /readyz for dependency readiness.
// ready may be nil, in which case /readyz always reports ok.
func NewHTTPRouter(ready Checker, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.HandleMethodNotAllowed = true

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/readyz", func(c *gin.Context) {
		if ready != nil {
			if err := ready.Check(c.Request.Context()); err != nil {
				logger.Warn("readiness check failed", zap.Error(err))
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return r
}

// HTTPServer wraps a gin.Engine with graceful shutdown.
type HTTPServer struct {
	Engine *gin.Engine
}

// NewHTTPServer returns a server for router.
func NewHTTPServer(router *gin.Engine) *HTTPServer {
	return &HTTPServer{Engine: router}
}

// Run starts the HTTP server on addr and shuts it down when ctx is done.
func (s *HTTPServer) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}
