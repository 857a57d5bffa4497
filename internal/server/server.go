// Package server exposes the view and the user actions over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sustena-platforms/julctl/internal/coordinator"
	"github.com/sustena-platforms/julctl/internal/metrics"
	"github.com/sustena-platforms/julctl/internal/models"
	"github.com/sustena-platforms/julctl/internal/otel"
)

// Wallets is the part of the wallet registry the server reads and edits.
type Wallets interface {
	Wallets() []models.Wallet
	SetAlias(ctx context.Context, address, alias string) error
	Resolve(nameOrAddress string) (string, bool)
}

type Server struct {
	coord   *coordinator.Coordinator
	wallets Wallets
	metrics *metrics.Metrics
	engine  *gin.Engine
}

// New builds the routes. serviceName names the request spans.
func New(coord *coordinator.Coordinator, wallets Wallets, m *metrics.Metrics, serviceName string) *Server {
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(), otel.Middleware(serviceName), securityHeaders())

	s := &Server{coord: coord, wallets: wallets, metrics: m, engine: engine}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.engine.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	api := s.engine.Group("/api")
	api.GET("/view", s.getView)
	api.GET("/wallets", s.listWallets)
	api.POST("/wallets", s.createWallet)
	api.PUT("/wallets/:address/alias", s.setAlias)
	api.POST("/refresh", s.refresh)
	api.POST("/transactions", s.sendTransaction)
	api.POST("/stake", s.stake(s.coord.Stake))
	api.POST("/unstake", s.stake(s.coord.Unstake))
	api.POST("/purchase", s.purchase)
	api.POST("/forge", s.forge)
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	slog.Info("HTTP server stopped")
	return nil
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Debug("HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"client", c.ClientIP(),
		)
	}
}

func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "no-referrer")
		c.Next()
	}
}

// statusFor maps an action or refresh failure to an HTTP status.
func statusFor(err error) int {
	switch {
	case models.IsValidation(err):
		return http.StatusBadRequest
	case models.IsRejection(err):
		return http.StatusUnprocessableEntity
	case models.IsNetwork(err):
		return http.StatusBadGateway
	case errors.Is(err, coordinator.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func abort(c *gin.Context, err error) {
	c.AbortWithStatusJSON(statusFor(err), gin.H{"error": models.UserMessage(err)})
}
