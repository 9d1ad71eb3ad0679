package http_api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/cobia/billing/internal/auth"
	"github.com/cobia/billing/internal/models"
	"github.com/cobia/billing/pkg/apperror"
	"github.com/cobia/billing/pkg/logger"
	"github.com/cobia/billing/pkg/validation"
)

const (
	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout = 10 * time.Second
)

type Options struct {
	Port           int
	CORSOrigins    []string
	RateLimitRPS   float64
	RateLimitBurst int
}

// HTTPServer is the HTTP server struct that will serve the API
type HTTPServer struct {
	// logger is the logger instance
	logger *logger.Logger

	// router is the HTTP router
	router *gin.Engine
	// port is the port on which the server will listen
	port int

	// server is the underlying HTTP server
	server *http.Server

	billing models.BillingI
	tokens  *auth.Issuer
	limiter *rateLimiter
}

// NewHTTPServer creates a new HTTP server instance
func NewHTTPServer(billing models.BillingI, tokens *auth.Issuer, opts Options, logger *logger.Logger) (*HTTPServer, error) {
	if err := validation.RegisterGinValidators(); err != nil {
		return nil, err
	}

	s := &HTTPServer{
		logger:  logger,
		router:  gin.New(),
		port:    opts.Port,
		billing: billing,
		tokens:  tokens,
		limiter: newRateLimiter(opts.RateLimitRPS, opts.RateLimitBurst),
	}

	s.router.Use(
		s.requestLogger(),
		gin.CustomRecovery(s.recoverPanic),
		cors.New(corsConfig(opts.CORSOrigins)),
		s.rateLimit(),
	)

	// Define routes
	s.routes()

	return s, nil
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Content-Length", "Accept", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	for _, origin := range origins {
		if origin == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}

// Handler exposes the router, mainly for httptest.
func (s *HTTPServer) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until it is shut down
func (s *HTTPServer) Start(ctx context.Context) error {
	addr := fmt.Sprintf("0.0.0.0:%v", s.port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.limiter.StartCleanup(ctx, time.Minute, 10*time.Minute)

	s.logger.Info("Starting HTTP server", "address", addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start the HTTP server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *HTTPServer) Shutdown() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	s.logger.Info("Shutting down HTTP server...")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("HTTP server shutdown error: %w", err)
	}

	s.logger.Info("HTTP server shut down successfully")
	return nil
}

func (s *HTTPServer) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		keysAndValues := []interface{}{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		}
		if user, ok := currentUser(c); ok {
			keysAndValues = append(keysAndValues, "user_id", user.ID)
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			s.logger.Warn("HTTP request", keysAndValues...)
			return
		}
		s.logger.Info("HTTP request", keysAndValues...)
	}
}

func (s *HTTPServer) recoverPanic(c *gin.Context, recovered interface{}) {
	s.logger.Error("Panic while handling request", "panic", recovered, "path", c.Request.URL.Path)
	s.respondError(c, apperror.Internal(fmt.Errorf("panic: %v", recovered)))
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(prefix):]), true
}
