package http_api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/cobia/billing/internal/models"
	"github.com/cobia/billing/pkg/apperror"
)

const userContextKey = "user"

// authenticate resolves the bearer token to a stored user. Any failure,
// including a token for a deleted user, is a 401.
func (s *HTTPServer) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			s.respondError(c, apperror.Unauthorized("Authentication credentials were not provided"))
			return
		}

		userID, err := s.tokens.ParseAccessToken(token)
		if err != nil {
			s.logger.Debug("Rejected bearer token", "error", err)
			s.respondError(c, apperror.Unauthorized("Invalid or expired token"))
			return
		}

		user, err := s.billing.GetUser(c.Request.Context(), userID)
		if err != nil {
			if !apperror.Is(err, apperror.CodeUserNotFound) {
				s.logger.Error("Failed to load authenticated user", "error", err, "user_id", userID)
			}
			s.respondError(c, apperror.Unauthorized("Invalid or expired token"))
			return
		}

		c.Set(userContextKey, user)
		c.Next()
	}
}

func (s *HTTPServer) requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok || !user.IsAdmin {
			s.respondError(c, apperror.Forbidden("Admin access required"))
			return
		}
		c.Next()
	}
}

func currentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(userContextKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok && user != nil
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter keeps one token bucket per client IP.
type rateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientLimiter
	rps     rate.Limit
	burst   int
}

func newRateLimiter(rps float64, burst int) *rateLimiter {
	return &rateLimiter{
		clients: make(map[string]*clientLimiter),
		rps:     rate.Limit(rps),
		burst:   burst,
	}
}

func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	client, found := rl.clients[ip]
	if !found {
		client = &clientLimiter{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.clients[ip] = client
	}
	client.lastSeen = time.Now()
	limiter := client.limiter
	rl.mu.Unlock()

	return limiter.Allow()
}

func (s *HTTPServer) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.allow(c.ClientIP()) {
			s.logger.Warn("Rate limit exceeded", "ip", c.ClientIP(), "path", c.Request.URL.Path)
			s.respondError(c, apperror.New(http.StatusTooManyRequests, apperror.CodeRateLimited, "Too many requests, please try later"))
			return
		}
		c.Next()
	}
}

// StartCleanup drops limiters for clients idle longer than idle.
func (rl *rateLimiter) StartCleanup(ctx context.Context, interval, idle time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rl.mu.Lock()
				for ip, client := range rl.clients {
					if time.Since(client.lastSeen) > idle {
						delete(rl.clients, ip)
					}
				}
				rl.mu.Unlock()
			}
		}
	}()
}
