package httpgin

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kirinyoku/cinebook/internal/auth"
	redisrepo "github.com/kirinyoku/cinebook/internal/repository/redis"
)

const (
	ctxRequestID = "request_id"
	ctxPrincipal = "principal"

	headerRequestID      = "X-Request-ID"
	headerIdempotencyKey = "Idempotency-Key"
)

// RateLimiter decides whether one more request fits the caller's window.
type RateLimiter interface {
	Allow(ctx context.Context, suffix string) (redisrepo.Decision, error)
}

func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader(headerRequestID)
		if reqID == "" {
			reqID = uuid.New().String()
		}

		c.Writer.Header().Set(headerRequestID, reqID)
		c.Set(ctxRequestID, reqID)

		c.Next()
	}
}

func CORS() gin.HandlerFunc {
	cfg := cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{
			"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS",
		},
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Accept",
			"Authorization",
			"X-Requested-With",
			headerRequestID,
			headerIdempotencyKey,
			"If-None-Match",
		},
		ExposeHeaders: []string{
			headerRequestID,
			headerIdempotencyKey,
			"ETag",
			"Cache-Control",
			"Retry-After",
		},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}

	return cors.New(cfg)
}

func LoggingMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery
		c.Next()

		latency := time.Since(start)
		if raw != "" {
			path = path + "?" + raw
		}

		attrs := []any{
			slog.Int("status", c.Writer.Status()),
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.String("ip", c.ClientIP()),
			slog.String("ua", c.Request.UserAgent()),
			slog.String("request_id", c.GetString(ctxRequestID)),
			slog.Duration("latency", latency),
			slog.Int("bytes_out", c.Writer.Size()),
		}

		if len(c.Errors) > 0 {
			attrs = append(attrs, slog.String("errors", c.Errors.String()))
			logger.Error("http", slog.Group("http", attrs...))
			return
		}

		logger.Info("http", slog.Group("http", attrs...))
	}
}

// AuthMiddleware requires a valid bearer token and stores its principal in
// the context.
func AuthMiddleware(issuer *auth.Issuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")

		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			respondErr(c, errMissingToken)
			return
		}

		p, err := issuer.Parse(strings.TrimSpace(raw))
		if err != nil {
			respondErr(c, errInvalidToken)
			return
		}

		c.Set(ctxPrincipal, p)
		c.Next()
	}
}

// RequireRole lets through only principals with the given role. It must
// run after AuthMiddleware.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := principalFrom(c)
		if !ok {
			respondErr(c, errMissingToken)
			return
		}

		if p.Role != role {
			respondErr(c, errWrongRole)
			return
		}

		c.Next()
	}
}

// RateLimitMiddleware counts requests per client IP. A limiter failure lets
// the request through and is recorded for the request log.
func RateLimitMiddleware(limiter RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}

		d, err := limiter.Allow(c.Request.Context(), "ip:"+c.ClientIP())
		if err != nil {
			_ = c.Error(err)
			c.Next()
			return
		}

		if !d.Allowed {
			c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(d.RetryAfter)))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
				Error:     "rate limited",
				Code:      codeRateLimited,
				RequestID: c.GetString(ctxRequestID),
			})
			return
		}

		c.Next()
	}
}

func retryAfterSeconds(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}

	return secs
}

func principalFrom(c *gin.Context) (auth.Principal, bool) {
	v, ok := c.Get(ctxPrincipal)
	if !ok {
		return auth.Principal{}, false
	}

	p, ok := v.(auth.Principal)

	return p, ok
}
