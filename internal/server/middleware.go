package server

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/trustvault/backend/internal/auth"
)

// Context keys set by RequireAuth for downstream handlers.
const (
	ctxUserID = "user_id"
	ctxEmail  = "email"
)

// userID extracts the authenticated user ID from the request context.
func userID(c *gin.Context) string {
	return c.GetString(ctxUserID)
}

// userEmail extracts the authenticated user's email from the request context.
func userEmail(c *gin.Context) string {
	return c.GetString(ctxEmail)
}

// RequireAuth validates the Bearer token and stores the authenticated
// principal on the context. Handlers behind it trust this identity
// without re-verification.
func RequireAuth(jwtManager *auth.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if h == "" {
			abortWithError(c, auth.ErrMissingToken)
			return
		}
		if !strings.HasPrefix(h, "Bearer ") {
			abortWithError(c, auth.ErrInvalidToken)
			return
		}

		claims, err := jwtManager.Validate(strings.TrimPrefix(h, "Bearer "))
		if err != nil {
			abortWithError(c, err)
			return
		}

		c.Set(ctxUserID, claims.Subject)
		c.Set(ctxEmail, claims.Email)
		c.Next()
	}
}

// RequestLogger logs every request with method, path, status, the
// authenticated user (empty pre-auth), and duration.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", status,
			"user_id", userID(c),
			"duration_ms", time.Since(start).Milliseconds(),
		}
		switch {
		case status >= http.StatusInternalServerError:
			slog.Error("Request failed", attrs...)
		case status >= http.StatusBadRequest:
			slog.Warn("Request rejected", attrs...)
		default:
			slog.Info("Request ok", attrs...)
		}
	}
}

// Metrics instruments requests with a counter and a latency histogram,
// registered on reg.
func Metrics(reg prometheus.Registerer) gin.HandlerFunc {
	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trustvault_http_requests_total",
			Help: "HTTP requests by method, route, and status code.",
		},
		[]string{"method", "route", "code"},
	)
	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trustvault_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	reg.MustRegister(requests, duration)

	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		requests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		duration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
