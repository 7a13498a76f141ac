package main

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// clientKey identifies the caller for rate limiting and usage counts: a
// session that has saved settings, otherwise the client address.
func (s *server) clientKey(c *gin.Context) string {
	if id := sessionID(c); id != "" {
		if _, err := s.settings.Get(c.Request.Context(), id); err == nil {
			return "session:" + id
		}
	}
	return "ip:" + c.ClientIP()
}

// requestLogger logs each request and counts it by route and status.
func (s *server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		s.metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()

		s.logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
}

// rateLimit rejects callers over the configured budget. A limit of zero
// disables the check. Limiter failures let the request through.
func (s *server) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.limiter.Limit() <= 0 {
			c.Next()
			return
		}
		key := s.clientKey(c)

		d, err := s.limiter.Allow(c.Request.Context(), key)
		if err != nil {
			s.logger.Warn("rate limit check failed", zap.String("client", key), zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(s.limiter.Limit()))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))

		if !d.Allowed {
			retry := int(math.Ceil(time.Until(d.ResetAt).Seconds()))
			if retry < 1 {
				retry = 1
			}
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"limit":       s.limiter.Limit(),
				"remaining":   d.Remaining,
				"retry_after": retry,
			})
			c.Abort()
			return
		}

		c.Next()

		// The request context is gone once the handler returns.
		if _, err := s.limiter.IncrementUsage(context.Background(), key); err != nil {
			s.logger.Debug("usage tracking failed", zap.String("client", key), zap.Error(err))
		}
	}
}
