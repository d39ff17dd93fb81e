package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/provenonce/beats/internal/ratelimit"
)

// Logger logs request information
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Filter out HTTP/2 connection preface attempts
		if c.Request.Method == "PRI" {
			c.AbortWithStatus(400)
			return
		}

		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		if query != "" {
			path = path + "?" + query
		}

		log.Printf("[API] %s %s %d %v", c.Request.Method, path, status, latency)
	}
}

// Recovery recovers from panics and returns a 500 error
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("[API] Panic recovered: %v", err)
				c.AbortWithStatusJSON(500, gin.H{
					"error": "Internal server error",
				})
			}
		}()
		c.Next()
	}
}

// CORS adds CORS headers and answers preflights. Cron paths are
// exempt; browsers have no business calling the scheduler endpoint.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/cron/") {
			c.Next()
			return
		}
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Beats-Tier-Token")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// ClientIP resolves the caller identity used as the rate-limit key.
// Platform headers are trusted in priority order; the last element of
// x-forwarded-for is the closest hop.
func ClientIP(c *gin.Context) string {
	for _, h := range []string{"x-vercel-forwarded-for", "x-real-ip", "cf-connecting-ip"} {
		if v := strings.TrimSpace(c.GetHeader(h)); v != "" {
			return v
		}
	}
	if fwd := c.GetHeader("x-forwarded-for"); fwd != "" {
		parts := strings.Split(fwd, ",")
		if v := strings.TrimSpace(parts[len(parts)-1]); v != "" {
			return v
		}
	}
	return "127.0.0.1"
}

// RateLimit rejects requests over the per-key window with 429 and a
// Retry-After hint.
func RateLimit(limiter *ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		d := limiter.Check(ClientIP(c))
		if !d.Allowed {
			retryAfter := int(time.Until(d.ResetAt).Seconds()) + 1
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(429, gin.H{"error": "Rate limit exceeded"})
			return
		}
		c.Header("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		c.Next()
	}
}

// RequireJSON rejects POST bodies that are not declared JSON (415) or
// exceed maxBytes (413, via Content-Length when declared).
func RequireJSON(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		ct := c.ContentType()
		if ct != "application/json" {
			c.AbortWithStatusJSON(415, gin.H{"error": "Content-Type must be application/json"})
			return
		}
		if c.Request.ContentLength > maxBytes {
			c.AbortWithStatusJSON(413, gin.H{"error": "Request body too large"})
			return
		}
		c.Request.Body = maxBytesBody(c, maxBytes)
		c.Next()
	}
}

// SecureCompare compares two secrets in constant time. Both sides are
// hashed first so length differences leak nothing.
func SecureCompare(a, b string) bool {
	ha := sha256.Sum256([]byte(a))
	hb := sha256.Sum256([]byte(b))
	return subtle.ConstantTimeCompare(ha[:], hb[:]) == 1
}
