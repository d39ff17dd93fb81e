package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/provenonce/beats/internal/api/middleware"
	"github.com/provenonce/beats/internal/cron"
	"github.com/provenonce/beats/internal/ledger"
)

// CronHandler exposes anchor advancement to the external scheduler.
type CronHandler struct {
	advancer *cron.Advancer
	secret   string
}

// NewCronHandler creates a new CronHandler
func NewCronHandler(advancer *cron.Advancer, secret string) *CronHandler {
	return &CronHandler{advancer: advancer, secret: secret}
}

// Get advances the anchor chain
// GET /api/cron/anchor
func (h *CronHandler) Get(c *gin.Context) {
	if h.secret == "" {
		unavailable(c, "Cron secret is not configured")
		return
	}
	auth := c.GetHeader("Authorization")
	if !middleware.SecureCompare(auth, "Bearer "+h.secret) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	res, err := h.advancer.Advance(c.Request.Context())
	if err != nil {
		log.Printf("[CRON] Advance failed after %dms: %v", res.ElapsedMs, err)
		if errors.Is(err, ledger.ErrEntropyUnavailable) {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error":      "External entropy unavailable",
				"elapsed_ms": res.ElapsedMs,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			// The outer error text is enough for operators; inner RPC
			// noise stays in the logs.
			"error":      firstLine(err.Error()),
			"elapsed_ms": res.ElapsedMs,
		})
		return
	}

	c.JSON(http.StatusOK, res)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
