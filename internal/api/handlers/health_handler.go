package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/provenonce/beats/internal/anchor"
	"github.com/provenonce/beats/internal/beat"
	"github.com/provenonce/beats/internal/ledger"
)

// HealthHandler reports service liveness and the current anchor state.
type HealthHandler struct {
	cache   *anchor.Cache
	lg      ledger.Ledger
	started time.Time
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(cache *anchor.Cache, lg ledger.Ledger) *HealthHandler {
	return &HealthHandler{cache: cache, lg: lg, started: time.Now()}
}

// Get returns service health
// GET /api/health
func (h *HealthHandler) Get(c *gin.Context) {
	now := time.Now()

	resp := gin.H{
		"service":       "beats",
		"status":        "ok",
		"timestamp":     now.UnixMilli(),
		"anchor_signer": h.lg.WriterAddress(),
		"timing": gin.H{
			"uptime_ms":          now.Sub(h.started).Milliseconds(),
			"anchor_interval_ms": beat.AnchorIntervalMs,
			"grace_window":       beat.AnchorGraceWindow,
		},
		"operations": gin.H{
			"anchor":     "/api/v1/beat/anchor",
			"key":        "/api/v1/beat/key",
			"verify":     "/api/v1/beat/verify",
			"timestamp":  "/api/v1/beat/timestamp",
			"work_proof": "/api/v1/beat/work-proof",
		},
	}

	if tip, err := h.cache.Latest(c.Request.Context()); err == nil && tip != nil {
		resp["anchor"] = gin.H{
			"beat_index": tip.BeatIndex,
			"hash":       tip.Hash,
			"utc":        tip.UTC,
			"age_ms":     now.UnixMilli() - tip.UTC,
		}
	}

	c.JSON(http.StatusOK, resp)
}
