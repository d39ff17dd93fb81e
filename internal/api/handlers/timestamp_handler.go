package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/provenonce/beats/internal/anchor"
	"github.com/provenonce/beats/internal/api/middleware"
	"github.com/provenonce/beats/internal/keys"
	"github.com/provenonce/beats/internal/ledger"
	"github.com/provenonce/beats/internal/ratelimit"
)

// MaxTimestampBody caps the timestamp request body.
const MaxTimestampBody = 256

// timestampMemo is the wire shape of a timestamp memo; field order is
// the serialization order.
type timestampMemo struct {
	V           int    `json:"v"`
	Type        string `json:"type"`
	Hash        string `json:"hash"`
	AnchorIndex uint64 `json:"anchor_index"`
	AnchorHash  string `json:"anchor_hash"`
	UTC         int64  `json:"utc"`
}

// TimestampQuota is one tier's pair of limiters.
type TimestampQuota struct {
	PerMinute *ratelimit.Limiter
	PerDay    *ratelimit.Limiter
}

// TimestampHandler binds digests to the current anchor on chain.
type TimestampHandler struct {
	cache  *anchor.Cache
	lg     ledger.Ledger
	signer *keys.Signer
	rpcURL string

	free TimestampQuota
	pro  TimestampQuota

	tierHeader string
	proToken   string
}

// NewTimestampHandler creates a new TimestampHandler
func NewTimestampHandler(cache *anchor.Cache, lg ledger.Ledger, signer *keys.Signer,
	rpcURL string, free, pro TimestampQuota, tierHeader, proToken string) *TimestampHandler {
	return &TimestampHandler{
		cache:      cache,
		lg:         lg,
		signer:     signer,
		rpcURL:     rpcURL,
		free:       free,
		pro:        pro,
		tierHeader: tierHeader,
		proToken:   proToken,
	}
}

// tier resolves the caller's quota tier. The pro token comparison is
// constant time.
func (h *TimestampHandler) tier(c *gin.Context) (string, TimestampQuota) {
	if h.proToken != "" {
		if tok := c.GetHeader(h.tierHeader); tok != "" && middleware.SecureCompare(tok, h.proToken) {
			return "pro", h.pro
		}
	}
	return "free", h.free
}

// Post timestamps a digest against the current anchor
// POST /api/v1/beat/timestamp
func (h *TimestampHandler) Post(c *gin.Context) {
	tier, quota := h.tier(c)

	key := middleware.ClientIP(c)
	minute := quota.PerMinute.Check(key)
	day := quota.PerDay.Check(key)
	if !minute.Allowed || !day.Allowed {
		resetAt := minute.ResetAt
		if !day.Allowed && day.ResetAt.After(resetAt) {
			resetAt = day.ResetAt
		}
		c.Header("Retry-After", strconv.Itoa(int(time.Until(resetAt).Seconds())+1))
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
		return
	}

	var req struct {
		Hash string `json:"hash"`
	}
	if !bindJSON(c, &req) {
		return
	}
	if !hexHashRe.MatchString(req.Hash) {
		badRequest(c, "hash must be 64 lowercase hex characters")
		return
	}

	ctx := c.Request.Context()
	tip, err := h.cache.Latest(ctx)
	if err != nil || tip == nil {
		unavailable(c, "No anchor available yet")
		return
	}

	balance, err := h.lg.AccountBalance(ctx)
	if err != nil {
		unavailable(c, "Failed to check writer balance")
		return
	}
	if balance < ledger.MinWriterBalance {
		unavailable(c, "Writer balance too low to publish")
		return
	}

	utc := time.Now().UnixMilli()
	memo, err := json.Marshal(timestampMemo{
		V:           1,
		Type:        "timestamp",
		Hash:        req.Hash,
		AnchorIndex: tip.BeatIndex,
		AnchorHash:  tip.Hash,
		UTC:         utc,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build timestamp memo"})
		return
	}

	pub, err := h.lg.PublishMemo(ctx, memo)
	if err != nil {
		log.Printf("[API] Timestamp publish failed: %v", err)
		if errors.Is(err, ledger.ErrLowBalance) {
			unavailable(c, "Writer balance too low to publish")
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to publish timestamp"})
		return
	}

	payload := gin.H{
		"type":         "timestamp",
		"hash":         req.Hash,
		"anchor_index": tip.BeatIndex,
		"anchor_hash":  tip.Hash,
		"utc":          utc,
		"tx_signature": pub.Signature,
	}
	sig, err := h.signer.Sign(keys.ContextTimestamp, payload)
	if err != nil {
		log.Printf("[API] Timestamp receipt signing failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to sign receipt"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"timestamp": payload,
		"on_chain": gin.H{
			"tx_signature": pub.Signature,
			"explorer_url": ledger.ExplorerURL(h.rpcURL, pub.Signature),
		},
		"receipt": gin.H{
			"signature":  sig,
			"public_key": h.signer.PublicKeyHex(keys.ContextTimestamp),
		},
		"tier": tier,
	})
}
