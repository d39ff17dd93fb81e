package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/provenonce/beats/internal/anchor"
	"github.com/provenonce/beats/internal/beat"
	"github.com/provenonce/beats/internal/keys"
	"github.com/provenonce/beats/internal/models"
)

// Stable work-proof rejection reasons. Clients branch on these.
const (
	ReasonInsufficientDifficulty = "insufficient_difficulty"
	ReasonInsufficientSpotChecks = "insufficient_spot_checks"
	ReasonCountMismatch          = "count_mismatch"
	ReasonStaleAnchor            = "stale_anchor"
	ReasonSpotCheckFailed        = "spot_check_failed"
)

// WorkProofHandler accepts work-proof submissions and returns signed
// receipts. Submissions move received → validated_structure →
// validated_logic → chain_checked → signed; any step may terminate
// with a typed reason.
type WorkProofHandler struct {
	cache  *anchor.Cache
	signer *keys.Signer
}

// NewWorkProofHandler creates a new WorkProofHandler
func NewWorkProofHandler(cache *anchor.Cache, signer *keys.Signer) *WorkProofHandler {
	return &WorkProofHandler{cache: cache, signer: signer}
}

func rejected(c *gin.Context, reason string) {
	c.JSON(http.StatusOK, gin.H{"valid": false, "reason": reason})
}

// Post verifies a work proof
// POST /api/v1/beat/work-proof
func (h *WorkProofHandler) Post(c *gin.Context) {
	body, ok := readBody(c)
	if !ok {
		return
	}

	// The proof arrives wrapped ({"work_proof": {...}}) or flat.
	var envelope struct {
		WorkProof *models.WorkProofRequest `json:"work_proof"`
	}
	var wp models.WorkProofRequest
	if err := json.Unmarshal(body, &envelope); err != nil {
		badRequest(c, "Invalid JSON body")
		return
	}
	if envelope.WorkProof != nil {
		wp = *envelope.WorkProof
	} else if err := json.Unmarshal(body, &wp); err != nil {
		badRequest(c, "Invalid JSON body")
		return
	}

	// Structural validation: shape problems are 400s, never reasons.
	if !hexHashRe.MatchString(wp.FromHash) {
		badRequest(c, "from_hash must be 64 lowercase hex characters")
		return
	}
	if !hexHashRe.MatchString(wp.ToHash) {
		badRequest(c, "to_hash must be 64 lowercase hex characters")
		return
	}
	if wp.BeatsComputed < 1 {
		badRequest(c, "beats_computed must be at least 1")
		return
	}
	if wp.AnchorHash != "" && !hexHashRe.MatchString(wp.AnchorHash) {
		badRequest(c, "anchor_hash must be 64 lowercase hex characters")
		return
	}
	if len(wp.SpotChecks) < 1 || len(wp.SpotChecks) > beat.PublicMaxSpotChecks {
		badRequest(c, "spot_checks must contain between 1 and 25 entries")
		return
	}
	for _, sc := range wp.SpotChecks {
		if !hexHashRe.MatchString(sc.Hash) || !hexHashRe.MatchString(sc.Prev) {
			badRequest(c, "spot check hashes must be 64 lowercase hex characters")
			return
		}
	}

	// Logic validation: well-formed but unacceptable proofs are 200s
	// with a stable reason token.
	if wp.Difficulty < beat.MinDifficulty {
		rejected(c, ReasonInsufficientDifficulty)
		return
	}
	difficulty := wp.Difficulty
	if difficulty > beat.PublicMaxDifficulty {
		difficulty = beat.PublicMaxDifficulty
	}

	required := uint64(3)
	if wp.BeatsComputed < required {
		required = wp.BeatsComputed
	}
	if uint64(len(wp.SpotChecks)) < required {
		rejected(c, ReasonInsufficientSpotChecks)
		return
	}

	minIdx, maxIdx := wp.SpotChecks[0].Index, wp.SpotChecks[0].Index
	for _, sc := range wp.SpotChecks[1:] {
		if sc.Index < minIdx {
			minIdx = sc.Index
		}
		if sc.Index > maxIdx {
			maxIdx = sc.Index
		}
	}
	if maxIdx-minIdx > wp.BeatsComputed {
		rejected(c, ReasonCountMismatch)
		return
	}

	// Anchor freshness. A cold start (no tip yet) skips the check
	// rather than rejecting everyone.
	tip, err := h.cache.Latest(c.Request.Context())
	if err == nil && tip != nil {
		if wp.AnchorIndex > tip.BeatIndex ||
			tip.BeatIndex-wp.AnchorIndex > beat.AnchorGraceWindow {
			rejected(c, ReasonStaleAnchor)
			return
		}
	}

	for _, sc := range wp.SpotChecks {
		b := models.Beat{
			Index:      sc.Index,
			Hash:       sc.Hash,
			Prev:       sc.Prev,
			Nonce:      sc.Nonce,
			AnchorHash: wp.AnchorHash,
		}
		if !beat.VerifyBeat(b, difficulty) {
			rejected(c, ReasonSpotCheckFailed)
			return
		}
	}

	// Chain checked; sign the receipt.
	payload := gin.H{
		"type":                 "work_proof",
		"from_hash":            wp.FromHash,
		"to_hash":              wp.ToHash,
		"beats_computed":       wp.BeatsComputed,
		"difficulty":           difficulty,
		"anchor_index":         wp.AnchorIndex,
		"spot_checks_verified": len(wp.SpotChecks),
		"utc":                  time.Now().UnixMilli(),
	}
	if wp.AnchorHash != "" {
		payload["anchor_hash"] = wp.AnchorHash
	}

	sig, err := h.signer.Sign(keys.ContextWorkProof, payload)
	if err != nil {
		log.Printf("[API] Work-proof receipt signing failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to sign receipt"})
		return
	}

	receipt := gin.H{}
	for k, v := range payload {
		receipt[k] = v
	}
	receipt["signature"] = sig

	c.JSON(http.StatusOK, gin.H{
		"valid":      true,
		"receipt":    receipt,
		"public_key": h.signer.PublicKeyHex(keys.ContextWorkProof),
	})
}
