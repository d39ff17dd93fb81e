package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/provenonce/beats/internal/anchor"
	"github.com/provenonce/beats/internal/keys"
)

// AnchorHandler serves the canonical tip and the public receipt keys.
type AnchorHandler struct {
	cache  *anchor.Cache
	signer *keys.Signer
}

// NewAnchorHandler creates a new AnchorHandler
func NewAnchorHandler(cache *anchor.Cache, signer *keys.Signer) *AnchorHandler {
	return &AnchorHandler{cache: cache, signer: signer}
}

// GetAnchor returns the canonical tip with a signed anchor receipt
// GET /api/v1/beat/anchor
func (h *AnchorHandler) GetAnchor(c *gin.Context) {
	tip, err := h.cache.Latest(c.Request.Context())
	if err != nil {
		unavailable(c, "Failed to read anchor chain")
		return
	}
	if tip == nil {
		unavailable(c, "No anchor available yet")
		return
	}

	payload := gin.H{
		"type":       "anchor",
		"beat_index": tip.BeatIndex,
		"hash":       tip.Hash,
		"prev_hash":  tip.PrevHash,
		"utc":        tip.UTC,
		"difficulty": tip.Difficulty,
		"epoch":      tip.Epoch,
	}
	if tip.SolanaEntropy != "" {
		payload["solana_entropy"] = tip.SolanaEntropy
	}

	sig, err := h.signer.Sign(keys.ContextTimestamp, payload)
	if err != nil {
		log.Printf("[API] Anchor receipt signing failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to sign anchor receipt"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"anchor": tip,
		"receipt": gin.H{
			"payload":         payload,
			"signature":       sig,
			"public_key":      h.signer.PublicKeyHex(keys.ContextTimestamp),
			"signing_context": keys.ContextTimestamp,
		},
	})
}

// GetKeys returns both receipt public keys
// GET /api/v1/beat/key
func (h *AnchorHandler) GetKeys(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"algorithm": "Ed25519",
		"keys": gin.H{
			"timestamp": gin.H{
				"public_key_hex":    h.signer.PublicKeyHex(keys.ContextTimestamp),
				"public_key_base58": h.signer.PublicKeyBase58(keys.ContextTimestamp),
				"signing_context":   keys.ContextTimestamp,
			},
			"work_proof": gin.H{
				"public_key_hex":    h.signer.PublicKeyHex(keys.ContextWorkProof),
				"public_key_base58": h.signer.PublicKeyBase58(keys.ContextWorkProof),
				"signing_context":   keys.ContextWorkProof,
			},
		},
	})
}
