package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/provenonce/beats/internal/beat"
	"github.com/provenonce/beats/internal/models"
)

// MaxChainBeats caps the chain verify mode.
const MaxChainBeats = 1000

// defaultChainSpotChecks is used when the caller does not choose.
const defaultChainSpotChecks = 5

// VerifyHandler serves the beat/chain/proof verification endpoint.
type VerifyHandler struct{}

// NewVerifyHandler creates a new VerifyHandler
func NewVerifyHandler() *VerifyHandler {
	return &VerifyHandler{}
}

// verifyRequest is the tagged envelope of the verify endpoint; the mode
// field selects which variant fields must be present.
type verifyRequest struct {
	Mode       string               `json:"mode"`
	Beat       *models.Beat         `json:"beat,omitempty"`
	Beats      []models.Beat        `json:"beats,omitempty"`
	SpotChecks *int                 `json:"spot_checks,omitempty"`
	Proof      *models.CheckinProof `json:"proof,omitempty"`
	Difficulty *uint32              `json:"difficulty,omitempty"`
}

func (r *verifyRequest) difficulty() uint32 {
	if r.Difficulty == nil {
		return beat.DefaultDifficulty
	}
	return *r.Difficulty
}

// GetMeta describes the endpoint
// GET /api/v1/beat/verify
func (h *VerifyHandler) GetMeta(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"modes": []string{"beat", "chain", "proof"},
		"limits": gin.H{
			"max_chain_beats":      MaxChainBeats,
			"max_spot_checks":      beat.PublicMaxSpotChecks,
			"max_difficulty":       beat.PublicMaxDifficulty,
			"min_proof_difficulty": beat.MinDifficulty,
			"default_difficulty":   beat.DefaultDifficulty,
		},
	})
}

// Post dispatches on mode
// POST /api/v1/beat/verify
func (h *VerifyHandler) Post(c *gin.Context) {
	var req verifyRequest
	if !bindJSON(c, &req) {
		return
	}

	switch req.Mode {
	case "beat":
		h.verifyBeat(c, &req)
	case "chain":
		h.verifyChain(c, &req)
	case "proof":
		h.verifyProof(c, &req)
	default:
		badRequest(c, "mode must be one of: beat, chain, proof")
	}
}

func (h *VerifyHandler) verifyBeat(c *gin.Context, req *verifyRequest) {
	if req.Beat == nil {
		badRequest(c, "beat mode requires a beat object")
		return
	}
	b := *req.Beat
	if !hexHashRe.MatchString(b.Hash) {
		badRequest(c, "beat.hash must be 64 lowercase hex characters")
		return
	}
	if b.Prev == "" {
		badRequest(c, "beat.prev is required")
		return
	}

	difficulty := beat.ClampPublicDifficulty(req.difficulty())
	valid := beat.VerifyBeat(b, difficulty)

	c.JSON(http.StatusOK, gin.H{
		"valid":      valid,
		"beat_index": b.Index,
		"difficulty": difficulty,
	})
}

func (h *VerifyHandler) verifyChain(c *gin.Context, req *verifyRequest) {
	n := len(req.Beats)
	if n == 0 {
		badRequest(c, "chain mode requires a non-empty beats array")
		return
	}
	if n > MaxChainBeats {
		badRequest(c, "beats array exceeds the maximum of 1000")
		return
	}

	spotChecks := defaultChainSpotChecks
	if req.SpotChecks != nil {
		spotChecks = *req.SpotChecks
	}
	if spotChecks < 1 {
		spotChecks = 1
	}
	if spotChecks > beat.PublicMaxSpotChecks {
		spotChecks = beat.PublicMaxSpotChecks
	}

	difficulty := beat.ClampPublicDifficulty(req.difficulty())
	res := beat.VerifyBeatChain(req.Beats, difficulty, spotChecks)

	failed := res.Failed
	if failed == nil {
		failed = []int{}
	}
	c.JSON(http.StatusOK, gin.H{
		"valid":          res.Valid,
		"chain_length":   n,
		"beats_checked":  res.Checked,
		"failed_indices": failed,
	})
}

func (h *VerifyHandler) verifyProof(c *gin.Context, req *verifyRequest) {
	if req.Proof == nil {
		badRequest(c, "proof mode requires a proof object")
		return
	}
	p := *req.Proof
	if p.FromHash == "" || p.ToHash == "" {
		badRequest(c, "proof requires from_hash and to_hash")
		return
	}
	if len(p.SpotChecks) > beat.PublicMaxSpotChecks {
		badRequest(c, "spot_checks exceeds the maximum of 25")
		return
	}

	difficulty := beat.ClampPublicDifficulty(req.difficulty())
	res := beat.VerifyCheckinProof(p, difficulty)

	resp := gin.H{
		"valid":                res.Valid,
		"spot_checks_verified": res.SpotChecksVerified,
	}
	if res.Reason != "" {
		resp["reason"] = res.Reason
	}
	c.JSON(http.StatusOK, resp)
}
