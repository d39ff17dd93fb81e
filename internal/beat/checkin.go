package beat

import (
	"fmt"

	"github.com/provenonce/beats/internal/models"
)

// CheckinResult is the outcome of verifying a check-in proof.
type CheckinResult struct {
	Valid              bool
	Reason             string
	SpotChecksVerified int
}

func checkinFailure(format string, args ...interface{}) CheckinResult {
	return CheckinResult{Valid: false, Reason: fmt.Sprintf(format, args...)}
}

// VerifyCheckinProof validates a claim that the prover computed the
// beats in (from_beat, to_beat]. Each spot check is recomputed through
// the full hash chain at the given difficulty, carrying the proof's
// anchor hash if one is bound.
func VerifyCheckinProof(p models.CheckinProof, difficulty uint32) CheckinResult {
	if p.ToBeat <= p.FromBeat {
		return checkinFailure("Beat range must be forward-moving")
	}

	span := p.ToBeat - p.FromBeat
	if p.BeatsComputed != nil && *p.BeatsComputed != span {
		return checkinFailure("Beat count mismatch")
	}

	required := uint64(3)
	if span < required {
		required = span
	}
	if uint64(len(p.SpotChecks)) < required {
		return checkinFailure("Insufficient spot checks: need %d, got %d", required, len(p.SpotChecks))
	}

	hasEndpoint := false
	for _, sc := range p.SpotChecks {
		if sc.Index == p.ToBeat {
			hasEndpoint = true
			break
		}
	}
	if !hasEndpoint {
		return checkinFailure("Spot checks must include to_beat %d", p.ToBeat)
	}

	for _, sc := range p.SpotChecks {
		if sc.Prev == "" {
			return checkinFailure("Spot check %d missing prev hash", sc.Index)
		}
		b := models.Beat{
			Index:      sc.Index,
			Hash:       sc.Hash,
			Prev:       sc.Prev,
			Nonce:      sc.Nonce,
			AnchorHash: p.AnchorHash,
		}
		if !VerifyBeat(b, difficulty) {
			return checkinFailure("Spot check failed at index %d", sc.Index)
		}
	}

	return CheckinResult{Valid: true, SpotChecksVerified: len(p.SpotChecks)}
}
