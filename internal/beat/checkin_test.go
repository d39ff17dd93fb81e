package beat

import (
	"strings"
	"testing"

	"github.com/provenonce/beats/internal/models"
)

// buildCheckinProof computes the beats in (from, to] and exposes the
// requested indices as spot checks.
func buildCheckinProof(t *testing.T, from, to uint64, difficulty uint32, anchorHash string, expose []uint64) models.CheckinProof {
	t.Helper()
	prev := GenesisPrevHash()
	byIndex := map[uint64]models.Beat{}
	for i := from + 1; i <= to; i++ {
		b := ComputeBeat(prev, i, difficulty, "", anchorHash)
		byIndex[i] = b
		prev = b.Hash
	}

	var checks []models.SpotCheck
	for _, idx := range expose {
		b, ok := byIndex[idx]
		if !ok {
			t.Fatalf("index %d outside computed range", idx)
		}
		checks = append(checks, models.SpotCheck{
			Index: b.Index,
			Hash:  b.Hash,
			Prev:  b.Prev,
		})
	}

	return models.CheckinProof{
		FromBeat:   from,
		ToBeat:     to,
		FromHash:   GenesisPrevHash(),
		ToHash:     byIndex[to].Hash,
		AnchorHash: anchorHash,
		SpotChecks: checks,
	}
}

func TestVerifyCheckinProofValid(t *testing.T) {
	p := buildCheckinProof(t, 100, 105, testDifficulty, "", []uint64{101, 103, 105})
	res := VerifyCheckinProof(p, testDifficulty)
	if !res.Valid {
		t.Fatalf("valid proof rejected: %s", res.Reason)
	}
	if res.SpotChecksVerified != 3 {
		t.Fatalf("spot_checks_verified = %d, want 3", res.SpotChecksVerified)
	}
}

func TestVerifyCheckinProofWithAnchorHash(t *testing.T) {
	anchorHash := strings.Repeat("ab", 32)
	p := buildCheckinProof(t, 0, 4, testDifficulty, anchorHash, []uint64{1, 2, 4})
	res := VerifyCheckinProof(p, testDifficulty)
	if !res.Valid {
		t.Fatalf("anchored proof rejected: %s", res.Reason)
	}

	// The same chain without the anchor binding must fail.
	p.AnchorHash = ""
	res = VerifyCheckinProof(p, testDifficulty)
	if res.Valid {
		t.Fatal("proof verified without its anchor binding")
	}
}

func TestVerifyCheckinProofBackwardRange(t *testing.T) {
	p := buildCheckinProof(t, 100, 105, testDifficulty, "", []uint64{101, 103, 105})
	p.ToBeat = 99
	res := VerifyCheckinProof(p, testDifficulty)
	if res.Valid || res.Reason != "Beat range must be forward-moving" {
		t.Fatalf("got %+v", res)
	}
}

func TestVerifyCheckinProofCountMismatch(t *testing.T) {
	p := buildCheckinProof(t, 100, 105, testDifficulty, "", []uint64{101, 103, 105})
	wrong := uint64(9)
	p.BeatsComputed = &wrong
	res := VerifyCheckinProof(p, testDifficulty)
	if res.Valid || res.Reason != "Beat count mismatch" {
		t.Fatalf("got %+v", res)
	}
}

func TestVerifyCheckinProofMissingEndpoint(t *testing.T) {
	p := buildCheckinProof(t, 100, 105, testDifficulty, "", []uint64{101, 102, 103})
	res := VerifyCheckinProof(p, testDifficulty)
	if res.Valid {
		t.Fatal("proof without the final beat accepted")
	}
	if !strings.Contains(res.Reason, "to_beat") {
		t.Fatalf("reason %q does not mention to_beat", res.Reason)
	}
}

func TestVerifyCheckinProofTooFewChecks(t *testing.T) {
	p := buildCheckinProof(t, 100, 110, testDifficulty, "", []uint64{105, 110})
	res := VerifyCheckinProof(p, testDifficulty)
	if res.Valid || !strings.Contains(res.Reason, "Insufficient spot checks") {
		t.Fatalf("got %+v", res)
	}
}

func TestVerifyCheckinProofShortRangeNeedsFewerChecks(t *testing.T) {
	// A 1-beat window only needs 1 spot check.
	p := buildCheckinProof(t, 7, 8, testDifficulty, "", []uint64{8})
	res := VerifyCheckinProof(p, testDifficulty)
	if !res.Valid {
		t.Fatalf("short-range proof rejected: %s", res.Reason)
	}
}

func TestVerifyCheckinProofMissingPrev(t *testing.T) {
	p := buildCheckinProof(t, 100, 105, testDifficulty, "", []uint64{101, 103, 105})
	p.SpotChecks[1].Prev = ""
	res := VerifyCheckinProof(p, testDifficulty)
	if res.Valid || !strings.Contains(res.Reason, "missing prev") {
		t.Fatalf("got %+v", res)
	}
}

func TestVerifyCheckinProofForgedCheck(t *testing.T) {
	p := buildCheckinProof(t, 100, 105, testDifficulty, "", []uint64{101, 103, 105})
	p.SpotChecks[0].Hash = strings.Repeat("0", 64)
	res := VerifyCheckinProof(p, testDifficulty)
	if res.Valid || !strings.Contains(res.Reason, "Spot check failed") {
		t.Fatalf("got %+v", res)
	}
}
