package beat

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/provenonce/beats/internal/models"
)

// ChainResult is the outcome of verifying a beat chain.
type ChainResult struct {
	Valid   bool
	Checked int
	Failed  []int
}

// SampleIndices deterministically selects spot-check positions for a
// chain of n beats. The selection is a pure function of
// (n, difficulty, firstHash, lastHash) so a prover cannot retry a
// request hoping for a friendlier sample.
//
// The endpoints are always sampled, then the midpoint and quartiles as
// the chain grows. Further picks are drawn by iterating SHA-256 over a
// material string and folding the first 32 bits of each digest modulo n.
func SampleIndices(n int, difficulty uint32, firstHash, lastHash string, count int) []int {
	if n <= 0 {
		return nil
	}
	if count > n {
		count = n
	}
	if count < 1 {
		count = 1
	}

	picked := map[int]struct{}{0: {}, n - 1: {}}
	if n >= 4 {
		picked[n/2] = struct{}{}
	}
	if n >= 8 {
		picked[n/4] = struct{}{}
		picked[3*n/4] = struct{}{}
	}

	material := fmt.Sprintf("%d:%d:%s:%s", n, difficulty, firstHash, lastHash)
	for len(picked) < count {
		sum := sha256.Sum256([]byte(material))
		material = hex.EncodeToString(sum[:])
		idx := int(binary.BigEndian.Uint32(sum[:4]) % uint32(n))
		picked[idx] = struct{}{}
	}

	out := make([]int, 0, len(picked))
	for i := range picked {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// VerifyBeatChain checks prev/hash linkage over the whole chain and
// recomputes a deterministic sample of beats at the given difficulty.
func VerifyBeatChain(beats []models.Beat, difficulty uint32, spotCount int) ChainResult {
	n := len(beats)
	if n == 0 {
		return ChainResult{Valid: false}
	}

	failed := map[int]struct{}{}
	for i := 1; i < n; i++ {
		if beats[i].Prev != beats[i-1].Hash {
			failed[i] = struct{}{}
		}
	}

	sample := SampleIndices(n, difficulty, beats[0].Hash, beats[n-1].Hash, spotCount)
	for _, i := range sample {
		if !VerifyBeat(beats[i], difficulty) {
			failed[i] = struct{}{}
		}
	}

	res := ChainResult{Checked: len(sample)}
	for i := range failed {
		res.Failed = append(res.Failed, i)
	}
	sort.Ints(res.Failed)
	res.Valid = len(res.Failed) == 0
	return res
}
