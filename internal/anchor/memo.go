// Package anchor implements the anchor memo codec, the continuity-aware
// canonical tip selection, and the read-through anchor cache.
package anchor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/provenonce/beats/internal/models"
)

// MaxMemoBytes is the ledger's memo size limit.
const MaxMemoBytes = 566

var (
	hexHashRe    = regexp.MustCompile(`^[0-9a-f]{64}$`)
	memoPrefixRe = regexp.MustCompile(`^\[\d+\] `)
)

// anchorMemo is the wire shape of an anchor memo. Field order here is
// the serialization order; note the previous hash travels as "prev".
type anchorMemo struct {
	V             int    `json:"v"`
	Type          string `json:"type"`
	BeatIndex     uint64 `json:"beat_index"`
	Hash          string `json:"hash"`
	Prev          string `json:"prev"`
	UTC           int64  `json:"utc"`
	Difficulty    uint32 `json:"difficulty"`
	Epoch         uint32 `json:"epoch"`
	SolanaEntropy string `json:"solana_entropy,omitempty"`
}

// ParseMemo decodes a ledger memo into a GlobalAnchor. A false return
// means "not an anchor memo" — unparseable or off-shape memos are an
// expected part of scanning a shared writer address, not an error.
// The ledger may prefix memos with "[n] "; the prefix is stripped.
func ParseMemo(memo string) (*models.GlobalAnchor, bool) {
	memo = memoPrefixRe.ReplaceAllString(memo, "")

	var raw map[string]json.RawMessage
	dec := json.NewDecoder(bytes.NewReader([]byte(memo)))
	if err := dec.Decode(&raw); err != nil {
		return nil, false
	}

	var m anchorMemo
	if err := json.Unmarshal([]byte(memo), &m); err != nil {
		return nil, false
	}
	if m.V != 1 || m.Type != "anchor" {
		return nil, false
	}
	if !hexHashRe.MatchString(m.Hash) || !hexHashRe.MatchString(m.Prev) {
		return nil, false
	}
	if m.Difficulty == 0 || m.UTC < 0 {
		return nil, false
	}
	// beat_index, utc, difficulty, epoch must be plain non-negative
	// integers on the wire, not floats or strings.
	for _, field := range []string{"beat_index", "utc", "difficulty", "epoch"} {
		v, ok := raw[field]
		if !ok {
			if field == "epoch" {
				continue
			}
			return nil, false
		}
		if !isNonNegativeInteger(v) {
			return nil, false
		}
	}

	return &models.GlobalAnchor{
		BeatIndex:     m.BeatIndex,
		Hash:          m.Hash,
		PrevHash:      m.Prev,
		UTC:           m.UTC,
		Difficulty:    m.Difficulty,
		Epoch:         m.Epoch,
		SolanaEntropy: m.SolanaEntropy,
	}, true
}

func isNonNegativeInteger(raw json.RawMessage) bool {
	s := bytes.TrimSpace(raw)
	if len(s) == 0 || s[0] == '-' {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// SerializeMemo encodes an anchor as its canonical wire memo and
// enforces the ledger size limit.
func SerializeMemo(a *models.GlobalAnchor) ([]byte, error) {
	m := anchorMemo{
		V:             1,
		Type:          "anchor",
		BeatIndex:     a.BeatIndex,
		Hash:          a.Hash,
		Prev:          a.PrevHash,
		UTC:           a.UTC,
		Difficulty:    a.Difficulty,
		Epoch:         a.Epoch,
		SolanaEntropy: a.SolanaEntropy,
	}
	out, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("serialize anchor memo: %w", err)
	}
	if len(out) > MaxMemoBytes {
		return nil, fmt.Errorf("anchor memo is %d bytes, limit %d", len(out), MaxMemoBytes)
	}
	return out, nil
}
