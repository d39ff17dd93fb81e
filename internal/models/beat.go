package models

// Beat is one step of the sequential SHA-256 hash chain.
// Hash and Prev are 64-character lowercase hex strings.
type Beat struct {
	Index      uint64 `json:"index"`
	Hash       string `json:"hash"`
	Prev       string `json:"prev"`
	Nonce      string `json:"nonce,omitempty"`
	AnchorHash string `json:"anchor_hash,omitempty"`
}

// GlobalAnchor is a beat published to the public ledger. It is the
// global clock tick every timestamp and work proof binds to.
type GlobalAnchor struct {
	BeatIndex     uint64 `json:"beat_index"`
	Hash          string `json:"hash"`
	PrevHash      string `json:"prev_hash"`
	UTC           int64  `json:"utc"`
	Difficulty    uint32 `json:"difficulty"`
	Epoch         uint32 `json:"epoch"`
	SolanaEntropy string `json:"solana_entropy,omitempty"`
	Signature     string `json:"signature,omitempty"`
}

// SpotCheck exposes one beat of a chain so a verifier can recompute it.
type SpotCheck struct {
	Index uint64 `json:"index"`
	Hash  string `json:"hash"`
	Prev  string `json:"prev"`
	Nonce string `json:"nonce,omitempty"`
}

// CheckinProof is a claim that the prover computed the beats in
// (FromBeat, ToBeat], backed by spot checks.
type CheckinProof struct {
	FromBeat      uint64      `json:"from_beat"`
	ToBeat        uint64      `json:"to_beat"`
	FromHash      string      `json:"from_hash"`
	ToHash        string      `json:"to_hash"`
	BeatsComputed *uint64     `json:"beats_computed,omitempty"`
	AnchorHash    string      `json:"anchor_hash,omitempty"`
	SpotChecks    []SpotCheck `json:"spot_checks"`
}

// WorkProofRequest is a submission of N sequential beats at a declared
// difficulty, anchored to a recent global anchor.
type WorkProofRequest struct {
	FromHash      string      `json:"from_hash"`
	ToHash        string      `json:"to_hash"`
	BeatsComputed uint64      `json:"beats_computed"`
	Difficulty    uint32      `json:"difficulty"`
	AnchorIndex   uint64      `json:"anchor_index"`
	AnchorHash    string      `json:"anchor_hash,omitempty"`
	SpotChecks    []SpotCheck `json:"spot_checks"`
}
