package beat

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mr-tron/base58"

	"github.com/provenonce/beats/internal/models"
)

// Protocol constants. These are interoperability-critical: any change
// breaks agreement with existing verifiers.
const (
	// GenesisString seeds the previous hash of beat index 0.
	GenesisString = "provenonce:beat:genesis:v1:2026"

	// AnchorDomainV3 is the 19-byte domain prefix of the V3 anchor preimage.
	AnchorDomainV3 = "PROVENONCE_BEATS_V1"

	MinDifficulty       = 100
	MaxDifficulty       = 1_000_000
	PublicMaxDifficulty = 5000
	PublicMaxSpotChecks = 25

	DefaultDifficulty = 1000

	// AnchorIntervalMs is the target cadence of anchor publication.
	AnchorIntervalMs = 60_000

	// AnchorGraceWindow is how many anchors a proof's referenced anchor
	// may lag the current tip before it is stale.
	AnchorGraceWindow = 5
)

// sha256Hex hashes a string and returns the lowercase hex digest.
func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// GenesisPrevHash returns the prev hash of beat index 0.
func GenesisPrevHash() string {
	return sha256Hex(GenesisString)
}

// seedString builds the chain seed for a beat. The chain is defined over
// 64-character lowercase hex strings, not raw bytes, so independent
// implementations agree byte-for-byte.
func seedString(prev string, index uint64, nonce, anchorHash string) string {
	var b strings.Builder
	b.WriteString(prev)
	b.WriteByte(':')
	b.WriteString(strconv.FormatUint(index, 10))
	if nonce != "" {
		b.WriteByte(':')
		b.WriteString(nonce)
	}
	if anchorHash != "" {
		b.WriteByte(':')
		b.WriteString(anchorHash)
	}
	return b.String()
}

// ComputeBeat computes one beat: the seed is hashed once, then the hex
// digest is re-hashed difficulty times. Iteration over the hex string is
// mandatory; hashing raw digest bytes produces a different chain.
func ComputeBeat(prev string, index uint64, difficulty uint32, nonce, anchorHash string) models.Beat {
	h := sha256Hex(seedString(prev, index, nonce, anchorHash))
	for i := uint32(0); i < difficulty; i++ {
		h = sha256Hex(h)
	}
	return models.Beat{
		Index:      index,
		Hash:       h,
		Prev:       prev,
		Nonce:      nonce,
		AnchorHash: anchorHash,
	}
}

// VerifyBeat recomputes a beat at the given difficulty and compares.
func VerifyBeat(b models.Beat, difficulty uint32) bool {
	if b.Hash == "" || b.Prev == "" {
		return false
	}
	got := ComputeBeat(b.Prev, b.Index, difficulty, b.Nonce, b.AnchorHash)
	return got.Hash == b.Hash
}

// ComputeAnchorHashV3 hashes the 91-byte V3 preimage once:
// domain(19) || prev_hash(32) || beat_index u64 BE (8) || entropy(32).
// There is no difficulty iteration in V3.
func ComputeAnchorHashV3(prevHash string, beatIndex uint64, entropy string) (string, error) {
	prevBytes, err := hex.DecodeString(prevHash)
	if err != nil {
		return "", fmt.Errorf("invalid prev hash: %w", err)
	}
	if len(prevBytes) != 32 {
		return "", fmt.Errorf("prev hash must be 32 bytes, got %d", len(prevBytes))
	}
	entropyBytes, err := base58.Decode(entropy)
	if err != nil {
		return "", fmt.Errorf("invalid entropy: %w", err)
	}
	if len(entropyBytes) != 32 {
		return "", fmt.Errorf("entropy must be 32 bytes, got %d", len(entropyBytes))
	}

	preimage := make([]byte, 0, 91)
	preimage = append(preimage, []byte(AnchorDomainV3)...)
	preimage = append(preimage, prevBytes...)
	var idx [8]byte
	binary.BigEndian.PutUint64(idx[:], beatIndex)
	preimage = append(preimage, idx[:]...)
	preimage = append(preimage, entropyBytes...)

	sum := sha256.Sum256(preimage)
	return hex.EncodeToString(sum[:]), nil
}

// anchorNonceV1 is the nonce of the legacy V1 anchor formula.
func anchorNonceV1(utc int64, epoch uint32) string {
	return "anchor:" + strconv.FormatInt(utc, 10) + ":" + strconv.FormatUint(uint64(epoch), 10)
}

// CreateGlobalAnchor computes the next anchor after prev, stamped with
// the current wall clock. A nil prev produces the genesis anchor at
// beat index 0. When entropy is present the V3 formula is used,
// otherwise legacy V1.
func CreateGlobalAnchor(prev *models.GlobalAnchor, difficulty, epoch uint32, entropy string) (*models.GlobalAnchor, error) {
	return CreateGlobalAnchorAt(prev, difficulty, epoch, entropy, time.Now().UnixMilli())
}

// CreateGlobalAnchorAt is CreateGlobalAnchor with an explicit utc, for
// callers that own the clock.
func CreateGlobalAnchorAt(prev *models.GlobalAnchor, difficulty, epoch uint32, entropy string, utc int64) (*models.GlobalAnchor, error) {
	if difficulty == 0 {
		return nil, fmt.Errorf("difficulty must be positive")
	}

	var index uint64
	prevHash := GenesisPrevHash()
	if prev != nil {
		index = prev.BeatIndex + 1
		prevHash = prev.Hash
	}

	a := &models.GlobalAnchor{
		BeatIndex:     index,
		PrevHash:      prevHash,
		UTC:           utc,
		Difficulty:    difficulty,
		Epoch:         epoch,
		SolanaEntropy: entropy,
	}

	if entropy != "" {
		h, err := ComputeAnchorHashV3(prevHash, index, entropy)
		if err != nil {
			return nil, err
		}
		a.Hash = h
	} else {
		b := ComputeBeat(prevHash, index, difficulty, anchorNonceV1(utc, epoch), "")
		a.Hash = b.Hash
	}
	return a, nil
}

// VerifyGlobalAnchor recomputes an anchor's hash, dispatching on the
// presence of entropy (V3 vs legacy V1).
func VerifyGlobalAnchor(a *models.GlobalAnchor) bool {
	if a == nil || a.Difficulty == 0 {
		return false
	}
	if len(a.Hash) != 64 || len(a.PrevHash) != 64 {
		return false
	}
	if a.UTC < 0 {
		return false
	}
	if a.SolanaEntropy != "" {
		h, err := ComputeAnchorHashV3(a.PrevHash, a.BeatIndex, a.SolanaEntropy)
		if err != nil {
			return false
		}
		return h == a.Hash
	}
	b := ComputeBeat(a.PrevHash, a.BeatIndex, a.Difficulty, anchorNonceV1(a.UTC, a.Epoch), "")
	return b.Hash == a.Hash
}

// ClampPublicDifficulty bounds a caller-chosen difficulty for the public
// verify endpoints. Low difficulties stay verifiable (test vectors use
// small values); the ceiling caps per-request CPU.
func ClampPublicDifficulty(d uint32) uint32 {
	if d < 1 {
		return 1
	}
	if d > PublicMaxDifficulty {
		return PublicMaxDifficulty
	}
	return d
}
