// Package keys holds the receipt signing key hierarchy. A single
// process-wide anchor secret is expanded through HKDF-SHA-256 into
// per-context Ed25519 subkeys, so a leaked receipt key never exposes
// the ledger writer key and the two receipt types cannot be confused
// for each other.
package keys

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/hkdf"
)

// Signing contexts. Each context derives an independent subkey; the
// context string doubles as the HKDF info parameter.
const (
	ContextTimestamp = "provenonce:beats:timestamp-receipt:v1"
	ContextWorkProof = "provenonce:beats:work-proof:v1"
)

// MasterSeedSize is the size of the HKDF master seed.
const MasterSeedSize = 32

// Signer owns the derived receipt keys. Immutable after construction;
// safe for concurrent use.
type Signer struct {
	timestampKey ed25519.PrivateKey
	workProofKey ed25519.PrivateKey
}

// NewSigner derives the receipt subkeys from a 32-byte master seed.
// The seed is the first half of the base58 ledger writer keypair.
func NewSigner(masterSeed []byte) (*Signer, error) {
	if len(masterSeed) != MasterSeedSize {
		return nil, fmt.Errorf("master seed must be %d bytes, got %d", MasterSeedSize, len(masterSeed))
	}
	ts, err := deriveKey(masterSeed, ContextTimestamp)
	if err != nil {
		return nil, err
	}
	wp, err := deriveKey(masterSeed, ContextWorkProof)
	if err != nil {
		return nil, err
	}
	return &Signer{timestampKey: ts, workProofKey: wp}, nil
}

// NewSignerFromKeypair derives the subkeys from a base58-encoded
// Ed25519 keypair (the ledger writer secret).
func NewSignerFromKeypair(keypairB58 string) (*Signer, error) {
	raw, err := base58.Decode(keypairB58)
	if err != nil {
		return nil, fmt.Errorf("decode keypair: %w", err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("keypair must decode to %d bytes, got %d", ed25519.PrivateKeySize, len(raw))
	}
	return NewSigner(raw[:MasterSeedSize])
}

// deriveKey expands the master seed into a context-bound Ed25519 key.
// Empty salt, context string as info.
func deriveKey(masterSeed []byte, context string) (ed25519.PrivateKey, error) {
	r := hkdf.New(sha256.New, masterSeed, nil, []byte(context))
	seed := make([]byte, ed25519.SeedSize)
	if _, err := io.ReadFull(r, seed); err != nil {
		return nil, fmt.Errorf("hkdf expand %q: %w", context, err)
	}
	return ed25519.NewKeyFromSeed(seed), nil
}

func (s *Signer) key(context string) (ed25519.PrivateKey, error) {
	switch context {
	case ContextTimestamp:
		return s.timestampKey, nil
	case ContextWorkProof:
		return s.workProofKey, nil
	}
	return nil, fmt.Errorf("unknown signing context %q", context)
}

// Sign signs the canonical JSON of payload with the context's subkey
// and returns the base58 signature.
func (s *Signer) Sign(context string, payload interface{}) (string, error) {
	priv, err := s.key(context)
	if err != nil {
		return "", err
	}
	msg, err := CanonicalJSON(payload)
	if err != nil {
		return "", err
	}
	sig := ed25519.Sign(priv, msg)
	return base58.Encode(sig), nil
}

// PublicKey returns the raw public key for a signing context.
func (s *Signer) PublicKey(context string) (ed25519.PublicKey, error) {
	priv, err := s.key(context)
	if err != nil {
		return nil, err
	}
	return priv.Public().(ed25519.PublicKey), nil
}

// PublicKeyHex returns the hex encoding of the 32-byte public key.
func (s *Signer) PublicKeyHex(context string) string {
	pub, err := s.PublicKey(context)
	if err != nil {
		return ""
	}
	return hex.EncodeToString(pub)
}

// PublicKeyBase58 returns the base58 encoding of the public key.
func (s *Signer) PublicKeyBase58(context string) string {
	pub, err := s.PublicKey(context)
	if err != nil {
		return ""
	}
	return base58.Encode(pub)
}

// Verify checks a base58 receipt signature against the canonical JSON
// of payload. This is the same computation any third-party verifier
// performs with the published public key.
func Verify(pub ed25519.PublicKey, payload interface{}, sigB58 string) bool {
	sig, err := base58.Decode(sigB58)
	if err != nil {
		return false
	}
	msg, err := CanonicalJSON(payload)
	if err != nil {
		return false
	}
	return ed25519.Verify(pub, msg, sig)
}
