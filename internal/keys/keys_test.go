package keys

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"testing"

	"github.com/mr-tron/base58"
)

func testSigner(t *testing.T) *Signer {
	t.Helper()
	seed := bytes.Repeat([]byte{7}, MasterSeedSize)
	s, err := NewSigner(seed)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestCanonicalJSONSortsKeys(t *testing.T) {
	got, err := CanonicalJSON(map[string]interface{}{"b": 2, "a": 1})
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `{"a":1,"b":2}` {
		t.Fatalf("canonical json = %s", got)
	}

	// Struct field order must not leak into the output.
	type payload struct {
		Zebra int    `json:"zebra"`
		Apple string `json:"apple"`
	}
	got, err = CanonicalJSON(payload{Zebra: 1, Apple: "x"})
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `{"apple":"x","zebra":1}` {
		t.Fatalf("canonical json = %s", got)
	}
}

func TestCanonicalJSONNestedAndNumbers(t *testing.T) {
	got, err := CanonicalJSON(map[string]interface{}{
		"utc":   int64(1767225600123),
		"inner": map[string]interface{}{"y": true, "x": nil},
		"list":  []interface{}{3, "s"},
	})
	if err != nil {
		t.Fatal(err)
	}
	want := `{"inner":{"x":null,"y":true},"list":[3,"s"],"utc":1767225600123}`
	if string(got) != want {
		t.Fatalf("canonical json = %s, want %s", got, want)
	}
}

func TestSignerKeySeparation(t *testing.T) {
	s := testSigner(t)
	ts, err := s.PublicKey(ContextTimestamp)
	if err != nil {
		t.Fatal(err)
	}
	wp, err := s.PublicKey(ContextWorkProof)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(ts, wp) {
		t.Fatal("timestamp and work-proof keys are identical")
	}
}

func TestSignerDeterministic(t *testing.T) {
	a := testSigner(t)
	b := testSigner(t)
	if a.PublicKeyHex(ContextTimestamp) != b.PublicKeyHex(ContextTimestamp) {
		t.Fatal("same seed derived different keys")
	}
}

func TestSignVerifyRoundTrip(t *testing.T) {
	s := testSigner(t)
	payload := map[string]interface{}{
		"type":         "timestamp",
		"hash":         "ab12",
		"anchor_index": 5,
		"utc":          1767225600123,
	}

	sig, err := s.Sign(ContextTimestamp, payload)
	if err != nil {
		t.Fatal(err)
	}

	pub, err := s.PublicKey(ContextTimestamp)
	if err != nil {
		t.Fatal(err)
	}
	if !Verify(pub, payload, sig) {
		t.Fatal("signature did not verify")
	}

	// A field change breaks the signature.
	payload["utc"] = 1767225600124
	if Verify(pub, payload, sig) {
		t.Fatal("tampered payload verified")
	}
	payload["utc"] = 1767225600123

	// The other context's key must not verify it.
	other, err := s.PublicKey(ContextWorkProof)
	if err != nil {
		t.Fatal(err)
	}
	if Verify(other, payload, sig) {
		t.Fatal("signature verified under the wrong context key")
	}
}

func TestPublicKeyEncodings(t *testing.T) {
	s := testSigner(t)
	pub, err := s.PublicKey(ContextWorkProof)
	if err != nil {
		t.Fatal(err)
	}

	fromHex, err := hex.DecodeString(s.PublicKeyHex(ContextWorkProof))
	if err != nil || !bytes.Equal(fromHex, pub) {
		t.Fatal("hex public key does not round-trip")
	}
	fromB58, err := base58.Decode(s.PublicKeyBase58(ContextWorkProof))
	if err != nil || !bytes.Equal(fromB58, pub) {
		t.Fatal("base58 public key does not round-trip")
	}
	if len(pub) != ed25519.PublicKeySize {
		t.Fatalf("public key is %d bytes", len(pub))
	}
}

func TestNewSignerFromKeypair(t *testing.T) {
	keypair := base58.Encode(bytes.Repeat([]byte{3}, ed25519.PrivateKeySize))
	s, err := NewSignerFromKeypair(keypair)
	if err != nil {
		t.Fatal(err)
	}
	if s.PublicKeyHex(ContextTimestamp) == "" {
		t.Fatal("no timestamp key derived")
	}

	if _, err := NewSignerFromKeypair("not-base58-0OIl"); err == nil {
		t.Fatal("bad keypair accepted")
	}
	if _, err := NewSignerFromKeypair(base58.Encode([]byte{1, 2, 3})); err == nil {
		t.Fatal("short keypair accepted")
	}
}

func TestSignUnknownContext(t *testing.T) {
	s := testSigner(t)
	if _, err := s.Sign("bogus", map[string]interface{}{}); err == nil {
		t.Fatal("unknown context accepted")
	}
}
