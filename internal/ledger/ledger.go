// Package ledger abstracts the append-only public ledger Beats anchors
// to. All reads and confirmation checks happen at the ledger's
// strongest (finalized) commitment.
package ledger

import (
	"context"
	"errors"
	"strings"
)

// MinWriterBalance is the minimum writer balance, in minor units
// (lamports), below which publishes are refused.
const MinWriterBalance = 5000

var (
	// ErrEntropyUnavailable means the external entropy source could not
	// be read. Callers that mix entropy into anchors must fail closed.
	ErrEntropyUnavailable = errors.New("ledger: external entropy unavailable")

	// ErrLowBalance means the writer cannot afford to publish.
	ErrLowBalance = errors.New("ledger: writer balance below minimum")

	// ErrConfirmationTimeout means a published transaction did not
	// reach finalized within the polling window.
	ErrConfirmationTimeout = errors.New("ledger: confirmation timed out")
)

// MemoEntry is one memo observed at the writer address, newest first.
type MemoEntry struct {
	Signature          string
	ConfirmationStatus string
	Memo               string
}

// PublishResult identifies a finalized memo transaction.
type PublishResult struct {
	Signature string
	Slot      uint64
}

// Ledger is the capability surface Beats consumes from the ledger.
type Ledger interface {
	// WriterAddress is the base58 address anchors are published from.
	WriterAddress() string

	// RecentMemos returns up to limit finalized memos at the writer
	// address, newest first.
	RecentMemos(ctx context.Context, limit int) ([]MemoEntry, error)

	// PublishMemo submits a memo transaction and blocks until it is
	// finalized, polling status over HTTP.
	PublishMemo(ctx context.Context, payload []byte) (*PublishResult, error)

	// ExternalEntropy returns 32 bytes of recent ledger entropy,
	// base58-encoded, at finalized commitment.
	ExternalEntropy(ctx context.Context) (string, error)

	// AccountBalance returns the writer balance in minor units.
	AccountBalance(ctx context.Context) (uint64, error)
}

// Cluster maps an RPC endpoint to the cluster name used in explorer
// links. Defaults to mainnet-beta for unrecognized endpoints.
func Cluster(rpcURL string) string {
	switch {
	case strings.Contains(rpcURL, "devnet"):
		return "devnet"
	case strings.Contains(rpcURL, "testnet"):
		return "testnet"
	default:
		return "mainnet-beta"
	}
}

// ExplorerURL builds a transaction explorer link for the cluster the
// RPC endpoint belongs to.
func ExplorerURL(rpcURL, signature string) string {
	url := "https://explorer.solana.com/tx/" + signature
	if c := Cluster(rpcURL); c != "mainnet-beta" {
		url += "?cluster=" + c
	}
	return url
}
