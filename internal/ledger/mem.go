package ledger

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sync"

	"github.com/mr-tron/base58"
)

// MemLedger is an in-memory ledger used by the test suite and for
// ephemeral dev runs. The failure knobs let tests exercise the
// fail-closed paths without a live ledger.
type MemLedger struct {
	mu     sync.Mutex
	memos  []MemoEntry
	seq    uint64
	writer string

	// Failure knobs.
	Balance     uint64
	FailEntropy bool
	ReadErr     error
	PublishErr  error

	// FixedEntropy, when set, is returned verbatim by ExternalEntropy.
	FixedEntropy string
}

// NewMemLedger returns an empty in-memory ledger with a healthy balance.
func NewMemLedger() *MemLedger {
	sum := sha256.Sum256([]byte("beats:mem-ledger:writer"))
	return &MemLedger{
		writer:  base58.Encode(sum[:]),
		Balance: 1_000_000_000,
	}
}

// WriterAddress returns the synthetic writer address.
func (l *MemLedger) WriterAddress() string {
	return l.writer
}

// RecentMemos returns the newest limit memos, newest first.
func (l *MemLedger) RecentMemos(ctx context.Context, limit int) ([]MemoEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ReadErr != nil {
		return nil, l.ReadErr
	}
	out := make([]MemoEntry, 0, limit)
	for i := len(l.memos) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, l.memos[i])
	}
	return out, nil
}

// PublishMemo appends a memo with a derived signature.
func (l *MemLedger) PublishMemo(ctx context.Context, payload []byte) (*PublishResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.PublishErr != nil {
		return nil, l.PublishErr
	}
	if l.Balance < MinWriterBalance {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrLowBalance, l.Balance, MinWriterBalance)
	}
	l.seq++
	sum := sha256.Sum256(append([]byte(fmt.Sprintf("%d:", l.seq)), payload...))
	sig := base58.Encode(sum[:])
	l.memos = append(l.memos, MemoEntry{
		Signature:          sig,
		ConfirmationStatus: "finalized",
		Memo:               string(payload),
	})
	return &PublishResult{Signature: sig, Slot: l.seq}, nil
}

// ExternalEntropy returns deterministic 32-byte entropy unless the
// failure knob is set.
func (l *MemLedger) ExternalEntropy(ctx context.Context) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.FailEntropy {
		return "", ErrEntropyUnavailable
	}
	if l.FixedEntropy != "" {
		return l.FixedEntropy, nil
	}
	sum := sha256.Sum256([]byte(fmt.Sprintf("beats:mem-ledger:entropy:%d", l.seq)))
	return base58.Encode(sum[:]), nil
}

// AccountBalance returns the configured balance.
func (l *MemLedger) AccountBalance(ctx context.Context) (uint64, error) {
	return l.Balance, nil
}

// MemoCount reports how many memos have been published.
func (l *MemLedger) MemoCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.memos)
}
