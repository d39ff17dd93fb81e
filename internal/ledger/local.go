package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/mr-tron/base58"

	"github.com/provenonce/beats/internal/storage"
)

// metaSeqKey tracks the append sequence in the meta column family.
var metaSeqKey = []byte("seq")

// LocalLedger is a Pebble-backed ledger for running the full service
// with no RPC node. Memos are an append-only log; signatures are
// derived from the payload and sequence, so the log is replayable.
type LocalLedger struct {
	mu sync.Mutex
	db *storage.PebbleDB

	writer string
	seq    uint64
}

// NewLocalLedger opens (or creates) a local ledger at path.
func NewLocalLedger(path string) (*LocalLedger, error) {
	db, err := storage.NewPebbleDB(path)
	if err != nil {
		return nil, err
	}

	l := &LocalLedger{db: db}

	sum := sha256.Sum256([]byte("beats:local-ledger:writer"))
	l.writer = base58.Encode(sum[:])

	raw, err := db.Get(storage.CFMeta, metaSeqKey)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("read local ledger sequence: %w", err)
	}
	if len(raw) == 8 {
		l.seq = binary.BigEndian.Uint64(raw)
	}
	return l, nil
}

// Close closes the underlying database.
func (l *LocalLedger) Close() error {
	return l.db.Close()
}

// WriterAddress returns the synthetic local writer address.
func (l *LocalLedger) WriterAddress() string {
	return l.writer
}

// RecentMemos returns the newest limit memos, newest first.
func (l *LocalLedger) RecentMemos(ctx context.Context, limit int) ([]MemoEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	vals, err := l.db.ScanAll(storage.CFMemos)
	if err != nil {
		return nil, fmt.Errorf("scan local memos: %w", err)
	}

	// ScanAll is oldest first; walk backwards and truncate.
	out := make([]MemoEntry, 0, limit)
	for i := len(vals) - 1; i >= 0 && len(out) < limit; i-- {
		var e MemoEntry
		if err := json.Unmarshal(vals[i], &e); err != nil {
			return nil, fmt.Errorf("decode local memo: %w", err)
		}
		out = append(out, e)
	}
	return out, nil
}

// PublishMemo appends a memo and returns its derived signature.
func (l *LocalLedger) PublishMemo(ctx context.Context, payload []byte) (*PublishResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.seq++
	var seqKey [8]byte
	binary.BigEndian.PutUint64(seqKey[:], l.seq)

	h := sha256.New()
	h.Write(seqKey[:])
	h.Write(payload)
	sig := base58.Encode(h.Sum(nil))

	entry, err := json.Marshal(MemoEntry{
		Signature:          sig,
		ConfirmationStatus: "finalized",
		Memo:               string(payload),
	})
	if err != nil {
		return nil, err
	}
	if err := l.db.Put(storage.CFMemos, seqKey[:], entry); err != nil {
		return nil, fmt.Errorf("append local memo: %w", err)
	}
	if err := l.db.Put(storage.CFMeta, metaSeqKey, seqKey[:]); err != nil {
		return nil, fmt.Errorf("persist local ledger sequence: %w", err)
	}
	return &PublishResult{Signature: sig, Slot: l.seq}, nil
}

// ExternalEntropy derives 32 bytes from the current sequence and clock.
func (l *LocalLedger) ExternalEntropy(ctx context.Context) (string, error) {
	l.mu.Lock()
	seq := l.seq
	l.mu.Unlock()

	sum := sha256.Sum256([]byte(fmt.Sprintf("beats:local-ledger:entropy:%d:%d", seq, time.Now().UnixNano())))
	return base58.Encode(sum[:]), nil
}

// AccountBalance reports a balance comfortably above the publish floor.
func (l *LocalLedger) AccountBalance(ctx context.Context) (uint64, error) {
	return 1_000_000_000, nil
}
