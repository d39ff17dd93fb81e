package anchor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/provenonce/beats/internal/ledger"
)

// countingLedger wraps a MemLedger and counts memo reads.
type countingLedger struct {
	*ledger.MemLedger
	mu    sync.Mutex
	reads int
}

func (c *countingLedger) RecentMemos(ctx context.Context, limit int) ([]ledger.MemoEntry, error) {
	c.mu.Lock()
	c.reads++
	c.mu.Unlock()
	return c.MemLedger.RecentMemos(ctx, limit)
}

func (c *countingLedger) readCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads
}

func publishAnchor(t *testing.T, lg ledger.Ledger, index uint64) {
	t.Helper()
	memo, err := SerializeMemo(tip(index, h("a"), h("b")))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := lg.PublishMemo(context.Background(), memo); err != nil {
		t.Fatal(err)
	}
}

func TestCacheServesWithinTTL(t *testing.T) {
	lg := &countingLedger{MemLedger: ledger.NewMemLedger()}
	publishAnchor(t, lg, 3)

	now := time.Unix(0, 0)
	c := NewCache(lg, 10*time.Second)
	c.now = func() time.Time { return now }

	for i := 0; i < 5; i++ {
		got, err := c.Latest(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if got == nil || got.BeatIndex != 3 {
			t.Fatalf("got %+v", got)
		}
	}
	if lg.readCount() != 1 {
		t.Fatalf("ledger read %d times within TTL", lg.readCount())
	}
}

func TestCacheRefreshesAfterTTL(t *testing.T) {
	lg := &countingLedger{MemLedger: ledger.NewMemLedger()}
	publishAnchor(t, lg, 3)

	now := time.Unix(0, 0)
	c := NewCache(lg, 10*time.Second)
	c.now = func() time.Time { return now }

	if _, err := c.Latest(context.Background()); err != nil {
		t.Fatal(err)
	}

	publishAnchor(t, lg, 4)
	now = now.Add(11 * time.Second)

	got, err := c.Latest(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got.BeatIndex != 4 {
		t.Fatalf("stale anchor served after TTL: %+v", got)
	}
	if lg.readCount() != 2 {
		t.Fatalf("ledger read %d times", lg.readCount())
	}
}

func TestCacheInvalidate(t *testing.T) {
	lg := &countingLedger{MemLedger: ledger.NewMemLedger()}
	publishAnchor(t, lg, 3)

	c := NewCache(lg, time.Hour)
	if _, err := c.Latest(context.Background()); err != nil {
		t.Fatal(err)
	}

	publishAnchor(t, lg, 4)
	c.Invalidate()

	got, err := c.Latest(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got.BeatIndex != 4 {
		t.Fatalf("invalidate did not force a refresh: %+v", got)
	}
}

func TestCacheColdStart(t *testing.T) {
	lg := &countingLedger{MemLedger: ledger.NewMemLedger()}
	c := NewCache(lg, 10*time.Second)

	got, err := c.Latest(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatalf("empty ledger produced a tip: %+v", got)
	}
}
