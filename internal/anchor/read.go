package anchor

import (
	"context"
	"fmt"

	"github.com/provenonce/beats/internal/ledger"
	"github.com/provenonce/beats/internal/models"
)

// DefaultScanLimit is how many recent memos are scanned for candidate
// tips on each read.
const DefaultScanLimit = 50

// ReadLatest scans recent memos at the writer address, parses anchor
// candidates, and returns the canonical tip. A (nil, nil) return means
// no anchor exists yet (cold start).
func ReadLatest(ctx context.Context, lg ledger.Ledger) (*models.GlobalAnchor, error) {
	memos, err := lg.RecentMemos(ctx, DefaultScanLimit)
	if err != nil {
		return nil, fmt.Errorf("read recent memos: %w", err)
	}

	var candidates []*models.GlobalAnchor
	for _, m := range memos {
		if a, ok := ParseMemo(m.Memo); ok {
			a.Signature = m.Signature
			candidates = append(candidates, a)
		}
	}
	return SelectCanonical(candidates), nil
}
