// Package cron advances the anchor chain. The state machine is driven
// by an external scheduler hitting the cron endpoint (and optionally an
// internal ticker); the ledger itself is the only persistence, so a
// crashed run leaves nothing to recover.
package cron

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/provenonce/beats/internal/anchor"
	"github.com/provenonce/beats/internal/beat"
	"github.com/provenonce/beats/internal/ledger"
)

// Result reports one advancement attempt.
type Result struct {
	Status      string `json:"status"` // "generated" or "skipped"
	Reason      string `json:"reason,omitempty"`
	BeatIndex   uint64 `json:"beat_index,omitempty"`
	Hash        string `json:"hash,omitempty"`
	TxSignature string `json:"tx_signature,omitempty"`
	NextAt      int64  `json:"next_at,omitempty"`
	ElapsedMs   int64  `json:"elapsed_ms"`
}

// Advancer computes and publishes the next anchor.
type Advancer struct {
	lg         ledger.Ledger
	cache      *anchor.Cache
	intervalMs int64
	difficulty uint32
	now        func() time.Time
}

// NewAdvancer wires an advancer. The cache is invalidated after every
// successful publish so serving paths pick up the new tip promptly.
func NewAdvancer(lg ledger.Ledger, cache *anchor.Cache, intervalMs int64, defaultDifficulty uint32) *Advancer {
	if intervalMs <= 0 {
		intervalMs = beat.AnchorIntervalMs
	}
	if defaultDifficulty == 0 {
		defaultDifficulty = beat.DefaultDifficulty
	}
	return &Advancer{
		lg:         lg,
		cache:      cache,
		intervalMs: intervalMs,
		difficulty: defaultDifficulty,
		now:        time.Now,
	}
}

// Advance runs one pass of the state machine: read tip, gate on
// freshness, fetch entropy, compute the next anchor, publish.
//
// Entropy failures abort before anything is computed: the chain must
// not advance on a V1 fallback once V3 is in effect. Publish failures
// likewise leave the tip untouched; the next invocation re-reads the
// ledger and starts over.
func (a *Advancer) Advance(ctx context.Context) (*Result, error) {
	start := a.now()
	elapsed := func() int64 { return a.now().Sub(start).Milliseconds() }

	tip, err := anchor.ReadLatest(ctx, a.lg)
	if err != nil {
		return &Result{ElapsedMs: elapsed()}, err
	}

	if tip != nil {
		age := a.now().UnixMilli() - tip.UTC
		if age <= a.intervalMs {
			return &Result{
				Status:    "skipped",
				Reason:    "anchor_still_fresh",
				BeatIndex: tip.BeatIndex,
				NextAt:    tip.UTC + a.intervalMs,
				ElapsedMs: elapsed(),
			}, nil
		}
	}

	entropy, err := a.lg.ExternalEntropy(ctx)
	if err != nil {
		return &Result{ElapsedMs: elapsed()}, fmt.Errorf("fetch entropy: %w", err)
	}
	if entropy == "" {
		return &Result{ElapsedMs: elapsed()}, ledger.ErrEntropyUnavailable
	}

	difficulty := a.difficulty
	epoch := uint32(0)
	if tip != nil {
		if tip.Difficulty > 0 {
			difficulty = tip.Difficulty
		}
		epoch = tip.Epoch
	}

	next, err := beat.CreateGlobalAnchorAt(tip, difficulty, epoch, entropy, a.now().UnixMilli())
	if err != nil {
		return &Result{ElapsedMs: elapsed()}, fmt.Errorf("compute next anchor: %w", err)
	}

	memo, err := anchor.SerializeMemo(next)
	if err != nil {
		return &Result{ElapsedMs: elapsed()}, err
	}

	pub, err := a.lg.PublishMemo(ctx, memo)
	if err != nil {
		return &Result{ElapsedMs: elapsed()}, fmt.Errorf("publish anchor memo: %w", err)
	}

	if a.cache != nil {
		a.cache.Invalidate()
	}
	log.Printf("[CRON] Anchor %d published, hash %s..., tx %s", next.BeatIndex, next.Hash[:16], pub.Signature)

	return &Result{
		Status:      "generated",
		BeatIndex:   next.BeatIndex,
		Hash:        next.Hash,
		TxSignature: pub.Signature,
		ElapsedMs:   elapsed(),
	}, nil
}

// Run drives Advance on an internal ticker until the context ends.
// Used when no external scheduler is configured; the freshness gate
// keeps this and the cron endpoint from double-publishing.
func (a *Advancer) Run(ctx context.Context) {
	interval := time.Duration(a.intervalMs) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("[CRON] Self-scheduling anchor advancement every %v", interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			res, err := a.Advance(ctx)
			if err != nil {
				log.Printf("[CRON] Advancement failed: %v", err)
				continue
			}
			if res.Status == "skipped" {
				log.Printf("[CRON] Skipped: %s, next at %d", res.Reason, res.NextAt)
			}
		}
	}
}
