package anchor

import (
	"strings"
	"testing"

	"github.com/provenonce/beats/internal/beat"
	"github.com/provenonce/beats/internal/models"
)

func tip(index uint64, hash, prev string) *models.GlobalAnchor {
	return &models.GlobalAnchor{
		BeatIndex:  index,
		Hash:       hash,
		PrevHash:   prev,
		UTC:        1767225600000 + int64(index),
		Difficulty: 1000,
	}
}

func h(c string) string { return strings.Repeat(c, 64) }

func TestSelectCanonicalPrefersLinkedChain(t *testing.T) {
	a0 := tip(0, h("a"), beat.GenesisPrevHash())
	a1 := tip(1, h("b"), h("a"))
	a2 := tip(2, h("c"), h("b"))
	unlinked := tip(3, h("f"), h("9"))

	got := SelectCanonical([]*models.GlobalAnchor{a0, a1, a2, unlinked})
	if got != a2 {
		t.Fatalf("selected %+v, want linked tip at index 2", got)
	}
}

func TestSelectCanonicalOrderInvariant(t *testing.T) {
	a0 := tip(0, h("a"), beat.GenesisPrevHash())
	a1 := tip(1, h("b"), h("a"))
	a2 := tip(2, h("c"), h("b"))
	unlinked := tip(5, h("f"), h("9"))

	orders := [][]*models.GlobalAnchor{
		{a0, a1, a2, unlinked},
		{unlinked, a2, a1, a0},
		{a2, unlinked, a0, a1},
		{a1, a0, unlinked, a2},
	}
	for i, in := range orders {
		if got := SelectCanonical(in); got.Hash != a2.Hash {
			t.Fatalf("order %d selected %+v", i, got)
		}
	}
}

func TestSelectCanonicalFallsBackToUnlinked(t *testing.T) {
	orphanLow := tip(3, h("d"), h("1"))
	orphanHigh := tip(9, h("e"), h("2"))

	got := SelectCanonical([]*models.GlobalAnchor{orphanLow, orphanHigh})
	if got != orphanHigh {
		t.Fatalf("selected %+v, want highest orphan", got)
	}
}

func TestSelectCanonicalHashTiebreak(t *testing.T) {
	// Two same-index orphans: lowest hash wins.
	x := tip(4, h("b"), h("1"))
	y := tip(4, h("a"), h("2"))

	got := SelectCanonical([]*models.GlobalAnchor{x, y})
	if got != y {
		t.Fatalf("selected hash %s, want %s", got.Hash, y.Hash)
	}
}

func TestSelectCanonicalDeduplicates(t *testing.T) {
	a := tip(0, h("a"), beat.GenesisPrevHash())
	dup := *a
	got := SelectCanonical([]*models.GlobalAnchor{a, &dup})
	if got == nil || got.Hash != a.Hash {
		t.Fatal("dedup changed the selection")
	}
}

func TestSelectCanonicalEmpty(t *testing.T) {
	if got := SelectCanonical(nil); got != nil {
		t.Fatalf("selected %+v from nothing", got)
	}
}

func TestIsContinuousNext(t *testing.T) {
	genesis := tip(0, h("a"), beat.GenesisPrevHash())
	next := tip(1, h("b"), h("a"))

	if !IsContinuousNext(nil, genesis) {
		t.Fatal("genesis rejected on empty chain")
	}
	if IsContinuousNext(nil, next) {
		t.Fatal("non-genesis accepted on empty chain")
	}
	if !IsContinuousNext(genesis, next) {
		t.Fatal("direct successor rejected")
	}

	replay := tip(0, h("c"), beat.GenesisPrevHash())
	if IsContinuousNext(genesis, replay) {
		t.Fatal("same-index replay accepted")
	}

	jump := tip(5, h("d"), h("a"))
	if IsContinuousNext(genesis, jump) {
		t.Fatal("index jump accepted")
	}

	wrongPrev := tip(1, h("e"), h("9"))
	if IsContinuousNext(genesis, wrongPrev) {
		t.Fatal("broken prev link accepted")
	}

	if IsContinuousNext(genesis, nil) {
		t.Fatal("nil incoming accepted")
	}
}
