package anchor

import (
	"fmt"
	"sort"

	"github.com/provenonce/beats/internal/beat"
	"github.com/provenonce/beats/internal/models"
)

// candidate pairs a tip with its resolved chain depth.
type candidate struct {
	anchor *models.GlobalAnchor
	depth  int
	linked bool
}

func dedupKey(a *models.GlobalAnchor) string {
	return fmt.Sprintf("%d|%s|%s|%d|%d|%d", a.BeatIndex, a.Hash, a.PrevHash, a.UTC, a.Difficulty, a.Epoch)
}

// SelectCanonical picks the canonical tip from the anchors observed in
// the ledger. Tips whose prev links resolve through the candidate set
// (or that are genesis-rooted) are strictly preferred over orphans,
// then higher beat index, then deeper chain, then lowest hash.
// The result is invariant under input order.
func SelectCanonical(anchors []*models.GlobalAnchor) *models.GlobalAnchor {
	seen := map[string]struct{}{}
	var unique []*models.GlobalAnchor
	for _, a := range anchors {
		if a == nil {
			continue
		}
		k := dedupKey(a)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		unique = append(unique, a)
	}
	if len(unique) == 0 {
		return nil
	}

	byHash := map[string]*models.GlobalAnchor{}
	for _, a := range unique {
		byHash[a.Hash] = a
	}

	genesis := beat.GenesisPrevHash()
	cands := make([]candidate, 0, len(unique))
	for _, a := range unique {
		depth := chainDepth(a, byHash, len(unique))
		linked := (a.BeatIndex == 0 && a.PrevHash == genesis) || depth > 1
		cands = append(cands, candidate{anchor: a, depth: depth, linked: linked})
	}

	pool := cands
	var linkedPool []candidate
	for _, c := range cands {
		if c.linked {
			linkedPool = append(linkedPool, c)
		}
	}
	if len(linkedPool) > 0 {
		pool = linkedPool
	}

	sort.Slice(pool, func(i, j int) bool {
		a, b := pool[i], pool[j]
		if a.anchor.BeatIndex != b.anchor.BeatIndex {
			return a.anchor.BeatIndex > b.anchor.BeatIndex
		}
		if a.depth != b.depth {
			return a.depth > b.depth
		}
		return a.anchor.Hash < b.anchor.Hash
	})
	return pool[0].anchor
}

// chainDepth walks prev_hash references through the candidate set.
// Bounded by the set size so a reference cycle cannot loop forever.
func chainDepth(tip *models.GlobalAnchor, byHash map[string]*models.GlobalAnchor, max int) int {
	depth := 1
	cur := tip
	for depth <= max {
		next, ok := byHash[cur.PrevHash]
		if !ok {
			break
		}
		depth++
		cur = next
	}
	return depth
}

// IsContinuousNext reports whether incoming directly extends latest.
// A nil latest admits only the genesis anchor. Same-index replays and
// index jumps are rejected.
func IsContinuousNext(latest, incoming *models.GlobalAnchor) bool {
	if incoming == nil {
		return false
	}
	if len(incoming.Hash) != 64 || len(incoming.PrevHash) != 64 {
		return false
	}
	if latest == nil {
		return incoming.BeatIndex == 0 && incoming.PrevHash == beat.GenesisPrevHash()
	}
	return incoming.BeatIndex == latest.BeatIndex+1 && incoming.PrevHash == latest.Hash
}
