package services

import (
	"sort"

	"github.com/lafintiger/SanctumWriterPro-sub000/internal/core/domain"
	"github.com/lafintiger/SanctumWriterPro-sub000/internal/core/ports/driven"
)

// Ensure KeepMostRecent implements the interface.
var _ driven.EvictionPolicy = KeepMostRecent{}

// DefaultEvictKeep is how many documents per collection survive eviction.
const DefaultEvictKeep = 100

// KeepMostRecent keeps the PerCollection most recently updated documents in
// every collection and drops the rest. Ties on UpdatedAt break by ID.
type KeepMostRecent struct {
	PerCollection int
}

// Name returns the policy name.
func (p KeepMostRecent) Name() string {
	return "keep-most-recent"
}

// Evict returns a reduced copy of snapshot. Surviving documents keep their
// original relative order.
func (p KeepMostRecent) Evict(snapshot domain.Snapshot) (domain.Snapshot, []domain.EvictedDocument) {
	keep := p.PerCollection
	if keep < 0 {
		keep = 0
	}

	out := domain.NewSnapshot()
	var evicted []domain.EvictedDocument

	for _, c := range domain.AllCollections() {
		docs := snapshot[c]
		if len(docs) <= keep {
			out[c] = append(out[c], docs...)
			continue
		}

		order := make([]int, len(docs))
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(i, j int) bool {
			a, b := docs[order[i]], docs[order[j]]
			if !a.UpdatedAt.Equal(b.UpdatedAt) {
				return a.UpdatedAt.After(b.UpdatedAt)
			}
			return a.ID < b.ID
		})

		survives := make([]bool, len(docs))
		for _, idx := range order[:keep] {
			survives[idx] = true
		}
		for i, d := range docs {
			if survives[i] {
				out[c] = append(out[c], d)
			} else {
				evicted = append(evicted, domain.EvictedDocument{Collection: c, ID: d.ID})
			}
		}
	}

	return out, evicted
}
