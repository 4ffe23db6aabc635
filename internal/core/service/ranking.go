package service

import (
	"cmp"
	"slices"
	"sync"

	"github.com/rl1809/comic-store/internal/core/domain"
)

// RankingIndex keeps users ordered by purchased quantity, descending, then RUT ascending.
// Updates move a single entry instead of resorting.
type RankingIndex struct {
	mu      sync.RWMutex
	entries []domain.RankEntry
	byRut   map[string]domain.RankEntry
}

func NewRankingIndex() *RankingIndex {
	return &RankingIndex{byRut: make(map[string]domain.RankEntry)}
}

func compareRank(a, b domain.RankEntry) int {
	if n := cmp.Compare(b.Total, a.Total); n != 0 {
		return n
	}
	return cmp.Compare(a.Rut, b.Rut)
}

// Upsert places rut at the position its total earns, replacing any previous entry.
func (r *RankingIndex) Upsert(rut, name string, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.byRut[rut]; ok {
		if i, found := slices.BinarySearchFunc(r.entries, old, compareRank); found {
			r.entries = slices.Delete(r.entries, i, i+1)
		}
	}
	entry := domain.RankEntry{Rut: rut, Name: name, Total: total}
	i, _ := slices.BinarySearchFunc(r.entries, entry, compareRank)
	r.entries = slices.Insert(r.entries, i, entry)
	r.byRut[rut] = entry
}

func (r *RankingIndex) Snapshot() []domain.RankEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Clone(r.entries)
}

// Position returns the 1-based rank of rut.
func (r *RankingIndex) Position(rut string) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.byRut[rut]
	if !ok {
		return 0, false
	}
	i, found := slices.BinarySearchFunc(r.entries, entry, compareRank)
	if !found {
		return 0, false
	}
	return i + 1, true
}

func (r *RankingIndex) Total(rut string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.byRut[rut].Total
}

func (r *RankingIndex) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.entries)
}
