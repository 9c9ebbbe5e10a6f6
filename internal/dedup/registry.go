// Package dedup tracks processed keywords and emitted links for a crawl run.
package dedup

import (
	"sort"
	"sync"

	"github.com/JakeFAU/keyword-crawler/internal/crawler"
)

// State is a point-in-time copy of the registry contents.
type State struct {
	Processed []string
	Links     []string
}

// Registry holds two disjoint, monotonically growing sets: processed keywords
// (by normalized form) and seen links. Every check-and-mark happens under a
// single lock so no two callers can both observe an entry as new.
type Registry struct {
	mu        sync.Mutex
	processed map[string]struct{}
	links     map[string]struct{}
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		processed: make(map[string]struct{}),
		links:     make(map[string]struct{}),
	}
}

// TryMarkProcessed marks keyword as processed and returns true if it was not
// already marked.
func (r *Registry) TryMarkProcessed(keyword string) bool {
	marked, _ := r.TryMarkProcessedWithin(keyword, 0)
	return marked
}

// TryMarkProcessedWithin is TryMarkProcessed gated by a budget: when the
// processed set already holds limit entries the keyword is left unmarked and
// crawler.ErrBudgetExhausted is returned. A limit <= 0 disables the budget.
func (r *Registry) TryMarkProcessedWithin(keyword string, limit int) (bool, error) {
	key := crawler.Normalize(keyword)
	if key == "" {
		return false, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.processed[key]; ok {
		return false, nil
	}
	if limit > 0 && len(r.processed) >= limit {
		return false, crawler.ErrBudgetExhausted
	}
	r.processed[key] = struct{}{}
	return true, nil
}

// TryMarkLinkSeen marks link as emitted and returns true if it was new.
func (r *Registry) TryMarkLinkSeen(link string) bool {
	if link == "" {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.links[link]; ok {
		return false
	}
	r.links[link] = struct{}{}
	return true
}

// IsProcessed reports whether keyword has been marked. It never marks; work
// must still be claimed through TryMarkProcessed.
func (r *Registry) IsProcessed(keyword string) bool {
	key := crawler.Normalize(keyword)
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.processed[key]
	return ok
}

// ProcessedCount returns the number of processed keywords.
func (r *Registry) ProcessedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.processed)
}

// LinkCount returns the number of seen links.
func (r *Registry) LinkCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.links)
}

// BudgetExhausted reports whether limit keywords have already been processed.
func (r *Registry) BudgetExhausted(limit int) bool {
	if limit <= 0 {
		return false
	}
	return r.ProcessedCount() >= limit
}

// Snapshot copies both sets under one lock, sorted for stable output.
func (r *Registry) Snapshot() State {
	r.mu.Lock()
	state := State{
		Processed: keys(r.processed),
		Links:     keys(r.links),
	}
	r.mu.Unlock()
	sort.Strings(state.Processed)
	sort.Strings(state.Links)
	return state
}

// Restore merges a previously persisted state into the registry.
func (r *Registry) Restore(state State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, kw := range state.Processed {
		if key := crawler.Normalize(kw); key != "" {
			r.processed[key] = struct{}{}
		}
	}
	for _, link := range state.Links {
		if link != "" {
			r.links[link] = struct{}{}
		}
	}
}

func keys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}
