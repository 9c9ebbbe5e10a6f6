// Package frontier holds the ordered set of keywords still waiting to be crawled.
package frontier

import (
	"sync"

	"github.com/JakeFAU/keyword-crawler/internal/crawler"
)

// ProcessedChecker reports whether a keyword already finished processing.
type ProcessedChecker interface {
	IsProcessed(keyword string) bool
}

// Frontier is an insertion-ordered, duplicate-free queue of pending keywords.
// Claimed keywords stay tracked as in flight until Complete is called so a
// checkpoint taken mid-batch never loses them.
type Frontier struct {
	mu        sync.Mutex
	processed ProcessedChecker
	pending   []crawler.Keyword
	queued    map[string]struct{}
	inFlight  map[string]crawler.Keyword
}

// New builds an empty Frontier. processed may be nil when no registry exists.
func New(processed ProcessedChecker) *Frontier {
	return &Frontier{
		processed: processed,
		queued:    make(map[string]struct{}),
		inFlight:  make(map[string]crawler.Keyword),
	}
}

// Seed appends every keyword not already processed, pending, or in flight and
// returns how many were inserted.
func (f *Frontier) Seed(keywords []string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	added := 0
	for _, raw := range keywords {
		kw, ok := crawler.NewKeyword(raw)
		if !ok {
			continue
		}
		if _, dup := f.queued[kw.Norm]; dup {
			continue
		}
		if _, dup := f.inFlight[kw.Norm]; dup {
			continue
		}
		if f.processed != nil && f.processed.IsProcessed(kw.Norm) {
			continue
		}
		f.queued[kw.Norm] = struct{}{}
		f.pending = append(f.pending, kw)
		added++
	}
	return added
}

// Generate derives candidates from base with rule and seeds them.
func (f *Frontier) Generate(base []string, rule SuffixRule) int {
	return f.Seed(GenerateCandidates(base, rule))
}

// Claim removes up to n keywords from the front and marks them in flight.
// Keywords processed since they were queued are discarded instead of returned.
// It never blocks; an empty result means there is no work right now.
func (f *Frontier) Claim(n int) []crawler.Keyword {
	if n <= 0 {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]crawler.Keyword, 0, min(n, len(f.pending)))
	i := 0
	for ; i < len(f.pending) && len(out) < n; i++ {
		kw := f.pending[i]
		delete(f.queued, kw.Norm)
		if f.processed != nil && f.processed.IsProcessed(kw.Norm) {
			continue
		}
		f.inFlight[kw.Norm] = kw
		out = append(out, kw)
	}
	f.pending = append(f.pending[:0:0], f.pending[i:]...)
	return out
}

// Complete releases a claimed keyword. It also drops the keyword from the
// pending list if it is somehow still there.
func (f *Frontier) Complete(kw crawler.Keyword) {
	key := kw.Norm
	if key == "" {
		key = crawler.Normalize(kw.Text)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.inFlight, key)
	if _, ok := f.queued[key]; !ok {
		return
	}
	delete(f.queued, key)
	for i, pending := range f.pending {
		if pending.Norm == key {
			f.pending = append(f.pending[:i], f.pending[i+1:]...)
			break
		}
	}
}

// IsEmpty reports whether no keywords are pending.
func (f *Frontier) IsEmpty() bool {
	return f.Len() == 0
}

// Len returns the number of pending keywords.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

// InFlight returns the number of claimed, not yet completed keywords.
func (f *Frontier) InFlight() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.inFlight)
}

// Snapshot returns pending keywords in order followed by in-flight keywords.
func (f *Frontier) Snapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.pending)+len(f.inFlight))
	for _, kw := range f.pending {
		out = append(out, kw.Text)
	}
	for _, kw := range f.inFlight {
		out = append(out, kw.Text)
	}
	return out
}
