package sink

import (
	"context"
	"slices"
	"sync"

	"github.com/JakeFAU/keyword-crawler/internal/crawler"
)

// Memory keeps results in process. It backs dry runs and tests.
type Memory struct {
	mu      sync.Mutex
	results []crawler.Result
	writes  int
	closed  bool
}

// NewMemory returns an empty Memory sink.
func NewMemory() *Memory {
	return &Memory{}
}

// Write appends results.
func (m *Memory) Write(_ context.Context, _, _ string, results []crawler.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, results...)
	m.writes++
	return nil
}

// Close marks the sink closed.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Results returns a copy of everything written so far.
func (m *Memory) Results() []crawler.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.results)
}

// Writes returns the number of Write calls.
func (m *Memory) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// Closed reports whether Close was called.
func (m *Memory) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
