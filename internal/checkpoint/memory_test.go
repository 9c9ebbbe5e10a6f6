package checkpoint

import (
	"context"
	"slices"
	"sync"
)

// MemoryStore keeps the latest snapshot in process and counts saves.
type MemoryStore struct {
	mu    sync.Mutex
	snap  Snapshot
	saves int
}

// NewMemoryStore returns a store preloaded with snap.
func NewMemoryStore(snap Snapshot) *MemoryStore {
	return &MemoryStore{snap: cloneSnapshot(snap)}
}

// Save replaces the stored snapshot.
func (s *MemoryStore) Save(_ context.Context, snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = cloneSnapshot(snap)
	s.saves++
	return nil
}

// Load returns a copy of the stored snapshot.
func (s *MemoryStore) Load(_ context.Context) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneSnapshot(s.snap), nil
}

// Saves returns the number of completed saves.
func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

func cloneSnapshot(snap Snapshot) Snapshot {
	return Snapshot{
		Frontier:  slices.Clone(snap.Frontier),
		Processed: slices.Clone(snap.Processed),
		Links:     slices.Clone(snap.Links),
	}
}
