package checkpoint

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/keyword-crawler/internal/dedup"
	"github.com/JakeFAU/keyword-crawler/internal/frontier"
)

func newState() (*dedup.Registry, *frontier.Frontier) {
	reg := dedup.New()
	return reg, frontier.New(reg)
}

func TestManagerRoundTripPreservesMembership(t *testing.T) {
	t.Parallel()

	reg, front := newState()
	front.Seed([]string{"alpha", "beta", "gamma", "delta"})
	claimed := front.Claim(2)
	require.Len(t, claimed, 2)
	require.True(t, reg.TryMarkProcessed(claimed[0].Text))
	front.Complete(claimed[0])
	require.True(t, reg.TryMarkLinkSeen("https://alpha.com.bd/a.txt"))

	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	m := NewManager(store, front, reg, time.Hour, zap.NewNop())
	require.NoError(t, m.Persist(context.Background()))

	reg2, front2 := newState()
	m2 := NewManager(store, front2, reg2, time.Hour, zap.NewNop())
	snap, err := m2.Restore(context.Background())
	require.NoError(t, err)

	assert.Equal(t, reg.Snapshot(), reg2.Snapshot())
	assert.ElementsMatch(t, []string{"beta", "gamma", "delta"}, snap.Frontier)
	assert.ElementsMatch(t, front.Snapshot(), front2.Snapshot())
	assert.True(t, reg2.IsProcessed("alpha"))
	assert.False(t, reg2.TryMarkLinkSeen("https://alpha.com.bd/a.txt"))
}

func TestRestoreFiltersProcessedKeywordsFromFrontier(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore(Snapshot{
		Frontier:  []string{"done", "todo", "TODO"},
		Processed: []string{"Done"},
	})
	reg, front := newState()
	m := NewManager(store, front, reg, time.Hour, nil)

	_, err := m.Restore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"todo"}, front.Snapshot())
	assert.Equal(t, 1, reg.ProcessedCount())
}

type failingStore struct {
	loadErr error
	saveErr error
	saves   atomic.Int32
}

func (s *failingStore) Load(context.Context) (Snapshot, error) { return Snapshot{}, s.loadErr }

func (s *failingStore) Save(context.Context, Snapshot) error {
	s.saves.Add(1)
	return s.saveErr
}

func TestRestoreWrapsLoadErrors(t *testing.T) {
	t.Parallel()

	reg, front := newState()
	m := NewManager(&failingStore{loadErr: errors.New("corrupt")}, front, reg, time.Hour, nil)

	_, err := m.Restore(context.Background())
	var persistErr *PersistError
	require.ErrorAs(t, err, &persistErr)
	assert.Equal(t, "load", persistErr.Op)
	assert.EqualError(t, err, "checkpoint load: corrupt")
}

func TestPersistFailureIsRetriedOnNextTick(t *testing.T) {
	t.Parallel()

	reg, front := newState()
	store := &failingStore{saveErr: errors.New("disk full")}
	m := NewManager(store, front, reg, 5*time.Millisecond, zap.NewNop())

	m.Start(context.Background())
	require.Eventually(t, func() bool { return store.saves.Load() >= 3 }, time.Second, 5*time.Millisecond)

	err := m.Stop(context.Background())
	var persistErr *PersistError
	require.ErrorAs(t, err, &persistErr)
	assert.Equal(t, "save", persistErr.Op)
}

func TestStopRunsFinalPersistOnce(t *testing.T) {
	t.Parallel()

	reg, front := newState()
	front.Seed([]string{"pending"})
	store := NewMemoryStore(Snapshot{})
	m := NewManager(store, front, reg, time.Hour, zap.NewNop())
	m.Start(context.Background())

	require.True(t, reg.TryMarkProcessed("late"))
	require.NoError(t, m.Stop(context.Background()))
	require.NoError(t, m.Stop(context.Background()))

	assert.Equal(t, 1, store.Saves())
	got, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"pending"}, got.Frontier)
	assert.Equal(t, []string{"late"}, got.Processed)
}

func TestStopWithoutStartStillPersists(t *testing.T) {
	t.Parallel()

	reg, front := newState()
	store := NewMemoryStore(Snapshot{})
	m := NewManager(store, front, reg, 0, nil)

	m.Start(context.Background())
	require.NoError(t, m.Stop(context.Background()))
	assert.Equal(t, 1, store.Saves())
}

func TestStartedTimerStopsWithParentContext(t *testing.T) {
	t.Parallel()

	reg, front := newState()
	store := NewMemoryStore(Snapshot{})
	m := NewManager(store, front, reg, time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	m.Start(ctx)
	require.Eventually(t, func() bool { return store.Saves() > 0 }, time.Second, time.Millisecond)
	cancel()

	require.NoError(t, m.Stop(context.Background()))
}

// blockingStore records the peak number of concurrent saves.
type blockingStore struct {
	release chan struct{}
	active  atomic.Int32
	peak    atomic.Int32
	saves   atomic.Int32
}

func (s *blockingStore) Load(context.Context) (Snapshot, error) { return Snapshot{}, nil }

func (s *blockingStore) Save(context.Context, Snapshot) error {
	n := s.active.Add(1)
	for {
		peak := s.peak.Load()
		if n <= peak || s.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	<-s.release
	s.active.Add(-1)
	s.saves.Add(1)
	return nil
}

func TestConcurrentPersistsNeverInterleave(t *testing.T) {
	t.Parallel()

	reg, front := newState()
	store := &blockingStore{release: make(chan struct{})}
	m := NewManager(store, front, reg, time.Hour, nil)

	const callers = 8
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, m.Persist(context.Background()))
		}()
	}

	require.Eventually(t, func() bool { return store.active.Load() == 1 }, time.Second, time.Millisecond)
	close(store.release)
	wg.Wait()

	assert.Equal(t, int32(1), store.peak.Load())
	assert.LessOrEqual(t, store.saves.Load(), int32(callers))
	assert.GreaterOrEqual(t, store.saves.Load(), int32(1))
}
