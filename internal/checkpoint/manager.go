package checkpoint

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/JakeFAU/keyword-crawler/internal/dedup"
	"github.com/JakeFAU/keyword-crawler/internal/metrics"
)

// PersistError reports a failed checkpoint read or write. It is logged and
// retried on the next tick; it never stops the crawl.
type PersistError struct {
	Op  string
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("checkpoint %s: %v", e.Op, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}

// Frontier is the part of the keyword frontier the manager reads and seeds.
type Frontier interface {
	Snapshot() []string
	Seed(keywords []string) int
}

// Registry is the part of the dedup registry the manager reads and restores.
type Registry interface {
	Snapshot() dedup.State
	Restore(state dedup.State)
}

// Manager periodically persists the frontier and registry to a Store.
type Manager struct {
	store    Store
	frontier Frontier
	registry Registry
	interval time.Duration
	logger   *zap.Logger

	flight singleflight.Group
	saveMu sync.Mutex

	mu       sync.Mutex
	started  bool
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
	stopErr  error
}

// NewManager builds a Manager. Start must be called to enable the timer.
func NewManager(store Store, frontier Frontier, registry Registry, interval time.Duration, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:    store,
		frontier: frontier,
		registry: registry,
		interval: interval,
		logger:   logger,
	}
}

// Restore loads saved state into the registry and then seeds the frontier,
// so keywords already processed are filtered out of the restored frontier.
func (m *Manager) Restore(ctx context.Context) (Snapshot, error) {
	snap, err := m.store.Load(ctx)
	if err != nil {
		return Snapshot{}, &PersistError{Op: "load", Err: err}
	}
	m.registry.Restore(dedup.State{Processed: snap.Processed, Links: snap.Links})
	queued := m.frontier.Seed(snap.Frontier)
	m.logger.Info("checkpoint restored",
		zap.Int("processed", len(snap.Processed)),
		zap.Int("links", len(snap.Links)),
		zap.Int("frontier", len(snap.Frontier)),
		zap.Int("requeued", queued),
	)
	return snap, nil
}

// Snapshot captures the current frontier and registry.
func (m *Manager) Snapshot() Snapshot {
	state := m.registry.Snapshot()
	return Snapshot{
		Frontier:  m.frontier.Snapshot(),
		Processed: state.Processed,
		Links:     state.Links,
	}
}

// Persist saves a fresh snapshot. Concurrent calls share one in-progress save
// and never interleave writes.
func (m *Manager) Persist(ctx context.Context) error {
	_, err, shared := m.flight.Do("persist", func() (any, error) {
		return nil, m.persist(ctx)
	})
	if shared {
		m.logger.Debug("checkpoint persist coalesced")
	}
	return err
}

func (m *Manager) persist(ctx context.Context) error {
	m.saveMu.Lock()
	defer m.saveMu.Unlock()

	start := time.Now()
	snap := m.Snapshot()
	err := m.store.Save(ctx, snap)
	metrics.ObserveCheckpoint(err, time.Since(start))
	if err != nil {
		m.logger.Error("checkpoint persist failed", zap.Error(err))
		return &PersistError{Op: "save", Err: err}
	}
	m.logger.Debug("checkpoint persisted",
		zap.Int("frontier", len(snap.Frontier)),
		zap.Int("processed", len(snap.Processed)),
		zap.Int("links", len(snap.Links)),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

// Start launches the background timer. It is a no-op if already started or
// if the interval is not positive.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started || m.interval <= 0 {
		return
	}
	m.started = true
	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.loop(loopCtx, m.done)
}

func (m *Manager) loop(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Failures are logged inside persist; the next tick retries.
			_ = m.Persist(ctx)
		}
	}
}

// Stop cancels the timer, waits for it to exit, and runs a final persist with
// ctx. The final persist waits for any save in progress and then snapshots
// fresh state. Later calls return the first call's result.
func (m *Manager) Stop(ctx context.Context) error {
	m.stopOnce.Do(func() {
		m.mu.Lock()
		cancel, done := m.cancel, m.done
		m.mu.Unlock()
		if cancel != nil {
			cancel()
			<-done
		}
		m.stopErr = m.persist(ctx)
		if m.stopErr == nil {
			m.logger.Info("final checkpoint persisted")
		}
	})
	return m.stopErr
}
