package dedup

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/keyword-crawler/internal/crawler"
)

func TestTryMarkProcessedExactlyOnceUnderContention(t *testing.T) {
	t.Parallel()

	reg := New()
	const callers = 64
	var wins atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if reg.TryMarkProcessed("same-keyword") {
				wins.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	require.Equal(t, int32(1), wins.Load())
	require.Equal(t, 1, reg.ProcessedCount())
}

func TestTryMarkLinkSeenExactlyOnceUnderContention(t *testing.T) {
	t.Parallel()

	reg := New()
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if reg.TryMarkLinkSeen("https://shop.com.bd/a.txt") {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), wins.Load())
}

func TestKeywordAndLinkNamespacesAreIndependent(t *testing.T) {
	t.Parallel()

	reg := New()
	require.True(t, reg.TryMarkProcessed("shop.com.bd"))
	require.True(t, reg.TryMarkLinkSeen("shop.com.bd"))
	assert.False(t, reg.TryMarkProcessed("SHOP.com.bd"), "keywords compare case-insensitively")
	assert.True(t, reg.TryMarkLinkSeen("SHOP.com.bd"), "links compare exactly")
	assert.False(t, reg.TryMarkProcessed("  "))
	assert.False(t, reg.TryMarkLinkSeen(""))
}

func TestTryMarkProcessedWithinBudget(t *testing.T) {
	t.Parallel()

	reg := New()
	marked, err := reg.TryMarkProcessedWithin("a", 2)
	require.NoError(t, err)
	require.True(t, marked)
	marked, err = reg.TryMarkProcessedWithin("b", 2)
	require.NoError(t, err)
	require.True(t, marked)

	marked, err = reg.TryMarkProcessedWithin("c", 2)
	require.ErrorIs(t, err, crawler.ErrBudgetExhausted)
	require.False(t, marked)
	require.False(t, reg.IsProcessed("c"))

	// A duplicate is reported as already handled even once the budget is spent.
	marked, err = reg.TryMarkProcessedWithin("a", 2)
	require.NoError(t, err)
	require.False(t, marked)
	require.True(t, reg.BudgetExhausted(2))
	require.False(t, reg.BudgetExhausted(0))
}

func TestBudgetHoldsUnderContention(t *testing.T) {
	t.Parallel()

	reg := New()
	var marked, exhausted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := reg.TryMarkProcessedWithin(fmt.Sprintf("kw-%d", i), 5)
			switch {
			case ok:
				marked.Add(1)
			case errors.Is(err, crawler.ErrBudgetExhausted):
				exhausted.Add(1)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, int32(5), marked.Load())
	assert.Equal(t, int32(45), exhausted.Load())
}

func TestSnapshotAndRestore(t *testing.T) {
	t.Parallel()

	reg := New()
	reg.TryMarkProcessed("Beta")
	reg.TryMarkProcessed("alpha")
	reg.TryMarkLinkSeen("https://b.com.bd")
	reg.TryMarkLinkSeen("https://a.com.bd")

	state := reg.Snapshot()
	assert.Equal(t, []string{"alpha", "beta"}, state.Processed)
	assert.Equal(t, []string{"https://a.com.bd", "https://b.com.bd"}, state.Links)

	restored := New()
	restored.Restore(state)
	assert.Equal(t, state, restored.Snapshot())
	assert.False(t, restored.TryMarkProcessed("ALPHA"))
	assert.False(t, restored.TryMarkLinkSeen("https://a.com.bd"))
	assert.Equal(t, 2, restored.LinkCount())
}
