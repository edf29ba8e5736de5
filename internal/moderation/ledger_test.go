package moderation

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerBansAtMaxWarnsAndResets(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newMemoryStore()
	ledger := NewLedger(store)

	for want := 1; want <= 2; want++ {
		res, err := ledger.Warn(ctx, -1, 7, 3)
		require.NoError(t, err)
		assert.Equal(t, WarnResult{Count: want}, res)
	}

	res, err := ledger.Warn(ctx, -1, 7, 3)
	require.NoError(t, err)
	assert.Equal(t, WarnResult{Count: 3, Banned: true}, res)
	assert.False(t, store.hasWarnings(-1, 7), "entry must be removed on ban")

	res, err = ledger.Warn(ctx, -1, 7, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Count, "a new ladder starts from one")
}

func TestLedgerUnwarn(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newMemoryStore()
	ledger := NewLedger(store)

	count, err := ledger.Unwarn(ctx, -1, 7)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.False(t, store.hasWarnings(-1, 7))

	for i := 0; i < 2; i++ {
		_, err := ledger.Warn(ctx, -1, 7, 5)
		require.NoError(t, err)
	}
	count, err = ledger.Unwarn(ctx, -1, 7)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = ledger.Unwarn(ctx, -1, 7)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.False(t, store.hasWarnings(-1, 7))
}

func TestLedgerConcurrentWarnsDoNotLoseUpdates(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newMemoryStore()
	ledger := NewLedger(store)

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		banned int
	)
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := ledger.Warn(ctx, -1, 7, 3)
			assert.NoError(t, err)
			if res.Banned {
				mu.Lock()
				banned++
				mu.Unlock()
			}
			assert.Less(t, res.Count, 4)
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, banned)
	count, err := ledger.Count(ctx, -1, 7)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
