package api

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerPoolAcquireRelease(t *testing.T) {
	pool := NewWorkerPool(PoolConfig{MaxFastWorkers: 2, MaxSlowWorkers: 1})
	ctx := context.Background()

	require.NoError(t, pool.Acquire(ctx, LaneFast))
	stats := pool.Stats()
	assert.Equal(t, int64(1), stats.Fast.Active)
	assert.Equal(t, int64(0), stats.Slow.Active)

	pool.Release(LaneFast)
	stats = pool.Stats()
	assert.Equal(t, int64(0), stats.Fast.Active)
	assert.Equal(t, int64(1), stats.Fast.Total)
	assert.Equal(t, 2, stats.Fast.Max)
	assert.Equal(t, 1, stats.Slow.Max)
}

func TestWorkerPoolDefaults(t *testing.T) {
	stats := NewWorkerPool(PoolConfig{}).Stats()
	def := DefaultPoolConfig()
	assert.Equal(t, def.MaxFastWorkers, stats.Fast.Max)
	assert.Equal(t, def.MaxSlowWorkers, stats.Slow.Max)
}

func TestWorkerPoolLanesAreIndependent(t *testing.T) {
	pool := NewWorkerPool(PoolConfig{MaxFastWorkers: 1, MaxSlowWorkers: 1})

	require.True(t, pool.TryAcquire(LaneSlow))
	assert.False(t, pool.TryAcquire(LaneSlow), "slow lane is full")
	assert.True(t, pool.TryAcquire(LaneFast), "fast lane is unaffected")

	pool.Release(LaneSlow)
	pool.Release(LaneFast)
	assert.True(t, pool.TryAcquire(LaneSlow))
	pool.Release(LaneSlow)
}

func TestWorkerPoolAcquireHonorsContext(t *testing.T) {
	pool := NewWorkerPool(PoolConfig{MaxFastWorkers: 1, MaxSlowWorkers: 1})
	require.True(t, pool.TryAcquire(LaneSlow))
	defer pool.Release(LaneSlow)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := pool.Acquire(ctx, LaneSlow)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int64(0), pool.Stats().Slow.Queued)
}

func TestWorkerPoolDo(t *testing.T) {
	pool := NewWorkerPool(PoolConfig{MaxFastWorkers: 1, MaxSlowWorkers: 1})
	boom := errors.New("boom")

	err := pool.Do(context.Background(), LaneFast, func() error {
		assert.Equal(t, int64(1), pool.Stats().Fast.Active)
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int64(0), pool.Stats().Fast.Active)
	assert.Equal(t, int64(1), pool.Stats().Fast.Total)
}

func TestWorkerPoolLimitsConcurrency(t *testing.T) {
	const limit = 3
	pool := NewWorkerPool(PoolConfig{MaxFastWorkers: 10, MaxSlowWorkers: limit})

	var (
		mu      sync.Mutex
		running int
		peak    int
		wg      sync.WaitGroup
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = pool.Do(context.Background(), LaneSlow, func() error {
				mu.Lock()
				running++
				if running > peak {
					peak = running
				}
				mu.Unlock()

				time.Sleep(2 * time.Millisecond)

				mu.Lock()
				running--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak, limit)
	assert.Equal(t, int64(20), pool.Stats().Slow.Total)
}

func TestLaneString(t *testing.T) {
	assert.Equal(t, "fast", LaneFast.String())
	assert.Equal(t, "slow", LaneSlow.String())
	assert.Equal(t, "lane(7)", Lane(7).String())
}
