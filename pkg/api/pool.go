package api

import (
	"context"
	"fmt"
	"sync/atomic"
)

// Lane selects a class of work in the WorkerPool.
type Lane int

const (
	// LaneFast serves scoring requests
	LaneFast Lane = iota
	// LaneSlow serves rollouts and Monte Carlo searches
	LaneSlow
	numLanes
)

func (l Lane) String() string {
	switch l {
	case LaneFast:
		return "fast"
	case LaneSlow:
		return "slow"
	}
	return fmt.Sprintf("lane(%d)", int(l))
}

type lane struct {
	sem    chan struct{}
	queued atomic.Int64
	active atomic.Int64
	total  atomic.Int64
}

func (l *lane) stats() LaneStats {
	return LaneStats{
		Active: l.active.Load(),
		Queued: l.queued.Load(),
		Total:  l.total.Load(),
		Max:    cap(l.sem),
	}
}

// WorkerPool bounds how many requests of each lane run at once.
type WorkerPool struct {
	lanes [numLanes]*lane
}

// PoolConfig configures the worker pool.
type PoolConfig struct {
	MaxFastWorkers int // default 100
	MaxSlowWorkers int // default 4
}

// DefaultPoolConfig returns the default lane sizes.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxFastWorkers: 100,
		MaxSlowWorkers: 4,
	}
}

// NewWorkerPool creates a pool; non-positive sizes take the defaults.
func NewWorkerPool(config PoolConfig) *WorkerPool {
	def := DefaultPoolConfig()
	if config.MaxFastWorkers <= 0 {
		config.MaxFastWorkers = def.MaxFastWorkers
	}
	if config.MaxSlowWorkers <= 0 {
		config.MaxSlowWorkers = def.MaxSlowWorkers
	}

	p := &WorkerPool{}
	p.lanes[LaneFast] = &lane{sem: make(chan struct{}, config.MaxFastWorkers)}
	p.lanes[LaneSlow] = &lane{sem: make(chan struct{}, config.MaxSlowWorkers)}
	return p
}

// Acquire waits for a slot in lane l. It fails if ctx ends first.
func (p *WorkerPool) Acquire(ctx context.Context, l Lane) error {
	ln := p.lanes[l]
	ln.queued.Add(1)
	defer ln.queued.Add(-1)

	select {
	case ln.sem <- struct{}{}:
		ln.active.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryAcquire takes a slot in lane l if one is free.
func (p *WorkerPool) TryAcquire(l Lane) bool {
	ln := p.lanes[l]
	select {
	case ln.sem <- struct{}{}:
		ln.active.Add(1)
		return true
	default:
		return false
	}
}

// Release returns a slot taken with Acquire or TryAcquire.
func (p *WorkerPool) Release(l Lane) {
	ln := p.lanes[l]
	ln.active.Add(-1)
	ln.total.Add(1)
	<-ln.sem
}

// Do runs fn holding a slot in lane l.
func (p *WorkerPool) Do(ctx context.Context, l Lane, fn func() error) error {
	if err := p.Acquire(ctx, l); err != nil {
		return err
	}
	defer p.Release(l)
	return fn()
}

// LaneStats is a snapshot of one lane.
type LaneStats struct {
	Active int64 `json:"active"`
	Queued int64 `json:"queued"`
	Total  int64 `json:"total"`
	Max    int   `json:"max"`
}

// PoolStats is a snapshot of the whole pool.
type PoolStats struct {
	Fast LaneStats `json:"fast"`
	Slow LaneStats `json:"slow"`
}

// Stats returns current pool statistics.
func (p *WorkerPool) Stats() PoolStats {
	return PoolStats{
		Fast: p.lanes[LaneFast].stats(),
		Slow: p.lanes[LaneSlow].stats(),
	}
}
