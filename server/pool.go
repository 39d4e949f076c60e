package server

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const (
	// DefaultPoolSize bounds how many frames process concurrently across
	// all connections.
	DefaultPoolSize = 4
	AcquireTimeout  = 5 * time.Second
)

// WorkerPool is a bounded pool of frame processors. Each Processor owns its
// own inference sessions, so holding a slot is what serializes access to
// them; a connection loop blocks in Acquire when every slot is busy, which
// is the backpressure mechanism.
type WorkerPool struct {
	slots   chan *Processor
	size    int
	mu      sync.Mutex
	closed  bool
	metrics *poolMetrics
}

type poolMetrics struct {
	mu              sync.RWMutex
	inUse           int
	totalAcquired   int64
	totalReleased   int64
	acquireFailures int64
	waitTime        time.Duration
}

// PoolMetrics is a point-in-time snapshot of the pool counters.
type PoolMetrics struct {
	InUse           int
	TotalAcquired   int64
	TotalReleased   int64
	AcquireFailures int64
	WaitTime        time.Duration
}

// NewWorkerPool builds size processors up front via factory. A factory
// failure tears down the processors already built and fails startup.
func NewWorkerPool(size int, factory func() (*Processor, error)) (*WorkerPool, error) {
	if size <= 0 {
		size = DefaultPoolSize
	}

	pool := &WorkerPool{
		slots:   make(chan *Processor, size),
		size:    size,
		metrics: &poolMetrics{},
	}

	for i := 0; i < size; i++ {
		proc, err := factory()
		if err != nil {
			pool.Destroy()
			return nil, fmt.Errorf("failed to initialize processor %d: %w", i, err)
		}
		pool.slots <- proc
	}
	return pool, nil
}

func (p *WorkerPool) Size() int { return p.size }

// Acquire returns a processor slot, waiting up to AcquireTimeout. The caller
// must Release it, even on processing failure.
func (p *WorkerPool) Acquire(ctx context.Context) (*Processor, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, fmt.Errorf("pool is closed")
	}
	p.mu.Unlock()

	start := time.Now()
	defer func() {
		p.metrics.mu.Lock()
		p.metrics.waitTime += time.Since(start)
		p.metrics.mu.Unlock()
	}()

	select {
	case proc := <-p.slots:
		if proc == nil {
			// Channel closed by Destroy while we were waiting.
			return nil, fmt.Errorf("pool is closed")
		}
		p.metrics.mu.Lock()
		p.metrics.inUse++
		p.metrics.totalAcquired++
		p.metrics.mu.Unlock()
		return proc, nil
	case <-time.After(AcquireTimeout):
		p.metrics.mu.Lock()
		p.metrics.acquireFailures++
		p.metrics.mu.Unlock()
		return nil, fmt.Errorf("timeout waiting for available processor")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *WorkerPool) Release(proc *Processor) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		proc.Close()
		return
	}
	// The channel has capacity for every processor, so this send never
	// blocks; holding the lock keeps Destroy from closing it mid-send.
	p.slots <- proc
	p.mu.Unlock()

	p.metrics.mu.Lock()
	p.metrics.inUse--
	p.metrics.totalReleased++
	p.metrics.mu.Unlock()
}

// Destroy closes the pool and tears down every idle processor. Processors
// still checked out are destroyed when released.
func (p *WorkerPool) Destroy() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	close(p.slots)
	for proc := range p.slots {
		proc.Close()
	}
}

func (p *WorkerPool) Metrics() PoolMetrics {
	p.metrics.mu.RLock()
	defer p.metrics.mu.RUnlock()
	return PoolMetrics{
		InUse:           p.metrics.inUse,
		TotalAcquired:   p.metrics.totalAcquired,
		TotalReleased:   p.metrics.totalReleased,
		AcquireFailures: p.metrics.acquireFailures,
		WaitTime:        p.metrics.waitTime,
	}
}
