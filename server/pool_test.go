package server

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestPool(t *testing.T, size int) *WorkerPool {
	t.Helper()
	pool, err := NewWorkerPool(size, func() (*Processor, error) {
		return NewProcessor(fakeEngine{}, fakeEngine{}, testMatcher(t), nil, nil), nil
	})
	if err != nil {
		t.Fatalf("NewWorkerPool: %v", err)
	}
	t.Cleanup(pool.Destroy)
	return pool
}

func TestPoolBoundsConcurrency(t *testing.T) {
	pool := newTestPool(t, 2)
	ctx := context.Background()

	first, err := pool.Acquire(ctx)
	if err != nil {
		t.Fatal(err)
	}
	second, err := pool.Acquire(ctx)
	if err != nil {
		t.Fatal(err)
	}

	// Pool exhausted: a bounded wait must time out.
	shortCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if _, err := pool.Acquire(shortCtx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Acquire on exhausted pool = %v, want deadline exceeded", err)
	}

	pool.Release(first)
	third, err := pool.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
	pool.Release(second)
	pool.Release(third)

	m := pool.Metrics()
	if m.TotalAcquired != 3 || m.TotalReleased != 3 || m.InUse != 0 {
		t.Errorf("metrics = %+v, want acquired=3 released=3 inUse=0", m)
	}
}

func TestPoolFactoryFailure(t *testing.T) {
	calls := 0
	_, err := NewWorkerPool(3, func() (*Processor, error) {
		calls++
		if calls == 2 {
			return nil, errors.New("model load failed")
		}
		return NewProcessor(fakeEngine{}, fakeEngine{}, nil, nil, nil), nil
	})
	if err == nil {
		t.Fatal("NewWorkerPool succeeded despite factory failure")
	}
}

func TestPoolDestroyClosesProcessors(t *testing.T) {
	closed := 0
	pool, err := NewWorkerPool(2, func() (*Processor, error) {
		return NewProcessor(fakeEngine{}, fakeEngine{}, nil, nil, func() { closed++ }), nil
	})
	if err != nil {
		t.Fatal(err)
	}

	// One held slot at destroy time is closed on release, not leaked.
	held, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	pool.Destroy()
	if closed != 1 {
		t.Fatalf("closed = %d after Destroy with one slot held, want 1", closed)
	}

	pool.Release(held)
	if closed != 2 {
		t.Fatalf("closed = %d after releasing into destroyed pool, want 2", closed)
	}

	if _, err := pool.Acquire(context.Background()); err == nil {
		t.Error("Acquire on destroyed pool succeeded")
	}
}

func TestPoolDefaultSize(t *testing.T) {
	pool, err := NewWorkerPool(0, func() (*Processor, error) {
		return NewProcessor(fakeEngine{}, fakeEngine{}, nil, nil, nil), nil
	})
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Destroy()
	if pool.Size() != DefaultPoolSize {
		t.Errorf("Size = %d, want %d", pool.Size(), DefaultPoolSize)
	}
}
