package scheduler

import (
	"container/list"
	"context"
	"sync"
)

// gate admits callers in arrival order while fewer than limit hold it. Unlike a
// fixed-size semaphore the limit can move: raising it admits waiters at once,
// lowering it only holds back new admissions until running work drains.
type gate struct {
	mu      sync.Mutex
	limit   int
	running int
	waiters list.List // of chan struct{}

	// tasks referencing this gate, guarded by Scheduler.mu
	refs int
}

func newGate(limit int) *gate {
	return &gate{limit: limit}
}

func (g *gate) acquire(ctx context.Context) error {
	g.mu.Lock()
	if g.running < g.limit && g.waiters.Len() == 0 {
		g.running++
		g.mu.Unlock()
		return nil
	}
	ready := make(chan struct{})
	elem := g.waiters.PushBack(ready)
	g.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		g.mu.Lock()
		select {
		case <-ready:
			// Admitted while we were giving up; hand the slot on.
			g.running--
		default:
			g.waiters.Remove(elem)
		}
		g.admitLocked()
		g.mu.Unlock()
		return ctx.Err()
	}
}

func (g *gate) release() {
	g.mu.Lock()
	g.running--
	g.admitLocked()
	g.mu.Unlock()
}

func (g *gate) resize(limit int) {
	g.mu.Lock()
	g.limit = limit
	g.admitLocked()
	g.mu.Unlock()
}

func (g *gate) admitLocked() {
	for g.running < g.limit {
		front := g.waiters.Front()
		if front == nil {
			return
		}
		g.waiters.Remove(front)
		g.running++
		close(front.Value.(chan struct{}))
	}
}

func (g *gate) inUse() (running, waiting int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running, g.waiters.Len()
}
