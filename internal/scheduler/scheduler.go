package scheduler

import (
	"context"
	"sync"

	"github.com/datallboy/gorom/internal/infra/logger"
	"github.com/google/uuid"
)

// Spec is a unit of work handed to the scheduler.
type Spec interface {
	Run(ctx context.Context) error
	// OnDiscard is called instead of Run when the work is cancelled before it started.
	OnDiscard()
}

// Constraint caps how many specs sharing Tag may run at once. Every Enqueue on a tag
// sets that tag's cap to Max for admissions from then on; specs already running are
// never preempted.
type Constraint struct {
	Tag string
	Max int
}

type Handle string

type State int

const (
	StateUnknown State = iota
	StatePending
	StateRunning
	StateSucceeded
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

type task struct {
	state  State
	cancel context.CancelFunc
}

// Scheduler runs every spec on its own goroutine, gated per constraint tag. Waiters on
// a tag are admitted in submission order. It never retries.
type Scheduler struct {
	mu    sync.Mutex
	gates map[string]*gate
	tasks map[Handle]*task
	wg    sync.WaitGroup

	base context.Context
	stop context.CancelFunc
	log  *logger.Logger
}

func New(log *logger.Logger) *Scheduler {
	if log == nil {
		log = logger.Discard()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		gates: make(map[string]*gate),
		tasks: make(map[Handle]*task),
		base:  ctx,
		stop:  cancel,
		log:   log,
	}
}

func (s *Scheduler) Enqueue(spec Spec, c Constraint) Handle {
	if c.Max < 1 {
		c.Max = 1
	}

	h := Handle(uuid.NewString())
	ctx, cancel := context.WithCancel(s.base)

	s.mu.Lock()
	g, ok := s.gates[c.Tag]
	if !ok {
		g = newGate(c.Max)
		s.gates[c.Tag] = g
	} else {
		g.resize(c.Max)
	}
	g.refs++
	s.tasks[h] = &task{state: StatePending, cancel: cancel}
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		defer s.unref(c.Tag, g)
		s.run(ctx, h, spec, g)
	}()

	return h
}

func (s *Scheduler) run(ctx context.Context, h Handle, spec Spec, g *gate) {
	if err := g.acquire(ctx); err != nil {
		s.setState(h, StateCancelled)
		spec.OnDiscard()
		return
	}
	defer g.release()

	// Cancelled while we were being admitted
	if ctx.Err() != nil {
		s.setState(h, StateCancelled)
		spec.OnDiscard()
		return
	}

	s.setState(h, StateRunning)
	err := spec.Run(ctx)

	switch {
	case ctx.Err() != nil:
		s.setState(h, StateCancelled)
	case err != nil:
		s.log.Debug("Task %s failed: %v", h, err)
		s.setState(h, StateFailed)
	default:
		s.setState(h, StateSucceeded)
	}
}

// unref drops the gate of a tag once no task refers to it.
func (s *Scheduler) unref(tag string, g *gate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g.refs--
	if g.refs == 0 && s.gates[tag] == g {
		delete(s.gates, tag)
	}
}

func (s *Scheduler) setState(h Handle, st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tasks[h]; ok {
		t.state = st
	}
}

// Cancel signals the task. Pending tasks are discarded, running tasks see their
// context cancelled.
func (s *Scheduler) Cancel(h Handle) bool {
	s.mu.Lock()
	t, ok := s.tasks[h]
	s.mu.Unlock()
	if !ok {
		return false
	}
	t.cancel()
	return true
}

func (s *Scheduler) State(h Handle) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tasks[h]; ok {
		return t.state
	}
	return StateUnknown
}

// Forget drops bookkeeping for a finished task.
func (s *Scheduler) Forget(h Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tasks[h]; ok && t.state != StatePending && t.state != StateRunning {
		delete(s.tasks, h)
	}
}

// Wait blocks until every enqueued task has returned.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// Shutdown cancels everything and waits for the goroutines to drain.
func (s *Scheduler) Shutdown() {
	s.stop()
	s.wg.Wait()
}
