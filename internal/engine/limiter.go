package engine

import (
	"github.com/datallboy/gorom/internal/scheduler"
)

// Scheduler is the job scheduler the limiter hands work to.
type Scheduler interface {
	Enqueue(spec scheduler.Spec, c scheduler.Constraint) scheduler.Handle
	Cancel(h scheduler.Handle) bool
	State(h scheduler.Handle) scheduler.State
	Forget(h scheduler.Handle)
}

// downloadsTag is the one constraint every download shares, whatever its session.
const downloadsTag = "downloads"

// Limiter admits jobs under one engine-wide ceiling. Each submission carries the
// ceiling read for its batch; a changed ceiling applies to admissions from then on
// and never stacks a second limit on top of the first.
type Limiter struct {
	sched Scheduler
}

func NewLimiter(sched Scheduler) *Limiter {
	return &Limiter{sched: sched}
}

// Submit enqueues spec so that at most maxConcurrent downloads run at once.
func (l *Limiter) Submit(spec scheduler.Spec, maxConcurrent int) scheduler.Handle {
	return l.sched.Enqueue(spec, Constraint(maxConcurrent))
}

// Constraint builds the scheduler constraint for a ceiling.
func Constraint(maxConcurrent int) scheduler.Constraint {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return scheduler.Constraint{Tag: downloadsTag, Max: maxConcurrent}
}
