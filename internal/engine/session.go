package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/datallboy/gorom/internal/domain"
	"github.com/segmentio/ksuid"
)

var ErrSessionFinished = errors.New("session already finished")

// releasedRetention bounds how many released sessions keep their final snapshot.
const releasedRetention = 256

type EventKind int

const (
	EventSessionCreated EventKind = iota
	EventJobAdded
	EventJobTransition
	EventJobProgress
	EventSessionReleased
)

// Event tells observers which session (and job) changed. Observers re-read state from
// the coordinator; events carry no counters so a late or reordered event is harmless.
type Event struct {
	Kind      EventKind
	SessionID string
	JobID     string
	State     domain.JobState
}

type Observer func(Event)

type session struct {
	seq       int
	id        string
	typ       domain.SessionType
	createdAt time.Time
	jobs      []string
	done      chan struct{}
	closed    bool
	final     domain.SessionSnapshot
}

// Coordinator groups jobs into sessions and keeps their counters. A single mutex guards
// the session table, the job table and the active bulk pointer.
type Coordinator struct {
	mu         sync.Mutex
	sessions   map[string]*session
	jobs       map[string]*domain.Job
	activeBulk string
	observers  []Observer
	seq        int

	// final snapshots of released sessions, oldest first in releasedOrder
	released      map[string]domain.SessionSnapshot
	releasedOrder []string

	now func() time.Time
}

func NewCoordinator() *Coordinator {
	return &Coordinator{
		sessions: make(map[string]*session),
		jobs:     make(map[string]*domain.Job),
		released: make(map[string]domain.SessionSnapshot),
		now:      time.Now,
	}
}

// Subscribe registers fn for every subsequent event. Observers run on the goroutine
// that caused the change, outside the coordinator's lock.
func (c *Coordinator) Subscribe(fn Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, fn)
}

// GetOrCreateBulkSession returns the active bulk session, creating one if none is active.
func (c *Coordinator) GetOrCreateBulkSession() string {
	c.mu.Lock()
	id, created := c.bulkLocked()
	c.mu.Unlock()

	if created {
		c.emit(Event{Kind: EventSessionCreated, SessionID: id})
	}
	return id
}

func (c *Coordinator) CreateIndividualSession() string {
	c.mu.Lock()
	s := c.newSessionLocked(domain.SessionIndividual)
	c.mu.Unlock()

	c.emit(Event{Kind: EventSessionCreated, SessionID: s.id})
	return s.id
}

// JoinBulk adds jobs to the active bulk session (or a new one) in one critical section,
// so the session cannot finish between lookup and join.
func (c *Coordinator) JoinBulk(jobs []*domain.Job) string {
	c.mu.Lock()
	id, created := c.bulkLocked()
	s := c.sessions[id]
	for _, j := range jobs {
		c.addLocked(s, j)
	}
	c.mu.Unlock()

	if created {
		c.emit(Event{Kind: EventSessionCreated, SessionID: id})
	}
	for _, j := range jobs {
		c.emit(Event{Kind: EventJobAdded, SessionID: id, JobID: j.ID, State: domain.StateQueued})
	}
	return id
}

// AddJob appends job to the session's membership as Queued.
func (c *Coordinator) AddJob(sessionID string, job *domain.Job) error {
	c.mu.Lock()
	s, ok := c.sessions[sessionID]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("add job to %s: %w", sessionID, domain.ErrSessionNotFound)
	}
	if len(s.jobs) > 0 && !c.activeLocked(s) {
		c.mu.Unlock()
		return fmt.Errorf("add job to %s: %w", sessionID, ErrSessionFinished)
	}
	c.addLocked(s, job)
	c.mu.Unlock()

	c.emit(Event{Kind: EventJobAdded, SessionID: sessionID, JobID: job.ID, State: domain.StateQueued})
	return nil
}

// ReportTransition moves a job to next. Terminal states are final.
func (c *Coordinator) ReportTransition(jobID string, next domain.JobState) error {
	return c.transition(jobID, next, nil)
}

// Fail moves a job to Cancelled or Failed depending on what err classifies as.
func (c *Coordinator) Fail(jobID string, err error) error {
	next := domain.StateFailed
	if domain.Classify(err) == domain.FailureCancelled {
		next = domain.StateCancelled
	}
	return c.transition(jobID, next, err)
}

func (c *Coordinator) transition(jobID string, next domain.JobState, cause error) error {
	c.mu.Lock()
	j, ok := c.jobs[jobID]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("transition %s: %w", jobID, domain.ErrJobNotFound)
	}
	if !j.State.CanTransition(next) {
		prev := j.State
		c.mu.Unlock()
		return fmt.Errorf("%s -> %s for job %s: %w", prev, next, jobID, domain.ErrInvalidTransition)
	}

	j.State = next
	switch {
	case next == domain.StateRunning:
		j.StartedAt = c.now()
	case next.Terminal():
		j.FinishedAt = c.now()
		if cause != nil {
			j.Failure = domain.Classify(cause)
			j.Error = cause.Error()
		}
	}

	s := c.sessions[j.SessionID]
	if s != nil && !s.closed && len(s.jobs) > 0 && !c.activeLocked(s) {
		c.closeLocked(s)
	}
	sessionID := j.SessionID
	c.mu.Unlock()

	c.emit(Event{Kind: EventJobTransition, SessionID: sessionID, JobID: jobID, State: next})
	return nil
}

// ReportProgress records transfer progress. Progress on a finished job is ignored.
func (c *Coordinator) ReportProgress(jobID string, p domain.TransferProgress) {
	c.mu.Lock()
	j, ok := c.jobs[jobID]
	if !ok || j.State.Terminal() {
		c.mu.Unlock()
		return
	}
	j.BytesTransferred = p.Transferred
	j.BytesTotal = p.Total
	sessionID, state := j.SessionID, j.State
	c.mu.Unlock()

	c.emit(Event{Kind: EventJobProgress, SessionID: sessionID, JobID: jobID, State: state})
}

// Describe fills in what the runner learned once the job started resolving.
func (c *Coordinator) Describe(jobID, displayName string, dest domain.Destination) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if j, ok := c.jobs[jobID]; ok {
		if displayName != "" {
			j.DisplayName = displayName
		}
		j.Destination = dest
	}
}

// CurrentState returns the session's counters and a copy of every member. Released
// sessions are not found.
func (c *Coordinator) CurrentState(sessionID string) (domain.SessionSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.sessions[sessionID]
	if !ok {
		return domain.SessionSnapshot{}, fmt.Errorf("state of %s: %w", sessionID, domain.ErrSessionNotFound)
	}
	return c.snapshotLocked(s), nil
}

// Snapshot is CurrentState that also answers for recently released sessions with
// their final counters.
func (c *Coordinator) Snapshot(sessionID string) (domain.SessionSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if s, ok := c.sessions[sessionID]; ok {
		return c.snapshotLocked(s), nil
	}
	if snap, ok := c.released[sessionID]; ok {
		return snap, nil
	}
	return domain.SessionSnapshot{}, fmt.Errorf("state of %s: %w", sessionID, domain.ErrSessionNotFound)
}

// Job returns a copy of a tracked job.
func (c *Coordinator) Job(jobID string) (domain.Job, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	j, ok := c.jobs[jobID]
	if !ok {
		return domain.Job{}, false
	}
	return *j, true
}

// Sessions lists snapshots of every tracked session, oldest first.
func (c *Coordinator) Sessions() []domain.SessionSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	all := make([]*session, 0, len(c.sessions))
	for _, s := range c.sessions {
		all = append(all, s)
	}
	slices.SortFunc(all, func(a, b *session) int { return a.seq - b.seq })

	out := make([]domain.SessionSnapshot, 0, len(all))
	for _, s := range all {
		out = append(out, c.snapshotLocked(s))
	}
	return out
}

// Wait blocks until every member of the session is terminal and returns the final
// counters. It still answers after the session has been released.
func (c *Coordinator) Wait(ctx context.Context, sessionID string) (domain.SessionSnapshot, error) {
	c.mu.Lock()
	s, ok := c.sessions[sessionID]
	final, released := c.released[sessionID]
	c.mu.Unlock()
	if released {
		return final, nil
	}
	if !ok {
		return domain.SessionSnapshot{}, fmt.Errorf("wait on %s: %w", sessionID, domain.ErrSessionNotFound)
	}

	select {
	case <-s.done:
	case <-ctx.Done():
		return domain.SessionSnapshot{}, ctx.Err()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return s.final, nil
}

// Release forgets a finished session and its jobs.
func (c *Coordinator) Release(sessionID string) error {
	c.mu.Lock()
	s, ok := c.sessions[sessionID]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("release %s: %w", sessionID, domain.ErrSessionNotFound)
	}
	if c.activeLocked(s) {
		c.mu.Unlock()
		return fmt.Errorf("release %s: session still has work outstanding", sessionID)
	}

	if !s.closed {
		c.closeLocked(s)
	}
	c.retainLocked(s.final)
	for _, id := range s.jobs {
		delete(c.jobs, id)
	}
	delete(c.sessions, sessionID)
	if c.activeBulk == sessionID {
		c.activeBulk = ""
	}
	c.mu.Unlock()

	c.emit(Event{Kind: EventSessionReleased, SessionID: sessionID})
	return nil
}

func (c *Coordinator) closeLocked(s *session) {
	s.final = c.snapshotLocked(s)
	s.closed = true
	close(s.done)
}

func (c *Coordinator) retainLocked(final domain.SessionSnapshot) {
	c.released[final.ID] = final
	c.releasedOrder = append(c.releasedOrder, final.ID)
	for len(c.releasedOrder) > releasedRetention {
		delete(c.released, c.releasedOrder[0])
		c.releasedOrder = c.releasedOrder[1:]
	}
}

func (c *Coordinator) bulkLocked() (string, bool) {
	if s, ok := c.sessions[c.activeBulk]; ok && c.activeLocked(s) {
		return s.id, false
	}
	s := c.newSessionLocked(domain.SessionBulk)
	c.activeBulk = s.id
	return s.id, true
}

func (c *Coordinator) newSessionLocked(typ domain.SessionType) *session {
	c.seq++
	s := &session{
		seq:       c.seq,
		id:        ksuid.New().String(),
		typ:       typ,
		createdAt: c.now(),
		done:      make(chan struct{}),
	}
	c.sessions[s.id] = s
	return s
}

func (c *Coordinator) addLocked(s *session, job *domain.Job) {
	job.SessionID = s.id
	job.State = domain.StateQueued
	if job.QueuedAt.IsZero() {
		job.QueuedAt = c.now()
	}
	c.jobs[job.ID] = job
	s.jobs = append(s.jobs, job.ID)
}

// activeLocked: a session is active while any member is non-terminal, or while it has
// no members yet.
func (c *Coordinator) activeLocked(s *session) bool {
	if len(s.jobs) == 0 {
		return true
	}
	for _, id := range s.jobs {
		if j, ok := c.jobs[id]; ok && !j.State.Terminal() {
			return true
		}
	}
	return false
}

func (c *Coordinator) snapshotLocked(s *session) domain.SessionSnapshot {
	snap := domain.SessionSnapshot{
		ID:        s.id,
		Type:      s.typ,
		CreatedAt: s.createdAt,
		Total:     len(s.jobs),
		Jobs:      make([]domain.Job, 0, len(s.jobs)),
	}

	for _, id := range s.jobs {
		j := c.jobs[id]
		switch j.State {
		case domain.StateQueued:
			snap.Queued++
		case domain.StateRunning:
			snap.Running++
		case domain.StateSucceeded:
			snap.Succeeded++
		case domain.StateFailed:
			snap.Failed++
		case domain.StateCancelled:
			snap.Failed++
			snap.Cancelled++
		}
		snap.Jobs = append(snap.Jobs, *j)
	}
	return snap
}

func (c *Coordinator) emit(ev Event) {
	c.mu.Lock()
	observers := make([]Observer, len(c.observers))
	copy(observers, c.observers)
	c.mu.Unlock()

	for _, fn := range observers {
		fn(ev)
	}
}
