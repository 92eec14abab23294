package engine

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/datallboy/gorom/internal/domain"
	"github.com/datallboy/gorom/internal/extraction"
	"github.com/datallboy/gorom/internal/infra/logger"
	"github.com/datallboy/gorom/internal/notify"
	"github.com/datallboy/gorom/internal/platform"
	"github.com/datallboy/gorom/internal/scheduler"
	"github.com/datallboy/gorom/internal/storage"
	"github.com/segmentio/ksuid"
)

var ErrNoItems = errors.New("nothing to download")

// Settings is read once per submission batch.
type Settings interface {
	MaxConcurrentDownloads() int
	DestinationRoot() string
}

type Options struct {
	Scheduler Scheduler
	Content   Content
	Docs      storage.DocumentProvider
	Notifier  notify.Notifier
	Settings  Settings
	Ledger    Ledger
	Logger    *logger.Logger

	ChunkSize      int
	ProgressStep   int
	GracePeriod    time.Duration
	DismissSummary bool
}

type tracked struct {
	handle    scheduler.Handle
	sessionID string
}

// Engine is what callers drive: it admits jobs, groups them into sessions and lets
// the projector keep notifications in step.
type Engine struct {
	coord     *Coordinator
	limiter   *Limiter
	sched     Scheduler
	projector *Projector
	settings  Settings
	deps      *runnerDeps
	variants  map[domain.JobKind]Variant
	log       *logger.Logger

	mu      sync.Mutex
	handles map[string]tracked
}

func New(opts Options) *Engine {
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}

	prov := storage.NewProvisioner(opts.Docs, log)
	coord := NewCoordinator()

	e := &Engine{
		coord:    coord,
		limiter:  NewLimiter(opts.Scheduler),
		sched:    opts.Scheduler,
		settings: opts.Settings,
		log:      log,
		handles:  make(map[string]tracked),
		deps: &runnerDeps{
			prov:         prov,
			content:      opts.Content,
			extractor:    extraction.NewZip(prov, opts.ChunkSize, log),
			ledger:       opts.Ledger,
			chunkSize:    opts.ChunkSize,
			progressStep: opts.ProgressStep,
			log:          log,
		},
		variants: make(map[domain.JobKind]Variant),
	}
	for _, v := range []Variant{NewGameVariant(opts.Content), NewFirmwareVariant(opts.Content)} {
		e.variants[v.Kind()] = v
	}

	if opts.Notifier != nil {
		e.projector = NewProjector(coord, opts.Notifier, ProjectorOptions{
			GracePeriod:    opts.GracePeriod,
			DismissSummary: opts.DismissSummary,
		}, log)
	}

	coord.Subscribe(e.onEvent)
	return e
}

// Coordinator exposes session state to observers such as the API.
func (e *Engine) Coordinator() *Coordinator { return e.coord }

// DownloadOne starts a single download in its own individual session.
func (e *Engine) DownloadOne(ctx context.Context, item domain.Item) (string, error) {
	if err := e.validate(item); err != nil {
		return "", err
	}

	maxConcurrent := e.settings.MaxConcurrentDownloads()
	job := e.newJob(item, e.settings.DestinationRoot())

	sid := e.coord.CreateIndividualSession()
	if err := e.coord.AddJob(sid, job); err != nil {
		return "", err
	}

	e.submit(sid, job, maxConcurrent)
	e.log.Info("Queued %s (session %s)", job.DisplayName, sid)
	return sid, nil
}

// DownloadMany queues items into the active bulk session, starting one if none is active.
func (e *Engine) DownloadMany(ctx context.Context, items []domain.Item) (string, error) {
	if len(items) == 0 {
		return "", ErrNoItems
	}
	for _, it := range items {
		if err := e.validate(it); err != nil {
			return "", err
		}
	}

	maxConcurrent := e.settings.MaxConcurrentDownloads()
	root := e.settings.DestinationRoot()

	jobs := make([]*domain.Job, 0, len(items))
	for _, it := range items {
		jobs = append(jobs, e.newJob(it, root))
	}

	sid := e.coord.JoinBulk(jobs)
	for _, j := range jobs {
		e.submit(sid, j, maxConcurrent)
	}

	e.log.Info("Queued %d downloads (session %s, max %d at once)", len(jobs), sid, maxConcurrent)
	return sid, nil
}

// CancelAll cancels every outstanding job. It returns the bulk session that was
// active, if any.
func (e *Engine) CancelAll() string {
	active := ""
	for _, s := range e.coord.Sessions() {
		if s.Type == domain.SessionBulk && s.Active() {
			active = s.ID
		}
	}

	e.mu.Lock()
	handles := make([]scheduler.Handle, 0, len(e.handles))
	for _, t := range e.handles {
		handles = append(handles, t.handle)
	}
	e.mu.Unlock()

	for _, h := range handles {
		e.sched.Cancel(h)
	}

	e.log.Info("Cancelling %d downloads", len(handles))
	return active
}

// Cancel cancels one job, queued or running.
func (e *Engine) Cancel(jobID string) error {
	e.mu.Lock()
	t, ok := e.handles[jobID]
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("cancel %s: %w", jobID, domain.ErrJobNotFound)
	}

	if j, ok := e.coord.Job(jobID); ok && j.State.Terminal() {
		return nil
	}
	e.sched.Cancel(t.handle)
	return nil
}

// Action handles a notification action key.
func (e *Engine) Action(key string) error {
	switch key {
	case notify.ActionCancelAll:
		e.CancelAll()
		return nil
	default:
		return fmt.Errorf("unknown notification action %q", key)
	}
}

func (e *Engine) Snapshot(sessionID string) (domain.SessionSnapshot, error) {
	return e.coord.Snapshot(sessionID)
}

func (e *Engine) Sessions() []domain.SessionSnapshot {
	return e.coord.Sessions()
}

// Wait blocks until the session is terminal and returns its final counters.
func (e *Engine) Wait(ctx context.Context, sessionID string) (domain.SessionSnapshot, error) {
	return e.coord.Wait(ctx, sessionID)
}

// Missing keeps the items whose destination does not exist yet under the current root.
func (e *Engine) Missing(items []domain.Item) ([]domain.Item, error) {
	root := e.settings.DestinationRoot()
	prov := e.deps.prov
	docs := prov.Docs()

	dirs := make(map[string]storage.Node)
	var out []domain.Item

	for _, it := range items {
		folder := platform.FirmwareFolder
		if it.Kind == domain.KindGame {
			folder = platform.Folder(it.PlatformSlug)
		}

		dir, seen := dirs[folder]
		if !seen {
			found, ok, err := prov.Find(root, folder)
			if err != nil {
				return nil, err
			}
			if !ok {
				out = append(out, it)
				continue
			}
			dir = found
			dirs[folder] = dir
		}

		name := it.FileName
		if it.Kind == domain.KindGame && it.Multi {
			name = strings.TrimSuffix(name, path.Ext(name))
		}
		if !docs.Exists(path.Join(dir.Path, name)) {
			out = append(out, it)
		}
	}
	return out, nil
}

func (e *Engine) validate(item domain.Item) error {
	if _, ok := e.variants[item.Kind]; !ok {
		return fmt.Errorf("unsupported item kind %q", item.Kind)
	}
	if item.ID <= 0 {
		return fmt.Errorf("item %q has no id", item.Name)
	}
	if item.Kind == domain.KindFirmware && item.PlatformID <= 0 {
		return fmt.Errorf("firmware %d needs a platform id", item.ID)
	}
	return nil
}

func (e *Engine) newJob(item domain.Item, root string) *domain.Job {
	return &domain.Job{
		ID:          ksuid.New().String(),
		Kind:        item.Kind,
		DisplayName: item.Name,
		Item:        item,
		Source:      domain.SourceRef{Kind: item.Kind, ID: item.ID, FileName: item.FileName},
		Destination: domain.Destination{Base: root},
		BytesTotal:  -1,
	}
}

func (e *Engine) submit(sessionID string, job *domain.Job, maxConcurrent int) {
	r := &Runner{
		jobID:   job.ID,
		coord:   e.coord,
		variant: e.variants[job.Kind],
		deps:    e.deps,
	}

	// Hold the lock across Enqueue so a fast job can't finish before it is tracked
	e.mu.Lock()
	h := e.limiter.Submit(r, maxConcurrent)
	e.handles[job.ID] = tracked{handle: h, sessionID: sessionID}
	e.mu.Unlock()
}

// onEvent records finished sessions and drops scheduler bookkeeping once a session
// is released.
func (e *Engine) onEvent(ev Event) {
	switch ev.Kind {
	case EventJobTransition:
		if ev.State.Terminal() {
			e.recordSession(ev.SessionID)
		}
		return
	case EventSessionReleased:
	default:
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for id, t := range e.handles {
		if t.sessionID == ev.SessionID {
			e.sched.Forget(t.handle)
			delete(e.handles, id)
		}
	}
}

func (e *Engine) recordSession(sessionID string) {
	if e.deps.ledger == nil {
		return
	}
	snap, err := e.coord.Snapshot(sessionID)
	if err != nil || !snap.Terminal() {
		return
	}
	if err := e.deps.ledger.RecordSession(context.Background(), snap.Record(time.Now())); err != nil {
		e.log.Warn("Could not record session %s: %v", sessionID, err)
	}
}
