package engine

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/datallboy/gorom/internal/domain"
	"github.com/datallboy/gorom/internal/infra/logger"
	"github.com/datallboy/gorom/internal/notify"
	"github.com/dustin/go-humanize"
)

type phase int

const (
	phaseNone phase = iota
	phaseSummary
	phaseTerminal
	phaseCleared
)

type projection struct {
	phase     phase
	summaryID int
	members   map[string]int
	order     []string
	timer     *time.Timer
}

// Projector mirrors coordinator state into host notifications: one summary per
// session plus one notification per member, created only once the summary exists.
// Content is always rebuilt from a fresh snapshot.
type Projector struct {
	mu      sync.Mutex
	coord   *Coordinator
	host    notify.Notifier
	log     *logger.Logger
	grace   time.Duration
	dismiss bool

	nextID   int
	sessions map[string]*projection

	afterFunc func(d time.Duration, f func()) *time.Timer
}

type ProjectorOptions struct {
	GracePeriod    time.Duration
	DismissSummary bool
}

func NewProjector(coord *Coordinator, host notify.Notifier, opts ProjectorOptions, log *logger.Logger) *Projector {
	if log == nil {
		log = logger.Discard()
	}
	p := &Projector{
		coord:     coord,
		host:      host,
		log:       log,
		grace:     opts.GracePeriod,
		dismiss:   opts.DismissSummary,
		nextID:    1,
		sessions:  make(map[string]*projection),
		afterFunc: time.AfterFunc,
	}
	coord.Subscribe(p.handle)
	return p
}

func (p *Projector) handle(ev Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch ev.Kind {
	case EventSessionCreated:
		p.supersedeLocked(ev.SessionID)
		return
	case EventSessionReleased:
		if pr, ok := p.sessions[ev.SessionID]; ok && pr.phase != phaseCleared {
			p.clearLocked(ev.SessionID, pr)
		}
		delete(p.sessions, ev.SessionID)
		return
	}

	pr, ok := p.sessions[ev.SessionID]
	if ok && pr.phase == phaseCleared {
		return
	}

	// Released sessions are gone from the coordinator; late events for them are dropped.
	snap, err := p.coord.CurrentState(ev.SessionID)
	if err != nil {
		return
	}
	if !ok {
		pr = &projection{members: make(map[string]int)}
		p.sessions[ev.SessionID] = pr
	}

	group := groupKey(ev.SessionID)

	// Summary first; members are never posted without it.
	if pr.phase == phaseNone {
		pr.summaryID = p.allocLocked()
		p.host.Post(pr.summaryID, group, summaryContent(snap))
		pr.phase = phaseSummary
	} else if pr.phase == phaseSummary {
		p.host.Update(pr.summaryID, summaryContent(snap))
	}

	if ev.JobID != "" {
		if job, ok := findJob(snap, ev.JobID); ok {
			if id, seen := pr.members[job.ID]; seen {
				p.host.Update(id, memberContent(job))
			} else {
				id = p.allocLocked()
				pr.members[job.ID] = id
				pr.order = append(pr.order, job.ID)
				p.host.Post(id, group, memberContent(job))
			}
		}
	}

	if pr.phase == phaseSummary && snap.Terminal() {
		pr.phase = phaseTerminal
		p.host.Update(pr.summaryID, finalContent(snap))
		p.log.Info("Session %s finished: %d completed, %d failed, %d total",
			snap.ID, snap.Succeeded, snap.Failed, snap.Total)

		sid := ev.SessionID
		pr.timer = p.afterFunc(p.grace, func() { p.expire(sid) })
	}
}

// expire runs after the grace period of a terminal session.
func (p *Projector) expire(sessionID string) {
	p.mu.Lock()
	pr, ok := p.sessions[sessionID]
	if ok && pr.phase == phaseTerminal {
		p.clearLocked(sessionID, pr)
	}
	p.mu.Unlock()

	if ok {
		if err := p.coord.Release(sessionID); err != nil {
			p.log.Debug("Release of %s skipped: %v", sessionID, err)
		}
	}
}

// supersedeLocked clears member notifications of finished sessions when a new one starts.
func (p *Projector) supersedeLocked(newID string) {
	for sid, pr := range p.sessions {
		if sid == newID || pr.phase != phaseTerminal {
			continue
		}
		p.clearLocked(sid, pr)
		go func() {
			if err := p.coord.Release(sid); err != nil {
				p.log.Debug("Release of %s skipped: %v", sid, err)
			}
		}()
	}
}

func (p *Projector) clearLocked(sessionID string, pr *projection) {
	if pr.timer != nil {
		pr.timer.Stop()
	}

	if p.dismiss {
		p.host.CancelGroup(groupKey(sessionID))
	} else {
		for _, jobID := range pr.order {
			p.host.Cancel(pr.members[jobID])
		}
	}
	pr.phase = phaseCleared
}

func (p *Projector) allocLocked() int {
	id := p.nextID
	p.nextID++
	return id
}

// SummaryID returns the summary notification id of a session, if one was posted.
func (p *Projector) SummaryID(sessionID string) (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pr, ok := p.sessions[sessionID]
	if !ok || pr.phase == phaseNone {
		return 0, false
	}
	return pr.summaryID, true
}

func groupKey(sessionID string) string {
	return "session-" + sessionID
}

func findJob(snap domain.SessionSnapshot, id string) (domain.Job, bool) {
	for _, j := range snap.Jobs {
		if j.ID == id {
			return j, true
		}
	}
	return domain.Job{}, false
}

func summaryContent(s domain.SessionSnapshot) notify.Content {
	done := s.Finished()
	active := s.Total - done
	pct := 0
	if s.Total > 0 {
		pct = done * 100 / s.Total
	}

	return notify.Content{
		Title:        "Downloads",
		Text:         fmt.Sprintf("%d out of %d completed, %d active downloads", done, s.Total, active),
		Percent:      pct,
		ShowProgress: true,
		Ongoing:      active > 0,
		Actions:      []notify.Action{{Key: notify.ActionCancelAll, Label: "Cancel All"}},
	}
}

func finalContent(s domain.SessionSnapshot) notify.Content {
	failed := s.Failed - s.Cancelled

	title := "Downloads Complete"
	switch {
	case s.Failed == 0:
		title = "All Downloads Complete!"
	case s.Succeeded == 0:
		title = "Downloads Failed"
	}

	var parts []string
	if s.Succeeded > 0 {
		parts = append(parts, fmt.Sprintf("%d completed", s.Succeeded))
	}
	if failed > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", failed))
	}
	if s.Cancelled > 0 {
		parts = append(parts, fmt.Sprintf("%d cancelled", s.Cancelled))
	}
	parts = append(parts, fmt.Sprintf("%d total", s.Total))

	return notify.Content{
		Title:  title,
		Text:   strings.Join(parts, ", "),
		Failed: s.Failed > 0,
	}
}

func memberContent(j domain.Job) notify.Content {
	name := j.DisplayName
	if name == "" {
		name = j.Item.Name
	}

	switch j.State {
	case domain.StateQueued:
		return notify.Content{Title: name, Text: "Waiting to download", ShowProgress: true, Indeterminate: true, Ongoing: true}
	case domain.StateRunning:
		p := j.Progress()
		c := notify.Content{Title: "Downloading " + name, ShowProgress: true, Ongoing: true}
		if p.Known() {
			c.Percent = p.Percent()
			c.Text = fmt.Sprintf("%s of %s", humanize.IBytes(uint64(p.Transferred)), humanize.IBytes(uint64(p.Total)))
		} else {
			c.Indeterminate = true
			c.Text = humanize.IBytes(uint64(p.Transferred))
		}
		return c
	case domain.StateSucceeded:
		return notify.Content{Title: name, Text: "Download complete", Percent: 100}
	case domain.StateCancelled:
		return notify.Content{Title: name, Text: "Download cancelled", Failed: true}
	default:
		text := "Download failed"
		if j.Failure != domain.FailureNone {
			text = fmt.Sprintf("Download failed (%s)", strings.ReplaceAll(string(j.Failure), "_", " "))
		}
		return notify.Content{Title: name, Text: text, Failed: true}
	}
}
