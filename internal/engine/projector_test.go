package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/datallboy/gorom/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// manualTimers captures grace callbacks so tests decide when they fire.
type manualTimers struct {
	mu    sync.Mutex
	fns   []func()
	grace []time.Duration
}

func (m *manualTimers) afterFunc(d time.Duration, f func()) *time.Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fns = append(m.fns, f)
	m.grace = append(m.grace, d)
	return time.NewTimer(time.Hour)
}

func (m *manualTimers) fire(t *testing.T, i int) {
	t.Helper()
	m.mu.Lock()
	require.Greater(t, len(m.fns), i)
	f := m.fns[i]
	m.mu.Unlock()
	f()
}

func (m *manualTimers) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.fns)
}

func newTestProjector(opts ProjectorOptions) (*Coordinator, *Projector, *recordingHost, *manualTimers) {
	c := NewCoordinator()
	host := newRecordingHost()
	timers := &manualTimers{}
	p := NewProjector(c, host, opts, nil)
	p.afterFunc = timers.afterFunc
	return c, p, host, timers
}

func finish(t *testing.T, c *Coordinator, id string, state domain.JobState) {
	t.Helper()
	require.NoError(t, c.ReportTransition(id, domain.StateRunning))
	require.NoError(t, c.ReportTransition(id, state))
}

func TestProjector_SummaryPostedBeforeMembers(t *testing.T) {
	c, p, host, _ := newTestProjector(ProjectorOptions{GracePeriod: time.Second})

	sid := c.JoinBulk([]*domain.Job{testJob("a"), testJob("b")})

	ops := host.history()
	require.GreaterOrEqual(t, len(ops), 3)
	summary, ok := p.SummaryID(sid)
	require.True(t, ok)

	assert.Equal(t, "post", ops[0].op)
	assert.Equal(t, summary, ops[0].id)
	assert.Equal(t, groupKey(sid), ops[0].group)
	assert.Equal(t, "Downloads", ops[0].content.Title)

	posts := 0
	for _, op := range ops {
		if op.op == "post" {
			posts++
			assert.Equal(t, groupKey(sid), op.group)
		}
	}
	assert.Equal(t, 3, posts)

	c1, ok := host.get(summary)
	require.True(t, ok)
	assert.Equal(t, "0 out of 2 completed, 2 active downloads", c1.Text)
	require.Len(t, c1.Actions, 1)
	assert.Equal(t, "cancel_all", c1.Actions[0].Key)
}

func TestProjector_MemberContentFollowsState(t *testing.T) {
	c, p, host, _ := newTestProjector(ProjectorOptions{GracePeriod: time.Second})

	sid := c.JoinBulk([]*domain.Job{testJob("a"), testJob("b")})
	summary, _ := p.SummaryID(sid)
	memberA := summary + 1

	got, _ := host.get(memberA)
	assert.Equal(t, "Waiting to download", got.Text)
	assert.True(t, got.Indeterminate)

	require.NoError(t, c.ReportTransition("a", domain.StateRunning))
	c.ReportProgress("a", domain.TransferProgress{Transferred: 512 * 1024, Total: 1024 * 1024})
	got, _ = host.get(memberA)
	assert.Equal(t, "Downloading game a", got.Title)
	assert.Equal(t, 50, got.Percent)
	assert.Equal(t, "512 KiB of 1.0 MiB", got.Text)

	require.NoError(t, c.ReportTransition("a", domain.StateSucceeded))
	got, _ = host.get(memberA)
	assert.Equal(t, "Download complete", got.Text)

	s, _ := host.get(summary)
	assert.Equal(t, "1 out of 2 completed, 1 active downloads", s.Text)
	assert.True(t, s.Ongoing)
}

func TestProjector_FinalSummaryAndGraceExpiry(t *testing.T) {
	c, p, host, timers := newTestProjector(ProjectorOptions{GracePeriod: 4 * time.Second})

	sid := c.JoinBulk([]*domain.Job{testJob("a"), testJob("b")})
	summary, _ := p.SummaryID(sid)

	finish(t, c, "a", domain.StateSucceeded)
	finish(t, c, "b", domain.StateSucceeded)

	s, _ := host.get(summary)
	assert.Equal(t, "All Downloads Complete!", s.Title)
	assert.Equal(t, "2 completed, 2 total", s.Text)
	assert.False(t, s.Ongoing)

	require.Equal(t, 1, timers.count())
	assert.Equal(t, 4*time.Second, timers.grace[0])

	timers.fire(t, 0)

	_, ok := host.get(summary + 1)
	assert.False(t, ok, "member notifications are cleared after the grace period")
	_, ok = host.get(summary + 2)
	assert.False(t, ok)
	_, ok = host.get(summary)
	assert.True(t, ok, "summary stays visible")

	_, err := c.CurrentState(sid)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestProjector_DismissSummary(t *testing.T) {
	c, p, host, timers := newTestProjector(ProjectorOptions{GracePeriod: time.Second, DismissSummary: true})

	sid := c.JoinBulk([]*domain.Job{testJob("a")})
	summary, _ := p.SummaryID(sid)
	finish(t, c, "a", domain.StateFailed)

	timers.fire(t, 0)

	_, ok := host.get(summary)
	assert.False(t, ok)
	ops := host.history()
	assert.Equal(t, "cancel_group", ops[len(ops)-1].op)
	assert.Equal(t, groupKey(sid), ops[len(ops)-1].group)
}

func TestProjector_NewSessionSupersedesFinishedOne(t *testing.T) {
	c, p, host, _ := newTestProjector(ProjectorOptions{GracePeriod: time.Hour})

	first := c.JoinBulk([]*domain.Job{testJob("a")})
	firstSummary, _ := p.SummaryID(first)
	finish(t, c, "a", domain.StateSucceeded)

	second := c.JoinBulk([]*domain.Job{testJob("b")})
	require.NotEqual(t, first, second)

	_, ok := host.get(firstSummary + 1)
	assert.False(t, ok, "old member notification is cleared")

	require.Eventually(t, func() bool {
		_, err := c.CurrentState(first)
		return err != nil
	}, time.Second, 5*time.Millisecond)

	secondSummary, ok := p.SummaryID(second)
	require.True(t, ok)
	assert.NotEqual(t, firstSummary, secondSummary)
	_, ok = host.get(secondSummary)
	assert.True(t, ok)
}

func TestProjector_ActiveSessionsAreNotSuperseded(t *testing.T) {
	c, p, host, _ := newTestProjector(ProjectorOptions{GracePeriod: time.Hour})

	bulk := c.JoinBulk([]*domain.Job{testJob("a")})
	bulkSummary, _ := p.SummaryID(bulk)

	one := c.CreateIndividualSession()
	require.NoError(t, c.AddJob(one, testJob("b")))

	_, ok := host.get(bulkSummary + 1)
	assert.True(t, ok)
	_, err := c.CurrentState(bulk)
	assert.NoError(t, err)
}

func TestProjector_IgnoresEventsAfterRelease(t *testing.T) {
	c, p, host, timers := newTestProjector(ProjectorOptions{GracePeriod: time.Second})

	sid := c.JoinBulk([]*domain.Job{testJob("a")})
	finish(t, c, "a", domain.StateSucceeded)
	timers.fire(t, 0)

	before := len(host.history())
	p.handle(Event{Kind: EventJobProgress, SessionID: sid, JobID: "a", State: domain.StateRunning})
	assert.Len(t, host.history(), before)
	_, ok := p.SummaryID(sid)
	assert.False(t, ok)
}

func TestFinalContent(t *testing.T) {
	tests := []struct {
		name  string
		snap  domain.SessionSnapshot
		title string
		text  string
	}{
		{
			name:  "all succeeded",
			snap:  domain.SessionSnapshot{Total: 3, Succeeded: 3},
			title: "All Downloads Complete!",
			text:  "3 completed, 3 total",
		},
		{
			name:  "all failed",
			snap:  domain.SessionSnapshot{Total: 2, Failed: 2},
			title: "Downloads Failed",
			text:  "2 failed, 2 total",
		},
		{
			name:  "mixed with cancellations",
			snap:  domain.SessionSnapshot{Total: 5, Succeeded: 2, Failed: 3, Cancelled: 1},
			title: "Downloads Complete",
			text:  "2 completed, 2 failed, 1 cancelled, 5 total",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := finalContent(tt.snap)
			assert.Equal(t, tt.title, c.Title)
			assert.Equal(t, tt.text, c.Text)
			assert.Equal(t, tt.snap.Failed > 0, c.Failed)
		})
	}
}

func TestMemberContent_Failures(t *testing.T) {
	j := domain.Job{DisplayName: "Zelda", State: domain.StateFailed, Failure: domain.FailureArchiveCorrupt}
	assert.Equal(t, "Download failed (archive corrupt)", memberContent(j).Text)

	j.State = domain.StateCancelled
	assert.Equal(t, "Download cancelled", memberContent(j).Text)

	j.State = domain.StateRunning
	j.BytesTransferred = 2048
	j.BytesTotal = -1
	c := memberContent(j)
	assert.True(t, c.Indeterminate)
	assert.Equal(t, "2.0 KiB", c.Text)
}
