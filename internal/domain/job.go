package domain

import "time"

type JobKind string

const (
	KindGame     JobKind = "game"
	KindFirmware JobKind = "firmware"
)

type JobState string

const (
	StateQueued    JobState = "queued"
	StateRunning   JobState = "running"
	StateSucceeded JobState = "succeeded"
	StateFailed    JobState = "failed"
	StateCancelled JobState = "cancelled"
)

// Terminal reports whether no further transition is allowed out of s.
func (s JobState) Terminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateCancelled
}

// CanTransition reports whether a job may move from s to next.
func (s JobState) CanTransition(next JobState) bool {
	switch s {
	case StateQueued:
		return next == StateRunning || next == StateFailed || next == StateCancelled
	case StateRunning:
		return next.Terminal()
	default:
		return false
	}
}

// Item is what a caller asks to download. Game items carry the rom id and platform,
// firmware items carry the firmware id and the platform it belongs to.
type Item struct {
	Kind         JobKind `json:"kind"`
	ID           int     `json:"id"`
	Name         string  `json:"name"`
	PlatformID   int     `json:"platform_id,omitempty"`
	PlatformSlug string  `json:"platform_slug,omitempty"`
	FileName     string  `json:"file_name,omitempty"`
	Multi        bool    `json:"multi,omitempty"`
}

// SourceRef identifies remote content on the server.
type SourceRef struct {
	Kind     JobKind
	ID       int
	FileName string
}

// Destination describes where a job materializes its output.
type Destination struct {
	Base      string
	Directory string
	FileName  string
}

// Job is one transfer unit. Jobs are owned by the session coordinator; callers only
// ever see copies.
type Job struct {
	ID          string      `json:"id"`
	SessionID   string      `json:"session_id"`
	Kind        JobKind     `json:"kind"`
	DisplayName string      `json:"display_name"`
	Item        Item        `json:"item"`
	Source      SourceRef   `json:"-"`
	Destination Destination `json:"destination"`

	State            JobState    `json:"state"`
	BytesTotal       int64       `json:"bytes_total"`
	BytesTransferred int64       `json:"bytes_transferred"`
	Failure          FailureKind `json:"failure,omitempty"`
	Error            string      `json:"error,omitempty"`

	QueuedAt   time.Time `json:"queued_at"`
	StartedAt  time.Time `json:"started_at,omitempty"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// Progress returns the job's current transfer progress.
func (j Job) Progress() TransferProgress {
	return TransferProgress{Transferred: j.BytesTransferred, Total: j.BytesTotal}
}
