package domain

import "time"

type SessionType string

const (
	SessionBulk       SessionType = "bulk"
	SessionIndividual SessionType = "individual"
)

// SessionSnapshot is a read-only view of a session's aggregate counters.
// Queued+Running+Succeeded+Failed always equals Total. Cancelled is a subset of Failed.
type SessionSnapshot struct {
	ID        string      `json:"id"`
	Type      SessionType `json:"type"`
	CreatedAt time.Time   `json:"created_at"`

	Total     int `json:"total"`
	Queued    int `json:"queued"`
	Running   int `json:"running"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`

	Jobs []Job `json:"jobs,omitempty"`
}

// Active reports whether the session still has work outstanding.
func (s SessionSnapshot) Active() bool {
	return s.Queued+s.Running > 0
}

// Terminal reports whether every member has reached a terminal state.
func (s SessionSnapshot) Terminal() bool {
	return s.Total > 0 && s.Queued+s.Running == 0
}

// Finished returns the number of members in a terminal state.
func (s SessionSnapshot) Finished() int {
	return s.Succeeded + s.Failed
}
