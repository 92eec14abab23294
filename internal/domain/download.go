package domain

import "time"

// DownloadRecord is a completed download as kept in the ledger.
type DownloadRecord struct {
	JobID       string    `json:"job_id"`
	SessionID   string    `json:"session_id"`
	Kind        JobKind   `json:"kind"`
	ItemID      int       `json:"item_id"`
	Name        string    `json:"name"`
	Platform    string    `json:"platform"`
	Path        string    `json:"path"`
	Bytes       int64     `json:"bytes"`
	CompletedAt time.Time `json:"completed_at"`
}

// SessionRecord is the outcome of a finished session.
type SessionRecord struct {
	ID         string      `json:"id"`
	Type       SessionType `json:"type"`
	Total      int         `json:"total"`
	Succeeded  int         `json:"succeeded"`
	Failed     int         `json:"failed"`
	Cancelled  int         `json:"cancelled"`
	CreatedAt  time.Time   `json:"created_at"`
	FinishedAt time.Time   `json:"finished_at"`
}

// Record turns a terminal snapshot into its ledger entry.
func (s SessionSnapshot) Record(finishedAt time.Time) SessionRecord {
	return SessionRecord{
		ID:         s.ID,
		Type:       s.Type,
		Total:      s.Total,
		Succeeded:  s.Succeeded,
		Failed:     s.Failed,
		Cancelled:  s.Cancelled,
		CreatedAt:  s.CreatedAt,
		FinishedAt: finishedAt,
	}
}
