package store

import (
	"database/sql"
	"time"

	"github.com/datallboy/gorom/internal/domain"
)

// downloadDBO maps to the downloads table
type downloadDBO struct {
	JobID       string         `db:"job_id"`
	SessionID   string         `db:"session_id"`
	Kind        string         `db:"kind"`
	ItemID      int64          `db:"item_id"`
	Name        string         `db:"name"`
	Platform    sql.NullString `db:"platform"`
	Path        string         `db:"path"`
	Bytes       int64          `db:"bytes"`
	CompletedAt int64          `db:"completed_at"`
}

// Mapper: DBO to Domain DownloadRecord
func (d *downloadDBO) ToDomain() domain.DownloadRecord {
	return domain.DownloadRecord{
		JobID:       d.JobID,
		SessionID:   d.SessionID,
		Kind:        domain.JobKind(d.Kind),
		ItemID:      int(d.ItemID),
		Name:        d.Name,
		Platform:    d.Platform.String,
		Path:        d.Path,
		Bytes:       d.Bytes,
		CompletedAt: time.Unix(d.CompletedAt, 0).UTC(),
	}
}

// Mapper: Domain DownloadRecord to DBO
func (d *downloadDBO) FromDomain(rec domain.DownloadRecord) {
	d.JobID = rec.JobID
	d.SessionID = rec.SessionID
	d.Kind = string(rec.Kind)
	d.ItemID = int64(rec.ItemID)
	d.Name = rec.Name
	d.Platform = sql.NullString{String: rec.Platform, Valid: rec.Platform != ""}
	d.Path = rec.Path
	d.Bytes = rec.Bytes

	if !rec.CompletedAt.IsZero() {
		d.CompletedAt = rec.CompletedAt.Unix()
	} else {
		d.CompletedAt = time.Now().Unix()
	}
}

// sessionDBO maps to the sessions table
type sessionDBO struct {
	ID         string `db:"id"`
	Type       string `db:"type"`
	Total      int    `db:"total"`
	Succeeded  int    `db:"succeeded"`
	Failed     int    `db:"failed"`
	Cancelled  int    `db:"cancelled"`
	CreatedAt  int64  `db:"created_at"`
	FinishedAt int64  `db:"finished_at"`
}

func (s *sessionDBO) ToDomain() domain.SessionRecord {
	return domain.SessionRecord{
		ID:         s.ID,
		Type:       domain.SessionType(s.Type),
		Total:      s.Total,
		Succeeded:  s.Succeeded,
		Failed:     s.Failed,
		Cancelled:  s.Cancelled,
		CreatedAt:  time.Unix(s.CreatedAt, 0).UTC(),
		FinishedAt: time.Unix(s.FinishedAt, 0).UTC(),
	}
}

func (s *sessionDBO) FromDomain(rec domain.SessionRecord) {
	s.ID = rec.ID
	s.Type = string(rec.Type)
	s.Total = rec.Total
	s.Succeeded = rec.Succeeded
	s.Failed = rec.Failed
	s.Cancelled = rec.Cancelled
	s.CreatedAt = rec.CreatedAt.Unix()
	s.FinishedAt = rec.FinishedAt.Unix()
}
