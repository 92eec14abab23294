package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/datallboy/gorom/internal/domain"
)

// DownloadFilter narrows ListDownloads. Zero values match everything.
type DownloadFilter struct {
	Kind     domain.JobKind
	Platform string
	Limit    int
}

// RecordDownload stores a completed download. Recording the same job twice keeps the
// latest values.
func (s *PersistentStore) RecordDownload(ctx context.Context, rec domain.DownloadRecord) error {
	var d downloadDBO
	d.FromDomain(rec)

	query := `INSERT INTO downloads (job_id, session_id, kind, item_id, name, platform, path, bytes, completed_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
              ON CONFLICT(job_id) DO UPDATE SET
                  path = excluded.path,
                  bytes = excluded.bytes,
                  completed_at = excluded.completed_at`

	_, err := s.db.ExecContext(ctx, s.rebind(query),
		d.JobID,
		d.SessionID,
		d.Kind,
		d.ItemID,
		d.Name,
		d.Platform,
		d.Path,
		d.Bytes,
		d.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record download %s: %w", rec.JobID, err)
	}
	return nil
}

// ListDownloads returns the ledger newest first.
func (s *PersistentStore) ListDownloads(ctx context.Context, f DownloadFilter) ([]domain.DownloadRecord, error) {
	var (
		where []string
		args  []any
	)
	if f.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, string(f.Kind))
	}
	if f.Platform != "" {
		where = append(where, "platform = ?")
		args = append(args, f.Platform)
	}

	query := `SELECT job_id, session_id, kind, item_id, name, platform, path, bytes, completed_at FROM downloads`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY completed_at DESC, job_id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch downloads: %w", err)
	}
	defer rows.Close()

	var out []domain.DownloadRecord
	for rows.Next() {
		var d downloadDBO
		err := rows.Scan(&d.JobID, &d.SessionID, &d.Kind, &d.ItemID, &d.Name, &d.Platform, &d.Path, &d.Bytes, &d.CompletedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, d.ToDomain())
	}

	return out, rows.Err()
}
