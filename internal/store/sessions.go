package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/datallboy/gorom/internal/domain"
)

func (s *PersistentStore) RecordSession(ctx context.Context, rec domain.SessionRecord) error {
	var d sessionDBO
	d.FromDomain(rec)

	query := `INSERT INTO sessions (id, type, total, succeeded, failed, cancelled, created_at, finished_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?)
              ON CONFLICT(id) DO UPDATE SET
                  total = excluded.total,
                  succeeded = excluded.succeeded,
                  failed = excluded.failed,
                  cancelled = excluded.cancelled,
                  finished_at = excluded.finished_at`

	_, err := s.db.ExecContext(ctx, s.rebind(query),
		d.ID, d.Type, d.Total, d.Succeeded, d.Failed, d.Cancelled, d.CreatedAt, d.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record session %s: %w", rec.ID, err)
	}
	return nil
}

func (s *PersistentStore) ListSessions(ctx context.Context, limit int) ([]domain.SessionRecord, error) {
	query := `SELECT id, type, total, succeeded, failed, cancelled, created_at, finished_at
              FROM sessions ORDER BY finished_at DESC, id DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch sessions: %w", err)
	}
	defer rows.Close()

	var out []domain.SessionRecord
	for rows.Next() {
		var d sessionDBO
		if err := rows.Scan(&d.ID, &d.Type, &d.Total, &d.Succeeded, &d.Failed, &d.Cancelled, &d.CreatedAt, &d.FinishedAt); err != nil {
			return nil, err
		}
		out = append(out, d.ToDomain())
	}
	return out, rows.Err()
}

// GetSession returns nil, nil when the session was never recorded.
func (s *PersistentStore) GetSession(ctx context.Context, id string) (*domain.SessionRecord, error) {
	query := `SELECT id, type, total, succeeded, failed, cancelled, created_at, finished_at
              FROM sessions WHERE id = ? LIMIT 1`

	var d sessionDBO
	err := s.db.QueryRowContext(ctx, s.rebind(query), id).
		Scan(&d.ID, &d.Type, &d.Total, &d.Succeeded, &d.Failed, &d.Cancelled, &d.CreatedAt, &d.FinishedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch session: %w", err)
	}

	rec := d.ToDomain()
	return &rec, nil
}
