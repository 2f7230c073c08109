package sessions

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wfh-tracker/backend/internal/models"
)

// Repository handles the sessions store, keyed by (user_id, opened_at).
// Rows are upserted by the flush worker; there are no deletes in normal operation.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a sessions repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Upsert writes a session snapshot, replacing any prior snapshot of the same session.
func (r *Repository) Upsert(ctx context.Context, s models.Session) error {
	intervals, err := json.Marshal(s.StreamingIntervals)
	if err != nil {
		return fmt.Errorf("marshal intervals: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO sessions (id, user_id, channel, opened_at, closed_at, streaming_intervals, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NOW())
		 ON CONFLICT (user_id, opened_at) DO UPDATE
		 SET closed_at = EXCLUDED.closed_at, streaming_intervals = EXCLUDED.streaming_intervals, updated_at = NOW()`,
		s.ID, s.UserID, s.Channel, s.OpenedAt, s.ClosedAt, intervals)
	return err
}

// ListOverlappingDay returns the user's sessions that overlap [dayStart, dayEnd).
// Open sessions (closed_at IS NULL) always count as overlapping if they opened before dayEnd.
func (r *Repository) ListOverlappingDay(ctx context.Context, userID string, dayStart, dayEnd time.Time) ([]models.Session, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, channel, opened_at, closed_at, streaming_intervals
		 FROM sessions
		 WHERE user_id = $1 AND opened_at < $3 AND (closed_at IS NULL OR closed_at > $2)
		 ORDER BY opened_at`,
		userID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Session
	for rows.Next() {
		var s models.Session
		var intervals []byte
		if err := rows.Scan(&s.ID, &s.UserID, &s.Channel, &s.OpenedAt, &s.ClosedAt, &intervals); err != nil {
			return nil, err
		}
		if len(intervals) > 0 {
			if err := json.Unmarshal(intervals, &s.StreamingIntervals); err != nil {
				return nil, fmt.Errorf("unmarshal intervals: %w", err)
			}
		}
		list = append(list, s)
	}
	return list, rows.Err()
}
