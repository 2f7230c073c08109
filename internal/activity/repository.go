package activity

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wfh-tracker/backend/internal/models"
)

// Repository handles the activity_windows store, keyed by (user_id, date).
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an activity windows repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Upsert writes a window snapshot, replacing any prior snapshot for the same day.
func (r *Repository) Upsert(ctx context.Context, w models.ActivityWindow) error {
	usage, err := json.Marshal(w.AppUsage)
	if err != nil {
		return fmt.Errorf("marshal app usage: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO activity_windows (user_id, date, active_seconds, idle_seconds, app_usage, first_activity_at, last_activity_at, last_idle, updated_at)
		 VALUES ($1, $2::date, $3, $4, $5, $6, $7, $8, NOW())
		 ON CONFLICT (user_id, date) DO UPDATE
		 SET active_seconds = EXCLUDED.active_seconds,
		     idle_seconds = EXCLUDED.idle_seconds,
		     app_usage = EXCLUDED.app_usage,
		     first_activity_at = EXCLUDED.first_activity_at,
		     last_activity_at = EXCLUDED.last_activity_at,
		     last_idle = EXCLUDED.last_idle,
		     updated_at = NOW()`,
		w.UserID, w.Date, w.ActiveSeconds, w.IdleSeconds, usage, w.FirstActivityAt, w.LastActivityAt, w.LastIdle)
	return err
}

// GetByUserAndDate returns the persisted window for a user and date, or nil when none exists.
func (r *Repository) GetByUserAndDate(ctx context.Context, userID, date string) (*models.ActivityWindow, error) {
	const q = `SELECT user_id, date::text, active_seconds, idle_seconds, app_usage, first_activity_at, last_activity_at, last_idle
		FROM activity_windows WHERE user_id = $1 AND date = $2::date`
	var w models.ActivityWindow
	var usage []byte
	err := r.pool.QueryRow(ctx, q, userID, date).Scan(
		&w.UserID, &w.Date, &w.ActiveSeconds, &w.IdleSeconds, &usage, &w.FirstActivityAt, &w.LastActivityAt, &w.LastIdle)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if len(usage) > 0 {
		if err := json.Unmarshal(usage, &w.AppUsage); err != nil {
			return nil, fmt.Errorf("unmarshal app usage: %w", err)
		}
	}
	return &w, nil
}
