package screenshots

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wfh-tracker/backend/internal/models"
)

// Repository handles screenshot metadata, keyed by (user_id, taken_at).
// Only metadata lives here; the binary data stays in S3.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a screenshots repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create records screenshot metadata. Duplicate (user_id, taken_at) pairs keep the first key.
func (r *Repository) Create(ctx context.Context, userID string, takenAt time.Time, s3Key string) (*models.Screenshot, error) {
	const q = `INSERT INTO screenshots (id, user_id, taken_at, s3_key)
		VALUES (gen_random_uuid(), $1, $2, $3)
		ON CONFLICT (user_id, taken_at) DO UPDATE SET s3_key = screenshots.s3_key
		RETURNING id, user_id, taken_at, s3_key, created_at`
	var sc models.Screenshot
	err := r.pool.QueryRow(ctx, q, userID, takenAt, s3Key).Scan(&sc.ID, &sc.UserID, &sc.TakenAt, &sc.S3Key, &sc.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &sc, nil
}

// ListByUserAndDay returns screenshot metadata for a user within [dayStart, dayEnd), newest first.
func (r *Repository) ListByUserAndDay(ctx context.Context, userID string, dayStart, dayEnd time.Time) ([]models.Screenshot, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, taken_at, s3_key, created_at
		 FROM screenshots WHERE user_id = $1 AND taken_at >= $2 AND taken_at < $3
		 ORDER BY taken_at DESC`,
		userID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Screenshot
	for rows.Next() {
		var sc models.Screenshot
		if err := rows.Scan(&sc.ID, &sc.UserID, &sc.TakenAt, &sc.S3Key, &sc.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, sc)
	}
	return list, rows.Err()
}
