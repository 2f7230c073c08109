package models

import (
	"time"

	"github.com/google/uuid"
)

// Screenshot is metadata for a stored screenshot; the binary lives in S3.
type Screenshot struct {
	ID        uuid.UUID `json:"id"`
	UserID    string    `json:"user_id"`
	TakenAt   time.Time `json:"taken_at"`
	S3Key     string    `json:"s3_key"`
	CreatedAt time.Time `json:"created_at"`
}
