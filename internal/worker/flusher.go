package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/wfh-tracker/backend/internal/activity"
	"github.com/wfh-tracker/backend/internal/sessions"
	"github.com/wfh-tracker/backend/pkg/queue"
)

// Flusher drains the flush queues and upserts snapshots into PostgreSQL.
// Failed jobs are retried with backoff and land in the DLQ after MaxRetries;
// the in-memory aggregation path never sees these failures.
type Flusher struct {
	sessionRepo *sessions.Repository
	windowRepo  *activity.Repository
	queue       *queue.Queue
	logger      *zap.Logger
}

// NewFlusher creates a flush worker.
func NewFlusher(sessionRepo *sessions.Repository, windowRepo *activity.Repository, q *queue.Queue, logger *zap.Logger) *Flusher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Flusher{sessionRepo: sessionRepo, windowRepo: windowRepo, queue: q, logger: logger}
}

// Process executes one flush job.
func (f *Flusher) Process(ctx context.Context, job *queue.Job) error {
	switch job.Type {
	case queue.JobTypeSessionFlush:
		var payload queue.SessionFlushPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("unmarshal payload: %w", err)
		}
		if err := f.sessionRepo.Upsert(ctx, payload.Session); err != nil {
			return fmt.Errorf("upsert session: %w", err)
		}
		return nil

	case queue.JobTypeWindowFlush:
		var payload queue.WindowFlushPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("unmarshal payload: %w", err)
		}
		if err := f.windowRepo.Upsert(ctx, payload.Window); err != nil {
			return fmt.Errorf("upsert window: %w", err)
		}
		return nil

	default:
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

// Run starts the worker loop: dequeue, process, retry on error.
func (f *Flusher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			f.logger.Info("flush worker stopping")
			return
		default:
		}

		job, key, err := f.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				f.logger.Info("flush worker stopping")
				return
			}
			f.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		f.logger.Debug("processing flush job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := f.Process(ctx, job); err != nil {
			f.logger.Error("flush job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := f.queue.Retry(ctx, job, key); reErr != nil {
				f.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
		}
	}
}
