package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"printshop/internal/domain"
	"printshop/internal/sqlinline"
)

// JobRepositoryPG implements domain.JobRepository backed by PostgreSQL.
type JobRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewJobRepository creates a new job repository backed by PostgreSQL.
func NewJobRepository(pool *pgxpool.Pool) *JobRepositoryPG {
	return &JobRepositoryPG{pool: pool}
}

// Create inserts a new job record. The row must be durable before the caller
// enqueues the matching message, so this is a plain committed insert.
func (r *JobRepositoryPG) Create(ctx context.Context, job *domain.Job) error {
	_, err := r.pool.Exec(ctx, sqlinline.QInsertJob,
		job.ID,
		job.UserID,
		job.UploadAssetID,
		job.Status,
		job.Logs,
	)
	return err
}

// GetByID fetches a job by its identifier.
func (r *JobRepositoryPG) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	row := r.pool.QueryRow(ctx, sqlinline.QSelectJobByID, jobID)
	var job domain.Job
	if err := row.Scan(
		&job.ID,
		&job.UserID,
		&job.UploadAssetID,
		&job.Status,
		&job.Logs,
		&job.ErrorMessage,
		&job.ResultJSON,
		&job.CreatedAt,
		&job.UpdatedAt,
		&job.CompletedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &job, nil
}

// UpdateStatus sets the job status and progress log line. Moving a job back to
// a non-terminal status clears the terminal fields left by a prior attempt.
func (r *JobRepositoryPG) UpdateStatus(ctx context.Context, jobID string, status domain.JobStatus, logs string) error {
	_, err := r.pool.Exec(ctx, sqlinline.QUpdateJobStatus, jobID, status, logs)
	return err
}

// Complete atomically marks the job done with its result payload.
func (r *JobRepositoryPG) Complete(ctx context.Context, jobID string, result domain.ResultData, logs string) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	_, err = r.pool.Exec(ctx, sqlinline.QCompleteJob, jobID, domain.JobStatusDone, logs, payload)
	return err
}

// Fail atomically marks the job errored with the failure message.
func (r *JobRepositoryPG) Fail(ctx context.Context, jobID string, errMsg string) error {
	_, err := r.pool.Exec(ctx, sqlinline.QFailJob, jobID, domain.JobStatusError, errMsg)
	return err
}
