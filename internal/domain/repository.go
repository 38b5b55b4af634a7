package domain

import "context"

// JobRepository defines persistence for extraction jobs. Implementations must
// make Complete and Fail atomic single-statement updates so that exactly one
// terminal state is ever observed per job.
type JobRepository interface {
	Create(ctx context.Context, job *Job) error
	GetByID(ctx context.Context, jobID string) (*Job, error)
	UpdateStatus(ctx context.Context, jobID string, status JobStatus, logs string) error
	Complete(ctx context.Context, jobID string, result ResultData, logs string) error
	Fail(ctx context.Context, jobID string, errMsg string) error
}

// AssetRepository handles persistence for stored-file records.
type AssetRepository interface {
	Create(ctx context.Context, asset *Asset) error
	ListByJobID(ctx context.Context, jobID string) ([]Asset, error)
}
