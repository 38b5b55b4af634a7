// Package pipeline contains the job service (submission and polling) and the
// orchestrator that drives a job through the extraction stages.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"printshop/internal/domain"
	"printshop/internal/infra"
	"printshop/internal/queue"
	"printshop/internal/storage"
)

// Service exposes job submission and status polling to the HTTP layer.
type Service struct {
	jobs   domain.JobRepository
	assets domain.AssetRepository
	queue  queue.Queue
	blobs  storage.BlobStore
	logger infra.Logger
}

// NewService wires the job service.
func NewService(jobs domain.JobRepository, assets domain.AssetRepository, q queue.Queue, blobs storage.BlobStore, logger infra.Logger) *Service {
	return &Service{jobs: jobs, assets: assets, queue: q, blobs: blobs, logger: logger}
}

// CreateJobParams describes a submission. FilePath may be a local filesystem
// path or a remotely resolvable URL.
type CreateJobParams struct {
	UserID        *string
	UploadAssetID string
	FilePath      string
}

// CreateJob durably creates the job record, then enqueues the extraction
// message. The insert commits before Enqueue so the queue never carries a
// reference to a job that does not exist.
func (s *Service) CreateJob(ctx context.Context, p CreateJobParams) (string, error) {
	if p.UploadAssetID == "" || p.FilePath == "" {
		return "", fmt.Errorf("%w: uploadAssetId and filePath are required", domain.ErrInvalidInput)
	}

	job := &domain.Job{
		ID:            uuid.NewString(),
		UserID:        p.UserID,
		UploadAssetID: p.UploadAssetID,
		Status:        domain.JobStatusQueued,
		Logs:          "Job created",
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return "", fmt.Errorf("create extraction job: %w", err)
	}

	msg := queue.Message{
		JobID:         job.ID,
		UploadAssetID: p.UploadAssetID,
		FilePath:      p.FilePath,
		UserID:        p.UserID,
	}
	if err := s.queue.Enqueue(ctx, msg); err != nil {
		// The job row stays queued; surfacing the error lets the client retry
		// submission rather than poll a job that will never run.
		s.logger.Error().Err(err).Str("job_id", job.ID).Msg("failed to enqueue extraction job")
		return "", fmt.Errorf("enqueue extraction job: %w", err)
	}

	s.logger.Info().Str("job_id", job.ID).Msg("job created")
	return job.ID, nil
}

// JobStatus is the polling view of a job.
type JobStatus struct {
	ID           string             `json:"id"`
	Status       domain.JobStatus   `json:"status"`
	Logs         string             `json:"logs,omitempty"`
	ErrorMessage string             `json:"errorMessage,omitempty"`
	ResultData   *domain.ResultData `json:"resultData,omitempty"`
	CreatedAt    time.Time          `json:"createdAt"`
	UpdatedAt    time.Time          `json:"updatedAt"`
	CompletedAt  *time.Time         `json:"completedAt,omitempty"`
}

// GetJobStatus returns the current lifecycle view of a job, or
// domain.ErrNotFound.
func (s *Service) GetJobStatus(ctx context.Context, jobID string) (*JobStatus, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	status := &JobStatus{
		ID:           job.ID,
		Status:       job.Status,
		Logs:         job.Logs,
		ErrorMessage: job.ErrorMessage,
		CreatedAt:    job.CreatedAt,
		UpdatedAt:    job.UpdatedAt,
		CompletedAt:  job.CompletedAt,
	}
	if len(job.ResultJSON) > 0 {
		var result domain.ResultData
		if err := json.Unmarshal(job.ResultJSON, &result); err != nil {
			return nil, fmt.Errorf("decode job result: %w", err)
		}
		status.ResultData = &result
	}
	return status, nil
}

// JobAssets lists the artifacts produced for a job.
func (s *Service) JobAssets(ctx context.Context, jobID string) ([]domain.Asset, error) {
	if _, err := s.jobs.GetByID(ctx, jobID); err != nil {
		return nil, err
	}
	return s.assets.ListByJobID(ctx, jobID)
}

// RegisterUpload stores an uploaded photo and records its asset row, returning
// the record the caller needs to submit a job.
func (s *Service) RegisterUpload(ctx context.Context, userID *string, originalName string, data []byte, contentType string) (*domain.Asset, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty upload", domain.ErrInvalidInput)
	}

	id := uuid.NewString()
	ext := strings.ToLower(filepath.Ext(originalName))
	if ext == "" {
		ext = ".jpg"
	}
	url, err := s.blobs.Put(ctx, fmt.Sprintf("uploads/%s%s", id, ext), data, contentType)
	if err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	asset := &domain.Asset{
		ID:           id,
		OwnerType:    "user",
		OwnerID:      userID,
		FileURL:      url,
		FileType:     strings.TrimPrefix(ext, "."),
		FileSize:     int64(len(data)),
		OriginalName: originalName,
		Kind:         domain.AssetKindUpload,
	}
	if err := s.assets.Create(ctx, asset); err != nil {
		return nil, fmt.Errorf("record upload asset: %w", err)
	}
	return asset, nil
}
