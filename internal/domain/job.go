package domain

import "time"

// JobStatus enumerates extraction job lifecycle states.
type JobStatus string

const (
	JobStatusQueued  JobStatus = "queued"
	JobStatusRunning JobStatus = "running"
	JobStatusDone    JobStatus = "done"
	JobStatusError   JobStatus = "error"
)

// Terminal reports whether the status is an end state.
func (s JobStatus) Terminal() bool {
	return s == JobStatusDone || s == JobStatusError
}

// Job encapsulates one unit of asynchronous logo extraction work. The jobs
// table is the single source of truth for a job's progress; the worker holding
// the queue delivery is the only writer for a given id.
type Job struct {
	ID            string
	UserID        *string
	UploadAssetID string
	Status        JobStatus
	Logs          string
	ErrorMessage  string
	ResultJSON    []byte
	CreatedAt     time.Time
	UpdatedAt     time.Time
	CompletedAt   *time.Time
}

// ResultMetadata carries the verified properties of the final artifact.
type ResultMetadata struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Format string `json:"format"`
	DPI    int    `json:"dpi"`
}

// ResultData is the structured payload persisted in result_json once a job
// reaches done. Field names match the polling API contract.
type ResultData struct {
	OriginalAssetID    string         `json:"originalAssetId"`
	WhiteBgAssetID     string         `json:"whiteBgAssetId"`
	TransparentAssetID string         `json:"transparentAssetId"`
	Metadata           ResultMetadata `json:"metadata"`
}
