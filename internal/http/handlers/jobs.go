package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"printshop/internal/domain"
	"printshop/internal/pipeline"
)

type jobCreateRequest struct {
	UploadAssetID string `json:"uploadAssetId"`
	FilePath      string `json:"filePath"`
}

type jobResponse struct {
	JobID         string `json:"job_id"`
	UploadAssetID string `json:"upload_asset_id"`
	Status        string `json:"status"`
}

// JobsCreate accepts a new extraction job. Clients either upload the garment
// photo directly as multipart form data (field "image"), or reference an
// already registered asset with a JSON body.
func (a *App) JobsCreate(w http.ResponseWriter, r *http.Request) {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		a.jobsCreateFromUpload(w, r)
		return
	}

	var req jobCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	jobID, err := a.Service.CreateJob(r.Context(), pipeline.CreateJobParams{
		UploadAssetID: req.UploadAssetID,
		FilePath:      req.FilePath,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			a.error(w, http.StatusBadRequest, "bad_request", "uploadAssetId and filePath are required")
			return
		}
		a.Logger.Error().Err(err).Msg("job submission failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to queue extraction job")
		return
	}
	a.json(w, http.StatusAccepted, jobResponse{JobID: jobID, UploadAssetID: req.UploadAssetID, Status: string(domain.JobStatusQueued)})
}

func (a *App) jobsCreateFromUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, a.MaxUploadBytes)
	file, header, err := r.FormFile("image")
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "multipart field 'image' is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "failed to read upload")
		return
	}

	asset, err := a.Service.RegisterUpload(r.Context(), nil, header.Filename, data, header.Header.Get("Content-Type"))
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			a.error(w, http.StatusBadRequest, "bad_request", "empty upload")
			return
		}
		a.Logger.Error().Err(err).Msg("upload registration failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to store upload")
		return
	}

	jobID, err := a.Service.CreateJob(r.Context(), pipeline.CreateJobParams{
		UploadAssetID: asset.ID,
		FilePath:      asset.FileURL,
	})
	if err != nil {
		a.Logger.Error().Err(err).Msg("job submission failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to queue extraction job")
		return
	}
	a.json(w, http.StatusAccepted, jobResponse{JobID: jobID, UploadAssetID: asset.ID, Status: string(domain.JobStatusQueued)})
}

// JobStatus reports the polling view of a job.
func (a *App) JobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	if jobID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "job_id required")
		return
	}
	status, err := a.Service.GetJobStatus(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "job not found")
			return
		}
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("job status lookup failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load job")
		return
	}
	a.json(w, http.StatusOK, status)
}

// JobAssets lists the artifacts produced for a job.
func (a *App) JobAssets(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	if jobID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "job_id required")
		return
	}
	assets, err := a.Service.JobAssets(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "job not found")
			return
		}
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("job assets lookup failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load assets")
		return
	}

	items := make([]map[string]any, 0, len(assets))
	for _, asset := range assets {
		items = append(items, map[string]any{
			"id":            asset.ID,
			"kind":          asset.Kind,
			"file_url":      asset.FileURL,
			"file_type":     asset.FileType,
			"file_size":     asset.FileSize,
			"original_name": asset.OriginalName,
			"created_at":    asset.CreatedAt,
		})
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}
