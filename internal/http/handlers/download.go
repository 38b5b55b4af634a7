package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"printshop/internal/domain"
	"printshop/pkg/zip"
)

// fetchTimeout bounds each artifact fetch while assembling a bundle.
const fetchTimeout = 30 * time.Second

// JobDownload streams a zip archive of a finished job's artifacts.
func (a *App) JobDownload(w http.ResponseWriter, r *http.Request) {
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
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("job lookup failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load job")
		return
	}
	if status.Status != domain.JobStatusDone {
		a.error(w, http.StatusConflict, "not_ready", "job has not completed")
		return
	}

	assets, err := a.Service.JobAssets(r.Context(), jobID)
	if err != nil {
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("job assets lookup failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load assets")
		return
	}
	if len(assets) == 0 {
		a.error(w, http.StatusNotFound, "not_found", "job has no artifacts")
		return
	}

	client := &http.Client{Timeout: fetchTimeout}
	entries := make([]zip.Entry, 0, len(assets))
	for _, asset := range assets {
		data, err := fetchArtifact(r.Context(), client, asset.FileURL)
		if err != nil {
			a.Logger.Error().Err(err).Str("asset_id", asset.ID).Msg("artifact fetch failed")
			a.error(w, http.StatusBadGateway, "fetch_failed", "failed to fetch artifact")
			return
		}
		entries = append(entries, zip.Entry{Name: asset.OriginalName, Data: data})
	}

	archive, err := zip.Archive(entries)
	if err != nil {
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("archive build failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to build archive")
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", jobID+".zip"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}

func fetchArtifact(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
