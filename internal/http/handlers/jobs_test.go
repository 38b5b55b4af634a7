package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"printshop/internal/domain"
	"printshop/internal/http/handlers"
	"printshop/internal/http/httpapi"
	"printshop/internal/infra"
	"printshop/internal/pipeline"
	"printshop/internal/queue"
)

type memJobs struct {
	mu   sync.Mutex
	jobs map[string]*domain.Job
}

func (m *memJobs) Create(_ context.Context, job *domain.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *job
	m.jobs[job.ID] = &cp
	return nil
}

func (m *memJobs) GetByID(_ context.Context, jobID string) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *job
	return &cp, nil
}

func (m *memJobs) UpdateStatus(_ context.Context, jobID string, status domain.JobStatus, logs string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.jobs[jobID]; ok {
		job.Status = status
		job.Logs = logs
	}
	return nil
}

func (m *memJobs) Complete(_ context.Context, jobID string, result domain.ResultData, logs string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.jobs[jobID]; ok {
		payload, _ := json.Marshal(result)
		job.Status = domain.JobStatusDone
		job.ResultJSON = payload
		job.Logs = logs
	}
	return nil
}

func (m *memJobs) Fail(_ context.Context, jobID string, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.jobs[jobID]; ok {
		job.Status = domain.JobStatusError
		job.ErrorMessage = errMsg
	}
	return nil
}

type memAssets struct {
	mu     sync.Mutex
	assets []domain.Asset
}

func (m *memAssets) Create(_ context.Context, asset *domain.Asset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assets = append(m.assets, *asset)
	return nil
}

func (m *memAssets) ListByJobID(_ context.Context, jobID string) ([]domain.Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Asset
	for _, a := range m.assets {
		if a.JobID != nil && *a.JobID == jobID {
			out = append(out, a)
		}
	}
	return out, nil
}

type memBlobs struct{}

func (memBlobs) Put(_ context.Context, key string, _ []byte, _ string) (string, error) {
	return "mem://" + key, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *memJobs, *memAssets) {
	t.Helper()
	jobs := &memJobs{jobs: map[string]*domain.Job{}}
	assets := &memAssets{}
	svc := pipeline.NewService(jobs, assets, queue.NewMemQueue(queue.Config{}), memBlobs{}, zerolog.Nop())
	app := handlers.NewApp(svc, zerolog.Nop(), 1<<20)
	cfg := &infra.Config{}
	srv := httptest.NewServer(httpapi.NewRouter(app, cfg, zerolog.Nop(), ""))
	t.Cleanup(srv.Close)
	return srv, jobs, assets
}

func TestJobsCreateJSON(t *testing.T) {
	srv, _, _ := newTestServer(t)

	body := strings.NewReader(`{"uploadAssetId":"u1","filePath":"/tmp/u1.jpg"}`)
	resp, err := http.Post(srv.URL+"/api/jobs/", "application/json", body)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}

	var got struct {
		JobID  string `json:"job_id"`
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.JobID == "" || got.Status != "queued" {
		t.Fatalf("response = %+v", got)
	}

	statusResp, err := http.Get(srv.URL + "/api/jobs/" + got.JobID)
	if err != nil {
		t.Fatal(err)
	}
	defer statusResp.Body.Close()
	if statusResp.StatusCode != http.StatusOK {
		t.Fatalf("status lookup = %d, want 200", statusResp.StatusCode)
	}
	var status struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.NewDecoder(statusResp.Body).Decode(&status); err != nil {
		t.Fatal(err)
	}
	if status.ID != got.JobID || status.Status != "queued" {
		t.Fatalf("status view = %+v", status)
	}
}

func TestJobsCreateRejectsBadPayload(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/jobs/", "application/json", strings.NewReader("{"))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}

	resp2, err := http.Post(srv.URL+"/api/jobs/", "application/json", strings.NewReader(`{"uploadAssetId":"u1"}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp2.StatusCode)
	}
}

func TestJobsCreateMultipartUpload(t *testing.T) {
	srv, _, assets := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("image", "shirt.jpg")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write([]byte("jpeg bytes")); err != nil {
		t.Fatal(err)
	}
	mw.Close()

	resp, err := http.Post(srv.URL+"/api/jobs/", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}

	var got struct {
		JobID         string `json:"job_id"`
		UploadAssetID string `json:"upload_asset_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.UploadAssetID == "" {
		t.Fatal("upload asset id missing")
	}

	assets.mu.Lock()
	defer assets.mu.Unlock()
	if len(assets.assets) != 1 || assets.assets[0].Kind != domain.AssetKindUpload {
		t.Fatalf("registered assets = %+v", assets.assets)
	}
}

func TestJobStatusNotFound(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/jobs/nope")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestJobAssetsListsArtifacts(t *testing.T) {
	srv, jobs, assets := newTestServer(t)

	jobID := "job-with-assets"
	if err := jobs.Create(context.Background(), &domain.Job{ID: jobID, UploadAssetID: "u", Status: domain.JobStatusDone}); err != nil {
		t.Fatal(err)
	}
	for _, kind := range []domain.AssetKind{domain.AssetKindWhiteBg, domain.AssetKindTransparent} {
		err := assets.Create(context.Background(), &domain.Asset{
			ID:      "u_" + string(kind),
			FileURL: "mem://u_" + string(kind) + ".png",
			Kind:    kind,
			JobID:   &jobID,
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	resp, err := http.Get(srv.URL + "/api/jobs/" + jobID + "/assets")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var got struct {
		Items []map[string]any `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if len(got.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(got.Items))
	}
}

func TestHealth(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/v1/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}
