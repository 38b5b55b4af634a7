// Package httpapi assembles the HTTP router for the extraction API.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"printshop/internal/http/handlers"
	"printshop/internal/infra"
	"printshop/internal/middleware"
)

// NewRouter builds the API surface. When staticDir is non-empty the uploads
// directory is served under /static so the filesystem storage backend's URLs
// resolve.
func NewRouter(app *handlers.App, cfg *infra.Config, logger infra.Logger, staticDir string) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.CORS(cfg.CORSAllowedOrigins),
		middleware.Logger(logger),
	)

	r.Get("/v1/healthz", app.Health)

	r.Route("/api/jobs", func(r chi.Router) {
		r.Post("/", app.JobsCreate)
		r.Get("/{job_id}", app.JobStatus)
		r.Get("/{job_id}/assets", app.JobAssets)
		r.Get("/{job_id}/download", app.JobDownload)
	})

	if staticDir != "" {
		fs := http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir)))
		r.Get("/static/*", func(w http.ResponseWriter, req *http.Request) {
			fs.ServeHTTP(w, req)
		})
	}

	return r
}
