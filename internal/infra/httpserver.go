package infra

import (
	"context"
	"net/http"
	"time"
)

// HTTPServer is the API process's listener with the timeouts image uploads
// need already applied.
type HTTPServer struct {
	server *http.Server
}

// NewHTTPServer builds the listener from config. Read and write timeouts are
// sized for multi-megabyte upload bodies and zip download responses, not
// just JSON polling.
func NewHTTPServer(cfg *Config, handler http.Handler) *HTTPServer {
	return &HTTPServer{server: &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
	}}
}

// Start serves until Shutdown or a listener error; it blocks.
func (s *HTTPServer) Start() error {
	if s.server == nil {
		return nil
	}
	return s.server.ListenAndServe()
}

// Shutdown drains in-flight requests within the context deadline.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
