// Package handlers holds the HTTP handlers for the extraction API.
package handlers

import (
	"encoding/json"
	"net/http"

	"printshop/internal/infra"
	"printshop/internal/pipeline"
)

// App bundles the dependencies the handlers need.
type App struct {
	Service        *pipeline.Service
	Logger         infra.Logger
	MaxUploadBytes int64
}

// NewApp wires the handler set.
func NewApp(service *pipeline.Service, logger infra.Logger, maxUploadBytes int64) *App {
	return &App{Service: service, Logger: logger, MaxUploadBytes: maxUploadBytes}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, kind, message string) {
	a.json(w, code, map[string]string{"error": kind, "message": message})
}
