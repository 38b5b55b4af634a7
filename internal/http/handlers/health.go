package handlers

import "net/http"

// Health is the liveness probe. It reports the API process only; queue and
// database health surface through job status instead.
func (a *App) Health(w http.ResponseWriter, _ *http.Request) {
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}
