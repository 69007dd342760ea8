// Package http serves the operational sidecar: liveness and readiness
// probes and the Prometheus scrape endpoint.
package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/eventops/staffbot/internal/bot/metrics"
	"github.com/eventops/staffbot/internal/bot/store"
)

// HealthResponse is the probe payload.
type HealthResponse struct {
	Status  string `json:"status"`
	Uptime  string `json:"uptime"`
	Version string `json:"version"`
}

// NewRouter builds the sidecar routes.
func NewRouter(version string, st store.Store, gatherer prometheus.Gatherer) http.Handler {
	startTime := time.Now()

	r := chi.NewRouter()
	r.Get("/livez", livezHandler(startTime, version))
	r.Get("/readyz", readyzHandler(startTime, version, st))
	r.Handle("/metrics", metrics.Handler(gatherer))
	return r
}

// livezHandler always reports ok while the process is running.
func livezHandler(startTime time.Time, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Uptime:  time.Since(startTime).String(),
			Version: version,
		})
	}
}

// readyzHandler degrades when the database is unreachable.
func readyzHandler(startTime time.Time, version string, st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		statusCode := http.StatusOK

		if err := st.Ping(r.Context()); err != nil {
			status = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		writeJSON(w, statusCode, HealthResponse{
			Status:  status,
			Uptime:  time.Since(startTime).String(),
			Version: version,
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
