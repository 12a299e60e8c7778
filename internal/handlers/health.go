package handlers

import "net/http"

// HealthResponse is returned by the liveness endpoints.
type HealthResponse struct {
	Status string `json:"status"`
}

// Healthz reports that the process is serving requests.
func Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy"})
}
