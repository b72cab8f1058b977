package httpd

import (
	"net/http"
	"time"
)

type healthResponse struct {
	Status    string    `json:"status"`
	Service   string    `json:"service"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// HealthCheck reports liveness only and never touches the ledger.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "healthy",
		Service:   "plagiarism-checker",
		Version:   h.opts.Version,
		Timestamp: time.Now().UTC(),
	})
}

// GetServiceStatus answers 503 while the ledger is unreachable so load
// balancers can drain the instance.
func (h *Handler) GetServiceStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.reportService.GetServiceStatus(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to get service status")
		writeError(w, http.StatusInternalServerError, "Failed to get service status")
		return
	}

	if !status.LedgerHealthy {
		writeJSON(w, http.StatusServiceUnavailable, apiResponse{
			Data:      status,
			Timestamp: status.Timestamp,
		})
		return
	}

	writeSuccess(w, status)
}
