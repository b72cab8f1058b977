package httpd

import (
	"encoding/json"
	"net/http"
	"time"
)

// apiResponse is the envelope every JSON endpoint answers with.
type apiResponse struct {
	Success   bool      `json:"success"`
	Data      any       `json:"data,omitempty"`
	Error     *apiError `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type apiError struct {
	Code    int    `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
	// SubmissionID is set when the submission was stored but the request
	// still failed, so the client knows what to retry.
	SubmissionID string `json:"submission_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeSuccess(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, apiResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeAPIError(w, status, apiError{Message: message})
}

func writeAPIError(w http.ResponseWriter, status int, e apiError) {
	e.Code = status
	e.Type = http.StatusText(status)
	writeJSON(w, status, apiResponse{
		Error:     &e,
		Timestamp: time.Now().UTC(),
	})
}
