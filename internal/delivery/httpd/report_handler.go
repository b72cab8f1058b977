package httpd

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) GetReports(w http.ResponseWriter, r *http.Request) {
	submissionID := chi.URLParam(r, "submission_id")
	if submissionID == "" {
		writeError(w, http.StatusBadRequest, "Submission ID is required")
		return
	}

	reports, err := h.reportService.GetReports(r.Context(), submissionID)
	if err != nil {
		h.handleError(w, err)
		return
	}

	writeSuccess(w, reports)
}

func (h *Handler) GetAssignmentSummary(w http.ResponseWriter, r *http.Request) {
	assignmentID := chi.URLParam(r, "assignment_id")
	if assignmentID == "" {
		writeError(w, http.StatusBadRequest, "Assignment ID is required")
		return
	}

	summary, err := h.reportService.GetAssignmentSummary(r.Context(), assignmentID)
	if err != nil {
		h.handleError(w, err)
		return
	}

	writeSuccess(w, summary)
}
