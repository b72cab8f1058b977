package httpd

import (
	"errors"
	"io"
	"net/http"

	"github.com/RubachokBoss/plagiarism-checker/internal/models"
	"github.com/go-chi/chi/v5"
)

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadSize)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "File is too large")
			return
		}
		writeError(w, http.StatusBadRequest, "Failed to parse multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "File is required")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read file")
		return
	}

	req := models.SubmitRequest{
		SubmitterID:   r.FormValue("submitter_id"),
		SubmitterName: r.FormValue("submitter_name"),
		AssignmentID:  r.FormValue("assignment_id"),
		Content:       content,
	}

	result, err := h.submissionService.Submit(r.Context(), req)
	if err != nil {
		h.handleError(w, err)
		return
	}

	writeSuccess(w, result)
}

func (h *Handler) CompleteReport(w http.ResponseWriter, r *http.Request) {
	submissionID := chi.URLParam(r, "submission_id")
	if submissionID == "" {
		writeError(w, http.StatusBadRequest, "Submission ID is required")
		return
	}

	result, err := h.submissionService.CompleteReport(r.Context(), submissionID)
	if err != nil {
		h.handleError(w, err)
		return
	}

	writeSuccess(w, result)
}

func (h *Handler) ReconcileUnreported(w http.ResponseWriter, r *http.Request) {
	limit := getIntQueryParam(r, "limit", 50)

	completed, err := h.submissionService.ReconcileUnreported(r.Context(), limit)
	if err != nil {
		h.handleError(w, err)
		return
	}

	writeSuccess(w, models.ReconcileResponse{Completed: completed, Limit: limit})
}
