package httpd

import (
	"context"
	"errors"
	"net/http"

	"github.com/RubachokBoss/plagiarism-checker/internal/models"
)

// statusClientClosedRequest is the de facto status for requests the client
// abandoned before a response was written.
const statusClientClosedRequest = 499

func (h *Handler) handleError(w http.ResponseWriter, err error) {
	var partial *models.PartialFailureError

	switch {
	case errors.As(err, &partial):
		h.logger.Error().Err(err).Str("submission_id", partial.SubmissionID).Msg("Submission recorded without report")
		writeAPIError(w, http.StatusBadGateway, apiError{
			Message:      "Submission recorded but its report could not be written; retry the report step",
			SubmissionID: partial.SubmissionID,
		})
	case errors.Is(err, models.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrUpstreamUnavailable):
		h.logger.Error().Err(err).Msg("Content store error")
		writeError(w, http.StatusServiceUnavailable, "Content store unavailable")
	case errors.Is(err, models.ErrStoreUnavailable):
		h.logger.Error().Err(err).Msg("Ledger error")
		writeError(w, http.StatusServiceUnavailable, "Ledger unavailable")
	case errors.Is(err, models.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrConflict), errors.Is(err, models.ErrAlreadyRecorded):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, context.Canceled):
		writeError(w, statusClientClosedRequest, "Request canceled")
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "Request timed out")
	default:
		h.logger.Error().Err(err).Msg("Unexpected error")
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}
