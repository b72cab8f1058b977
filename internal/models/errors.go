package models

import (
	"errors"
	"fmt"
)

// Типизированные ошибки для маппинга на HTTP-коды в delivery-слое.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")

	// ErrAlreadyRecorded is returned when a submission already has its report.
	ErrAlreadyRecorded = errors.New("report already recorded")

	// Ошибки внешних зависимостей.
	ErrUpstreamUnavailable = errors.New("content store unavailable")
	ErrStoreUnavailable    = errors.New("ledger unavailable")

	ErrPartialFailure = errors.New("submission recorded without report")
)

// PartialFailureError is returned once a submission is durable but its
// report could not be written. Retrying the report step for SubmissionID
// completes it.
type PartialFailureError struct {
	SubmissionID string
	Stage        string
	Err          error
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("submission %s recorded without report: %s: %v", e.SubmissionID, e.Stage, e.Err)
}

func (e *PartialFailureError) Unwrap() []error {
	return []error{ErrPartialFailure, e.Err}
}
