package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/RubachokBoss/plagiarism-checker/internal/models"
)

// Ledger is the authoritative record of submissions and their detection
// reports. Records are append-only.
//
// RecordSubmission assigns CreatedAt: inserts are serialized per ledger and
// get strictly increasing timestamps, so "earlier" is well defined for every
// detection query and for every time-ordered read.
//
// RecordDetection rejects a duplicate report whose matched submission is not
// a strictly earlier record of the same content for the same assignment by
// another submitter.
type Ledger interface {
	RecordSubmission(ctx context.Context, sub *models.Submission) (*models.Submission, error)
	RecordDetection(ctx context.Context, report *models.DetectionReport) (*models.DetectionReport, error)

	GetSubmission(ctx context.Context, id string) (*models.Submission, error)
	GetReportsFor(ctx context.Context, submissionID string) ([]models.DetectionReport, error)
	GetAssignmentAggregate(ctx context.Context, assignmentID string) (*models.AssignmentAggregate, error)

	// FindEarliestMatch returns the earliest submission matching q, ordered
	// by CreatedAt then ID, or nil when nothing matches.
	FindEarliestMatch(ctx context.Context, q MatchQuery) (*models.Submission, error)

	// ListUnreported returns submissions without a report, oldest first.
	ListUnreported(ctx context.Context, limit int) ([]models.Submission, error)

	Ping(ctx context.Context) error
	Close() error
}

type MatchQuery struct {
	AssignmentID     string
	Fingerprint      string
	ExcludeSubmitter string
	// Before bounds the search to records created strictly earlier. Zero
	// means unbounded.
	Before time.Time
}

func (q MatchQuery) matches(sub *models.Submission) bool {
	if sub.AssignmentID != q.AssignmentID || sub.Fingerprint != q.Fingerprint {
		return false
	}
	if models.SameSubmitter(sub.SubmitterID, q.ExcludeSubmitter) {
		return false
	}
	return q.Before.IsZero() || sub.CreatedAt.Before(q.Before)
}

func validateSubmission(sub *models.Submission) error {
	switch {
	case sub == nil:
		return fmt.Errorf("%w: submission is nil", models.ErrInvalidInput)
	case sub.ID == "":
		return fmt.Errorf("%w: submission id is required", models.ErrInvalidInput)
	case sub.SubmitterID == "":
		return fmt.Errorf("%w: submitter id is required", models.ErrInvalidInput)
	case sub.AssignmentID == "":
		return fmt.Errorf("%w: assignment id is required", models.ErrInvalidInput)
	case sub.ContentRef == "":
		return fmt.Errorf("%w: content reference is required", models.ErrInvalidInput)
	case sub.Fingerprint == "":
		return fmt.Errorf("%w: fingerprint is required", models.ErrInvalidInput)
	}
	return nil
}

func validateReport(report *models.DetectionReport) error {
	if report == nil || report.ID == "" {
		return fmt.Errorf("%w: report id is required", models.ErrInvalidInput)
	}
	if !report.Valid() {
		return fmt.Errorf("%w: matched submission must be set exactly when the report is a duplicate", models.ErrInvalidInput)
	}
	return nil
}

// validateMatch checks a duplicate report against the two records it links.
func validateMatch(sub, matched *models.Submission) error {
	switch {
	case matched.AssignmentID != sub.AssignmentID:
		return fmt.Errorf("%w: matched submission %s belongs to another assignment", models.ErrInvalidInput, matched.ID)
	case matched.Fingerprint != sub.Fingerprint:
		return fmt.Errorf("%w: matched submission %s has different content", models.ErrInvalidInput, matched.ID)
	case models.SameSubmitter(matched.SubmitterID, sub.SubmitterID):
		return fmt.Errorf("%w: matched submission %s has the same submitter", models.ErrInvalidInput, matched.ID)
	case !matched.CreatedAt.Before(sub.CreatedAt):
		return fmt.Errorf("%w: matched submission %s is not earlier", models.ErrInvalidInput, matched.ID)
	}
	return nil
}

// nextTimestamp picks the CreatedAt for a new record given the latest
// CreatedAt already stored in the ledger. Timestamps are kept at
// microsecond precision so every backend stores them exactly.
func nextTimestamp(requested, last time.Time) time.Time {
	ts := requested
	if ts.IsZero() {
		ts = time.Now()
	}
	ts = ts.UTC().Truncate(time.Microsecond)

	if !last.IsZero() && !ts.After(last) {
		ts = last.UTC().Truncate(time.Microsecond).Add(time.Microsecond)
	}
	return ts
}

func reportTimestamp(requested time.Time) time.Time {
	return nextTimestamp(requested, time.Time{})
}

func unavailable(op string, err error) error {
	if errors.Is(err, models.ErrStoreUnavailable) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, models.ErrStoreUnavailable, err)
}

func submissionNotFound(id string) error {
	return fmt.Errorf("submission %s: %w", id, models.ErrNotFound)
}
