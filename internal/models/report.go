package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	ScoreDuplicate = 100.0
	ScoreOriginal  = 0.0
)

type DetectionReport struct {
	ID                  string    `json:"id" db:"id"`
	SubmissionID        string    `json:"submission_id" db:"submission_id"`
	IsDuplicate         bool      `json:"is_duplicate" db:"is_duplicate"`
	MatchedSubmissionID *string   `json:"matched_submission_id,omitempty" db:"matched_submission_id"`
	Score               float64   `json:"score" db:"score"`
	CreatedAt           time.Time `json:"created_at" db:"created_at"`
}

// NewDetectionReport builds the report for submissionID. A nil match
// produces a non-duplicate report.
func NewDetectionReport(submissionID string, match *Submission) *DetectionReport {
	report := &DetectionReport{
		ID:           uuid.New().String(),
		SubmissionID: submissionID,
		Score:        ScoreOriginal,
		CreatedAt:    time.Now().UTC(),
	}

	if match != nil {
		matchedID := match.ID
		report.IsDuplicate = true
		report.MatchedSubmissionID = &matchedID
		report.Score = ScoreDuplicate
	}

	return report
}

// MatchedID returns the matched submission id or "" for a non-duplicate.
func (r *DetectionReport) MatchedID() string {
	if r.MatchedSubmissionID == nil {
		return ""
	}
	return *r.MatchedSubmissionID
}

// SameOutcome compares the detection result only, ignoring ids and timestamps.
func (r *DetectionReport) SameOutcome(other *DetectionReport) bool {
	if other == nil {
		return false
	}
	return r.SubmissionID == other.SubmissionID &&
		r.IsDuplicate == other.IsDuplicate &&
		r.MatchedID() == other.MatchedID()
}

// Valid checks the matched-iff-duplicate invariant.
func (r *DetectionReport) Valid() bool {
	if r.SubmissionID == "" {
		return false
	}
	if r.IsDuplicate {
		return r.MatchedID() != "" && r.MatchedID() != r.SubmissionID
	}
	return r.MatchedSubmissionID == nil
}

type AssignmentAggregate struct {
	AssignmentID     string `json:"assignment_id"`
	TotalSubmissions int    `json:"total_submissions"`
	DuplicateCount   int    `json:"duplicate_count"`
}
