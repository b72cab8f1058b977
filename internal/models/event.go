package models

import "time"

const EventSubmissionChecked = "submission.checked"

// SubmissionCheckedEvent is published after a submission gets its report.
type SubmissionCheckedEvent struct {
	EventID             string    `json:"event_id"`
	EventType           string    `json:"event_type"`
	SubmissionID        string    `json:"submission_id"`
	ReportID            string    `json:"report_id"`
	AssignmentID        string    `json:"assignment_id"`
	SubmitterID         string    `json:"submitter_id"`
	IsDuplicate         bool      `json:"is_duplicate"`
	MatchedSubmissionID *string   `json:"matched_submission_id,omitempty"`
	Score               float64   `json:"score"`
	Timestamp           time.Time `json:"timestamp"`
}

func NewSubmissionCheckedEvent(eventID string, sub *Submission, report *DetectionReport) SubmissionCheckedEvent {
	return SubmissionCheckedEvent{
		EventID:             eventID,
		EventType:           EventSubmissionChecked,
		SubmissionID:        sub.ID,
		ReportID:            report.ID,
		AssignmentID:        sub.AssignmentID,
		SubmitterID:         sub.SubmitterID,
		IsDuplicate:         report.IsDuplicate,
		MatchedSubmissionID: report.MatchedSubmissionID,
		Score:               report.Score,
		Timestamp:           time.Now().UTC(),
	}
}
