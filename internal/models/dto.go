package models

import "time"

// Data Transfer Objects

type SubmitRequest struct {
	SubmitterID   string
	SubmitterName string
	AssignmentID  string
	Content       []byte
}

type SubmitResult struct {
	SubmissionID        string  `json:"submission_id"`
	ReportID            string  `json:"report_id"`
	IsDuplicate         bool    `json:"is_duplicate"`
	MatchedSubmissionID *string `json:"matched_submission_id,omitempty"`
	ContentID           string  `json:"content_id"`
}

func NewSubmitResult(sub *Submission, report *DetectionReport) *SubmitResult {
	return &SubmitResult{
		SubmissionID:        sub.ID,
		ReportID:            report.ID,
		IsDuplicate:         report.IsDuplicate,
		MatchedSubmissionID: report.MatchedSubmissionID,
		ContentID:           sub.ContentRef,
	}
}

type ReportResponse struct {
	ReportID            string    `json:"report_id"`
	SubmissionID        string    `json:"submission_id"`
	SubmitterID         string    `json:"submitter_id"`
	SubmitterName       string    `json:"submitter_name"`
	AssignmentID        string    `json:"assignment_id"`
	IsDuplicate         bool      `json:"is_duplicate"`
	MatchedSubmissionID *string   `json:"matched_submission_id,omitempty"`
	Score               float64   `json:"score"`
	CreatedAt           time.Time `json:"created_at"`
}

func NewReportResponse(sub *Submission, report *DetectionReport) ReportResponse {
	return ReportResponse{
		ReportID:            report.ID,
		SubmissionID:        report.SubmissionID,
		SubmitterID:         sub.SubmitterID,
		SubmitterName:       sub.SubmitterName,
		AssignmentID:        sub.AssignmentID,
		IsDuplicate:         report.IsDuplicate,
		MatchedSubmissionID: report.MatchedSubmissionID,
		Score:               report.Score,
		CreatedAt:           report.CreatedAt,
	}
}

type UploadContentResponse struct {
	FileID   string `json:"file_id"`
	FileSize int64  `json:"file_size"`
}

type ReconcileResponse struct {
	Completed int `json:"completed"`
	Limit     int `json:"limit"`
}

type ServiceStatus struct {
	Service       string    `json:"service"`
	Version       string    `json:"version"`
	LedgerDriver  string    `json:"ledger_driver"`
	StorageDriver string    `json:"storage_provider"`
	LedgerHealthy bool      `json:"ledger_healthy"`
	EventsEnabled bool      `json:"events_enabled"`
	ActiveWorkers int       `json:"active_workers"`
	Timestamp     time.Time `json:"timestamp"`
}
