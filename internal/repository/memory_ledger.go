package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/RubachokBoss/plagiarism-checker/internal/models"
)

type matchKey struct {
	assignmentID string
	fingerprint  string
}

// MemoryLedger keeps everything in process. A single mutex serializes
// writers, which makes every insert linearizable.
type MemoryLedger struct {
	mu sync.RWMutex

	submissions  map[string]*models.Submission
	order        []*models.Submission
	byKey        map[matchKey][]*models.Submission
	byAssignment map[string][]*models.Submission
	reports      map[string]*models.DetectionReport
	lastCreated  time.Time
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		submissions:  make(map[string]*models.Submission),
		byKey:        make(map[matchKey][]*models.Submission),
		byAssignment: make(map[string][]*models.Submission),
		reports:      make(map[string]*models.DetectionReport),
	}
}

func (l *MemoryLedger) RecordSubmission(ctx context.Context, sub *models.Submission) (*models.Submission, error) {
	if err := validateSubmission(sub); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.submissions[sub.ID]; exists {
		return nil, fmt.Errorf("submission %s: %w", sub.ID, models.ErrConflict)
	}

	key := matchKey{assignmentID: sub.AssignmentID, fingerprint: sub.Fingerprint}
	stored := *sub
	stored.CreatedAt = nextTimestamp(sub.CreatedAt, l.lastCreated)
	l.lastCreated = stored.CreatedAt

	l.submissions[stored.ID] = &stored
	l.order = append(l.order, &stored)
	l.byKey[key] = append(l.byKey[key], &stored)
	l.byAssignment[stored.AssignmentID] = append(l.byAssignment[stored.AssignmentID], &stored)

	result := stored
	return &result, nil
}

func (l *MemoryLedger) RecordDetection(ctx context.Context, report *models.DetectionReport) (*models.DetectionReport, error) {
	if err := validateReport(report); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	sub, ok := l.submissions[report.SubmissionID]
	if !ok {
		return nil, submissionNotFound(report.SubmissionID)
	}
	if report.IsDuplicate {
		matched, ok := l.submissions[report.MatchedID()]
		if !ok {
			return nil, submissionNotFound(report.MatchedID())
		}
		if err := validateMatch(sub, matched); err != nil {
			return nil, err
		}
	}
	if _, exists := l.reports[report.SubmissionID]; exists {
		return nil, fmt.Errorf("submission %s: %w", report.SubmissionID, models.ErrAlreadyRecorded)
	}

	stored := copyReport(report)
	stored.CreatedAt = reportTimestamp(report.CreatedAt)
	l.reports[stored.SubmissionID] = stored

	return copyReport(stored), nil
}

func (l *MemoryLedger) GetSubmission(ctx context.Context, id string) (*models.Submission, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	sub, ok := l.submissions[id]
	if !ok {
		return nil, submissionNotFound(id)
	}

	result := *sub
	return &result, nil
}

func (l *MemoryLedger) GetReportsFor(ctx context.Context, submissionID string) ([]models.DetectionReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	report, ok := l.reports[submissionID]
	if !ok {
		return []models.DetectionReport{}, nil
	}

	return []models.DetectionReport{*copyReport(report)}, nil
}

func (l *MemoryLedger) GetAssignmentAggregate(ctx context.Context, assignmentID string) (*models.AssignmentAggregate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	agg := &models.AssignmentAggregate{AssignmentID: assignmentID}
	for _, sub := range l.byAssignment[assignmentID] {
		agg.TotalSubmissions++
		if report, ok := l.reports[sub.ID]; ok && report.IsDuplicate {
			agg.DuplicateCount++
		}
	}

	return agg, nil
}

func (l *MemoryLedger) FindEarliestMatch(ctx context.Context, q MatchQuery) (*models.Submission, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	var best *models.Submission
	for _, sub := range l.byKey[matchKey{assignmentID: q.AssignmentID, fingerprint: q.Fingerprint}] {
		if !q.matches(sub) {
			continue
		}
		if best == nil || sub.CreatedAt.Before(best.CreatedAt) ||
			(sub.CreatedAt.Equal(best.CreatedAt) && sub.ID < best.ID) {
			best = sub
		}
	}

	if best == nil {
		return nil, nil
	}
	result := *best
	return &result, nil
}

func (l *MemoryLedger) ListUnreported(ctx context.Context, limit int) ([]models.Submission, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	pending := make([]models.Submission, 0)
	for _, sub := range l.order {
		if limit > 0 && len(pending) >= limit {
			break
		}
		if _, ok := l.reports[sub.ID]; !ok {
			pending = append(pending, *sub)
		}
	}

	return pending, nil
}

func (l *MemoryLedger) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (l *MemoryLedger) Close() error {
	return nil
}

func copyReport(report *models.DetectionReport) *models.DetectionReport {
	out := *report
	if report.MatchedSubmissionID != nil {
		matched := *report.MatchedSubmissionID
		out.MatchedSubmissionID = &matched
	}
	return &out
}
