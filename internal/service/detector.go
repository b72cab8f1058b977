package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/RubachokBoss/plagiarism-checker/internal/models"
	"github.com/RubachokBoss/plagiarism-checker/internal/repository"
	"github.com/rs/zerolog"
)

// DuplicateDetector finds the earliest prior submission in the same
// assignment with the same fingerprint by a different submitter.
type DuplicateDetector interface {
	FindPriorMatch(ctx context.Context, assignmentID, submitterID, fingerprint string) (*models.Submission, error)
	// FindPriorMatchFor restricts the search to records created strictly
	// before sub, which makes the answer stable once sub is recorded.
	FindPriorMatchFor(ctx context.Context, sub *models.Submission) (*models.Submission, error)
}

type duplicateDetector struct {
	ledger repository.Ledger
	logger zerolog.Logger
}

func NewDuplicateDetector(ledger repository.Ledger, logger zerolog.Logger) DuplicateDetector {
	return &duplicateDetector{
		ledger: ledger,
		logger: logger,
	}
}

func (d *duplicateDetector) FindPriorMatch(ctx context.Context, assignmentID, submitterID, fingerprint string) (*models.Submission, error) {
	return d.find(ctx, repository.MatchQuery{
		AssignmentID:     assignmentID,
		Fingerprint:      fingerprint,
		ExcludeSubmitter: submitterID,
	})
}

func (d *duplicateDetector) FindPriorMatchFor(ctx context.Context, sub *models.Submission) (*models.Submission, error) {
	return d.find(ctx, repository.MatchQuery{
		AssignmentID:     sub.AssignmentID,
		Fingerprint:      sub.Fingerprint,
		ExcludeSubmitter: sub.SubmitterID,
		Before:           sub.CreatedAt,
	})
}

func (d *duplicateDetector) find(ctx context.Context, q repository.MatchQuery) (*models.Submission, error) {
	match, err := d.ledger.FindEarliestMatch(ctx, q)
	if err != nil {
		if errors.Is(err, models.ErrStoreUnavailable) {
			return nil, fmt.Errorf("failed to find prior match: %w", err)
		}
		return nil, fmt.Errorf("failed to find prior match: %w: %w", models.ErrStoreUnavailable, err)
	}

	if match != nil {
		d.logger.Debug().
			Str("assignment_id", q.AssignmentID).
			Str("matched_submission_id", match.ID).
			Msg("Prior match found")
	}

	return match, nil
}
