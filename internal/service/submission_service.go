package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/RubachokBoss/plagiarism-checker/internal/models"
	"github.com/RubachokBoss/plagiarism-checker/internal/repository"
	"github.com/RubachokBoss/plagiarism-checker/pkg/hash"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	stageDetect       = "detect"
	stageRecordReport = "record report"
)

type SubmissionService interface {
	// Submit stores the content, records the submission and its detection
	// report. Once the submission is recorded, any later failure is
	// returned as a *models.PartialFailureError.
	Submit(ctx context.Context, req models.SubmitRequest) (*models.SubmitResult, error)

	// CompleteReport records the report for an already recorded submission.
	// It is idempotent: a submission that already has its report returns it.
	CompleteReport(ctx context.Context, submissionID string) (*models.SubmitResult, error)

	// ReconcileUnreported completes up to limit submissions left without a
	// report and returns how many were completed.
	ReconcileUnreported(ctx context.Context, limit int) (int, error)
}

type submissionService struct {
	store     repository.ContentStore
	ledger    repository.Ledger
	detector  DuplicateDetector
	hasher    hash.Hasher
	publisher EventPublisher
	logger    zerolog.Logger
	now       func() time.Time
}

func NewSubmissionService(
	store repository.ContentStore,
	ledger repository.Ledger,
	detector DuplicateDetector,
	hasher hash.Hasher,
	publisher EventPublisher,
	logger zerolog.Logger,
) SubmissionService {
	if publisher == nil {
		publisher = NewNoopPublisher()
	}

	return &submissionService{
		store:     store,
		ledger:    ledger,
		detector:  detector,
		hasher:    hasher,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *submissionService) Submit(ctx context.Context, req models.SubmitRequest) (*models.SubmitResult, error) {
	req.SubmitterID = strings.TrimSpace(req.SubmitterID)
	req.SubmitterName = strings.TrimSpace(req.SubmitterName)
	req.AssignmentID = strings.TrimSpace(req.AssignmentID)

	if err := validateSubmitRequest(req); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	contentID, err := s.store.Put(ctx, req.Content)
	if err != nil {
		return nil, upstreamError("failed to store content", err)
	}

	// Fingerprint what the store actually holds, not what we sent.
	stored, err := s.store.Get(ctx, contentID)
	if err != nil {
		return nil, upstreamError("failed to read back content", err)
	}
	fingerprint, err := s.hasher.Calculate(stored)
	if err != nil {
		return nil, fmt.Errorf("failed to fingerprint content: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sub, err := s.ledger.RecordSubmission(ctx, &models.Submission{
		ID:            uuid.New().String(),
		SubmitterID:   req.SubmitterID,
		SubmitterName: req.SubmitterName,
		AssignmentID:  req.AssignmentID,
		ContentRef:    contentID,
		Fingerprint:   fingerprint,
		CreatedAt:     s.now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record submission: %w", err)
	}

	s.logger.Info().
		Str("submission_id", sub.ID).
		Str("assignment_id", sub.AssignmentID).
		Str("submitter_id", sub.SubmitterID).
		Str("content_id", contentID).
		Msg("Submission recorded")

	return s.completeReport(ctx, sub)
}

func (s *submissionService) CompleteReport(ctx context.Context, submissionID string) (*models.SubmitResult, error) {
	sub, err := s.ledger.GetSubmission(ctx, submissionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}

	reports, err := s.ledger.GetReportsFor(ctx, sub.ID)
	if err != nil {
		return nil, &models.PartialFailureError{SubmissionID: sub.ID, Stage: stageRecordReport, Err: err}
	}
	if len(reports) > 0 {
		return models.NewSubmitResult(sub, &reports[0]), nil
	}

	return s.completeReport(ctx, sub)
}

func (s *submissionService) ReconcileUnreported(ctx context.Context, limit int) (int, error) {
	pending, err := s.ledger.ListUnreported(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list unreported submissions: %w", err)
	}

	completed := 0
	for i := range pending {
		if err := ctx.Err(); err != nil {
			return completed, err
		}

		if _, err := s.completeReport(ctx, &pending[i]); err != nil {
			s.logger.Error().Err(err).
				Str("submission_id", pending[i].ID).
				Msg("Failed to complete report during reconcile")
			continue
		}
		completed++
	}

	if completed > 0 {
		s.logger.Info().Int("completed", completed).Int("pending", len(pending)).Msg("Reconciled unreported submissions")
	}

	return completed, nil
}

// completeReport runs detection for a recorded submission and writes its
// report. Every error it returns is a partial failure.
func (s *submissionService) completeReport(ctx context.Context, sub *models.Submission) (*models.SubmitResult, error) {
	partial := func(stage string, err error) error {
		s.logger.Error().Err(err).
			Str("submission_id", sub.ID).
			Str("stage", stage).
			Msg("Submission recorded without report")
		return &models.PartialFailureError{SubmissionID: sub.ID, Stage: stage, Err: err}
	}

	if err := ctx.Err(); err != nil {
		return nil, partial(stageDetect, err)
	}
	match, err := s.detector.FindPriorMatchFor(ctx, sub)
	if err != nil {
		return nil, partial(stageDetect, err)
	}

	report := models.NewDetectionReport(sub.ID, match)

	if err := ctx.Err(); err != nil {
		return nil, partial(stageRecordReport, err)
	}
	stored, err := s.ledger.RecordDetection(ctx, report)
	if errors.Is(err, models.ErrAlreadyRecorded) {
		stored, err = s.existingReport(ctx, report)
	}
	if err != nil {
		return nil, partial(stageRecordReport, err)
	}

	s.logger.Info().
		Str("submission_id", sub.ID).
		Str("report_id", stored.ID).
		Bool("is_duplicate", stored.IsDuplicate).
		Msg("Detection report recorded")

	s.publish(ctx, sub, stored)

	return models.NewSubmitResult(sub, stored), nil
}

// existingReport resolves an AlreadyRecorded write: it succeeds when the
// stored report carries the same outcome as the one we tried to write.
func (s *submissionService) existingReport(ctx context.Context, intended *models.DetectionReport) (*models.DetectionReport, error) {
	reports, err := s.ledger.GetReportsFor(ctx, intended.SubmissionID)
	if err != nil {
		return nil, err
	}
	if len(reports) == 0 {
		return nil, fmt.Errorf("report vanished after conflict: %w", models.ErrStoreUnavailable)
	}

	existing := &reports[0]
	if !existing.SameOutcome(intended) {
		return nil, fmt.Errorf("stored report %s disagrees with detection result: %w", existing.ID, models.ErrConflict)
	}
	return existing, nil
}

func (s *submissionService) publish(ctx context.Context, sub *models.Submission, report *models.DetectionReport) {
	event := models.NewSubmissionCheckedEvent(uuid.New().String(), sub, report)
	if err := s.publisher.PublishSubmissionChecked(context.WithoutCancel(ctx), event); err != nil {
		s.logger.Warn().Err(err).Str("submission_id", sub.ID).Msg("Failed to publish submission event")
	}
}

func validateSubmitRequest(req models.SubmitRequest) error {
	switch {
	case len(req.Content) == 0:
		return fmt.Errorf("%w: file content is empty", models.ErrInvalidInput)
	case req.SubmitterID == "":
		return fmt.Errorf("%w: submitter_id is required", models.ErrInvalidInput)
	case req.AssignmentID == "":
		return fmt.Errorf("%w: assignment_id is required", models.ErrInvalidInput)
	}
	return nil
}

func upstreamError(op string, err error) error {
	if errors.Is(err, models.ErrInvalidInput) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, models.ErrUpstreamUnavailable, err)
}
