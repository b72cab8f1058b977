package service

import (
	"context"

	"github.com/RubachokBoss/plagiarism-checker/internal/models"
)

// EventPublisher delivers submission events. Delivery is best effort:
// publishing never affects the outcome of a submission.
type EventPublisher interface {
	PublishSubmissionChecked(ctx context.Context, event models.SubmissionCheckedEvent) error
}

type noopPublisher struct{}

func NewNoopPublisher() EventPublisher {
	return noopPublisher{}
}

func (noopPublisher) PublishSubmissionChecked(context.Context, models.SubmissionCheckedEvent) error {
	return nil
}
