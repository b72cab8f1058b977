package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/RubachokBoss/plagiarism-checker/internal/models"
	"github.com/RubachokBoss/plagiarism-checker/internal/repository"
	"github.com/rs/zerolog"
)

// EventDispatcher hands submission events to the broker from the worker
// pool so a slow broker never holds up a request.
type EventDispatcher struct {
	pool    *WorkerPool
	broker  repository.EventBroker
	timeout time.Duration
	logger  zerolog.Logger
}

func NewEventDispatcher(pool *WorkerPool, broker repository.EventBroker, timeout time.Duration, logger zerolog.Logger) *EventDispatcher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &EventDispatcher{
		pool:    pool,
		broker:  broker,
		timeout: timeout,
		logger:  logger,
	}
}

func (d *EventDispatcher) PublishSubmissionChecked(ctx context.Context, event models.SubmissionCheckedEvent) error {
	accepted := d.pool.Submit(func() {
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
		defer cancel()

		if err := d.broker.PublishSubmissionChecked(pubCtx, event); err != nil {
			d.logger.Error().Err(err).
				Str("submission_id", event.SubmissionID).
				Str("event_id", event.EventID).
				Msg("Failed to publish submission event")
			return
		}

		d.logger.Debug().
			Str("submission_id", event.SubmissionID).
			Str("event_id", event.EventID).
			Msg("Submission event published")
	})
	if !accepted {
		return fmt.Errorf("event %s dropped: worker pool unavailable", event.EventID)
	}

	return nil
}
