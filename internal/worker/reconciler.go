package worker

import (
	"context"
	"sync"
	"time"

	"github.com/RubachokBoss/plagiarism-checker/internal/service"
	"github.com/rs/zerolog"
)

// Reconciler periodically completes reports for submissions that were
// recorded without one.
type Reconciler struct {
	service  service.SubmissionService
	interval time.Duration
	batch    int
	logger   zerolog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
	stopped bool
}

func NewReconciler(svc service.SubmissionService, interval time.Duration, batch int, logger zerolog.Logger) *Reconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	if batch <= 0 {
		batch = 50
	}

	return &Reconciler{
		service:  svc,
		interval: interval,
		batch:    batch,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start launches the ticker loop. It is a no-op once the reconciler has been
// started or stopped.
func (r *Reconciler) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started || r.stopped {
		return
	}
	r.started = true

	ctx, r.cancel = context.WithCancel(ctx)

	go func() {
		defer close(r.done)

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		r.logger.Info().Dur("interval", r.interval).Int("batch", r.batch).Msg("Reconciler started")

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.RunOnce(ctx)
			}
		}
	}()
}

func (r *Reconciler) RunOnce(ctx context.Context) int {
	completed, err := r.service.ReconcileUnreported(ctx, r.batch)
	if err != nil && ctx.Err() == nil {
		r.logger.Error().Err(err).Msg("Reconcile pass failed")
	}
	return completed
}

// Stop cancels the loop and waits for it to exit. Safe to call more than
// once and before Start.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	started, cancel := r.started, r.cancel
	r.mu.Unlock()

	if !started {
		return
	}
	cancel()
	<-r.done
	r.logger.Info().Msg("Reconciler stopped")
}
