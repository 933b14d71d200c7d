package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"parking-service/internal/metrics"
	"parking-service/internal/model"
	"parking-service/internal/repository"
)

type WorkerParams struct {
	Outbox       *repository.OutboxRepository
	Dispatcher   *Dispatcher
	Metrics      *metrics.Metrics
	Logger       zerolog.Logger
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
}

// Worker drains the notification outbox after commits and on a timer.
type Worker struct {
	outbox       *repository.OutboxRepository
	dispatcher   *Dispatcher
	metrics      *metrics.Metrics
	log          zerolog.Logger
	pollInterval time.Duration
	batchSize    int
	maxAttempts  int
	kick         chan struct{}
	now          func() time.Time
}

func NewWorker(p WorkerParams) *Worker {
	w := &Worker{
		outbox:       p.Outbox,
		dispatcher:   p.Dispatcher,
		metrics:      p.Metrics,
		log:          p.Logger.With().Str("component", "notify-worker").Logger(),
		pollInterval: p.PollInterval,
		batchSize:    p.BatchSize,
		maxAttempts:  p.MaxAttempts,
		kick:         make(chan struct{}, 1),
		now:          time.Now,
	}
	if w.pollInterval <= 0 {
		w.pollInterval = 5 * time.Second
	}
	if w.batchSize <= 0 {
		w.batchSize = 50
	}
	if w.maxAttempts <= 0 {
		w.maxAttempts = 5
	}
	return w
}

// Kick wakes the worker without blocking the caller.
func (w *Worker) Kick() {
	select {
	case w.kick <- struct{}{}:
	default:
	}
}

// Run processes the outbox until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.log.Info().Dur("poll_interval", w.pollInterval).Msg("notification worker started")
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("notification worker stopped")
			return ctx.Err()
		case <-ticker.C:
		case <-w.kick:
		}
		if _, err := w.ProcessPending(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.log.Error().Err(err).Msg("process outbox")
		}
	}
}

// ProcessPending dispatches one batch of pending rows and returns how many
// rows were finished.
func (w *Worker) ProcessPending(ctx context.Context) (int, error) {
	rows, err := w.outbox.Pending(ctx, w.batchSize)
	if err != nil {
		return 0, fmt.Errorf("load pending outbox: %w", err)
	}
	w.metrics.OutboxBacklog(len(rows))

	finished := 0
	for _, row := range rows {
		if ctx.Err() != nil {
			return finished, ctx.Err()
		}
		result := w.dispatcher.DispatchOutbox(ctx, row)
		fields := w.settle(row, result)
		if err := w.outbox.Finish(ctx, row.ID, fields); err != nil {
			if errors.Is(err, repository.ErrStateMismatch) {
				continue
			}
			return finished, fmt.Errorf("finish outbox row %s: %w", row.ID, err)
		}
		if fields["status"] == model.OutboxStatusFailed {
			w.dispatcher.CloseSession(ctx, row)
		}
		if fields["status"] != model.OutboxStatusPending {
			finished++
		}
	}
	return finished, nil
}

func (w *Worker) settle(row model.NotificationOutbox, result Result) map[string]interface{} {
	attempts := row.Attempts + 1
	fields := map[string]interface{}{
		"attempts":        attempts,
		"delivered_count": row.DeliveredCount + result.Delivered,
	}
	log := w.log.With().Str("outbox_id", row.ID.String()).Str("event", string(row.Event)).Int("attempts", attempts).Logger()

	lastError := fmt.Sprintf("%d deliveries failed", result.Failed)
	if result.Err != nil {
		lastError = result.Err.Error()
	}

	switch {
	case !result.Retryable():
		fields["status"] = model.OutboxStatusDispatched
		fields["dispatched_at"] = w.now()
		fields["last_error"] = ""
	case attempts >= w.maxAttempts:
		fields["status"] = model.OutboxStatusFailed
		fields["last_error"] = fmt.Sprintf("%s after %d attempts", lastError, attempts)
		log.Warn().Int("failed", result.Failed).Str("error", lastError).Msg("notification abandoned")
	default:
		fields["status"] = model.OutboxStatusPending
		fields["last_error"] = lastError
		log.Debug().Int("failed", result.Failed).Str("error", lastError).Msg("notification will be retried")
	}
	return fields
}
