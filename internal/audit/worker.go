package audit

import (
	"context"
	"log/slog"
)

// Worker drains audit events from a channel and hands them to the publisher,
// keeping event emission off the ingest hot path. A full inbox drops the
// event rather than stalling the cleaning run; drops are logged.
type Worker struct {
	publisher *Publisher
	inbox     chan Event
	logger    *slog.Logger
}

// NewWorker builds a worker with a buffered inbox of the given size.
func NewWorker(publisher *Publisher, buffer int, logger *slog.Logger) *Worker {
	if buffer <= 0 {
		buffer = 1024
	}
	return &Worker{
		publisher: publisher,
		inbox:     make(chan Event, buffer),
		logger:    logger,
	}
}

// Enqueue submits an event without blocking.
func (w *Worker) Enqueue(event Event) {
	select {
	case w.inbox <- event:
	default:
		w.logger.Warn("audit inbox full, event dropped", "action", event.Action)
	}
}

// Run consumes events until ctx is cancelled, then drains what is buffered.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.drain()
			return ctx.Err()
		case event := <-w.inbox:
			w.publish(event)
		}
	}
}

func (w *Worker) drain() {
	for {
		select {
		case event := <-w.inbox:
			w.publish(event)
		default:
			return
		}
	}
}

func (w *Worker) publish(event Event) {
	// Publishing outlives the run context; use a fresh background context so
	// cancellation does not lose buffered events.
	if err := w.publisher.Emit(context.Background(), event); err != nil {
		w.logger.Error("audit event emit failed", "error", err, "action", event.Action)
	}
}
