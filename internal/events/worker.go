package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Emitter is what services hold: a non-blocking hand-off into the worker's
// inbox. Events ride a buffered channel so registrar operations never stall
// on the broker.
type Emitter struct {
	inbox  chan Event
	logger *slog.Logger
}

func NewEmitter(buffer int, logger *slog.Logger) *Emitter {
	return &Emitter{inbox: make(chan Event, buffer), logger: logger}
}

// Emit queues the event, stamping ID and timestamp if unset. A full inbox
// drops the event with a log line rather than blocking the operation; the
// registry remains the source of truth for ownership.
func (e *Emitter) Emit(ctx context.Context, event Event) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	select {
	case e.inbox <- event:
	default:
		e.logger.WarnContext(ctx, "event inbox full, dropping event",
			"type", event.Type, "label", event.Label.Hex())
	}
}

// Worker drains the emitter's inbox into a Publisher. It keeps background
// publishing testable without wiring broker implementations into services.
type Worker struct {
	emitter   *Emitter
	publisher Publisher
	logger    *slog.Logger
}

func NewWorker(emitter *Emitter, publisher Publisher, logger *slog.Logger) *Worker {
	return &Worker{emitter: emitter, publisher: publisher, logger: logger}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.emitter.inbox:
			if err := w.publisher.Publish(ctx, event); err != nil {
				w.logger.ErrorContext(ctx, "failed to publish event",
					"type", event.Type, "label", event.Label.Hex(), "error", err)
			}
		}
	}
}
