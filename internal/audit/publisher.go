package audit

import (
	"context"
	"time"
)

// Sink accepts audit events. KafkaSink and MemoryStore both satisfy it.
type Sink interface {
	Append(ctx context.Context, event Event) error
}

// Publisher stamps, categorizes, samples, and fans events out to sinks.
// Compliance events reach every sink; operations events pass through the
// sampler first.
type Publisher struct {
	sinks   []Sink
	sampler *Sampler
}

// NewPublisher builds a publisher over the given sinks. A nil sampler keeps
// every event.
func NewPublisher(sampler *Sampler, sinks ...Sink) *Publisher {
	return &Publisher{sinks: sinks, sampler: sampler}
}

// Emit routes one event. The category always derives from the action so
// callers cannot misroute an event by setting it themselves.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	event.Category = event.Action.Category()
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	if event.Category == CategoryOperations && p.sampler != nil && !p.sampler.ShouldSample(event.Action) {
		return nil
	}

	for _, sink := range p.sinks {
		if err := sink.Append(ctx, event); err != nil {
			return err
		}
	}
	return nil
}
