package notify

import (
	"context"

	"github.com/rs/zerolog/log"
)

// LogSink writes every event to the structured log. It is always wired
// in so that alerts remain visible even when no channels are registered.
type LogSink struct{}

func (LogSink) Publish(_ context.Context, event Event) error {
	log.Info().
		Str("event_type", event.Type).
		Interface("data", event.Data).
		Msg("event published")
	return nil
}

type multiSink struct {
	sinks []Sink
}

// Multi fans an event out to every sink. A failing sink is logged and
// skipped so one broken destination cannot starve the others.
func Multi(sinks ...Sink) Sink {
	return &multiSink{sinks: sinks}
}

func (m *multiSink) Publish(ctx context.Context, event Event) error {
	for _, s := range m.sinks {
		if err := s.Publish(ctx, event); err != nil {
			log.Warn().Err(err).Str("event_type", event.Type).Msg("sink publish failed")
		}
	}
	return nil
}
