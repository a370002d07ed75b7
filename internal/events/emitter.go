package events

import (
	"context"

	"github.com/rs/zerolog/log"

	"letter-service/internal/clock"
)

// Publisher is the transport the emitter publishes through.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	Close() error
}

// Emitter publishes versioned domain events. Emission is best-effort:
// a publish failure is logged but never fails the triggering operation.
type Emitter struct {
	publisher Publisher
	service   string
	clock     clock.Clock
}

// NewEmitter builds an Emitter.
func NewEmitter(publisher Publisher, service string, clk clock.Clock) *Emitter {
	return &Emitter{publisher: publisher, service: service, clock: clk}
}

// Emit publishes one event under the given routing key.
func (e *Emitter) Emit(ctx context.Context, routingKey, eventType string, payload any) {
	if e == nil || e.publisher == nil {
		return
	}

	envelope := Envelope{
		SchemaVersion: 1,
		EventType:     eventType,
		OccurredAt:    e.clock.Now(),
		Service:       e.service,
		Payload:       payload,
	}
	if err := e.publisher.Publish(ctx, routingKey, envelope); err != nil {
		log.Error().Err(err).Str("event_type", eventType).Msg("event publish failed")
	}
}
