package interfaces

import (
	"context"

	"fleet-settlement/internal/eventing"
	"fleet-settlement/internal/settlement/application"
)

// OutboxPublisher writes settlement events to the outbox. Events of one
// settlement share its id as correlation id.
type OutboxPublisher struct {
	publisher *eventing.Publisher
}

// NewOutboxPublisher constructs an outbox publisher.
func NewOutboxPublisher(publisher *eventing.Publisher) *OutboxPublisher {
	return &OutboxPublisher{publisher: publisher}
}

// Publish writes event to the outbox.
func (p *OutboxPublisher) Publish(ctx context.Context, event any) error {
	if p == nil || p.publisher == nil {
		return nil
	}
	if id := settlementID(event); id != "" {
		ctx = eventing.WithCorrelationID(ctx, id)
	}
	return p.publisher.Publish(ctx, event)
}

func settlementID(event any) string {
	switch e := event.(type) {
	case application.SettlementCreated:
		return e.SettlementID
	case application.SettlementConfirmed:
		return e.SettlementID
	case application.SettlementDisputed:
		return e.SettlementID
	case application.SettlementRecomputed:
		return e.SettlementID
	}
	return ""
}
