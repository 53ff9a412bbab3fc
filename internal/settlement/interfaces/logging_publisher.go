package interfaces

import (
	"context"
	"log"

	"fleet-settlement/internal/money"
	"fleet-settlement/internal/settlement/application"
)

// LoggingPublisher logs settlement events and hands them to the next publisher.
type LoggingPublisher struct {
	logger *log.Logger
	next   application.EventPublisher
}

// NewLoggingPublisher constructs a logging publisher. next may be nil.
func NewLoggingPublisher(logger *log.Logger, next application.EventPublisher) *LoggingPublisher {
	if logger == nil {
		logger = log.Default()
	}
	return &LoggingPublisher{logger: logger, next: next}
}

// Publish logs the event.
func (p *LoggingPublisher) Publish(ctx context.Context, event any) error {
	switch e := event.(type) {
	case application.SettlementCreated:
		p.logger.Printf("settlement created: id=%s contract=%s period=%s..%s earnings=%d payout=%s negative=%t",
			e.SettlementID, e.ContractID, e.PeriodStart.Format("2006-01-02"), e.PeriodEnd.Format("2006-01-02"),
			e.EarningCount, money.Format(e.NetPayout), e.NegativePayout)
	case application.SettlementConfirmed:
		p.logger.Printf("settlement confirmed: id=%s contract=%s payout=%s", e.SettlementID, e.ContractID, money.Format(e.NetPayout))
	case application.SettlementDisputed:
		p.logger.Printf("settlement disputed: id=%s contract=%s reason=%q", e.SettlementID, e.ContractID, e.Reason)
	case application.SettlementRecomputed:
		p.logger.Printf("settlement recomputed: id=%s contract=%s attached=%d payout=%s",
			e.SettlementID, e.ContractID, e.Attached, money.Format(e.NetPayout))
	default:
		p.logger.Printf("settlement event: %T", event)
	}
	if p.next == nil {
		return nil
	}
	return p.next.Publish(ctx, event)
}
