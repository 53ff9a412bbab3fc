package notify

import (
	"context"
	"errors"
	"log"

	"fleet-settlement/internal/eventing"
	"fleet-settlement/internal/money"
	"fleet-settlement/internal/settlement/application"
)

const consumerName = "settlement-alerts"

// Subscriber turns settlement events into alerts.
type Subscriber struct {
	notifier Notifier
	logger   *log.Logger
}

// NewSubscriber constructs a subscriber.
func NewSubscriber(notifier Notifier, logger *log.Logger) (*Subscriber, error) {
	if notifier == nil {
		return nil, errors.New("settlement alerts: nil notifier")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Subscriber{notifier: notifier, logger: logger}, nil
}

// Register subscribes to created and disputed settlements. processed makes
// delivery idempotent per event and may be nil.
func (s *Subscriber) Register(bus eventing.Bus, processed eventing.ProcessedStore) {
	eventing.Subscribe(bus, eventing.EventTypeOf[application.SettlementCreated](), consumerName, s.handleCreated, processed)
	eventing.Subscribe(bus, eventing.EventTypeOf[application.SettlementDisputed](), consumerName, s.handleDisputed, processed)
}

func (s *Subscriber) handleCreated(ctx context.Context, event any) error {
	e, ok := event.(application.SettlementCreated)
	if !ok || !e.NegativePayout {
		return nil
	}
	return s.send(ctx, AlertMessage{
		Kind:         KindNegativePayout,
		CompanyID:    e.CompanyID,
		ContractID:   e.ContractID,
		SettlementID: e.SettlementID,
		Period:       e.PeriodStart.Format("2006-01-02") + " - " + e.PeriodEnd.AddDate(0, 0, -1).Format("2006-01-02"),
		NetPayout:    money.Format(e.NetPayout),
	})
}

func (s *Subscriber) handleDisputed(ctx context.Context, event any) error {
	e, ok := event.(application.SettlementDisputed)
	if !ok {
		return nil
	}
	return s.send(ctx, AlertMessage{
		Kind:         KindDisputed,
		CompanyID:    e.CompanyID,
		ContractID:   e.ContractID,
		SettlementID: e.SettlementID,
		Reason:       e.Reason,
	})
}

func (s *Subscriber) send(ctx context.Context, msg AlertMessage) error {
	if err := s.notifier.Notify(ctx, msg); err != nil {
		s.logger.Printf("settlement alert: kind=%s settlement=%s err=%v", msg.Kind, msg.SettlementID, err)
		return err
	}
	s.logger.Printf("settlement alert: kind=%s settlement=%s sent", msg.Kind, msg.SettlementID)
	return nil
}
