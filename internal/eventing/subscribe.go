package eventing

import (
	"context"
	"fmt"
)

// ProcessedStore remembers which consumer already handled which outbox event,
// so a redelivered SettlementDisputed does not send a second alert.
type ProcessedStore interface {
	HasProcessed(ctx context.Context, eventID, consumerName string) (bool, error)
	MarkProcessed(ctx context.Context, eventID, consumerName string) error
}

// Subscribe registers handler on bus under consumerName. With a store the
// handler runs at most once per event id; without one every delivery runs.
func Subscribe(bus Bus, eventType, consumerName string, handler EventHandler, store ProcessedStore) {
	if store != nil {
		handler = WrapHandler(consumerName, handler, store)
	}
	bus.Subscribe(eventType, handler)
}

// WrapHandler skips events the consumer already processed and marks the
// event once handler succeeds. Events delivered without an envelope id
// cannot be deduplicated and always run.
func WrapHandler(consumerName string, handler EventHandler, store ProcessedStore) EventHandler {
	return func(ctx context.Context, event any) error {
		env, ok := EnvelopeFromContext(ctx)
		if !ok || env.EventID == "" {
			return handler(ctx, event)
		}
		done, err := store.HasProcessed(ctx, env.EventID, consumerName)
		switch {
		case err != nil:
			return fmt.Errorf("%s: processed lookup: %w", consumerName, err)
		case done:
			return nil
		}
		if err := handler(ctx, event); err != nil {
			return err
		}
		if err := store.MarkProcessed(ctx, env.EventID, consumerName); err != nil {
			return fmt.Errorf("%s: mark processed: %w", consumerName, err)
		}
		return nil
	}
}
