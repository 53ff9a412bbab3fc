package eventing

import "context"

// Publisher writes events to the outbox. Delivery happens when the
// dispatcher runs, so an event written inside a transaction is only
// delivered once that transaction commits.
type Publisher struct {
	outbox    OutboxWriter
	companyID string
}

// OutboxWriter inserts outbox records.
type OutboxWriter interface {
	Insert(ctx context.Context, env Envelope) (string, error)
}

// NewPublisher constructs a publisher. defaultCompanyID is used when neither
// the context nor the event names a company.
func NewPublisher(outbox OutboxWriter, defaultCompanyID string) *Publisher {
	return &Publisher{outbox: outbox, companyID: defaultCompanyID}
}

// Publish writes the event to the outbox.
func (p *Publisher) Publish(ctx context.Context, event any) error {
	if p == nil || p.outbox == nil {
		return nil
	}
	meta := MetaFromContext(ctx, "")
	env, err := BuildEnvelope(event, meta)
	if err != nil {
		return err
	}
	if env.CompanyID == "" {
		env.CompanyID = p.companyID
	}
	_, err = p.outbox.Insert(ctx, env)
	return err
}
