package eventing

import "context"

type contextKey string

const (
	contextKeyEnvelope contextKey = "eventing.envelope"
	contextKeyCompany  contextKey = "eventing.company_id"
	contextKeyCorr     contextKey = "eventing.correlation_id"
	contextKeyEventID  contextKey = "eventing.event_id"
)

// WithEnvelope attaches envelope metadata to context.
func WithEnvelope(ctx context.Context, env Envelope) context.Context {
	return context.WithValue(ctx, contextKeyEnvelope, env)
}

// EnvelopeFromContext returns envelope metadata if available.
func EnvelopeFromContext(ctx context.Context) (Envelope, bool) {
	env, ok := ctx.Value(contextKeyEnvelope).(Envelope)
	return env, ok
}

// WithCompanyID sets the owning company in context.
func WithCompanyID(ctx context.Context, companyID string) context.Context {
	return context.WithValue(ctx, contextKeyCompany, companyID)
}

// WithCorrelationID sets correlation id in context.
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, contextKeyCorr, correlationID)
}

// WithEventID sets event id in context.
func WithEventID(ctx context.Context, eventID string) context.Context {
	return context.WithValue(ctx, contextKeyEventID, eventID)
}

// MetaFromContext builds metadata from context with defaults.
func MetaFromContext(ctx context.Context, defaultCompanyID string) Meta {
	meta := Meta{}
	if companyID, ok := ctx.Value(contextKeyCompany).(string); ok {
		meta.CompanyID = companyID
	}
	if meta.CompanyID == "" {
		meta.CompanyID = defaultCompanyID
	}
	if corr, ok := ctx.Value(contextKeyCorr).(string); ok {
		meta.CorrelationID = corr
	}
	if id, ok := ctx.Value(contextKeyEventID).(string); ok {
		meta.EventID = id
	}
	return meta
}
