package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"fleet-settlement/internal/eventing"
	eventingmemory "fleet-settlement/internal/eventing/infrastructure/memory"
	"fleet-settlement/internal/money"
	"fleet-settlement/internal/settlement/application"
)

type webhookRecorder struct {
	mu       sync.Mutex
	payloads []webhookPayload
	status   int
}

func (rec *webhookRecorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var payload webhookPayload
	_ = json.NewDecoder(r.Body).Decode(&payload)
	rec.mu.Lock()
	rec.payloads = append(rec.payloads, payload)
	status := rec.status
	rec.mu.Unlock()
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
}

type pipeline struct {
	publisher  *eventing.Publisher
	dispatcher *eventing.Dispatcher
	dlq        *eventingmemory.DLQStore
}

func newPipeline(t *testing.T, url string) *pipeline {
	t.Helper()
	outbox := eventingmemory.NewOutboxStore()
	dlq := eventingmemory.NewDLQStore()
	registry := eventing.NewRegistry()
	registry.Register(application.Events()...)
	bus := eventing.NewInMemoryBus()

	subscriber, err := NewSubscriber(NewWebhookNotifier(url), nil)
	if err != nil {
		t.Fatalf("subscriber: %v", err)
	}
	subscriber.Register(bus, eventingmemory.NewProcessedStore())
	return &pipeline{
		publisher:  eventing.NewPublisher(outbox, ""),
		dispatcher: eventing.NewDispatcher(bus, outbox, registry, dlq),
		dlq:        dlq,
	}
}

func (p *pipeline) publish(t *testing.T, events ...any) eventing.DispatchResult {
	t.Helper()
	ctx := context.Background()
	for _, event := range events {
		if err := p.publisher.Publish(ctx, event); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}
	result, _ := p.dispatcher.Dispatch(ctx, 10)
	return result
}

func TestSubscriber_AlertsOnNegativePayoutAndDispute(t *testing.T) {
	hook := &webhookRecorder{}
	server := httptest.NewServer(hook)
	defer server.Close()
	p := newPipeline(t, server.URL)

	start := time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)
	result := p.publish(t,
		application.SettlementCreated{SettlementID: "s-1", CompanyID: "company-1", ContractID: "contract-1",
			PeriodStart: start, PeriodEnd: start.AddDate(0, 0, 7), NetPayout: money.MustParse("125")},
		application.SettlementCreated{SettlementID: "s-2", CompanyID: "company-1", ContractID: "contract-2",
			PeriodStart: start, PeriodEnd: start.AddDate(0, 0, 7), NetPayout: money.MustParse("-245"), NegativePayout: true},
		application.SettlementDisputed{SettlementID: "s-1", CompanyID: "company-1", ContractID: "contract-1", Reason: "trip missing"},
	)
	if result.Sent != 3 || result.Failed != 0 {
		t.Fatalf("dispatch = %+v", result)
	}

	hook.mu.Lock()
	defer hook.mu.Unlock()
	if len(hook.payloads) != 2 {
		t.Fatalf("alerts = %d", len(hook.payloads))
	}
	negative := hook.payloads[0]
	if negative.Alert.Kind != KindNegativePayout || negative.Alert.NetPayout != "-245.00" {
		t.Fatalf("negative alert = %+v", negative.Alert)
	}
	if !strings.Contains(negative.Text.Content, "Period: 2026-03-02 - 2026-03-08") {
		t.Fatalf("content = %q", negative.Text.Content)
	}
	if disputed := hook.payloads[1]; disputed.Alert.Kind != KindDisputed || disputed.Alert.Reason != "trip missing" {
		t.Fatalf("disputed alert = %+v", disputed.Alert)
	}
}

func TestSubscriber_FailedDeliveryIsDeadLettered(t *testing.T) {
	hook := &webhookRecorder{status: http.StatusBadGateway}
	server := httptest.NewServer(hook)
	defer server.Close()
	p := newPipeline(t, server.URL)

	result := p.publish(t, application.SettlementDisputed{SettlementID: "s-9", CompanyID: "company-1", Reason: "rent too high"})
	if result.Failed != 1 || result.DLQ != 1 {
		t.Fatalf("dispatch = %+v", result)
	}
	letters, err := p.dlq.List(context.Background(), "company-1", 10)
	if err != nil {
		t.Fatalf("list dlq: %v", err)
	}
	if len(letters) != 1 || !strings.Contains(letters[0].Error, "status 502") {
		t.Fatalf("letters = %+v", letters)
	}
}

func TestNewSubscriber_NilNotifier(t *testing.T) {
	if _, err := NewSubscriber(nil, nil); err == nil {
		t.Fatalf("expected error for nil notifier")
	}
}
