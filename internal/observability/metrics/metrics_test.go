package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestObserveSettlementCountsByOperation(t *testing.T) {
	Init(nil, nil)

	before := counterValue(t, settlementTotal.WithLabelValues("confirm", ResultSuccess))
	ObserveSettlement("confirm", ResultSuccess, 5*time.Millisecond)
	ObserveSettlement("confirm", ResultSuccess, 5*time.Millisecond)
	after := counterValue(t, settlementTotal.WithLabelValues("confirm", ResultSuccess))
	if after-before != 2 {
		t.Fatalf("expected 2 confirm observations, got %v", after-before)
	}
}

func TestObserveOutboxDispatchSplitsOutcomes(t *testing.T) {
	Init(nil, nil)

	sent := counterValue(t, outboxEvents.WithLabelValues("sent"))
	dlq := counterValue(t, outboxEvents.WithLabelValues("dlq"))
	ObserveOutboxDispatch(ResultError, time.Millisecond, 3, 1, 1)
	if got := counterValue(t, outboxEvents.WithLabelValues("sent")) - sent; got != 3 {
		t.Fatalf("expected 3 sent, got %v", got)
	}
	if got := counterValue(t, outboxEvents.WithLabelValues("dlq")) - dlq; got != 1 {
		t.Fatalf("expected 1 dlq, got %v", got)
	}
}

func TestEmptyLabelsFallBack(t *testing.T) {
	Init(nil, nil)

	before := counterValue(t, exportTotal.WithLabelValues("unknown", ResultSuccess))
	ObserveExport("", "", time.Millisecond)
	if got := counterValue(t, exportTotal.WithLabelValues("unknown", ResultSuccess)) - before; got != 1 {
		t.Fatalf("expected unknown/success export, got %v", got)
	}
}
