package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordTransitionIncrementsCounter(t *testing.T) {
	before := testutil.ToFloat64(orderTransitions.WithLabelValues("pending_shopper", "accepted_by_shopper", "shopper"))
	RecordTransition("pending_shopper", "accepted_by_shopper", "shopper")
	after := testutil.ToFloat64(orderTransitions.WithLabelValues("pending_shopper", "accepted_by_shopper", "shopper"))

	if after-before != 1 {
		t.Fatalf("expected counter to increase by 1, got %v", after-before)
	}
}

func TestSetBreakerState(t *testing.T) {
	SetBreakerState("shop_lookup_test", 1)
	if got := testutil.ToFloat64(breakerState.WithLabelValues("shop_lookup_test")); got != 1 {
		t.Fatalf("breaker state = %v, want 1", got)
	}
}

func TestRealtimeConnectionsGauge(t *testing.T) {
	before := testutil.ToFloat64(realtimeConnections)
	RealtimeConnectionOpened()
	RealtimeConnectionOpened()
	RealtimeConnectionClosed()
	if got := testutil.ToFloat64(realtimeConnections) - before; got != 1 {
		t.Fatalf("expected net one open connection, got %v", got)
	}
}
