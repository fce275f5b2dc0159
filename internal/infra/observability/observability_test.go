package observability

import (
	"context"
	"testing"
)

func TestInitTracer_NoEndpointIsNoop(t *testing.T) {
	shutdown, err := InitTracer("", "test")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("expected no-op shutdown, got %v", err)
	}
}

func TestMetrics_WebhookCounters(t *testing.T) {
	m := NewMetrics()
	m.IncrWebhookEvent("RENEWAL", "processed")
	m.IncrWebhookEvent("RENEWAL", "processed")
	m.IncrWebhookEvent("RENEWAL", "duplicate")

	if got := m.WebhookEventCount("RENEWAL", "processed"); got != 2 {
		t.Errorf("expected 2 processed, got %v", got)
	}
	if got := m.WebhookEventCount("RENEWAL", "duplicate"); got != 1 {
		t.Errorf("expected 1 duplicate, got %v", got)
	}
	if got := m.WebhookEventCount("EXPIRATION", "processed"); got != 0 {
		t.Errorf("expected 0 for untouched labels, got %v", got)
	}
}

func TestNewMetrics_Twice(t *testing.T) {
	// private registries: a second instance must not panic
	NewMetrics()
	NewMetrics()
}
