package handler_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/boddenberg/family-rewards-bfa-go/internal/domain"
	"github.com/boddenberg/family-rewards-bfa-go/internal/handler"
	"github.com/boddenberg/family-rewards-bfa-go/internal/infra/cache"
	"github.com/boddenberg/family-rewards-bfa-go/internal/infra/observability"
	"github.com/boddenberg/family-rewards-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/family-rewards-bfa-go/internal/infra/supabase"
	"github.com/boddenberg/family-rewards-bfa-go/internal/service"

	"go.uber.org/zap"
)

// fakePostgREST keeps the subscriptions and webhook_events tables in memory
// and enforces the unique keys the real schema has.
type fakePostgREST struct {
	mu            sync.Mutex
	subscriptions map[string]map[string]any
	events        map[string]map[string]any
	writes        int
}

func newFakePostgREST() *fakePostgREST {
	return &fakePostgREST{
		subscriptions: map[string]map[string]any{},
		events:        map[string]map[string]any{},
	}
}

func (f *fakePostgREST) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	table := strings.TrimPrefix(r.URL.Path, "/rest/v1/")
	rows, key := f.subscriptions, "user_id"
	if table == "webhook_events" {
		rows, key = f.events, "event_id"
	} else if table != "subscriptions" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	filter := strings.TrimPrefix(r.URL.Query().Get(key), "eq.")

	switch r.Method {
	case http.MethodGet:
		out := []map[string]any{}
		if row, ok := rows[filter]; ok {
			out = append(out, row)
		}
		json.NewEncoder(w).Encode(out)
	case http.MethodPost:
		var row map[string]any
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &row); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		id, _ := row[key].(string)
		if _, exists := rows[id]; exists {
			w.WriteHeader(http.StatusConflict)
			io.WriteString(w, `{"code":"23505"}`)
			return
		}
		rows[id] = row
		f.writes++
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode([]map[string]any{row})
	case http.MethodPatch:
		var patch map[string]any
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if row, ok := rows[filter]; ok {
			for k, v := range patch {
				row[k] = v
			}
			f.writes++
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakePostgREST) subscription(userID string) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subscriptions[userID]
}

// TestIntegration_WebhookLifecycle drives the webhook through the Supabase
// client against a fake PostgREST.
func TestIntegration_WebhookLifecycle(t *testing.T) {
	fake := newFakePostgREST()
	server := httptest.NewServer(fake)
	defer server.Close()

	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	cfg := resilience.Config{MaxRetries: 1, InitialBackoff: 10 * time.Millisecond, MaxConcurrency: 4}
	client := supabase.NewClient(&http.Client{Timeout: 5 * time.Second}, server.URL, "anon", "service", resilience.NewCircuitBreaker("test"), cfg, logger)

	seen := cache.New[bool](time.Minute)
	defer seen.Close()

	router := handler.NewRouter(handler.Services{
		Webhook:       service.NewWebhookService(client, client, seen, metrics, logger),
		WebhookSecret: "secret",
	}, metrics, logger)

	send := func(body string) domain.WebhookResult {
		t.Helper()
		req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/revenuecat", bytes.NewBufferString(body))
		req.Header.Set("Authorization", "Bearer secret")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d. Body: %s", rec.Code, rec.Body.String())
		}
		var res domain.WebhookResult
		if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if res.Error != "" {
			t.Fatalf("unexpected processing error: %s", res.Error)
		}
		return res
	}

	send(`{"event": {"id": "e1", "type": "INITIAL_PURCHASE", "app_user_id": "u1",
		"original_app_user_id": "rc-u1", "product_id": "family_rewards_single_monthly",
		"store": "PLAY_STORE", "period_type": "TRIAL", "purchased_at_ms": 1709294400000}}`)

	row := fake.subscription("u1")
	if row == nil {
		t.Fatal("expected subscription row to be inserted")
	}
	if row["status"] != "trialing" || row["platform"] != "google" || row["revenuecat_customer_id"] != "rc-u1" {
		t.Errorf("unexpected row after purchase: %v", row)
	}
	if row["current_period_end"] != nil {
		t.Errorf("expected null period end, got %v", row["current_period_end"])
	}

	send(`{"event": {"id": "e2", "type": "RENEWAL", "app_user_id": "u1",
		"product_id": "family_rewards_family_annual", "store": "APP_STORE", "period_type": "NORMAL"}}`)
	row = fake.subscription("u1")
	if row["status"] != "active" || row["subscription_type"] != "family" {
		t.Errorf("unexpected row after renewal: %v", row)
	}

	send(`{"event": {"id": "e3", "type": "BILLING_ISSUE", "app_user_id": "u1"}}`)
	if got := fake.subscription("u1")["status"]; got != "past_due" {
		t.Errorf("expected past_due, got %v", got)
	}

	send(`{"event": {"id": "e4", "type": "EXPIRATION", "app_user_id": "u1"}}`)
	if got := fake.subscription("u1")["status"]; got != "expired" {
		t.Errorf("expected expired, got %v", got)
	}

	fake.mu.Lock()
	writes := fake.writes
	recorded := len(fake.events)
	fake.mu.Unlock()
	if recorded != 4 {
		t.Errorf("expected 4 ledger rows, got %d", recorded)
	}

	// a fresh instance without the local cache still sees the ledger
	other := handler.NewRouter(handler.Services{
		Webhook:       service.NewWebhookService(client, client, cache.New[bool](time.Minute), metrics, logger),
		WebhookSecret: "secret",
	}, metrics, logger)
	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/revenuecat",
		bytes.NewBufferString(`{"event": {"id": "e2", "type": "RENEWAL", "app_user_id": "u1"}}`))
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	other.ServeHTTP(rec, req)

	var res domain.WebhookResult
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !res.AlreadyProcessed {
		t.Error("expected replayed event to be reported as already processed")
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if fake.writes != writes {
		t.Errorf("replay wrote to the store: %d writes before, %d after", writes, fake.writes)
	}
}
