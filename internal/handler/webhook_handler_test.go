package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/boddenberg/family-rewards-bfa-go/internal/domain"
	"github.com/boddenberg/family-rewards-bfa-go/internal/handler"
	"github.com/boddenberg/family-rewards-bfa-go/internal/infra/boltstore"
	"github.com/boddenberg/family-rewards-bfa-go/internal/infra/cache"
	"github.com/boddenberg/family-rewards-bfa-go/internal/infra/observability"
	"github.com/boddenberg/family-rewards-bfa-go/internal/service"
)

const webhookSecret = "rc-shared-secret"

type webhookFixture struct {
	router http.Handler
	store  *boltstore.Store
}

func newWebhookFixture(t *testing.T, secret string) *webhookFixture {
	t.Helper()
	store, err := boltstore.Open(filepath.Join(t.TempDir(), "webhook.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	seen := cache.New[bool](time.Minute)
	t.Cleanup(seen.Close)

	metrics := observability.NewMetrics()
	svc := service.NewWebhookService(store, store, seen, metrics, zap.NewNop())
	router := handler.NewRouter(handler.Services{Webhook: svc, WebhookSecret: secret}, metrics, zap.NewNop())
	return &webhookFixture{router: router, store: store}
}

func (f *webhookFixture) post(t *testing.T, auth, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/revenuecat", bytes.NewBufferString(body))
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeResult(t *testing.T, rec *httptest.ResponseRecorder) domain.WebhookResult {
	t.Helper()
	var res domain.WebhookResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res), rec.Body.String())
	return res
}

const purchaseBody = `{"api_version": "1.0", "event": {
	"id": "evt-100",
	"type": "INITIAL_PURCHASE",
	"app_user_id": "user-1",
	"product_id": "family_rewards_family_monthly",
	"store": "APP_STORE",
	"period_type": "NORMAL",
	"purchased_at_ms": 1709294400000,
	"expiration_at_ms": 1711972800000,
	"original_transaction_id": "1000000123"
}}`

func TestWebhook_NestedEventIsProcessedOnce(t *testing.T) {
	f := newWebhookFixture(t, webhookSecret)
	ctx := context.Background()

	rec := f.post(t, "Bearer "+webhookSecret, purchaseBody)
	require.Equal(t, http.StatusOK, rec.Code)
	first := decodeResult(t, rec)
	assert.True(t, first.Received)
	assert.False(t, first.AlreadyProcessed)
	assert.Equal(t, "evt-100", first.EventID)
	assert.NotNil(t, first.ProcessingTimeMs)

	sub, err := f.store.GetSubscriptionByUser(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, domain.StatusActive, sub.Status)
	assert.Equal(t, "family", sub.SubscriptionType)
	assert.Equal(t, "apple", sub.Platform)
	require.NotNil(t, sub.CurrentPeriodStart)
	assert.True(t, time.UnixMilli(1709294400000).Equal(*sub.CurrentPeriodStart))

	// cancel, then replay the purchase: the replay must not reactivate
	cancel := `{"event": {"id": "evt-101", "type": "CANCELLATION", "app_user_id": "user-1"}}`
	require.Equal(t, http.StatusOK, f.post(t, "Bearer "+webhookSecret, cancel).Code)

	rec = f.post(t, "Bearer "+webhookSecret, purchaseBody)
	require.Equal(t, http.StatusOK, rec.Code)
	second := decodeResult(t, rec)
	assert.True(t, second.Received)
	assert.True(t, second.AlreadyProcessed)
	assert.Equal(t, "evt-100", second.EventID)

	sub, err = f.store.GetSubscriptionByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCanceled, sub.Status)
	assert.NotNil(t, sub.CanceledAt)
}

func TestWebhook_TopLevelEventAccepted(t *testing.T) {
	f := newWebhookFixture(t, webhookSecret)

	body := `{"id": "evt-200", "type": "INITIAL_PURCHASE", "app_user_id": "user-2",
		"product_id": "family_rewards_single_annual", "store": "STRIPE", "period_type": "TRIAL"}`
	rec := f.post(t, "Bearer "+webhookSecret, body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeResult(t, rec).Error)

	sub, err := f.store.GetSubscriptionByUser(context.Background(), "user-2")
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, domain.StatusTrialing, sub.Status)
	assert.Equal(t, "stripe", sub.Platform)
	assert.Nil(t, sub.CurrentPeriodEnd)
}

func TestWebhook_UnknownTypeRecordedWithoutMutation(t *testing.T) {
	f := newWebhookFixture(t, webhookSecret)
	ctx := context.Background()

	body := `{"event": {"id": "evt-foo", "type": "FOO", "app_user_id": "user-3"}}`
	rec := f.post(t, "Bearer "+webhookSecret, body)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decodeResult(t, rec)
	assert.True(t, res.Received)
	assert.Empty(t, res.Error)

	sub, err := f.store.GetSubscriptionByUser(ctx, "user-3")
	require.NoError(t, err)
	assert.Nil(t, sub)

	processed, err := f.store.IsEventProcessed(ctx, "evt-foo")
	require.NoError(t, err)
	assert.True(t, processed)

	again := decodeResult(t, f.post(t, "Bearer "+webhookSecret, body))
	assert.True(t, again.AlreadyProcessed)
}

func TestWebhook_MissingAuthWritesNothing(t *testing.T) {
	f := newWebhookFixture(t, webhookSecret)
	ctx := context.Background()

	for _, auth := range []string{"", "Bearer wrong", webhookSecret} {
		rec := f.post(t, auth, purchaseBody)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, auth)
	}

	processed, err := f.store.IsEventProcessed(ctx, "evt-100")
	require.NoError(t, err)
	assert.False(t, processed)

	sub, err := f.store.GetSubscriptionByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Nil(t, sub)
}

func TestWebhook_SecretNotConfigured(t *testing.T) {
	f := newWebhookFixture(t, "")

	rec := f.post(t, "Bearer anything", purchaseBody)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestWebhook_MethodNotAllowed(t *testing.T) {
	f := newWebhookFixture(t, webhookSecret)

	req := httptest.NewRequest(http.MethodGet, "/v1/webhooks/revenuecat", nil)
	req.Header.Set("Authorization", "Bearer "+webhookSecret)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, http.MethodPost, rec.Header().Get("Allow"))
}

func TestWebhook_BadRequests(t *testing.T) {
	f := newWebhookFixture(t, webhookSecret)

	tests := map[string]string{
		"malformed":    `{"event": {"id": `,
		"array":        `[1, 2]`,
		"missing id":   `{"event": {"type": "RENEWAL"}}`,
		"missing type": `{"event": {"id": "evt-1"}}`,
		"empty":        `{}`,
		"wrong types":  `{"event": {"id": "evt-1", "type": "RENEWAL", "purchased_at_ms": "yesterday"}}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			rec := f.post(t, "Bearer "+webhookSecret, body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestWebhook_DispatchErrorIsStill200(t *testing.T) {
	f := newWebhookFixture(t, webhookSecret)

	// expiration without a user id cannot be applied
	rec := f.post(t, "Bearer "+webhookSecret, `{"event": {"id": "evt-bad", "type": "EXPIRATION"}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decodeResult(t, rec)
	assert.True(t, res.Received)
	assert.NotEmpty(t, res.Error)

	processed, err := f.store.IsEventProcessed(context.Background(), "evt-bad")
	require.NoError(t, err)
	assert.False(t, processed, "failed events stay retryable")
}

func TestWebhook_NoStoreConfigured(t *testing.T) {
	router := handler.NewRouter(handler.Services{WebhookSecret: webhookSecret}, observability.NewMetrics(), zap.NewNop())

	tests := []struct {
		name   string
		method string
		auth   string
		want   int
	}{
		{"wrong method", http.MethodGet, "Bearer " + webhookSecret, http.StatusMethodNotAllowed},
		{"missing auth", http.MethodPost, "", http.StatusUnauthorized},
		{"wrong secret", http.MethodPost, "Bearer wrong", http.StatusUnauthorized},
		{"authorized", http.MethodPost, "Bearer " + webhookSecret, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/v1/webhooks/revenuecat", bytes.NewBufferString(purchaseBody))
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}
