package boltstore_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boddenberg/family-rewards-bfa-go/internal/domain"
	"github.com/boddenberg/family-rewards-bfa-go/internal/infra/boltstore"
)

func newTestStore(t *testing.T) *boltstore.Store {
	t.Helper()
	s, err := boltstore.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordEvent_Idempotency(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	processed, err := s.IsEventProcessed(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, processed)

	rec := &domain.WebhookEventRecord{EventID: "evt-1", EventType: domain.EventRenewal, ProcessingTimeMs: 12, RecordedAt: time.Now().UTC()}
	require.NoError(t, s.RecordEvent(ctx, rec))

	processed, err = s.IsEventProcessed(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, processed)

	err = s.RecordEvent(ctx, &domain.WebhookEventRecord{EventID: "evt-1", EventType: domain.EventExpiration})
	var dup *domain.ErrDuplicate
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "evt-1", dup.Key)
}

func TestSubscription_InsertGetUpdate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	got, err := s.GetSubscriptionByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	require.NoError(t, s.InsertSubscription(ctx, &domain.SubscriptionRecord{
		UserID:             "user-1",
		Status:             domain.StatusActive,
		SubscriptionType:   "family",
		Platform:           "apple",
		CurrentPeriodStart: &start,
		CurrentPeriodEnd:   &end,
		UpdatedAt:          start,
	}))

	canceled := start.Add(48 * time.Hour)
	require.NoError(t, s.UpdateSubscription(ctx, "user-1", map[string]any{
		"status":      domain.StatusCanceled,
		"canceled_at": canceled,
		"updated_at":  canceled,
	}))

	got, err = s.GetSubscriptionByUser(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.StatusCanceled, got.Status)
	assert.Equal(t, "family", got.SubscriptionType)
	require.NotNil(t, got.CanceledAt)
	assert.True(t, canceled.Equal(*got.CanceledAt))
	require.NotNil(t, got.CurrentPeriodEnd)
	assert.True(t, end.Equal(*got.CurrentPeriodEnd))
}

func TestInsertSubscription_DuplicateUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := &domain.SubscriptionRecord{UserID: "user-1", Status: domain.StatusActive}
	require.NoError(t, s.InsertSubscription(ctx, rec))

	var dup *domain.ErrDuplicate
	assert.ErrorAs(t, s.InsertSubscription(ctx, rec), &dup)
}

func TestUpdateSubscription_MissingRowIsNoop(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpdateSubscription(ctx, "ghost", map[string]any{"status": domain.StatusExpired}))

	got, err := s.GetSubscriptionByUser(ctx, "ghost")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestReopenKeepsLedger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	ctx := context.Background()

	s, err := boltstore.Open(path)
	require.NoError(t, err)
	require.NoError(t, s.RecordEvent(ctx, &domain.WebhookEventRecord{EventID: "evt-9", EventType: domain.EventTest}))
	require.NoError(t, s.Close())

	s, err = boltstore.Open(path)
	require.NoError(t, err)
	defer s.Close()

	processed, err := s.IsEventProcessed(ctx, "evt-9")
	require.NoError(t, err)
	assert.True(t, processed)
}
