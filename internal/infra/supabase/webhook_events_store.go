package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/boddenberg/family-rewards-bfa-go/internal/domain"
)

// ============================================================
// Webhook event ledger
// ============================================================

// IsEventProcessed reports whether eventID is already in webhook_events.
func (c *Client) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	ctx, span := tracer.Start(ctx, "Supabase.IsEventProcessed")
	defer span.End()

	var rows []struct {
		EventID string `json:"event_id"`
	}
	err := c.execute(ctx, "supabase-webhook-events", func() error {
		body, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("webhook_events?select=event_id&%s&limit=1", eq("event_id", eventID)))
		if err != nil || body == nil {
			return err
		}
		return json.Unmarshal(body, &rows)
	})
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

// RecordEvent inserts a ledger row. A unique-key conflict (409) means another
// delivery recorded the same id first and is reported as *domain.ErrDuplicate.
func (c *Client) RecordEvent(ctx context.Context, rec *domain.WebhookEventRecord) error {
	ctx, span := tracer.Start(ctx, "Supabase.RecordEvent")
	defer span.End()

	err := c.execute(ctx, "supabase-webhook-events", func() error {
		_, err := c.doPost(ctx, "webhook_events", rec)
		return err
	})
	if isStatus(err, http.StatusConflict) {
		return &domain.ErrDuplicate{Key: rec.EventID}
	}
	return err
}
