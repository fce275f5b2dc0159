package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/boddenberg/family-rewards-bfa-go/internal/domain"

	"go.uber.org/zap"
)

// ============================================================
// Subscriptions
// ============================================================

// GetSubscriptionByUser returns the user's subscription row, or nil when the
// user has none.
func (c *Client) GetSubscriptionByUser(ctx context.Context, userID string) (*domain.SubscriptionRecord, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetSubscriptionByUser")
	defer span.End()

	var rows []domain.SubscriptionRecord
	err := c.execute(ctx, "supabase-subscriptions", func() error {
		body, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("subscriptions?%s&limit=1", eq("user_id", userID)))
		if err != nil || body == nil {
			return err
		}
		return json.Unmarshal(body, &rows)
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// InsertSubscription creates the user's subscription row.
func (c *Client) InsertSubscription(ctx context.Context, rec *domain.SubscriptionRecord) error {
	ctx, span := tracer.Start(ctx, "Supabase.InsertSubscription")
	defer span.End()

	err := c.execute(ctx, "supabase-subscriptions", func() error {
		_, err := c.doPost(ctx, "subscriptions", rec)
		return err
	})
	if isStatus(err, http.StatusConflict) {
		return &domain.ErrDuplicate{Key: rec.UserID}
	}
	if err != nil {
		c.logger.Error("supabase: insert subscription failed",
			zap.String("user_id", rec.UserID),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// UpdateSubscription patches the listed columns of the user's row.
func (c *Client) UpdateSubscription(ctx context.Context, userID string, fields map[string]any) error {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateSubscription")
	defer span.End()

	err := c.execute(ctx, "supabase-subscriptions", func() error {
		return c.doPatch(ctx, "subscriptions?"+eq("user_id", userID), fields)
	})
	if err != nil {
		c.logger.Error("supabase: update subscription failed",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return err
	}
	return nil
}
