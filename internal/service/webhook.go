package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/boddenberg/family-rewards-bfa-go/internal/domain"
	"github.com/boddenberg/family-rewards-bfa-go/internal/infra/observability"
	"github.com/boddenberg/family-rewards-bfa-go/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var webhookTracer = otel.Tracer("service/webhook")

// Webhook outcomes, used as a metric label.
const (
	OutcomeProcessed = "processed"
	OutcomeDuplicate = "duplicate"
	OutcomeFailed    = "failed"
)

// productTypes maps store product ids to the subscription tier.
var productTypes = map[string]string{
	"family_rewards_single_monthly": "single",
	"family_rewards_single_annual":  "single",
	"family_rewards_family_monthly": "family",
	"family_rewards_family_annual":  "family",
}

// storePlatforms maps the provider's store names to our platform column.
var storePlatforms = map[string]string{
	"APP_STORE":     "apple",
	"MAC_APP_STORE": "apple",
	"PLAY_STORE":    "google",
	"STRIPE":        "stripe",
	"AMAZON":        "amazon",
}

// SubscriptionTypeForProduct returns the tier for a product id, "single"
// when the product is unknown.
func SubscriptionTypeForProduct(productID string) string {
	if t, ok := productTypes[productID]; ok {
		return t
	}
	return "single"
}

// PlatformForStore returns the platform for a store name, "apple" when the
// store is unknown.
func PlatformForStore(store string) string {
	if p, ok := storePlatforms[store]; ok {
		return p
	}
	return "apple"
}

// WebhookService applies billing provider events to the subscriptions table
// at most once per event id.
type WebhookService struct {
	subs    port.SubscriptionStore
	ledger  port.EventLedger
	seen    port.Cache[bool]
	metrics *observability.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewWebhookService creates the webhook processor. seen caches ids of events
// processed by this instance; the ledger remains the source of truth.
func NewWebhookService(subs port.SubscriptionStore, ledger port.EventLedger, seen port.Cache[bool], metrics *observability.Metrics, logger *zap.Logger) *WebhookService {
	return &WebhookService{
		subs:    subs,
		ledger:  ledger,
		seen:    seen,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// Process handles one validated event. It never returns an error: dispatch
// failures are logged and reported in the result's Error field so the
// provider does not keep retrying.
func (s *WebhookService) Process(ctx context.Context, ev *domain.BillingEvent) domain.WebhookResult {
	ctx, span := webhookTracer.Start(ctx, "WebhookService.Process")
	defer span.End()
	span.SetAttributes(
		attribute.String("event.id", ev.ID),
		attribute.String("event.type", ev.Type),
	)

	start := time.Now()
	defer func() {
		s.metrics.RecordRequestDuration("webhook", time.Since(start))
	}()

	log := s.logger.With(
		zap.String("event_id", ev.ID),
		zap.String("event_type", ev.Type),
		zap.String("app_user_id", ev.AppUserID),
	)

	if s.alreadyProcessed(ctx, ev.ID, log) {
		log.Info("webhook: event already processed", zap.String("step", "idempotency"))
		s.metrics.IncrWebhookEvent(ev.Type, OutcomeDuplicate)
		return domain.WebhookResult{Received: true, AlreadyProcessed: true, EventID: ev.ID}
	}

	if err := s.dispatch(ctx, ev, log); err != nil {
		elapsed := time.Since(start).Milliseconds()
		log.Error("webhook: dispatch failed",
			zap.String("step", "dispatch"),
			zap.Int64("processing_time_ms", elapsed),
			zap.Error(err),
			zap.Stack("stack"),
		)
		s.metrics.IncrWebhookEvent(ev.Type, OutcomeFailed)
		span.RecordError(err)
		return domain.WebhookResult{Received: true, EventID: ev.ID, ProcessingTimeMs: &elapsed, Error: err.Error()}
	}

	elapsed := time.Since(start).Milliseconds()
	s.record(ctx, ev, elapsed, log)
	s.metrics.IncrWebhookEvent(ev.Type, OutcomeProcessed)

	log.Info("webhook: event processed", zap.Int64("processing_time_ms", elapsed))
	return domain.WebhookResult{Received: true, EventID: ev.ID, ProcessingTimeMs: &elapsed}
}

// alreadyProcessed consults the local cache, then the ledger. A ledger error
// is logged and treated as "not processed".
func (s *WebhookService) alreadyProcessed(ctx context.Context, eventID string, log *zap.Logger) bool {
	if _, ok := s.seen.Get(eventID); ok {
		s.metrics.IncrCacheHit("webhook_events")
		return true
	}
	s.metrics.IncrCacheMiss("webhook_events")

	processed, err := s.ledger.IsEventProcessed(ctx, eventID)
	if err != nil {
		log.Warn("webhook: idempotency check failed, processing anyway",
			zap.String("step", "idempotency"),
			zap.Error(err),
		)
		s.metrics.IncrExternalError("event_ledger")
		return false
	}
	if processed {
		s.seen.Set(eventID, true)
	}
	return processed
}

func (s *WebhookService) dispatch(ctx context.Context, ev *domain.BillingEvent, log *zap.Logger) error {
	switch ev.Type {
	case domain.EventInitialPurchase, domain.EventRenewal, domain.EventUncancellation, domain.EventProductChange:
		return s.upsertActive(ctx, ev, log)
	case domain.EventCancellation:
		now := s.now().UTC()
		return s.setStatus(ctx, ev, map[string]any{
			"status":      domain.StatusCanceled,
			"canceled_at": now,
			"updated_at":  now,
		})
	case domain.EventExpiration:
		return s.setStatus(ctx, ev, map[string]any{
			"status":     domain.StatusExpired,
			"updated_at": s.now().UTC(),
		})
	case domain.EventBillingIssue:
		return s.setStatus(ctx, ev, map[string]any{
			"status":     domain.StatusPastDue,
			"updated_at": s.now().UTC(),
		})
	case domain.EventTest:
		log.Info("webhook: test event received", zap.String("step", "dispatch"), zap.String("environment", ev.Environment))
		return nil
	default:
		log.Info("webhook: unhandled event type ignored", zap.String("step", "dispatch"))
		return nil
	}
}

func (s *WebhookService) setStatus(ctx context.Context, ev *domain.BillingEvent, fields map[string]any) error {
	if ev.AppUserID == "" {
		return &domain.ErrValidation{Field: "app_user_id", Message: "required for " + ev.Type}
	}
	if err := s.subs.UpdateSubscription(ctx, ev.AppUserID, fields); err != nil {
		return fmt.Errorf("update subscription status: %w", err)
	}
	return nil
}

// upsertActive writes the purchase state of ev as a select followed by an
// insert or update. Two deliveries for a user without a row can both take the
// insert branch; the loser sees a duplicate and retries as an update.
func (s *WebhookService) upsertActive(ctx context.Context, ev *domain.BillingEvent, log *zap.Logger) error {
	if ev.AppUserID == "" {
		return &domain.ErrValidation{Field: "app_user_id", Message: "required for " + ev.Type}
	}

	status := domain.StatusActive
	if ev.PeriodType == domain.PeriodTypeTrial {
		status = domain.StatusTrialing
	}
	customerID := ev.OriginalAppUserID
	if customerID == "" {
		customerID = ev.AppUserID
	}
	now := s.now().UTC()

	rec := &domain.SubscriptionRecord{
		UserID:                   ev.AppUserID,
		Status:                   status,
		SubscriptionType:         SubscriptionTypeForProduct(ev.ProductID),
		Platform:                 PlatformForStore(ev.Store),
		IAPProductID:             ev.ProductID,
		IAPOriginalTransactionID: ev.OriginalTransactionID,
		RevenueCatCustomerID:     customerID,
		CurrentPeriodStart:       msToTime(ev.PurchasedAtMs),
		CurrentPeriodEnd:         msToTime(ev.ExpirationAtMs),
		UpdatedAt:                now,
	}

	existing, err := s.subs.GetSubscriptionByUser(ctx, ev.AppUserID)
	if err != nil {
		return fmt.Errorf("lookup subscription: %w", err)
	}

	if existing == nil {
		rec.ID = uuid.NewString()
		err := s.subs.InsertSubscription(ctx, rec)
		if err == nil {
			log.Info("webhook: subscription created", zap.String("status", string(status)))
			return nil
		}
		var dup *domain.ErrDuplicate
		if !errors.As(err, &dup) {
			return fmt.Errorf("insert subscription: %w", err)
		}
		log.Warn("webhook: concurrent insert, updating instead", zap.String("step", "dispatch"))
	}

	if err := s.subs.UpdateSubscription(ctx, ev.AppUserID, activeFields(rec)); err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	log.Info("webhook: subscription updated", zap.String("status", string(status)))
	return nil
}

func activeFields(rec *domain.SubscriptionRecord) map[string]any {
	return map[string]any{
		"status":                      rec.Status,
		"subscription_type":           rec.SubscriptionType,
		"platform":                    rec.Platform,
		"iap_product_id":              rec.IAPProductID,
		"iap_original_transaction_id": rec.IAPOriginalTransactionID,
		"revenuecat_customer_id":      rec.RevenueCatCustomerID,
		"current_period_start":        rec.CurrentPeriodStart,
		"current_period_end":          rec.CurrentPeriodEnd,
		"canceled_at":                 nil,
		"updated_at":                  rec.UpdatedAt,
	}
}

// record writes the ledger row. Failures are logged only; the subscription
// change has already been applied.
func (s *WebhookService) record(ctx context.Context, ev *domain.BillingEvent, elapsed int64, log *zap.Logger) {
	err := s.ledger.RecordEvent(ctx, &domain.WebhookEventRecord{
		EventID:          ev.ID,
		EventType:        ev.Type,
		ProcessingTimeMs: elapsed,
		RecordedAt:       s.now().UTC(),
	})

	var dup *domain.ErrDuplicate
	switch {
	case err == nil:
	case errors.As(err, &dup):
		log.Info("webhook: event recorded by a concurrent delivery", zap.String("step", "record"))
		s.metrics.IncrLedgerDuplicate()
	default:
		log.Warn("webhook: failed to record event", zap.String("step", "record"), zap.Error(err))
		s.metrics.IncrExternalError("event_ledger")
		return
	}
	s.seen.Set(ev.ID, true)
}

// msToTime converts epoch milliseconds to UTC; nil and non-positive values
// become nil.
func msToTime(ms *int64) *time.Time {
	if ms == nil || *ms <= 0 {
		return nil
	}
	t := time.UnixMilli(*ms).UTC()
	return &t
}
