package domain

import "time"

// ============================================================
// Subscriptions (written only by the billing webhook)
// ============================================================

// SubscriptionStatus is the billing status of a user's entitlement.
type SubscriptionStatus string

const (
	StatusTrialing SubscriptionStatus = "trialing"
	StatusActive   SubscriptionStatus = "active"
	StatusCanceled SubscriptionStatus = "canceled"
	StatusExpired  SubscriptionStatus = "expired"
	StatusPastDue  SubscriptionStatus = "past_due"
)

// SubscriptionRecord mirrors a row of the subscriptions table.
type SubscriptionRecord struct {
	ID                       string             `json:"id,omitempty"`
	UserID                   string             `json:"user_id"`
	Status                   SubscriptionStatus `json:"status"`
	SubscriptionType         string             `json:"subscription_type"`
	Platform                 string             `json:"platform"`
	IAPProductID             string             `json:"iap_product_id"`
	IAPOriginalTransactionID string             `json:"iap_original_transaction_id"`
	RevenueCatCustomerID     string             `json:"revenuecat_customer_id"`
	CurrentPeriodStart       *time.Time         `json:"current_period_start"`
	CurrentPeriodEnd         *time.Time         `json:"current_period_end"`
	CanceledAt               *time.Time         `json:"canceled_at,omitempty"`
	UpdatedAt                time.Time          `json:"updated_at"`
}

// Billing provider event types.
const (
	EventInitialPurchase = "INITIAL_PURCHASE"
	EventRenewal         = "RENEWAL"
	EventUncancellation  = "UNCANCELLATION"
	EventProductChange   = "PRODUCT_CHANGE"
	EventCancellation    = "CANCELLATION"
	EventExpiration      = "EXPIRATION"
	EventBillingIssue    = "BILLING_ISSUE"
	EventTest            = "TEST"
)

// PeriodTypeTrial marks a trial purchase.
const PeriodTypeTrial = "TRIAL"

// BillingEvent is the event object sent by the billing provider.
type BillingEvent struct {
	ID                    string `json:"id"`
	Type                  string `json:"type"`
	AppUserID             string `json:"app_user_id"`
	OriginalAppUserID     string `json:"original_app_user_id,omitempty"`
	ProductID             string `json:"product_id"`
	Store                 string `json:"store"`
	PeriodType            string `json:"period_type"`
	Environment           string `json:"environment,omitempty"`
	PurchasedAtMs         *int64 `json:"purchased_at_ms"`
	ExpirationAtMs        *int64 `json:"expiration_at_ms"`
	EventTimestampMs      *int64 `json:"event_timestamp_ms,omitempty"`
	TransactionID         string `json:"transaction_id,omitempty"`
	OriginalTransactionID string `json:"original_transaction_id"`
}

// WebhookEventRecord is a row of the idempotency ledger.
type WebhookEventRecord struct {
	EventID          string    `json:"event_id"`
	EventType        string    `json:"event_type"`
	ProcessingTimeMs int64     `json:"processing_time_ms"`
	RecordedAt       time.Time `json:"recorded_at"`
}

// WebhookResult is the JSON body answered to the billing provider.
type WebhookResult struct {
	Received         bool   `json:"received"`
	AlreadyProcessed bool   `json:"already_processed,omitempty"`
	EventID          string `json:"event_id"`
	ProcessingTimeMs *int64 `json:"processing_time_ms,omitempty"`
	Error            string `json:"error,omitempty"`
}
