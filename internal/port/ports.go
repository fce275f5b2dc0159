// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"
	"time"

	"github.com/boddenberg/family-rewards-bfa-go/internal/domain"
)

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}

// SubscriptionStore persists the one subscription row per user.
// Implemented by the Supabase adapter and the bolt adapter.
type SubscriptionStore interface {
	// GetSubscriptionByUser returns nil, nil when the user has no row.
	GetSubscriptionByUser(ctx context.Context, userID string) (*domain.SubscriptionRecord, error)
	InsertSubscription(ctx context.Context, rec *domain.SubscriptionRecord) error
	UpdateSubscription(ctx context.Context, userID string, fields map[string]any) error
}

// EventLedger is the idempotency ledger of processed webhook events.
type EventLedger interface {
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	// RecordEvent returns *domain.ErrDuplicate when the id is already recorded.
	RecordEvent(ctx context.Context, rec *domain.WebhookEventRecord) error
}

// RewardsStore reads the inputs of an earnings summary.
type RewardsStore interface {
	GetStudent(ctx context.Context, studentID string) (*domain.Student, error)
	ListApprovedGrades(ctx context.Context, studentID string) ([]domain.GradeEntry, error)
	ListBehaviorAssessments(ctx context.Context, studentID string, since time.Time) ([]domain.BehaviorAssessment, error)
}

// ExportStore reads every row of a table that belongs to a user.
type ExportStore interface {
	FetchUserRows(ctx context.Context, table domain.ExportTable, userID string) ([]map[string]any, error)
}

// HealthChecker is a dependency probed by /healthz.
type HealthChecker interface {
	Ping(ctx context.Context) error
}
