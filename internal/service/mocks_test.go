package service_test

import (
	"context"
	"sync"
	"time"

	"github.com/boddenberg/family-rewards-bfa-go/internal/domain"
)

// --- Mocks ---

type mockSubscriptionStore struct {
	mu        sync.Mutex
	rows      map[string]*domain.SubscriptionRecord
	getErr    error
	writeErr  error
	insertDup bool
	inserts   int
	updates   int
	lastPatch map[string]any
}

func newMockSubscriptionStore() *mockSubscriptionStore {
	return &mockSubscriptionStore{rows: map[string]*domain.SubscriptionRecord{}}
}

func (m *mockSubscriptionStore) GetSubscriptionByUser(_ context.Context, userID string) (*domain.SubscriptionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	if rec, ok := m.rows[userID]; ok {
		cp := *rec
		return &cp, nil
	}
	return nil, nil
}

func (m *mockSubscriptionStore) InsertSubscription(_ context.Context, rec *domain.SubscriptionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	if m.insertDup {
		m.insertDup = false
		m.rows[rec.UserID] = &domain.SubscriptionRecord{UserID: rec.UserID, Status: domain.StatusExpired}
		return &domain.ErrDuplicate{Key: rec.UserID}
	}
	m.inserts++
	cp := *rec
	m.rows[rec.UserID] = &cp
	return nil
}

func (m *mockSubscriptionStore) UpdateSubscription(_ context.Context, userID string, fields map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.updates++
	m.lastPatch = fields
	rec, ok := m.rows[userID]
	if !ok {
		return nil
	}
	if v, ok := fields["status"].(domain.SubscriptionStatus); ok {
		rec.Status = v
	}
	if v, ok := fields["subscription_type"].(string); ok {
		rec.SubscriptionType = v
	}
	if v, ok := fields["canceled_at"].(time.Time); ok {
		rec.CanceledAt = &v
	}
	return nil
}

func (m *mockSubscriptionStore) mutations() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inserts + m.updates
}

func (m *mockSubscriptionStore) get(userID string) *domain.SubscriptionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[userID]
}

type mockLedger struct {
	mu        sync.Mutex
	events    map[string]domain.WebhookEventRecord
	lookupErr error
	recordErr error
}

func newMockLedger() *mockLedger {
	return &mockLedger{events: map[string]domain.WebhookEventRecord{}}
}

func (m *mockLedger) IsEventProcessed(_ context.Context, eventID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lookupErr != nil {
		return false, m.lookupErr
	}
	_, ok := m.events[eventID]
	return ok, nil
}

func (m *mockLedger) RecordEvent(_ context.Context, rec *domain.WebhookEventRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recordErr != nil {
		return m.recordErr
	}
	if _, ok := m.events[rec.EventID]; ok {
		return &domain.ErrDuplicate{Key: rec.EventID}
	}
	m.events[rec.EventID] = *rec
	return nil
}

func (m *mockLedger) recorded(eventID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.events[eventID]
	return ok
}

type mockRewardsStore struct {
	student     *domain.Student
	studentErr  error
	grades      []domain.GradeEntry
	assessments []domain.BehaviorAssessment
	listErr     error
	since       time.Time
}

func (m *mockRewardsStore) GetStudent(_ context.Context, studentID string) (*domain.Student, error) {
	if m.studentErr != nil {
		return nil, m.studentErr
	}
	if m.student == nil || m.student.ID != studentID {
		return nil, &domain.ErrNotFound{Resource: "student", ID: studentID}
	}
	return m.student, nil
}

func (m *mockRewardsStore) ListApprovedGrades(_ context.Context, _ string) ([]domain.GradeEntry, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]domain.GradeEntry, len(m.grades))
	copy(out, m.grades)
	return out, nil
}

func (m *mockRewardsStore) ListBehaviorAssessments(_ context.Context, _ string, since time.Time) ([]domain.BehaviorAssessment, error) {
	m.since = since
	return m.assessments, nil
}

type mockExportStore struct {
	mu    sync.Mutex
	rows  map[string][]map[string]any
	err   map[string]error
	calls []string
}

func (m *mockExportStore) FetchUserRows(_ context.Context, table domain.ExportTable, _ string) ([]map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, table.Name)
	if err := m.err[table.Name]; err != nil {
		return nil, err
	}
	return m.rows[table.Name], nil
}
