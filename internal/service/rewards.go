package service

import (
	"github.com/boddenberg/family-rewards-bfa-go/internal/domain"
	"github.com/boddenberg/family-rewards-bfa-go/internal/infra/observability"
	"github.com/boddenberg/family-rewards-bfa-go/internal/port"
	"github.com/boddenberg/family-rewards-bfa-go/internal/rewards"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var rewardsTracer = otel.Tracer("service/rewards")

// RewardsService exposes the reward calculations to the HTTP layer and
// routes their diagnostics to the logger and metrics.
type RewardsService struct {
	store       port.RewardsStore
	windowWeeks int
	metrics     *observability.Metrics
	logger      *zap.Logger
}

// NewRewardsService creates the service. store may be nil, in which case
// only the stateless calculations are available.
func NewRewardsService(store port.RewardsStore, windowWeeks int, metrics *observability.Metrics, logger *zap.Logger) *RewardsService {
	if windowWeeks <= 0 {
		windowWeeks = 18
	}
	return &RewardsService{store: store, windowWeeks: windowWeeks, metrics: metrics, logger: logger}
}

// Allocate runs the full allocation over grades, bonuses and assessments.
// inputNotices describe request values that were already degraded to zero;
// they are reported ahead of the calculation's own notices.
func (s *RewardsService) Allocate(in domain.AllocationInput, inputNotices ...domain.Notice) (domain.AllocationBreakdown, []domain.Notice) {
	diag := rewards.NewDiagnostics()
	diag.Append(inputNotices...)
	out := rewards.TotalAllocation(in, diag)
	s.metrics.IncrAllocation("total")
	return out, s.emit("allocation", diag)
}

// AllocateTotal splits an already-final total.
func (s *RewardsService) AllocateTotal(total decimal.Decimal) domain.AllocationBreakdown {
	s.metrics.IncrAllocation("legacy")
	return rewards.Allocation(total)
}

// NormalizeGrades converts entries to display grades and reports the GPA.
func (s *RewardsService) NormalizeGrades(entries []domain.GradeEntry) ([]domain.DisplayGrade, float64, []domain.Notice) {
	diag := rewards.NewDiagnostics()
	out := make([]domain.DisplayGrade, 0, len(entries))
	for _, e := range entries {
		out = append(out, rewards.NormalizeGradeForDisplay(e, diag))
	}
	return out, gradePointAverage(entries), s.emit("normalize", diag)
}

// gradePointAverage converts numeric grades to letters before averaging;
// anything else unrecognized stays out of the average.
func gradePointAverage(entries []domain.GradeEntry) float64 {
	letters := make([]domain.GradeEntry, 0, len(entries))
	for _, e := range entries {
		if rewards.IsNumericalGrade(e.Grade) {
			e.Grade = string(rewards.ConvertToLetterGrade(e.Grade, nil))
		}
		letters = append(letters, e)
	}
	return rewards.GPA(letters)
}

// BehaviorBonus scores assessments with the per-assessment rule and applies
// the tier table. When averageScore is given it is used as is.
func (s *RewardsService) BehaviorBonus(averageScore *float64, assessments []domain.BehaviorAssessment, base decimal.Decimal, inputNotices ...domain.Notice) (float64, decimal.Decimal, []domain.Notice) {
	diag := rewards.NewDiagnostics()
	diag.Append(inputNotices...)
	avg := rewards.OverallAverageScore(assessments)
	if averageScore != nil {
		avg = *averageScore
	}
	bonus := rewards.BehaviorBonus(avg, base, diag)
	return avg, bonus, s.emit("behavior_bonus", diag)
}

// ReportNotices logs and counts notices raised outside a calculation.
func (s *RewardsService) ReportNotices(entry string, notices ...domain.Notice) []domain.Notice {
	diag := rewards.NewDiagnostics()
	diag.Append(notices...)
	return s.emit(entry, diag)
}

// emit is the boundary adapter for calculation diagnostics.
func (s *RewardsService) emit(entry string, diag *rewards.Diagnostics) []domain.Notice {
	notices := diag.Notices()
	for _, n := range notices {
		s.logger.Warn("rewards: calculation notice",
			zap.String("entry", entry),
			zap.String("code", string(n.Code)),
			zap.String("field", n.Field),
			zap.String("value", n.Value),
			zap.String("message", n.Message),
		)
		s.metrics.IncrCalculationNotice(string(n.Code))
	}
	return notices
}
