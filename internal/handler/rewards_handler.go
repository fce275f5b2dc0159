package handler

import (
	"net/http"

	"github.com/boddenberg/family-rewards-bfa-go/internal/domain"
	"github.com/boddenberg/family-rewards-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ============================================================
// Request DTOs
// ============================================================

type gradeEntryRequest struct {
	Grade      gradeValue  `json:"grade"`
	BaseAmount amountValue `json:"baseAmount"`
	ClassName  string      `json:"className"`
}

func toGradeEntries(in []gradeEntryRequest) []domain.GradeEntry {
	out := make([]domain.GradeEntry, 0, len(in))
	for _, g := range in {
		out = append(out, domain.GradeEntry{Grade: string(g.Grade), BaseAmount: g.BaseAmount.Amount, ClassName: g.ClassName})
	}
	return out
}

type allocationRequest struct {
	Grades              []gradeEntryRequest `json:"grades"`
	Bonuses             []bonusRequest      `json:"bonuses"`
	BehaviorAssessments []assessmentRequest `json:"behaviorAssessments"`
	BaseAmount          amountValue         `json:"baseAmount"`
}

type allocationResponse struct {
	Allocation domain.AllocationBreakdown `json:"allocation"`
	Notices    []domain.Notice            `json:"notices"`
}

type legacyAllocationRequest struct {
	TotalAmount amountValue `json:"totalAmount"`
}

type normalizeRequest struct {
	Grades []gradeEntryRequest `json:"grades"`
}

type normalizeResponse struct {
	Grades  []domain.DisplayGrade `json:"grades"`
	GPA     float64               `json:"gpa"`
	Notices []domain.Notice       `json:"notices"`
}

type behaviorBonusRequest struct {
	AverageScore scoreValue          `json:"averageScore"`
	Assessments  []assessmentRequest `json:"assessments"`
	BaseAmount   amountValue         `json:"baseAmount"`
}

type behaviorBonusResponse struct {
	AverageScore float64         `json:"averageScore"`
	BonusAmount  decimal.Decimal `json:"bonusAmount"`
	Notices      []domain.Notice `json:"notices"`
}

// ============================================================
// Handlers
// ============================================================

// POST /v1/rewards/allocation
func allocationHandler(svc *service.RewardsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req allocationRequest
		if err := decodeJSON(w, r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		bonuses, inputNotices := toBonuses(req.Bonuses)
		assessments, scoreNotices := toAssessments("behaviorAssessments", req.BehaviorAssessments)
		inputNotices = append(inputNotices, scoreNotices...)
		if req.BaseAmount.invalid() {
			inputNotices = append(inputNotices, domain.Notice{
				Code:    domain.NoticeInvalidBaseAmount,
				Message: "base amount is not a number, behavior assessments earn no bonus",
				Field:   "baseAmount",
				Value:   req.BaseAmount.Raw,
			})
		}

		out, notices := svc.Allocate(domain.AllocationInput{
			Grades:      toGradeEntries(req.Grades),
			Bonuses:     bonuses,
			Assessments: assessments,
			BaseAmount:  req.BaseAmount.Amount,
		}, inputNotices...)
		writeJSON(w, http.StatusOK, allocationResponse{Allocation: out, Notices: notices})
	}
}

// POST /v1/rewards/allocation/legacy
func legacyAllocationHandler(svc *service.RewardsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req legacyAllocationRequest
		if err := decodeJSON(w, r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if req.TotalAmount.invalid() {
			writeJSON(w, http.StatusOK, allocationResponse{
				Allocation: svc.AllocateTotal(decimal.Zero),
				Notices: svc.ReportNotices("legacy_allocation", domain.Notice{
					Code:    domain.NoticeInvalidBaseAmount,
					Message: "total amount is not a number, allocated 0",
					Field:   "totalAmount",
					Value:   req.TotalAmount.Raw,
				}),
			})
			return
		}
		if !req.TotalAmount.Amount.Valid {
			handleServiceError(w, &domain.ErrValidation{Field: "totalAmount", Message: "required"}, logger)
			return
		}

		writeJSON(w, http.StatusOK, allocationResponse{
			Allocation: svc.AllocateTotal(req.TotalAmount.Amount.Decimal),
			Notices:    []domain.Notice{},
		})
	}
}

// POST /v1/rewards/grades/normalize
func normalizeGradesHandler(svc *service.RewardsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req normalizeRequest
		if err := decodeJSON(w, r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		grades, gpa, notices := svc.NormalizeGrades(toGradeEntries(req.Grades))
		writeJSON(w, http.StatusOK, normalizeResponse{Grades: grades, GPA: gpa, Notices: notices})
	}
}

// POST /v1/rewards/behavior/bonus
func behaviorBonusHandler(svc *service.RewardsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req behaviorBonusRequest
		if err := decodeJSON(w, r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		average := req.AverageScore.Score
		if req.AverageScore.Raw != "" {
			zero := 0.0
			average = &zero
		}
		assessments, inputNotices := toAssessments("assessments", req.Assessments)

		avg, bonus, notices := svc.BehaviorBonus(average, assessments, req.BaseAmount.Amount.Decimal, inputNotices...)
		writeJSON(w, http.StatusOK, behaviorBonusResponse{AverageScore: avg, BonusAmount: bonus, Notices: notices})
	}
}

// GET /v1/students/{studentId}/earnings
func earningsHandler(svc *service.RewardsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		studentID := chi.URLParam(r, "studentId")
		caller := CallerFromContext(r.Context())

		summary, err := svc.Summary(r.Context(), caller, studentID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, summary)
	}
}
