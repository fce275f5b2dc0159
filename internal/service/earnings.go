package service

import (
	"context"
	"fmt"
	"time"

	"github.com/boddenberg/family-rewards-bfa-go/internal/domain"
	"github.com/boddenberg/family-rewards-bfa-go/internal/rewards"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Summary builds a student's earnings summary from approved grades and the
// behavior assessments of the configured window. Students may read their
// own summary; parents may read their children's.
func (s *RewardsService) Summary(ctx context.Context, caller *domain.Caller, studentID string) (*domain.EarningsSummary, error) {
	if s.store == nil {
		return nil, &domain.ErrUnavailable{Feature: "earnings"}
	}

	ctx, span := rewardsTracer.Start(ctx, "RewardsService.Summary")
	defer span.End()
	span.SetAttributes(attribute.String("student.id", studentID))

	start := time.Now()
	defer func() {
		s.metrics.RecordRequestDuration("earnings", time.Since(start))
	}()

	if caller.Role == domain.RoleStudent && caller.UserID != studentID {
		return nil, &domain.ErrForbidden{Action: "read another student's earnings"}
	}

	student, err := s.store.GetStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("get student: %w", err)
	}
	if caller.UserID != student.ID && caller.UserID != student.ParentID {
		s.logger.Warn("earnings: caller is not the student's parent",
			zap.String("caller_id", caller.UserID),
			zap.String("student_id", studentID),
		)
		return nil, &domain.ErrForbidden{Action: "read earnings of a student outside the family"}
	}

	since := time.Now().UTC().AddDate(0, 0, -7*s.windowWeeks)

	var (
		grades      []domain.GradeEntry
		assessments []domain.BehaviorAssessment
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if grades, err = s.store.ListApprovedGrades(gCtx, studentID); err != nil {
			s.metrics.IncrExternalError("grades")
			return fmt.Errorf("list grades: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if assessments, err = s.store.ListBehaviorAssessments(gCtx, studentID, since); err != nil {
			s.metrics.IncrExternalError("behavior_assessments")
			return fmt.Errorf("list behavior assessments: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// entries without their own base amount use the student's
	for i := range grades {
		if !grades[i].BaseAmount.Valid {
			grades[i].BaseAmount = student.BaseRewardAmount
		}
	}

	diag := rewards.NewDiagnostics()

	display := make([]domain.DisplayGrade, 0, len(grades))
	for _, e := range grades {
		display = append(display, rewards.NormalizeGradeForDisplay(e, diag))
	}

	averages := make([]float64, 0, len(assessments))
	for _, a := range assessments {
		averages = append(averages, rewards.AssessmentAverageScore(a.BehaviorScores))
	}
	overall := rewards.OverallAverageScore(assessments)

	var bonusDiag *rewards.Diagnostics
	if len(assessments) > 0 {
		bonusDiag = diag
	}
	bonus := rewards.BehaviorBonus(overall, student.BaseRewardAmount.Decimal, bonusDiag)

	allocation := rewards.TotalAllocation(domain.AllocationInput{
		Grades:      grades,
		Assessments: assessments,
		BaseAmount:  student.BaseRewardAmount,
	}, diag)
	s.metrics.IncrAllocation("earnings")

	return &domain.EarningsSummary{
		StudentID:           studentID,
		WindowWeeks:         s.windowWeeks,
		Grades:              display,
		GPA:                 gradePointAverage(grades),
		AssessmentAverages:  averages,
		OverallAverageScore: overall,
		BehaviorBonus:       bonus,
		Allocation:          allocation,
		Notices:             s.emit("earnings", diag),
		GeneratedAt:         time.Now().UTC(),
	}, nil
}
