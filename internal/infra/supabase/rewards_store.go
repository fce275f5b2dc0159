package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/boddenberg/family-rewards-bfa-go/internal/domain"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ============================================================
// Rewards inputs (students, grade_entries, behavior_assessments)
// ============================================================

// GetStudent fetches one student row.
func (c *Client) GetStudent(ctx context.Context, studentID string) (*domain.Student, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetStudent")
	defer span.End()

	var rows []domain.Student
	err := c.execute(ctx, "supabase-students", func() error {
		path := fmt.Sprintf("students?select=id,parent_id,name,base_reward_amount&%s&limit=1", eq("id", studentID))
		body, err := c.doRequest(ctx, http.MethodGet, path)
		if err != nil || body == nil {
			return err
		}
		return json.Unmarshal(body, &rows)
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "student", ID: studentID}
	}
	return &rows[0], nil
}

type gradeRow struct {
	Grade      json.RawMessage     `json:"grade"`
	BaseAmount decimal.NullDecimal `json:"base_amount"`
	ClassName  string              `json:"class_name"`
}

// ListApprovedGrades returns the approved grade entries of a student.
func (c *Client) ListApprovedGrades(ctx context.Context, studentID string) ([]domain.GradeEntry, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListApprovedGrades")
	defer span.End()

	var rows []gradeRow
	err := c.execute(ctx, "supabase-grades", func() error {
		path := fmt.Sprintf("grade_entries?select=grade,base_amount,class_name&%s&status=eq.approved&order=created_at.asc", eq("student_id", studentID))
		body, err := c.doRequest(ctx, http.MethodGet, path)
		if err != nil || body == nil {
			return err
		}
		return json.Unmarshal(body, &rows)
	})
	if err != nil {
		return nil, err
	}

	entries := make([]domain.GradeEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, domain.GradeEntry{
			Grade:      rawGrade(r.Grade),
			BaseAmount: r.BaseAmount,
			ClassName:  r.ClassName,
		})
	}
	return entries, nil
}

// rawGrade accepts the grade column as text or as a number.
func rawGrade(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

type assessmentRow struct {
	ID        string `json:"id"`
	StudentID string `json:"student_id"`
	WeekStart string `json:"week_start"`
	domain.BehaviorScores
}

// ListBehaviorAssessments returns the assessments of a student whose week
// starts on or after since, newest first.
func (c *Client) ListBehaviorAssessments(ctx context.Context, studentID string, since time.Time) ([]domain.BehaviorAssessment, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListBehaviorAssessments")
	defer span.End()

	var rows []assessmentRow
	err := c.execute(ctx, "supabase-behavior", func() error {
		path := fmt.Sprintf("behavior_assessments?%s&week_start=gte.%s&order=week_start.desc",
			eq("student_id", studentID), url.QueryEscape(since.Format(time.DateOnly)))
		body, err := c.doRequest(ctx, http.MethodGet, path)
		if err != nil || body == nil {
			return err
		}
		return json.Unmarshal(body, &rows)
	})
	if err != nil {
		return nil, err
	}

	out := make([]domain.BehaviorAssessment, 0, len(rows))
	for _, r := range rows {
		week, perr := parseWeekStart(r.WeekStart)
		if perr != nil {
			c.logger.Warn("supabase: unparseable week_start",
				zap.String("assessment_id", r.ID),
				zap.String("week_start", r.WeekStart),
			)
		}
		out = append(out, domain.BehaviorAssessment{
			ID:             r.ID,
			StudentID:      r.StudentID,
			WeekStart:      week,
			BehaviorScores: r.BehaviorScores,
		})
	}
	return out, nil
}

func parseWeekStart(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
