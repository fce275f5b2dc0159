package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Grades
// ============================================================

// LetterGrade is the canonical grade representation used for rewards.
type LetterGrade string

const (
	GradeA LetterGrade = "A"
	GradeB LetterGrade = "B"
	GradeC LetterGrade = "C"
	GradeD LetterGrade = "D"
	GradeF LetterGrade = "F"
)

// LetterGrades lists the grades from worst to best.
var LetterGrades = []LetterGrade{GradeF, GradeD, GradeC, GradeB, GradeA}

// IsValid reports whether g is exactly one of A, B, C, D or F.
func (g LetterGrade) IsValid() bool {
	switch g {
	case GradeA, GradeB, GradeC, GradeD, GradeF:
		return true
	}
	return false
}

// GradeEntry is one submitted or approved grade. Grade holds the raw value as
// entered (a letter or a numeric percentage such as "87").
type GradeEntry struct {
	Grade      string              `json:"grade"`
	BaseAmount decimal.NullDecimal `json:"baseAmount"`
	ClassName  string              `json:"className,omitempty"`
}

// DisplayGrade is a grade entry after normalization. Grade and RewardAmount
// are always derived from the same letter grade.
type DisplayGrade struct {
	Grade         LetterGrade     `json:"grade"`
	OriginalGrade string          `json:"originalGrade"`
	BaseAmount    decimal.Decimal `json:"baseAmount"`
	RewardAmount  decimal.Decimal `json:"rewardAmount"`
	ClassName     string          `json:"className,omitempty"`
}

// ============================================================
// Behavior
// ============================================================

// BehaviorScores holds the ten category ratings of one assessment.
// A value of 0 means "not rated".
type BehaviorScores struct {
	Diet             float64 `json:"diet"`
	Exercise         float64 `json:"exercise"`
	Work             float64 `json:"work"`
	Hygiene          float64 `json:"hygiene"`
	Respect          float64 `json:"respect"`
	Responsibilities float64 `json:"responsibilities"`
	Attitude         float64 `json:"attitude"`
	Cooperation      float64 `json:"cooperation"`
	Courtesy         float64 `json:"courtesy"`
	Service          float64 `json:"service"`
}

// BehaviorCategoryCount is the number of rated categories per assessment.
const BehaviorCategoryCount = 10

// Values returns the category scores in a fixed order.
func (s BehaviorScores) Values() [BehaviorCategoryCount]float64 {
	return [BehaviorCategoryCount]float64{
		s.Diet, s.Exercise, s.Work, s.Hygiene, s.Respect,
		s.Responsibilities, s.Attitude, s.Cooperation, s.Courtesy, s.Service,
	}
}

// BehaviorAssessment is one weekly behavior rating of a student.
type BehaviorAssessment struct {
	ID        string    `json:"id,omitempty"`
	StudentID string    `json:"student_id,omitempty"`
	WeekStart time.Time `json:"week_start,omitempty"`
	BehaviorScores
}

// BehaviorBonus is a bonus that was already computed elsewhere.
type BehaviorBonus struct {
	BonusAmount decimal.Decimal `json:"bonusAmount"`
	Reason      string          `json:"reason,omitempty"`
}

// ============================================================
// Allocation
// ============================================================

// TaxQualified groups the tax-advantaged buckets.
type TaxQualified struct {
	Taxes      decimal.Decimal `json:"taxes"`
	Retirement decimal.Decimal `json:"retirement"`
	Total      decimal.Decimal `json:"total"`
}

// IncomeSources attributes the total to where it came from.
type IncomeSources struct {
	Grades   decimal.Decimal `json:"grades"`
	Behavior decimal.Decimal `json:"behavior"`
}

// AllocationBreakdown splits earned income into taxes, retirement, savings
// and discretionary spending. Total == Sources.Grades + Sources.Behavior.
type AllocationBreakdown struct {
	TaxQualified  TaxQualified    `json:"taxQualified"`
	Savings       decimal.Decimal `json:"savings"`
	Discretionary decimal.Decimal `json:"discretionary"`
	Total         decimal.Decimal `json:"total"`
	Sources       IncomeSources   `json:"sources"`
}

// AllocationInput is everything the allocation engine may combine.
// Assessments are only used together with a positive BaseAmount.
type AllocationInput struct {
	Grades      []GradeEntry
	Bonuses     []BehaviorBonus
	Assessments []BehaviorAssessment
	BaseAmount  decimal.NullDecimal
}

// ============================================================
// Earnings summary
// ============================================================

// Student is the subset of the students table the rewards layer reads.
type Student struct {
	ID               string              `json:"id"`
	ParentID         string              `json:"parent_id"`
	Name             string              `json:"name"`
	BaseRewardAmount decimal.NullDecimal `json:"base_reward_amount"`
}

// EarningsSummary is returned by GET /v1/students/{studentId}/earnings.
//
// BehaviorBonus and Allocation.Sources.Behavior are scored differently and
// may disagree in the same response.
type EarningsSummary struct {
	StudentID   string         `json:"studentId"`
	WindowWeeks int            `json:"windowWeeks"`
	Grades      []DisplayGrade `json:"grades"`
	GPA         float64        `json:"gpa"`
	// AssessmentAverages holds one average per assessment over its rated
	// (non-zero) categories.
	AssessmentAverages  []float64 `json:"assessmentAverages"`
	OverallAverageScore float64   `json:"overallAverageScore"`
	// BehaviorBonus applies the tier table to OverallAverageScore, the mean of
	// the per-assessment averages that ignore unrated categories.
	BehaviorBonus decimal.Decimal `json:"behaviorBonus"`
	// Allocation scores behavior with the pooled average: every category of
	// every assessment summed and divided by count x 10, unrated zeros
	// included. Its Sources.Behavior is therefore never above BehaviorBonus
	// for the same assessments.
	Allocation  AllocationBreakdown `json:"allocation"`
	Notices     []Notice            `json:"notices"`
	GeneratedAt time.Time           `json:"generatedAt"`
}
