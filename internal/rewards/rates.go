// Package rewards converts grades and behavior ratings into reward income and
// splits that income into allocation buckets.
//
// Every function in this package is pure: no I/O, no shared mutable state,
// no panics on malformed input. Bad input degrades to a zero amount and a
// Notice recorded on the caller's Diagnostics.
package rewards

import (
	"github.com/boddenberg/family-rewards-bfa-go/internal/domain"

	"github.com/shopspring/decimal"
)

// ============================================================
// Rate tables
// ============================================================

var gradeMultipliers = map[domain.LetterGrade]decimal.Decimal{
	domain.GradeA: decimal.RequireFromString("1.0"),
	domain.GradeB: decimal.RequireFromString("0.5"),
	domain.GradeC: decimal.RequireFromString("0.20"),
	domain.GradeD: decimal.RequireFromString("0.125"),
	domain.GradeF: decimal.Zero,
}

var gradePoints = map[domain.LetterGrade]float64{
	domain.GradeA: 4,
	domain.GradeB: 3,
	domain.GradeC: 2,
	domain.GradeD: 1,
	domain.GradeF: 0,
}

// Allocation percentages. They sum to exactly 1.
var (
	TaxRate           = decimal.RequireFromString("0.15")
	RetirementRate    = decimal.RequireFromString("0.10")
	SavingsRate       = decimal.RequireFromString("0.25")
	DiscretionaryRate = decimal.RequireFromString("0.50")
)

// MinimumBonusScore is the lowest average behavior score that earns a bonus.
const MinimumBonusScore = 3.0

type bonusTier struct {
	MinScore float64
	Percent  decimal.Decimal
}

// Ordered from the highest threshold down; lower bounds are inclusive.
var behaviorTiers = []bonusTier{
	{MinScore: 4.5, Percent: decimal.RequireFromString("0.20")},
	{MinScore: 4.0, Percent: decimal.RequireFromString("0.15")},
	{MinScore: 3.5, Percent: decimal.RequireFromString("0.10")},
	{MinScore: MinimumBonusScore, Percent: decimal.RequireFromString("0.05")},
}

// DisplayFallbackBaseAmount is used when a grade shown to the user has no
// usable base amount.
var DisplayFallbackBaseAmount = decimal.NewFromInt(50)

// Multiplier returns the reward multiplier of a letter grade.
func Multiplier(g domain.LetterGrade) (decimal.Decimal, bool) {
	m, ok := gradeMultipliers[g]
	return m, ok
}

// GradePoints returns the GPA points of a letter grade.
func GradePoints(g domain.LetterGrade) (float64, bool) {
	p, ok := gradePoints[g]
	return p, ok
}
