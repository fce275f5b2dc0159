package rewards

import (
	"math"
	"strconv"

	"github.com/boddenberg/family-rewards-bfa-go/internal/domain"

	"github.com/shopspring/decimal"
)

// AssessmentAverageScore averages the rated categories of one assessment.
// A score <= 0 means "not rated" and is skipped; with nothing rated the
// average is 0.
func AssessmentAverageScore(scores domain.BehaviorScores) float64 {
	var sum float64
	var n int
	for _, v := range scores.Values() {
		if !isRated(v) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// OverallAverageScore is the mean of the per-assessment averages, over every
// assessment supplied.
func OverallAverageScore(assessments []domain.BehaviorAssessment) float64 {
	if len(assessments) == 0 {
		return 0
	}
	var sum float64
	for _, a := range assessments {
		sum += AssessmentAverageScore(a.BehaviorScores)
	}
	return sum / float64(len(assessments))
}

// PooledAverageScore sums every raw category value across all assessments
// and divides by assessments x 10. Zeros are not filtered here, which makes
// it coarser than OverallAverageScore; the allocation engine depends on this
// rule. Non-finite values count as 0.
func PooledAverageScore(assessments []domain.BehaviorAssessment) float64 {
	if len(assessments) == 0 {
		return 0
	}
	var sum float64
	for _, a := range assessments {
		for _, v := range a.Values() {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			sum += v
		}
	}
	return sum / float64(len(assessments)*domain.BehaviorCategoryCount)
}

// BehaviorBonus maps an average score onto its tier and returns
// baseAmount x tier percentage. Scores below MinimumBonusScore earn nothing.
func BehaviorBonus(averageScore float64, baseAmount decimal.Decimal, diag *Diagnostics) decimal.Decimal {
	if math.IsNaN(averageScore) || math.IsInf(averageScore, 0) || averageScore <= 0 {
		diag.add(domain.NoticeInvalidScore, "averageScore", formatScore(averageScore),
			"average behavior score is not a positive number, bonus is 0")
		return decimal.Zero
	}
	if !baseAmount.IsPositive() {
		diag.add(domain.NoticeInvalidBaseAmount, "baseAmount", baseAmount.String(),
			"base amount not positive, bonus is 0")
		return decimal.Zero
	}
	if averageScore < MinimumBonusScore {
		diag.add(domain.NoticeBelowBonusMinimum, "averageScore", formatScore(averageScore),
			"average score %.2f is below the %.1f minimum", averageScore, MinimumBonusScore)
		return decimal.Zero
	}

	for _, tier := range behaviorTiers {
		if averageScore >= tier.MinScore {
			return baseAmount.Mul(tier.Percent)
		}
	}
	return decimal.Zero
}

func isRated(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
