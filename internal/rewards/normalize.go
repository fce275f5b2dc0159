package rewards

import (
	"math"
	"strconv"
	"strings"

	"github.com/boddenberg/family-rewards-bfa-go/internal/domain"

	"github.com/shopspring/decimal"
)

// ConvertToLetterGrade maps a raw grade onto A-F. Exact letters are returned
// unchanged (case-sensitive). Numbers are bucketed at 90/80/70/60. Anything
// that is neither becomes F and records an unparseable_grade notice, so a
// malformed value stays distinguishable from a real failing grade.
func ConvertToLetterGrade(value string, diag *Diagnostics) domain.LetterGrade {
	if g := domain.LetterGrade(value); g.IsValid() {
		return g
	}

	score, ok := parseScore(value)
	if !ok {
		diag.add(domain.NoticeUnparseableGrade, "grade", value,
			"grade %q is neither a letter nor a number, treated as F", value)
		return domain.GradeF
	}
	return LetterGradeFromScore(score)
}

// LetterGradeFromScore buckets a percentage score.
func LetterGradeFromScore(score float64) domain.LetterGrade {
	switch {
	case score >= 90:
		return domain.GradeA
	case score >= 80:
		return domain.GradeB
	case score >= 70:
		return domain.GradeC
	case score >= 60:
		return domain.GradeD
	default:
		return domain.GradeF
	}
}

// IsNumericalGrade reports whether value is not a letter grade and parses to
// a finite number.
func IsNumericalGrade(value string) bool {
	if domain.LetterGrade(value).IsValid() {
		return false
	}
	_, ok := parseScore(value)
	return ok
}

// NormalizeGradeForDisplay converts the grade to a letter, falls back to the
// default base amount when needed, and recomputes the reward from the
// converted grade.
func NormalizeGradeForDisplay(entry domain.GradeEntry, diag *Diagnostics) domain.DisplayGrade {
	letter := ConvertToLetterGrade(entry.Grade, diag)

	base, ok := positiveAmount(entry.BaseAmount)
	if !ok {
		diag.add(domain.NoticeBaseAmountDefault, "baseAmount", "",
			"base amount missing or not positive, using %s", DisplayFallbackBaseAmount)
		base = DisplayFallbackBaseAmount
	}

	reward := GradeReward(domain.GradeEntry{
		Grade:      string(letter),
		BaseAmount: decimal.NewNullDecimal(base),
		ClassName:  entry.ClassName,
	}, diag)

	return domain.DisplayGrade{
		Grade:         letter,
		OriginalGrade: entry.Grade,
		BaseAmount:    base,
		RewardAmount:  reward,
		ClassName:     entry.ClassName,
	}
}

func parseScore(value string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
