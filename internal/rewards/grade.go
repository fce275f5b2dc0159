package rewards

import (
	"github.com/boddenberg/family-rewards-bfa-go/internal/domain"

	"github.com/shopspring/decimal"
)

// GradeReward returns baseAmount x multiplier(grade). The grade must already
// be a letter; anything else earns 0. A missing or non-positive base amount
// also earns 0.
func GradeReward(entry domain.GradeEntry, diag *Diagnostics) decimal.Decimal {
	mult, ok := Multiplier(domain.LetterGrade(entry.Grade))
	if !ok {
		diag.add(domain.NoticeUnknownGrade, "grade", entry.Grade,
			"unknown grade %q, reward is 0", entry.Grade)
		return decimal.Zero
	}

	base, ok := positiveAmount(entry.BaseAmount)
	if !ok {
		value := ""
		if entry.BaseAmount.Valid {
			value = entry.BaseAmount.Decimal.String()
		}
		diag.add(domain.NoticeInvalidBaseAmount, "baseAmount", value,
			"base amount missing or not positive for grade %s%s, reward is 0", entry.Grade, classSuffix(entry.ClassName))
		return decimal.Zero
	}

	return base.Mul(mult)
}

// GPA averages grade points over entries with a recognized letter grade.
// Unrecognized entries are left out of both sums.
func GPA(entries []domain.GradeEntry) float64 {
	var total float64
	var n int
	for _, e := range entries {
		p, ok := GradePoints(domain.LetterGrade(e.Grade))
		if !ok {
			continue
		}
		total += p
		n++
	}
	if n == 0 {
		return 0
	}
	return total / float64(n)
}

func positiveAmount(v decimal.NullDecimal) (decimal.Decimal, bool) {
	if !v.Valid || !v.Decimal.IsPositive() {
		return decimal.Zero, false
	}
	return v.Decimal, true
}

func classSuffix(className string) string {
	if className == "" {
		return ""
	}
	return " (" + className + ")"
}
