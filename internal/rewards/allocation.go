package rewards

import (
	"strconv"

	"github.com/boddenberg/family-rewards-bfa-go/internal/domain"

	"github.com/shopspring/decimal"
)

// TotalAllocation combines grade income and behavior income and splits the
// total into the four allocation buckets.
//
// Grade entries are normalized to letter grades first. Precomputed bonuses
// are summed; negative ones are dropped with a notice. When assessments
// and a positive base amount are both present, an extra bonus is computed
// from the pooled (unfiltered) average score.
//
// The result is always fully populated. There is no error path: every input
// is sanitized before it is used.
func TotalAllocation(in domain.AllocationInput, diag *Diagnostics) domain.AllocationBreakdown {
	gradeIncome := decimal.Zero
	for _, entry := range in.Grades {
		letter := letterForReward(entry.Grade, diag)
		gradeIncome = gradeIncome.Add(GradeReward(domain.GradeEntry{
			Grade:      string(letter),
			BaseAmount: entry.BaseAmount,
			ClassName:  entry.ClassName,
		}, diag))
	}

	behaviorIncome := decimal.Zero
	for i, b := range in.Bonuses {
		if b.BonusAmount.IsNegative() {
			diag.add(domain.NoticeInvalidBonus, "bonuses["+strconv.Itoa(i)+"].bonusAmount", b.BonusAmount.String(),
				"negative bonus ignored")
			continue
		}
		behaviorIncome = behaviorIncome.Add(b.BonusAmount)
	}

	if len(in.Assessments) > 0 {
		if base, ok := positiveAmount(in.BaseAmount); ok {
			avg := PooledAverageScore(in.Assessments)
			behaviorIncome = behaviorIncome.Add(BehaviorBonus(avg, base, diag))
		}
	}

	return split(gradeIncome, behaviorIncome)
}

// Allocation splits an already-final total. The whole amount is attributed
// to grades.
func Allocation(totalAmount decimal.Decimal) domain.AllocationBreakdown {
	b := buckets(totalAmount)
	b.Sources = domain.IncomeSources{Grades: totalAmount, Behavior: decimal.Zero}
	return b
}

func split(grades, behavior decimal.Decimal) domain.AllocationBreakdown {
	total := grades.Add(behavior)
	sources := domain.IncomeSources{Grades: grades, Behavior: behavior}

	if !total.IsPositive() {
		b := zeroBreakdown()
		b.Sources = sources
		b.Total = total
		return b
	}

	b := buckets(total)
	b.Sources = sources
	return b
}

func buckets(total decimal.Decimal) domain.AllocationBreakdown {
	taxes := total.Mul(TaxRate)
	retirement := total.Mul(RetirementRate)
	return domain.AllocationBreakdown{
		TaxQualified: domain.TaxQualified{
			Taxes:      taxes,
			Retirement: retirement,
			Total:      taxes.Add(retirement),
		},
		Savings:       total.Mul(SavingsRate),
		Discretionary: total.Mul(DiscretionaryRate),
		Total:         total,
	}
}

func zeroBreakdown() domain.AllocationBreakdown {
	return domain.AllocationBreakdown{
		TaxQualified: domain.TaxQualified{Taxes: decimal.Zero, Retirement: decimal.Zero, Total: decimal.Zero},
		Savings:       decimal.Zero,
		Discretionary: decimal.Zero,
		Total:         decimal.Zero,
		Sources:       domain.IncomeSources{Grades: decimal.Zero, Behavior: decimal.Zero},
	}
}

func letterForReward(raw string, diag *Diagnostics) domain.LetterGrade {
	letter := ConvertToLetterGrade(raw, diag)
	if IsNumericalGrade(raw) {
		diag.add(domain.NoticeGradeConverted, "grade", raw,
			"numeric grade %s converted to %s", raw, letter)
	}
	return letter
}
