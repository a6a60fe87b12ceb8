// Package report aggregates transactions into period reports.
//
// Amounts are counted when they are paid: every installment contributes its
// paid amount (or its scheduled amount when no paid amount was recorded) on
// its payment date. Unpaid installments never count.
package report

import (
	"cmp"
	"fmt"
	"slices"

	"financas/internal/core"

	"github.com/shopspring/decimal"
)

// NoCategory is the bucket of uncategorized expenses.
const NoCategory = "none"

// CompareMode derives a comparison period from the primary one.
type CompareMode string

const (
	CompareNone           CompareMode = "none"
	ComparePreviousPeriod CompareMode = "previous_period"
	ComparePreviousYear   CompareMode = "previous_year"
)

var hundred = decimal.NewFromInt(100)

// ParseCompareMode accepts none, previous_period and previous_year. Empty means none.
func ParseCompareMode(s string) (CompareMode, error) {
	switch m := CompareMode(s); m {
	case "":
		return CompareNone, nil
	case CompareNone, ComparePreviousPeriod, ComparePreviousYear:
		return m, nil
	}
	return "", fmt.Errorf("%w: compare mode %q", ErrInvalidRequest, s)
}

// PeriodMetrics sums income and expense paid inside p.
func PeriodMetrics(txs []core.Transaction, p core.Period) core.Metrics {
	var income, expense core.Money
	for _, tx := range txs {
		for _, inst := range tx.Installments {
			if !inst.PaidWithin(p) {
				continue
			}
			if tx.IsIncome {
				income = income.Add(inst.Settled())
			} else {
				expense = expense.Add(inst.Settled())
			}
		}
	}
	return core.NewMetrics(income, expense)
}

// ByCategory sums the expenses paid inside p per category, largest first.
// Ties are ordered by category id. A zero total yields no entries.
func ByCategory(txs []core.Transaction, p core.Period) core.CategoryBreakdown {
	sums := make(map[string]core.Money)
	var total core.Money
	for _, tx := range txs {
		if tx.IsIncome {
			continue
		}
		cat := tx.CategoryID
		if cat == "" {
			cat = NoCategory
		}
		for _, inst := range tx.Installments {
			if !inst.PaidWithin(p) {
				continue
			}
			sums[cat] = sums[cat].Add(inst.Settled())
			total = total.Add(inst.Settled())
		}
	}

	out := core.CategoryBreakdown{Total: total, Entries: []core.CategoryAmount{}}
	if total.IsZero() {
		return out
	}
	for cat, v := range sums {
		pct, _ := v.Decimal().Div(total.Decimal()).Mul(hundred).Float64()
		out.Entries = append(out.Entries, core.CategoryAmount{CategoryID: cat, Value: v, Percentage: pct})
	}
	slices.SortFunc(out.Entries, func(a, b core.CategoryAmount) int {
		if c := b.Value.Cmp(a.Value); c != 0 {
			return c
		}
		return cmp.Compare(a.CategoryID, b.CategoryID)
	})
	return out
}

// MonthlyEvolution buckets every paid installment by its payment month.
// Buckets are sorted by month ascending.
func MonthlyEvolution(txs []core.Transaction) []core.MonthTotals {
	buckets := make(map[string]*core.MonthTotals)
	for _, tx := range txs {
		for _, inst := range tx.Installments {
			if !inst.Paid || inst.PaymentDate == nil {
				continue
			}
			key := inst.PaymentDate.MonthKey()
			b, ok := buckets[key]
			if !ok {
				b = &core.MonthTotals{Month: key}
				buckets[key] = b
			}
			if tx.IsIncome {
				b.Income = b.Income.Add(inst.Settled())
			} else {
				b.Expense = b.Expense.Add(inst.Settled())
			}
		}
	}
	out := make([]core.MonthTotals, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, *b)
	}
	slices.SortFunc(out, func(a, b core.MonthTotals) int { return cmp.Compare(a.Month, b.Month) })
	return out
}

// ComparisonPeriod derives the comparison period of primary.
//
// previous_year shifts both ends back one calendar year (Feb 29 becomes Feb 28).
// previous_period ends the day before primary starts and spans the same number of days.
func ComparisonPeriod(primary core.Period, mode CompareMode) (core.Period, error) {
	switch mode {
	case ComparePreviousYear:
		return core.Period{Start: primary.Start.AddYears(-1), End: primary.End.AddYears(-1)}, nil
	case ComparePreviousPeriod:
		end := primary.Start.AddDays(-1)
		return core.Period{Start: end.AddDays(1 - primary.Days()), End: end}, nil
	}
	return core.Period{}, fmt.Errorf("%w: no comparison period for mode %q", ErrInvalidRequest, mode)
}

// PercentChange is the signed change of primary over compare, in percent.
// Positive means primary is larger. A zero compare yields 100 when primary
// is positive and 0 otherwise.
func PercentChange(primary, compare core.Money) float64 {
	if compare.IsZero() {
		if primary.IsPositive() {
			return 100
		}
		return 0
	}
	c := compare.Decimal()
	pct, _ := primary.Decimal().Sub(c).Div(c.Abs()).Mul(hundred).Float64()
	return pct
}
