package report

import (
	"fmt"
	"io"

	"financas/internal/core"

	"github.com/gocarina/gocsv"
)

type comparisonRow struct {
	Metric  string     `csv:"metric"`
	Primary core.Money `csv:"primary"`
	Compare core.Money `csv:"compare"`
	Change  float64    `csv:"change_pct"`
}

// WriteCSV exports the main table of res: monthly buckets for evolution,
// categories for category, and one row per metric for comparison.
func WriteCSV(w io.Writer, res Result) error {
	var rows any
	switch res.Kind {
	case KindEvolution:
		rows = res.Evolution
		if res.Evolution == nil {
			rows = []core.MonthTotals{}
		}
	case KindCategory:
		rows = []core.CategoryAmount{}
		if res.Categories != nil {
			rows = res.Categories.Entries
		}
	case KindComparison:
		if res.Comparison == nil {
			return ErrMissingCompare
		}
		c := res.Comparison
		rows = []comparisonRow{
			{"income", res.Metrics.Income, c.Metrics.Income, c.IncomeChange},
			{"expense", res.Metrics.Expense, c.Metrics.Expense, c.ExpenseChange},
			{"balance", res.Metrics.Balance, c.Metrics.Balance, c.BalanceChange},
		}
	default:
		return fmt.Errorf("%w: report kind %d", ErrInvalidRequest, uint8(res.Kind))
	}
	if err := gocsv.Marshal(rows, w); err != nil {
		return fmt.Errorf("write report csv: %w", err)
	}
	return nil
}
