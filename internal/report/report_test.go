package report

import (
	"bytes"
	"strings"
	"testing"

	"financas/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(t *testing.T, s string) core.Date {
	t.Helper()
	d, err := core.ParseDate(s)
	require.NoError(t, err)
	return d
}

func period(t *testing.T, start, end string) core.Period {
	t.Helper()
	p, err := core.ParsePeriod(start, end)
	require.NoError(t, err)
	return p
}

func paid(t *testing.T, n int, amount, on string) core.Installment {
	t.Helper()
	d := date(t, on)
	m := core.MustMoney(amount)
	return core.Installment{Number: n, Amount: m, DueDate: d, Paid: true, PaymentDate: &d, PaidAmount: &m}
}

func open(t *testing.T, n int, amount, due string) core.Installment {
	t.Helper()
	return core.Installment{Number: n, Amount: core.MustMoney(amount), DueDate: date(t, due)}
}

type txOpt func(*core.Transaction)

func income(tx *core.Transaction) { tx.IsIncome = true }

func category(id string) txOpt { return func(tx *core.Transaction) { tx.CategoryID = id } }

func onCard(id string) txOpt {
	return func(tx *core.Transaction) { tx.Kind = core.KindCard; tx.CardID = id }
}

func account(id string) txOpt { return func(tx *core.Transaction) { tx.AccountID = id } }

func tx(id string, insts []core.Installment, opts ...txOpt) core.Transaction {
	var total core.Money
	for _, i := range insts {
		total = total.Add(i.Amount)
	}
	t := core.Transaction{
		ID:               id,
		Description:      id,
		Amount:           total,
		InstallmentCount: len(insts),
		Kind:             core.KindCash,
		AccountID:        "checking",
		Installments:     insts,
	}
	if len(insts) > 0 {
		t.Date = insts[0].DueDate
	}
	for _, o := range opts {
		o(&t)
	}
	return t
}

func ids(txs []core.Transaction) []string {
	out := make([]string, 0, len(txs))
	for _, t := range txs {
		out = append(out, t.ID)
	}
	return out
}

func TestByCategorySingleExpense(t *testing.T) {
	txs := []core.Transaction{
		tx("lunch", []core.Installment{paid(t, 1, "100", "2024-03-15")}, category("food")),
	}
	got := ByCategory(txs, period(t, "2024-03-01", "2024-03-31"))

	assert.Equal(t, "100.00", got.Total.String())
	require.Len(t, got.Entries, 1)
	assert.Equal(t, "food", got.Entries[0].CategoryID)
	assert.Equal(t, "100.00", got.Entries[0].Value.String())
	assert.Equal(t, 100.0, got.Entries[0].Percentage)
}

func TestByCategoryOrderingAndFallback(t *testing.T) {
	march := period(t, "2024-03-01", "2024-03-31")
	noPaidAmount := paid(t, 1, "30", "2024-03-02")
	noPaidAmount.PaidAmount = nil
	txs := []core.Transaction{
		tx("a", []core.Installment{paid(t, 1, "25", "2024-03-10")}, category("fun")),
		tx("b", []core.Installment{noPaidAmount}),
		tx("c", []core.Installment{paid(t, 1, "25", "2024-03-11")}, category("car")),
		tx("d", []core.Installment{paid(t, 1, "20", "2024-03-12"), open(t, 2, "20", "2024-04-12")}, category("car")),
		tx("salary", []core.Installment{paid(t, 1, "5000", "2024-03-05")}, income, category("work")),
		tx("feb", []core.Installment{paid(t, 1, "999", "2024-02-28")}, category("fun")),
	}
	got := ByCategory(txs, march)

	assert.Equal(t, "100.00", got.Total.String())
	var order []string
	for _, e := range got.Entries {
		order = append(order, e.CategoryID+"="+e.Value.String())
	}
	assert.Equal(t, []string{"car=45.00", "none=30.00", "fun=25.00"}, order)
	assert.InDelta(t, 45.0, got.Entries[0].Percentage, 1e-9)
}

func TestByCategoryEmpty(t *testing.T) {
	got := ByCategory(nil, period(t, "2024-03-01", "2024-03-31"))
	assert.True(t, got.Total.IsZero())
	assert.NotNil(t, got.Entries)
	assert.Empty(t, got.Entries)
}

func TestCategoryTotalsMatchExpenseMetric(t *testing.T) {
	p := period(t, "2024-01-01", "2024-06-30")
	txs := sampleTransactions(t)
	filtered := FilterInRange(txs, p, FilterSet{})

	cats := ByCategory(filtered, p)
	var sum core.Money
	for _, e := range cats.Entries {
		sum = sum.Add(e.Value)
	}
	metrics := PeriodMetrics(filtered, p)
	assert.Equal(t, metrics.Expense.String(), cats.Total.String())
	assert.Equal(t, metrics.Expense.String(), sum.String())
}

func TestPeriodMetrics(t *testing.T) {
	p := period(t, "2024-03-01", "2024-03-31")
	partial := paid(t, 2, "50", "2024-03-20")
	less := core.MustMoney("45")
	partial.PaidAmount = &less
	txs := []core.Transaction{
		tx("salary", []core.Installment{paid(t, 1, "3000", "2024-03-05")}, income),
		tx("tv", []core.Installment{paid(t, 1, "50", "2024-02-20"), partial, open(t, 3, "50", "2024-04-20")}, onCard("visa")),
	}
	m := PeriodMetrics(txs, p)
	assert.Equal(t, "3000.00", m.Income.String())
	assert.Equal(t, "45.00", m.Expense.String())
	assert.Equal(t, "2955.00", m.Balance.String())

	empty := PeriodMetrics(nil, p)
	assert.True(t, empty.Income.IsZero())
	assert.True(t, empty.Balance.IsZero())
}

func TestMonthlyEvolution(t *testing.T) {
	txs := []core.Transaction{
		tx("tv", []core.Installment{paid(t, 1, "100", "2024-02-10"), paid(t, 2, "100", "2024-01-10"), open(t, 3, "100", "2024-04-10")}, onCard("visa")),
		tx("salary", []core.Installment{paid(t, 1, "3000", "2024-02-05")}, income),
		tx("rent", []core.Installment{paid(t, 1, "1200", "2023-12-01")}),
	}
	got := MonthlyEvolution(txs)
	require.Len(t, got, 3)
	assert.Equal(t, "2023-12", got[0].Month)
	assert.Equal(t, "1200.00", got[0].Expense.String())
	assert.Equal(t, "2024-01", got[1].Month)
	assert.Equal(t, "100.00", got[1].Expense.String())
	assert.Equal(t, "2024-02", got[2].Month)
	assert.Equal(t, "3000.00", got[2].Income.String())
	assert.Equal(t, "100.00", got[2].Expense.String())

	assert.Empty(t, MonthlyEvolution(nil))
}

func TestFilterInRange(t *testing.T) {
	p := period(t, "2024-03-01", "2024-03-31")
	txs := []core.Transaction{
		tx("cash-food", []core.Installment{paid(t, 1, "10", "2024-03-01")}, category("food")),
		tx("card-food", []core.Installment{paid(t, 1, "20", "2024-03-31")}, category("food"), onCard("visa"), account("savings")),
		tx("card-income", []core.Installment{paid(t, 1, "30", "2024-03-15")}, income, onCard("visa"), account("savings")),
		tx("uncategorized", []core.Installment{paid(t, 1, "40", "2024-03-15")}),
		tx("open", []core.Installment{open(t, 1, "50", "2024-03-15")}, category("food")),
		tx("april", []core.Installment{paid(t, 1, "60", "2024-04-01")}, category("food")),
	}

	cases := []struct {
		name string
		f    FilterSet
		want []string
	}{
		{"unfiltered", FilterSet{}, []string{"cash-food", "card-food", "card-income", "uncategorized"}},
		{"card filter ignores account", FilterSet{Cards: Only("visa"), Accounts: Only("nobody")}, []string{"card-food"}},
		{"account filter ignores card", FilterSet{Accounts: Only("savings"), Cards: Only("nobody")}, []string{"card-income"}},
		{"category drops uncategorized", FilterSet{Categories: Only("food")}, []string{"cash-food", "card-food"}},
		{"income only", FilterSet{Type: TypeIncome}, []string{"card-income"}},
		{"expense only", FilterSet{Type: TypeExpense}, []string{"cash-food", "card-food", "uncategorized"}},
		{"empty selection", FilterSet{Accounts: Only(), Cards: Only()}, []string{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ids(FilterInRange(txs, p, tc.f)))
		})
	}
}

func TestNewSelection(t *testing.T) {
	universe := []string{"a", "b"}
	assert.True(t, NewSelection([]string{"b", "a"}, universe).IsAll())
	s := NewSelection([]string{"a"}, universe)
	assert.False(t, s.IsAll())
	assert.True(t, s.Matches("a"))
	assert.False(t, s.Matches("b"))
	assert.False(t, s.Matches(""))
	assert.Equal(t, []string{"a"}, s.IDs())
	assert.True(t, IDSet{}.Matches(""))

	assert.False(t, NewSelection(nil, universe).Matches("a"), "nothing selected from a known universe")
	assert.True(t, NewSelection(nil, nil).IsAll(), "nothing selected from nothing is the whole universe")
	assert.True(t, NewSelection([]string{}, []string{}).Matches("x"))
	assert.Equal(t, []string{"x"}, NewSelection([]string{"x"}, nil).IDs())
}

func TestComparisonPeriod(t *testing.T) {
	cases := []struct {
		name       string
		start, end string
		mode       CompareMode
		want       string
	}{
		{"previous period leap february", "2024-03-01", "2024-03-31", ComparePreviousPeriod, "2024-01-30..2024-02-29"},
		{"previous period single day", "2024-03-01", "2024-03-01", ComparePreviousPeriod, "2024-02-29..2024-02-29"},
		{"previous period week", "2024-01-03", "2024-01-09", ComparePreviousPeriod, "2023-12-27..2024-01-02"},
		{"previous year", "2024-03-01", "2024-03-31", ComparePreviousYear, "2023-03-01..2023-03-31"},
		{"previous year from leap day", "2024-02-01", "2024-02-29", ComparePreviousYear, "2023-02-01..2023-02-28"},
		{"previous period across millennia", "5001-01-01", "9999-12-31", ComparePreviousPeriod, "0002-01-01..5000-12-31"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			primary := period(t, tc.start, tc.end)
			got, err := ComparisonPeriod(primary, tc.mode)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got.String())
			if tc.mode == ComparePreviousPeriod {
				assert.Equal(t, primary.Days(), got.Days())
				assert.Equal(t, primary.Start, got.End.AddDays(1))
			}
		})
	}

	assert.Equal(t, 1825847, period(t, "5001-01-01", "9999-12-31").Days())

	_, err := ComparisonPeriod(period(t, "2024-03-01", "2024-03-31"), CompareNone)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestPercentChange(t *testing.T) {
	m := core.MustMoney
	var zero core.Money
	assert.Equal(t, 0.0, PercentChange(zero, zero))
	assert.Equal(t, 100.0, PercentChange(m("50"), zero))
	assert.Equal(t, -20.0, PercentChange(m("80"), m("100")))
	assert.Equal(t, 50.0, PercentChange(m("150"), m("100")))
	// negative compare: sign follows primary minus compare
	assert.Equal(t, 200.0, PercentChange(m("100"), core.MoneyFromCents(-10000)))
	assert.Equal(t, 0.0, PercentChange(core.MoneyFromCents(-500), zero))
}

func TestBuild(t *testing.T) {
	txs := sampleTransactions(t)
	primary := period(t, "2024-03-01", "2024-03-31")
	prev, err := ComparisonPeriod(primary, ComparePreviousYear)
	require.NoError(t, err)

	t.Run("evolution", func(t *testing.T) {
		res, err := Build(txs, Request{Primary: primary, Kind: KindEvolution})
		require.NoError(t, err)
		assert.Nil(t, res.Categories)
		assert.Nil(t, res.Comparison)
		require.NotEmpty(t, res.Evolution)
		assert.Equal(t, "2500.00", res.Metrics.Income.String())
	})

	t.Run("category", func(t *testing.T) {
		res, err := Build(txs, Request{Primary: primary, Kind: KindCategory, Filters: FilterSet{Type: TypeExpense}})
		require.NoError(t, err)
		require.NotNil(t, res.Categories)
		assert.Equal(t, res.Metrics.Expense.String(), res.Categories.Total.String())
		assert.True(t, res.Metrics.Income.IsZero())
	})

	t.Run("comparison", func(t *testing.T) {
		res, err := Build(txs, Request{Primary: primary, Compare: &prev, Kind: KindComparison})
		require.NoError(t, err)
		require.NotNil(t, res.Comparison)
		require.NotNil(t, res.Comparison.Categories)
		assert.Equal(t, "2000.00", res.Comparison.Metrics.Income.String())
		assert.Equal(t, 25.0, res.Comparison.IncomeChange)
	})

	t.Run("comparison without compare period", func(t *testing.T) {
		_, err := Build(txs, Request{Primary: primary, Kind: KindComparison})
		assert.ErrorIs(t, err, ErrMissingCompare)
	})

	t.Run("unknown kind", func(t *testing.T) {
		_, err := Build(txs, Request{Primary: primary})
		assert.ErrorIs(t, err, ErrInvalidRequest)
	})

	t.Run("idempotent", func(t *testing.T) {
		req := Request{Primary: primary, Compare: &prev, Kind: KindComparison}
		a, err := Build(txs, req)
		require.NoError(t, err)
		b, err := Build(txs, req)
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})
}

func TestParseKind(t *testing.T) {
	for _, s := range []string{"evolution", "category", "comparison"} {
		k, err := ParseKind(s)
		require.NoError(t, err)
		assert.Equal(t, s, k.String())
	}
	_, err := ParseKind("pie")
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestWriteCSV(t *testing.T) {
	txs := []core.Transaction{
		tx("lunch", []core.Installment{paid(t, 1, "80", "2024-03-15")}, category("food")),
		tx("bus", []core.Installment{paid(t, 1, "20", "2024-03-16")}, category("transport")),
	}
	res, err := Build(txs, Request{Primary: period(t, "2024-03-01", "2024-03-31"), Kind: KindCategory})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, res))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "category,value,percentage", lines[0])
	assert.Equal(t, "food,80.00,80", lines[1])
	assert.Equal(t, "transport,20.00,20", lines[2])
}

// sampleTransactions spans two years of mixed data.
func sampleTransactions(t *testing.T) []core.Transaction {
	return []core.Transaction{
		tx("salary-2023-03", []core.Installment{paid(t, 1, "2000", "2023-03-05")}, income, category("work")),
		tx("rent-2023-03", []core.Installment{paid(t, 1, "900", "2023-03-01")}, category("housing")),
		tx("salary-2024-03", []core.Installment{paid(t, 1, "2500", "2024-03-05")}, income, category("work")),
		tx("rent-2024-03", []core.Installment{paid(t, 1, "1000", "2024-03-01")}, category("housing")),
		tx("phone", []core.Installment{
			paid(t, 1, "300", "2024-01-20"),
			paid(t, 2, "300", "2024-02-20"),
			paid(t, 3, "300", "2024-03-20"),
			open(t, 4, "300", "2024-04-20"),
		}, onCard("visa"), category("tech")),
		tx("gift", []core.Installment{paid(t, 1, "75.50", "2024-03-09")}),
	}
}
