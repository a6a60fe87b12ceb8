package core

import "fmt"

// Period is a date range inclusive on both ends.
type Period struct {
	Start Date `json:"start"`
	End   Date `json:"end"`
}

// NewPeriod builds and validates a period.
func NewPeriod(start, end Date) (Period, error) {
	p := Period{Start: start, End: end}
	return p, p.Validate()
}

// ParsePeriod parses two YYYY-MM-DD strings.
func ParsePeriod(start, end string) (Period, error) {
	s, err := ParseDate(start)
	if err != nil {
		return Period{}, invalid("start", err)
	}
	e, err := ParseDate(end)
	if err != nil {
		return Period{}, invalid("end", err)
	}
	return NewPeriod(s, e)
}

// MonthPeriod covers the whole month of d.
func MonthPeriod(d Date) Period {
	return Period{
		Start: Date{Year: d.Year, Month: d.Month, Day: 1},
		End:   Date{Year: d.Year, Month: d.Month, Day: DaysIn(d.Year, d.Month)},
	}
}

func (p Period) Validate() error {
	if err := p.Start.Validate(); err != nil {
		return invalid("start", err)
	}
	if err := p.End.Validate(); err != nil {
		return invalid("end", err)
	}
	if p.End.Before(p.Start) {
		return fmt.Errorf("%w: end %s before start %s", ErrInvalidPeriod, p.End, p.Start)
	}
	return nil
}

func (p Period) Contains(d Date) bool {
	return !d.Before(p.Start) && !d.After(p.End)
}

// Days returns the number of days in the period, both ends included.
func (p Period) Days() int {
	return p.Start.DaysUntil(p.End) + 1
}

func (p Period) String() string {
	return p.Start.String() + ".." + p.End.String()
}

// CategoryAmount is the expense total of one category within a period.
type CategoryAmount struct {
	CategoryID string  `json:"category_id" csv:"category"`
	Value      Money   `json:"value" csv:"value"`
	Percentage float64 `json:"percentage" csv:"percentage"`
}

// CategoryBreakdown lists categories sorted by value, largest first.
type CategoryBreakdown struct {
	Total   Money            `json:"total"`
	Entries []CategoryAmount `json:"entries"`
}

// MonthTotals is one bucket of the monthly evolution, keyed YYYY-MM.
type MonthTotals struct {
	Month   string `json:"month" csv:"month"`
	Income  Money  `json:"income" csv:"income"`
	Expense Money  `json:"expense" csv:"expense"`
}

// Metrics are the income, expense and balance of a period.
type Metrics struct {
	Income  Money `json:"income"`
	Expense Money `json:"expense"`
	Balance Money `json:"balance"`
}

// NewMetrics derives the balance from income and expense.
func NewMetrics(income, expense Money) Metrics {
	return Metrics{Income: income, Expense: expense, Balance: income.Sub(expense)}
}
