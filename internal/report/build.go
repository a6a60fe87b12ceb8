package report

import (
	"cmp"
	"errors"
	"fmt"
	"strings"

	"financas/internal/core"
)

var (
	ErrInvalidRequest = errors.New("invalid report request")
	ErrMissingCompare = errors.New("comparison report requires a comparison period")
)

// Kind selects the aggregates a report carries.
type Kind uint8

const (
	KindEvolution Kind = iota + 1
	KindCategory
	KindComparison
)

var kindNames = map[Kind]string{
	KindEvolution:  "evolution",
	KindCategory:   "category",
	KindComparison: "comparison",
}

func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: report kind %q", ErrInvalidRequest, s)
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

func (k Kind) MarshalText() ([]byte, error) {
	if _, ok := kindNames[k]; !ok {
		return nil, fmt.Errorf("%w: report kind %d", ErrInvalidRequest, uint8(k))
	}
	return []byte(k.String()), nil
}

// Request describes one report. Compare is set iff a comparison is wanted.
type Request struct {
	Primary core.Period
	Compare *core.Period
	Filters FilterSet
	Kind    Kind
}

func (r Request) Validate() error {
	if _, ok := kindNames[r.Kind]; !ok {
		return fmt.Errorf("%w: report kind %d", ErrInvalidRequest, uint8(r.Kind))
	}
	if err := r.Primary.Validate(); err != nil {
		return fmt.Errorf("%w: primary: %w", ErrInvalidRequest, err)
	}
	if r.Compare != nil {
		if err := r.Compare.Validate(); err != nil {
			return fmt.Errorf("%w: compare: %w", ErrInvalidRequest, err)
		}
	}
	if r.Kind == KindComparison && r.Compare == nil {
		return ErrMissingCompare
	}
	return nil
}

// Comparison holds the comparison period aggregates and signed deltas.
type Comparison struct {
	Period        core.Period             `json:"period"`
	Metrics       core.Metrics            `json:"metrics"`
	Categories    *core.CategoryBreakdown `json:"categories,omitempty"`
	IncomeChange  float64                 `json:"income_change"`
	ExpenseChange float64                 `json:"expense_change"`
	BalanceChange float64                 `json:"balance_change"`
}

// Result is a built report. Which parts are set depends on Kind.
type Result struct {
	Kind       Kind                    `json:"kind"`
	Period     core.Period             `json:"period"`
	Metrics    core.Metrics            `json:"metrics"`
	Evolution  []core.MonthTotals      `json:"evolution,omitempty"`
	Categories *core.CategoryBreakdown `json:"categories,omitempty"`
	Comparison *Comparison             `json:"comparison,omitempty"`
}

// Build filters txs and computes the aggregates requested by req.
// txs must contain every transaction relevant to both periods.
func Build(txs []core.Transaction, req Request) (Result, error) {
	if err := req.Validate(); err != nil {
		return Result{}, err
	}
	primary := FilterInRange(txs, req.Primary, req.Filters)
	res := Result{
		Kind:    req.Kind,
		Period:  req.Primary,
		Metrics: PeriodMetrics(primary, req.Primary),
	}

	var compare []core.Transaction
	if req.Compare != nil {
		compare = FilterInRange(txs, *req.Compare, req.Filters)
		cm := PeriodMetrics(compare, *req.Compare)
		res.Comparison = &Comparison{
			Period:        *req.Compare,
			Metrics:       cm,
			IncomeChange:  PercentChange(res.Metrics.Income, cm.Income),
			ExpenseChange: PercentChange(res.Metrics.Expense, cm.Expense),
			BalanceChange: PercentChange(res.Metrics.Balance, cm.Balance),
		}
	}

	switch req.Kind {
	case KindEvolution:
		res.Evolution = MonthlyEvolution(primary)
	case KindCategory:
		cats := ByCategory(primary, req.Primary)
		res.Categories = &cats
	case KindComparison:
		cats := ByCategory(primary, req.Primary)
		res.Categories = &cats
		prev := ByCategory(compare, *req.Compare)
		res.Comparison.Categories = &prev
	default:
		return Result{}, fmt.Errorf("%w: report kind %d", ErrInvalidRequest, uint8(req.Kind))
	}
	return res, nil
}

// Key identifies the request for caching. Equal requests have equal keys.
func (r Request) Key() string {
	compare := "-"
	if r.Compare != nil {
		compare = r.Compare.String()
	}
	return strings.Join([]string{
		r.Kind.String(),
		r.Primary.String(),
		compare,
		setKey(r.Filters.Accounts),
		setKey(r.Filters.Cards),
		setKey(r.Filters.Categories),
		string(cmp.Or(r.Filters.Type, TypeAll)),
	}, "|")
}

func setKey(s IDSet) string {
	if s.IsAll() {
		return "*"
	}
	return "[" + strings.Join(s.IDs(), ",") + "]"
}
