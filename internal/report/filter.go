package report

import (
	"fmt"
	"slices"
	"strings"

	"financas/internal/core"
)

// TxType selects income, expense or both.
type TxType string

const (
	TypeAll     TxType = "all"
	TypeIncome  TxType = "income"
	TypeExpense TxType = "expense"
)

// ParseTxType accepts all, income and expense. Empty means all.
func ParseTxType(s string) (TxType, error) {
	switch t := TxType(strings.ToLower(strings.TrimSpace(s))); t {
	case "":
		return TypeAll, nil
	case TypeAll, TypeIncome, TypeExpense:
		return t, nil
	}
	return "", fmt.Errorf("%w: transaction type %q", ErrInvalidRequest, s)
}

func (t TxType) matches(isIncome bool) bool {
	switch t {
	case TypeIncome:
		return isIncome
	case TypeExpense:
		return !isIncome
	}
	return true
}

// IDSet is a selection over one filter dimension.
// The zero value selects everything.
type IDSet struct {
	ids map[string]struct{}
}

// Only restricts the dimension to ids. No ids selects nothing.
func Only(ids ...string) IDSet {
	s := IDSet{ids: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
	return s
}

// NewSelection builds a set from a UI style multi-select: selecting the
// whole universe is the same as not filtering at all. That includes an
// empty selection over an empty universe. Ids selected from an empty
// universe are kept as given.
func NewSelection(selected, universe []string) IDSet {
	if len(universe) == 0 {
		if len(selected) == 0 {
			return IDSet{}
		}
		return Only(selected...)
	}
	s := Only(selected...)
	for _, id := range universe {
		if _, ok := s.ids[id]; !ok {
			return s
		}
	}
	return IDSet{}
}

// IsAll reports whether the set does not filter.
func (s IDSet) IsAll() bool {
	return s.ids == nil
}

// Matches reports whether id passes the filter. An empty id only passes
// an unfiltered dimension.
func (s IDSet) Matches(id string) bool {
	if s.IsAll() {
		return true
	}
	_, ok := s.ids[id]
	return ok && id != ""
}

// IDs returns the selected ids sorted, nil when unfiltered.
func (s IDSet) IDs() []string {
	if s.IsAll() {
		return nil
	}
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// FilterSet is the immutable filter of a report request.
type FilterSet struct {
	Accounts   IDSet
	Cards      IDSet
	Categories IDSet
	Type       TxType
}

// Matches applies the dimensional filters, ignoring dates.
// Card expenses are checked against the card filter only, everything
// else against the account filter only.
func (f FilterSet) Matches(tx core.Transaction) bool {
	if tx.Kind == core.KindCard && !tx.IsIncome {
		if !f.Cards.Matches(tx.CardID) {
			return false
		}
	} else if !f.Accounts.Matches(tx.AccountID) {
		return false
	}
	if !f.Categories.Matches(tx.CategoryID) {
		return false
	}
	return f.Type.matches(tx.IsIncome)
}

// PaidWithin reports whether any installment of tx was paid inside p.
func PaidWithin(tx core.Transaction, p core.Period) bool {
	for _, inst := range tx.Installments {
		if inst.PaidWithin(p) {
			return true
		}
	}
	return false
}

// FilterInRange keeps the transactions with a payment inside p that pass f,
// in their original order.
func FilterInRange(txs []core.Transaction, p core.Period, f FilterSet) []core.Transaction {
	out := make([]core.Transaction, 0, len(txs))
	for _, tx := range txs {
		if PaidWithin(tx, p) && f.Matches(tx) {
			out = append(out, tx)
		}
	}
	return out
}
