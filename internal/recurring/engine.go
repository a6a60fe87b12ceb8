// Package recurring materializes recurring items into transactions.
//
// Everything here is a pure function over calendar dates: no clock, no store.
// Callers pass "today" or the cutoff explicitly and persist the results.
package recurring

import (
	"financas/internal/core"

	"github.com/google/uuid"
)

// namespace seeds the deterministic ids of fired transactions.
var namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("financas/recurring"))

// PeriodKey identifies one fired period of one recurring item.
type PeriodKey struct {
	RecurringID string
	Period      core.Date
}

func (k PeriodKey) String() string {
	return k.RecurringID + "@" + k.Period.String()
}

// TransactionID is stable for a given key, so a re-fired period maps to the same id.
func (k PeriodKey) TransactionID() string {
	return uuid.NewSHA1(namespace, []byte(k.String())).String()
}

// Firing is one elapsed period of an item, in emission order.
type Firing struct {
	Key         PeriodKey
	Next        core.Date // nextRun after this period
	Transaction core.Transaction
	// Duplicate is set when the period was already materialized.
	// The schedule still advances but Transaction must not be stored again.
	Duplicate bool
}

// Result holds the outcome of FireDue.
type Result struct {
	Firings []Firing
	// Items has one entry per input item, in input order, with lastRun/nextRun advanced.
	Items []core.RecurringItem
}

// Transactions returns the newly materialized transactions, oldest period first per item.
func (r Result) Transactions() []core.Transaction {
	out := make([]core.Transaction, 0, len(r.Firings))
	for _, f := range r.Firings {
		if !f.Duplicate {
			out = append(out, f.Transaction)
		}
	}
	return out
}

// InitialSchedule returns the first nextRun of a new item: the occurrence of
// day in today's month, clamped to its last day, even when already past.
func InitialSchedule(day int, today core.Date) core.Date {
	return core.OccurrenceIn(today.Year, today.Month, day)
}

// NextRun returns the occurrence of day in the month after current.
func NextRun(current core.Date, day int) core.Date {
	return core.OccurrenceIn(current.Year, current.Month+1, day)
}

// Reschedule moves nextRun to a new day-of-month without changing its month.
func Reschedule(nextRun core.Date, day int) core.Date {
	return core.OccurrenceIn(nextRun.Year, nextRun.Month, day)
}

// IsDue reports whether item would fire at least once at asOf.
func IsDue(item core.RecurringItem, asOf core.Date) bool {
	return item.Enabled && !item.NextRun.IsZero() && !item.NextRun.After(asOf)
}

// FireDue fires every enabled item whose nextRun is on or before asOf, once
// per elapsed period. Disabled items are returned untouched. exists may be
// nil; when it reports a key as already materialized the period is skipped
// but the schedule still advances.
func FireDue(items []core.RecurringItem, asOf core.Date, exists func(PeriodKey) bool) Result {
	res := Result{Items: make([]core.RecurringItem, len(items))}
	for i, item := range items {
		for IsDue(item, asOf) {
			fired := item.NextRun
			key := PeriodKey{RecurringID: item.ID, Period: fired}
			f := Firing{
				Key:       key,
				Next:      NextRun(fired, item.DayOfMonth),
				Duplicate: exists != nil && exists(key),
			}
			if !f.Duplicate {
				f.Transaction = Materialize(item, fired)
			}
			res.Firings = append(res.Firings, f)

			last := fired
			item.LastRun = &last
			item.NextRun = f.Next
		}
		res.Items[i] = item
	}
	return res
}

// Materialize builds the paid single-installment transaction of one period.
func Materialize(item core.RecurringItem, period core.Date) core.Transaction {
	key := PeriodKey{RecurringID: item.ID, Period: period}
	paidOn, paidAmount := period, item.Amount
	return core.Transaction{
		ID:               key.TransactionID(),
		Description:      item.Description,
		Amount:           item.Amount,
		Date:             period,
		InstallmentCount: 1,
		Kind:             item.Kind,
		IsIncome:         item.IsIncome,
		AccountID:        item.AccountID,
		CardID:           item.CardID,
		CategoryID:       item.CategoryID,
		Installments: []core.Installment{{
			Number:      1,
			Amount:      item.Amount,
			DueDate:     period,
			Paid:        true,
			PaymentDate: &paidOn,
			PaidAmount:  &paidAmount,
		}},
		Paid:        true,
		RecurringID: item.ID,
		Period:      period,
	}
}
