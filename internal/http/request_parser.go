package http

// This file turns query strings and JSON payloads into service inputs.

import (
	"net/url"
	"strings"

	"financas/internal/core"
	"financas/internal/report"
)

// Universe lists every known id per filter dimension. Selecting a whole
// universe is the same as not filtering that dimension.
type Universe struct {
	Accounts   []string
	Cards      []string
	Categories []string
}

// parsePeriodQuery reads start and end, defaulting to the month of today
// when both are absent.
func parsePeriodQuery(q url.Values, today core.Date) (core.Period, error) {
	start := strings.TrimSpace(q.Get("start"))
	end := strings.TrimSpace(q.Get("end"))
	if start == "" && end == "" {
		return core.MonthPeriod(today), nil
	}
	return core.ParsePeriod(start, end)
}

// idList splits a comma separated list, dropping blanks. The second result
// reports whether the parameter was present at all.
func idList(q url.Values, key string) ([]string, bool) {
	if !q.Has(key) {
		return nil, false
	}
	var out []string
	for _, v := range q[key] {
		for id := range strings.SplitSeq(v, ",") {
			if id = sanitizeInput(id); id != "" {
				out = append(out, id)
			}
		}
	}
	return out, true
}

func selection(q url.Values, key string, universe []string) report.IDSet {
	ids, ok := idList(q, key)
	if !ok {
		return report.IDSet{}
	}
	return report.NewSelection(ids, universe)
}

// ParseReportRequest builds a report request from a query string.
//
// kind is required. compare is one of none, previous_period and
// previous_year; an explicit compare_start/compare_end pair wins over it.
func ParseReportRequest(q url.Values, today core.Date, u Universe) (report.Request, error) {
	kind, err := report.ParseKind(strings.TrimSpace(q.Get("kind")))
	if err != nil {
		return report.Request{}, err
	}
	primary, err := parsePeriodQuery(q, today)
	if err != nil {
		return report.Request{}, err
	}
	req := report.Request{Kind: kind, Primary: primary}

	cs, ce := strings.TrimSpace(q.Get("compare_start")), strings.TrimSpace(q.Get("compare_end"))
	if cs != "" || ce != "" {
		compare, err := core.ParsePeriod(cs, ce)
		if err != nil {
			return report.Request{}, err
		}
		req.Compare = &compare
	} else {
		mode, err := report.ParseCompareMode(strings.TrimSpace(q.Get("compare")))
		if err != nil {
			return report.Request{}, err
		}
		if mode != report.CompareNone {
			compare, err := report.ComparisonPeriod(primary, mode)
			if err != nil {
				return report.Request{}, err
			}
			req.Compare = &compare
		}
	}

	txType, err := report.ParseTxType(q.Get("type"))
	if err != nil {
		return report.Request{}, err
	}
	req.Filters = report.FilterSet{
		Accounts:   selection(q, "accounts", u.Accounts),
		Cards:      selection(q, "cards", u.Cards),
		Categories: selection(q, "categories", u.Categories),
		Type:       txType,
	}
	return req, req.Validate()
}

// wantsFilter reports whether the query restricts any id dimension.
func wantsFilter(q url.Values) bool {
	return q.Has("accounts") || q.Has("cards") || q.Has("categories")
}

// recurringPayload is the body of create and update.
type recurringPayload struct {
	Description string           `json:"description"`
	Amount      core.Money       `json:"amount"`
	DayOfMonth  int              `json:"day_of_month"`
	Kind        core.PaymentKind `json:"kind"`
	IsIncome    bool             `json:"is_income"`
	AccountID   string           `json:"account_id"`
	CardID      string           `json:"card_id"`
	CategoryID  string           `json:"category_id"`
}

func (p recurringPayload) item() core.RecurringItem {
	return core.RecurringItem{
		Description: sanitizeInput(p.Description),
		Amount:      p.Amount,
		DayOfMonth:  p.DayOfMonth,
		Kind:        core.PaymentKind(strings.ToLower(string(p.Kind))),
		IsIncome:    p.IsIncome,
		AccountID:   sanitizeInput(p.AccountID),
		CardID:      sanitizeInput(p.CardID),
		CategoryID:  sanitizeInput(p.CategoryID),
	}
}

type transactionPayload struct {
	Description  string           `json:"description"`
	Amount       core.Money       `json:"amount"`
	Date         core.Date        `json:"date"`
	Installments int              `json:"installments"`
	Kind         core.PaymentKind `json:"kind"`
	IsIncome     bool             `json:"is_income"`
	AccountID    string           `json:"account_id"`
	CardID       string           `json:"card_id"`
	CategoryID   string           `json:"category_id"`
}

// params defaults the date to today and the count to one installment.
func (p transactionPayload) params(today core.Date) core.TransactionParams {
	if p.Date.IsZero() {
		p.Date = today
	}
	if p.Installments == 0 {
		p.Installments = 1
	}
	return core.TransactionParams{
		Description:  sanitizeInput(p.Description),
		Amount:       p.Amount,
		Date:         p.Date,
		Installments: p.Installments,
		Kind:         core.PaymentKind(strings.ToLower(string(p.Kind))),
		IsIncome:     p.IsIncome,
		AccountID:    sanitizeInput(p.AccountID),
		CardID:       sanitizeInput(p.CardID),
		CategoryID:   sanitizeInput(p.CategoryID),
	}
}

type payPayload struct {
	Date   core.Date   `json:"date"`
	Amount *core.Money `json:"amount"`
}

type importPayload struct {
	Text       string `json:"text"`
	AccountID  string `json:"account_id"`
	CategoryID string `json:"category_id"`
}
