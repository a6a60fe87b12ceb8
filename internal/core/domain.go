package core

import (
	"errors"
	"fmt"
	"strings"
)

const (
	KindCash  PaymentKind = "cash"
	KindCard  PaymentKind = "card"
	KindPrazo PaymentKind = "prazo" // deferred payment
)

const maxDescriptionLen = 200

type (
	PaymentKind string

	Account struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}

	// Card settles its expenses through the linked account.
	Card struct {
		ID        string `json:"id"`
		Name      string `json:"name"`
		AccountID string `json:"account_id"`
	}

	Category struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}

	// RecurringItem is a template materialized into one Transaction per month.
	RecurringItem struct {
		ID          string      `json:"id"`
		Description string      `json:"description"`
		Amount      Money       `json:"amount"`
		DayOfMonth  int         `json:"day_of_month"`
		Kind        PaymentKind `json:"kind"`
		IsIncome    bool        `json:"is_income"`
		AccountID   string      `json:"account_id"`
		CardID      string      `json:"card_id,omitempty"`
		CategoryID  string      `json:"category_id,omitempty"`
		Enabled     bool        `json:"enabled"`
		LastRun     *Date       `json:"last_run"`
		NextRun     Date        `json:"next_run"`
	}

	Installment struct {
		Number      int    `json:"number"`
		Amount      Money  `json:"amount"`
		DueDate     Date   `json:"due_date"`
		Paid        bool   `json:"paid"`
		PaymentDate *Date  `json:"payment_date"`
		PaidAmount  *Money `json:"paid_amount"`
	}

	Transaction struct {
		ID               string        `json:"id"`
		Description      string        `json:"description"`
		Amount           Money         `json:"amount"`
		Date             Date          `json:"date"`
		InstallmentCount int           `json:"installment_count"`
		Kind             PaymentKind   `json:"kind"`
		IsIncome         bool          `json:"is_income"`
		AccountID        string        `json:"account_id"`
		CardID           string        `json:"card_id,omitempty"`
		CategoryID       string        `json:"category_id,omitempty"`
		Installments     []Installment `json:"installments"`
		Paid             bool          `json:"paid"`
		RecurringID      string        `json:"recurring_id,omitempty"`
		Period           Date          `json:"period,omitzero"` // fired nextRun, set with RecurringID
	}

	// TransactionParams is the creation contract for user-entered and imported transactions.
	TransactionParams struct {
		Description  string
		Amount       Money
		Date         Date
		Installments int
		Kind         PaymentKind
		IsIncome     bool
		AccountID    string
		CardID       string
		CategoryID   string
	}

	// ValidationError ties a validation failure to the offending field.
	ValidationError struct {
		Field string
		Err   error
	}
)

var (
	ErrInvalidDay          = errors.New("invalid day of month")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidDate         = errors.New("invalid date")
	ErrInvalidPeriod       = errors.New("invalid period")
	ErrInvalidKind         = errors.New("invalid payment kind")
	ErrInvalidInstallments = errors.New("invalid installment count")
	ErrEmptyDescription    = errors.New("empty description")
	ErrDescriptionTooLong  = errors.New("description too long (max 200 characters)")
	ErrMissingAccount      = errors.New("missing account")
	ErrMissingCard         = errors.New("missing card")
	ErrUnknownCard         = errors.New("unknown card")
	ErrInstallmentNotFound = errors.New("installment not found")
	ErrInstallmentPaid     = errors.New("installment already paid")
	ErrInstallmentUnpaid   = errors.New("installment not paid")
)

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

// ParsePaymentKind accepts cash, card and prazo.
func ParsePaymentKind(s string) (PaymentKind, error) {
	k := PaymentKind(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case KindCash, KindCard, KindPrazo:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
}

func validateDescription(s string) error {
	if strings.TrimSpace(s) == "" {
		return invalid("description", ErrEmptyDescription)
	}
	if len(s) > maxDescriptionLen {
		return invalid("description", ErrDescriptionTooLong)
	}
	return nil
}

// validateSettlement checks that the ids required by kind are present.
func validateSettlement(kind PaymentKind, accountID, cardID string) error {
	if kind == KindCard {
		if strings.TrimSpace(cardID) == "" {
			return invalid("card_id", ErrMissingCard)
		}
		return nil
	}
	if strings.TrimSpace(accountID) == "" {
		return invalid("account_id", ErrMissingAccount)
	}
	return nil
}

// Validate checks user input before any schedule is computed.
func (r RecurringItem) Validate() error {
	if err := validateDescription(r.Description); err != nil {
		return err
	}
	if err := r.Amount.Validate(); err != nil {
		return invalid("amount", err)
	}
	if r.DayOfMonth < 1 || r.DayOfMonth > 31 {
		return invalid("day_of_month", ErrInvalidDay)
	}
	// recurring items are settled immediately, deferred payment makes no sense here
	if r.Kind != KindCash && r.Kind != KindCard {
		return invalid("kind", ErrInvalidKind)
	}
	return validateSettlement(r.Kind, r.AccountID, r.CardID)
}

// SettlementAccount returns the account that pays for the item.
// For card items it is the card's linked account, whatever AccountID holds.
func (r RecurringItem) SettlementAccount(cards []Card) (string, error) {
	if r.Kind != KindCard {
		return r.AccountID, nil
	}
	for _, c := range cards {
		if c.ID == r.CardID {
			return c.AccountID, nil
		}
	}
	return "", invalid("card_id", ErrUnknownCard)
}

// Settled returns the paid amount, falling back to the scheduled amount.
func (i Installment) Settled() Money {
	if i.PaidAmount != nil {
		return *i.PaidAmount
	}
	return i.Amount
}

// PaidWithin reports whether the installment was paid inside p.
func (i Installment) PaidWithin(p Period) bool {
	return i.Paid && i.PaymentDate != nil && p.Contains(*i.PaymentDate)
}

func (i Installment) validate() error {
	if err := i.Amount.Validate(); err != nil {
		return invalid(fmt.Sprintf("installments[%d].amount", i.Number), err)
	}
	if i.Paid {
		if i.PaymentDate == nil || i.PaidAmount == nil {
			return invalid(fmt.Sprintf("installments[%d].payment_date", i.Number), ErrInvalidDate)
		}
		return nil
	}
	if i.PaymentDate != nil || i.PaidAmount != nil {
		return invalid(fmt.Sprintf("installments[%d].paid", i.Number), ErrInstallmentUnpaid)
	}
	return nil
}

func (p TransactionParams) Validate() error {
	if err := validateDescription(p.Description); err != nil {
		return err
	}
	if err := p.Amount.Validate(); err != nil {
		return invalid("amount", err)
	}
	if err := p.Date.Validate(); err != nil {
		return invalid("date", err)
	}
	switch p.Kind {
	case KindCash, KindCard, KindPrazo:
	default:
		return invalid("kind", ErrInvalidKind)
	}
	if p.Installments < 1 || int64(p.Installments) > p.Amount.Cents() {
		return invalid("installments", ErrInvalidInstallments)
	}
	return validateSettlement(p.Kind, p.AccountID, p.CardID)
}

// NewTransaction validates p and splits the amount into installments.
// Cash transactions are created settled, card and prazo ones are created open.
func NewTransaction(p TransactionParams) (Transaction, error) {
	if p.Installments == 0 {
		p.Installments = 1
	}
	if err := p.Validate(); err != nil {
		return Transaction{}, err
	}
	t := Transaction{
		Description:      strings.TrimSpace(p.Description),
		Amount:           p.Amount,
		Date:             p.Date,
		InstallmentCount: p.Installments,
		Kind:             p.Kind,
		IsIncome:         p.IsIncome,
		AccountID:        p.AccountID,
		CardID:           p.CardID,
		CategoryID:       p.CategoryID,
		Installments:     SplitInstallments(p.Amount, p.Installments, p.Date),
	}
	if p.Kind == KindCash {
		for i := range t.Installments {
			inst := &t.Installments[i]
			due, amount := inst.DueDate, inst.Amount
			inst.Paid = true
			inst.PaymentDate = &due
			inst.PaidAmount = &amount
		}
	}
	t.refreshPaid()
	return t, nil
}

// SplitInstallments divides total into count installments of whole cents.
// The remainder cents go on the first installment. Installment n is due
// on first moved by n-1 months, with the day clamped to the month's end.
func SplitInstallments(total Money, count int, first Date) []Installment {
	if count < 1 {
		count = 1
	}
	cents := total.Cents()
	base := cents / int64(count)
	rem := cents - base*int64(count)

	out := make([]Installment, count)
	for i := range out {
		amount := base
		if i == 0 {
			amount += rem
		}
		out[i] = Installment{
			Number:  i + 1,
			Amount:  MoneyFromCents(amount),
			DueDate: first.AddMonths(i),
		}
	}
	return out
}

// Validate checks a full transaction, including the installment invariants.
func (t Transaction) Validate() error {
	if err := validateDescription(t.Description); err != nil {
		return err
	}
	if err := t.Amount.Validate(); err != nil {
		return invalid("amount", err)
	}
	if err := t.Date.Validate(); err != nil {
		return invalid("date", err)
	}
	switch t.Kind {
	case KindCash, KindCard, KindPrazo:
	default:
		return invalid("kind", ErrInvalidKind)
	}
	if err := validateSettlement(t.Kind, t.AccountID, t.CardID); err != nil {
		return err
	}
	if t.InstallmentCount < 1 || len(t.Installments) != t.InstallmentCount {
		return invalid("installments", ErrInvalidInstallments)
	}
	var sum Money
	for i, inst := range t.Installments {
		if inst.Number != i+1 {
			return invalid("installments", ErrInvalidInstallments)
		}
		if err := inst.validate(); err != nil {
			return err
		}
		sum = sum.Add(inst.Amount)
	}
	if !sum.Equal(t.Amount) {
		return invalid("installments", fmt.Errorf("%w: installments sum to %s, amount is %s", ErrInvalidInstallments, sum, t.Amount))
	}
	return nil
}

func (t *Transaction) installment(n int) (*Installment, error) {
	if n < 1 || n > len(t.Installments) {
		return nil, fmt.Errorf("%w: %d", ErrInstallmentNotFound, n)
	}
	return &t.Installments[n-1], nil
}

// PayInstallment settles installment n. A nil paidAmount means the scheduled amount.
func (t *Transaction) PayInstallment(n int, on Date, paidAmount *Money) error {
	inst, err := t.installment(n)
	if err != nil {
		return err
	}
	if inst.Paid {
		return fmt.Errorf("%w: %d", ErrInstallmentPaid, n)
	}
	if err := on.Validate(); err != nil {
		return invalid("payment_date", err)
	}
	amount := inst.Amount
	if paidAmount != nil {
		if err := paidAmount.Validate(); err != nil {
			return invalid("paid_amount", err)
		}
		amount = *paidAmount
	}
	inst.Paid = true
	inst.PaymentDate = &on
	inst.PaidAmount = &amount
	t.refreshPaid()
	return nil
}

// UnpayInstallment reverts installment n to open.
func (t *Transaction) UnpayInstallment(n int) error {
	inst, err := t.installment(n)
	if err != nil {
		return err
	}
	if !inst.Paid {
		return fmt.Errorf("%w: %d", ErrInstallmentUnpaid, n)
	}
	inst.Paid = false
	inst.PaymentDate = nil
	inst.PaidAmount = nil
	t.refreshPaid()
	return nil
}

func (t *Transaction) refreshPaid() {
	t.Paid = len(t.Installments) > 0
	for _, inst := range t.Installments {
		if !inst.Paid {
			t.Paid = false
			return
		}
	}
}
