package sheets

import (
	"context"
	"strconv"

	"financas/internal/core"
)

// Header is the column layout of the ledger sheet. TransactionID comes last
// and is the idempotency key of Append.
var Header = []string{"date", "description", "amount", "type", "kind", "category", "account", "card", "installments", "transaction_id"}

// Row is one transaction flattened for the external ledger.
type Row struct {
	Date          core.Date
	Description   string
	Amount        core.Money
	Type          string
	Kind          core.PaymentKind
	Category      string
	Account       string
	Card          string
	Installments  int
	TransactionID string
}

// NewRow flattens a transaction.
func NewRow(tx core.Transaction) Row {
	typ := "expense"
	if tx.IsIncome {
		typ = "income"
	}
	return Row{
		Date:          tx.Date,
		Description:   tx.Description,
		Amount:        tx.Amount,
		Type:          typ,
		Kind:          tx.Kind,
		Category:      tx.CategoryID,
		Account:       tx.AccountID,
		Card:          tx.CardID,
		Installments:  tx.InstallmentCount,
		TransactionID: tx.ID,
	}
}

// Values returns the row cells in Header order.
func (r Row) Values() []any {
	return []any{
		r.Date.String(),
		r.Description,
		r.Amount.String(),
		r.Type,
		string(r.Kind),
		r.Category,
		r.Account,
		r.Card,
		strconv.Itoa(r.Installments),
		r.TransactionID,
	}
}

// Ports for outbound adapters.
type (
	// TransactionWriter appends a row. Appending a TransactionID that is
	// already present returns the existing reference without writing.
	TransactionWriter interface {
		Append(ctx context.Context, row Row) (rowRef string, err error)
	}

	// TransactionLister reads back every row of the ledger.
	TransactionLister interface {
		ListRows(ctx context.Context) ([]Row, error)
	}
)
