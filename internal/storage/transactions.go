package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"financas/internal/core"
	"financas/internal/log"
)

const transactionColumns = `t.id, t.description, t.amount, t.date, t.installment_count, t.kind, t.is_income,
	t.account_id, t.card_id, t.category_id, t.paid, t.recurring_id, t.period,
	i.number, i.amount, i.due_date, i.paid, i.payment_date, i.paid_amount`

// insertTransaction writes tx and its installments. With skipDuplicate a
// conflicting row is left untouched and false is returned.
func insertTransaction(ctx context.Context, sqlTx *sql.Tx, tx core.Transaction, skipDuplicate bool) (bool, error) {
	query := `
		INSERT INTO transactions (id, description, amount, date, installment_count, kind, is_income,
			account_id, card_id, category_id, paid, recurring_id, period)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if skipDuplicate {
		query += ` ON CONFLICT DO NOTHING`
	}
	var period sql.NullString
	if tx.RecurringID != "" {
		period = nullString(tx.Period.String())
	}
	res, err := sqlTx.ExecContext(ctx, query,
		tx.ID, tx.Description, tx.Amount.String(), tx.Date.String(), tx.InstallmentCount, string(tx.Kind),
		boolInt(tx.IsIncome), tx.AccountID, nullString(tx.CardID), nullString(tx.CategoryID),
		boolInt(tx.Paid), nullString(tx.RecurringID), period)
	if isUniqueViolation(err) {
		if tx.RecurringID != "" {
			return false, fmt.Errorf("transaction for %s@%s: %w", tx.RecurringID, tx.Period, ErrDuplicatePeriod)
		}
		return false, fmt.Errorf("transaction %s: %w", tx.ID, ErrConflict)
	}
	if err != nil {
		return false, fmt.Errorf("insert transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return false, nil
	}

	for _, inst := range tx.Installments {
		_, err := sqlTx.ExecContext(ctx, `
			INSERT INTO installments (transaction_id, number, amount, due_date, paid, payment_date, paid_amount)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			tx.ID, inst.Number, inst.Amount.String(), inst.DueDate.String(), boolInt(inst.Paid),
			nullDate(inst.PaymentDate), nullMoney(inst.PaidAmount))
		if err != nil {
			return false, fmt.Errorf("insert installment %d: %w", inst.Number, err)
		}
	}
	return true, nil
}

// CreateTransaction stores tx with its installments in one transaction.
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, tx core.Transaction) error {
	err := r.withTx(ctx, func(sqlTx *sql.Tx) error {
		_, err := insertTransaction(ctx, sqlTx, tx, false)
		return err
	})
	if err != nil {
		return err
	}

	fields := log.NewFields().
		WithOperation(log.OpCreate).
		WithTransaction(tx.ID, tx.Description, tx.Amount.String())
	r.logger.InfoContext(ctx, "Transaction saved to SQLite",
		append(fields.ToSlice(), "date", tx.Date.String(), "installments", tx.InstallmentCount)...)
	return nil
}

// SaveInstallments persists the payment state of every installment of tx
// and its overall paid flag.
func (r *SQLiteRepository) SaveInstallments(ctx context.Context, tx core.Transaction) error {
	err := r.withTx(ctx, func(sqlTx *sql.Tx) error {
		res, err := sqlTx.ExecContext(ctx, `UPDATE transactions SET paid = ? WHERE id = ?`, boolInt(tx.Paid), tx.ID)
		if err != nil {
			return fmt.Errorf("update transaction: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("transaction %s: %w", tx.ID, ErrNotFound)
		}
		for _, inst := range tx.Installments {
			_, err := sqlTx.ExecContext(ctx, `
				UPDATE installments SET paid = ?, payment_date = ?, paid_amount = ?
				WHERE transaction_id = ? AND number = ?`,
				boolInt(inst.Paid), nullDate(inst.PaymentDate), nullMoney(inst.PaidAmount), tx.ID, inst.Number)
			if err != nil {
				return fmt.Errorf("update installment %d: %w", inst.Number, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	r.logger.InfoContext(ctx, "Installments updated", "transaction_id", tx.ID, "paid", tx.Paid)
	return nil
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}
	r.logger.InfoContext(ctx, "Transaction deleted", "id", id)
	return nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	txs, err := r.queryTransactions(ctx, `WHERE t.id = ?`, id)
	if err != nil {
		return core.Transaction{}, err
	}
	if len(txs) == 0 {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}
	return txs[0], nil
}

// ListTransactions returns the transactions whose origin date falls in p.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, p core.Period) ([]core.Transaction, error) {
	return r.queryTransactions(ctx, `WHERE t.date BETWEEN ? AND ?`, p.Start.String(), p.End.String())
}

// ListTransactionsPaidBetween returns, with all their installments, the
// transactions having at least one installment paid inside p.
func (r *SQLiteRepository) ListTransactionsPaidBetween(ctx context.Context, p core.Period) ([]core.Transaction, error) {
	return r.queryTransactions(ctx, `
		WHERE t.id IN (
			SELECT transaction_id FROM installments
			WHERE paid = 1 AND payment_date BETWEEN ? AND ?
		)`, p.Start.String(), p.End.String())
}

func (r *SQLiteRepository) queryTransactions(ctx context.Context, where string, args ...any) ([]core.Transaction, error) {
	query := `SELECT ` + transactionColumns + `
		FROM transactions t JOIN installments i ON i.transaction_id = t.id
		` + strings.TrimSpace(where) + `
		ORDER BY t.date, t.id, i.number`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		tx, inst, err := scanTransactionRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		if n := len(out); n > 0 && out[n-1].ID == tx.ID {
			out[n-1].Installments = append(out[n-1].Installments, inst)
			continue
		}
		tx.Installments = []core.Installment{inst}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func scanTransactionRow(s rowScanner) (core.Transaction, core.Installment, error) {
	var (
		tx                      core.Transaction
		inst                    core.Installment
		amount, date, kind      string
		isIncome, paid          int
		cardID, categoryID      sql.NullString
		recurringID, period     sql.NullString
		instAmount, due         string
		instPaid                int
		paymentDate, paidAmount sql.NullString
	)
	err := s.Scan(&tx.ID, &tx.Description, &amount, &date, &tx.InstallmentCount, &kind, &isIncome,
		&tx.AccountID, &cardID, &categoryID, &paid, &recurringID, &period,
		&inst.Number, &instAmount, &due, &instPaid, &paymentDate, &paidAmount)
	if err != nil {
		return tx, inst, err
	}

	if tx.Amount, err = parseMoney(amount); err != nil {
		return tx, inst, err
	}
	if tx.Date, err = core.ParseDate(date); err != nil {
		return tx, inst, err
	}
	if period.Valid {
		if tx.Period, err = core.ParseDate(period.String); err != nil {
			return tx, inst, err
		}
	}
	tx.Kind = core.PaymentKind(kind)
	tx.IsIncome = isIncome == 1
	tx.Paid = paid == 1
	tx.CardID = cardID.String
	tx.CategoryID = categoryID.String
	tx.RecurringID = recurringID.String

	if inst.Amount, err = parseMoney(instAmount); err != nil {
		return tx, inst, err
	}
	if inst.DueDate, err = core.ParseDate(due); err != nil {
		return tx, inst, err
	}
	inst.Paid = instPaid == 1
	if inst.PaymentDate, err = parseNullDate(paymentDate); err != nil {
		return tx, inst, err
	}
	if inst.PaidAmount, err = parseNullMoney(paidAmount); err != nil {
		return tx, inst, err
	}
	return tx, inst, nil
}
