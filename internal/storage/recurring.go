package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"financas/internal/core"
	"financas/internal/log"
)

const recurringColumns = `id, description, amount, day_of_month, kind, is_income, account_id,
	card_id, category_id, enabled, last_run, next_run`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecurringItem(s rowScanner) (core.RecurringItem, error) {
	var (
		item               core.RecurringItem
		amount, kind, next string
		isIncome, enabled  int
		cardID, categoryID sql.NullString
		lastRun            sql.NullString
	)
	err := s.Scan(&item.ID, &item.Description, &amount, &item.DayOfMonth, &kind, &isIncome,
		&item.AccountID, &cardID, &categoryID, &enabled, &lastRun, &next)
	if err != nil {
		return item, err
	}
	if item.Amount, err = parseMoney(amount); err != nil {
		return item, err
	}
	if item.NextRun, err = core.ParseDate(next); err != nil {
		return item, fmt.Errorf("parse next_run: %w", err)
	}
	if item.LastRun, err = parseNullDate(lastRun); err != nil {
		return item, fmt.Errorf("parse last_run: %w", err)
	}
	item.Kind = core.PaymentKind(kind)
	item.IsIncome = isIncome == 1
	item.Enabled = enabled == 1
	item.CardID = cardID.String
	item.CategoryID = categoryID.String
	return item, nil
}

func (r *SQLiteRepository) CreateRecurringItem(ctx context.Context, item core.RecurringItem) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO recurring_items (`+recurringColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.Description, item.Amount.String(), item.DayOfMonth, string(item.Kind),
		boolInt(item.IsIncome), item.AccountID, nullString(item.CardID), nullString(item.CategoryID),
		boolInt(item.Enabled), nullDate(item.LastRun), item.NextRun.String())
	if isUniqueViolation(err) {
		return fmt.Errorf("create recurring item %s: %w", item.ID, ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("create recurring item: %w", err)
	}

	r.logger.InfoContext(ctx, "Recurring item saved to SQLite",
		"id", item.ID,
		"description", item.Description,
		"amount", item.Amount.String(),
		"day_of_month", item.DayOfMonth,
		"next_run", item.NextRun.String())
	return nil
}

func (r *SQLiteRepository) GetRecurringItem(ctx context.Context, id string) (core.RecurringItem, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+recurringColumns+` FROM recurring_items WHERE id = ?`, id)
	item, err := scanRecurringItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return item, fmt.Errorf("recurring item %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return item, fmt.Errorf("get recurring item: %w", err)
	}
	return item, nil
}

// UpdateRecurringItem replaces the editable fields and the schedule of an item.
func (r *SQLiteRepository) UpdateRecurringItem(ctx context.Context, item core.RecurringItem) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE recurring_items
		SET description = ?, amount = ?, day_of_month = ?, kind = ?, is_income = ?, account_id = ?,
			card_id = ?, category_id = ?, enabled = ?, last_run = ?, next_run = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		item.Description, item.Amount.String(), item.DayOfMonth, string(item.Kind), boolInt(item.IsIncome),
		item.AccountID, nullString(item.CardID), nullString(item.CategoryID), boolInt(item.Enabled),
		nullDate(item.LastRun), item.NextRun.String(), item.ID)
	if err != nil {
		return fmt.Errorf("update recurring item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("recurring item %s: %w", item.ID, ErrNotFound)
	}
	r.logger.InfoContext(ctx, "Recurring item updated", "id", item.ID, "enabled", item.Enabled, "next_run", item.NextRun.String())
	return nil
}

func (r *SQLiteRepository) SetRecurringEnabled(ctx context.Context, id string, enabled bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE recurring_items SET enabled = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		boolInt(enabled), id)
	if err != nil {
		return fmt.Errorf("set recurring item enabled: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("recurring item %s: %w", id, ErrNotFound)
	}
	r.logger.InfoContext(ctx, "Recurring item toggled", "id", id, "enabled", enabled)
	return nil
}

// DeleteRecurringItem removes the template. Materialized transactions are kept
// and lose their link.
func (r *SQLiteRepository) DeleteRecurringItem(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM recurring_items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete recurring item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("recurring item %s: %w", id, ErrNotFound)
	}
	r.logger.InfoContext(ctx, "Recurring item deleted", "id", id)
	return nil
}

func (r *SQLiteRepository) ListRecurringItems(ctx context.Context) ([]core.RecurringItem, error) {
	return r.listRecurring(ctx, `SELECT `+recurringColumns+` FROM recurring_items ORDER BY next_run, id`)
}

// ListEnabledRecurringItems returns the items the scheduler considers.
func (r *SQLiteRepository) ListEnabledRecurringItems(ctx context.Context) ([]core.RecurringItem, error) {
	return r.listRecurring(ctx, `SELECT `+recurringColumns+` FROM recurring_items WHERE enabled = 1 ORDER BY next_run, id`)
}

func (r *SQLiteRepository) listRecurring(ctx context.Context, query string, args ...any) ([]core.RecurringItem, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list recurring items: %w", err)
	}
	defer rows.Close()

	var out []core.RecurringItem
	for rows.Next() {
		item, err := scanRecurringItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recurring item: %w", err)
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// FiredPeriods returns the periods of id already materialized on or after since.
func (r *SQLiteRepository) FiredPeriods(ctx context.Context, id string, since core.Date) ([]core.Date, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT period FROM transactions WHERE recurring_id = ? AND period >= ? ORDER BY period`,
		id, since.String())
	if err != nil {
		return nil, fmt.Errorf("list fired periods: %w", err)
	}
	defer rows.Close()

	var out []core.Date
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan fired period: %w", err)
		}
		d, err := core.ParseDate(s)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// FireRecurring stores one fired period atomically: the materialized
// transaction (when tx is not nil) and the advance of the item's schedule
// from fired to next. A period that was already materialized is not
// inserted again but the schedule still advances. It reports whether tx
// was inserted.
func (r *SQLiteRepository) FireRecurring(ctx context.Context, itemID string, fired, next core.Date, tx *core.Transaction) (bool, error) {
	inserted := false
	err := r.withTx(ctx, func(sqlTx *sql.Tx) error {
		if tx != nil {
			ok, err := insertTransaction(ctx, sqlTx, *tx, true)
			if err != nil {
				return err
			}
			inserted = ok
		}

		res, err := sqlTx.ExecContext(ctx, `
			UPDATE recurring_items
			SET last_run = ?, next_run = ?, updated_at = CURRENT_TIMESTAMP
			WHERE id = ? AND next_run = ?`,
			fired.String(), next.String(), itemID, fired.String())
		if err != nil {
			return fmt.Errorf("advance recurring schedule: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("recurring item %s at %s: %w", itemID, fired, ErrScheduleMoved)
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	fields := log.NewFields().
		WithOperation(log.OpWrite).
		WithFiring(itemID, fired.String(), next.String())
	if inserted {
		fields = fields.WithTransaction(tx.ID, tx.Description, tx.Amount.String())
		r.logger.InfoContext(ctx, "Recurring period materialized", fields.ToSlice()...)
	} else {
		r.logger.InfoContext(ctx, "Recurring period already materialized, schedule advanced", fields.ToSlice()...)
	}
	return inserted, nil
}
