package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"financas/internal/core"
	"financas/internal/log"
)

func (r *SQLiteRepository) CreateAccount(ctx context.Context, a core.Account) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO accounts (id, name) VALUES (?, ?)`, a.ID, a.Name)
	if isUniqueViolation(err) {
		return fmt.Errorf("create account %s: %w", a.ID, ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	r.logger.InfoContext(ctx, "Account saved to SQLite", log.FieldOperation, log.OpCreate, "id", a.ID, "name", a.Name)
	return nil
}

func (r *SQLiteRepository) ListAccounts(ctx context.Context) ([]core.Account, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name FROM accounts ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var out []core.Account
	for rows.Next() {
		var a core.Account
		if err := rows.Scan(&a.ID, &a.Name); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) CreateCard(ctx context.Context, c core.Card) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO cards (id, name, account_id) VALUES (?, ?, ?)`, c.ID, c.Name, c.AccountID)
	if isUniqueViolation(err) {
		return fmt.Errorf("create card %s: %w", c.ID, ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("create card: %w", err)
	}
	r.logger.InfoContext(ctx, "Card saved to SQLite", log.FieldOperation, log.OpCreate, "id", c.ID, "account_id", c.AccountID)
	return nil
}

func (r *SQLiteRepository) GetCard(ctx context.Context, id string) (core.Card, error) {
	var c core.Card
	err := r.db.QueryRowContext(ctx, `SELECT id, name, account_id FROM cards WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &c.AccountID)
	if errors.Is(err, sql.ErrNoRows) {
		return c, fmt.Errorf("card %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return c, fmt.Errorf("get card: %w", err)
	}
	return c, nil
}

func (r *SQLiteRepository) ListCards(ctx context.Context) ([]core.Card, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, account_id FROM cards ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	defer rows.Close()

	var out []core.Card
	for rows.Next() {
		var c core.Card
		if err := rows.Scan(&c.ID, &c.Name, &c.AccountID); err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO categories (id, name) VALUES (?, ?)`, c.ID, c.Name)
	if isUniqueViolation(err) {
		return fmt.Errorf("create category %s: %w", c.ID, ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("create category: %w", err)
	}
	r.logger.InfoContext(ctx, "Category saved to SQLite", log.FieldOperation, log.OpCreate, "id", c.ID, "name", c.Name)
	return nil
}

func (r *SQLiteRepository) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name FROM categories ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
