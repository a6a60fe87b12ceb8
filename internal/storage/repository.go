package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"financas/internal/core"
	"financas/internal/log"

	"github.com/shopspring/decimal"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrDuplicatePeriod is returned when a recurring period is already materialized.
	ErrDuplicatePeriod = errors.New("recurring period already materialized")
	ErrConflict        = errors.New("already exists")
	// ErrScheduleMoved means the item's nextRun changed since it was read.
	ErrScheduleMoved = errors.New("recurring schedule moved concurrently")
)

// pragmas applied to every pooled connection.
const dsnParams = "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"

type SQLiteRepository struct {
	db            *sql.DB
	schemaVersion uint
	logger        *log.Logger
}

// NewSQLiteRepository opens the database at dbPath, creating its directory,
// and migrates it. Writes are logged under the storage component.
func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := dbPath + dsnParams
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := RunMigrations(dsn)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:            db,
		schemaVersion: version,
		logger:        logger.WithComponent(log.ComponentStorage),
	}, nil
}

// SchemaVersion is the migration version the database was opened at.
func (r *SQLiteRepository) SchemaVersion() uint { return r.schemaVersion }

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Revision returns a counter that grows with every transaction or
// installment write, including writes made by other processes.
func (r *SQLiteRepository) Revision(ctx context.Context) (int64, error) {
	var rev int64
	if err := r.db.QueryRowContext(ctx, `SELECT revision FROM store_revision WHERE id = 1`).Scan(&rev); err != nil {
		return 0, fmt.Errorf("read store revision: %w", err)
	}
	return rev, nil
}

// Ping is used by the readiness check.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// withTx runs fn in a transaction, rolling back on error.
func (r *SQLiteRepository) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch code := se.Code(); {
	case code == sqlite3.SQLITE_CONSTRAINT_UNIQUE, code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	case code&0xff == sqlite3.SQLITE_CONSTRAINT:
		// connection without extended result codes
		return strings.Contains(se.Error(), "UNIQUE")
	}
	return false
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullDate(d *core.Date) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func nullMoney(m *core.Money) sql.NullString {
	if m == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: m.String(), Valid: true}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func parseMoney(s string) (core.Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return core.Money{}, fmt.Errorf("parse stored amount %q: %w", s, err)
	}
	return core.NewMoney(d), nil
}

func parseNullDate(ns sql.NullString) (*core.Date, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	d, err := core.ParseDate(ns.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func parseNullMoney(ns sql.NullString) (*core.Money, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	m, err := parseMoney(ns.String)
	if err != nil {
		return nil, err
	}
	return &m, nil
}
