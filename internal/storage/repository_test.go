package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"financas/internal/core"
	"financas/internal/log"
	"financas/internal/recurring"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	return newLoggedRepo(t, io.Discard)
}

func newLoggedRepo(t *testing.T, out io.Writer) *SQLiteRepository {
	t.Helper()
	logger := log.New(log.Config{Format: "json", Output: out})
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "financas.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func rentItem() core.RecurringItem {
	return core.RecurringItem{
		ID:          "rent",
		Description: "Rent",
		Amount:      core.MustMoney("1200.50"),
		DayOfMonth:  31,
		Kind:        core.KindCash,
		AccountID:   "checking",
		CategoryID:  "housing",
		Enabled:     true,
		NextRun:     core.NewDate(2024, time.January, 31),
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "financas.db")
	repo, err := NewSQLiteRepository(path, log.New(log.Config{Output: io.Discard}))
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	repo, err = NewSQLiteRepository(path, log.New(log.Config{Output: io.Discard}))
	require.NoError(t, err)
	require.NoError(t, repo.Ping(context.Background()))
	assert.Equal(t, uint(2), repo.SchemaVersion())
	require.NoError(t, repo.Close())
}

func TestCatalog(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	require.NoError(t, repo.CreateAccount(ctx, core.Account{ID: "checking", Name: "Checking"}))
	require.NoError(t, repo.CreateCard(ctx, core.Card{ID: "visa", Name: "Visa", AccountID: "checking"}))
	require.NoError(t, repo.CreateCategory(ctx, core.Category{ID: "food", Name: "Food"}))

	err := repo.CreateAccount(ctx, core.Account{ID: "checking", Name: "Again"})
	assert.ErrorIs(t, err, ErrConflict)

	card, err := repo.GetCard(ctx, "visa")
	require.NoError(t, err)
	assert.Equal(t, "checking", card.AccountID)

	_, err = repo.GetCard(ctx, "amex")
	assert.ErrorIs(t, err, ErrNotFound)

	// cards must point at an existing account
	assert.Error(t, repo.CreateCard(ctx, core.Card{ID: "amex", Name: "Amex", AccountID: "nope"}))

	accounts, err := repo.ListAccounts(ctx)
	require.NoError(t, err)
	assert.Len(t, accounts, 1)
	cats, err := repo.ListCategories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []core.Category{{ID: "food", Name: "Food"}}, cats)
}

func TestRecurringItemCRUD(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	item := rentItem()

	require.NoError(t, repo.CreateRecurringItem(ctx, item))
	got, err := repo.GetRecurringItem(ctx, "rent")
	require.NoError(t, err)
	assert.Equal(t, "1200.50", got.Amount.String())
	assert.Equal(t, item.NextRun, got.NextRun)
	assert.Nil(t, got.LastRun)
	assert.Equal(t, "housing", got.CategoryID)
	assert.Empty(t, got.CardID)
	assert.True(t, got.Enabled)

	require.NoError(t, repo.SetRecurringEnabled(ctx, "rent", false))
	enabled, err := repo.ListEnabledRecurringItems(ctx)
	require.NoError(t, err)
	assert.Empty(t, enabled)
	all, err := repo.ListRecurringItems(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	got.Description = "Rent + condo"
	got.DayOfMonth = 5
	got.NextRun = core.NewDate(2024, time.January, 5)
	require.NoError(t, repo.UpdateRecurringItem(ctx, got))
	got, err = repo.GetRecurringItem(ctx, "rent")
	require.NoError(t, err)
	assert.Equal(t, "Rent + condo", got.Description)
	assert.Equal(t, 5, got.DayOfMonth)

	require.NoError(t, repo.DeleteRecurringItem(ctx, "rent"))
	_, err = repo.GetRecurringItem(ctx, "rent")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, repo.SetRecurringEnabled(ctx, "rent", true), ErrNotFound)
}

func TestFireRecurringIsAtomicAndIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	item := rentItem()
	require.NoError(t, repo.CreateRecurringItem(ctx, item))

	res := recurring.FireDue([]core.RecurringItem{item}, core.NewDate(2024, time.March, 31), nil)
	require.Len(t, res.Firings, 3)

	first := res.Firings[0]
	inserted, err := repo.FireRecurring(ctx, item.ID, first.Key.Period, first.Next, &first.Transaction)
	require.NoError(t, err)
	assert.True(t, inserted)

	// replaying the same period against the stale schedule fails and changes nothing
	_, err = repo.FireRecurring(ctx, item.ID, first.Key.Period, first.Next, &first.Transaction)
	assert.ErrorIs(t, err, ErrScheduleMoved)

	// the period already exists: the insert is skipped but the schedule advances
	require.NoError(t, repo.UpdateRecurringItem(ctx, item))
	inserted, err = repo.FireRecurring(ctx, item.ID, first.Key.Period, first.Next, &first.Transaction)
	require.NoError(t, err)
	assert.False(t, inserted)

	for _, f := range res.Firings[1:] {
		inserted, err := repo.FireRecurring(ctx, item.ID, f.Key.Period, f.Next, &f.Transaction)
		require.NoError(t, err)
		assert.True(t, inserted)
	}

	got, err := repo.GetRecurringItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "2024-04-30", got.NextRun.String())
	require.NotNil(t, got.LastRun)
	assert.Equal(t, "2024-03-31", got.LastRun.String())

	periods, err := repo.FiredPeriods(ctx, item.ID, core.NewDate(2024, time.February, 1))
	require.NoError(t, err)
	require.Len(t, periods, 2)
	assert.Equal(t, "2024-02-29", periods[0].String())

	march, _ := core.ParsePeriod("2024-01-01", "2024-03-31")
	txs, err := repo.ListTransactionsPaidBetween(ctx, march)
	require.NoError(t, err)
	require.Len(t, txs, 3)
	for _, tx := range txs {
		assert.Equal(t, item.ID, tx.RecurringID)
		assert.True(t, tx.Paid)
		require.Len(t, tx.Installments, 1)
		assert.Equal(t, "1200.50", tx.Installments[0].Settled().String())
		assert.NoError(t, tx.Validate())
	}
}

func TestRevisionTracksReportRelevantWrites(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "financas.db")
	quiet := log.New(log.Config{Output: io.Discard})
	repo, err := NewSQLiteRepository(path, quiet)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	other, err := NewSQLiteRepository(path, quiet)
	require.NoError(t, err)
	t.Cleanup(func() { other.Close() })

	rev := func() int64 {
		t.Helper()
		n, err := repo.Revision(ctx)
		require.NoError(t, err)
		return n
	}
	start := rev()

	require.NoError(t, repo.CreateAccount(ctx, core.Account{ID: "checking", Name: "Checking"}))
	assert.Equal(t, start, rev(), "catalog writes do not touch reports")

	tx, err := core.NewTransaction(core.TransactionParams{
		Description: "Laptop", Amount: core.MustMoney("900"), Date: core.NewDate(2024, time.March, 1),
		Installments: 3, Kind: core.KindCard, AccountID: "checking", CardID: "visa",
	})
	require.NoError(t, err)
	require.NoError(t, other.CreateTransaction(ctx, tx))
	afterCreate := rev()
	assert.Greater(t, afterCreate, start, "a write through another connection pool is visible")

	require.NoError(t, tx.PayInstallment(1, core.NewDate(2024, time.March, 10), nil))
	require.NoError(t, other.SaveInstallments(ctx, tx))
	afterPay := rev()
	assert.Greater(t, afterPay, afterCreate)

	require.NoError(t, repo.DeleteTransaction(ctx, tx.ID))
	assert.Greater(t, rev(), afterPay)
}

func TestFireRecurringLogsThePeriod(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	repo := newLoggedRepo(t, &buf)
	item := rentItem()
	require.NoError(t, repo.CreateRecurringItem(ctx, item))

	res := recurring.FireDue([]core.RecurringItem{item}, item.NextRun, nil)
	require.Len(t, res.Firings, 1)
	f := res.Firings[0]
	buf.Reset()
	_, err := repo.FireRecurring(ctx, item.ID, f.Key.Period, f.Next, &f.Transaction)
	require.NoError(t, err)

	line := buf.String()
	for _, want := range []string{
		`"component":"storage"`,
		`"operation":"write"`,
		`"recurring_id":"rent"`,
		`"period":"2024-01-31"`,
		`"next_run":"2024-02-29"`,
		`"transaction_id":"` + f.Transaction.ID + `"`,
		`"amount":"1200.50"`,
	} {
		assert.True(t, strings.Contains(line, want), "missing %s in %s", want, line)
	}
}

func TestCreateTransactionDuplicatePeriod(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	item := rentItem()
	require.NoError(t, repo.CreateRecurringItem(ctx, item))

	tx := recurring.Materialize(item, item.NextRun)
	require.NoError(t, repo.CreateTransaction(ctx, tx))

	tx.ID = "another-id"
	err := repo.CreateTransaction(ctx, tx)
	assert.True(t, errors.Is(err, ErrDuplicatePeriod), "got %v", err)
}

func TestTransactionsAndInstallments(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	tv, err := core.NewTransaction(core.TransactionParams{
		Description:  "TV",
		Amount:       core.MustMoney("1000"),
		Date:         core.NewDate(2024, time.January, 31),
		Installments: 3,
		Kind:         core.KindCard,
		AccountID:    "checking",
		CardID:       "visa",
		CategoryID:   "home",
	})
	require.NoError(t, err)
	tv.ID = "tv"
	require.NoError(t, repo.CreateTransaction(ctx, tv))

	got, err := repo.GetTransaction(ctx, "tv")
	require.NoError(t, err)
	require.Len(t, got.Installments, 3)
	assert.Equal(t, "333.34", got.Installments[0].Amount.String())
	assert.Equal(t, "2024-02-29", got.Installments[1].DueDate.String())
	assert.False(t, got.Paid)
	assert.Equal(t, "visa", got.CardID)

	feb, _ := core.ParsePeriod("2024-02-01", "2024-02-29")
	paid, err := repo.ListTransactionsPaidBetween(ctx, feb)
	require.NoError(t, err)
	assert.Empty(t, paid)

	require.NoError(t, got.PayInstallment(1, core.NewDate(2024, time.February, 10), nil))
	require.NoError(t, repo.SaveInstallments(ctx, got))

	paid, err = repo.ListTransactionsPaidBetween(ctx, feb)
	require.NoError(t, err)
	require.Len(t, paid, 1)
	require.Len(t, paid[0].Installments, 3, "all installments are loaded, not only the paid ones")
	assert.True(t, paid[0].Installments[0].Paid)
	assert.Equal(t, "2024-02-10", paid[0].Installments[0].PaymentDate.String())
	assert.False(t, paid[0].Installments[1].Paid)

	jan, _ := core.ParsePeriod("2024-01-01", "2024-01-31")
	byDate, err := repo.ListTransactions(ctx, jan)
	require.NoError(t, err)
	assert.Len(t, byDate, 1)

	require.NoError(t, repo.DeleteTransaction(ctx, "tv"))
	_, err = repo.GetTransaction(ctx, "tv")
	assert.ErrorIs(t, err, ErrNotFound)
}
