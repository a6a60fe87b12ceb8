package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"financas/internal/core"
	"financas/internal/log"
	"financas/internal/recurring"
	"financas/internal/storage"

	"github.com/google/uuid"
)

// RecurringStore is the persistence RecurringProcessor needs.
type RecurringStore interface {
	CreateRecurringItem(ctx context.Context, item core.RecurringItem) error
	GetRecurringItem(ctx context.Context, id string) (core.RecurringItem, error)
	UpdateRecurringItem(ctx context.Context, item core.RecurringItem) error
	SetRecurringEnabled(ctx context.Context, id string, enabled bool) error
	DeleteRecurringItem(ctx context.Context, id string) error
	ListRecurringItems(ctx context.Context) ([]core.RecurringItem, error)
	ListEnabledRecurringItems(ctx context.Context) ([]core.RecurringItem, error)
	FiredPeriods(ctx context.Context, id string, since core.Date) ([]core.Date, error)
	FireRecurring(ctx context.Context, itemID string, fired, next core.Date, tx *core.Transaction) (bool, error)
	GetCard(ctx context.Context, id string) (core.Card, error)
}

// FireSummary reports one ProcessDue run.
type FireSummary struct {
	AsOf      core.Date          `json:"as_of"`
	Checked   int                `json:"checked"`
	Created   []core.Transaction `json:"created"`
	Duplicate int                `json:"duplicate"`
	Failures  []string           `json:"failures,omitempty"`
}

// RecurringProcessor manages recurring items and materializes their due periods
type RecurringProcessor struct {
	store  RecurringStore
	notify notifier
	logger *log.Logger
	loc    *time.Location
}

// NewRecurringProcessor creates a processor. publisher and reports may be nil.
// loc only decides which calendar day is today.
func NewRecurringProcessor(store RecurringStore, publisher Publisher, reports Invalidator, loc *time.Location, logger *log.Logger) *RecurringProcessor {
	if loc == nil {
		loc = time.UTC
	}
	logger = componentLogger(logger, log.ComponentRecurring)
	return &RecurringProcessor{
		store:  store,
		notify: notifier{publisher: publisher, reports: reports, logger: logger},
		logger: logger,
		loc:    loc,
	}
}

// Today returns the current calendar date in the processor's location.
func (p *RecurringProcessor) Today() core.Date {
	return core.Today(p.loc)
}

// CreateItem validates item and stores it enabled, scheduled on its day in
// the current month. ID and schedule fields of item are ignored.
func (p *RecurringProcessor) CreateItem(ctx context.Context, item core.RecurringItem) (core.RecurringItem, error) {
	return p.createItem(ctx, item, p.Today())
}

func (p *RecurringProcessor) createItem(ctx context.Context, item core.RecurringItem, today core.Date) (core.RecurringItem, error) {
	if err := p.prepare(ctx, &item); err != nil {
		return core.RecurringItem{}, err
	}
	item.ID = uuid.NewString()
	item.Enabled = true
	item.LastRun = nil
	item.NextRun = recurring.InitialSchedule(item.DayOfMonth, today)

	if err := p.store.CreateRecurringItem(ctx, item); err != nil {
		return core.RecurringItem{}, fmt.Errorf("create recurring item: %w", err)
	}
	p.logger.InfoContext(ctx, "Recurring item created",
		log.FieldRecurringID, item.ID,
		log.FieldDescription, item.Description,
		log.FieldAmount, item.Amount.String(),
		log.FieldNextRun, item.NextRun.String())
	return item, nil
}

// UpdateItem replaces the editable fields of an item. A new day of month
// moves nextRun within its current month.
func (p *RecurringProcessor) UpdateItem(ctx context.Context, id string, changes core.RecurringItem) (core.RecurringItem, error) {
	current, err := p.store.GetRecurringItem(ctx, id)
	if err != nil {
		return core.RecurringItem{}, fmt.Errorf("get recurring item: %w", err)
	}
	if err := p.prepare(ctx, &changes); err != nil {
		return core.RecurringItem{}, err
	}

	changes.ID = current.ID
	changes.Enabled = current.Enabled
	changes.LastRun = current.LastRun
	changes.NextRun = current.NextRun
	if changes.DayOfMonth != current.DayOfMonth {
		changes.NextRun = recurring.Reschedule(current.NextRun, changes.DayOfMonth)
	}

	if err := p.store.UpdateRecurringItem(ctx, changes); err != nil {
		return core.RecurringItem{}, fmt.Errorf("update recurring item: %w", err)
	}
	return changes, nil
}

// prepare validates item and sets its settlement account.
func (p *RecurringProcessor) prepare(ctx context.Context, item *core.RecurringItem) error {
	if err := item.Validate(); err != nil {
		return err
	}
	if item.Kind != core.KindCard {
		item.CardID = ""
		return nil
	}
	card, err := p.store.GetCard(ctx, item.CardID)
	if errors.Is(err, storage.ErrNotFound) {
		return &core.ValidationError{Field: "card_id", Err: core.ErrUnknownCard}
	}
	if err != nil {
		return fmt.Errorf("get card: %w", err)
	}
	account, err := item.SettlementAccount([]core.Card{card})
	if err != nil {
		return err
	}
	item.AccountID = account
	return nil
}

func (p *RecurringProcessor) SetEnabled(ctx context.Context, id string, enabled bool) (core.RecurringItem, error) {
	if err := p.store.SetRecurringEnabled(ctx, id, enabled); err != nil {
		return core.RecurringItem{}, fmt.Errorf("set enabled: %w", err)
	}
	return p.store.GetRecurringItem(ctx, id)
}

func (p *RecurringProcessor) GetItem(ctx context.Context, id string) (core.RecurringItem, error) {
	return p.store.GetRecurringItem(ctx, id)
}

func (p *RecurringProcessor) DeleteItem(ctx context.Context, id string) error {
	if err := p.store.DeleteRecurringItem(ctx, id); err != nil {
		return fmt.Errorf("delete recurring item: %w", err)
	}
	return nil
}

func (p *RecurringProcessor) ListItems(ctx context.Context) ([]core.RecurringItem, error) {
	return p.store.ListRecurringItems(ctx)
}

// ProcessDue fires every enabled item due on or before asOf. Each period is
// persisted on its own together with the schedule advance, oldest first; a
// failing item stops at the failing period and the run goes on with the
// next item.
func (p *RecurringProcessor) ProcessDue(ctx context.Context, asOf core.Date) (FireSummary, error) {
	if p.store == nil {
		return FireSummary{}, fmt.Errorf("processor not properly initialized")
	}
	items, err := p.store.ListEnabledRecurringItems(ctx)
	if err != nil {
		return FireSummary{}, fmt.Errorf("list enabled recurring items: %w", err)
	}

	summary := FireSummary{AsOf: asOf, Checked: len(items), Created: []core.Transaction{}}
	p.logger.InfoContext(ctx, "Processing recurring items",
		log.FieldCount, len(items),
		log.FieldAsOf, asOf.String())

	for _, item := range items {
		if !recurring.IsDue(item, asOf) {
			continue
		}
		if err := p.fireItem(ctx, item, asOf, &summary); err != nil {
			p.logger.LogError(ctx, "Recurring item not fully processed", err, log.OpFire, log.FieldRecurringID, item.ID)
			summary.Failures = append(summary.Failures, fmt.Sprintf("%s: %v", item.ID, err))
		}
	}

	ids := make([]string, len(summary.Created))
	for i, tx := range summary.Created {
		ids[i] = tx.ID
	}
	p.notify.transactionsChanged(ctx, ids...)

	p.logger.InfoContext(ctx, "Recurring processing complete",
		"created", len(summary.Created),
		"duplicate", summary.Duplicate,
		"failed", len(summary.Failures))
	return summary, nil
}

func (p *RecurringProcessor) fireItem(ctx context.Context, item core.RecurringItem, asOf core.Date, summary *FireSummary) error {
	fired, err := p.store.FiredPeriods(ctx, item.ID, item.NextRun)
	if err != nil {
		return err
	}
	exists := func(k recurring.PeriodKey) bool {
		return slices.Contains(fired, k.Period)
	}

	res := recurring.FireDue([]core.RecurringItem{item}, asOf, exists)
	for _, f := range res.Firings {
		var tx *core.Transaction
		if !f.Duplicate {
			t := f.Transaction
			tx = &t
		}
		inserted, err := p.store.FireRecurring(ctx, item.ID, f.Key.Period, f.Next, tx)
		if err != nil {
			return fmt.Errorf("fire period %s: %w", f.Key.Period, err)
		}
		if !inserted {
			summary.Duplicate++
			continue
		}
		summary.Created = append(summary.Created, *tx)
	}
	return nil
}
