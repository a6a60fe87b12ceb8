package services

import (
	"context"
	"errors"
	"fmt"

	"financas/internal/core"
	"financas/internal/log"
	"financas/internal/storage"

	"github.com/google/uuid"
)

// TransactionStore is the persistence TransactionService needs.
type TransactionStore interface {
	CreateTransaction(ctx context.Context, tx core.Transaction) error
	GetTransaction(ctx context.Context, id string) (core.Transaction, error)
	ListTransactions(ctx context.Context, p core.Period) ([]core.Transaction, error)
	SaveInstallments(ctx context.Context, tx core.Transaction) error
	DeleteTransaction(ctx context.Context, id string) error
	GetCard(ctx context.Context, id string) (core.Card, error)
}

// TransactionService orchestrates transaction writes across SQLite, AMQP
// and the report cache.
type TransactionService struct {
	store  TransactionStore
	notify notifier
	logger *log.Logger
}

func NewTransactionService(store TransactionStore, publisher Publisher, reports Invalidator, logger *log.Logger) *TransactionService {
	logger = componentLogger(logger, log.ComponentApp)
	return &TransactionService{
		store:  store,
		notify: notifier{publisher: publisher, reports: reports, logger: logger},
		logger: logger,
	}
}

// Create validates p, splits it into installments and saves it.
// Card transactions are settled through the card's account.
func (s *TransactionService) Create(ctx context.Context, p core.TransactionParams) (core.Transaction, error) {
	if p.Kind == core.KindCard && p.CardID != "" {
		card, err := s.store.GetCard(ctx, p.CardID)
		if errors.Is(err, storage.ErrNotFound) {
			return core.Transaction{}, &core.ValidationError{Field: "card_id", Err: core.ErrUnknownCard}
		}
		if err != nil {
			return core.Transaction{}, fmt.Errorf("get card: %w", err)
		}
		p.AccountID = card.AccountID
	}

	tx, err := core.NewTransaction(p)
	if err != nil {
		return core.Transaction{}, err
	}
	tx.ID = uuid.NewString()

	if err := s.store.CreateTransaction(ctx, tx); err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}
	s.notify.transactionsChanged(ctx, tx.ID)
	return tx, nil
}

func (s *TransactionService) Get(ctx context.Context, id string) (core.Transaction, error) {
	return s.store.GetTransaction(ctx, id)
}

// List returns the transactions dated inside p.
func (s *TransactionService) List(ctx context.Context, p core.Period) ([]core.Transaction, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return s.store.ListTransactions(ctx, p)
}

// PayInstallment settles installment n on the given date. A nil amount pays
// the scheduled amount.
func (s *TransactionService) PayInstallment(ctx context.Context, id string, n int, on core.Date, amount *core.Money) (core.Transaction, error) {
	return s.updateInstallment(ctx, id, func(tx *core.Transaction) error {
		return tx.PayInstallment(n, on, amount)
	})
}

func (s *TransactionService) UnpayInstallment(ctx context.Context, id string, n int) (core.Transaction, error) {
	return s.updateInstallment(ctx, id, func(tx *core.Transaction) error {
		return tx.UnpayInstallment(n)
	})
}

func (s *TransactionService) updateInstallment(ctx context.Context, id string, change func(*core.Transaction) error) (core.Transaction, error) {
	tx, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return core.Transaction{}, err
	}
	if err := change(&tx); err != nil {
		return core.Transaction{}, err
	}
	if err := s.store.SaveInstallments(ctx, tx); err != nil {
		return core.Transaction{}, fmt.Errorf("save installments: %w", err)
	}
	if s.notify.reports != nil {
		s.notify.reports.Invalidate()
	}
	return tx, nil
}

func (s *TransactionService) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteTransaction(ctx, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if s.notify.reports != nil {
		s.notify.reports.Invalidate()
	}
	return nil
}
