package worker

import (
	"context"
	"errors"
	"fmt"

	"financas/internal/amqp"
	"financas/internal/core"
	"financas/internal/log"
	"financas/internal/sheets"
	"financas/internal/storage"
)

// TransactionReader is the store access of the sync worker.
type TransactionReader interface {
	GetTransaction(ctx context.Context, id string) (core.Transaction, error)
	ListTransactions(ctx context.Context, p core.Period) ([]core.Transaction, error)
}

// SyncWorker copies stored transactions to the external ledger
type SyncWorker struct {
	store  TransactionReader
	writer sheets.TransactionWriter
	logger *log.Logger
}

func NewSyncWorker(store TransactionReader, writer sheets.TransactionWriter, logger *log.Logger) *SyncWorker {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &SyncWorker{
		store:  store,
		writer: writer,
		logger: logger.WithComponent(log.ComponentWorker),
	}
}

// HandleSyncMessage processes a single sync message from AMQP. A transaction
// deleted since the message was published is skipped.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.TransactionSyncMessage) error {
	w.logger.InfoContext(ctx, "Processing sync message",
		log.FieldTransactionID, msg.TransactionID,
		log.FieldMessageID, msg.MessageID)

	tx, err := w.store.GetTransaction(ctx, msg.TransactionID)
	if errors.Is(err, storage.ErrNotFound) {
		w.logger.WarnContext(ctx, "Transaction no longer exists, skipping", log.FieldTransactionID, msg.TransactionID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get transaction from storage: %w", err)
	}

	return w.sync(ctx, tx)
}

// Backfill pushes the transactions dated inside p that the ledger does not
// hold yet and returns how many it appended. This recovers messages lost
// while the broker was down. A ledger that can list its rows is read once
// up front; otherwise every row goes through the idempotent Append.
func (w *SyncWorker) Backfill(ctx context.Context, p core.Period) (int, error) {
	txs, err := w.store.ListTransactions(ctx, p)
	if err != nil {
		return 0, fmt.Errorf("list transactions: %w", err)
	}
	present, err := w.presentIDs(ctx)
	if err != nil {
		return 0, err
	}

	synced := 0
	for _, tx := range txs {
		if err := ctx.Err(); err != nil {
			return synced, err
		}
		if _, ok := present[tx.ID]; ok {
			continue
		}
		if err := w.sync(ctx, tx); err != nil {
			return synced, err
		}
		synced++
	}
	w.logger.InfoContext(ctx, "Backfill complete",
		log.FieldOperation, log.OpSync,
		log.FieldPeriod, p.String(),
		log.FieldCount, synced,
		"already_present", len(txs)-synced)
	return synced, nil
}

// presentIDs returns the transaction ids already in the ledger, or an empty
// set when the writer cannot list its rows.
func (w *SyncWorker) presentIDs(ctx context.Context) (map[string]struct{}, error) {
	lister, ok := w.writer.(sheets.TransactionLister)
	if !ok {
		return map[string]struct{}{}, nil
	}
	rows, err := lister.ListRows(ctx)
	if err != nil {
		return nil, fmt.Errorf("list ledger rows: %w", err)
	}
	ids := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		ids[r.TransactionID] = struct{}{}
	}
	return ids, nil
}

func (w *SyncWorker) sync(ctx context.Context, tx core.Transaction) error {
	ref, err := w.writer.Append(ctx, sheets.NewRow(tx))
	if err != nil {
		w.logger.LogError(ctx, "Failed to sync transaction", err, log.OpSync, log.FieldTransactionID, tx.ID)
		return fmt.Errorf("sync transaction %s: %w", tx.ID, err)
	}
	w.logger.InfoContext(ctx, "Transaction synced",
		log.FieldTransactionID, tx.ID,
		log.FieldSheetsRef, ref)
	return nil
}
