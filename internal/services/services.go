package services

import (
	"context"

	"financas/internal/log"
)

// Publisher announces stored transactions to the sync worker.
type Publisher interface {
	PublishTransactionSync(ctx context.Context, transactionID string) error
}

// Invalidator drops derived data after transactions change.
type Invalidator interface {
	Invalidate()
}

// notifier fans stored transactions out to the publisher and the report cache.
// Both are optional and their failures never fail the write.
type notifier struct {
	publisher Publisher
	reports   Invalidator
	logger    *log.Logger
}

func (n notifier) transactionsChanged(ctx context.Context, ids ...string) {
	if len(ids) == 0 {
		return
	}
	if n.reports != nil {
		n.reports.Invalidate()
	}
	if n.publisher == nil {
		n.logger.DebugContext(ctx, "No publisher configured, skipping sync messages", log.FieldCount, len(ids))
		return
	}
	for _, id := range ids {
		if err := n.publisher.PublishTransactionSync(ctx, id); err != nil {
			n.logger.LogError(ctx, "Failed to publish sync message", err, log.OpPublish, log.FieldTransactionID, id)
		}
	}
}

func componentLogger(logger *log.Logger, component string) *log.Logger {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return logger.WithComponent(component)
}
