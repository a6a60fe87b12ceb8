package memory

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"financas/internal/sheets"
)

var _ interface {
	sheets.TransactionWriter
	sheets.TransactionLister
} = (*Store)(nil)

// Store is an in-process ledger used when no spreadsheet is configured.
type Store struct {
	mu    sync.Mutex
	rows  []sheets.Row
	index map[string]int
}

func New() *Store {
	return &Store{index: make(map[string]int)}
}

// Append stores the row and returns a synthetic row reference.
func (s *Store) Append(_ context.Context, row sheets.Row) (string, error) {
	if row.TransactionID == "" {
		return "", errors.New("row without transaction id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.index[row.TransactionID]; ok {
		return ref(i), nil
	}
	s.rows = append(s.rows, row)
	s.index[row.TransactionID] = len(s.rows) - 1
	return ref(len(s.rows) - 1), nil
}

// ListRows returns the stored rows in append order.
func (s *Store) ListRows(_ context.Context) ([]sheets.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.rows), nil
}

func ref(i int) string {
	return fmt.Sprintf("mem:%d", i+1)
}
