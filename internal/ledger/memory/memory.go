// Package memory is the default in-process ledger store.
package memory

import (
	"context"
	"sync"

	"spesevoce/internal/core"
	"spesevoce/internal/ledger"
)

// Store keeps expenses in a slice. Reads return copies.
type Store struct {
	mu       sync.RWMutex
	expenses []core.Expense
	nextID   int64
}

var _ ledger.Store = (*Store)(nil)

func New() *Store {
	return &Store{nextID: 1}
}

func (s *Store) Append(ctx context.Context, e core.Expense) (core.Expense, error) {
	if err := ctx.Err(); err != nil {
		return core.Expense{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e.ID = s.nextID
	s.nextID++
	e.Entities = append([]core.Entity(nil), e.Entities...)
	s.expenses = append(s.expenses, e)
	return e, nil
}

func (s *Store) List(ctx context.Context, currency core.Currency) ([]core.Expense, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]core.Expense, 0, len(s.expenses))
	for _, e := range s.expenses {
		if e.Currency == currency {
			out = append(out, e)
		}
	}
	return out, nil
}

// Len returns the number of stored expenses across currencies.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.expenses)
}

func (s *Store) Close() error { return nil }
