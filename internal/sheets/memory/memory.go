// Package memory is an in-process sheets sink for local runs and tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"spesevoce/internal/core"
	ports "spesevoce/internal/sheets"
)

type Store struct {
	mu    sync.Mutex
	items []core.Expense
	ids   map[int64]struct{}
}

var _ ports.Sink = (*Store)(nil)

func New() *Store {
	return &Store{ids: make(map[int64]struct{})}
}

// Append stores the expense and returns a synthetic row reference.
func (s *Store) Append(_ context.Context, e core.Expense) (string, error) {
	if err := e.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, e)
	s.ids[e.ID] = struct{}{}
	return fmt.Sprintf("mem:%d", len(s.items)), nil
}

func (s *Store) Contains(_ context.Context, e core.Expense) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[e.ID]
	return ok, nil
}

// Rows returns a copy of everything appended so far.
func (s *Store) Rows() []core.Expense {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Expense(nil), s.items...)
}
