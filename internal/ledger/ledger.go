// Package ledger records expenses and answers the aggregate queries on them.
package ledger

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sync"
	"time"

	"spesevoce/internal/core"
)

const (
	// RecentSummaryLimit is how many expenses the daily summary lists.
	RecentSummaryLimit = 10
	// RecentSpeechLimit is how many expenses a speech response lists.
	RecentSpeechLimit = 5
)

// CSVHeader is the first row of every export.
var CSVHeader = []string{"Date", "Amount", "Currency", "Category", "Description"}

// Store is the persistence port. Append assigns the ID; List returns the
// expenses of one currency in insertion order.
type Store interface {
	Append(ctx context.Context, e core.Expense) (core.Expense, error)
	List(ctx context.Context, currency core.Currency) ([]core.Expense, error)
	Close() error
}

// Ledger is append-only. Appends are serialised so IDs follow insertion order.
type Ledger struct {
	mu       sync.Mutex
	store    Store
	location *time.Location
}

// New returns a ledger grouping days in loc. A nil loc means time.Local.
func New(store Store, loc *time.Location) *Ledger {
	if loc == nil {
		loc = time.Local
	}
	return &Ledger{store: store, location: loc}
}

func (l *Ledger) Location() *time.Location {
	return l.location
}

// Record validates and appends e, returning it with its assigned ID.
func (l *Ledger) Record(ctx context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	saved, err := l.store.Append(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("append expense: %w", err)
	}
	return saved, nil
}

// Today returns the expenses of currency recorded on the calendar day of asOf.
func (l *Ledger) Today(ctx context.Context, currency core.Currency, asOf time.Time) ([]core.Expense, error) {
	all, err := l.store.List(ctx, currency)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	day := asOf.In(l.location)
	out := make([]core.Expense, 0, len(all))
	for _, e := range all {
		if sameDay(e.Timestamp.In(l.location), day) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (l *Ledger) DailyTotal(ctx context.Context, currency core.Currency, asOf time.Time) (int64, error) {
	today, err := l.Today(ctx, currency, asOf)
	if err != nil {
		return 0, err
	}
	return sum(today), nil
}

// RecentExpenses returns up to limit of today's expenses, oldest first.
func (l *Ledger) RecentExpenses(ctx context.Context, currency core.Currency, asOf time.Time, limit int) ([]core.Expense, error) {
	today, err := l.Today(ctx, currency, asOf)
	if err != nil {
		return nil, err
	}
	return tail(today, limit), nil
}

func (l *Ledger) DailySummary(ctx context.Context, currency core.Currency, asOf time.Time) (core.DailySummary, error) {
	today, err := l.Today(ctx, currency, asOf)
	if err != nil {
		return core.DailySummary{}, err
	}
	breakdown := make(map[string]int64)
	for _, e := range today {
		cat := e.Category
		if cat == "" {
			cat = core.UncategorizedBucket
		}
		breakdown[cat] += e.Value()
	}
	return core.DailySummary{
		TotalExpenses:     len(today),
		DailyTotal:        sum(today),
		CategoryBreakdown: breakdown,
		RecentExpenses:    tail(today, RecentSummaryLimit),
		Currency:          currency,
		CurrencySymbol:    currency.Symbol(),
	}, nil
}

// ExportCSV writes every expense of currency, across all days, in insertion order.
func (l *Ledger) ExportCSV(ctx context.Context, w io.Writer, currency core.Currency) error {
	all, err := l.store.List(ctx, currency)
	if err != nil {
		return fmt.Errorf("list expenses: %w", err)
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, e := range all {
		row := []string{e.FormatTimestamp(), e.Amount, string(e.Currency), e.Category, e.Transcript}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row %d: %w", e.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func sum(es []core.Expense) int64 {
	var total int64
	for _, e := range es {
		total += e.Value()
	}
	return total
}

func tail(es []core.Expense, n int) []core.Expense {
	if n <= 0 {
		return []core.Expense{}
	}
	if len(es) > n {
		es = es[len(es)-n:]
	}
	out := make([]core.Expense, len(es))
	copy(out, es)
	return out
}
