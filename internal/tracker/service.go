// Package tracker owns the state behind the API: the currency preference,
// the ledger, the extraction pipeline and the event publisher.
package tracker

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"spesevoce/internal/core"
	"spesevoce/internal/events"
	"spesevoce/internal/ledger"
	"spesevoce/internal/log"
)

// Extractor turns a transcript into an extraction.
type Extractor interface {
	Extract(ctx context.Context, text string) core.Extraction
}

// SpeechResult is the response to one processed transcript. The extraction
// fields are flattened into the JSON object.
type SpeechResult struct {
	Transcript string `json:"transcript"`
	core.Extraction
	Recorded       bool           `json:"recorded"`
	Expense        *core.Expense  `json:"expense,omitempty"`
	DailyTotal     int64          `json:"dailyTotal"`
	TodayExpenses  []core.Expense `json:"todayExpenses"`
	CurrencySymbol string         `json:"currencySymbol"`
}

type Service struct {
	ledger    *ledger.Ledger
	extractor Extractor
	pref      *Preference
	publisher events.Publisher
	now       func() time.Time
	logger    *log.Logger
	events    *log.StructuredLogger
}

type Option func(*Service)

func WithPublisher(p events.Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithClock replaces time.Now for timestamps and "today".
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l.WithComponent(log.ComponentTracker)
		}
	}
}

func NewService(l *ledger.Ledger, x Extractor, pref *Preference, opts ...Option) *Service {
	s := &Service{
		ledger:    l,
		extractor: x,
		pref:      pref,
		publisher: events.Noop{},
		now:       time.Now,
		logger:    log.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.events = log.NewStructuredLogger(s.logger)
	return s
}

// ProcessSpeech extracts an expense from text and records it when both amount
// and category were found. Publishing failures are logged, not returned.
func (s *Service) ProcessSpeech(ctx context.Context, text string) (SpeechResult, error) {
	if strings.TrimSpace(text) == "" {
		return SpeechResult{}, core.ErrTextRequired
	}

	x := s.extractor.Extract(ctx, text)
	now := s.now()
	res := SpeechResult{Transcript: text, Extraction: x}

	if x.Complete() {
		e, err := core.NewExpense(text, x, now)
		if err != nil {
			return SpeechResult{}, err
		}
		saved, err := s.ledger.Record(ctx, e)
		if err != nil {
			return SpeechResult{}, fmt.Errorf("record expense: %w", err)
		}
		res.Recorded = true
		res.Expense = &saved
		s.events.LogExpenseRecorded(ctx, saved.ID, saved.Amount, string(saved.Currency), saved.Category, string(saved.Confidence))
		s.publish(ctx, saved)
	}

	cur := x.Currency
	if cur == "" {
		cur = s.pref.Currency()
	}
	total, err := s.ledger.DailyTotal(ctx, cur, now)
	if err != nil {
		return SpeechResult{}, fmt.Errorf("daily total: %w", err)
	}
	recent, err := s.ledger.RecentExpenses(ctx, cur, now, ledger.RecentSpeechLimit)
	if err != nil {
		return SpeechResult{}, fmt.Errorf("recent expenses: %w", err)
	}
	res.DailyTotal = total
	res.TodayExpenses = recent
	res.CurrencySymbol = cur.Symbol()
	return res, nil
}

func (s *Service) publish(ctx context.Context, e core.Expense) {
	if err := s.publisher.PublishExpenseRecorded(ctx, e); err != nil {
		s.events.LogError(ctx, "Failed to publish expense recorded event", err, log.OpPublish,
			log.NewFields().WithExpense(e.ID, e.Amount, string(e.Currency), e.Category, string(e.Confidence)))
	}
}

func (s *Service) Currency() core.Currency {
	return s.pref.Currency()
}

func (s *Service) SetCurrency(raw string) (core.Currency, error) {
	c, err := s.pref.Set(raw)
	if err != nil {
		return "", err
	}
	s.logger.Info("Currency preference changed", log.FieldCurrency, c)
	return c, nil
}

// DailySummary reports today's ledger for currency, or for the preference
// when currency is empty.
func (s *Service) DailySummary(ctx context.Context, currency string) (core.DailySummary, error) {
	cur := core.Currency(currency)
	if cur == "" {
		cur = s.pref.Currency()
	}
	return s.ledger.DailySummary(ctx, cur, s.now())
}

// ExportCSV writes every expense of currency (USD when empty) as CSV.
func (s *Service) ExportCSV(ctx context.Context, w io.Writer, currency string) error {
	cur := core.Currency(currency)
	if cur == "" {
		cur = core.USD
	}
	return s.ledger.ExportCSV(ctx, w, cur)
}

// Today is the service clock's current day, used for export file names.
func (s *Service) Today() time.Time {
	return s.now().In(s.ledger.Location())
}

// Close releases the publisher. The ledger store is owned by the caller.
func (s *Service) Close() error {
	if err := s.publisher.Close(); err != nil {
		return fmt.Errorf("close publisher: %w", err)
	}
	return nil
}
