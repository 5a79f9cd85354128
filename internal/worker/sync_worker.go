// Package worker copies recorded expenses into the spreadsheet sink.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/avast/retry-go"

	"spesevoce/internal/core"
	"spesevoce/internal/events"
	"spesevoce/internal/log"
	"spesevoce/internal/sheets"
)

const (
	DefaultRetryAttempts = 3
	DefaultRetryDelay    = 2 * time.Second
)

// SyncWorker handles expense recorded events by appending a sheet row.
type SyncWorker struct {
	sink     sheets.Sink
	attempts uint
	delay    time.Duration
	logger   *log.Logger
}

type Option func(*SyncWorker)

func WithRetry(attempts uint, delay time.Duration) Option {
	return func(w *SyncWorker) {
		if attempts > 0 {
			w.attempts = attempts
		}
		if delay >= 0 {
			w.delay = delay
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(w *SyncWorker) {
		if l != nil {
			w.logger = l.WithComponent(log.ComponentWorker)
		}
	}
}

func NewSyncWorker(sink sheets.Sink, opts ...Option) *SyncWorker {
	w := &SyncWorker{
		sink:     sink,
		attempts: DefaultRetryAttempts,
		delay:    DefaultRetryDelay,
		logger:   log.Discard(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// HandleExpenseRecorded is an events.Handler. Invalid expenses are dropped
// with an error log since redelivery cannot fix them.
func (w *SyncWorker) HandleExpenseRecorded(ctx context.Context, msg *events.ExpenseRecordedMessage) error {
	e := msg.Expense
	fields := log.NewFields().
		WithOperation(log.OpAppend).
		WithExpense(e.ID, e.Amount, string(e.Currency), e.Category, string(e.Confidence))

	if err := e.Validate(); err != nil {
		w.logger.ErrorContext(ctx, "Dropping invalid expense", fields.WithError(err).ToSlice()...)
		return nil
	}

	present, err := w.sink.Contains(ctx, e)
	if err != nil {
		w.logger.WarnContext(ctx, "Could not check for existing row, appending anyway",
			append(fields.ToSlice(), log.FieldError, err)...)
	} else if present {
		w.logger.InfoContext(ctx, "Expense already synced, skipping", fields.ToSlice()...)
		return nil
	}

	var ref string
	err = retry.Do(
		func() error {
			r, err := w.sink.Append(ctx, e)
			if err != nil {
				return err
			}
			ref = r
			return nil
		},
		retry.RetryIf(func(err error) bool {
			return !core.IsValidation(err) && ctx.Err() == nil
		}),
		retry.OnRetry(func(n uint, err error) {
			w.logger.WarnContext(ctx, "Sheets append failed, will retry",
				append(fields.ToSlice(), "attempt", n+1, log.FieldError, err)...)
		}),
		retry.Attempts(w.attempts),
		retry.Delay(w.delay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return fmt.Errorf("append to sheets: %w", err)
	}

	w.logger.InfoContext(ctx, "Successfully synced expense",
		append(fields.ToSlice(), "sheets_ref", ref)...)
	return nil
}
