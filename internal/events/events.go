// Package events carries "expense recorded" notifications between the API
// and the sheets sync worker.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"spesevoce/internal/core"
)

// Publisher announces expenses after they are recorded in the ledger.
type Publisher interface {
	PublishExpenseRecorded(ctx context.Context, e core.Expense) error
	Close() error
}

// Handler processes one decoded message. A returned error asks the broker
// to redeliver.
type Handler func(ctx context.Context, msg *ExpenseRecordedMessage) error

// Noop discards every event. Used when EVENTS_BACKEND=none.
type Noop struct{}

func (Noop) PublishExpenseRecorded(context.Context, core.Expense) error { return nil }
func (Noop) Close() error                                               { return nil }

// ExpenseRecordedMessage is the wire form of a recorded expense. It carries
// the full expense so consumers never query the API's store.
type ExpenseRecordedMessage struct {
	Expense     core.Expense `json:"expense"`
	PublishedAt time.Time    `json:"publishedAt"`
}

func NewExpenseRecordedMessage(e core.Expense) *ExpenseRecordedMessage {
	return &ExpenseRecordedMessage{Expense: e, PublishedAt: time.Now().UTC()}
}

func (m *ExpenseRecordedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// Key identifies the expense; brokers use it for partitioning and dedup.
func (m *ExpenseRecordedMessage) Key() string {
	return fmt.Sprintf("%d", m.Expense.ID)
}

func ExpenseRecordedMessageFromJSON(data []byte) (*ExpenseRecordedMessage, error) {
	var msg ExpenseRecordedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Expense.ID == 0 {
		return nil, fmt.Errorf("message has no expense id")
	}
	return &msg, nil
}
