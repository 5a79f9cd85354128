package core

import (
	"encoding/json"
	"fmt"
	"time"
)

type expenseJSON struct {
	ID         int64      `json:"id"`
	Timestamp  string     `json:"timestamp"`
	Transcript string     `json:"transcript"`
	Amount     string     `json:"amount"`
	Currency   Currency   `json:"currency"`
	Category   string     `json:"category"`
	Confidence Confidence `json:"confidence"`
	Sentiment  string     `json:"sentiment,omitempty"`
	Entities   []Entity   `json:"entities,omitempty"`
}

// MarshalJSON writes the timestamp as a UTC ISO-8601 string with milliseconds.
func (e Expense) MarshalJSON() ([]byte, error) {
	return json.Marshal(expenseJSON{
		ID:         e.ID,
		Timestamp:  e.FormatTimestamp(),
		Transcript: e.Transcript,
		Amount:     e.Amount,
		Currency:   e.Currency,
		Category:   e.Category,
		Confidence: e.Confidence,
		Sentiment:  e.Sentiment,
		Entities:   e.Entities,
	})
}

func (e *Expense) UnmarshalJSON(data []byte) error {
	var raw expenseJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	ts, err := ParseTimestamp(raw.Timestamp)
	if err != nil {
		return err
	}
	*e = Expense{
		ID:         raw.ID,
		Timestamp:  ts,
		Transcript: raw.Transcript,
		Amount:     raw.Amount,
		Currency:   raw.Currency,
		Category:   raw.Category,
		Confidence: raw.Confidence,
		Sentiment:  raw.Sentiment,
		Entities:   raw.Entities,
	}
	return nil
}

// ParseTimestamp accepts TimestampLayout and plain RFC 3339 values.
func ParseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(TimestampLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, s)
	}
	return t, nil
}
