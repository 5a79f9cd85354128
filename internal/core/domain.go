package core

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// TimestampLayout is how expense timestamps are rendered in JSON and CSV.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Entity types reported by annotators. Values follow the provider vocabulary
// so that recorded expenses keep the raw type names.
const (
	EntityOther          EntityType = "OTHER"
	EntityCommercialItem EntityType = "COMMERCIAL_ITEM"
	EntityOrganization   EntityType = "ORGANIZATION"
	EntityPerson         EntityType = "PERSON"
	EntityLocation       EntityType = "LOCATION"
	EntityEvent          EntityType = "EVENT"
	EntityDate           EntityType = "DATE"
	EntityQuantity       EntityType = "QUANTITY"
	EntityTitle          EntityType = "TITLE"
)

type (
	Confidence string

	EntityType string

	// Entity is a labelled span of the input text.
	Entity struct {
		Text  string     `json:"text"`
		Type  EntityType `json:"type"`
		Score float64    `json:"score"`
	}

	// Annotation is what an annotator returns for one piece of text.
	Annotation struct {
		Entities  []Entity `json:"entities"`
		Sentiment string   `json:"sentiment"`
	}

	// Extraction is the outcome of running the pipeline on a transcript.
	// Amount and Category are nil when nothing matched.
	Extraction struct {
		Amount     *string    `json:"amount"`
		Currency   Currency   `json:"currency"`
		Category   *string    `json:"category"`
		Confidence Confidence `json:"confidence"`
		Sentiment  string     `json:"sentiment,omitempty"`
		Entities   []Entity   `json:"entities,omitempty"`
	}

	// Expense is a recorded spending event. JSON encoding lives in json.go.
	Expense struct {
		ID         int64
		Timestamp  time.Time
		Transcript string
		Amount     string // digits only, commas stripped
		Currency   Currency
		Category   string
		Confidence Confidence
		Sentiment  string
		Entities   []Entity
	}
)

var (
	ErrTextRequired     = errors.New("text required")
	ErrInvalidCurrency  = errors.New("invalid currency")
	ErrMissingAmount    = errors.New("missing amount")
	ErrMissingCategory  = errors.New("missing category")
	ErrInvalidTimestamp = errors.New("invalid timestamp")
)

// IsValidation reports whether err is caused by bad caller input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrTextRequired) ||
		errors.Is(err, ErrInvalidCurrency) ||
		errors.Is(err, ErrMissingAmount) ||
		errors.Is(err, ErrMissingCategory)
}

func (c Confidence) Valid() bool {
	switch c {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
		return true
	}
	return false
}

// Complete reports whether the extraction carries enough to be recorded.
func (x Extraction) Complete() bool {
	return x.Amount != nil && *x.Amount != "" && x.Category != nil && *x.Category != ""
}

// Value is the integer value of the amount. Non-numeric amounts count as 0.
func (e Expense) Value() int64 {
	v, err := strconv.ParseInt(strings.ReplaceAll(e.Amount, ",", ""), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func (e Expense) Validate() error {
	if strings.TrimSpace(e.Amount) == "" {
		return ErrMissingAmount
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrMissingCategory
	}
	if e.Timestamp.IsZero() {
		return ErrInvalidTimestamp
	}
	return nil
}

// FormatTimestamp renders the expense timestamp in UTC.
func (e Expense) FormatTimestamp() string {
	return e.Timestamp.UTC().Format(TimestampLayout)
}

// NewExpense builds an expense from a complete extraction.
func NewExpense(transcript string, x Extraction, at time.Time) (Expense, error) {
	if x.Amount == nil || *x.Amount == "" {
		return Expense{}, ErrMissingAmount
	}
	if x.Category == nil || *x.Category == "" {
		return Expense{}, ErrMissingCategory
	}
	e := Expense{
		Timestamp:  at,
		Transcript: transcript,
		Amount:     *x.Amount,
		Currency:   x.Currency,
		Category:   *x.Category,
		Confidence: x.Confidence,
		Sentiment:  x.Sentiment,
	}
	if len(x.Entities) > 0 {
		e.Entities = append([]Entity(nil), x.Entities...)
	}
	return e, nil
}
