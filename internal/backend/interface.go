package backend

import (
	"context"

	"spesevoce/internal/annotator"
	"spesevoce/internal/events"
	"spesevoce/internal/ledger"
	"spesevoce/internal/sheets"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the ledger store, its readiness probe and cleanup.
type BackendResult struct {
	Store   ledger.Store
	Ping    func(context.Context) error
	Cleanup CleanupFunc
}

type AnnotatorResult struct {
	Annotator annotator.Annotator
	Provider  string
	Cache     string
	Cleanup   CleanupFunc
}

type PublisherResult struct {
	Publisher events.Publisher
	Backend   string
}

// Consumer delivers expense recorded events until ctx is cancelled.
type Consumer interface {
	Consume(ctx context.Context, handler events.Handler) error
	Close() error
}

type SinkResult struct {
	Sink    sheets.Sink
	Backend string
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
	CreateAnnotator(ctx context.Context, config Config) (*AnnotatorResult, error)
	CreatePublisher(ctx context.Context, config Config) (*PublisherResult, error)
	CreateConsumer(ctx context.Context, config Config) (Consumer, error)
	CreateSink(ctx context.Context, config Config) (*SinkResult, error)
}

// BackendType represents the type of ledger store
type BackendType string

const (
	MemoryBackend   BackendType = "memory"
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend, PostgresBackend:
		return true
	default:
		return false
	}
}

const (
	AnnotatorNone   = "none"
	AnnotatorGoogle = "google"
	AnnotatorGemini = "gemini"

	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"

	EventsNone  = "none"
	EventsAMQP  = "amqp"
	EventsKafka = "kafka"
)
