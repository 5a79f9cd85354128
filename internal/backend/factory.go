package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"spesevoce/internal/amqp"
	"spesevoce/internal/annotator"
	"spesevoce/internal/annotator/gemini"
	"spesevoce/internal/annotator/google"
	"spesevoce/internal/cache"
	"spesevoce/internal/core"
	"spesevoce/internal/events"
	"spesevoce/internal/kafka"
	"spesevoce/internal/ledger/memory"
	"spesevoce/internal/log"
	gsheet "spesevoce/internal/sheets/google"
	sheetsmem "spesevoce/internal/sheets/memory"
	"spesevoce/internal/storage"
	"spesevoce/internal/storage/postgres"
)

const (
	cacheCleanupInterval = 5 * time.Minute
	redisCachePrefix     = "spesevoce:annotation:"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

func NewFactory(logger *log.Logger) *DefaultFactory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
	}
}

var _ Factory = (*DefaultFactory)(nil)

// CreateBackend builds the ledger store.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(config)
	case PostgresBackend:
		return f.createPostgresBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend()
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	store, err := storage.NewSQLiteStore(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
	}
	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	return &BackendResult{Store: store, Ping: store.Ping, Cleanup: store.Close}, nil
}

func (f *DefaultFactory) createPostgresBackend(ctx context.Context, config Config) (*BackendResult, error) {
	store, err := postgres.New(ctx, config.Postgres, f.logger.Slog())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL store: %w", err)
	}
	return &BackendResult{Store: store, Ping: store.Ping, Cleanup: store.Close}, nil
}

func (f *DefaultFactory) createMemoryBackend() (*BackendResult, error) {
	store := memory.New()
	f.logger.Info("Initialized memory backend")
	return &BackendResult{
		Store:   store,
		Ping:    func(context.Context) error { return nil },
		Cleanup: store.Close,
	}, nil
}

// CreateAnnotator builds the entity annotator, wrapped in the configured cache.
func (f *DefaultFactory) CreateAnnotator(ctx context.Context, config Config) (*AnnotatorResult, error) {
	var (
		a       annotator.Annotator
		cleanup CleanupFunc
	)
	switch config.AnnotatorProvider {
	case "", AnnotatorNone:
		f.logger.Info("No annotator configured, using pattern extraction only")
		return &AnnotatorResult{Annotator: annotator.Disabled{}, Provider: AnnotatorNone, Cache: CacheNone}, nil
	case AnnotatorGoogle:
		c, err := google.New(ctx, google.Config{
			APIKey:          config.GoogleAPIKey,
			CredentialsFile: config.GoogleLanguageCredsFile,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Google annotator: %w", err)
		}
		a = c
	case AnnotatorGemini:
		c, err := gemini.New(ctx, config.GeminiAPIKey, config.GeminiModel)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Gemini annotator: %w", err)
		}
		a, cleanup = c, c.Close
	default:
		return nil, fmt.Errorf("unsupported annotator provider: %s", config.AnnotatorProvider)
	}

	store, cacheName, cacheCleanup := f.createAnnotationCache(ctx, config)
	if store != nil {
		a = annotator.NewCached(a, store)
	}
	return &AnnotatorResult{
		Annotator: a,
		Provider:  config.AnnotatorProvider,
		Cache:     cacheName,
		Cleanup:   chain(cleanup, cacheCleanup),
	}, nil
}

// createAnnotationCache falls back to memory when Redis is unreachable.
func (f *DefaultFactory) createAnnotationCache(ctx context.Context, config Config) (cache.Cache[core.Annotation], string, CleanupFunc) {
	switch config.AnnotationCache {
	case CacheRedis:
		client, err := cache.NewRedisClient(ctx, config.RedisAddr)
		if err == nil {
			f.logger.Info("Annotation cache using Redis", "addr", config.RedisAddr)
			return cache.NewRedisCache[core.Annotation](client, redisCachePrefix, config.AnnotationCacheTTL), CacheRedis, client.Close
		}
		f.logger.Warn("Redis unavailable, falling back to in-memory annotation cache", log.FieldError, err)
		fallthrough
	case CacheMemory:
		size := config.AnnotationCacheSize
		if size <= 0 {
			size = 500
		}
		lru := cache.NewLRUCache[core.Annotation](size, config.AnnotationCacheTTL)
		manager := cache.NewManager()
		manager.Register(lru)
		manager.StartCleanup(cacheCleanupInterval)
		return lru, CacheMemory, func() error {
			manager.Stop()
			return nil
		}
	default:
		return nil, CacheNone, nil
	}
}

// CreatePublisher builds the event publisher. An unreachable AMQP broker
// leaves the API running without sync.
func (f *DefaultFactory) CreatePublisher(ctx context.Context, config Config) (*PublisherResult, error) {
	switch config.EventsBackend {
	case "", EventsNone:
		return &PublisherResult{Publisher: events.Noop{}, Backend: EventsNone}, nil
	case EventsAMQP:
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without sync", log.FieldError, err)
			return &PublisherResult{Publisher: events.Noop{}, Backend: EventsNone}, nil
		}
		f.logger.Info("Initialized AMQP client",
			"exchange", config.AMQPExchange,
			"queue", config.AMQPQueue)
		return &PublisherResult{Publisher: client, Backend: EventsAMQP}, nil
	case EventsKafka:
		if len(config.KafkaBrokers) == 0 {
			return nil, errors.New("kafka events need at least one broker")
		}
		f.logger.Info("Initialized Kafka publisher", "topic", config.KafkaTopic, "brokers", config.KafkaBrokers)
		return &PublisherResult{Publisher: kafka.NewPublisher(config.KafkaBrokers, config.KafkaTopic), Backend: EventsKafka}, nil
	default:
		return nil, fmt.Errorf("unsupported events backend: %s", config.EventsBackend)
	}
}

// CreateConsumer builds the worker side of the events backend.
func (f *DefaultFactory) CreateConsumer(ctx context.Context, config Config) (Consumer, error) {
	switch config.EventsBackend {
	case EventsAMQP:
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize AMQP client: %w", err)
		}
		return client, nil
	case EventsKafka:
		if len(config.KafkaBrokers) == 0 {
			return nil, errors.New("kafka events need at least one broker")
		}
		return kafka.NewConsumer(config.KafkaBrokers, config.KafkaTopic, config.KafkaGroupID), nil
	case "", EventsNone:
		return nil, errors.New("events backend is none, nothing to consume")
	default:
		return nil, fmt.Errorf("unsupported events backend: %s", config.EventsBackend)
	}
}

// CreateSink builds the spreadsheet sink, in memory when no spreadsheet is set.
func (f *DefaultFactory) CreateSink(ctx context.Context, config Config) (*SinkResult, error) {
	if config.GoogleSpreadsheetID == "" {
		f.logger.Warn("GOOGLE_SPREADSHEET_ID not set, syncing to in-memory sheet")
		return &SinkResult{Sink: sheetsmem.New(), Backend: "memory"}, nil
	}
	client, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   config.GoogleSpreadsheetID,
		SheetName:       config.GoogleSheetName,
		CredentialsJSON: config.GoogleServiceAccountJSON,
		CredentialsFile: config.GoogleServiceAccountFile,
		Location:        config.Location,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}
	f.logger.Info("Initialized Google Sheets sink", "spreadsheet_id", config.GoogleSpreadsheetID)
	return &SinkResult{Sink: client, Backend: "google"}, nil
}

// chain runs every non-nil cleanup and joins their errors.
func chain(fns ...CleanupFunc) CleanupFunc {
	return func() error {
		var errs []error
		for _, fn := range fns {
			if fn == nil {
				continue
			}
			if err := fn(); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
}
