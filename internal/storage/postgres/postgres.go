// Package postgres persists the ledger in PostgreSQL.
package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"spesevoce/internal/core"
	"spesevoce/internal/ledger"
)

//go:embed 001_create_expenses.sql
var migrationSQL string

type Config struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string

	MaxPoolSize int
}

type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

var _ ledger.Store = (*Store)(nil)

// New connects, pings and applies the idempotent schema.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Port == 0 {
		cfg.Port = 5432
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = "disable"
	}
	if cfg.MaxPoolSize == 0 {
		cfg.MaxPoolSize = 10
	}

	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)
	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxPoolSize)
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if _, err := pool.Exec(ctx, migrationSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("executing migration: %w", err)
	}

	logger.Info("connected to PostgreSQL",
		"component", "storage",
		"host", cfg.Host,
		"port", cfg.Port,
		"database", cfg.Database)

	return &Store{pool: pool, logger: logger}, nil
}

func (s *Store) Append(ctx context.Context, e core.Expense) (core.Expense, error) {
	entities := []byte("[]")
	if len(e.Entities) > 0 {
		b, err := json.Marshal(e.Entities)
		if err != nil {
			return core.Expense{}, fmt.Errorf("encode entities: %w", err)
		}
		entities = b
	}

	err := s.pool.QueryRow(ctx, `
		INSERT INTO expenses (created_at, transcript, amount, currency, category, confidence, sentiment, entities)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		e.Timestamp.UTC(), e.Transcript, e.Amount, string(e.Currency), e.Category,
		string(e.Confidence), e.Sentiment, entities,
	).Scan(&e.ID)
	if err != nil {
		return core.Expense{}, fmt.Errorf("inserting expense: %w", err)
	}
	return e, nil
}

func (s *Store) List(ctx context.Context, currency core.Currency) ([]core.Expense, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, created_at, transcript, amount, currency, category, confidence, sentiment, entities
		FROM expenses WHERE currency = $1 ORDER BY id`, string(currency))
	if err != nil {
		return nil, fmt.Errorf("querying expenses: %w", err)
	}
	defer rows.Close()

	var out []core.Expense
	for rows.Next() {
		var (
			e               core.Expense
			cur, confidence string
			entities        []byte
		)
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Transcript, &e.Amount, &cur, &e.Category, &confidence, &e.Sentiment, &entities); err != nil {
			return nil, fmt.Errorf("scanning expense: %w", err)
		}
		if len(entities) > 0 && string(entities) != "[]" {
			if err := json.Unmarshal(entities, &e.Entities); err != nil {
				return nil, fmt.Errorf("decoding entities for expense %d: %w", e.ID, err)
			}
		}
		e.Currency = core.Currency(cur)
		e.Confidence = core.Confidence(confidence)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating expenses: %w", err)
	}
	return out, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
