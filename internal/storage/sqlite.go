// Package storage persists the ledger in SQLite.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"spesevoce/internal/core"
	"spesevoce/internal/ledger"
)

const (
	insertExpense = `INSERT INTO expenses
		(created_at, transcript, amount, currency, category, confidence, sentiment, entities)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	listExpenses = `SELECT id, created_at, transcript, amount, currency, category, confidence, sentiment, entities
		FROM expenses WHERE currency = ? ORDER BY id`
)

type SQLiteStore struct {
	db *sql.DB
}

var _ ledger.Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens dbPath, creating its directory, and migrates the schema.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single writer keeps AUTOINCREMENT ids in append order.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Append(ctx context.Context, e core.Expense) (core.Expense, error) {
	entities, err := encodeEntities(e.Entities)
	if err != nil {
		return core.Expense{}, err
	}
	res, err := s.db.ExecContext(ctx, insertExpense,
		e.Timestamp.UTC().Format(time.RFC3339Nano),
		e.Transcript,
		e.Amount,
		string(e.Currency),
		e.Category,
		string(e.Confidence),
		e.Sentiment,
		entities,
	)
	if err != nil {
		return core.Expense{}, fmt.Errorf("insert expense: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Expense{}, fmt.Errorf("last insert id: %w", err)
	}
	e.ID = id

	slog.DebugContext(ctx, "Expense saved to SQLite",
		"component", "storage",
		"id", id,
		"amount", e.Amount,
		"currency", e.Currency,
		"category", e.Category)
	return e, nil
}

func (s *SQLiteStore) List(ctx context.Context, currency core.Currency) ([]core.Expense, error) {
	rows, err := s.db.QueryContext(ctx, listExpenses, string(currency))
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	defer rows.Close()

	var out []core.Expense
	for rows.Next() {
		var (
			e                                     core.Expense
			createdAt, cur, confidence, entityRaw string
		)
		if err := rows.Scan(&e.ID, &createdAt, &e.Transcript, &e.Amount, &cur, &e.Category, &confidence, &e.Sentiment, &entityRaw); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		if e.Timestamp, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("parse created_at for expense %d: %w", e.ID, err)
		}
		if e.Entities, err = decodeEntities(entityRaw); err != nil {
			return nil, fmt.Errorf("decode entities for expense %d: %w", e.ID, err)
		}
		e.Currency = core.Currency(cur)
		e.Confidence = core.Confidence(confidence)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return out, nil
}

func encodeEntities(es []core.Entity) (string, error) {
	if len(es) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(es)
	if err != nil {
		return "", fmt.Errorf("encode entities: %w", err)
	}
	return string(b), nil
}

func decodeEntities(raw string) ([]core.Entity, error) {
	if raw == "" || raw == "[]" {
		return nil, nil
	}
	var es []core.Entity
	if err := json.Unmarshal([]byte(raw), &es); err != nil {
		return nil, err
	}
	return es, nil
}
