// Package store persists completed turns to Postgres. The pipeline runs
// fine without it; the turn log exists for replay and auditing.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"

	"github.com/voiceshop/assistant/internal/pipeline"
)

type Store struct {
	DB *sql.DB
}

// TurnRecord is the durable shape of one completed turn.
type TurnRecord struct {
	ID           string    `json:"id"`
	Query        string    `json:"query"`
	Intent       []byte    `json:"intent"`
	Answer       string    `json:"answer"`
	ProductCount int       `json:"product_count"`
	Degraded     bool      `json:"degraded"`
	LatencyMS    int64     `json:"latency_ms"`
	CreatedAt    time.Time `json:"created_at"`
}

func New(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	return &Store{DB: db}, nil
}

// Migrate applies schema migrations from the given source (e.g.
// "file://migrations").
func Migrate(sourceURL, dsn string) error {
	m, err := migrate.New(sourceURL, dsn)
	if err != nil {
		return fmt.Errorf("store: migrate init: %w", err)
	}
	defer m.Close()
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("store: migrate up: %w", err)
	}
	return nil
}

// SaveTurn persists the terminal RunState of a turn.
func (s *Store) SaveTurn(ctx context.Context, state *pipeline.RunState) error {
	intentJSON, err := json.Marshal(state.Intent)
	if err != nil {
		return fmt.Errorf("store: marshal intent: %w", err)
	}
	_, err = s.DB.ExecContext(ctx, `
        INSERT INTO turns (id, query, intent, answer, product_count, degraded, latency_ms, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		state.ID,
		state.Query.Text,
		intentJSON,
		state.Answer.Text,
		len(state.Answer.Products),
		state.Answer.Degraded,
		state.CompletedAt.Sub(state.StartedAt).Milliseconds(),
		state.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("store: insert turn: %w", err)
	}
	return nil
}

// RecentTurns returns the newest turns, most recent first.
func (s *Store) RecentTurns(ctx context.Context, limit int) ([]TurnRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.DB.QueryContext(ctx, `
        SELECT id, query, intent, answer, product_count, degraded, latency_ms, created_at
        FROM turns ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: query turns: %w", err)
	}
	defer rows.Close()

	var out []TurnRecord
	for rows.Next() {
		var rec TurnRecord
		if err := rows.Scan(&rec.ID, &rec.Query, &rec.Intent, &rec.Answer, &rec.ProductCount, &rec.Degraded, &rec.LatencyMS, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan turn: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) Close() error { return s.DB.Close() }
