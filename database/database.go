package database

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("запись не найдена")

// Querier — минимальный интерфейс pgxpool.Pool, чтобы в тестах подставлять pgxmock.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type DB struct {
	q    Querier
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &DB{q: pool, pool: pool}, nil
}

// NewWithQuerier — конструктор для тестов.
func NewWithQuerier(q Querier) *DB {
	return &DB{q: q}
}

func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// Migrate создаёт таблицы при первом запуске.
func (db *DB) Migrate(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS submissions (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL,
			username TEXT,
			first_name TEXT,
			media_kinds TEXT[] NOT NULL,
			media_refs TEXT[] NOT NULL,
			caption TEXT,
			status TEXT NOT NULL DEFAULT 'pending',
			rejection_reason TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS gate_state (
			id INT PRIMARY KEY,
			is_active BOOLEAN NOT NULL DEFAULT TRUE
		)`,
		`INSERT INTO gate_state (id, is_active) VALUES (1, TRUE)
			ON CONFLICT (id) DO NOTHING`,
	}
	for _, q := range queries {
		if _, err := db.q.Exec(ctx, q); err != nil {
			return err
		}
	}
	return nil
}
