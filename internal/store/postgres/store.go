// Package postgres implements the store interfaces on PostgreSQL via lib/pq.
package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	"veripass/internal/common/database"
	"veripass/internal/store"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is recorded in schema_version. Bump it when schema.sql changes.
const schemaVersion = 1

// Store implements store.Store.
type Store struct {
	db *database.PostgresClient
}

var _ store.Store = (*Store)(nil)

func New(db *database.PostgresClient) *Store {
	return &Store{db: db}
}

// Migrate applies the embedded schema. Every statement is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	return s.db.WithTx(ctx, func(q database.Querier) error {
		if _, err := q.ExecContext(ctx, schemaSQL); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		if _, err := q.ExecContext(ctx,
			`INSERT INTO schema_version (version) VALUES ($1) ON CONFLICT DO NOTHING`, schemaVersion,
		); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
		return nil
	})
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// notFound maps sql.ErrNoRows to store.ErrNotFound.
func notFound(err error, what string, id int64) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %d: %w", what, id, store.ErrNotFound)
	}
	return fmt.Errorf("load %s %d: %w", what, id, err)
}

func nullableString(p *string) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

func nullableInt64(p *int64) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

func int64Ptr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}
