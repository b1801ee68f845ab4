package tablestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"worksheet-sync/pkg/models"

	"github.com/lib/pq"
)

const (
	pgDuplicateTable  = "42P07"
	pgUniqueViolation = "23505" // concurrent CREATE TABLE races on pg_type
)

type sqlOpenFunc func(driverName, dsn string) (*sql.DB, error)

// PostgresBackend keeps the table as (partition_key, row_key, properties) rows
type PostgresBackend struct {
	tableName string
	db        *sql.DB
}

func NewPostgresBackend(dsn, tableName string) (*PostgresBackend, error) {
	return newPostgresBackend(dsn, tableName, sql.Open)
}

func newPostgresBackend(dsn, tableName string, openDB sqlOpenFunc) (*PostgresBackend, error) {
	db, err := openDB("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConnection, err)
	}
	return &PostgresBackend{
		tableName: pq.QuoteIdentifier(tableName),
		db:        db,
	}, nil
}

// CreateTable issues a plain CREATE TABLE so that losing a race shows up as
// ErrTableExists instead of being hidden by IF NOT EXISTS.
func (b *PostgresBackend) CreateTable(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE %s (
			partition_key TEXT NOT NULL,
			row_key TEXT NOT NULL,
			properties JSONB NOT NULL DEFAULT '{}'::jsonb,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (partition_key, row_key)
		)`, b.tableName)
	_, err := b.db.ExecContext(ctx, query)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && (pqErr.Code == pgDuplicateTable || pqErr.Code == pgUniqueViolation) {
		return ErrTableExists
	}
	return err
}

func (b *PostgresBackend) ListEntities(ctx context.Context, kind models.PartitionKind) ([]Entity, error) {
	query := fmt.Sprintf("SELECT row_key, properties FROM %s WHERE partition_key = $1", b.tableName)
	rows, err := b.db.QueryContext(ctx, query, string(kind))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entities := make([]Entity, 0)
	for rows.Next() {
		var rowKey string
		var payload []byte
		if err := rows.Scan(&rowKey, &payload); err != nil {
			return nil, err
		}
		props := map[string]string{}
		if err := json.Unmarshal(payload, &props); err != nil {
			return nil, fmt.Errorf("decode properties of %s %q: %w", kind, rowKey, err)
		}
		entities = append(entities, Entity{PartitionKey: kind, RowKey: rowKey, Properties: props})
	}
	return entities, rows.Err()
}

func (b *PostgresBackend) UpsertEntity(ctx context.Context, entity Entity) error {
	props := entity.Properties
	if props == nil {
		props = map[string]string{}
	}
	payload, err := json.Marshal(props)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (partition_key, row_key, properties, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (partition_key, row_key)
		DO UPDATE SET properties = EXCLUDED.properties, updated_at = NOW()`, b.tableName)
	_, err = b.db.ExecContext(ctx, query, string(entity.PartitionKey), entity.RowKey, string(payload))
	return err
}

func (b *PostgresBackend) DeleteEntity(ctx context.Context, kind models.PartitionKind, rowKey string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE partition_key = $1 AND row_key = $2", b.tableName)
	result, err := b.db.ExecContext(ctx, query, string(kind), rowKey)
	if err != nil {
		return err
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return ErrEntityNotFound
	}
	return nil
}

func (b *PostgresBackend) Close() error {
	return b.db.Close()
}
