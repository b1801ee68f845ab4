package tablestore

import (
	"context"

	"worksheet-sync/pkg/models"
)

// Backend is a key-value table partitioned by entity kind.
// Implementations report the two idempotency cases with ErrTableExists and
// ErrEntityNotFound; Client turns both into success.
type Backend interface {
	CreateTable(ctx context.Context) error
	ListEntities(ctx context.Context, kind models.PartitionKind) ([]Entity, error)
	UpsertEntity(ctx context.Context, entity Entity) error
	DeleteEntity(ctx context.Context, kind models.PartitionKind, rowKey string) error
	Close() error
}
