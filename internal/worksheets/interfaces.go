package worksheets

import (
	"context"

	"worksheet-sync/internal/tablestore"
	"worksheet-sync/pkg/models"
)

// Store defines the table operations the service needs
type Store interface {
	List(ctx context.Context, kind models.PartitionKind) ([]tablestore.Entity, error)
	Upsert(ctx context.Context, entity tablestore.Entity) error
	Delete(ctx context.Context, kind models.PartitionKind, rowKey string) error
}

// unavailableStore fails every call with the error that kept the real store from opening
type unavailableStore struct {
	err error
}

// UnavailableStore returns a Store whose every call fails with err
func UnavailableStore(err error) Store {
	return unavailableStore{err: err}
}

func (u unavailableStore) List(context.Context, models.PartitionKind) ([]tablestore.Entity, error) {
	return nil, u.err
}

func (u unavailableStore) Upsert(context.Context, tablestore.Entity) error {
	return u.err
}

func (u unavailableStore) Delete(context.Context, models.PartitionKind, string) error {
	return u.err
}
