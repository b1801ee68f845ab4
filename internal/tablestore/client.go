package tablestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"worksheet-sync/pkg/models"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const defaultOperationTimeout = 10 * time.Second

// Options tunes a Client
type Options struct {
	// Timeout bounds every backend call. Zero means 10s.
	Timeout time.Duration
	Logger  *zerolog.Logger
}

// Client is the CRUD accessor over the worksheet table.
// The table is provisioned lazily on first use, once per Client.
type Client struct {
	backend Backend
	timeout time.Duration
	logger  zerolog.Logger

	ready     atomic.Bool
	provision singleflight.Group
}

// NewClient wraps a backend
func NewClient(backend Backend, opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultOperationTimeout
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Client{
		backend: backend,
		timeout: timeout,
		logger:  logger.With().Str("component", "tablestore").Logger(),
	}
}

// EnsureReady provisions the backing table. Concurrent callers share one
// in-flight attempt, and an existing table counts as success. Once ready,
// later calls return without touching the backend. A failed attempt is
// not remembered, so the next call tries again.
func (c *Client) EnsureReady(ctx context.Context) error {
	if c.ready.Load() {
		return nil
	}
	_, err, _ := c.provision.Do("provision", func() (any, error) {
		if c.ready.Load() {
			return nil, nil
		}
		// Detach from the first caller so its cancellation doesn't fail everyone waiting
		opCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()

		err := c.backend.CreateTable(opCtx)
		switch {
		case err == nil:
			c.logger.Info().Msg("table provisioned")
		case errors.Is(err, ErrTableExists):
			c.logger.Debug().Msg("table already exists")
		default:
			return nil, fmt.Errorf("provision table: %w", err)
		}
		c.ready.Store(true)
		return nil, nil
	})
	return err
}

// List returns every row of a partition, in no particular order
func (c *Client) List(ctx context.Context, kind models.PartitionKind) ([]Entity, error) {
	if err := c.EnsureReady(ctx); err != nil {
		return nil, err
	}
	opCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	entities, err := c.backend.ListEntities(opCtx, kind)
	if err != nil {
		return nil, fmt.Errorf("list %s entities: %w", kind, err)
	}
	return entities, nil
}

// Upsert creates or replaces a row by key
func (c *Client) Upsert(ctx context.Context, entity Entity) error {
	if entity.PartitionKey == "" || strings.TrimSpace(entity.RowKey) == "" {
		return ErrInvalidKey
	}
	if err := c.EnsureReady(ctx); err != nil {
		return err
	}
	opCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.backend.UpsertEntity(opCtx, entity); err != nil {
		return fmt.Errorf("upsert %s %q: %w", entity.PartitionKey, entity.RowKey, err)
	}
	return nil
}

// Delete removes a row. A row that does not exist is not an error.
func (c *Client) Delete(ctx context.Context, kind models.PartitionKind, rowKey string) error {
	if kind == "" || strings.TrimSpace(rowKey) == "" {
		return ErrInvalidKey
	}
	if err := c.EnsureReady(ctx); err != nil {
		return err
	}
	opCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.backend.DeleteEntity(opCtx, kind, rowKey)
	if errors.Is(err, ErrEntityNotFound) {
		c.logger.Debug().Str("partition", string(kind)).Str("row", rowKey).Msg("delete of missing row")
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete %s %q: %w", kind, rowKey, err)
	}
	return nil
}

// Close releases the backend
func (c *Client) Close() error {
	return c.backend.Close()
}
