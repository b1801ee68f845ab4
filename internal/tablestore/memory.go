package tablestore

import (
	"context"
	"maps"
	"sync"

	"worksheet-sync/pkg/models"
)

// MemoryBackend keeps the table in process memory
type MemoryBackend struct {
	mu          sync.RWMutex
	created     bool
	createCalls int
	rows        map[models.PartitionKind]map[string]map[string]string
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		rows: make(map[models.PartitionKind]map[string]map[string]string),
	}
}

func (m *MemoryBackend) CreateTable(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.createCalls++
	if m.created {
		return ErrTableExists
	}
	m.created = true
	return nil
}

// CreateTableCalls reports how many provisioning attempts reached the backend
func (m *MemoryBackend) CreateTableCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.createCalls
}

func (m *MemoryBackend) ListEntities(_ context.Context, kind models.PartitionKind) ([]Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	partition := m.rows[kind]
	entities := make([]Entity, 0, len(partition))
	for rowKey, props := range partition {
		entities = append(entities, Entity{
			PartitionKey: kind,
			RowKey:       rowKey,
			Properties:   maps.Clone(props),
		})
	}
	return entities, nil
}

func (m *MemoryBackend) UpsertEntity(_ context.Context, entity Entity) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	partition, ok := m.rows[entity.PartitionKey]
	if !ok {
		partition = make(map[string]map[string]string)
		m.rows[entity.PartitionKey] = partition
	}
	props := maps.Clone(entity.Properties)
	if props == nil {
		props = map[string]string{}
	}
	partition[entity.RowKey] = props
	return nil
}

func (m *MemoryBackend) DeleteEntity(_ context.Context, kind models.PartitionKind, rowKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	partition := m.rows[kind]
	if _, ok := partition[rowKey]; !ok {
		return ErrEntityNotFound
	}
	delete(partition, rowKey)
	return nil
}

func (m *MemoryBackend) Close() error {
	return nil
}
