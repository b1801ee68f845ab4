package tablestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"worksheet-sync/pkg/models"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
)

// AzureBackend stores entities in an Azure Storage table
type AzureBackend struct {
	client *aztables.Client
}

// NewAzureBackend parses an Azure Storage connection string.
// Nothing is sent over the network until the first call.
func NewAzureBackend(connString, tableName string) (*AzureBackend, error) {
	svc, err := aztables.NewServiceClientFromConnectionString(connString, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConnection, err)
	}
	return &AzureBackend{client: svc.NewClient(tableName)}, nil
}

func (b *AzureBackend) CreateTable(ctx context.Context) error {
	_, err := b.client.CreateTable(ctx, nil)
	if hasStatus(err, http.StatusConflict) {
		return ErrTableExists
	}
	return err
}

func (b *AzureBackend) ListEntities(ctx context.Context, kind models.PartitionKind) ([]Entity, error) {
	filter := fmt.Sprintf("PartitionKey eq '%s'", strings.ReplaceAll(string(kind), "'", "''"))
	pager := b.client.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})

	entities := make([]Entity, 0)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range page.Entities {
			entity, err := decodeAzureEntity(raw)
			if err != nil {
				return nil, err
			}
			entities = append(entities, entity)
		}
	}
	return entities, nil
}

func (b *AzureBackend) UpsertEntity(ctx context.Context, entity Entity) error {
	payload, err := encodeAzureEntity(entity)
	if err != nil {
		return err
	}
	_, err = b.client.UpsertEntity(ctx, payload, &aztables.UpsertEntityOptions{
		UpdateMode: aztables.UpdateModeReplace,
	})
	return err
}

func (b *AzureBackend) DeleteEntity(ctx context.Context, kind models.PartitionKind, rowKey string) error {
	_, err := b.client.DeleteEntity(ctx, string(kind), rowKey, nil)
	if hasStatus(err, http.StatusNotFound) {
		return ErrEntityNotFound
	}
	return err
}

func (b *AzureBackend) Close() error {
	return nil
}

func hasStatus(err error, status int) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == status
}

func encodeAzureEntity(entity Entity) ([]byte, error) {
	payload := make(map[string]string, len(entity.Properties)+2)
	for name, value := range entity.Properties {
		payload[name] = value
	}
	payload["PartitionKey"] = string(entity.PartitionKey)
	payload["RowKey"] = entity.RowKey
	return json.Marshal(payload)
}

func decodeAzureEntity(raw []byte) (Entity, error) {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Entity{}, fmt.Errorf("decode table entity: %w", err)
	}

	entity := Entity{Properties: make(map[string]string)}
	for name, value := range fields {
		switch {
		case name == "PartitionKey":
			entity.PartitionKey = models.PartitionKind(fmt.Sprint(value))
		case name == "RowKey":
			entity.RowKey = fmt.Sprint(value)
		case name == "Timestamp", strings.HasPrefix(name, "odata."), strings.Contains(name, "@odata."):
			// service metadata
		default:
			if s, ok := value.(string); ok {
				entity.Properties[name] = s
			} else if value != nil {
				entity.Properties[name] = fmt.Sprint(value)
			}
		}
	}
	return entity, nil
}
