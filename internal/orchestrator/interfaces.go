package orchestrator

import (
	"context"

	"worksheet-sync/internal/localcache"
	"worksheet-sync/internal/worksheets"
	"worksheet-sync/pkg/models"
)

// Remote is the worksheet API as seen by the orchestrator
type Remote interface {
	List(ctx context.Context) (*worksheets.ListResponse, error)
	CreateSheet(ctx context.Context, input models.SheetInput) (models.Sheet, error)
	CreateFolder(ctx context.Context, name string) (string, error)
	Delete(ctx context.Context, kind models.PartitionKind, id string) error
}

// Cache is the device-local fallback store
type Cache interface {
	ReadSheets() []models.Sheet
	WriteSheets(sheets []models.Sheet)
	ReadFolders() []string
	WriteFolders(folders []string)
	ReadLastOpened() map[string]localcache.LastOpened
	WriteLastOpened(entries map[string]localcache.LastOpened)
}
