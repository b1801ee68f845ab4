package tablestore

import (
	"worksheet-sync/pkg/models"
)

// Entity is one row of the worksheet table
type Entity struct {
	PartitionKey models.PartitionKind
	RowKey       string
	Properties   map[string]string
}

// Property names stored alongside the keys
const (
	PropTitle     = "title"
	PropURL       = "url"
	PropFolder    = "folder"
	PropEmbed     = "embed"
	PropCreatedAt = "createdAt"
)

// Get returns a property value, "" when unset
func (e Entity) Get(name string) string {
	if e.Properties == nil {
		return ""
	}
	return e.Properties[name]
}

// SheetEntity converts a sheet into its table row
func SheetEntity(sheet models.Sheet) Entity {
	return Entity{
		PartitionKey: models.PartitionSheet,
		RowKey:       sheet.ID,
		Properties: map[string]string{
			PropTitle:     sheet.Title,
			PropURL:       sheet.URL,
			PropFolder:    sheet.Folder,
			PropEmbed:     sheet.Embed,
			PropCreatedAt: sheet.CreatedAt,
		},
	}
}

// FolderEntity converts a folder into its table row
func FolderEntity(folder models.Folder) Entity {
	return Entity{
		PartitionKey: models.PartitionFolder,
		RowKey:       folder.Name,
		Properties: map[string]string{
			PropCreatedAt: folder.CreatedAt,
		},
	}
}

// Sheet maps a sheet row back to the model, deriving the embed when none was stored
func (e Entity) Sheet() models.Sheet {
	url := e.Get(PropURL)
	return models.Sheet{
		ID:        e.RowKey,
		Title:     e.Get(PropTitle),
		URL:       url,
		Embed:     models.ResolveEmbed(e.Get(PropEmbed), url),
		Folder:    e.Get(PropFolder),
		CreatedAt: e.Get(PropCreatedAt),
	}
}

// Folder maps a folder row back to the model
func (e Entity) Folder() models.Folder {
	return models.Folder{
		Name:      e.RowKey,
		CreatedAt: e.Get(PropCreatedAt),
	}
}
