package worksheets

import "worksheet-sync/pkg/models"

// CreateRequest is the POST body. A folder is created when Type is "folder"
// or FolderOnly is set; the name comes from Name, else Folder.
type CreateRequest struct {
	Type       string `json:"type"`
	FolderOnly bool   `json:"folderOnly"`
	Name       string `json:"name"`

	ID     string `json:"id"`
	Title  string `json:"title"`
	URL    string `json:"url"`
	Folder string `json:"folder"`
	Embed  string `json:"embed"`
}

// IsFolder reports whether the request creates a folder
func (r CreateRequest) IsFolder() bool {
	return r.Type == string(models.PartitionFolder) || r.FolderOnly
}

// SheetInput extracts the sheet fields of the request
func (r CreateRequest) SheetInput() models.SheetInput {
	return models.SheetInput{
		ID:     r.ID,
		Title:  r.Title,
		URL:    r.URL,
		Folder: r.Folder,
		Embed:  r.Embed,
	}
}

// ListResponse represents the response for listing worksheets
type ListResponse struct {
	Sheets  []models.Sheet `json:"sheets"`
	Folders []string       `json:"folders"`
}

// CreateSheetResponse represents the response for creating a sheet
type CreateSheetResponse struct {
	Sheet models.Sheet `json:"sheet"`
}

// CreateFolderResponse represents the response for creating a folder
type CreateFolderResponse struct {
	Folder string `json:"folder"`
}

// DeleteResponse acknowledges a delete
type DeleteResponse struct {
	OK bool `json:"ok"`
}
