package worksheets

import (
	"context"
	"fmt"
	"strings"
	"time"

	"worksheet-sync/internal/tablestore"
	"worksheet-sync/pkg/models"

	"github.com/google/uuid"
)

// Service translates worksheet operations into table calls
type Service struct {
	store       Store
	unavailable error
	now         func() time.Time
	newID       func() string
}

// NewService creates a new worksheet service. A nil store means the
// connection string is missing and every call fails with ErrMissingConnection.
func NewService(store Store) *Service {
	s := &Service{
		store: store,
		now:   time.Now,
		newID: uuid.NewString,
	}
	if store == nil {
		s.unavailable = ErrMissingConnection
		s.store = UnavailableStore(ErrMissingConnection)
	}
	return s
}

// Available reports the configuration error that keeps the service from
// reaching the table, if any
func (s *Service) Available() error {
	return s.unavailable
}

// List returns every sheet and folder name
func (s *Service) List(ctx context.Context) (*ListResponse, error) {
	sheetRows, err := s.store.List(ctx, models.PartitionSheet)
	if err != nil {
		return nil, err
	}
	folderRows, err := s.store.List(ctx, models.PartitionFolder)
	if err != nil {
		return nil, err
	}

	response := &ListResponse{
		Sheets:  make([]models.Sheet, 0, len(sheetRows)),
		Folders: make([]string, 0, len(folderRows)),
	}
	for _, row := range sheetRows {
		response.Sheets = append(response.Sheets, row.Sheet())
	}
	for _, row := range folderRows {
		response.Folders = append(response.Folders, row.RowKey)
	}
	return response, nil
}

// CreateFolder upserts a folder and returns its name
func (s *Service) CreateFolder(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrFolderNameRequired
	}

	folder := models.Folder{Name: name, CreatedAt: s.timestamp()}
	if err := s.store.Upsert(ctx, tablestore.FolderEntity(folder)); err != nil {
		return "", fmt.Errorf("save folder: %w", err)
	}
	return name, nil
}

// CreateSheet validates the input, fills in id and embed, and upserts the sheet
func (s *Service) CreateSheet(ctx context.Context, input models.SheetInput) (models.Sheet, error) {
	title := strings.TrimSpace(input.Title)
	url := strings.TrimSpace(input.URL)
	if title == "" || url == "" {
		return models.Sheet{}, ErrTitleURLRequired
	}

	id := strings.TrimSpace(input.ID)
	if id == "" {
		id = s.newID()
	}

	sheet := models.Sheet{
		ID:        id,
		Title:     title,
		URL:       url,
		Embed:     models.ResolveEmbed(input.Embed, url),
		Folder:    strings.TrimSpace(input.Folder),
		CreatedAt: s.timestamp(),
	}
	if err := s.store.Upsert(ctx, tablestore.SheetEntity(sheet)); err != nil {
		return models.Sheet{}, fmt.Errorf("save sheet: %w", err)
	}
	return sheet, nil
}

// Delete removes a sheet or folder. Missing rows are not an error.
func (s *Service) Delete(ctx context.Context, kind models.PartitionKind, id string) error {
	if id == "" {
		return ErrMissingID
	}
	return s.store.Delete(ctx, kind, id)
}

// timestamp formats the current time like JavaScript's toISOString
func (s *Service) timestamp() string {
	return s.now().UTC().Format("2006-01-02T15:04:05.000Z")
}
