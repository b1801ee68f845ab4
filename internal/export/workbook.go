package export

import (
	"fmt"
	"io"
	"time"

	"worksheet-sync/internal/enrich"
	"worksheet-sync/pkg/models"

	"github.com/xuri/excelize/v2"
)

const (
	worksheetsSheet = "Worksheets"
	foldersSheet    = "Folders"
)

var worksheetHeader = []any{"Folder", "Title", "URL", "Embed", "Created", "Last opened", "Last opened by"}

// View is what gets exported: the sheets, the folder list and any overlay known per sheet
type View struct {
	Sheets   []models.Sheet
	Folders  []string
	Overlays map[string]enrich.Overlay
}

// Filename names an export taken at t
func Filename(t time.Time) string {
	return fmt.Sprintf("worksheets-%s.xlsx", t.Format("20060102-150405"))
}

// StreamWorkbook writes view as an .xlsx workbook to w
func StreamWorkbook(w io.Writer, view View) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), worksheetsSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(foldersSheet); err != nil {
		return fmt.Errorf("create folders sheet: %w", err)
	}

	if err := writeWorksheets(f, view); err != nil {
		return err
	}
	if err := writeFolders(f, view.Folders); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeWorksheets(f *excelize.File, view View) error {
	if err := f.SetSheetRow(worksheetsSheet, "A1", &worksheetHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, sheet := range view.Sheets {
		overlay := view.Overlays[sheet.ID]
		row := []any{
			sheet.Folder,
			sheet.Title,
			sheet.URL,
			sheet.Embed,
			sheet.CreatedAt,
			overlay.LastOpened,
			overlay.LastOpenedBy,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(worksheetsSheet, cell, &row); err != nil {
			return fmt.Errorf("write sheet %q: %w", sheet.ID, err)
		}

		// Link the URL column so the workbook opens the document directly
		urlCell, err := excelize.CoordinatesToCellName(3, i+2)
		if err != nil {
			return err
		}
		if sheet.URL != "" {
			if err := f.SetCellHyperLink(worksheetsSheet, urlCell, sheet.URL, "External"); err != nil {
				return fmt.Errorf("link sheet %q: %w", sheet.ID, err)
			}
		}
	}
	return nil
}

func writeFolders(f *excelize.File, folders []string) error {
	if err := f.SetCellValue(foldersSheet, "A1", "Name"); err != nil {
		return err
	}
	for i, name := range folders {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(foldersSheet, cell, name); err != nil {
			return fmt.Errorf("write folder %q: %w", name, err)
		}
	}
	return nil
}
