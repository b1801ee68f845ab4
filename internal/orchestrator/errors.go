package orchestrator

import "errors"

var (
	ErrInvalidSheet  = errors.New("title and URL are required")
	ErrInvalidFolder = errors.New("folder name is required")
	ErrMissingID     = errors.New("missing id")
	ErrUnknownSheet  = errors.New("unknown sheet")
)

// Notices surfaced when a remote call fails and local state is used instead
const (
	NoticeSheetSavedLocally  = "Unable to save to server. Saved locally instead."
	NoticeFolderSavedLocally = "Unable to save folder to server. Saved locally instead."
	NoticeDeletedLocally     = "Unable to delete on server. Removed locally instead."
	NoticeLoadFailed         = "Unable to load shared worksheets. Using local data instead."
)
