package worksheets

import (
	"errors"
	"net/http"

	"worksheet-sync/internal/tablestore"
)

var (
	ErrMissingConnection  = errors.New("table connection string is not configured")
	ErrInvalidRequest     = errors.New("invalid request format")
	ErrFolderNameRequired = errors.New("folder name is required")
	ErrTitleURLRequired   = errors.New("title and url are required")
	ErrMissingID          = errors.New("missing id to delete")
)

type ErrorResponse struct {
	StatusCode int
	Message    string
	Detail     string
}

// GetErrorResponse returns appropriate HTTP response for an error
func GetErrorResponse(err error) ErrorResponse {
	switch {
	case errors.Is(err, ErrMissingConnection):
		return ErrorResponse{StatusCode: http.StatusInternalServerError, Message: "Server missing table connection settings."}
	case errors.Is(err, tablestore.ErrInvalidConnection):
		return ErrorResponse{StatusCode: http.StatusInternalServerError, Message: "Invalid table connection string."}
	case errors.Is(err, ErrInvalidRequest):
		return ErrorResponse{StatusCode: http.StatusBadRequest, Message: "Invalid request format"}
	case errors.Is(err, ErrFolderNameRequired):
		return ErrorResponse{StatusCode: http.StatusBadRequest, Message: "Folder name is required."}
	case errors.Is(err, ErrTitleURLRequired):
		return ErrorResponse{StatusCode: http.StatusBadRequest, Message: "Title and URL are required."}
	case errors.Is(err, ErrMissingID):
		return ErrorResponse{StatusCode: http.StatusBadRequest, Message: "Missing id to delete."}
	default:
		return ErrorResponse{StatusCode: http.StatusInternalServerError, Message: "Server error", Detail: err.Error()}
	}
}
