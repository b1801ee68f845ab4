package tablestore

import "errors"

var (
	ErrInvalidConnection  = errors.New("invalid table connection string")
	ErrMissingTableName   = errors.New("table name is required")
	ErrInvalidKey         = errors.New("partition key and row key are required")
	ErrTableExists        = errors.New("table already exists")
	ErrEntityNotFound     = errors.New("entity not found")
	ErrUnsupportedBackend = errors.New("unsupported table backend")
)
