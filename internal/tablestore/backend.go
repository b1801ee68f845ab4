package tablestore

import (
	"fmt"
	"net/url"
	"strings"
)

// Open builds a Client for a connection string. The backend is chosen by
// the string itself: a postgres:// DSN, "memory:", or an Azure Storage
// connection string.
func Open(connString, tableName string, opts Options) (*Client, error) {
	backend, err := OpenBackend(connString, tableName)
	if err != nil {
		return nil, err
	}
	return NewClient(backend, opts), nil
}

// OpenBackend selects and constructs the backend for a connection string
func OpenBackend(connString, tableName string) (Backend, error) {
	connString = strings.TrimSpace(connString)
	tableName = strings.TrimSpace(tableName)
	if connString == "" {
		return nil, ErrInvalidConnection
	}
	if tableName == "" {
		return nil, ErrMissingTableName
	}

	switch scheme := connectionScheme(connString); scheme {
	case "postgres", "postgresql":
		return NewPostgresBackend(connString, tableName)
	case "memory", "mem":
		return NewMemoryBackend(), nil
	case "":
		return NewAzureBackend(connString, tableName)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedBackend, scheme)
	}
}

// connectionScheme returns the URL scheme of a DSN, or "" for Azure-style
// key=value connection strings.
func connectionScheme(connString string) string {
	if strings.Contains(connString, "=") && strings.Contains(connString, ";") {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(connString), "memory:") {
		return "memory"
	}
	parsed, err := url.Parse(connString)
	if err != nil {
		return ""
	}
	return strings.ToLower(parsed.Scheme)
}
