package localcache

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"worksheet-sync/pkg/models"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// Keys under which the client persists its state
const (
	KeySheets     = "worksheetCustomSheets"
	KeyFolders    = "worksheetCustomFolders"
	KeyLastOpened = "worksheetLastOpened"
)

// LastOpened records when and by whom a sheet was last opened on this device
type LastOpened struct {
	Time string `json:"time"`
	User string `json:"user"`
}

// UnmarshalJSON accepts the legacy bare-string form as well as the object form
func (l *LastOpened) UnmarshalJSON(data []byte) error {
	var legacy string
	if err := json.Unmarshal(data, &legacy); err == nil {
		*l = LastOpened{Time: legacy}
		return nil
	}
	type plain LastOpened
	var value plain
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}
	*l = LastOpened(value)
	return nil
}

// Cache is a device-local key/value store backed by an SQLite file.
// A Cache without a database reads empty and drops writes.
type Cache struct {
	db     *sql.DB
	mu     sync.Mutex
	logger zerolog.Logger
}

// Open opens or creates the cache database at path
func Open(path string, logger zerolog.Logger) (*Cache, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping cache: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS kv (key TEXT PRIMARY KEY, value TEXT NOT NULL)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("init cache schema: %w", err)
	}

	return &Cache{
		db:     db,
		logger: logger.With().Str("component", "localcache").Logger(),
	}, nil
}

// OpenOrNoop opens the cache, degrading to a no-op cache when that fails
func OpenOrNoop(path string, logger zerolog.Logger) *Cache {
	cache, err := Open(path, logger)
	if err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("local cache unavailable, changes will not persist")
		return Noop(logger)
	}
	return cache
}

// Noop returns a cache that reads empty and discards writes
func Noop(logger zerolog.Logger) *Cache {
	return &Cache{logger: logger.With().Str("component", "localcache").Logger()}
}

// Close releases the database
func (c *Cache) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

func (c *Cache) ReadSheets() []models.Sheet {
	sheets := make([]models.Sheet, 0)
	c.readJSON(KeySheets, &sheets)
	if sheets == nil {
		return make([]models.Sheet, 0)
	}
	return sheets
}

func (c *Cache) WriteSheets(sheets []models.Sheet) {
	if sheets == nil {
		sheets = make([]models.Sheet, 0)
	}
	c.writeJSON(KeySheets, sheets)
}

func (c *Cache) ReadFolders() []string {
	folders := make([]string, 0)
	c.readJSON(KeyFolders, &folders)
	if folders == nil {
		return make([]string, 0)
	}
	return folders
}

func (c *Cache) WriteFolders(folders []string) {
	if folders == nil {
		folders = make([]string, 0)
	}
	c.writeJSON(KeyFolders, folders)
}

// ReadLastOpened returns the persisted last-opened entries keyed by sheet id.
// Entries that do not decode are skipped.
func (c *Cache) ReadLastOpened() map[string]LastOpened {
	result := make(map[string]LastOpened)

	var raw map[string]json.RawMessage
	if !c.readJSON(KeyLastOpened, &raw) {
		return result
	}
	for id, value := range raw {
		var entry LastOpened
		if err := json.Unmarshal(value, &entry); err != nil {
			c.logger.Debug().Err(err).Str("sheet", id).Msg("skipping malformed last-opened entry")
			continue
		}
		result[id] = entry
	}
	return result
}

func (c *Cache) WriteLastOpened(entries map[string]LastOpened) {
	if entries == nil {
		entries = make(map[string]LastOpened)
	}
	c.writeJSON(KeyLastOpened, entries)
}

// readJSON decodes the value under key into dst and reports whether it did.
// Missing keys and malformed values leave dst untouched.
func (c *Cache) readJSON(key string, dst any) bool {
	value, ok := c.get(key)
	if !ok {
		return false
	}
	if err := json.Unmarshal([]byte(value), dst); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("ignoring malformed cache value")
		return false
	}
	return true
}

// writeJSON persists value under key. Failures are logged and dropped.
func (c *Cache) writeJSON(key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("encode cache value")
		return
	}
	if err := c.put(key, string(data)); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("failed to persist cache value")
	}
}

func (c *Cache) get(key string) (string, bool) {
	if c.db == nil {
		return "", false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	var value string
	err := c.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false
	}
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("read cache value")
		return "", false
	}
	return value, true
}

func (c *Cache) put(key, value string) error {
	if c.db == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.db.Exec(
		`INSERT INTO kv (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	return err
}
