package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStorage keeps raw response bodies for one upstream source in its own database file.
type SQLiteStorage struct {
	db       *sql.DB
	name     string
	dbPath   string
	dataPath string
}

type StorageInterface interface {
	Initialize() error
	GetEntry(key string) (CacheEntry, bool, error)
	SaveEntry(entry CacheEntry) error
	PurgeExpired(cutoff time.Time) (int64, error)
	Close() error
}

// NewSQLiteStorage prepares a store at <dataPath>/<name>_cache.db. Call Initialize before use.
func NewSQLiteStorage(dataPath, name string) *SQLiteStorage {
	dbPath := filepath.Join(dataPath, name+"_cache.db")
	return &SQLiteStorage{
		name:     name,
		dbPath:   dbPath,
		dataPath: dataPath,
	}
}

func (s *SQLiteStorage) Name() string { return s.name }

func (s *SQLiteStorage) Path() string { return s.dbPath }

func (s *SQLiteStorage) Initialize() error {
	// Create data directory if it doesn't exist
	if err := os.MkdirAll(s.dataPath, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	// Open database connection
	db, err := sql.Open("sqlite3", s.dbPath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	// sqlite serializes writers anyway; one connection avoids SQLITE_BUSY under load.
	db.SetMaxOpenConns(1)
	s.db = db

	// Initialize and run migrations using Goose
	if err := s.RunMigrations(); err != nil {
		return err
	}

	log.Printf("[storage] %s cache initialized at: %s", s.name, s.dbPath)
	return nil
}

func (s *SQLiteStorage) GetEntry(key string) (CacheEntry, bool, error) {
	entry := CacheEntry{Key: key}
	var fetchedAt int64

	err := s.db.QueryRow(`
	SELECT url, status_code, content_type, body, fetched_at
	FROM http_cache
	WHERE cache_key = ?
	`, key).Scan(&entry.URL, &entry.StatusCode, &entry.ContentType, &entry.Body, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return CacheEntry{}, false, nil
	}
	if err != nil {
		return CacheEntry{}, false, fmt.Errorf("failed to read cache entry: %w", err)
	}

	entry.FetchedAt = time.Unix(0, fetchedAt)
	return entry, true, nil
}

func (s *SQLiteStorage) SaveEntry(entry CacheEntry) error {
	query := `
	INSERT INTO http_cache (cache_key, url, status_code, content_type, body, fetched_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(cache_key) DO UPDATE SET
		url = excluded.url,
		status_code = excluded.status_code,
		content_type = excluded.content_type,
		body = excluded.body,
		fetched_at = excluded.fetched_at
	`

	// body is NOT NULL in the schema
	body := entry.Body
	if body == nil {
		body = []byte{}
	}

	_, err := s.db.Exec(query, entry.Key, entry.URL, entry.StatusCode, entry.ContentType,
		body, entry.FetchedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to save cache entry: %w", err)
	}
	return nil
}

// PurgeExpired deletes entries fetched before cutoff and returns how many were removed.
func (s *SQLiteStorage) PurgeExpired(cutoff time.Time) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM http_cache WHERE fetched_at < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to purge %s cache: %w", s.name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count purged rows: %w", err)
	}
	return n, nil
}

func (s *SQLiteStorage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteStorage) GetDB() (*sql.DB, error) {
	if s.db == nil {
		return nil, fmt.Errorf("%s storage is not initialized", s.name)
	}
	return s.db, nil
}

func (s *SQLiteStorage) GetStats() (map[string]int, error) {
	stats := make(map[string]int)

	// Count entries and total stored body size
	var entries, bytes int
	err := s.db.QueryRow("SELECT COUNT(*), COALESCE(SUM(LENGTH(body)), 0) FROM http_cache").Scan(&entries, &bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to get cache stats: %w", err)
	}
	stats["entries"] = entries
	stats["bytes"] = bytes

	return stats, nil
}

// Migration management methods
func (s *SQLiteStorage) GetMigrationManager() *MigrationManager {
	return NewMigrationManager(s.db, s.name)
}

func (s *SQLiteStorage) GetDatabaseVersion() (int64, error) {
	migrationManager := s.GetMigrationManager()
	if err := migrationManager.Initialize(); err != nil {
		return 0, err
	}
	return migrationManager.Version()
}

func (s *SQLiteStorage) RunMigrations() error {
	migrationManager := s.GetMigrationManager()
	if err := migrationManager.Initialize(); err != nil {
		return err
	}
	return migrationManager.Up()
}

func (s *SQLiteStorage) RollbackMigration() error {
	migrationManager := s.GetMigrationManager()
	if err := migrationManager.Initialize(); err != nil {
		return err
	}
	return migrationManager.Down()
}

func (s *SQLiteStorage) ResetDatabase() error {
	migrationManager := s.GetMigrationManager()
	if err := migrationManager.Initialize(); err != nil {
		return err
	}
	return migrationManager.Reset()
}
