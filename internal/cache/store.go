package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	_ "modernc.org/sqlite"

	"github.com/skelly-dev/rubyindex/internal/fileutil"
)

// ErrNoCache is returned by Store.Load when nothing was saved for the project yet.
var ErrNoCache = errors.New("no index cache stored")

// Store persists one cache blob per project root.
type Store interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
	Clear(ctx context.Context) error
	Location() string
	Close() error
}

// ProjectKey derives the stable identifier used to address a project's blob.
func ProjectKey(root string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(filepath.Clean(root)))
}

// FileStore keeps each project's blob in its own file under a cache directory.
type FileStore struct {
	path string
}

// NewFileStore returns a store writing <dir>/<project key>.rbix.
func NewFileStore(dir, root string) *FileStore {
	return &FileStore{path: filepath.Join(dir, ProjectKey(root)+".rbix")}
}

func (s *FileStore) Location() string {
	return s.path
}

func (s *FileStore) Load(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoCache
		}
		return nil, fmt.Errorf("failed to read index cache: %w", err)
	}
	return data, nil
}

func (s *FileStore) Save(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	changed, err := fileutil.WriteIfChangedTracked(s.path, data)
	if err != nil {
		return fmt.Errorf("failed to write index cache: %w", err)
	}
	if !changed {
		slog.Debug("index cache unchanged", "path", s.path)
	}
	return nil
}

func (s *FileStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *FileStore) Close() error {
	return nil
}

const sqliteDriverName = "sqlite"

// SQLiteStore keeps blobs for many projects in one SQLite database, keyed by project key.
type SQLiteStore struct {
	db         *sql.DB
	path       string
	projectKey string
}

// OpenSQLiteStore opens (and migrates) the database at path for the project at root.
func OpenSQLiteStore(path, root string) (*SQLiteStore, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("cache database path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("cache database path %q is a directory, expected file", cleanPath)
	}

	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache database directory %q: %w", dir, err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", cleanPath)
	db, err := sql.Open(sqliteDriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open cache database %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping cache database %q: %w", cleanPath, err)
	}
	if err := migrateCacheSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db, path: cleanPath, projectKey: ProjectKey(root)}, nil
}

func migrateCacheSchema(db *sql.DB) error {
	var version int
	_ = db.QueryRow(`PRAGMA user_version`).Scan(&version)

	if version == 0 {
		_, err := db.Exec(`
CREATE TABLE IF NOT EXISTS index_cache (
  project_key TEXT PRIMARY KEY,
  blob BLOB NOT NULL,
  format_version INTEGER NOT NULL,
  updated_at INTEGER NOT NULL
);
PRAGMA user_version = 1;`)
		if err != nil {
			return fmt.Errorf("migrate cache schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) Location() string {
	return s.path + "#" + s.projectKey
}

func (s *SQLiteStore) Load(ctx context.Context) ([]byte, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx, `SELECT blob FROM index_cache WHERE project_key = ?`, s.projectKey).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoCache
	}
	if err != nil {
		return nil, fmt.Errorf("load index cache: %w", err)
	}
	return blob, nil
}

func (s *SQLiteStore) Save(ctx context.Context, data []byte) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO index_cache (project_key, blob, format_version, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(project_key) DO UPDATE SET
  blob = excluded.blob,
  format_version = excluded.format_version,
  updated_at = excluded.updated_at`,
		s.projectKey, data, FormatVersion, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("save index cache: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM index_cache WHERE project_key = ?`, s.projectKey); err != nil {
		return fmt.Errorf("clear index cache: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
