package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"

	"github.com/meltforce/run5k/internal/assetcache"
	_ "modernc.org/sqlite"
)

// SQLite is a single-file store holding the progress key/value record and
// the asset caches.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the SQLite database at dir/name.
func OpenSQLite(dir, name string) (*SQLite, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir %s: %w", dir, err)
	}

	dbPath := filepath.Join(dir, name)
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{
		`CREATE TABLE IF NOT EXISTS kv (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS asset_caches (
			name       TEXT PRIMARY KEY,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS asset_cache_entries (
			cache_name TEXT NOT NULL,
			key        TEXT NOT NULL,
			status     INTEGER NOT NULL,
			header     TEXT NOT NULL,
			body       BLOB NOT NULL,
			PRIMARY KEY (cache_name, key)
		)`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating sqlite tables: %w", err)
		}
	}

	return &SQLite{db: db}, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Get implements progress.KV.
func (s *SQLite) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading %s: %w", key, err)
	}
	return value, true, nil
}

// Set implements progress.KV.
func (s *SQLite) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

// Caches returns the asset cache storage backed by this database.
func (s *SQLite) Caches() *CacheStorage {
	return &CacheStorage{db: s.db}
}

// CacheStorage implements assetcache.Storage on SQLite.
type CacheStorage struct {
	db *sql.DB
}

// Compile-time check: *CacheStorage satisfies assetcache.Storage.
var _ assetcache.Storage = (*CacheStorage)(nil)

// Open implements assetcache.Storage.
func (c *CacheStorage) Open(ctx context.Context, name string) (assetcache.Cache, error) {
	if _, err := c.db.ExecContext(ctx, `INSERT OR IGNORE INTO asset_caches (name) VALUES (?)`, name); err != nil {
		return nil, fmt.Errorf("creating cache %s: %w", name, err)
	}
	return &sqliteCache{db: c.db, name: name}, nil
}

// Keys implements assetcache.Storage.
func (c *CacheStorage) Keys(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT name FROM asset_caches`)
	if err != nil {
		return nil, fmt.Errorf("listing caches: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("scanning cache name: %w", err)
		}
		names = append(names, n)
	}
	sort.Strings(names)
	return names, rows.Err()
}

// Delete implements assetcache.Storage.
func (c *CacheStorage) Delete(ctx context.Context, name string) (bool, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM asset_cache_entries WHERE cache_name = ?`, name); err != nil {
		return false, fmt.Errorf("deleting cache entries: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM asset_caches WHERE name = ?`, name)
	if err != nil {
		return false, fmt.Errorf("deleting cache: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, tx.Commit()
}

type sqliteCache struct {
	db   *sql.DB
	name string
}

func (c *sqliteCache) Match(ctx context.Context, key string) (*assetcache.Response, bool, error) {
	var (
		status int
		header string
		body   []byte
	)
	err := c.db.QueryRowContext(ctx,
		`SELECT status, header, body FROM asset_cache_entries WHERE cache_name = ? AND key = ?`,
		c.name, key,
	).Scan(&status, &header, &body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("matching %s: %w", key, err)
	}

	h := http.Header{}
	if err := json.Unmarshal([]byte(header), &h); err != nil {
		return nil, false, fmt.Errorf("decoding header for %s: %w", key, err)
	}
	return &assetcache.Response{Status: status, Header: h, Body: body}, true, nil
}

func (c *sqliteCache) Put(ctx context.Context, key string, resp *assetcache.Response) error {
	header, err := json.Marshal(resp.Header)
	if err != nil {
		return fmt.Errorf("encoding header for %s: %w", key, err)
	}
	body := resp.Body
	if body == nil {
		body = []byte{}
	}
	_, err = c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO asset_cache_entries (cache_name, key, status, header, body) VALUES (?, ?, ?, ?, ?)`,
		c.name, key, resp.Status, string(header), body,
	)
	if err != nil {
		return fmt.Errorf("storing %s: %w", key, err)
	}
	return nil
}

func (c *sqliteCache) Len(ctx context.Context) (int, error) {
	var n int
	err := c.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM asset_cache_entries WHERE cache_name = ?`, c.name,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting entries in %s: %w", c.name, err)
	}
	return n, nil
}
