// Package cache keeps model answers in a local SQLite file so repeated runs
// over the same listings do not ask the model again.
package cache

import (
	"database/sql"
	"log"
	"time"

	_ "modernc.org/sqlite"
)

type Cache struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

func New(dbPath string, ttl time.Duration) (*Cache, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS answers (
			kind TEXT NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			cached_at DATETIME NOT NULL,
			PRIMARY KEY (kind, key)
		)
	`)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Cache{db: db, ttl: ttl, now: time.Now}, nil
}

// Get returns the value stored for kind/key unless it is older than the TTL.
func (c *Cache) Get(kind, key string) (string, bool) {
	var value string
	var cachedAt time.Time

	err := c.db.QueryRow(
		`SELECT value, cached_at FROM answers WHERE kind = ? AND key = ?`,
		kind, key,
	).Scan(&value, &cachedAt)
	if err != nil {
		if err != sql.ErrNoRows {
			log.Printf("Cache: failed to read %s/%q: %v", kind, key, err)
		}
		return "", false
	}

	if c.ttl > 0 && c.now().Sub(cachedAt) > c.ttl {
		return "", false
	}

	return value, true
}

func (c *Cache) Set(kind, key, value string) {
	_, err := c.db.Exec(
		`INSERT INTO answers (kind, key, value, cached_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(kind, key)
		 DO UPDATE SET value = excluded.value, cached_at = excluded.cached_at`,
		kind, key, value, c.now().UTC(),
	)
	if err != nil {
		log.Printf("Cache: failed to store %s/%q: %v", kind, key, err)
	}
}

func (c *Cache) Close() error {
	return c.db.Close()
}
