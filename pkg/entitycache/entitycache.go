// Package entitycache stores fetched domain entities (jobs, profiles,
// companies) as one JSON file per platform id. Writes merge into the prior
// record: a field already present and non-null is never overwritten, so a
// search-result summary cannot clobber a previously fetched full record.
package entitycache

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const logPrefix = "entitycache:cache"

// CachedAtField stamps every stored record with its write time.
const CachedAtField = "_cached_at"

// MaxAge is how long a cached record is considered fresh.
const MaxAge = 7 * 24 * time.Hour

// Cache is a file-backed entity store rooted at one directory per entity
// kind (jobs, profiles, companies).
type Cache struct {
	dir string
}

// New creates the cache directory if needed and returns the cache.
func New(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%s - create cache dir %s: %w", logPrefix, dir, err)
	}
	return &Cache{dir: dir}, nil
}

func (c *Cache) path(id string) string {
	// Platform ids can contain path-hostile characters.
	safe := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, id)
	return filepath.Join(c.dir, safe+".json")
}

// Get returns the cached record for id, or nil on a miss. A missing or
// malformed file is a miss, never an error: the caller falls through to a
// network fetch.
func (c *Cache) Get(id string) map[string]any {
	data, err := os.ReadFile(c.path(id))
	if err != nil {
		return nil
	}
	var record map[string]any
	if err := json.Unmarshal(data, &record); err != nil {
		slog.Warn(fmt.Sprintf("%s - malformed cache record %s, treating as miss: %v", logPrefix, id, err))
		return nil
	}
	return record
}

// GetFresh returns the cached record only if it is younger than MaxAge.
func (c *Cache) GetFresh(id string) map[string]any {
	record := c.Get(id)
	if record == nil {
		return nil
	}
	stamp, _ := record[CachedAtField].(string)
	cachedAt, err := time.Parse(time.RFC3339, stamp)
	if err != nil || time.Since(cachedAt) >= MaxAge {
		return nil
	}
	return record
}

// Put merges record into the stored entry for id and stamps CachedAtField.
// Merge rule: an incoming field fills a hole (absent or null) but never
// replaces an existing non-null value. The write is temp-then-rename so a
// concurrent reader never observes a partial file.
func (c *Cache) Put(id string, record map[string]any) error {
	if id == "" {
		return nil
	}

	merged := c.Get(id)
	if merged == nil {
		merged = map[string]any{}
	}
	for key, value := range record {
		if value == nil {
			continue
		}
		if existing, ok := merged[key]; !ok || existing == nil {
			merged[key] = value
		}
	}
	merged[CachedAtField] = time.Now().Format(time.RFC3339)

	data, err := json.MarshalIndent(merged, "", "  ")
	if err != nil {
		return fmt.Errorf("%s - marshal record %s: %w", logPrefix, id, err)
	}

	target := c.path(id)
	tmp, err := os.CreateTemp(c.dir, ".cache-*.tmp")
	if err != nil {
		return fmt.Errorf("%s - create temp file: %w", logPrefix, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%s - write record %s: %w", logPrefix, id, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%s - close temp file: %w", logPrefix, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%s - rename into place: %w", logPrefix, err)
	}
	return nil
}

// Prune removes records older than MaxAge, returning how many were dropped.
func (c *Cache) Prune() (int, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return 0, fmt.Errorf("%s - read cache dir: %w", logPrefix, err)
	}

	pruned := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ".json")
		record := c.Get(id)
		stale := record == nil
		if !stale {
			stamp, _ := record[CachedAtField].(string)
			cachedAt, err := time.Parse(time.RFC3339, stamp)
			stale = err != nil || time.Since(cachedAt) >= MaxAge
		}
		if stale {
			if err := os.Remove(filepath.Join(c.dir, entry.Name())); err == nil {
				pruned++
			}
		}
	}
	if pruned > 0 {
		slog.Info(fmt.Sprintf("%s - pruned %d stale records from %s", logPrefix, pruned, c.dir))
	}
	return pruned, nil
}
