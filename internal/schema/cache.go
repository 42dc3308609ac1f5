package schema

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/goccy/go-json"
	"golang.org/x/sync/singleflight"

	"github.com/waitrain/waitrain/internal/apperr"
	"github.com/waitrain/waitrain/internal/observability"
)

// Cache memoizes schema maps by cache file path. A map, once loaded or built,
// is never refreshed; delete the file and restart to pick up schema changes.
//
// Returned maps are shared between callers and must not be modified.
type Cache struct {
	logger *slog.Logger

	mu      sync.RWMutex
	entries map[string]Map
	builds  singleflight.Group
}

func NewCache(logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Cache{logger: logger, entries: map[string]Map{}}
}

// GetOrBuild returns the schema map stored at path, reading the file or
// introspecting source on first use. Concurrent first calls for one path
// share a single build.
func (c *Cache) GetOrBuild(ctx context.Context, source Source, path string) (Map, error) {
	key, err := filepath.Abs(path)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnexpected, "schema", "resolve schema cache path", err)
	}

	if cached, ok := c.lookup(key); ok {
		observability.ObserveSchemaCacheLookup("memory")
		return cached, nil
	}

	// Builds are shared by every caller waiting on key and run detached
	// from any single caller's cancellation.
	buildCtx := context.WithoutCancel(ctx)
	value, err, _ := c.builds.Do(key, func() (any, error) {
		if cached, ok := c.lookup(key); ok {
			return cached, nil
		}
		loaded, err := c.load(buildCtx, source, key)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[key] = loaded
		c.mu.Unlock()
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}
	return value.(Map), nil
}

func (c *Cache) lookup(key string) (Map, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cached, ok := c.entries[key]
	return cached, ok
}

func (c *Cache) load(ctx context.Context, source Source, path string) (Map, error) {
	fromDisk, err := ReadFile(path)
	if err == nil {
		observability.ObserveSchemaCacheLookup("disk")
		return fromDisk, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, apperr.Wrap(apperr.KindUnexpected, "schema", "read schema cache "+path, err)
	}

	if source == nil {
		return nil, apperr.New(apperr.KindUnexpected, "schema", "no schema source for "+path)
	}
	built, err := source.Introspect(ctx)
	if err != nil {
		return nil, err
	}
	if built == nil {
		built = Map{}
	}
	observability.ObserveSchemaCacheLookup("source")

	if err := WriteFile(path, built); err != nil {
		return nil, apperr.Wrap(apperr.KindUnexpected, "schema", "write schema cache "+path, err)
	}
	c.logger.InfoContext(ctx, "schema cache written",
		slog.String("path", path),
		slog.Int("tables", len(built)),
	)
	return built, nil
}

// ReadFile decodes a schema cache file. A missing file yields an error
// matching fs.ErrNotExist.
func ReadFile(path string) (Map, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(bytes.NewReader(body))
}

// WriteFile stores m at path, creating parent directories. The file is
// replaced atomically so readers never see a partial document.
func WriteFile(path string, m Map) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create schema cache dir: %w", err)
	}
	body, err := Encode(m)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".schema-cache-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(body); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace schema cache: %w", err)
	}
	return nil
}

// Encode renders m as indented JSON with sorted table names. Non-ASCII and
// HTML characters are written as-is.
func Encode(m Map) ([]byte, error) {
	if m == nil {
		m = Map{}
	}
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(m); err != nil {
		return nil, fmt.Errorf("encode schema cache: %w", err)
	}
	return buf.Bytes(), nil
}

func Decode(r io.Reader) (Map, error) {
	var m Map
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("decode schema cache: %w", err)
	}
	if m == nil {
		m = Map{}
	}
	return m, nil
}
