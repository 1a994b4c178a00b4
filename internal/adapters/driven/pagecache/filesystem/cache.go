// Package filesystem implements the page cache as files under a
// directory. Keys map to relative paths; writes are atomic.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sspi-index/sspi-engine/internal/core/domain"
	"github.com/sspi-index/sspi-engine/internal/core/ports/driven"
)

// Ensure Cache implements the interface.
var _ driven.PageCache = (*Cache)(nil)

// Cache stores pages under dir. Pages older than maxAge are misses.
type Cache struct {
	dir    string
	maxAge time.Duration
	now    func() time.Time
}

// New creates a cache rooted at dir. maxAge of zero keeps pages forever.
func New(dir string, maxAge time.Duration) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create page cache dir: %w", err)
	}
	return &Cache{dir: dir, maxAge: maxAge, now: time.Now}, nil
}

func (c *Cache) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if key == "" || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: page key %q", domain.ErrInvalidInput, key)
	}
	return filepath.Join(c.dir, clean), nil
}

// Get returns the cached page.
func (c *Cache) Get(_ context.Context, key string) ([]byte, bool, error) {
	p, err := c.path(key)
	if err != nil {
		return nil, false, err
	}
	info, err := os.Stat(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("stat page: %w", err)
	}
	if c.maxAge > 0 && c.now().Sub(info.ModTime()) > c.maxAge {
		return nil, false, nil
	}
	b, err := os.ReadFile(p)
	if err != nil {
		return nil, false, fmt.Errorf("read page: %w", err)
	}
	return b, true, nil
}

// Put writes page under key.
func (c *Cache) Put(_ context.Context, key string, page []byte) error {
	p, err := c.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
		return fmt.Errorf("create page dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(p), ".page-*")
	if err != nil {
		return fmt.Errorf("create temp page: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(page); err != nil {
		tmp.Close()
		return fmt.Errorf("write page: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close page: %w", err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return fmt.Errorf("rename page: %w", err)
	}
	return nil
}
