// Package assets loads model, texture and overlay bytes from local
// directories and HTTP(S) URLs, with an in-memory cache.
package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/garment-studio/pkg/formats"
)

// Asset errors.
var (
	ErrNotFound = errors.New("asset not found")
	ErrTooLarge = errors.New("asset exceeds size limit")
)

// DefaultMaxBytes bounds a single remote download.
const DefaultMaxBytes = 64 << 20

// Options configures a Manager.
type Options struct {
	Dirs     []string
	Client   *http.Client
	Timeout  time.Duration
	MaxBytes int64
	Logger   *zap.Logger
}

// Manager resolves references against its directories and the network.
type Manager struct {
	dirs     []string
	client   *http.Client
	maxBytes int64
	log      *zap.Logger
	cache    *Cache
	mu       sync.RWMutex
}

// NewManager creates a manager.
func NewManager(opts Options) *Manager {
	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Manager{
		dirs:     append([]string(nil), opts.Dirs...),
		client:   client,
		maxBytes: opts.MaxBytes,
		log:      opts.Logger,
		cache:    NewCache(),
	}
}

// AddDir adds a search directory.
// Directories are searched in reverse order (last added = highest priority).
func (m *Manager) AddDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("adding asset dir %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("adding asset dir %s: not a directory", dir)
	}
	m.mu.Lock()
	m.dirs = append(m.dirs, dir)
	m.mu.Unlock()
	return nil
}

// IsRemote reports whether ref is an http or https URL.
func IsRemote(ref string) bool {
	u, err := url.Parse(ref)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Fetch returns the bytes behind ref.
func (m *Manager) Fetch(ctx context.Context, ref string) ([]byte, error) {
	if ref == "" {
		return nil, fmt.Errorf("%w: empty reference", ErrNotFound)
	}
	if data, ok := m.cache.Get(ref); ok {
		return data, nil
	}

	var (
		data []byte
		err  error
	)
	if IsRemote(ref) {
		data, err = m.download(ctx, ref)
	} else {
		data, err = m.readLocal(ref)
	}
	if err != nil {
		return nil, err
	}
	m.cache.Set(ref, data)
	m.log.Debug("asset loaded", zap.String("ref", ref), zap.Int("bytes", len(data)))
	return data, nil
}

func (m *Manager) readLocal(ref string) ([]byte, error) {
	if filepath.IsAbs(ref) {
		return readFile(ref)
	}

	rel := filepath.FromSlash(ref)
	if !filepath.IsLocal(rel) {
		return nil, fmt.Errorf("%w: %s escapes asset directories", ErrNotFound, ref)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := len(m.dirs) - 1; i >= 0; i-- {
		data, err := readFile(filepath.Join(m.dirs[i], rel))
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	if len(m.dirs) == 0 {
		// no search path configured: relative to the working directory
		return readFile(rel)
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
}

func readFile(p string) ([]byte, error) {
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", p, err)
	}
	return data, nil
}

func (m *Manager) download(ctx context.Context, ref string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("requesting %s: %w", ref, err)
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", ref, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("fetching %s: unexpected status %s", ref, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, m.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", ref, err)
	}
	if int64(len(data)) > m.maxBytes {
		return nil, fmt.Errorf("%w: %s", ErrTooLarge, ref)
	}
	return data, nil
}

// Resolver returns a formats.Resolver that loads names relative to base,
// the reference of the model being parsed.
func (m *Manager) Resolver(ctx context.Context, base string) formats.Resolver {
	return func(name string) ([]byte, error) {
		return m.Fetch(ctx, Join(base, name))
	}
}

// Join resolves name against the directory of base.
func Join(base, name string) string {
	if IsRemote(name) || filepath.IsAbs(name) {
		return name
	}
	if IsRemote(base) {
		u, err := url.Parse(base)
		if err != nil {
			return name
		}
		ref, err := url.Parse(name)
		if err != nil {
			return name
		}
		return u.ResolveReference(ref).String()
	}
	name = strings.ReplaceAll(name, "\\", "/")
	if filepath.IsAbs(base) {
		return filepath.Join(filepath.Dir(base), filepath.FromSlash(name))
	}
	return path.Join(path.Dir(filepath.ToSlash(base)), name)
}

// Close drops cached data.
func (m *Manager) Close() {
	m.cache.Clear()
}

// Cache returns the manager's cache.
func (m *Manager) Cache() *Cache {
	return m.cache
}

// Cache is a simple in-memory cache for loaded assets.
type Cache struct {
	data map[string][]byte
	mu   sync.Mutex

	// Stats
	hits   int
	misses int
}

// NewCache creates a new cache.
func NewCache() *Cache {
	return &Cache{
		data: make(map[string][]byte),
	}
}

// Get retrieves an item from cache.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, ok := c.data[key]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return data, ok
}

// Set stores an item in cache.
func (c *Cache) Set(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = data
}

// Delete removes an item.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
}

// Clear clears the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string][]byte)
	c.hits = 0
	c.misses = 0
}

// Stats returns cache statistics.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
