// Package assetcache is a versioned cache of static assets with install,
// activate and fetch-interception hooks. One cache name is current per
// version tag; activation evicts every other cache.
package assetcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ErrInstallFailed wraps the first asset failure of a strict install.
var ErrInstallFailed = errors.New("cache install failed")

// defaultConcurrency bounds parallel asset fetches during install.
const defaultConcurrency = 4

// defaultMaxRuntimeEntries bounds entries Fetch may add beyond the
// manifest.
const defaultMaxRuntimeEntries = 64

// Options tune the manager.
type Options struct {
	// BestEffort skips assets that fail to fetch instead of aborting the
	// whole install.
	BestEffort bool
	// Concurrency bounds parallel fetches during install.
	Concurrency int
	// MaxRuntimeEntries bounds the entries Fetch stores on a miss, on top
	// of the manifest assets. Further misses are served uncached.
	MaxRuntimeEntries int
}

// Manager owns the current cache version.
type Manager struct {
	storage  Storage
	fetcher  Fetcher
	manifest Manifest
	opts     Options
	log      *slog.Logger

	mu        sync.RWMutex
	installed bool
	claimed   bool
}

// New creates a Manager.
func New(storage Storage, fetcher Fetcher, manifest Manifest, opts Options, log *slog.Logger) *Manager {
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.MaxRuntimeEntries <= 0 {
		opts.MaxRuntimeEntries = defaultMaxRuntimeEntries
	}
	return &Manager{
		storage:  storage,
		fetcher:  fetcher,
		manifest: manifest,
		opts:     opts,
		log:      log,
	}
}

// CacheName returns the current cache name.
func (m *Manager) CacheName() string {
	return m.manifest.CacheName()
}

// Manifest returns the manifest the manager installs.
func (m *Manager) Manifest() Manifest {
	return m.manifest
}

// Installed reports whether Install succeeded.
func (m *Manager) Installed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.installed
}

// Claimed reports whether Activate ran.
func (m *Manager) Claimed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.claimed
}

type fetched struct {
	key  string
	resp *Response
}

// Install fetches every manifest asset concurrently and stores them in the
// current cache. In strict mode the first failure aborts the install and
// nothing is written, leaving older caches untouched. A cache the install
// created is removed again if storing fails; one that already existed is
// kept. On success the new version is current immediately.
func (m *Manager) Install(ctx context.Context) error {
	name := m.CacheName()
	m.log.Info("installing asset cache", "cache", name, "assets", len(m.manifest.Assets))

	results := make([]fetched, len(m.manifest.Assets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.opts.Concurrency)

	for i, asset := range m.manifest.Assets {
		key := Key(asset)
		g.Go(func() error {
			resp, err := m.fetchAsset(gctx, key)
			if err != nil {
				if m.opts.BestEffort {
					m.log.Warn("skipping asset", "cache", name, "asset", key, "error", err)
					return nil
				}
				return fmt.Errorf("%w: %s: %v", ErrInstallFailed, key, err)
			}
			results[i] = fetched{key: key, resp: resp}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		m.log.Error("asset cache install failed", "cache", name, "error", err)
		return err
	}

	existing, err := m.storage.Keys(ctx)
	if err != nil {
		return fmt.Errorf("%w: listing caches: %v", ErrInstallFailed, err)
	}
	existed := slices.Contains(existing, name)

	cache, err := m.storage.Open(ctx, name)
	if err != nil {
		return fmt.Errorf("%w: opening cache %s: %v", ErrInstallFailed, name, err)
	}
	stored := 0
	for _, f := range results {
		if f.resp == nil {
			continue
		}
		if err := cache.Put(ctx, f.key, f.resp); err != nil {
			if !existed {
				if _, derr := m.storage.Delete(ctx, name); derr != nil {
					m.log.Warn("removing partial cache", "cache", name, "error", derr)
				}
			}
			return fmt.Errorf("%w: storing %s: %v", ErrInstallFailed, f.key, err)
		}
		stored++
	}

	m.mu.Lock()
	m.installed = true
	m.mu.Unlock()
	m.log.Info("asset cache installed", "cache", name, "stored", stored)
	return nil
}

func (m *Manager) fetchAsset(ctx context.Context, key string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, key, nil)
	if err != nil {
		return nil, err
	}
	resp, err := m.fetcher.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}
	if !resp.Storable() {
		return nil, fmt.Errorf("status %d", resp.Status)
	}
	return resp, nil
}

// Activate deletes every cache except the current one and claims
// fetches. It returns the deleted names.
func (m *Manager) Activate(ctx context.Context) ([]string, error) {
	name := m.CacheName()
	names, err := m.storage.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing caches: %w", err)
	}

	var deleted []string
	for _, n := range names {
		if n == name {
			continue
		}
		if _, err := m.storage.Delete(ctx, n); err != nil {
			return deleted, fmt.Errorf("deleting cache %s: %w", n, err)
		}
		m.log.Info("deleted stale asset cache", "cache", n)
		deleted = append(deleted, n)
	}

	m.mu.Lock()
	m.claimed = true
	m.mu.Unlock()
	return deleted, nil
}

// ListCaches returns the names of all existing caches.
func (m *Manager) ListCaches(ctx context.Context) ([]string, error) {
	return m.storage.Keys(ctx)
}

// Fetch answers an asset request: the cached copy when present, otherwise
// the network response. A copy is stored for http(s) GET requests
// answered with a full 200 that is not a fallback page, while the cache
// holds fewer than MaxRuntimeEntries entries beyond the manifest. Errors
// propagate to the caller.
func (m *Manager) Fetch(ctx context.Context, r *http.Request) (*Response, error) {
	if !m.Installed() {
		return m.fetcher.Fetch(ctx, r)
	}

	key := RequestKey(r)
	cache, err := m.storage.Open(ctx, m.CacheName())
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}
	if cached, ok, err := cache.Match(ctx, key); err != nil {
		return nil, fmt.Errorf("matching %s: %w", key, err)
	} else if ok {
		return cached, nil
	}

	resp, err := m.fetcher.Fetch(ctx, r)
	if err != nil {
		return nil, err
	}
	if cacheable(r) && resp.Storable() && m.hasRoom(ctx, cache) {
		if err := cache.Put(ctx, key, resp); err != nil {
			m.log.Warn("caching asset", "key", key, "error", err)
		}
	}
	return resp, nil
}

func (m *Manager) hasRoom(ctx context.Context, cache Cache) bool {
	n, err := cache.Len(ctx)
	if err != nil {
		m.log.Warn("counting cache entries", "cache", m.CacheName(), "error", err)
		return false
	}
	if n >= len(m.manifest.Assets)+m.opts.MaxRuntimeEntries {
		m.log.Debug("asset cache full, not storing", "cache", m.CacheName(), "entries", n)
		return false
	}
	return true
}

// cacheable reports whether a request may be stored. Only GETs over
// network schemes are; a relative (server-side) URL counts as http.
func cacheable(r *http.Request) bool {
	if r.Method != "" && r.Method != http.MethodGet {
		return false
	}
	switch strings.ToLower(r.URL.Scheme) {
	case "", "http", "https":
		return true
	}
	return false
}

// Handler intercepts GET requests outside /api/ and answers them through
// Fetch. Other requests go to next.
func (m *Manager) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || strings.HasPrefix(r.URL.Path, "/api/") {
			next.ServeHTTP(w, r)
			return
		}
		resp, err := m.Fetch(r.Context(), r)
		if err != nil {
			m.log.Error("asset fetch failed", "path", r.URL.Path, "error", err)
			http.Error(w, "asset unavailable", http.StatusBadGateway)
			return
		}
		for k, vs := range resp.Header {
			if k == FallbackHeader {
				continue
			}
			for _, v := range vs {
				w.Header().Add(k, v)
			}
		}
		w.WriteHeader(resp.Status)
		_, _ = w.Write(resp.Body)
	})
}
