package assetcache

import (
	"context"
	"net/http"
	"sort"
	"sync"
)

// Response is a stored copy of an asset response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Storable reports whether the response is a complete asset: a 200 that is
// not a fallback page.
func (r *Response) Storable() bool {
	return r.Status == http.StatusOK && r.Header.Get(FallbackHeader) == ""
}

// Clone returns a deep copy so cached bodies are never shared with callers.
func (r *Response) Clone() *Response {
	return &Response{
		Status: r.Status,
		Header: r.Header.Clone(),
		Body:   append([]byte(nil), r.Body...),
	}
}

// Cache is one named cache.
type Cache interface {
	Match(ctx context.Context, key string) (*Response, bool, error)
	Put(ctx context.Context, key string, resp *Response) error
	// Len returns the number of stored entries.
	Len(ctx context.Context) (int, error)
}

// Storage holds the named caches.
type Storage interface {
	// Open returns the named cache, creating it if needed.
	Open(ctx context.Context, name string) (Cache, error)
	// Keys lists existing cache names.
	Keys(ctx context.Context) ([]string, error)
	// Delete removes a cache and reports whether it existed.
	Delete(ctx context.Context, name string) (bool, error)
}

// MemoryStorage keeps caches in process memory.
type MemoryStorage struct {
	mu     sync.Mutex
	caches map[string]*memoryCache
}

// NewMemoryStorage creates an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{caches: make(map[string]*memoryCache)}
}

// Open implements Storage.
func (s *MemoryStorage) Open(_ context.Context, name string) (Cache, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.caches[name]
	if !ok {
		c = &memoryCache{entries: make(map[string]*Response)}
		s.caches[name] = c
	}
	return c, nil
}

// Keys implements Storage.
func (s *MemoryStorage) Keys(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.caches))
	for n := range s.caches {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

// Delete implements Storage.
func (s *MemoryStorage) Delete(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.caches[name]
	delete(s.caches, name)
	return ok, nil
}

type memoryCache struct {
	mu      sync.RWMutex
	entries map[string]*Response
}

func (c *memoryCache) Match(_ context.Context, key string) (*Response, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	return r.Clone(), true, nil
}

func (c *memoryCache) Put(_ context.Context, key string, resp *Response) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = resp.Clone()
	return nil
}

func (c *memoryCache) Len(_ context.Context) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries), nil
}
