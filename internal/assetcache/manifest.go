package assetcache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"net/http"
	"strings"
)

// FallbackHeader marks a response that stands in for a path naming no
// asset, such as index.html served for an unknown route. Such responses
// are never stored.
const FallbackHeader = "X-Asset-Fallback"

// Manifest names a versioned cache and the assets it must hold.
type Manifest struct {
	Name    string
	Version string
	Assets  []string
}

// CacheName is the name of the current cache, e.g. projeto-5km-cache-v2.
func (m Manifest) CacheName() string {
	return m.Name + "-" + m.Version
}

// Key normalizes an asset path to the key used in the cache: a rooted
// path.
func Key(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path
}

// RequestKey returns the cache key for a request.
func RequestKey(r *http.Request) string {
	k := Key(r.URL.Path)
	if r.URL.RawQuery != "" {
		k += "?" + r.URL.RawQuery
	}
	return k
}

// DeriveVersion hashes the asset list and the assets' contents in fsys so
// that any change to either yields a new version tag. "/" hashes
// index.html.
func DeriveVersion(fsys fs.FS, assets []string) (string, error) {
	h := sha256.New()
	for _, a := range assets {
		name := strings.TrimPrefix(Key(a), "/")
		if name == "" {
			name = "index.html"
		}
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return "", fmt.Errorf("hashing asset %s: %w", a, err)
		}
		fmt.Fprintf(h, "%s\x00%d\x00", a, len(data))
		h.Write(data)
	}
	return hex.EncodeToString(h.Sum(nil))[:12], nil
}
