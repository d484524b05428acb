package assetcache

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Fetcher is the network side of the cache.
type Fetcher interface {
	Fetch(ctx context.Context, r *http.Request) (*Response, error)
}

// HandlerFetcher serves requests from an in-process handler, typically the
// embedded frontend file server.
type HandlerFetcher struct {
	Handler http.Handler
}

// Fetch implements Fetcher.
func (f HandlerFetcher) Fetch(ctx context.Context, r *http.Request) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.URL.RequestURI(), nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header = r.Header.Clone()
	for _, h := range conditionalHeaders {
		req.Header.Del(h)
	}
	bw := &bufferWriter{header: http.Header{}, status: http.StatusOK}
	f.Handler.ServeHTTP(bw, req)
	return &Response{Status: bw.status, Header: bw.header, Body: bw.body.Bytes()}, nil
}

// conditionalHeaders would turn a full response into a 206 or 304 that
// must not be stored under the plain request key.
var conditionalHeaders = []string{
	"Range",
	"If-Range",
	"If-Match",
	"If-None-Match",
	"If-Modified-Since",
	"If-Unmodified-Since",
}

// bufferWriter collects a handler's response in memory.
type bufferWriter struct {
	header      http.Header
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

func (w *bufferWriter) Header() http.Header { return w.header }

func (w *bufferWriter) WriteHeader(code int) {
	if w.wroteHeader {
		return
	}
	w.status = code
	w.wroteHeader = true
}

func (w *bufferWriter) Write(p []byte) (int, error) {
	w.wroteHeader = true
	return w.body.Write(p)
}

// HTTPFetcher fetches assets from an upstream origin over HTTP.
type HTTPFetcher struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPFetcher creates an HTTPFetcher targeting the given base URL.
func NewHTTPFetcher(baseURL string) *HTTPFetcher {
	return &HTTPFetcher{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, r *http.Request) (*Response, error) {
	u := f.baseURL + r.URL.RequestURI()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("fetcher: create request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetcher: %s: %w", r.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("fetcher: read body: %w", err)
	}
	return &Response{Status: resp.StatusCode, Header: resp.Header.Clone(), Body: body}, nil
}
