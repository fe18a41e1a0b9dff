package projector

import (
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// DefaultBlobPrefix is the path blob URLs are served under.
const DefaultBlobPrefix = "/blobs/"

var _ ObjectURLs = (*BlobRegistry)(nil)

type blob struct {
	data        []byte
	contentType string
}

// BlobRegistry issues object URLs for generated content and serves them
// over HTTP until revoked.
type BlobRegistry struct {
	mu     sync.RWMutex
	prefix string
	blobs  map[string]blob
}

// NewBlobRegistry creates a registry issuing URLs under prefix.
func NewBlobRegistry(prefix string) *BlobRegistry {
	if prefix == "" {
		prefix = DefaultBlobPrefix
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &BlobRegistry{
		prefix: prefix,
		blobs:  make(map[string]blob),
	}
}

// Create stores a copy of data and returns its URL.
func (r *BlobRegistry) Create(data []byte, contentType string) string {
	url := r.prefix + uuid.NewString()
	r.mu.Lock()
	r.blobs[url] = blob{data: append([]byte(nil), data...), contentType: contentType}
	r.mu.Unlock()
	liveBlobs.Inc()
	return url
}

// Revoke drops the blob behind url. Unknown URLs are ignored.
func (r *BlobRegistry) Revoke(url string) {
	r.mu.Lock()
	_, ok := r.blobs[url]
	delete(r.blobs, url)
	r.mu.Unlock()
	if ok {
		liveBlobs.Dec()
	}
}

// Owns reports whether href is in this registry's URL space.
func (r *BlobRegistry) Owns(href string) bool {
	return strings.HasPrefix(href, r.prefix)
}

// Lookup returns the blob content for url.
func (r *BlobRegistry) Lookup(url string) ([]byte, string, bool) {
	r.mu.RLock()
	b, ok := r.blobs[url]
	r.mu.RUnlock()
	return b.data, b.contentType, ok
}

// Len returns the number of live blobs.
func (r *BlobRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.blobs)
}

// ServeHTTP serves a live blob by request path; revoked or unknown blobs
// are 404.
func (r *BlobRegistry) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	data, contentType, ok := r.Lookup(req.URL.Path)
	if !ok {
		http.NotFound(w, req)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if req.Method != http.MethodHead {
		_, _ = w.Write(data)
	}
}
