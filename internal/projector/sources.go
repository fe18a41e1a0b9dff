package projector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"path"
	"strings"
)

const maxManifestBytes = 1 << 20

var errNoSource = errors.New("no manifest source for href")

// Sources resolves a manifest href the way a browser would: object URLs
// from the blob registry, absolute http(s) URLs over the network, and
// anything else relative to the web root.
type Sources struct {
	Blobs   *BlobRegistry
	WebRoot fs.FS
	Client  *http.Client
}

var _ ManifestSource = (*Sources)(nil)

func (s *Sources) FetchManifest(ctx context.Context, href string) (map[string]any, error) {
	data, err := s.read(ctx, href)
	if err != nil {
		return nil, err
	}
	var manifest map[string]any
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("decode manifest %s: %w", href, err)
	}
	if manifest == nil {
		return nil, fmt.Errorf("decode manifest %s: not an object", href)
	}
	return manifest, nil
}

func (s *Sources) read(ctx context.Context, href string) ([]byte, error) {
	if s.Blobs != nil && s.Blobs.Owns(href) {
		data, _, ok := s.Blobs.Lookup(href)
		if !ok {
			return nil, fmt.Errorf("blob %s has been revoked", href)
		}
		return data, nil
	}

	u, err := url.Parse(href)
	if err != nil {
		return nil, fmt.Errorf("parse manifest href: %w", err)
	}
	if u.Scheme == "http" || u.Scheme == "https" {
		return s.fetchHTTP(ctx, u.String())
	}
	if u.Scheme != "" || s.WebRoot == nil {
		return nil, fmt.Errorf("%w: %s", errNoSource, href)
	}

	name := strings.TrimPrefix(path.Clean("/"+u.Path), "/")
	data, err := fs.ReadFile(s.WebRoot, name)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", name, err)
	}
	return data, nil
}

func (s *Sources) fetchHTTP(ctx context.Context, href string) ([]byte, error) {
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, href, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/manifest+json, application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch manifest: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch manifest: status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxManifestBytes))
}
