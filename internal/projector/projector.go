// Package projector applies branding settings to a presentation host: CSS
// custom properties, favicon, title, theme-color and a generated web app
// manifest served from an object URL.
package projector

import (
	"bytes"
	"context"
	"encoding/json"
	"maps"
	"sync"

	"go.uber.org/zap"

	"github.com/nextmovecargo/branding/internal/branding"
)

// CSS custom properties written on every apply.
const (
	VarPrimaryColor   = "--primary-color"
	VarSecondaryColor = "--secondary-color"
	VarAccentColor    = "--accent-color"
)

// Host is the presentation surface branding is projected onto.
type Host interface {
	SetCSSVariable(name, value string)
	SetFavicon(href string)
	SetTitle(title string)
	SetThemeColor(color string)
	// ManifestHref reports the manifest link href and whether the host has
	// a manifest link at all.
	ManifestHref() (string, bool)
	SetManifestHref(href string)
}

// ManifestSource loads the manifest currently linked by the host.
type ManifestSource interface {
	FetchManifest(ctx context.Context, href string) (map[string]any, error)
}

// ObjectURLs creates and revokes URLs for in-memory content.
type ObjectURLs interface {
	Create(data []byte, contentType string) string
	Revoke(url string)
	// Owns reports whether href was issued by this registry.
	Owns(href string) bool
}

// Projector applies settings to a Host. Apply calls are serialised.
type Projector struct {
	mu        sync.Mutex
	host      Host
	manifests ManifestSource
	urls      ObjectURLs
	logger    *zap.Logger

	// last manifest issued, reused while its content is unchanged
	manifestHref string
	manifest     []byte
}

// New creates a Projector.
func New(host Host, manifests ManifestSource, urls ObjectURLs, logger *zap.Logger) *Projector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Projector{
		host:      host,
		manifests: manifests,
		urls:      urls,
		logger:    logger,
	}
}

// Apply projects s onto the host. Colours are always written; favicon,
// title and theme-color only when set. The manifest is rewritten when s
// has a pwa section and the host has a manifest link. Applying the same
// settings twice leaves the host unchanged: an identical manifest keeps
// its URL.
func (p *Projector) Apply(ctx context.Context, s branding.Settings) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.host.SetCSSVariable(VarPrimaryColor, s.PrimaryColor)
	p.host.SetCSSVariable(VarSecondaryColor, s.SecondaryColor)
	p.host.SetCSSVariable(VarAccentColor, s.AccentColor)

	if s.FaviconURL != "" {
		p.host.SetFavicon(s.FaviconURL)
	}
	if s.PlatformName != "" {
		p.host.SetTitle(s.PlatformName)
	}
	if s.PWA != nil && s.PWA.ThemeColor != "" {
		p.host.SetThemeColor(s.PWA.ThemeColor)
	}

	applyTotal.Inc()

	if s.PWA == nil {
		return
	}
	href, ok := p.host.ManifestHref()
	if !ok {
		return
	}
	p.rewriteManifest(ctx, href, s)
}

func (p *Projector) rewriteManifest(ctx context.Context, href string, s branding.Settings) {
	base, err := p.manifests.FetchManifest(ctx, href)
	if err != nil {
		manifestFetchFailures.Inc()
		p.logger.Debug("manifest fetch failed, starting from empty manifest",
			zap.String("href", href),
			zap.Error(err),
		)
		base = nil
	}

	manifest := make(map[string]any, len(base)+4)
	maps.Copy(manifest, base)
	manifest["name"] = firstNonEmpty(s.PWA.AppName, s.PlatformName)
	manifest["short_name"] = firstNonEmpty(s.PWA.ShortName, s.PlatformName)
	manifest["theme_color"] = s.PWA.ThemeColor
	manifest["background_color"] = s.PWA.BackgroundColor

	data, err := json.Marshal(manifest)
	if err != nil {
		p.logger.Warn("encode manifest failed", zap.Error(err))
		return
	}

	if href == p.manifestHref && bytes.Equal(data, p.manifest) {
		return
	}

	url := p.urls.Create(data, "application/json")
	p.host.SetManifestHref(url)
	if p.urls.Owns(href) {
		p.urls.Revoke(href)
	}
	p.manifestHref, p.manifest = url, data
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
