package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/nextmovecargo/branding/internal/store"
)

// NewStore opens a fresh SQLite store in a temp directory and closes it
// when the test ends.
func NewStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.New(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// NewBrandingDoc returns a partially customised branding document, the
// shape an admin typically saves. Override fields with the With* options.
func NewBrandingDoc(opts ...func(map[string]any)) map[string]any {
	doc := map[string]any{
		"platform_name": "Acme Freight",
		"primary_color": "#ff0000",
		"hero": map[string]any{
			"title": "Ship anything, anywhere",
		},
	}
	for _, opt := range opts {
		opt(doc)
	}
	return doc
}

// WithPlatformName sets platform_name.
func WithPlatformName(name string) func(map[string]any) {
	return func(d map[string]any) { d["platform_name"] = name }
}

// WithColors sets the three theme colours.
func WithColors(primary, secondary, accent string) func(map[string]any) {
	return func(d map[string]any) {
		d["primary_color"] = primary
		d["secondary_color"] = secondary
		d["accent_color"] = accent
	}
}

// WithSection replaces a whole top-level section.
func WithSection(name string, section map[string]any) func(map[string]any) {
	return func(d map[string]any) { d[name] = section }
}

// WithPWA sets the pwa section.
func WithPWA(name, shortName, themeColor, background string) func(map[string]any) {
	return func(d map[string]any) {
		d["pwa"] = map[string]any{
			"app_name":         name,
			"short_name":       shortName,
			"theme_color":      themeColor,
			"background_color": background,
		}
	}
}
