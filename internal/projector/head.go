package projector

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
)

var _ Host = (*HeadDocument)(nil)

// HeadState is a copy of a HeadDocument's state.
type HeadState struct {
	CSSVariables map[string]string `json:"css_variables"`
	Favicon      string            `json:"favicon,omitempty"`
	Title        string            `json:"title,omitempty"`
	ThemeColor   string            `json:"theme_color,omitempty"`
	ManifestHref string            `json:"manifest_href,omitempty"`
}

// HeadDocument is an in-memory Host: the server-side model of the page head
// that branding-aware clients render from.
type HeadDocument struct {
	mu          sync.RWMutex
	vars        map[string]string
	favicon     string
	title       string
	themeColor  string
	manifest    string
	hasManifest bool
}

// NewHeadDocument creates a head document. A non-empty manifestHref gives
// it a manifest link pointing at the static base manifest.
func NewHeadDocument(manifestHref string) *HeadDocument {
	return &HeadDocument{
		vars:        make(map[string]string),
		manifest:    manifestHref,
		hasManifest: manifestHref != "",
	}
}

func (h *HeadDocument) SetCSSVariable(name, value string) {
	h.mu.Lock()
	h.vars[name] = value
	h.mu.Unlock()
}

func (h *HeadDocument) SetFavicon(href string) {
	h.mu.Lock()
	h.favicon = href
	h.mu.Unlock()
}

func (h *HeadDocument) SetTitle(title string) {
	h.mu.Lock()
	h.title = title
	h.mu.Unlock()
}

func (h *HeadDocument) SetThemeColor(color string) {
	h.mu.Lock()
	h.themeColor = color
	h.mu.Unlock()
}

func (h *HeadDocument) ManifestHref() (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.manifest, h.hasManifest
}

func (h *HeadDocument) SetManifestHref(href string) {
	h.mu.Lock()
	h.manifest = href
	h.hasManifest = true
	h.mu.Unlock()
}

// State returns a copy of the current head state.
func (h *HeadDocument) State() HeadState {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return HeadState{
		CSSVariables: maps.Clone(h.vars),
		Favicon:      h.favicon,
		Title:        h.title,
		ThemeColor:   h.themeColor,
		ManifestHref: h.manifest,
	}
}

// cssValueReplacer strips characters that would end a declaration or block.
var cssValueReplacer = strings.NewReplacer(";", "", "{", "", "}", "", "<", "", ">", "", "\n", "", "\r", "")

// CSS renders the CSS variables as a :root rule, sorted by name.
func (h *HeadDocument) CSS() string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var b strings.Builder
	b.WriteString(":root {\n")
	for _, name := range slices.Sorted(maps.Keys(h.vars)) {
		fmt.Fprintf(&b, "  %s: %s;\n", name, cssValueReplacer.Replace(h.vars[name]))
	}
	b.WriteString("}\n")
	return b.String()
}
