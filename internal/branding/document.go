// Package branding owns the marketplace branding document: the embedded
// default template, the merge of a persisted document over it, partial
// updates and reset, and the typed view used for rendering.
package branding

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
)

// SettingsKey is the system_settings row holding the branding document.
const SettingsKey = "branding"

// Document is a branding document as stored: a JSON object whose sections
// are nested objects of scalar fields.
type Document map[string]any

// MergedSections are the top-level sections merged key by key over the
// defaults. Any other top-level key is replaced wholesale.
var MergedSections = []string{
	"images",
	"hero",
	"stats",
	"features",
	"howItWorks",
	"testimonials",
	"cta",
	"footer",
	"pwa",
	"social_media",
	"seo",
	"documents",
}

// PageSections are the sub-sections of "pages" merged key by key.
var PageSections = []string{"about", "contact", "privacy"}

// ParseDocument decodes a stored value. An empty value or JSON null yields
// an empty document; any other non-object is an error.
func ParseDocument(data []byte) (Document, error) {
	if len(data) == 0 {
		return Document{}, nil
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode branding document: %w", err)
	}
	if v == nil {
		return Document{}, nil
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("decode branding document: expected object, got %T", v)
	}
	return Document(obj), nil
}

// Clone returns a deep copy. Nested Document values are copied as plain
// maps so the result is JSON-shaped throughout.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	return Document(cloneObject(d))
}

// Section returns the named top-level section, or nil when it is absent or
// not an object.
func (d Document) Section(name string) map[string]any {
	obj, _ := asObject(d[name])
	return obj
}

// Keys returns the top-level keys in unspecified order.
func (d Document) Keys() []string {
	return slices.Collect(maps.Keys(d))
}

func asObject(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case Document:
		return t, true
	default:
		return nil, false
	}
}

func cloneObject(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneObject(t)
	case Document:
		return cloneObject(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}
