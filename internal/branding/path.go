package branding

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPath is returned for an empty path or one with empty segments.
var ErrInvalidPath = errors.New("invalid branding path")

// SplitPath splits a dot path such as "pages.about.title".
func SplitPath(path string) ([]string, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	segs := strings.Split(path, ".")
	for _, s := range segs {
		if s == "" {
			return nil, fmt.Errorf("%w: %q has an empty segment", ErrInvalidPath, path)
		}
	}
	return segs, nil
}

// SetPath returns a copy of doc with the leaf at path set to value. Every
// object on the path is a new map; untouched siblings are shared with doc,
// which is never modified. Missing or non-object intermediates become
// objects.
func SetPath(doc Document, path string, value any) (Document, error) {
	segs, err := SplitPath(path)
	if err != nil {
		return nil, err
	}
	return Document(setIn(doc, segs, value)), nil
}

func setIn(m map[string]any, segs []string, value any) map[string]any {
	out := make(map[string]any, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	if len(segs) == 1 {
		out[segs[0]] = value
		return out
	}
	child, _ := asObject(m[segs[0]])
	out[segs[0]] = setIn(child, segs[1:], value)
	return out
}

// GetPath returns the value at path and whether it exists.
func GetPath(doc Document, path string) (any, bool) {
	segs, err := SplitPath(path)
	if err != nil {
		return nil, false
	}
	var cur any = map[string]any(doc)
	for _, s := range segs {
		obj, ok := asObject(cur)
		if !ok {
			return nil, false
		}
		cur, ok = obj[s]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}
