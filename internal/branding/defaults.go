package branding

import (
	_ "embed"
	"encoding/json"
)

//go:embed defaults.json
var defaultsJSON []byte

var defaultTemplate Document

func init() {
	if err := json.Unmarshal(defaultsJSON, &defaultTemplate); err != nil {
		panic("branding: invalid embedded defaults.json: " + err.Error())
	}
}

// Defaults returns a fresh copy of the default template. Every field the
// marketplace can render has a value here.
func Defaults() Document {
	return defaultTemplate.Clone()
}

// DefaultsJSON returns the embedded default template as written.
func DefaultsJSON() []byte {
	return append([]byte(nil), defaultsJSON...)
}
