package dashboard

import (
	"embed"
	"io/fs"
)

//go:embed all:public
var embeddedFS embed.FS

// Embedded returns the built-in web root: a shell index.html and the base
// PWA manifest the projector rewrites.
func Embedded() fs.FS {
	sub, err := fs.Sub(embeddedFS, "public")
	if err != nil {
		panic("dashboard: failed to create sub filesystem: " + err.Error())
	}
	return sub
}
