// Package dashboard serves the marketplace web root: the SPA shell, static
// assets and the base manifest.json.
package dashboard

import (
	"bytes"
	"html/template"
	"io/fs"
	"net/http"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/nextmovecargo/branding/internal/projector"
	"github.com/nextmovecargo/branding/internal/server"
)

// HeadSource exposes the projected page head.
type HeadSource interface {
	State() projector.HeadState
}

// WebRoot returns dir as a filesystem when it exists, otherwise the
// embedded web root.
func WebRoot(dir string, logger *zap.Logger) fs.FS {
	if dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			logger.Info("serving web root from disk", zap.String("dir", dir))
			return os.DirFS(dir)
		}
		logger.Warn("web root not found, using embedded assets", zap.String("dir", dir))
	}
	return Embedded()
}

// Handler returns an http.Handler that serves root as a single-page app.
// For any request that doesn't match a static file and isn't an API route,
// it serves index.html so client-side routing can handle it.
//
// index.html is executed as an html/template against head's current state,
// so the page carries the projected title, favicon, theme-color and
// manifest link. A nil head renders the template defaults. An index.html
// that does not parse is served as a plain file.
func Handler(root fs.FS, head HeadSource, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	fileServer := http.FileServer(http.FS(root))

	index := parseIndex(root, logger)

	serveIndex := func(w http.ResponseWriter, r *http.Request) {
		if index == nil {
			r.URL.Path = "/"
			fileServer.ServeHTTP(w, r)
			return
		}
		var state projector.HeadState
		if head != nil {
			state = head.State()
		}
		var buf bytes.Buffer
		if err := index.Execute(&buf, state); err != nil {
			logger.Warn("render index.html failed", zap.Error(err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		_, _ = w.Write(buf.Bytes())
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Don't serve SPA for API routes, health endpoints, or metrics
		if strings.HasPrefix(r.URL.Path, "/api/") ||
			strings.HasPrefix(r.URL.Path, "/blobs/") ||
			r.URL.Path == "/healthz" ||
			r.URL.Path == "/readyz" ||
			r.URL.Path == "/metrics" {
			server.NotFound(w, "no route for "+r.URL.Path, r.URL.Path)
			return
		}

		if r.URL.Path == "/" || r.URL.Path == "/index.html" {
			serveIndex(w, r)
			return
		}

		// Try to serve the file directly
		f, err := root.Open(strings.TrimPrefix(r.URL.Path, "/"))
		if err == nil {
			f.Close()
			fileServer.ServeHTTP(w, r)
			return
		}

		// File not found -- serve index.html for client-side routing
		serveIndex(w, r)
	})
}

func parseIndex(root fs.FS, logger *zap.Logger) *template.Template {
	data, err := fs.ReadFile(root, "index.html")
	if err != nil {
		logger.Warn("web root has no index.html", zap.Error(err))
		return nil
	}
	tmpl, err := template.New("index.html").Parse(string(data))
	if err != nil {
		logger.Warn("index.html is not a valid template, serving it verbatim", zap.Error(err))
		return nil
	}
	return tmpl
}
