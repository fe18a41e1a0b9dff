package server

import "net/http"

// ReadOnlyMiddleware freezes branding during a maintenance window.
// Only GET, HEAD, and OPTIONS requests are allowed; all other HTTP methods
// are rejected with 405 Method Not Allowed.
func ReadOnlyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
		default:
			w.Header().Set("Allow", "GET, HEAD, OPTIONS")
			WriteProblem(w, Problem{
				Type:     ProblemTypeReadOnly,
				Title:    "Method Not Allowed",
				Status:   http.StatusMethodNotAllowed,
				Detail:   "read-only mode: branding changes are disabled",
				Instance: r.URL.Path,
			})
		}
	})
}
