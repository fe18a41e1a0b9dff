package settings_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"

	"go.uber.org/zap"

	"github.com/nextmovecargo/branding/internal/auth"
	"github.com/nextmovecargo/branding/internal/branding"
	"github.com/nextmovecargo/branding/internal/projector"
	"github.com/nextmovecargo/branding/internal/server"
	"github.com/nextmovecargo/branding/internal/services"
	"github.com/nextmovecargo/branding/internal/settings"
	"github.com/nextmovecargo/branding/internal/testutil"
)

type testEnv struct {
	svc   *branding.Service
	head  *projector.HeadDocument
	blobs *projector.BlobRegistry
	proj  *projector.Projector
	mux   *http.ServeMux
}

func setupHandlerEnv(t *testing.T) *testEnv {
	t.Helper()

	repo, err := services.NewSQLiteSettingsRepository(context.Background(), testutil.NewStore(t))
	if err != nil {
		t.Fatalf("NewSQLiteSettingsRepository: %v", err)
	}
	return setupWithRepo(t, repo)
}

func setupWithRepo(t *testing.T, repo services.SettingsRepository) *testEnv {
	t.Helper()

	logger, _ := zap.NewDevelopment()
	svc, err := branding.NewService(repo, nil, logger)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	head := projector.NewHeadDocument("/manifest.json")
	blobs := projector.NewBlobRegistry(projector.DefaultBlobPrefix)
	sources := &projector.Sources{
		Blobs: blobs,
		WebRoot: fstest.MapFS{
			"manifest.json": {Data: []byte(`{"name":"Base","display":"standalone"}`)},
		},
	}

	mux := http.NewServeMux()
	settings.NewHandler(svc, head, blobs, logger).RegisterRoutes(mux)
	return &testEnv{
		svc:   svc,
		head:  head,
		blobs: blobs,
		proj:  projector.New(head, sources, blobs, logger),
		mux:   mux,
	}
}

type requestOpt func(*http.Request)

func asAdmin(r *http.Request) {
	claims := &auth.Claims{Email: "admin@nextmovecargo.com", AppMetadata: auth.AppMetadata{Role: "admin"}}
	*r = *r.WithContext(auth.WithUser(r.Context(), claims))
}

func asViewer(r *http.Request) {
	claims := &auth.Claims{Role: "authenticated"}
	*r = *r.WithContext(auth.WithUser(r.Context(), claims))
}

func withHeader(name, value string) requestOpt {
	return func(r *http.Request) { r.Header.Set(name, value) }
}

func doRequest(mux *http.ServeMux, method, path string, body any, opts ...requestOpt) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		_ = json.NewEncoder(&buf).Encode(b)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, opt := range opts {
		opt(req)
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decodeDoc(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var doc map[string]any
	if err := json.NewDecoder(w.Body).Decode(&doc); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return doc
}

func TestHandleGet_Defaults(t *testing.T) {
	env := setupHandlerEnv(t)

	w := doRequest(env.mux, "GET", "/api/v1/branding", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if got := w.Header().Get(settings.HeaderSource); got != "default" {
		t.Errorf("%s = %q, want default", settings.HeaderSource, got)
	}
	if got := w.Header().Get("ETag"); got != `"0"` {
		t.Errorf("ETag = %q, want \"0\"", got)
	}

	doc := decodeDoc(t, w)
	if doc["primary_color"] != "#2563eb" {
		t.Errorf("primary_color = %v, want #2563eb", doc["primary_color"])
	}
	pages := doc["pages"].(map[string]any)
	contact := pages["contact"].(map[string]any)
	if contact["title"] != "Contact Us" {
		t.Errorf("pages.contact.title = %v, want Contact Us", contact["title"])
	}
}

func TestHandlePatch_MergesAndPersists(t *testing.T) {
	env := setupHandlerEnv(t)

	w := doRequest(env.mux, "PATCH", "/api/v1/branding", map[string]any{
		"platform_name": "Acme Freight",
		"hero":          map[string]any{"title": "Ship it"},
	}, asAdmin)
	if w.Code != http.StatusOK {
		t.Fatalf("PATCH status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}
	if got := w.Header().Get("ETag"); got != `"1"` {
		t.Errorf("ETag = %q, want \"1\"", got)
	}

	w = doRequest(env.mux, "GET", "/api/v1/branding", nil)
	doc := decodeDoc(t, w)
	if doc["platform_name"] != "Acme Freight" {
		t.Errorf("platform_name = %v, want Acme Freight", doc["platform_name"])
	}
	if doc["primary_color"] != "#2563eb" {
		t.Errorf("primary_color = %v, want default kept", doc["primary_color"])
	}
	hero := doc["hero"].(map[string]any)
	if hero["title"] != "Ship it" {
		t.Errorf("hero.title = %v, want Ship it", hero["title"])
	}
	if _, ok := hero["subtitle"]; !ok {
		t.Error("hero.subtitle should be filled from defaults")
	}
	if got := w.Header().Get(settings.HeaderSource); got != "stored" {
		t.Errorf("%s = %q, want stored", settings.HeaderSource, got)
	}
}

func TestHandleGet_NotModified(t *testing.T) {
	env := setupHandlerEnv(t)
	doRequest(env.mux, "PATCH", "/api/v1/branding", map[string]any{"tagline": "x"}, asAdmin)

	w := doRequest(env.mux, "GET", "/api/v1/branding", nil, withHeader("If-None-Match", `"1"`))
	if w.Code != http.StatusNotModified {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotModified)
	}
}

func TestHandleGet_ETagFromBeforeResetIsStale(t *testing.T) {
	env := setupHandlerEnv(t)
	doRequest(env.mux, "PATCH", "/api/v1/branding", map[string]any{"tagline": "old"}, asAdmin)
	stale := doRequest(env.mux, "GET", "/api/v1/branding", nil).Header().Get("ETag")

	doRequest(env.mux, "DELETE", "/api/v1/branding", nil, asAdmin)
	doRequest(env.mux, "PATCH", "/api/v1/branding", map[string]any{"tagline": "new"}, asAdmin)

	w := doRequest(env.mux, "GET", "/api/v1/branding", nil, withHeader("If-None-Match", stale))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d for ETag %s", w.Code, http.StatusOK, stale)
	}
	if got := w.Header().Get("ETag"); got == stale {
		t.Errorf("ETag after reset = %s, want a new revision", got)
	}

	w = doRequest(env.mux, "PATCH", "/api/v1/branding", map[string]any{"tagline": "lost"},
		asAdmin, withHeader("If-Match", stale))
	if w.Code != http.StatusConflict {
		t.Errorf("If-Match %s status = %d, want %d", stale, w.Code, http.StatusConflict)
	}
}

func TestHandlePatch_RequiresAdmin(t *testing.T) {
	env := setupHandlerEnv(t)

	tests := []struct {
		name string
		opts []requestOpt
		want int
	}{
		{"anonymous", nil, http.StatusUnauthorized},
		{"viewer", []requestOpt{asViewer}, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(env.mux, "PATCH", "/api/v1/branding", map[string]any{"tagline": "x"}, tt.opts...)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}

	if doc := env.svc.GetSettings(context.Background()); doc["tagline"] == "x" {
		t.Error("unauthorised patch was persisted")
	}
}

func TestHandlePatch_InvalidBody(t *testing.T) {
	env := setupHandlerEnv(t)

	tests := []struct {
		name string
		body any
	}{
		{"malformed json", `{"platform_name":`},
		{"array", `[1,2,3]`},
		{"wrong identity type", map[string]any{"primary_color": 12}},
		{"section not an object", map[string]any{"hero": "big"}},
		{"oversized", `{"tagline":"` + strings.Repeat("a", 300<<10) + `"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(env.mux, "PATCH", "/api/v1/branding", tt.body, asAdmin)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d: %s", w.Code, http.StatusBadRequest, w.Body.String())
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/problem+json" {
				t.Errorf("Content-Type = %q, want application/problem+json", ct)
			}
		})
	}
}

func TestHandlePatch_SchemaIssuesReported(t *testing.T) {
	env := setupHandlerEnv(t)

	w := doRequest(env.mux, "PATCH", "/api/v1/branding", map[string]any{"primary_color": true}, asAdmin)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	var problem settings.BrandingProblemDetail
	if err := json.NewDecoder(w.Body).Decode(&problem); err != nil {
		t.Fatalf("decode problem: %v", err)
	}
	if len(problem.Errors) == 0 {
		t.Fatal("expected schema issues in problem body")
	}
	if !strings.Contains(problem.Errors[0].Location, "primary_color") {
		t.Errorf("issue location = %q, want it to name primary_color", problem.Errors[0].Location)
	}
}

func TestHandlePatch_IfMatch(t *testing.T) {
	env := setupHandlerEnv(t)

	w := doRequest(env.mux, "PATCH", "/api/v1/branding", map[string]any{"tagline": "first"},
		asAdmin, withHeader("If-Match", `"0"`))
	if w.Code != http.StatusOK {
		t.Fatalf("first write status = %d: %s", w.Code, w.Body.String())
	}

	w = doRequest(env.mux, "PATCH", "/api/v1/branding", map[string]any{"tagline": "stale"},
		asAdmin, withHeader("If-Match", `"0"`))
	if w.Code != http.StatusConflict {
		t.Errorf("stale write status = %d, want %d", w.Code, http.StatusConflict)
	}
	var problem server.Problem
	if err := json.NewDecoder(w.Body).Decode(&problem); err != nil {
		t.Fatalf("decode problem: %v", err)
	}
	if problem.Type != server.ProblemTypeConflict || problem.Instance != "/api/v1/branding" {
		t.Errorf("problem = %+v, want conflict type for /api/v1/branding", problem)
	}

	w = doRequest(env.mux, "PATCH", "/api/v1/branding", map[string]any{"tagline": "second"},
		asAdmin, withHeader("If-Match", `W/"1"`))
	if w.Code != http.StatusOK {
		t.Errorf("fresh write status = %d, want %d", w.Code, http.StatusOK)
	}

	w = doRequest(env.mux, "PATCH", "/api/v1/branding", map[string]any{"tagline": "x"},
		asAdmin, withHeader("If-Match", "latest"))
	if w.Code != http.StatusBadRequest {
		t.Errorf("malformed If-Match status = %d, want %d", w.Code, http.StatusBadRequest)
	}

	if got := env.svc.GetSettings(context.Background())["tagline"]; got != "second" {
		t.Errorf("tagline = %v, want second", got)
	}
}

func TestHandlePutField(t *testing.T) {
	env := setupHandlerEnv(t)

	w := doRequest(env.mux, "PUT", "/api/v1/branding/fields", map[string]any{
		"key":   "pages.about.title",
		"value": "About Acme",
	}, asAdmin)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	doc := env.svc.GetSettings(context.Background())
	about := doc["pages"].(map[string]any)["about"].(map[string]any)
	if about["title"] != "About Acme" {
		t.Errorf("pages.about.title = %v, want About Acme", about["title"])
	}
	if about["subtitle"] != "Building the most transparent freight marketplace" {
		t.Errorf("pages.about.subtitle = %v, want default kept", about["subtitle"])
	}
}

func TestHandlePutField_InvalidKey(t *testing.T) {
	env := setupHandlerEnv(t)

	for _, key := range []string{"", "pages..title", ".pages", "pages.about title"} {
		t.Run(key, func(t *testing.T) {
			w := doRequest(env.mux, "PUT", "/api/v1/branding/fields", map[string]any{"key": key, "value": "x"}, asAdmin)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestHandleReset(t *testing.T) {
	env := setupHandlerEnv(t)
	doRequest(env.mux, "PATCH", "/api/v1/branding", map[string]any{"platform_name": "Acme"}, asAdmin)

	w := doRequest(env.mux, "DELETE", "/api/v1/branding", nil, asAdmin)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if doc := decodeDoc(t, w); doc["platform_name"] != "NextMove Cargo" {
		t.Errorf("platform_name = %v, want NextMove Cargo", doc["platform_name"])
	}

	w = doRequest(env.mux, "GET", "/api/v1/branding", nil)
	if got := w.Header().Get(settings.HeaderSource); got != "default" {
		t.Errorf("%s after reset = %q, want default", settings.HeaderSource, got)
	}

	// Resetting twice is not an error.
	if w := doRequest(env.mux, "DELETE", "/api/v1/branding", nil, asAdmin); w.Code != http.StatusOK {
		t.Errorf("second reset status = %d", w.Code)
	}
}

func TestHandleDefaults(t *testing.T) {
	env := setupHandlerEnv(t)
	doRequest(env.mux, "PATCH", "/api/v1/branding", map[string]any{"platform_name": "Acme"}, asAdmin)

	w := doRequest(env.mux, "GET", "/api/v1/branding/defaults", nil)
	if doc := decodeDoc(t, w); doc["platform_name"] != "NextMove Cargo" {
		t.Errorf("platform_name = %v, want NextMove Cargo", doc["platform_name"])
	}
}

func TestHandleHeadAndCSS(t *testing.T) {
	env := setupHandlerEnv(t)
	doRequest(env.mux, "PATCH", "/api/v1/branding", map[string]any{
		"platform_name": "Acme Freight",
		"primary_color": "#ff0000",
	}, asAdmin)
	env.proj.Apply(context.Background(), env.svc.Load(context.Background()).Settings())

	w := doRequest(env.mux, "GET", "/branding.css", nil)
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/css") {
		t.Errorf("Content-Type = %q, want text/css", ct)
	}
	if !strings.Contains(w.Body.String(), "--primary-color: #ff0000;") {
		t.Errorf("css missing primary color:\n%s", w.Body.String())
	}

	w = doRequest(env.mux, "GET", "/api/v1/branding/head", nil)
	var state projector.HeadState
	if err := json.NewDecoder(w.Body).Decode(&state); err != nil {
		t.Fatalf("decode head: %v", err)
	}
	if state.Title != "Acme Freight" {
		t.Errorf("title = %q, want Acme Freight", state.Title)
	}
	if !env.blobs.Owns(state.ManifestHref) {
		t.Fatalf("manifest href %q is not a blob URL", state.ManifestHref)
	}

	w = doRequest(env.mux, "GET", state.ManifestHref, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("manifest status = %d", w.Code)
	}
	manifest := decodeDoc(t, w)
	if manifest["name"] != "NextMove Cargo" || manifest["display"] != "standalone" {
		t.Errorf("manifest = %v", manifest)
	}
}

// failingRepo fails every write and read.
type failingRepo struct{}

var errDown = errors.New("database is down")

func (failingRepo) Get(context.Context, string) (*services.Setting, error) { return nil, errDown }
func (failingRepo) Set(context.Context, string, string) (*services.Setting, error) {
	return nil, errDown
}
func (failingRepo) SetIfRevision(context.Context, string, string, int64) (*services.Setting, error) {
	return nil, errDown
}
func (failingRepo) Delete(context.Context, string) error { return errDown }

func TestHandlers_StoreDown(t *testing.T) {
	env := setupWithRepo(t, failingRepo{})

	w := doRequest(env.mux, "GET", "/api/v1/branding", nil)
	if w.Code != http.StatusOK {
		t.Errorf("GET status = %d, want 200 with defaults", w.Code)
	}
	if got := w.Header().Get(settings.HeaderSource); got != "fallback" {
		t.Errorf("%s = %q, want fallback", settings.HeaderSource, got)
	}

	w = doRequest(env.mux, "PATCH", "/api/v1/branding", map[string]any{"tagline": "x"}, asAdmin)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("PATCH status = %d, want 500", w.Code)
	}
	if strings.Contains(w.Body.String(), "database is down") {
		t.Error("store error leaked into the response")
	}

	w = doRequest(env.mux, "DELETE", "/api/v1/branding", nil, asAdmin)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("DELETE status = %d, want 500", w.Code)
	}
}
