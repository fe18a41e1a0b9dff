// Package settings provides HTTP handlers for the branding endpoints.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"go.uber.org/zap"

	"github.com/nextmovecargo/branding/internal/auth"
	"github.com/nextmovecargo/branding/internal/branding"
	"github.com/nextmovecargo/branding/internal/projector"
	"github.com/nextmovecargo/branding/internal/server"
)

// maxBodyBytes caps PATCH and PUT bodies.
const maxBodyBytes = 256 << 10

// Response headers.
const (
	HeaderSource = "X-Branding-Source"
	HeaderETag   = "ETag"
)

var fieldKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+(\.[A-Za-z0-9_-]+)*$`)

// ProblemTypeValidation marks a problem whose errors list schema issues.
const ProblemTypeValidation = "https://nextmovecargo.com/problems/branding-validation"

// BrandingProblemDetail is the 400 response for a patch that fails schema
// validation.
// @Description RFC 7807 Problem Details with schema validation issues.
type BrandingProblemDetail struct {
	Type   string                     `json:"type" example:"https://nextmovecargo.com/problems/branding-validation"`
	Title  string                     `json:"title" example:"Bad Request"`
	Status int                        `json:"status" example:"400"`
	Detail string                     `json:"detail" example:"branding schema validation failed"`
	Errors []branding.ValidationIssue `json:"errors,omitempty"`
}

// FieldUpdateRequest sets one leaf of the branding document.
// @Description Request body for updating a single branding field by dot path.
type FieldUpdateRequest struct {
	Key   string `json:"key" example:"pages.about.title"`
	Value any    `json:"value" swaggertype:"string" example:"About NextMove Cargo"`
}

// Validate checks the key is a well-formed dot path.
func (r FieldUpdateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Key,
			validation.Required,
			validation.Length(1, 256),
			validation.Match(fieldKeyPattern).Error("must be a dot-separated path such as pages.about.title"),
		),
	)
}

// HeadView exposes the projected page head.
type HeadView interface {
	State() projector.HeadState
	CSS() string
}

// Handler provides HTTP handlers for branding endpoints.
type Handler struct {
	svc    *branding.Service
	head   HeadView
	blobs  http.Handler
	logger *zap.Logger
}

// NewHandler creates a branding Handler. head and blobs may be nil, which
// leaves the head, stylesheet and blob routes unregistered.
func NewHandler(svc *branding.Service, head HeadView, blobs http.Handler, logger *zap.Logger) *Handler {
	return &Handler{
		svc:    svc,
		head:   head,
		blobs:  blobs,
		logger: logger,
	}
}

// RegisterRoutes registers branding routes on the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Public reads
	mux.HandleFunc("GET /api/v1/branding", h.handleGet)
	mux.HandleFunc("GET /api/v1/branding/defaults", h.handleDefaults)

	// Admin writes
	mux.Handle("PATCH /api/v1/branding", auth.RequireAdmin(http.HandlerFunc(h.handlePatch)))
	mux.Handle("PUT /api/v1/branding/fields", auth.RequireAdmin(http.HandlerFunc(h.handlePutField)))
	mux.Handle("DELETE /api/v1/branding", auth.RequireAdmin(http.HandlerFunc(h.handleReset)))

	if h.head != nil {
		mux.HandleFunc("GET /api/v1/branding/head", h.handleHead)
		mux.HandleFunc("GET /branding.css", h.handleCSS)
	}
	if h.blobs != nil {
		mux.Handle("GET /blobs/", h.blobs)
	}
}

// handleGet returns the persisted branding merged over the defaults.
//
//	@Summary		Get branding
//	@Description	Returns the full branding document. Never fails: missing or unreadable settings fall back to the defaults.
//	@Tags			branding
//	@Produce		json
//	@Success		200	{object}	map[string]any	"Merged branding document"
//	@Success		304	"Not modified"
//	@Router			/branding [get]
func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	snap := h.svc.Load(r.Context())
	etag := formatETag(snap.Revision)
	if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
		w.Header().Set(HeaderETag, etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	writeSnapshot(w, http.StatusOK, snap)
}

// handleDefaults returns the built-in default template.
//
//	@Summary		Get default branding
//	@Description	Returns the built-in default branding document.
//	@Tags			branding
//	@Produce		json
//	@Success		200	{object}	map[string]any	"Default branding document"
//	@Router			/branding/defaults [get]
func (h *Handler) handleDefaults(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Defaults())
}

// handlePatch merges a partial document over the current branding.
//
//	@Summary		Update branding
//	@Description	Shallow-merges the body over the current document at the top level. Nested sections must be sent whole.
//	@Tags			branding
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			If-Match	header		string					false	"Expected revision"
//	@Param			request		body		map[string]any			true	"Partial branding document"
//	@Success		200			{object}	map[string]any			"Updated branding document"
//	@Failure		400			{object}	BrandingProblemDetail	"Invalid body"
//	@Failure		401			{object}	server.Problem	"Unauthenticated"
//	@Failure		403			{object}	server.Problem	"Admin role required"
//	@Failure		409			{object}	server.Problem	"Revision conflict"
//	@Failure		500			{object}	server.Problem	"Write failed"
//	@Router			/branding [patch]
func (h *Handler) handlePatch(w http.ResponseWriter, r *http.Request) {
	opts, ok := h.writeOptions(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		server.BadRequest(w, "request body too large or unreadable", r.URL.Path)
		return
	}
	patch, err := branding.ParseDocument(body)
	if err != nil {
		server.BadRequest(w, "request body must be a JSON object", r.URL.Path)
		return
	}

	snap, err := h.svc.Update(r.Context(), patch, opts)
	if err != nil {
		h.writeUpdateError(w, r, err)
		return
	}
	writeSnapshot(w, http.StatusOK, snap)
}

// handlePutField sets a single branding field by dot path.
//
//	@Summary		Update branding field
//	@Description	Sets one leaf, e.g. pages.about.title, keeping its siblings.
//	@Tags			branding
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			If-Match	header		string					false	"Expected revision"
//	@Param			request		body		FieldUpdateRequest		true	"Field path and value"
//	@Success		200			{object}	map[string]any			"Updated branding document"
//	@Failure		400			{object}	BrandingProblemDetail	"Invalid key or value"
//	@Failure		409			{object}	server.Problem	"Revision conflict"
//	@Failure		500			{object}	server.Problem	"Write failed"
//	@Router			/branding/fields [put]
func (h *Handler) handlePutField(w http.ResponseWriter, r *http.Request) {
	opts, ok := h.writeOptions(w, r)
	if !ok {
		return
	}

	var req FieldUpdateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		server.BadRequest(w, "invalid request body", r.URL.Path)
		return
	}
	if err := req.Validate(); err != nil {
		server.BadRequest(w, err.Error(), r.URL.Path)
		return
	}

	snap, err := h.svc.UpdatePath(r.Context(), req.Key, req.Value, opts)
	if err != nil {
		h.writeUpdateError(w, r, err)
		return
	}
	writeSnapshot(w, http.StatusOK, snap)
}

// handleReset deletes the stored branding.
//
//	@Summary		Reset branding
//	@Description	Deletes the stored branding and returns the defaults.
//	@Tags			branding
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	map[string]any			"Default branding document"
//	@Failure		500	{object}	server.Problem	"Delete failed"
//	@Router			/branding [delete]
func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	doc, err := h.svc.Reset(r.Context(), auth.Actor(r.Context()))
	if err != nil {
		h.logger.Error("failed to reset branding", zap.Error(err))
		server.InternalError(w, "failed to reset branding", r.URL.Path)
		return
	}
	w.Header().Set(HeaderSource, string(branding.SourceDefault))
	w.Header().Set(HeaderETag, formatETag(0))
	writeJSON(w, http.StatusOK, doc)
}

// handleHead returns the projected page head.
//
//	@Summary		Get page head
//	@Description	Returns the CSS variables, favicon, title, theme color and manifest link derived from the current branding.
//	@Tags			branding
//	@Produce		json
//	@Success		200	{object}	projector.HeadState
//	@Router			/branding/head [get]
func (h *Handler) handleHead(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.head.State())
}

func (h *Handler) handleCSS(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = io.WriteString(w, h.head.CSS())
}

// writeOptions builds write options from If-Match and the caller identity.
// It writes a 400 and returns false for a malformed If-Match.
func (h *Handler) writeOptions(w http.ResponseWriter, r *http.Request) (branding.WriteOptions, bool) {
	opts := branding.WriteOptions{Actor: auth.Actor(r.Context())}
	raw := r.Header.Get("If-Match")
	if raw == "" {
		return opts, true
	}
	rev, err := parseETag(raw)
	if err != nil {
		server.BadRequest(w, "If-Match must be a branding revision", r.URL.Path)
		return opts, false
	}
	opts.IfRevision = &rev
	return opts, true
}

func (h *Handler) writeUpdateError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, branding.ErrSchemaValidation):
		writeValidationError(w, branding.Issues(err))
	case errors.Is(err, branding.ErrInvalidPath):
		server.BadRequest(w, err.Error(), r.URL.Path)
	case errors.Is(err, branding.ErrRevisionConflict):
		server.Conflict(w, err.Error(), r.URL.Path)
	default:
		h.logger.Error("failed to update branding", zap.Error(err))
		server.InternalError(w, "failed to save branding", r.URL.Path)
	}
}

func formatETag(rev int64) string {
	return `"` + strconv.FormatInt(rev, 10) + `"`
}

// parseETag accepts `"3"`, `W/"3"` and a bare 3.
func parseETag(raw string) (int64, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "W/")
	s = strings.Trim(s, `"`)
	rev, err := strconv.ParseInt(s, 10, 64)
	if err != nil || rev < 0 {
		return 0, fmt.Errorf("invalid revision %q", raw)
	}
	return rev, nil
}

func writeSnapshot(w http.ResponseWriter, status int, snap branding.Snapshot) {
	w.Header().Set(HeaderETag, formatETag(snap.Revision))
	w.Header().Set(HeaderSource, string(snap.Source))
	writeJSON(w, status, snap.Doc)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeValidationError writes a 400 problem listing the schema issues.
func writeValidationError(w http.ResponseWriter, issues []branding.ValidationIssue) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(BrandingProblemDetail{
		Type:   ProblemTypeValidation,
		Title:  http.StatusText(http.StatusBadRequest),
		Status: http.StatusBadRequest,
		Detail: branding.ErrSchemaValidation.Error(),
		Errors: issues,
	})
}
