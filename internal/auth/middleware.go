package auth

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/nextmovecargo/branding/internal/server"
)

// authUserKey is a context key for the authenticated caller.
type authUserKey struct{}

// UserFromContext returns the authenticated caller from the request
// context, or nil for anonymous requests.
func UserFromContext(ctx context.Context) *Claims {
	if c, ok := ctx.Value(authUserKey{}).(*Claims); ok {
		return c
	}
	return nil
}

// WithUser returns ctx carrying claims.
func WithUser(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, authUserKey{}, claims)
}

// Actor returns a printable identity for logs and change events.
func Actor(ctx context.Context) string {
	c := UserFromContext(ctx)
	if c == nil {
		return ""
	}
	if c.Email != "" {
		return c.Email
	}
	return c.Subject
}

// AuthMiddleware identifies the caller on API routes. Branding reads are
// public, so a request without credentials passes through anonymously;
// credentials that are present but invalid are rejected with 401.
// RequireAdmin enforces authorization per route.
func AuthMiddleware(tokens *TokenService, apiKeyHash string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasPrefix(r.URL.Path, "/api/") {
				next.ServeHTTP(w, r)
				return
			}

			if key := r.Header.Get(APIKeyHeader); key != "" {
				if !CheckAPIKey(apiKeyHash, key) {
					logger.Warn("rejected api key", zap.String("remote_addr", r.RemoteAddr))
					writeAuthError(w, http.StatusUnauthorized, "invalid api key")
					return
				}
				claims := &Claims{AppMetadata: AppMetadata{Role: string(RoleAdmin)}}
				claims.Subject = APIKeySubject
				next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), claims)))
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}
			if !strings.HasPrefix(authHeader, "Bearer ") {
				writeAuthError(w, http.StatusUnauthorized, "missing or invalid authorization header")
				return
			}

			claims, err := tokens.Validate(strings.TrimPrefix(authHeader, "Bearer "))
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "invalid or expired access token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), claims)))
		})
	}
}

// DevAuthMiddleware skips credential checks and treats every API request as
// an admin. Only wired when auth.mode is "dev".
func DevAuthMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasPrefix(r.URL.Path, "/api/") {
				next.ServeHTTP(w, r)
				return
			}
			claims := &Claims{
				Email:       "dev@localhost",
				AppMetadata: AppMetadata{Role: string(RoleAdmin)},
			}
			claims.Subject = "dev"
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), claims)))
		})
	}
}

// RequireAdmin rejects anonymous callers with 401 and non-admins with 403.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := UserFromContext(r.Context())
		if claims == nil {
			writeAuthError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		if !claims.IsAdmin() {
			writeAuthError(w, http.StatusForbidden, "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeAuthError(w http.ResponseWriter, status int, detail string) {
	problemType := server.ProblemTypeUnauthorized
	if status == http.StatusForbidden {
		problemType = server.ProblemTypeForbidden
	}
	server.WriteProblem(w, server.Problem{
		Type:   problemType,
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
	})
}
