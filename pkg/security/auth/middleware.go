package auth

import (
	"context"
	"log/slog"
	"net/http"
)

// Default trusted identity headers set by the upstream gateway.
const (
	DefaultUsernameHeader = "X-Username"
	DefaultRolesHeader    = "X-Roles"
)

// HeaderMiddleware builds an Identity from headers set by a trusted proxy.
// It does not authenticate; deploy it only behind a gateway that does.
type HeaderMiddleware struct {
	usernameHeader string
	rolesHeader    string
}

// NewHeaderMiddleware creates the middleware. Empty names use the defaults.
func NewHeaderMiddleware(usernameHeader, rolesHeader string) *HeaderMiddleware {
	if usernameHeader == "" {
		usernameHeader = DefaultUsernameHeader
	}
	if rolesHeader == "" {
		rolesHeader = DefaultRolesHeader
	}
	return &HeaderMiddleware{
		usernameHeader: usernameHeader,
		rolesHeader:    rolesHeader,
	}
}

// Handle rejects requests without a username header with 401 and stores
// the Identity in the request context otherwise.
func (m *HeaderMiddleware) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := m.Extract(r)
		if !ok {
			slog.Warn("missing identity headers",
				"header", m.usernameHeader,
				"remote_addr", r.RemoteAddr,
				"path", r.URL.Path,
			)
			http.Error(w, "Missing identity headers", http.StatusUnauthorized)
			return
		}

		slog.Debug("request identity resolved",
			"user", id.Username,
			"roles", id.Roles,
			"path", r.URL.Path,
		)

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

// Extract reads the identity headers.
func (m *HeaderMiddleware) Extract(r *http.Request) (Identity, bool) {
	username := r.Header.Get(m.usernameHeader)
	if username == "" {
		return Identity{}, false
	}
	return Identity{
		Username: username,
		Roles:    ParseRoles(r.Header.Get(m.rolesHeader)),
	}, true
}

type contextKey string

const identityKey contextKey = "identity"

// WithIdentity returns a context carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFrom retrieves the identity stored by the middleware.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}
