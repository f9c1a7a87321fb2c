package auth

import (
	"context"
	"errors"
	"log/slog"

	"mercator-hq/archivist/pkg/archival"
)

// GrantSource looks up table grants.
type GrantSource interface {
	GetGrant(ctx context.Context, principal string) (*archival.TableAccessGrant, error)
}

// HasPermission is the access rule: administrators may access every table,
// anyone else only tables listed in their grant.
func HasPermission(id Identity, adminRole string, grant *archival.TableAccessGrant, table string) bool {
	if id.HasRole(adminRole) {
		return true
	}
	return grant != nil && grant.Principal == id.Username && grant.Allows(table)
}

// Authorizer applies HasPermission against stored grants.
type Authorizer struct {
	grants    GrantSource
	adminRole string
	logger    *slog.Logger
}

// NewAuthorizer creates an Authorizer. An empty adminRole uses DefaultAdminRole.
func NewAuthorizer(grants GrantSource, adminRole string) *Authorizer {
	if adminRole == "" {
		adminRole = DefaultAdminRole
	}
	return &Authorizer{
		grants:    grants,
		adminRole: adminRole,
		logger:    slog.Default().With("component", "security.auth"),
	}
}

// IsAdmin reports whether id carries the administrator role.
func (a *Authorizer) IsAdmin(id Identity) bool {
	return id.HasRole(a.adminRole)
}

// RequireAdmin fails with a PermissionDeniedError wrapping archival.ErrNotAdmin.
func (a *Authorizer) RequireAdmin(id Identity) error {
	if a.IsAdmin(id) {
		return nil
	}
	a.logger.Warn("admin operation denied", "user", id.Username)
	return &archival.PermissionDeniedError{Principal: id.Username, Cause: archival.ErrNotAdmin}
}

// CheckTableAccess returns nil if id may access table, a PermissionDeniedError
// if not, or the grant lookup error.
func (a *Authorizer) CheckTableAccess(ctx context.Context, id Identity, table string) error {
	if a.IsAdmin(id) {
		return nil
	}

	grant, err := a.lookup(ctx, id)
	if err != nil {
		return err
	}
	if HasPermission(id, a.adminRole, grant, table) {
		return nil
	}

	a.logger.Warn("table access denied", "user", id.Username, "table", table)
	return archival.NewPermissionDeniedError(id.Username, table)
}

// AccessibleTables returns the tables id may access. all is true for
// administrators, in which case tables is nil.
func (a *Authorizer) AccessibleTables(ctx context.Context, id Identity) (all bool, tables []string, err error) {
	if a.IsAdmin(id) {
		return true, nil, nil
	}
	grant, err := a.lookup(ctx, id)
	if err != nil {
		return false, nil, err
	}
	if grant == nil {
		return false, []string{}, nil
	}
	return false, grant.Tables, nil
}

func (a *Authorizer) lookup(ctx context.Context, id Identity) (*archival.TableAccessGrant, error) {
	if id.Username == "" {
		return nil, nil
	}
	grant, err := a.grants.GetGrant(ctx, id.Username)
	if errors.Is(err, archival.ErrGrantNotFound) {
		return nil, nil
	}
	return grant, err
}
