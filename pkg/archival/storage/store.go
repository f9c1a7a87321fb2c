package storage

import (
	"context"

	"mercator-hq/archivist/pkg/archival"
)

// Store persists retention policies and table access grants.
type Store interface {
	// ListPolicies returns every policy ordered by table name.
	ListPolicies(ctx context.Context) ([]archival.RetentionPolicy, error)

	// GetPolicy returns the policy for a table or archival.ErrPolicyNotFound.
	GetPolicy(ctx context.Context, table string) (*archival.RetentionPolicy, error)

	// UpsertPolicy creates or replaces the policy keyed by its table name.
	UpsertPolicy(ctx context.Context, policy archival.RetentionPolicy) (*archival.RetentionPolicy, error)

	// DeletePolicy removes a policy or returns archival.ErrPolicyNotFound.
	DeletePolicy(ctx context.Context, table string) error

	// GetGrant returns the grant of a principal or archival.ErrGrantNotFound.
	GetGrant(ctx context.Context, principal string) (*archival.TableAccessGrant, error)

	// ListGrants returns every grant ordered by principal.
	ListGrants(ctx context.Context) ([]archival.TableAccessGrant, error)

	// UpsertGrant creates or replaces the grant keyed by its principal.
	UpsertGrant(ctx context.Context, grant archival.TableAccessGrant) (*archival.TableAccessGrant, error)

	// Close releases resources held by the store.
	Close() error
}
