package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"mercator-hq/archivist/pkg/archival"
	"mercator-hq/archivist/pkg/archival/query"
	"mercator-hq/archivist/pkg/archival/storage"
	"mercator-hq/archivist/pkg/security/auth"
)

// Sweeper runs retention sweeps.
type Sweeper interface {
	RunSweep(ctx context.Context) (*archival.SweepResult, error)
	Trigger(ctx context.Context) (string, error)
}

// ArchiveQuerier serves archive reads.
type ArchiveQuerier interface {
	QueryArchive(ctx context.Context, caller auth.Identity, req query.Request) ([]query.Record, error)
}

// Service is the entry point shared by the HTTP API and the CLI. Every
// operation that acts on behalf of a caller takes its identity explicitly.
type Service struct {
	store   storage.Store
	authz   *auth.Authorizer
	sweeper Sweeper
	querier ArchiveQuerier
	logger  *slog.Logger
}

// New creates a Service.
func New(store storage.Store, authz *auth.Authorizer, sweeper Sweeper, querier ArchiveQuerier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:   store,
		authz:   authz,
		sweeper: sweeper,
		querier: querier,
		logger:  logger.With("component", "archival.service"),
	}
}

// ConfigurePolicy creates or replaces the policy for policy.TableName. The
// caller must be an admin or hold a grant on the table.
func (s *Service) ConfigurePolicy(ctx context.Context, caller auth.Identity, policy archival.RetentionPolicy) (*archival.RetentionPolicy, error) {
	policy.Normalize()

	if err := s.authz.CheckTableAccess(ctx, caller, policy.TableName); err != nil {
		return nil, err
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	saved, err := s.store.UpsertPolicy(ctx, policy)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "retention policy configured",
		"user", caller.Username,
		"table", saved.TableName,
		"archive_after", fmt.Sprintf("%d %s", saved.ArchiveAfter, saved.ArchiveUnit),
		"delete_after", fmt.Sprintf("%d %s", saved.DeleteAfter, saved.DeleteUnit),
		"age_column", saved.AgeColumn,
	)
	return saved, nil
}

// ListPolicies returns every policy to admins and only granted tables'
// policies to everyone else.
func (s *Service) ListPolicies(ctx context.Context, caller auth.Identity) ([]archival.RetentionPolicy, error) {
	all, tables, err := s.authz.AccessibleTables(ctx, caller)
	if err != nil {
		return nil, err
	}

	policies, err := s.store.ListPolicies(ctx)
	if err != nil {
		return nil, err
	}
	if all {
		return policies, nil
	}

	allowed := make(map[string]bool, len(tables))
	for _, t := range tables {
		allowed[t] = true
	}
	out := make([]archival.RetentionPolicy, 0, len(tables))
	for _, p := range policies {
		if allowed[p.TableName] {
			out = append(out, p)
		}
	}
	return out, nil
}

// GetPolicy returns the policy of one table.
func (s *Service) GetPolicy(ctx context.Context, caller auth.Identity, table string) (*archival.RetentionPolicy, error) {
	if err := s.authz.CheckTableAccess(ctx, caller, table); err != nil {
		return nil, err
	}
	return s.store.GetPolicy(ctx, table)
}

// DeletePolicy removes the policy of one table. Its rows are no longer
// archived or purged; existing archive rows are kept.
func (s *Service) DeletePolicy(ctx context.Context, caller auth.Identity, table string) error {
	if err := s.authz.CheckTableAccess(ctx, caller, table); err != nil {
		return err
	}
	if err := s.store.DeletePolicy(ctx, table); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "retention policy deleted", "user", caller.Username, "table", table)
	return nil
}

// AssignTables replaces the table grant of grant.Principal. Admin only.
func (s *Service) AssignTables(ctx context.Context, caller auth.Identity, grant archival.TableAccessGrant) (*archival.TableAccessGrant, error) {
	if err := s.authz.RequireAdmin(caller); err != nil {
		return nil, err
	}

	grant.Principal = strings.TrimSpace(grant.Principal)
	if grant.Principal == "" {
		return nil, &archival.ValidationError{Field: "userName", Message: "is required"}
	}
	grant.Tables = archival.NormalizeTables(grant.Tables)
	for _, t := range grant.Tables {
		if err := archival.ValidateIdentifier(t); err != nil {
			return nil, &archival.ValidationError{Field: "tableNames", Message: err.Error()}
		}
	}

	saved, err := s.store.UpsertGrant(ctx, grant)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "table access assigned",
		"user", caller.Username,
		"principal", saved.Principal,
		"tables", strings.Join(saved.Tables, ","),
	)
	return saved, nil
}

// ListGrants returns every grant. Admin only.
func (s *Service) ListGrants(ctx context.Context, caller auth.Identity) ([]archival.TableAccessGrant, error) {
	if err := s.authz.RequireAdmin(caller); err != nil {
		return nil, err
	}
	return s.store.ListGrants(ctx)
}

// TriggerSweep starts a sweep in the background and returns its run id.
// Admin only. The outcome is reported through logs and metrics.
func (s *Service) TriggerSweep(ctx context.Context, caller auth.Identity) (string, error) {
	if err := s.authz.RequireAdmin(caller); err != nil {
		return "", err
	}
	runID, err := s.sweeper.Trigger(ctx)
	if err != nil {
		return "", err
	}
	s.logger.InfoContext(ctx, "sweep triggered", "user", caller.Username, "run_id", runID)
	return runID, nil
}

// RunSweep runs one sweep synchronously. It is used by trusted callers such
// as the CLI and carries no identity.
func (s *Service) RunSweep(ctx context.Context) (*archival.SweepResult, error) {
	return s.sweeper.RunSweep(ctx)
}

// QueryArchive reads one page of a table's archive.
func (s *Service) QueryArchive(ctx context.Context, caller auth.Identity, req query.Request) ([]query.Record, error) {
	return s.querier.QueryArchive(ctx, caller, req)
}
