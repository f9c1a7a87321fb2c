package policyfile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"mercator-hq/archivist/pkg/archival"
)

// File is the on-disk shape of a policy file.
type File struct {
	Policies []archival.RetentionPolicy `yaml:"policies"`
	Grants   []Grant                    `yaml:"grants"`
}

// Grant is a table access grant as written in a policy file.
type Grant struct {
	Principal string   `yaml:"principal"`
	Tables    []string `yaml:"tables"`
}

// Store is the subset of the control store a sync writes to.
type Store interface {
	ListPolicies(ctx context.Context) ([]archival.RetentionPolicy, error)
	UpsertPolicy(ctx context.Context, policy archival.RetentionPolicy) (*archival.RetentionPolicy, error)
	DeletePolicy(ctx context.Context, table string) error
	UpsertGrant(ctx context.Context, grant archival.TableAccessGrant) (*archival.TableAccessGrant, error)
}

// SyncResult summarizes one sync.
type SyncResult struct {
	Policies int
	Grants   int
	Pruned   []string
}

// Load reads and validates a policy file.
func Load(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open policy file: %w", err)
	}
	defer f.Close()

	return Parse(f)
}

// Parse decodes a policy file. Unknown keys are rejected. Policies are
// normalized and every problem across the file is reported at once.
func Parse(r io.Reader) (*File, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}

	var file File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse policy file: %w", err)
	}

	var errs []error
	seen := make(map[string]bool, len(file.Policies))
	for i := range file.Policies {
		p := &file.Policies[i]
		p.Normalize()
		if err := p.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("policies[%d]: %w", i, err))
			continue
		}
		if seen[p.TableName] {
			errs = append(errs, fmt.Errorf("policies[%d]: duplicate table %q", i, p.TableName))
		}
		seen[p.TableName] = true
	}

	principals := make(map[string]bool, len(file.Grants))
	for i := range file.Grants {
		g := &file.Grants[i]
		g.Tables = archival.NormalizeTables(g.Tables)
		if g.Principal == "" {
			errs = append(errs, fmt.Errorf("grants[%d]: principal is required", i))
			continue
		}
		if principals[g.Principal] {
			errs = append(errs, fmt.Errorf("grants[%d]: duplicate principal %q", i, g.Principal))
		}
		principals[g.Principal] = true
		for _, table := range g.Tables {
			if err := archival.ValidateIdentifier(table); err != nil {
				errs = append(errs, fmt.Errorf("grants[%d]: %w", i, err))
			}
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return &file, nil
}

// Sync writes the file's policies and grants into store. With prune set,
// stored policies the file no longer names are deleted.
func Sync(ctx context.Context, store Store, file *File, prune bool, logger *slog.Logger) (*SyncResult, error) {
	if logger == nil {
		logger = slog.Default()
	}
	result := &SyncResult{}

	wanted := make(map[string]bool, len(file.Policies))
	for _, p := range file.Policies {
		if _, err := store.UpsertPolicy(ctx, p); err != nil {
			return result, fmt.Errorf("failed to sync policy %q: %w", p.TableName, err)
		}
		wanted[p.TableName] = true
		result.Policies++
	}

	for _, g := range file.Grants {
		grant := archival.TableAccessGrant{Principal: g.Principal, Tables: g.Tables}
		if _, err := store.UpsertGrant(ctx, grant); err != nil {
			return result, fmt.Errorf("failed to sync grant for %q: %w", g.Principal, err)
		}
		result.Grants++
	}

	if prune {
		existing, err := store.ListPolicies(ctx)
		if err != nil {
			return result, fmt.Errorf("failed to list policies: %w", err)
		}
		for _, p := range existing {
			if wanted[p.TableName] {
				continue
			}
			if err := store.DeletePolicy(ctx, p.TableName); err != nil && !errors.Is(err, archival.ErrPolicyNotFound) {
				return result, fmt.Errorf("failed to prune policy %q: %w", p.TableName, err)
			}
			result.Pruned = append(result.Pruned, p.TableName)
		}
	}

	logger.Info("policy file synced",
		"policies", result.Policies,
		"grants", result.Grants,
		"pruned", len(result.Pruned),
	)
	return result, nil
}

// LoadAndSync loads path and syncs it into store.
func LoadAndSync(ctx context.Context, store Store, path string, prune bool, logger *slog.Logger) (*SyncResult, error) {
	file, err := Load(path)
	if err != nil {
		return nil, err
	}
	return Sync(ctx, store, file, prune, logger)
}
