package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"mercator-hq/archivist/pkg/archival"
)

// MemoryStore is an in-memory Store for tests and single-process use.
type MemoryStore struct {
	mu       sync.RWMutex
	policies map[string]archival.RetentionPolicy
	grants   map[string]archival.TableAccessGrant
	now      func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		policies: make(map[string]archival.RetentionPolicy),
		grants:   make(map[string]archival.TableAccessGrant),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ListPolicies implements Store.
func (m *MemoryStore) ListPolicies(_ context.Context) ([]archival.RetentionPolicy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]archival.RetentionPolicy, 0, len(m.policies))
	for _, p := range m.policies {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TableName < out[j].TableName })
	return out, nil
}

// GetPolicy implements Store.
func (m *MemoryStore) GetPolicy(_ context.Context, table string) (*archival.RetentionPolicy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.policies[table]
	if !ok {
		return nil, archival.ErrPolicyNotFound
	}
	return &p, nil
}

// UpsertPolicy implements Store.
func (m *MemoryStore) UpsertPolicy(_ context.Context, policy archival.RetentionPolicy) (*archival.RetentionPolicy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if existing, ok := m.policies[policy.TableName]; ok {
		policy.CreatedAt = existing.CreatedAt
	} else {
		policy.CreatedAt = now
	}
	policy.UpdatedAt = now
	m.policies[policy.TableName] = policy
	return &policy, nil
}

// DeletePolicy implements Store.
func (m *MemoryStore) DeletePolicy(_ context.Context, table string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.policies[table]; !ok {
		return archival.ErrPolicyNotFound
	}
	delete(m.policies, table)
	return nil
}

// GetGrant implements Store.
func (m *MemoryStore) GetGrant(_ context.Context, principal string) (*archival.TableAccessGrant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	g, ok := m.grants[principal]
	if !ok {
		return nil, archival.ErrGrantNotFound
	}
	g.Tables = append([]string(nil), g.Tables...)
	return &g, nil
}

// ListGrants implements Store.
func (m *MemoryStore) ListGrants(_ context.Context) ([]archival.TableAccessGrant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]archival.TableAccessGrant, 0, len(m.grants))
	for _, g := range m.grants {
		g.Tables = append([]string(nil), g.Tables...)
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Principal < out[j].Principal })
	return out, nil
}

// UpsertGrant implements Store.
func (m *MemoryStore) UpsertGrant(_ context.Context, grant archival.TableAccessGrant) (*archival.TableAccessGrant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	grant.Tables = archival.NormalizeTables(grant.Tables)
	if existing, ok := m.grants[grant.Principal]; ok {
		grant.CreatedAt = existing.CreatedAt
	} else {
		grant.CreatedAt = now
	}
	grant.UpdatedAt = now
	m.grants[grant.Principal] = grant

	out := grant
	out.Tables = append([]string(nil), grant.Tables...)
	return &out, nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	return nil
}
