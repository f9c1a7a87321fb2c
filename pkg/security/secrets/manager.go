package secrets

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"mercator-hq/archivist/pkg/config"
)

// secretRefRegex matches ${secret:name} references.
var secretRefRegex = regexp.MustCompile(`\$\{secret:([^}]+)\}`)

// CacheConfig bounds the resolved-secret cache. A zero TTL disables caching.
type CacheConfig struct {
	TTL     time.Duration
	MaxSize int
}

// Manager tries its providers in order and caches resolved values.
type Manager struct {
	providers []SecretProvider
	cache     *expirable.LRU[string, string]
}

// NewManager creates a Manager. Providers are consulted in the given order.
func NewManager(providers []SecretProvider, cacheConfig CacheConfig) *Manager {
	m := &Manager{providers: providers}
	if cacheConfig.TTL > 0 {
		size := cacheConfig.MaxSize
		if size <= 0 {
			size = 64
		}
		m.cache = expirable.NewLRU[string, string](size, nil, cacheConfig.TTL)
	}
	return m
}

// GetSecret returns the value of name from the first provider that has it.
func (m *Manager) GetSecret(ctx context.Context, name string) (string, error) {
	if m.cache != nil {
		if value, ok := m.cache.Get(name); ok {
			return value, nil
		}
	}

	var lastErr error
	for _, provider := range m.providers {
		if !provider.Supports(name) {
			continue
		}
		value, err := provider.GetSecret(ctx, name)
		if err != nil {
			lastErr = err
			slog.Debug("secret provider miss",
				"provider", provider.Provider(),
				"name", redactSecretName(name),
				"error", err,
			)
			continue
		}
		if m.cache != nil {
			m.cache.Add(name, value)
		}
		return value, nil
	}

	if lastErr != nil {
		return "", fmt.Errorf("failed to get secret %q: %w", name, lastErr)
	}
	return "", fmt.Errorf("secret not found: %q", name)
}

// ResolveReferences replaces every ${secret:name} in input with its value.
// Unresolvable references are left in place and reported together.
func (m *Manager) ResolveReferences(ctx context.Context, input string) (string, error) {
	var errs []string
	output := secretRefRegex.ReplaceAllStringFunc(input, func(match string) string {
		name := strings.TrimSpace(secretRefRegex.FindStringSubmatch(match)[1])
		value, err := m.GetSecret(ctx, name)
		if err != nil {
			errs = append(errs, err.Error())
			return match
		}
		return value
	})
	if len(errs) > 0 {
		return output, fmt.Errorf("failed to resolve secret references: %s", strings.Join(errs, "; "))
	}
	return output, nil
}

// HasReferences reports whether s contains a ${secret:...} reference.
func HasReferences(s string) bool {
	return secretRefRegex.MatchString(s)
}

// Purge drops every cached value.
func (m *Manager) Purge() {
	if m.cache != nil {
		m.cache.Purge()
	}
}

func redactSecretName(name string) string {
	if len(name) <= 4 {
		return "***"
	}
	return name[:2] + "..." + name[len(name)-2:]
}

// NewManagerFromConfig builds a Manager with the file provider, when a
// directory is configured, ahead of the environment provider.
func NewManagerFromConfig(cfg *config.SecretsConfig) (*Manager, error) {
	var providers []SecretProvider
	if cfg.Directory != "" {
		fp, err := NewFileProvider(cfg.Directory)
		if err != nil {
			return nil, err
		}
		providers = append(providers, fp)
	}
	providers = append(providers, NewEnvProvider(cfg.EnvPrefix))
	return NewManager(providers, CacheConfig{TTL: cfg.CacheTTL, MaxSize: cfg.CacheSize}), nil
}
