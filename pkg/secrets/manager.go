package secrets

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
)

// secretRefRegex matches ${secret:name} patterns in configuration.
var secretRefRegex = regexp.MustCompile(`\$\{secret:([^}]+)\}`)

// Manager orchestrates multiple secret providers with priority-based
// fallback.
//
// Reads try each provider in order until one returns a value; writes go to
// the first WritableProvider. Retrieved values are cached in memory for
// the life of the process.
type Manager struct {
	providers []Provider
	logger    *slog.Logger

	mu    sync.RWMutex
	cache map[string]string
}

// NewManager creates a new secret manager. Providers are tried in the
// order given.
func NewManager(providers []Provider, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		providers: providers,
		logger:    logger,
		cache:     make(map[string]string),
	}
}

// GetSecret retrieves a secret from the first provider that has it.
func (m *Manager) GetSecret(ctx context.Context, name string) (string, error) {
	m.mu.RLock()
	if value, ok := m.cache[name]; ok {
		m.mu.RUnlock()
		return value, nil
	}
	m.mu.RUnlock()

	var lastErr error
	for _, provider := range m.providers {
		value, err := provider.GetSecret(ctx, name)
		if err != nil {
			lastErr = err
			continue
		}

		m.mu.Lock()
		m.cache[name] = value
		m.mu.Unlock()

		m.logger.Debug("secret retrieved", "provider", provider.Provider(), "name", name)
		return value, nil
	}

	if lastErr != nil {
		return "", fmt.Errorf("failed to get secret %q: %w", name, lastErr)
	}
	return "", fmt.Errorf("secret not found: %q", name)
}

// SetSecret stores a secret in the first writable provider and updates the
// cache.
func (m *Manager) SetSecret(ctx context.Context, name, value string) error {
	for _, provider := range m.providers {
		writable, ok := provider.(WritableProvider)
		if !ok {
			continue
		}

		if err := writable.SetSecret(ctx, name, value); err != nil {
			return fmt.Errorf("failed to store secret %q: %w", name, err)
		}

		m.mu.Lock()
		if value == "" {
			delete(m.cache, name)
		} else {
			m.cache[name] = value
		}
		m.mu.Unlock()

		m.logger.Debug("secret stored", "provider", provider.Provider(), "name", name)
		return nil
	}

	return fmt.Errorf("no writable secret provider configured")
}

// ResolveReferences replaces ${secret:name} patterns with actual secret
// values. Unresolvable references are kept verbatim and reported together
// in the returned error.
func (m *Manager) ResolveReferences(ctx context.Context, input string) (string, error) {
	var problems []string

	output := secretRefRegex.ReplaceAllStringFunc(input, func(match string) string {
		matches := secretRefRegex.FindStringSubmatch(match)
		if len(matches) < 2 {
			problems = append(problems, fmt.Sprintf("invalid secret reference: %s", match))
			return match
		}

		value, err := m.GetSecret(ctx, matches[1])
		if err != nil {
			problems = append(problems, fmt.Sprintf("failed to resolve secret %q: %v", matches[1], err))
			return match
		}
		return value
	})

	if len(problems) > 0 {
		return output, fmt.Errorf("failed to resolve secret references: %s", strings.Join(problems, "; "))
	}
	return output, nil
}

// Invalidate drops the in-memory cache so the next read hits the backends.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	m.cache = make(map[string]string)
	m.mu.Unlock()
}
