package config

import (
	"context"
	"log/slog"
	"sync"
)

// Provider owns the current configuration snapshot and hands out copies.
//
// The snapshot is replaced wholesale by Reload; callers that captured an
// earlier snapshot keep seeing the values they captured. Change listeners
// registered with OnChange are invoked with the new snapshot after every
// successful reload.
type Provider struct {
	path     string
	resolver SecretResolver
	logger   *slog.Logger

	mu        sync.RWMutex
	current   *Config
	listeners []func(*Config)
}

// NewProvider loads the configuration at path and returns a Provider
// owning the resulting snapshot.
func NewProvider(path string, resolver SecretResolver, logger *slog.Logger) (*Provider, error) {
	if logger == nil {
		logger = slog.Default()
	}

	cfg, err := LoadWithSecrets(context.Background(), path, resolver)
	if err != nil {
		return nil, err
	}

	return &Provider{
		path:     path,
		resolver: resolver,
		logger:   logger,
		current:  cfg,
	}, nil
}

// Snapshot returns a copy of the current configuration. The returned value
// is owned by the caller and never mutated by the Provider.
func (p *Provider) Snapshot() Config {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return *p.current
}

// Path returns the configuration file path the Provider loads from.
func (p *Provider) Path() string {
	return p.path
}

// OnChange registers a listener invoked with the new snapshot after each
// successful reload. Listeners run on the reloading goroutine and should
// return quickly.
func (p *Provider) OnChange(fn func(*Config)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, fn)
}

// Reload re-reads the configuration file and replaces the snapshot.
// On failure the previous snapshot stays in effect.
func (p *Provider) Reload(ctx context.Context) error {
	cfg, err := LoadWithSecrets(ctx, p.path, p.resolver)
	if err != nil {
		p.logger.Warn("configuration reload failed, keeping previous snapshot",
			"path", p.path,
			"error", err,
		)
		return err
	}

	p.mu.Lock()
	p.current = cfg
	listeners := make([]func(*Config), len(p.listeners))
	copy(listeners, p.listeners)
	p.mu.Unlock()

	p.logger.Info("configuration reloaded", "path", p.path)

	for _, fn := range listeners {
		snapshot := *cfg
		fn(&snapshot)
	}

	return nil
}
