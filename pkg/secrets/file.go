package secrets

import (
	"context"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// FileProvider stores secrets in a single YAML file on disk.
//
// The file maps secret names to values and is created with 0600
// permissions. Existing files with group or world access are rejected.
// This is the writable backend behind the secret get/set interface;
// callers that persist the tunnel auth token land here.
type FileProvider struct {
	path string

	mu    sync.RWMutex
	cache map[string]string
}

// NewFileProvider creates a file-based secret provider backed by path.
// A missing file is treated as an empty store and created on first write.
func NewFileProvider(path string) (*FileProvider, error) {
	p := &FileProvider{
		path:  path,
		cache: make(map[string]string),
	}

	if err := p.load(); err != nil {
		return nil, err
	}

	return p, nil
}

func (p *FileProvider) load() error {
	info, err := os.Stat(p.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat secret file %q: %w", p.path, err)
	}

	if info.Mode().Perm()&0o077 != 0 {
		return fmt.Errorf("secret file %q has too-open permissions %v (want 0600 or 0400)",
			p.path, info.Mode().Perm())
	}

	data, err := os.ReadFile(p.path)
	if err != nil {
		return fmt.Errorf("failed to read secret file %q: %w", p.path, err)
	}

	values := make(map[string]string)
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &values); err != nil {
			return fmt.Errorf("failed to parse secret file %q: %w", p.path, err)
		}
	}

	p.mu.Lock()
	p.cache = values
	p.mu.Unlock()
	return nil
}

// GetSecret retrieves a secret from the file store.
func (p *FileProvider) GetSecret(ctx context.Context, name string) (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	value, ok := p.cache[name]
	if !ok || value == "" {
		return "", fmt.Errorf("secret not found in file store: %s", name)
	}
	return value, nil
}

// SetSecret stores a secret and persists the file. An empty value deletes
// the secret.
func (p *FileProvider) SetSecret(ctx context.Context, name, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if value == "" {
		delete(p.cache, name)
	} else {
		p.cache[name] = value
	}

	data, err := yaml.Marshal(p.cache)
	if err != nil {
		return fmt.Errorf("failed to encode secret file: %w", err)
	}

	if err := os.WriteFile(p.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write secret file %q: %w", p.path, err)
	}
	return nil
}

// ListSecrets returns all secret names in the file store.
func (p *FileProvider) ListSecrets(ctx context.Context) ([]string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	names := make([]string, 0, len(p.cache))
	for name := range p.cache {
		names = append(names, name)
	}
	return names, nil
}

// Provider returns the provider name.
func (p *FileProvider) Provider() string {
	return "file"
}

// Refresh reloads the secret file from disk.
func (p *FileProvider) Refresh(ctx context.Context) error {
	return p.load()
}
