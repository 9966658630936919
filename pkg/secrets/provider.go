// Package secrets provides a pluggable framework for loading and storing
// secrets from multiple sources.
package secrets

import "context"

// Provider retrieves secrets from a backend.
//
// Implementations include environment variables (read-only) and a local
// secret file (writable). Providers can be chained with priority-based
// fallback through the Manager.
type Provider interface {
	// GetSecret retrieves a secret by name.
	// Returns an error if the secret is not found or cannot be retrieved.
	GetSecret(ctx context.Context, name string) (string, error)

	// ListSecrets returns all secret names available from this provider.
	// Values are not included.
	ListSecrets(ctx context.Context) ([]string, error)

	// Provider returns the provider name ("env", "file").
	Provider() string
}

// WritableProvider can persist secrets in addition to reading them.
type WritableProvider interface {
	Provider

	// SetSecret stores a secret. An empty value deletes the secret.
	SetSecret(ctx context.Context, name, value string) error
}
