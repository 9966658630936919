package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// EnvProvider loads secrets from environment variables.
//
// Secret names are converted to uppercase environment variable names with
// hyphens replaced by underscores, prefixed with the configured prefix.
//
// Example:
//   - Secret name: "tunnel-auth-token"
//   - Env var name: "CALLISTO_SECRET_TUNNEL_AUTH_TOKEN"
type EnvProvider struct {
	Prefix string
}

// NewEnvProvider creates a new environment variable secret provider.
func NewEnvProvider(prefix string) *EnvProvider {
	return &EnvProvider{Prefix: prefix}
}

// GetSecret retrieves a secret from an environment variable.
func (p *EnvProvider) GetSecret(ctx context.Context, name string) (string, error) {
	envVar := p.secretNameToEnvVar(name)

	value := os.Getenv(envVar)
	if value == "" {
		return "", fmt.Errorf("secret not found in environment: %s (env var: %s)", name, envVar)
	}

	return value, nil
}

// ListSecrets returns all secret names from environment variables with the
// configured prefix.
func (p *EnvProvider) ListSecrets(ctx context.Context) ([]string, error) {
	var names []string

	for _, env := range os.Environ() {
		if !strings.HasPrefix(env, p.Prefix) {
			continue
		}

		parts := strings.SplitN(env, "=", 2)
		if len(parts) != 2 {
			continue
		}

		names = append(names, p.envVarToSecretName(parts[0]))
	}

	return names, nil
}

// Provider returns the provider name.
func (p *EnvProvider) Provider() string {
	return "env"
}

func (p *EnvProvider) secretNameToEnvVar(name string) string {
	converted := strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
	return p.Prefix + converted
}

func (p *EnvProvider) envVarToSecretName(envVar string) string {
	trimmed := strings.TrimPrefix(envVar, p.Prefix)
	return strings.ToLower(strings.ReplaceAll(trimmed, "_", "-"))
}
