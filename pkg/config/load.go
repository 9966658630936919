package config

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// SecretResolver resolves ${secret:name} references embedded in the raw
// configuration text before it is parsed. pkg/secrets provides the
// implementation; the indirection keeps config free of a secrets import.
type SecretResolver interface {
	ResolveReferences(ctx context.Context, input string) (string, error)
}

// Load loads configuration from a YAML file at the specified path.
// It applies default values, applies CALLISTO_* environment variable
// overrides, and validates the result.
//
// A missing file is not an error: defaults are used, so a first run
// works without any configuration.
func Load(path string) (*Config, error) {
	return LoadWithSecrets(context.Background(), path, nil)
}

// LoadWithSecrets is Load with ${secret:name} resolution applied to the
// raw file contents before parsing. A nil resolver skips resolution.
func LoadWithSecrets(ctx context.Context, path string, resolver SecretResolver) (*Config, error) {
	cfg := seed()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// No file: defaults only.
	case err != nil:
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	default:
		text := string(data)
		if resolver != nil {
			resolved, err := resolver.ResolveReferences(ctx, text)
			if err != nil {
				return nil, fmt.Errorf("failed to resolve secret references in %q: %w", path, err)
			}
			text = resolved
		}
		if err := yaml.Unmarshal([]byte(text), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
		}
	}

	ApplyDefaults(cfg)
	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the
// configuration. Environment variables use the format CALLISTO_SECTION_FIELD
// and always take precedence over file-based configuration.
func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv("CALLISTO_BRIDGE_PROVIDER_URL"); val != "" {
		cfg.Bridge.ProviderURL = val
	}
	if val := os.Getenv("CALLISTO_BRIDGE_AUTO_START"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Bridge.AutoStart = b
		}
	}
	if val := os.Getenv("CALLISTO_BRIDGE_SHOW_STATUS_BAR"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Bridge.ShowStatusBar = b
		}
	}

	if val := os.Getenv("CALLISTO_TUNNEL_AUTH_TOKEN"); val != "" {
		cfg.Tunnel.AuthToken = val
	}
	if val := os.Getenv("CALLISTO_TUNNEL_DOMAIN"); val != "" {
		cfg.Tunnel.Domain = val
	}
	if val := os.Getenv("CALLISTO_TUNNEL_REGION"); val != "" {
		cfg.Tunnel.Region = val
	}
	if val := os.Getenv("CALLISTO_TUNNEL_AGENT_URL"); val != "" {
		cfg.Tunnel.AgentURL = val
	}

	if val := os.Getenv("CALLISTO_REQUEST_LOG_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.RequestLog.Enabled = b
		}
	}
	if val := os.Getenv("CALLISTO_REQUEST_LOG_PATH"); val != "" {
		cfg.RequestLog.Path = val
	}
	if val := os.Getenv("CALLISTO_REQUEST_LOG_RETENTION_DAYS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.RequestLog.RetentionDays = i
		}
	}

	if val := os.Getenv("CALLISTO_TELEMETRY_LOGGING_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = val
	}
	if val := os.Getenv("CALLISTO_TELEMETRY_LOGGING_FORMAT"); val != "" {
		cfg.Telemetry.Logging.Format = val
	}
	if val := os.Getenv("CALLISTO_TELEMETRY_METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Metrics.Enabled = b
		}
	}
	if val := os.Getenv("CALLISTO_TELEMETRY_METRICS_LISTEN_ADDRESS"); val != "" {
		cfg.Telemetry.Metrics.ListenAddress = val
	}
}
