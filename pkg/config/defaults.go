package config

// ApplyDefaults fills in default values for any configuration fields that
// were not set. It is called by Load after parsing and before validation.
func ApplyDefaults(cfg *Config) {
	if cfg.Bridge.ProviderURL == "" {
		cfg.Bridge.ProviderURL = "http://localhost:1234"
	}

	if cfg.Tunnel.Region == "" {
		cfg.Tunnel.Region = "us"
	}
	if cfg.Tunnel.AgentURL == "" {
		cfg.Tunnel.AgentURL = "http://127.0.0.1:4040"
	}

	if cfg.RequestLog.Path == "" {
		cfg.RequestLog.Path = "callisto-requests.db"
	}
	if cfg.RequestLog.PruneSchedule == "" {
		cfg.RequestLog.PruneSchedule = "0 3 * * *"
	}

	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = "info"
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = "json"
	}
	if cfg.Telemetry.Metrics.ListenAddress == "" {
		cfg.Telemetry.Metrics.ListenAddress = "127.0.0.1:9090"
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = "/metrics"
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = "callisto"
	}

	if cfg.Secrets.EnvPrefix == "" {
		cfg.Secrets.EnvPrefix = "CALLISTO_SECRET_"
	}
}

// seed returns the starting Config that YAML is unmarshalled over.
// Fields whose zero value is a meaningful explicit setting must be set
// here, because after parsing it is indistinguishable from unset:
// default-true booleans, and retention_days where 0 means keep forever.
func seed() *Config {
	return &Config{
		Bridge:     BridgeConfig{ShowStatusBar: true},
		RequestLog: RequestLogConfig{RetentionDays: 30},
	}
}

// Default returns a Config populated entirely with default values.
// It is what Load produces for an empty configuration file.
func Default() *Config {
	cfg := seed()
	ApplyDefaults(cfg)
	return cfg
}
