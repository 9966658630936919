package config

import "time"

// Config is the root configuration structure for Mercator Callisto.
// It contains all configuration sections for the bridge proxy, the tunnel,
// request logging, and telemetry.
//
// A Config value is an immutable snapshot: it is created by Load, replaced
// wholesale on reload, and never mutated in place. Components that need
// fresh configuration ask the Provider for a new snapshot.
type Config struct {
	// Bridge contains the local bridge settings: the provider to proxy to
	// and the behavior flags surfaced to external presenters.
	Bridge BridgeConfig `yaml:"bridge"`

	// Tunnel contains settings for the externally provisioned tunnel.
	Tunnel TunnelConfig `yaml:"tunnel"`

	// RequestLog contains configuration for the per-request audit log.
	RequestLog RequestLogConfig `yaml:"request_log"`

	// Telemetry contains observability configuration (logging, metrics).
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Secrets contains configuration for secret resolution.
	Secrets SecretsConfig `yaml:"secrets"`
}

// BridgeConfig contains the local bridge settings.
type BridgeConfig struct {
	// ProviderURL is the base URL of the locally hosted inference provider.
	// Default: "http://localhost:1234"
	ProviderURL string `yaml:"provider_url"`

	// AutoStart starts the bridge immediately when the daemon launches.
	// Default: false
	AutoStart bool `yaml:"auto_start"`

	// ShowStatusBar controls whether external presenters should display
	// the bridge status. Callisto only carries the flag; presentation is
	// out of scope.
	// Default: true
	ShowStatusBar bool `yaml:"show_status_bar"`
}

// TunnelConfig contains settings for the externally provisioned tunnel.
type TunnelConfig struct {
	// AuthToken authenticates against the tunnel service. It may be a
	// literal value or a ${secret:name} reference resolved at load time.
	// Optional; omitted from provisioning options when blank.
	AuthToken string `yaml:"auth_token"`

	// Domain is a reserved domain to publish the tunnel on.
	// Optional; omitted from provisioning options when blank.
	Domain string `yaml:"domain"`

	// Region selects the tunnel relay region.
	// One of: us, eu, ap, au, sa, jp, in.
	// Default: "us"
	Region string `yaml:"region"`

	// AgentURL is the base URL of the local tunnel agent API that Callisto
	// drives to provision tunnels.
	// Default: "http://127.0.0.1:4040"
	AgentURL string `yaml:"agent_url"`
}

// RequestLogConfig contains configuration for the per-request audit log.
type RequestLogConfig struct {
	// Enabled enables request logging.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Path is the SQLite database file for request records.
	// Default: "callisto-requests.db"
	Path string `yaml:"path"`

	// RetentionDays is the number of days to retain request records.
	// 0 means keep records forever (no pruning).
	// Default: 30
	RetentionDays int `yaml:"retention_days"`

	// PruneSchedule is a cron expression for scheduling retention pruning.
	// Default: "0 3 * * *" (daily at 3 AM)
	PruneSchedule string `yaml:"prune_schedule"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	// Logging contains structured logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains Prometheus metrics configuration.
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig contains structured logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level ("debug", "info", "warn", "error").
	// Default: "info"
	Level string `yaml:"level"`

	// Format is the output format ("json", "text").
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file:line in log records.
	// Default: false
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig contains Prometheus metrics configuration.
//
// Metrics are served on a dedicated listener rather than the bridge port,
// because every unrecognized request on the bridge port is forwarded to
// the provider.
type MetricsConfig struct {
	// Enabled enables the metrics listener.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// ListenAddress is the address for the metrics listener.
	// Default: "127.0.0.1:9090"
	ListenAddress string `yaml:"listen_address"`

	// Path is the HTTP path the metrics are exposed on.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the Prometheus metric namespace.
	// Default: "callisto"
	Namespace string `yaml:"namespace"`
}

// SecretsConfig contains configuration for secret resolution.
type SecretsConfig struct {
	// EnvPrefix is the prefix for environment-variable secrets.
	// Default: "CALLISTO_SECRET_"
	EnvPrefix string `yaml:"env_prefix"`

	// FilePath is the path to the writable secret file.
	// Default: "" (file-backed secrets disabled)
	FilePath string `yaml:"file_path"`
}

// ReloadDebounce is how long the watcher waits after a filesystem event
// before reloading, so editors that write in several steps trigger a
// single reload.
const ReloadDebounce = 100 * time.Millisecond

// TunnelRegions is the fixed set of valid tunnel region codes.
var TunnelRegions = []string{"us", "eu", "ap", "au", "sa", "jp", "in"}

// IsValidRegion reports whether region is one of the fixed region codes.
func IsValidRegion(region string) bool {
	for _, r := range TunnelRegions {
		if r == region {
			return true
		}
	}
	return false
}
