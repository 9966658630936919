package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"
)

// ValidationError describes a single invalid configuration field.
type ValidationError struct {
	// Field is the dotted path of the invalid field (e.g. "tunnel.region").
	Field string

	// Message describes what is invalid about the field.
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration field %q: %s", e.Field, e.Message)
}

// Validate checks the configuration for invalid values. It returns the
// first problem found as a *ValidationError.
func Validate(cfg *Config) error {
	if err := validateURL("bridge.provider_url", cfg.Bridge.ProviderURL); err != nil {
		return err
	}

	if !IsValidRegion(cfg.Tunnel.Region) {
		return &ValidationError{
			Field: "tunnel.region",
			Message: fmt.Sprintf("unknown region %q (valid: %s)",
				cfg.Tunnel.Region, strings.Join(TunnelRegions, ", ")),
		}
	}
	if err := validateURL("tunnel.agent_url", cfg.Tunnel.AgentURL); err != nil {
		return err
	}

	if cfg.RequestLog.Enabled {
		if cfg.RequestLog.RetentionDays < 0 {
			return &ValidationError{
				Field:   "request_log.retention_days",
				Message: "must not be negative",
			}
		}
		if cfg.RequestLog.PruneSchedule != "" {
			if _, err := cron.ParseStandard(cfg.RequestLog.PruneSchedule); err != nil {
				return &ValidationError{
					Field:   "request_log.prune_schedule",
					Message: fmt.Sprintf("invalid cron expression: %v", err),
				}
			}
		}
	}

	switch cfg.Telemetry.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return &ValidationError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("unknown level %q", cfg.Telemetry.Logging.Level),
		}
	}

	switch cfg.Telemetry.Logging.Format {
	case "json", "text":
	default:
		return &ValidationError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("unknown format %q", cfg.Telemetry.Logging.Format),
		}
	}

	return nil
}

func validateURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("not a valid URL: %q", raw),
		}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("unsupported scheme %q", u.Scheme),
		}
	}
	return nil
}
