package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	t.Run("missing file uses defaults", func(t *testing.T) {
		cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		if cfg.Bridge.ProviderURL != "http://localhost:1234" {
			t.Errorf("ProviderURL = %q, want default", cfg.Bridge.ProviderURL)
		}
		if cfg.Tunnel.Region != "us" {
			t.Errorf("Region = %q, want us", cfg.Tunnel.Region)
		}
		if !cfg.Bridge.ShowStatusBar {
			t.Error("ShowStatusBar should default to true")
		}
	})

	t.Run("file values override defaults", func(t *testing.T) {
		path := writeConfigFile(t, `
bridge:
  provider_url: http://localhost:11434
  auto_start: true
  show_status_bar: false
tunnel:
  region: eu
  domain: bridge.example.dev
`)
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		if cfg.Bridge.ProviderURL != "http://localhost:11434" {
			t.Errorf("ProviderURL = %q", cfg.Bridge.ProviderURL)
		}
		if !cfg.Bridge.AutoStart {
			t.Error("AutoStart should be true")
		}
		if cfg.Bridge.ShowStatusBar {
			t.Error("explicit show_status_bar: false should survive defaults")
		}
		if cfg.Tunnel.Region != "eu" {
			t.Errorf("Region = %q, want eu", cfg.Tunnel.Region)
		}
		if cfg.Tunnel.Domain != "bridge.example.dev" {
			t.Errorf("Domain = %q", cfg.Tunnel.Domain)
		}
	})

	t.Run("retention defaults to 30 days when unset", func(t *testing.T) {
		path := writeConfigFile(t, "request_log:\n  enabled: true\n")
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		if cfg.RequestLog.RetentionDays != 30 {
			t.Errorf("RetentionDays = %d, want 30", cfg.RequestLog.RetentionDays)
		}
	})

	t.Run("explicit zero retention means keep forever", func(t *testing.T) {
		path := writeConfigFile(t, "request_log:\n  enabled: true\n  retention_days: 0\n")
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		if cfg.RequestLog.RetentionDays != 0 {
			t.Errorf("RetentionDays = %d, want 0 (keep forever)", cfg.RequestLog.RetentionDays)
		}
	})

	t.Run("malformed yaml is an error", func(t *testing.T) {
		path := writeConfigFile(t, "bridge: [not: a: mapping")
		if _, err := Load(path); err == nil {
			t.Fatal("Load should fail on malformed YAML")
		}
	})

	t.Run("env overrides take precedence", func(t *testing.T) {
		path := writeConfigFile(t, "bridge:\n  provider_url: http://localhost:11434\n")
		t.Setenv("CALLISTO_BRIDGE_PROVIDER_URL", "http://localhost:5000")
		t.Setenv("CALLISTO_TUNNEL_REGION", "jp")

		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		if cfg.Bridge.ProviderURL != "http://localhost:5000" {
			t.Errorf("ProviderURL = %q, want env override", cfg.Bridge.ProviderURL)
		}
		if cfg.Tunnel.Region != "jp" {
			t.Errorf("Region = %q, want jp", cfg.Tunnel.Region)
		}
	})
}

func TestValidate(t *testing.T) {
	t.Run("rejects unknown region", func(t *testing.T) {
		cfg := Default()
		cfg.Tunnel.Region = "mars"
		err := Validate(cfg)
		if err == nil {
			t.Fatal("Validate should reject unknown region")
		}
		vErr, ok := err.(*ValidationError)
		if !ok {
			t.Fatalf("error type = %T, want *ValidationError", err)
		}
		if vErr.Field != "tunnel.region" {
			t.Errorf("Field = %q, want tunnel.region", vErr.Field)
		}
	})

	t.Run("rejects bad provider url", func(t *testing.T) {
		cfg := Default()
		cfg.Bridge.ProviderURL = "not a url"
		if err := Validate(cfg); err == nil {
			t.Fatal("Validate should reject bad provider URL")
		}
	})

	t.Run("rejects non-http scheme", func(t *testing.T) {
		cfg := Default()
		cfg.Bridge.ProviderURL = "ftp://localhost:1234"
		if err := Validate(cfg); err == nil {
			t.Fatal("Validate should reject ftp scheme")
		}
	})

	t.Run("rejects bad cron expression", func(t *testing.T) {
		cfg := Default()
		cfg.RequestLog.Enabled = true
		cfg.RequestLog.PruneSchedule = "not a schedule"
		if err := Validate(cfg); err == nil {
			t.Fatal("Validate should reject bad cron expression")
		}
	})

	t.Run("accepts defaults", func(t *testing.T) {
		if err := Validate(Default()); err != nil {
			t.Fatalf("Validate rejected defaults: %v", err)
		}
	})
}

func TestIsValidRegion(t *testing.T) {
	for _, region := range TunnelRegions {
		if !IsValidRegion(region) {
			t.Errorf("IsValidRegion(%q) = false", region)
		}
	}
	if IsValidRegion("") || IsValidRegion("moon") {
		t.Error("IsValidRegion should reject unknown codes")
	}
}
