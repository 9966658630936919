package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/callisto/pkg/cli"
	"mercator-hq/callisto/pkg/config"
	"mercator-hq/callisto/pkg/provider"
	"mercator-hq/callisto/pkg/proxy"
	"mercator-hq/callisto/pkg/requestlog"
	"mercator-hq/callisto/pkg/secrets"
	"mercator-hq/callisto/pkg/telemetry/logging"
	"mercator-hq/callisto/pkg/telemetry/metrics"
	"mercator-hq/callisto/pkg/tunnel"
)

// teardownTimeout bounds the whole shutdown path, stop and force
// cleanup included.
const teardownTimeout = 15 * time.Second

var runFlags struct {
	logLevel string
	dryRun   bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the bridge daemon",
	Long: `Start the bridge daemon.

The daemon binds the loopback proxy and provisions the tunnel either
immediately (bridge.auto_start: true) or on demand: sending SIGUSR1
toggles the bridge up or down without restarting the process.

Examples:
  # Start with default config
  callisto run

  # Start with custom config
  callisto run --config /etc/callisto/config.yaml

  # Validate config without starting
  callisto run --dry-run`,
	RunE: runBridge,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting the bridge")
}

func runBridge(cmd *cobra.Command, args []string) error {
	ctx := cli.SetupSignalHandler()

	// Bootstrap load: logging and secrets settings have to come up
	// before the secret-resolving provider can.
	bootCfg, err := config.Load(cfgFile)
	if err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}

	logCfg := bootCfg.Telemetry.Logging
	if runFlags.logLevel != "" {
		logCfg.Level = runFlags.logLevel
	}
	if verbose {
		logCfg.Level = "debug"
	}
	logger, err := logging.New(logging.Config{
		Level:     logCfg.Level,
		Format:    logCfg.Format,
		AddSource: logCfg.AddSource,
	})
	if err != nil {
		return cli.NewConfigError("telemetry.logging", err.Error())
	}
	defer func() { _ = logger.Shutdown() }()
	log := logger.Slog()

	secretsMgr, err := buildSecretsManager(bootCfg, log)
	if err != nil {
		return cli.NewConfigError("secrets", err.Error())
	}

	cfgProvider, err := config.NewProvider(cfgFile, secretsMgr, log)
	if err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}
	cfg := cfgProvider.Snapshot()

	if runFlags.dryRun {
		fmt.Println("configuration valid")
		return nil
	}

	watcher, err := config.NewWatcher(cfgProvider, log)
	if err != nil {
		log.Warn("config watcher unavailable, reload on change disabled", "error", err)
	} else if err := watcher.Start(); err != nil {
		log.Warn("config watcher failed to start", "error", err)
	} else {
		defer watcher.Stop()
	}
	cfgProvider.OnChange(func(c *config.Config) {
		log.Info("configuration reloaded; new settings apply on next bridge start")
	})

	var collector *metrics.Collector
	if cfg.Telemetry.Metrics.Enabled {
		collector = metrics.NewCollector("callisto", nil)
		startMetricsListener(cfg.Telemetry.Metrics.ListenAddress, collector, log)
	}

	var audit proxy.AuditRecorder
	if cfg.RequestLog.Enabled {
		store, err := requestlog.NewStore(cfg.RequestLog.Path)
		if err != nil {
			return cli.NewCommandError("run", err)
		}
		defer store.Close()

		recorder := requestlog.NewRecorder(store, log)
		defer func() { _ = recorder.Close() }()
		audit = auditAdapter{recorder: recorder}

		pruner := requestlog.NewPruner(store, cfg.RequestLog.RetentionDays, log)
		scheduler := requestlog.NewScheduler(pruner, cfg.RequestLog.PruneSchedule, log)
		if err := scheduler.Start(); err != nil {
			return cli.NewConfigError("request_log.prune_schedule", err.Error())
		}
		defer scheduler.Stop()
	}

	client := provider.NewClient(provider.ClientConfig{
		BaseURL: cfg.Bridge.ProviderURL,
		Logger:  log,
		Metrics: collector,
	})
	server := proxy.NewServer(proxy.Config{
		Provider: client,
		Logger:   log,
		Metrics:  collector,
		Audit:    audit,
	})
	provisioner := tunnel.NewAgentProvisioner(cfg.Tunnel.AgentURL, log)
	manager := tunnel.NewManager(server, provisioner, cfgProvider, log, collector)
	defer teardown(manager, log)

	log.Info("callisto daemon started",
		"provider_url", cfg.Bridge.ProviderURL,
		"auto_start", cfg.Bridge.AutoStart,
	)

	if cfg.Bridge.AutoStart {
		if err := manager.Start(ctx); err != nil {
			// The daemon stays up: the operator can fix the cause and
			// toggle the bridge without restarting.
			log.Error("bridge auto-start failed", "error", err)
		}
	}

	toggle := cli.ToggleSignals()
	for {
		select {
		case <-ctx.Done():
			log.Info("shutdown signal received")
			return nil
		case <-toggle:
			toggleBridge(ctx, manager, log)
		}
	}
}

// buildSecretsManager assembles the secret provider chain: environment
// variables first, the writable secret file second.
func buildSecretsManager(cfg *config.Config, log *slog.Logger) (*secrets.Manager, error) {
	providers := []secrets.Provider{
		secrets.NewEnvProvider(cfg.Secrets.EnvPrefix),
	}
	if cfg.Secrets.FilePath != "" {
		fileProvider, err := secrets.NewFileProvider(cfg.Secrets.FilePath)
		if err != nil {
			return nil, err
		}
		providers = append(providers, fileProvider)
	}
	return secrets.NewManager(providers, log), nil
}

// startMetricsListener serves the Prometheus endpoint on its own
// listener. The bridge port cannot host it because every unrecognized
// request there is forwarded to the provider.
func startMetricsListener(addr string, collector *metrics.Collector, log *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		log.Info("metrics listener started", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics listener failed", "error", err)
		}
	}()
}

// toggleBridge flips the bridge state on SIGUSR1.
func toggleBridge(ctx context.Context, manager *tunnel.Manager, log *slog.Logger) {
	if manager.IsRunning() {
		log.Info("toggle signal received, stopping bridge")
		if err := manager.Stop(ctx); err != nil {
			log.Error("stopping bridge failed", "error", err)
		}
		return
	}
	log.Info("toggle signal received, starting bridge")
	if err := manager.Start(ctx); err != nil {
		log.Error("starting bridge failed", "error", err)
	}
}

// teardown stops the bridge on process exit, falling back to force
// cleanup. Nothing propagates out of this path.
func teardown(manager *tunnel.Manager, log *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
	defer cancel()

	if err := manager.Stop(ctx); err != nil {
		log.Warn("graceful stop failed during teardown, forcing cleanup", "error", err)
		manager.ForceCleanup(ctx)
	}
}

// auditAdapter bridges the proxy server's audit hook to the request
// log recorder.
type auditAdapter struct {
	recorder *requestlog.Recorder
}

func (a auditAdapter) Record(entry proxy.AuditEntry) {
	a.recorder.Record(requestlog.Record{
		RequestID: entry.RequestID,
		Time:      entry.Time,
		Method:    entry.Method,
		Path:      entry.Path,
		Status:    entry.Status,
		Duration:  entry.Duration,
		Model:     entry.Model,
		Streamed:  entry.Streamed,
		Origin:    entry.Origin,
	})
}
