package tunnel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"mercator-hq/callisto/pkg/config"
	"mercator-hq/callisto/pkg/proxy"
	"mercator-hq/callisto/pkg/telemetry/metrics"
)

const (
	// startTimeout is the umbrella deadline for a whole start attempt
	// sequence, both attempts included.
	startTimeout = 30 * time.Second

	// startAttempts is the total number of bind-and-provision attempts
	// per Start call.
	startAttempts = 2

	// closeTimeout bounds closing the tunnel during stop.
	closeTimeout = 10 * time.Second

	// restartSettle is the pause between stop and start during restart,
	// giving the relay time to release the old tunnel registration.
	restartSettle = 500 * time.Millisecond
)

// ConfigSource provides configuration snapshots. Satisfied by
// *config.Provider.
type ConfigSource interface {
	Snapshot() config.Config
}

// BridgeServer is the proxy lifecycle the manager drives. Satisfied by
// *proxy.Server.
type BridgeServer interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	IsRunning() bool
	Port() int
}

// Manager orchestrates the bridge lifecycle: it owns the proxy server
// and the tunnel handle, and is the only component that starts or
// stops either. All methods are safe for concurrent use; lifecycle
// operations serialize, Status never blocks on them.
type Manager struct {
	server      BridgeServer
	provisioner Provisioner
	configs     ConfigSource
	logger      *slog.Logger
	metrics     *metrics.Collector

	// opMu serializes lifecycle operations. statusMu guards the
	// snapshot fields only and is never held across I/O.
	opMu     sync.Mutex
	statusMu sync.Mutex
	handle   Handle
	status   Status
}

// NewManager builds a Manager. The metrics collector may be nil.
func NewManager(server BridgeServer, provisioner Provisioner, configs ConfigSource, logger *slog.Logger, collector *metrics.Collector) *Manager {
	return &Manager{
		server:      server,
		provisioner: provisioner,
		configs:     configs,
		logger:      logger,
		metrics:     collector,
	}
}

// Status returns a copy of the current status. It never blocks on an
// in-flight lifecycle operation.
func (m *Manager) Status() Status {
	m.statusMu.Lock()
	defer m.statusMu.Unlock()
	return m.status
}

// IsRunning reports whether the bridge is fully up.
func (m *Manager) IsRunning() bool {
	return m.Status().Running
}

// Start binds the proxy and provisions the tunnel. Calling Start while
// the bridge is running or starting is a logged no-op. A port conflict
// surfaces as *PortConflictError, anything else as *TunnelError.
func (m *Manager) Start(ctx context.Context) error {
	current := m.Status()
	if current.Running || current.Starting {
		m.logger.Info("start requested but bridge is already up", "running", current.Running)
		return nil
	}

	m.opMu.Lock()
	defer m.opMu.Unlock()

	// Re-check under the operation lock; another Start may have won.
	current = m.Status()
	if current.Running || current.Starting {
		m.logger.Info("start requested but bridge is already up", "running", current.Running)
		return nil
	}

	m.setStatus(Status{Starting: true})
	m.setBridgeState(metrics.StateStarting)

	// A stale proxy from an earlier failed run would shadow the fresh
	// bind; clear it first.
	if m.server.IsRunning() {
		m.logger.Warn("stale proxy instance found, stopping it before start")
		if err := m.server.Stop(ctx); err != nil {
			m.logger.Warn("stopping stale proxy failed", "error", err)
		}
	}

	snapshot := m.configs.Snapshot()
	opts := Options{
		Addr:      fmt.Sprintf("http://localhost:%d", m.server.Port()),
		Region:    snapshot.Tunnel.Region,
		AuthToken: snapshot.Tunnel.AuthToken,
		Domain:    snapshot.Tunnel.Domain,
	}

	startCtx, cancel := context.WithTimeout(ctx, startTimeout)
	defer cancel()

	var lastErr error
	for attempt := 1; attempt <= startAttempts; attempt++ {
		handle, err := m.attemptStart(startCtx, opts)
		if err == nil {
			m.setStatus(Status{
				Running:     true,
				URL:         handle.URL(),
				LastStarted: time.Now(),
			})
			m.setHandle(handle)
			m.setBridgeState(metrics.StateRunning)
			m.recordTunnelEvent("open", "success")
			m.logger.Info("bridge started", "url", handle.URL(), "attempt", attempt)
			return nil
		}

		lastErr = err
		m.logger.Warn("bridge start attempt failed",
			"attempt", attempt,
			"error", err,
		)
		if startCtx.Err() != nil {
			break
		}
	}

	m.setStatus(Status{Err: lastErr.Error()})
	m.setBridgeState(metrics.StateError)
	m.recordTunnelEvent("open", "failure")

	var inUse *proxy.PortInUseError
	if errors.As(lastErr, &inUse) {
		return &PortConflictError{Port: inUse.Port, Cause: lastErr}
	}
	return &TunnelError{Op: "start", Message: "could not start bridge", Cause: lastErr}
}

// attemptStart runs one bind-then-provision sequence, tearing the
// proxy back down if provisioning fails.
func (m *Manager) attemptStart(ctx context.Context, opts Options) (Handle, error) {
	if err := m.server.Start(ctx); err != nil {
		return nil, err
	}

	handle, err := m.provisioner.Open(ctx, opts)
	if err != nil {
		if stopErr := m.server.Stop(ctx); stopErr != nil {
			m.logger.Warn("stopping proxy after failed provision failed", "error", stopErr)
		}
		return nil, err
	}
	return handle, nil
}

// Stop closes the tunnel and stops the proxy concurrently, so shutdown
// latency is bounded by the slower leg rather than their sum. Stop on
// a stopped bridge is a no-op. A tunnel-close failure is returned after
// both legs finish; a proxy-stop failure is only logged. The bridge
// ends Stopped either way.
func (m *Manager) Stop(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	handle := m.takeHandle()
	if handle == nil && !m.server.IsRunning() {
		m.setStatus(Status{})
		return nil
	}

	tunnelErr, proxyErr := m.stopBoth(ctx, handle)

	m.setStatus(Status{})
	m.setBridgeState(metrics.StateStopped)

	if proxyErr != nil {
		m.logger.Warn("stopping proxy failed", "error", proxyErr)
	}
	if tunnelErr != nil {
		m.recordTunnelEvent("close", "failure")
		return tunnelErr
	}
	m.recordTunnelEvent("close", "success")
	m.logger.Info("bridge stopped")
	return nil
}

// Restart stops the bridge, tolerating single-leg failures, and starts
// it again after a short settle pause. If both stop legs fail it falls
// back to ForceCleanup before starting. Any failure is wrapped in
// *RestartError.
func (m *Manager) Restart(ctx context.Context) error {
	m.logger.Info("restarting bridge")

	m.opMu.Lock()
	handle := m.takeHandle()
	tunnelErr, proxyErr := m.stopBoth(ctx, handle)
	m.setStatus(Status{})
	m.opMu.Unlock()

	if tunnelErr != nil && proxyErr != nil {
		m.logger.Warn("graceful stop failed on both legs, forcing cleanup",
			"tunnel_error", tunnelErr,
			"proxy_error", proxyErr,
		)
		m.ForceCleanup(ctx)
	}

	select {
	case <-time.After(restartSettle):
	case <-ctx.Done():
		return &RestartError{Cause: ctx.Err()}
	}

	if err := m.Start(ctx); err != nil {
		return &RestartError{Cause: err}
	}
	return nil
}

// ForceCleanup unconditionally stops both legs, swallowing failures.
// Used as a last resort after restart failure and on process teardown.
func (m *Manager) ForceCleanup(ctx context.Context) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	handle := m.takeHandle()
	tunnelErr, proxyErr := m.stopBoth(ctx, handle)
	if tunnelErr != nil {
		m.logger.Warn("force cleanup: closing tunnel failed", "error", tunnelErr)
	}
	if proxyErr != nil {
		m.logger.Warn("force cleanup: stopping proxy failed", "error", proxyErr)
	}

	m.setStatus(Status{})
	m.setBridgeState(metrics.StateStopped)
}

// stopBoth runs the tunnel-close and proxy-stop legs concurrently and
// returns each leg's error. A nil handle skips the tunnel leg.
func (m *Manager) stopBoth(ctx context.Context, handle Handle) (tunnelErr, proxyErr error) {
	var wg sync.WaitGroup

	if handle != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			closeCtx, cancel := context.WithTimeout(ctx, closeTimeout)
			defer cancel()
			if err := handle.Close(closeCtx); err != nil {
				tunnelErr = &TunnelError{Op: "close", Message: "closing tunnel", Cause: err}
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		proxyErr = m.server.Stop(ctx)
	}()

	wg.Wait()
	return tunnelErr, proxyErr
}

func (m *Manager) setStatus(status Status) {
	m.statusMu.Lock()
	defer m.statusMu.Unlock()
	// LastStarted survives stops so the status command can show when
	// the bridge was last up.
	if status.LastStarted.IsZero() {
		status.LastStarted = m.status.LastStarted
	}
	m.status = status
}

func (m *Manager) setHandle(handle Handle) {
	m.statusMu.Lock()
	defer m.statusMu.Unlock()
	m.handle = handle
}

func (m *Manager) takeHandle() Handle {
	m.statusMu.Lock()
	defer m.statusMu.Unlock()
	handle := m.handle
	m.handle = nil
	return handle
}

func (m *Manager) setBridgeState(state float64) {
	if m.metrics != nil {
		m.metrics.SetBridgeState(state)
	}
}

func (m *Manager) recordTunnelEvent(operation, result string) {
	if m.metrics != nil {
		m.metrics.RecordTunnelEvent(operation, result)
	}
}
