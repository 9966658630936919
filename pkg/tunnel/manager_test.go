package tunnel

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"mercator-hq/callisto/pkg/config"
	"mercator-hq/callisto/pkg/proxy"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type staticConfig struct {
	cfg config.Config
}

func (s staticConfig) Snapshot() config.Config {
	return s.cfg
}

// fakeServer implements BridgeServer with controllable failures.
type fakeServer struct {
	mu         sync.Mutex
	running    bool
	startCalls int
	stopCalls  int
	startErr   error
	stopErr    error
}

func (f *fakeServer) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startCalls++
	if f.startErr != nil {
		return f.startErr
	}
	if f.running {
		return &proxy.AlreadyRunningError{Port: f.Port()}
	}
	f.running = true
	return nil
}

func (f *fakeServer) Stop(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopCalls++
	f.running = false
	return f.stopErr
}

func (f *fakeServer) IsRunning() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

func (f *fakeServer) Port() int {
	return 8082
}

// fakeProvisioner counts opens and hands out handles with a
// controllable close error.
type fakeProvisioner struct {
	mu       sync.Mutex
	opens    int
	openErr  error
	closeErr error
	lastOpts Options
}

func (f *fakeProvisioner) Open(ctx context.Context, opts Options) (Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opens++
	f.lastOpts = opts
	if f.openErr != nil {
		return nil, f.openErr
	}
	return &fakeHandle{provisioner: f, url: "https://callisto.example.dev"}, nil
}

type fakeHandle struct {
	provisioner *fakeProvisioner
	url         string
	closed      bool
}

func (h *fakeHandle) URL() string {
	return h.url
}

func (h *fakeHandle) Close(ctx context.Context) error {
	h.provisioner.mu.Lock()
	defer h.provisioner.mu.Unlock()
	h.closed = true
	return h.provisioner.closeErr
}

func newTestManager(server *fakeServer, provisioner *fakeProvisioner) *Manager {
	cfg := config.Default()
	cfg.Tunnel.Region = "eu"
	cfg.Tunnel.AuthToken = "tok_secret"
	return NewManager(server, provisioner, staticConfig{cfg: *cfg}, testLogger(), nil)
}

func TestManagerStart(t *testing.T) {
	t.Run("binds proxy then provisions tunnel", func(t *testing.T) {
		server := &fakeServer{}
		provisioner := &fakeProvisioner{}
		m := newTestManager(server, provisioner)

		if err := m.Start(context.Background()); err != nil {
			t.Fatalf("start failed: %v", err)
		}

		status := m.Status()
		if !status.Running || status.Starting {
			t.Errorf("expected Running status, got %+v", status)
		}
		if status.URL != "https://callisto.example.dev" {
			t.Errorf("expected tunnel URL in status, got %q", status.URL)
		}
		if status.LastStarted.IsZero() {
			t.Error("expected LastStarted set")
		}
		if !server.IsRunning() {
			t.Error("expected proxy bound")
		}
		if provisioner.lastOpts.Addr != "http://localhost:8082" {
			t.Errorf("expected addr pointing at proxy port, got %q", provisioner.lastOpts.Addr)
		}
		if provisioner.lastOpts.Region != "eu" {
			t.Errorf("expected configured region, got %q", provisioner.lastOpts.Region)
		}
		if provisioner.lastOpts.AuthToken != "tok_secret" {
			t.Errorf("expected auth token passed through, got %q", provisioner.lastOpts.AuthToken)
		}
	})

	t.Run("second start is a no-op", func(t *testing.T) {
		server := &fakeServer{}
		provisioner := &fakeProvisioner{}
		m := newTestManager(server, provisioner)

		if err := m.Start(context.Background()); err != nil {
			t.Fatalf("first start failed: %v", err)
		}
		if err := m.Start(context.Background()); err != nil {
			t.Fatalf("second start should be a no-op, got %v", err)
		}

		if provisioner.opens != 1 {
			t.Errorf("expected exactly one tunnel provisioned, got %d", provisioner.opens)
		}
		if server.startCalls != 1 {
			t.Errorf("expected exactly one proxy bind, got %d", server.startCalls)
		}
	})

	t.Run("provision failure tears down proxy and retries", func(t *testing.T) {
		server := &fakeServer{}
		provisioner := &fakeProvisioner{openErr: errors.New("relay rejected")}
		m := newTestManager(server, provisioner)

		err := m.Start(context.Background())
		var terr *TunnelError
		if !errors.As(err, &terr) {
			t.Fatalf("expected TunnelError, got %v", err)
		}
		if provisioner.opens != 2 {
			t.Errorf("expected 2 provision attempts, got %d", provisioner.opens)
		}
		if server.IsRunning() {
			t.Error("expected proxy torn down after failed start")
		}

		status := m.Status()
		if status.Running || status.Starting {
			t.Errorf("expected stopped status, got %+v", status)
		}
		if status.Err == "" {
			t.Error("expected failure message in status")
		}
	})

	t.Run("port conflict surfaces as PortConflictError", func(t *testing.T) {
		server := &fakeServer{startErr: &proxy.PortInUseError{Port: 8082}}
		provisioner := &fakeProvisioner{}
		m := newTestManager(server, provisioner)

		err := m.Start(context.Background())
		var conflict *PortConflictError
		if !errors.As(err, &conflict) {
			t.Fatalf("expected PortConflictError, got %v", err)
		}
		if conflict.Port != 8082 {
			t.Errorf("expected port 8082 in error, got %d", conflict.Port)
		}
		if provisioner.opens != 0 {
			t.Errorf("expected no provision attempt after bind failure, got %d", provisioner.opens)
		}
	})

	t.Run("recovers after a failed start", func(t *testing.T) {
		server := &fakeServer{}
		provisioner := &fakeProvisioner{openErr: errors.New("relay down")}
		m := newTestManager(server, provisioner)

		if err := m.Start(context.Background()); err == nil {
			t.Fatal("expected first start to fail")
		}

		provisioner.mu.Lock()
		provisioner.openErr = nil
		provisioner.mu.Unlock()

		if err := m.Start(context.Background()); err != nil {
			t.Fatalf("expected start to succeed after relay recovery, got %v", err)
		}
		if !m.IsRunning() {
			t.Error("expected bridge running")
		}
		if m.Status().Err != "" {
			t.Errorf("expected error cleared on success, got %q", m.Status().Err)
		}
	})
}

func TestManagerStop(t *testing.T) {
	t.Run("stop on stopped manager is a no-op", func(t *testing.T) {
		server := &fakeServer{}
		m := newTestManager(server, &fakeProvisioner{})

		if err := m.Stop(context.Background()); err != nil {
			t.Fatalf("expected nil, got %v", err)
		}
		if server.stopCalls != 0 {
			t.Errorf("expected no proxy stop call, got %d", server.stopCalls)
		}
	})

	t.Run("stops both legs", func(t *testing.T) {
		server := &fakeServer{}
		provisioner := &fakeProvisioner{}
		m := newTestManager(server, provisioner)

		if err := m.Start(context.Background()); err != nil {
			t.Fatalf("start failed: %v", err)
		}
		if err := m.Stop(context.Background()); err != nil {
			t.Fatalf("stop failed: %v", err)
		}
		if server.IsRunning() {
			t.Error("expected proxy stopped")
		}
		if m.IsRunning() {
			t.Error("expected manager stopped")
		}
	})

	t.Run("tunnel close failure is returned, proxy failure only logged", func(t *testing.T) {
		server := &fakeServer{}
		provisioner := &fakeProvisioner{closeErr: errors.New("relay hiccup")}
		m := newTestManager(server, provisioner)

		if err := m.Start(context.Background()); err != nil {
			t.Fatalf("start failed: %v", err)
		}

		server.mu.Lock()
		server.stopErr = errors.New("listener stuck")
		server.mu.Unlock()

		err := m.Stop(context.Background())
		var terr *TunnelError
		if !errors.As(err, &terr) {
			t.Fatalf("expected TunnelError from close leg, got %v", err)
		}
		// Partial failure still lands in Stopped.
		if m.IsRunning() || m.Status().Starting {
			t.Error("expected stopped state after partial failure")
		}
	})
}

func TestManagerRestart(t *testing.T) {
	t.Run("restart brings the bridge back up", func(t *testing.T) {
		server := &fakeServer{}
		provisioner := &fakeProvisioner{}
		m := newTestManager(server, provisioner)

		if err := m.Start(context.Background()); err != nil {
			t.Fatalf("start failed: %v", err)
		}
		if err := m.Restart(context.Background()); err != nil {
			t.Fatalf("restart failed: %v", err)
		}
		if !m.IsRunning() {
			t.Error("expected bridge running after restart")
		}
		if provisioner.opens != 2 {
			t.Errorf("expected a fresh tunnel per start, got %d opens", provisioner.opens)
		}
	})

	t.Run("forced tunnel-close failure still ends not running and allows a later start", func(t *testing.T) {
		server := &fakeServer{}
		provisioner := &fakeProvisioner{closeErr: errors.New("relay hiccup")}
		m := newTestManager(server, provisioner)

		if err := m.Start(context.Background()); err != nil {
			t.Fatalf("start failed: %v", err)
		}

		// Make the subsequent start fail too so restart errors out.
		provisioner.mu.Lock()
		provisioner.openErr = errors.New("relay down")
		provisioner.mu.Unlock()

		err := m.Restart(context.Background())
		var rerr *RestartError
		if !errors.As(err, &rerr) {
			t.Fatalf("expected RestartError, got %v", err)
		}
		if m.IsRunning() {
			t.Error("expected not running after failed restart")
		}

		provisioner.mu.Lock()
		provisioner.openErr = nil
		provisioner.closeErr = nil
		provisioner.mu.Unlock()

		if err := m.Start(context.Background()); err != nil {
			t.Fatalf("expected start to succeed after failed restart, got %v", err)
		}
		if !m.IsRunning() {
			t.Error("expected bridge running")
		}
	})
}

func TestManagerForceCleanup(t *testing.T) {
	server := &fakeServer{}
	provisioner := &fakeProvisioner{closeErr: errors.New("relay hiccup")}
	m := newTestManager(server, provisioner)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	server.mu.Lock()
	server.stopErr = errors.New("listener stuck")
	server.mu.Unlock()

	// Both legs fail; ForceCleanup must swallow both.
	m.ForceCleanup(context.Background())

	if m.IsRunning() || m.Status().Starting {
		t.Error("expected stopped state after force cleanup")
	}
}
