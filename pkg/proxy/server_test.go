package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"mercator-hq/callisto/pkg/provider"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// freePort grabs an ephemeral port and releases it for the server
// under test to bind.
func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserving port: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func newTestServer(t *testing.T, providerURL string) *Server {
	t.Helper()
	srv := NewServer(Config{
		Port:     freePort(t),
		Provider: provider.NewClient(provider.ClientConfig{BaseURL: providerURL, Logger: testLogger()}),
		Logger:   testLogger(),
	})
	t.Cleanup(func() {
		_ = srv.Stop(context.Background())
	})
	return srv
}

func TestServerLifecycle(t *testing.T) {
	t.Run("start binds and stop releases", func(t *testing.T) {
		srv := newTestServer(t, "http://127.0.0.1:1")

		if err := srv.Start(context.Background()); err != nil {
			t.Fatalf("start failed: %v", err)
		}
		if !srv.IsRunning() {
			t.Error("expected IsRunning after start")
		}

		if err := srv.Stop(context.Background()); err != nil {
			t.Fatalf("stop failed: %v", err)
		}
		if srv.IsRunning() {
			t.Error("expected not running after stop")
		}
	})

	t.Run("second start raises AlreadyRunning", func(t *testing.T) {
		srv := newTestServer(t, "http://127.0.0.1:1")
		if err := srv.Start(context.Background()); err != nil {
			t.Fatalf("start failed: %v", err)
		}

		err := srv.Start(context.Background())
		var already *AlreadyRunningError
		if !errors.As(err, &already) {
			t.Fatalf("expected AlreadyRunningError, got %v", err)
		}
	})

	t.Run("occupied port raises PortInUse", func(t *testing.T) {
		port := freePort(t)
		occupier, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
		if err != nil {
			t.Fatalf("occupying port: %v", err)
		}
		defer occupier.Close()

		srv := NewServer(Config{
			Port:     port,
			Provider: provider.NewClient(provider.ClientConfig{BaseURL: "http://127.0.0.1:1", Logger: testLogger()}),
			Logger:   testLogger(),
		})

		startErr := srv.Start(context.Background())
		var inUse *PortInUseError
		if !errors.As(startErr, &inUse) {
			t.Fatalf("expected PortInUseError, got %v", startErr)
		}
		if inUse.Port != port {
			t.Errorf("expected port %d in error, got %d", port, inUse.Port)
		}
	})

	t.Run("stop on stopped server is a no-op", func(t *testing.T) {
		srv := newTestServer(t, "http://127.0.0.1:1")
		if err := srv.Stop(context.Background()); err != nil {
			t.Fatalf("expected nil from stop on stopped server, got %v", err)
		}
		if err := srv.Stop(context.Background()); err != nil {
			t.Fatalf("expected repeated stop to stay nil, got %v", err)
		}
	})
}

func TestServerEndToEnd(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/models":
			_, _ = w.Write([]byte(`{"object":"list","data":[{"id":"qwen2.5-7b-instruct"}]}`))
		case "/v1/chat/completions":
			w.Header().Set("Content-Type", "text/event-stream")
			_, _ = w.Write([]byte("data: [DONE]\n\n"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer upstream.Close()

	srv := newTestServer(t, upstream.URL)
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	base := "http://" + srv.Addr()

	t.Run("forwards model list with path normalization", func(t *testing.T) {
		resp, err := http.Get(base + "/models")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
		var body struct {
			Data []struct {
				ID string `json:"id"`
			} `json:"data"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatalf("decoding body: %v", err)
		}
		if len(body.Data) != 1 || body.Data[0].ID != "qwen2.5-7b-instruct" {
			t.Errorf("unexpected model list %+v", body.Data)
		}
	})

	t.Run("routes chat completions through validation", func(t *testing.T) {
		resp, err := http.Post(base+"/chat/completions", "application/json",
			strings.NewReader(`{"model":"m","messages":[]}`))
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("expected 400 for empty messages, got %d", resp.StatusCode)
		}
	})

	t.Run("denied origin receives null allow-origin", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, base+"/models", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()

		if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "null" {
			t.Errorf("expected null allow-origin, got %q", got)
		}
	})
}

type captureRecorder struct {
	mu      sync.Mutex
	entries []AuditEntry
}

func (c *captureRecorder) Record(entry AuditEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, entry)
}

func (c *captureRecorder) snapshot() []AuditEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]AuditEntry(nil), c.entries...)
}

func TestServerAudit(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer upstream.Close()

	recorder := &captureRecorder{}
	srv := NewServer(Config{
		Port:     freePort(t),
		Provider: provider.NewClient(provider.ClientConfig{BaseURL: upstream.URL, Logger: testLogger()}),
		Logger:   testLogger(),
		Audit:    recorder,
	})
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer srv.Stop(context.Background())

	resp, err := http.Post("http://"+srv.Addr()+"/v1/chat/completions", "application/json",
		strings.NewReader(`{"model":"qwen2.5-7b-instruct","messages":[{"role":"user","content":"hi"}]}`))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	deadline := time.Now().Add(time.Second)
	var entries []AuditEntry
	for time.Now().Before(deadline) {
		entries = recorder.snapshot()
		if len(entries) > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one audit entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Method != http.MethodPost || entry.Path != "/v1/chat/completions" {
		t.Errorf("unexpected entry %+v", entry)
	}
	if entry.Model != "qwen2.5-7b-instruct" {
		t.Errorf("expected model in audit entry, got %q", entry.Model)
	}
	if entry.RequestID == "" {
		t.Error("expected request ID in audit entry")
	}
	if !entry.Streamed {
		t.Error("expected streamed default true in audit entry")
	}
}
