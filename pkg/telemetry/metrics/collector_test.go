package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestCollector(t *testing.T) {
	t.Run("records and exposes request metrics", func(t *testing.T) {
		c := NewCollector("callisto", nil)

		c.RecordRequest("chat_completions", "POST", 200, 150*time.Millisecond)
		c.RecordRequest("forward", "GET", 502, 5*time.Millisecond)
		c.RecordUpstreamError("network")
		c.AddStreamChunks(3)
		c.RecordTunnelEvent("start", "success")
		c.SetBridgeState(StateRunning)

		req := httptest.NewRequest("GET", "/metrics", nil)
		w := httptest.NewRecorder()
		c.Handler().ServeHTTP(w, req)

		body := w.Body.String()
		for _, want := range []string{
			"callisto_proxy_requests_total",
			"callisto_upstream_errors_total",
			"callisto_stream_chunks_total 3",
			"callisto_tunnel_lifecycle_events_total",
			"callisto_bridge_state 2",
		} {
			if !strings.Contains(body, want) {
				t.Errorf("exposition missing %q", want)
			}
		}
	})

	t.Run("zero chunk count is not recorded", func(t *testing.T) {
		c := NewCollector("callisto", nil)
		c.AddStreamChunks(0)

		req := httptest.NewRequest("GET", "/metrics", nil)
		w := httptest.NewRecorder()
		c.Handler().ServeHTTP(w, req)

		if !strings.Contains(w.Body.String(), "callisto_stream_chunks_total 0") {
			t.Error("counter should remain at zero")
		}
	})
}
