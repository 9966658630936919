package tunnel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// tunnelName is the fixed name the bridge registers its tunnel under.
// One bridge per host means one tunnel per agent.
const tunnelName = "callisto"

// agentRequestTimeout bounds individual agent API calls. The manager
// wraps open/close with its own lifecycle timeouts on top.
const agentRequestTimeout = 30 * time.Second

// AgentProvisioner provisions tunnels through the local tunnel agent's
// HTTP API. The agent owns the relay connection and credentials
// handling; the bridge just asks it for a named tunnel to the proxy
// port.
type AgentProvisioner struct {
	agentURL   string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewAgentProvisioner builds a provisioner against the agent at
// agentURL.
func NewAgentProvisioner(agentURL string, logger *slog.Logger) *AgentProvisioner {
	return &AgentProvisioner{
		agentURL: strings.TrimRight(agentURL, "/"),
		httpClient: &http.Client{
			Timeout: agentRequestTimeout,
		},
		logger: logger,
	}
}

// createTunnelRequest is the agent API body for opening a tunnel.
type createTunnelRequest struct {
	Name string `json:"name"`
	Options
}

// createTunnelResponse is the agent API reply.
type createTunnelResponse struct {
	Name      string `json:"name"`
	PublicURL string `json:"public_url"`
}

// Open registers the bridge tunnel with the agent and returns its
// handle.
func (p *AgentProvisioner) Open(ctx context.Context, opts Options) (Handle, error) {
	body, err := json.Marshal(createTunnelRequest{Name: tunnelName, Options: opts})
	if err != nil {
		return nil, &TunnelError{Op: "create", Message: "encoding request", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.agentURL+"/api/tunnels", bytes.NewReader(body))
	if err != nil {
		return nil, &TunnelError{Op: "create", Message: "building request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, &TunnelError{Op: "create", Message: "tunnel agent unreachable", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &TunnelError{
			Op:      "create",
			Message: fmt.Sprintf("agent returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail))),
		}
	}

	var created createTunnelResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, &TunnelError{Op: "create", Message: "decoding agent response", Cause: err}
	}
	if created.PublicURL == "" {
		return nil, &TunnelError{Op: "create", Message: "agent returned no public URL"}
	}

	p.logger.Info("tunnel provisioned",
		"name", tunnelName,
		"region", opts.Region,
	)
	return &agentHandle{
		provisioner: p,
		name:        tunnelName,
		url:         created.PublicURL,
	}, nil
}

// agentHandle is a tunnel registered with the agent.
type agentHandle struct {
	provisioner *AgentProvisioner
	name        string
	url         string
}

func (h *agentHandle) URL() string {
	return h.url
}

func (h *agentHandle) Close(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, h.provisioner.agentURL+"/api/tunnels/"+h.name, nil)
	if err != nil {
		return &TunnelError{Op: "close", Message: "building request", Cause: err}
	}

	resp, err := h.provisioner.httpClient.Do(req)
	if err != nil {
		return &TunnelError{Op: "close", Message: "tunnel agent unreachable", Cause: err}
	}
	defer resp.Body.Close()

	// 404 means the agent already dropped the tunnel; that is the state
	// close was asked to reach.
	if resp.StatusCode != http.StatusNotFound && (resp.StatusCode < 200 || resp.StatusCode > 299) {
		return &TunnelError{
			Op:      "close",
			Message: fmt.Sprintf("agent returned status %d", resp.StatusCode),
		}
	}

	h.provisioner.logger.Info("tunnel closed", "name", h.name)
	return nil
}
