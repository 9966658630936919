package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"mercator-hq/callisto/pkg/telemetry/metrics"
)

const (
	// DefaultBaseURL is the conventional local inference provider address.
	DefaultBaseURL = "http://localhost:1234"

	// defaultListTimeout bounds model listing calls.
	defaultListTimeout = 10 * time.Second

	// defaultChatTimeout bounds a chat completion end to end, including
	// reading the full response stream.
	defaultChatTimeout = 120 * time.Second
)

// ClientConfig configures a provider Client. The zero value is usable:
// every field has a working default.
type ClientConfig struct {
	// BaseURL is the provider's base address. Defaults to DefaultBaseURL.
	BaseURL string

	// ListTimeout bounds Models calls. Defaults to 10s.
	ListTimeout time.Duration

	// ChatTimeout bounds chat completions including the stream.
	// Defaults to 120s.
	ChatTimeout time.Duration

	// Logger receives client diagnostics. Defaults to slog.Default().
	Logger *slog.Logger

	// Metrics, when set, records upstream errors and stream chunk counts.
	Metrics *metrics.Collector
}

// Client talks to a locally hosted, OpenAI-compatible inference provider.
// It is safe for concurrent use.
type Client struct {
	baseURL     string
	listTimeout time.Duration
	chatTimeout time.Duration
	httpClient  *http.Client
	logger      *slog.Logger
	metrics     *metrics.Collector
}

// NewClient builds a Client from cfg.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	listTimeout := cfg.ListTimeout
	if listTimeout <= 0 {
		listTimeout = defaultListTimeout
	}
	chatTimeout := cfg.ChatTimeout
	if chatTimeout <= 0 {
		chatTimeout = defaultChatTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		listTimeout: listTimeout,
		chatTimeout: chatTimeout,
		httpClient: &http.Client{
			// The client timeout covers the whole exchange, body included,
			// so a stalled provider stream cannot hold a request forever.
			Timeout: chatTimeout,
		},
		logger:  logger,
		metrics: cfg.Metrics,
	}
}

// BaseURL returns the provider base address the client was built with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Models lists the models the provider currently exposes. Any failure,
// transport or otherwise, yields an empty list: callers use the result
// to pick a model and an unreachable provider simply offers none.
func (c *Client) Models(ctx context.Context) []ModelInfo {
	ctx, cancel := context.WithTimeout(ctx, c.listTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/models", nil)
	if err != nil {
		c.logger.Warn("building model list request failed", "error", err)
		return nil
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.recordUpstreamError("transport")
		c.logger.Warn("model list request failed", "error", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.recordUpstreamError("status")
		c.logger.Warn("model list returned non-success status", "status", resp.StatusCode)
		return nil
	}

	var list modelListResponse
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		c.recordUpstreamError("decode")
		c.logger.Warn("decoding model list failed", "error", err)
		return nil
	}
	return list.Data
}

// IsModelLoaded reports whether the provider currently exposes a model
// with the given id. False covers both "not loaded" and "provider
// unreachable".
func (c *Client) IsModelLoaded(ctx context.Context, id string) bool {
	for _, m := range c.Models(ctx) {
		if m.ID == id {
			return true
		}
	}
	return false
}

// CreateChatCompletion validates req, posts it to the provider, and
// returns the response stream. Stream defaults to true when absent.
// The caller owns the returned Stream and must Close it.
func (c *Client) CreateChatCompletion(ctx context.Context, req ChatCompletionRequest) (*Stream, error) {
	if err := validateChatRequest(req); err != nil {
		return nil, err
	}
	if req.Stream == nil {
		stream := true
		req.Stream = &stream
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, &ProviderError{Op: "chat completion", Message: "encoding request", Cause: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, &ProviderError{Op: "chat completion", Message: "building request", Cause: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if isTimeout(err) {
			c.recordUpstreamError("timeout")
			return nil, &TimeoutError{Op: "chat completion", Timeout: c.chatTimeout, Cause: err}
		}
		c.recordUpstreamError("transport")
		return nil, &ProviderError{Op: "chat completion", Message: "provider unreachable", Cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		c.recordUpstreamError("status")
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &ProviderError{
			Op:         "chat completion",
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(detail)),
		}
	}

	return newStream(resp.Body, c.logger, c.metrics), nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func (c *Client) recordUpstreamError(kind string) {
	if c.metrics != nil {
		c.metrics.RecordUpstreamError(kind)
	}
}

func validateChatRequest(req ChatCompletionRequest) error {
	if strings.TrimSpace(req.Model) == "" {
		return &ValidationError{Field: "model", Message: "must not be blank"}
	}
	if len(req.Messages) == 0 {
		return &ValidationError{Field: "messages", Message: "must contain at least one message"}
	}
	for i, msg := range req.Messages {
		if msg.Role == "" {
			return &ValidationError{
				Field:   fmt.Sprintf("messages[%d].role", i),
				Message: "must not be empty",
			}
		}
		if strings.TrimSpace(msg.Content) == "" {
			return &ValidationError{
				Field:   fmt.Sprintf("messages[%d].content", i),
				Message: "must not be blank",
			}
		}
	}
	if req.Temperature != nil && (*req.Temperature < 0 || *req.Temperature > 2) {
		return &ValidationError{Field: "temperature", Message: "must be between 0 and 2"}
	}
	return nil
}
