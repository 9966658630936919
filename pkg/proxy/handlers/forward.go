package handlers

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"mercator-hq/callisto/pkg/proxy/types"
)

// forwardedHeaders is the narrow allow-list of request headers the
// bridge passes upstream. Everything else, notably cookies and origin
// headers from the tunnel, stops at the bridge.
var forwardedHeaders = []string{
	"Content-Type",
	"Authorization",
	"User-Agent",
}

// v1Endpoints are provider API paths that live under /v1. A request
// arriving without the prefix gets it inserted so callers can use
// either form.
var v1Endpoints = map[string]bool{
	"/chat/completions": true,
	"/models":           true,
	"/completions":      true,
	"/embeddings":       true,
}

// Forwarder relays requests to the local provider. It owns no routing
// policy beyond path normalization: whatever arrives is sent on, and
// whatever comes back is streamed to the client without buffering.
type Forwarder struct {
	providerURL string
	httpClient  *http.Client
	logger      *slog.Logger
}

// NewForwarder builds a Forwarder targeting the given provider base URL.
func NewForwarder(providerURL string, logger *slog.Logger) *Forwarder {
	return &Forwarder{
		providerURL: strings.TrimRight(providerURL, "/"),
		// No client timeout: streamed completions run until the provider
		// closes the stream, and the server's own write deadline governs
		// stuck clients.
		httpClient: &http.Client{Timeout: 0},
		logger:     logger,
	}
}

// NormalizePath inserts the /v1 prefix for known provider endpoints
// that arrive without it. Unknown paths are forwarded untouched.
func NormalizePath(path string) string {
	if strings.HasPrefix(path, "/v1/") {
		return path
	}
	if v1Endpoints[path] {
		return "/v1" + path
	}
	return path
}

// ServeHTTP forwards the request body as-is.
func (f *Forwarder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body io.Reader
	if r.Body != nil {
		body = r.Body
	}
	f.forward(w, r, body)
}

// ForwardBody forwards a request whose body has already been read and
// possibly rewritten by a handler.
func (f *Forwarder) ForwardBody(w http.ResponseWriter, r *http.Request, body []byte) {
	f.forward(w, r, bytes.NewReader(body))
}

func (f *Forwarder) forward(w http.ResponseWriter, r *http.Request, body io.Reader) {
	target := f.providerURL + NormalizePath(r.URL.Path)
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}

	upstreamReq, err := http.NewRequestWithContext(r.Context(), r.Method, target, body)
	if err != nil {
		f.logger.Error("building upstream request failed", "error", err, "target", target)
		types.WriteError(w, types.NewInternalError("failed to build upstream request"))
		return
	}
	for _, name := range forwardedHeaders {
		if v := r.Header.Get(name); v != "" {
			upstreamReq.Header.Set(name, v)
		}
	}

	start := time.Now()
	resp, err := f.httpClient.Do(upstreamReq)
	if err != nil {
		f.logger.Warn("upstream request failed",
			"error", err,
			"method", r.Method,
			"target", target,
		)
		types.WriteError(w, types.NewProviderUnreachableError("inference provider is not reachable"))
		return
	}
	defer resp.Body.Close()

	copyResponseHeaders(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)
	f.streamBody(w, resp.Body)

	f.logger.Debug("request forwarded",
		"method", r.Method,
		"target", target,
		"status", resp.StatusCode,
		"latency_ms", time.Since(start).Milliseconds(),
	)
}

// copyResponseHeaders mirrors upstream headers, dropping hop-by-hop
// transfer framing: the bridge re-frames the body itself and a stale
// Transfer-Encoding header would corrupt the client connection.
func copyResponseHeaders(dst, src http.Header) {
	for name, values := range src {
		if http.CanonicalHeaderKey(name) == "Transfer-Encoding" {
			continue
		}
		for _, v := range values {
			dst.Add(name, v)
		}
	}
}

// streamBody copies the upstream body to the client, flushing after
// every read so streamed completions are delivered chunk by chunk
// instead of accumulating in a buffer.
func (f *Forwarder) streamBody(w http.ResponseWriter, body io.Reader) {
	flusher, _ := w.(http.Flusher)
	buf := make([]byte, 32*1024)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				// Client went away; nothing sensible left to do.
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if err != nil {
			if err != io.EOF {
				f.logger.Warn("upstream body read failed", "error", err)
			}
			return
		}
	}
}
