package provider

import (
	"bufio"
	"encoding/json"
	"io"
	"log/slog"
	"strings"

	"mercator-hq/callisto/pkg/telemetry/metrics"
)

// sseDataPrefix marks payload-bearing lines in the provider's
// server-sent-event stream.
const sseDataPrefix = "data: "

// sseDoneMarker is the provider's end-of-stream sentinel.
const sseDoneMarker = "[DONE]"

// maxStreamLine caps a single event line. Chunk deltas are small but a
// provider echoing a large prompt can produce long lines.
const maxStreamLine = 1 << 20

// Stream is a single-pass reader over a provider chat completion
// response. It is not safe for concurrent use and cannot be restarted:
// once Next returns an error, every later call returns the same result.
type Stream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	logger  *slog.Logger
	metrics *metrics.Collector

	done   bool
	chunks int
}

func newStream(body io.ReadCloser, logger *slog.Logger, collector *metrics.Collector) *Stream {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxStreamLine)
	return &Stream{
		body:    body,
		scanner: scanner,
		logger:  logger,
		metrics: collector,
	}
}

// Next returns the next parsed chunk from the stream. It returns io.EOF
// when the provider signals completion, either with the [DONE] marker
// or a chunk carrying a finish reason (that chunk is still returned; the
// following call yields io.EOF). An explicit error event in the stream
// surfaces as a *StreamError.
func (s *Stream) Next() (*ChatCompletionChunk, error) {
	if s.done {
		return nil, io.EOF
	}

	for s.scanner.Scan() {
		line := s.scanner.Text()
		if !strings.HasPrefix(line, sseDataPrefix) {
			// Blank keep-alives and comment lines between events.
			continue
		}
		payload := strings.TrimPrefix(line, sseDataPrefix)
		if payload == sseDoneMarker {
			s.done = true
			return nil, io.EOF
		}

		// An error event replaces the chunk shape entirely.
		var probe struct {
			Error *struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.Unmarshal([]byte(payload), &probe); err == nil && probe.Error != nil {
			s.done = true
			return nil, &StreamError{Message: probe.Error.Message}
		}

		var chunk ChatCompletionChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			// A malformed event is dropped, not fatal: the provider may
			// still deliver well-formed chunks after it.
			s.logger.Warn("skipping malformed stream event", "error", err)
			continue
		}

		s.chunks++
		if s.metrics != nil {
			s.metrics.AddStreamChunks(1)
		}
		if finished(chunk) {
			s.done = true
		}
		return &chunk, nil
	}

	s.done = true
	if err := s.scanner.Err(); err != nil {
		return nil, &ProviderError{Op: "chat completion", Message: "reading stream", Cause: err}
	}
	return nil, io.EOF
}

// Chunks returns the number of chunks parsed so far.
func (s *Stream) Chunks() int {
	return s.chunks
}

// Close releases the underlying response body. It is safe to call more
// than once.
func (s *Stream) Close() error {
	s.done = true
	return s.body.Close()
}

func finished(chunk ChatCompletionChunk) bool {
	for _, choice := range chunk.Choices {
		if choice.FinishReason != nil && *choice.FinishReason != "" {
			return true
		}
	}
	return false
}
