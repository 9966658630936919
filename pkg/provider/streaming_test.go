package provider

import (
	"errors"
	"io"
	"strings"
	"testing"
)

func newTestStream(body string) *Stream {
	return newStream(io.NopCloser(strings.NewReader(body)), testLogger(), nil)
}

func TestStream(t *testing.T) {
	t.Run("yields chunks in order then EOF", func(t *testing.T) {
		stream := newTestStream(
			"data: {\"id\":\"c1\",\"choices\":[{\"index\":0,\"delta\":{\"role\":\"assistant\",\"content\":\"Hel\"},\"finish_reason\":null}]}\n" +
				"\n" +
				"data: {\"id\":\"c1\",\"choices\":[{\"index\":0,\"delta\":{\"content\":\"lo\"},\"finish_reason\":null}]}\n" +
				"\n" +
				"data: [DONE]\n")
		defer stream.Close()

		first, err := stream.Next()
		if err != nil {
			t.Fatalf("unexpected error on first chunk: %v", err)
		}
		if got := first.Choices[0].Delta.Content; got != "Hel" {
			t.Errorf("expected first delta \"Hel\", got %q", got)
		}

		second, err := stream.Next()
		if err != nil {
			t.Fatalf("unexpected error on second chunk: %v", err)
		}
		if got := second.Choices[0].Delta.Content; got != "lo" {
			t.Errorf("expected second delta \"lo\", got %q", got)
		}

		if _, err := stream.Next(); err != io.EOF {
			t.Fatalf("expected io.EOF after [DONE], got %v", err)
		}
		// Further reads stay at EOF.
		if _, err := stream.Next(); err != io.EOF {
			t.Fatalf("expected io.EOF on repeated read, got %v", err)
		}
		if stream.Chunks() != 2 {
			t.Errorf("expected 2 parsed chunks, got %d", stream.Chunks())
		}
	})

	t.Run("finish reason ends the stream after yielding the chunk", func(t *testing.T) {
		stream := newTestStream(
			"data: {\"id\":\"c1\",\"choices\":[{\"index\":0,\"delta\":{\"content\":\"done\"},\"finish_reason\":\"stop\"}]}\n")
		defer stream.Close()

		chunk, err := stream.Next()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if chunk.Choices[0].FinishReason == nil || *chunk.Choices[0].FinishReason != "stop" {
			t.Error("expected finish_reason \"stop\" on final chunk")
		}
		if _, err := stream.Next(); err != io.EOF {
			t.Fatalf("expected io.EOF after finish reason, got %v", err)
		}
	})

	t.Run("error event surfaces as StreamError", func(t *testing.T) {
		stream := newTestStream("data: {\"error\":{\"message\":\"model unloaded\"}}\n")
		defer stream.Close()

		_, err := stream.Next()
		var serr *StreamError
		if !errors.As(err, &serr) {
			t.Fatalf("expected StreamError, got %v", err)
		}
		if serr.Message != "model unloaded" {
			t.Errorf("unexpected message %q", serr.Message)
		}
	})

	t.Run("malformed events are skipped", func(t *testing.T) {
		stream := newTestStream(
			"data: {not json\n" +
				"data: {\"id\":\"c1\",\"choices\":[{\"index\":0,\"delta\":{\"content\":\"ok\"},\"finish_reason\":null}]}\n" +
				"data: [DONE]\n")
		defer stream.Close()

		chunk, err := stream.Next()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := chunk.Choices[0].Delta.Content; got != "ok" {
			t.Errorf("expected delta \"ok\", got %q", got)
		}
	})

	t.Run("non-data lines are ignored", func(t *testing.T) {
		stream := newTestStream(
			": keep-alive\n" +
				"event: message\n" +
				"data: [DONE]\n")
		defer stream.Close()

		if _, err := stream.Next(); err != io.EOF {
			t.Fatalf("expected io.EOF, got %v", err)
		}
	})

	t.Run("truncated stream ends with EOF", func(t *testing.T) {
		stream := newTestStream(
			"data: {\"id\":\"c1\",\"choices\":[{\"index\":0,\"delta\":{\"content\":\"partial\"},\"finish_reason\":null}]}\n")
		defer stream.Close()

		if _, err := stream.Next(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := stream.Next(); err != io.EOF {
			t.Fatalf("expected io.EOF on truncation, got %v", err)
		}
	})
}
