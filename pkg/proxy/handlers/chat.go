package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"mercator-hq/callisto/pkg/proxy/middleware"
	"mercator-hq/callisto/pkg/proxy/types"
)

// ConnectivityProbe is the exact message content a remote caller sends
// to verify the bridge end to end before real configuration exists.
// The match is deliberately a hardcoded exact string: the probe is a
// protocol quirk of one specific caller, not a general mechanism.
const ConnectivityProbe = "Are you working? Reply with just OK."

// maxChatBody caps the request body the chat handler will buffer. Chat
// payloads with large contexts stay well under this.
const maxChatBody = 16 << 20

// ModelSource lists the model IDs the provider currently exposes. It
// is the slice of the provider client the chat handler needs for
// probe-model substitution.
type ModelSource interface {
	ModelIDs(ctx context.Context) []string
}

// ChatHandler validates chat completion requests and forwards them to
// the provider. It is the only handler that inspects request bodies;
// every inspection is read-only except the probe-model substitution.
type ChatHandler struct {
	models    ModelSource
	forwarder *Forwarder
	logger    *slog.Logger
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(models ModelSource, forwarder *Forwarder, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{
		models:    models,
		forwarder: forwarder,
		logger:    logger,
	}
}

// ServeHTTP handles POSTs to the chat completion path aliases.
func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		types.WriteError(w, types.NewInvalidRequestError("chat completions require POST"))
		return
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxChatBody))
	if err != nil {
		types.WriteError(w, types.NewInvalidRequestError("failed to read request body"))
		return
	}

	// Decode twice: the generic map preserves every field the client
	// sent for forwarding, the peek gives typed access for validation.
	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		types.WriteError(w, types.NewInvalidRequestError("request body is not valid JSON"))
		return
	}
	var peek types.ChatCompletionPeek
	if err := json.Unmarshal(raw, &peek); err != nil {
		types.WriteError(w, types.NewInvalidRequestError("request body does not match the chat completion shape"))
		return
	}

	if strings.TrimSpace(peek.Model) == "" {
		types.WriteError(w, types.NewInvalidRequestError("model must not be blank"))
		return
	}
	if len(peek.Messages) == 0 {
		types.WriteError(w, types.NewInvalidRequestError("messages must not be empty"))
		return
	}

	body := raw
	finalModel := peek.Model
	if model, ok := h.probeModel(r, peek); ok {
		generic["model"] = model
		rewritten, err := json.Marshal(generic)
		if err != nil {
			types.WriteError(w, types.NewInternalError("failed to rewrite request body"))
			return
		}
		body = rewritten
		finalModel = model
		h.logger.Info("connectivity probe detected, substituting model",
			"model", model,
		)
	}

	if note := middleware.GetAuditNote(r.Context()); note != nil {
		note.Model = finalModel
		note.Streamed = peek.Stream == nil || *peek.Stream
	}

	h.forwarder.ForwardBody(w, r, body)
}

// probeModel reports whether the request is the remote caller's
// connectivity probe and, if so, picks a model for it: the first
// provider model whose id does not look like an embedding model. The
// probe carries a placeholder model name because the caller cannot know
// what is loaded locally.
func (h *ChatHandler) probeModel(r *http.Request, peek types.ChatCompletionPeek) (string, bool) {
	if len(peek.Messages) < 2 || peek.Messages[1].Content != ConnectivityProbe {
		return "", false
	}
	for _, id := range h.models.ModelIDs(r.Context()) {
		if !strings.Contains(strings.ToLower(id), "embed") {
			return id, true
		}
	}
	// No usable model: forward unchanged and let the provider answer.
	return "", false
}
