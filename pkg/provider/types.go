package provider

// Chat message roles accepted by the provider.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ModelInfo mirrors the provider-reported model metadata. Values are
// transient and never mutated locally.
type ModelInfo struct {
	// ID is the model identifier (e.g. "qwen2.5-7b-instruct").
	ID string `json:"id"`

	// Object is the provider's object type tag, typically "model".
	Object string `json:"object"`

	// Created is the unix timestamp the provider reports for the model.
	Created int64 `json:"created"`

	// OwnedBy is the owner reported by the provider.
	OwnedBy string `json:"owned_by"`
}

// modelListResponse is the wire shape of GET /v1/models.
type modelListResponse struct {
	Object string      `json:"object"`
	Data   []ModelInfo `json:"data"`
}

// ChatMessage is a single message in a chat completion request.
type ChatMessage struct {
	// Role is one of RoleSystem, RoleUser, RoleAssistant.
	Role string `json:"role"`

	// Content is the message text.
	Content string `json:"content"`
}

// ChatCompletionRequest is a chat completion request in the
// OpenAI-compatible wire format.
type ChatCompletionRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`

	// Optional sampling parameters. Pointers distinguish "absent" from
	// zero values.
	Temperature      *float64 `json:"temperature,omitempty"`
	MaxTokens        *int     `json:"max_tokens,omitempty"`
	TopP             *float64 `json:"top_p,omitempty"`
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64 `json:"presence_penalty,omitempty"`

	// Stream enables incremental delivery. Absent means true: the bridge
	// always streams from the provider unless explicitly disabled.
	Stream *bool `json:"stream,omitempty"`
}

// ChunkDelta is the incremental content carried by one stream chunk.
type ChunkDelta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

// ChunkChoice is one choice within a stream chunk.
type ChunkChoice struct {
	Index        int        `json:"index"`
	Delta        ChunkDelta `json:"delta"`
	FinishReason *string    `json:"finish_reason"`
}

// ChatCompletionChunk is one parsed event from the provider's stream.
type ChatCompletionChunk struct {
	ID      string        `json:"id"`
	Object  string        `json:"object"`
	Created int64         `json:"created"`
	Model   string        `json:"model"`
	Choices []ChunkChoice `json:"choices"`
}
