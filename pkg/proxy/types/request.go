package types

// Message is one entry in a chat completion conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletionPeek is the subset of a chat completion body the bridge
// inspects before forwarding. The full body travels to the provider as
// the client sent it; decoding into this shape never strips unknown
// fields because the forwarder re-serializes from a generic map.
type ChatCompletionPeek struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   *bool     `json:"stream"`
}
