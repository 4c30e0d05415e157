package model

import "context"

// Message represents a single message in a conversation.
type Message struct {
	// Role identifies the message sender (system, user, assistant)
	Role string `json:"role"`

	// Content is the message text content
	Content string `json:"content"`

	// Name is an optional name for the message sender
	Name string `json:"name,omitempty"`
}

// Message role constants
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Request represents a provider-agnostic generation request.
// It is the parameter bag passed to the underlying call and the read-only
// input snapshot seen by input-flavor guardrail policies.
type Request struct {
	// Model is the model identifier (e.g., "gpt-4", "claude-3-opus-20240229")
	Model string `json:"model"`

	// Messages is the conversation history
	Messages []Message `json:"messages"`

	// System is the system prompt text (convenience for single-system
	// callers; providers that take system as a message can fold it in)
	System string `json:"system,omitempty"`

	// Temperature controls randomness (0.0 to 2.0)
	Temperature float64 `json:"temperature,omitempty"`

	// MaxTokens is the maximum number of tokens to generate
	MaxTokens int `json:"max_tokens,omitempty"`

	// TopP controls nucleus sampling (0.0 to 1.0)
	TopP float64 `json:"top_p,omitempty"`

	// Stop sequences that will halt generation
	Stop []string `json:"stop,omitempty"`

	// User is an optional user identifier for abuse monitoring
	User string `json:"user,omitempty"`

	// Metadata contains additional request context (request ID, tenant,
	// etc.). Not sent to the provider, but visible to policies.
	Metadata map[string]string `json:"-"`
}

// Clone returns a deep copy of the request. Retry param builders receive
// copies so that the original parameters stay intact across attempts.
func (r Request) Clone() Request {
	out := r
	out.Messages = make([]Message, len(r.Messages))
	copy(out.Messages, r.Messages)
	if r.Stop != nil {
		out.Stop = make([]string, len(r.Stop))
		copy(out.Stop, r.Stop)
	}
	if r.Metadata != nil {
		out.Metadata = make(map[string]string, len(r.Metadata))
		for k, v := range r.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

// PromptText returns the concatenated user-visible text of the request
// (system prompt plus message contents), which is what most input policies
// inspect.
func (r Request) PromptText() string {
	text := r.System
	for _, m := range r.Messages {
		if text != "" {
			text += "\n"
		}
		text += m.Content
	}
	return text
}

// Usage tracks token consumption for a request.
type Usage struct {
	// PromptTokens is the number of tokens in the prompt
	PromptTokens int `json:"prompt_tokens"`

	// CompletionTokens is the number of tokens in the completion
	CompletionTokens int `json:"completion_tokens"`

	// TotalTokens is the total number of tokens used
	TotalTokens int `json:"total_tokens"`
}

// Result represents a provider-agnostic completion result.
type Result struct {
	// ID is the unique response identifier
	ID string `json:"id"`

	// Model is the model that generated the response
	Model string `json:"model"`

	// Content is the generated text content
	Content string `json:"content"`

	// FinishReason indicates why generation stopped
	// (stop, length, content_filter, guardrail)
	FinishReason string `json:"finish_reason"`

	// Usage contains token consumption information
	Usage Usage `json:"usage"`

	// Created is the Unix timestamp when the response was created
	Created int64 `json:"created"`

	// Metadata contains additional response context
	Metadata map[string]string `json:"metadata,omitempty"`
}

// StreamChunk represents a single chunk in a streaming response.
type StreamChunk struct {
	// ID is the response identifier (same across all chunks)
	ID string `json:"id"`

	// Model is the model generating the response
	Model string `json:"model"`

	// Delta is the incremental content in this chunk
	Delta string `json:"delta"`

	// FinishReason is set in the final chunk to indicate why generation
	// stopped (stop, length, guardrail)
	FinishReason string `json:"finish_reason,omitempty"`

	// Usage is included in the final chunk (if supported by the provider)
	Usage *Usage `json:"usage,omitempty"`

	// Error is set if an error occurred during streaming
	Error error `json:"-"`

	// Created is the Unix timestamp when the chunk was created
	Created int64 `json:"created"`
}

// Finish reason constants
const (
	FinishReasonStop          = "stop"
	FinishReasonLength        = "length"
	FinishReasonContentFilter = "content_filter"

	// FinishReasonGuardrail marks a result or chunk synthesized by the
	// guardrail engine after a blocked outcome.
	FinishReasonGuardrail = "guardrail"
)

// CompleteFunc performs one underlying one-shot generative call.
// The engine invokes it once per attempt; it must respect ctx cancellation.
type CompleteFunc func(ctx context.Context, req Request) (*Result, error)

// StreamFunc performs one underlying streaming generative call. The returned
// channel must be closed by the producer when the stream ends, and the
// producer must stop sending when ctx is cancelled. Errors are delivered via
// StreamChunk.Error on the channel.
type StreamFunc func(ctx context.Context, req Request) (<-chan StreamChunk, error)
