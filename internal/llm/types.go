package llm

import (
	"context"
	"encoding/json"
)

// Message represents a chat message for LLM communication.
type Message struct {
	Role             string     `json:"role"`                         // "system", "user", "assistant", "tool"
	Content          string     `json:"content"`                      // The message text
	ReasoningContent string     `json:"reasoning_content,omitempty"`  // Native thinking output (e.g. DeepSeek-R1)
	Name             string     `json:"name,omitempty"`               // Tool name, set on role=tool messages
	ToolCallID       string     `json:"tool_call_id,omitempty"`       // Set on role=tool messages, links back to the requesting ToolCall.ID
	ToolCalls        []ToolCall `json:"tool_calls,omitempty"`         // Set on role=assistant messages that request tool execution
}

// ToolCall is a single function-call request emitted by the LLM inside an
// assistant message.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolDefinition is the wire shape handed to the LLM describing one
// callable tool (OpenAI function-calling "tools" array entry).
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// StreamCallback is invoked for each chunk of streamed text.
// Implementations should be lightweight; heavy work should be deferred.
type StreamCallback func(chunk string)

// Usage reports token accounting for a single completion, when the
// provider supplies it. It is recorded for audit/observability; budget
// enforcement in this codebase is by LLM-call count, not token count
// (see react.Observer).
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Provider defines the interface for all LLM implementations.
// Any OpenAI-compatible endpoint (litellm, Ollama, Azure, vLLM, etc.)
// can be used by implementing this interface.
type Provider interface {
	// CallLLM sends messages to the LLM and returns the complete response,
	// with no tools offered — used to force a textual final answer.
	CallLLM(ctx context.Context, messages []Message) (Message, error)

	// CallLLMWithTools sends messages with tool definitions for Function
	// Calling. The model may return tool_calls or direct text.
	CallLLMWithTools(ctx context.Context, messages []Message, tools []ToolDefinition) (Message, error)

	// CallLLMStream sends messages and streams the response token-by-token.
	// Each chunk of text triggers the onChunk callback.
	// Returns the full assembled message once streaming finishes.
	// If the provider does not support streaming, it may fall back to CallLLM.
	CallLLMStream(ctx context.Context, messages []Message, onChunk StreamCallback) (Message, error)

	// GetName returns the provider name/identifier.
	GetName() string
}

// LLMProvider is retained as an alias of Provider for source compatibility
// with code grounded on the original interface name.
type LLMProvider = Provider

// Role constants.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)
