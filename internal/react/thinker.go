package react

import (
	"context"
	"fmt"

	"github.com/pocketomega/sunny-agent/internal/llm"
	"github.com/pocketomega/sunny-agent/internal/tool"
)

// Thinker wraps one LLM call offering the current tool catalog, producing a
// ThinkResult the engine folds into its reasoning trace.
type Thinker struct {
	provider llm.Provider
}

// NewThinker creates a Thinker bound to provider.
func NewThinker(provider llm.Provider) *Thinker {
	return &Thinker{provider: provider}
}

// Think calls the LLM with messages and the given tool catalog (already
// tier- and allow-list-filtered by the caller) and converts the response
// into a ThinkResult. A reply with no tool_calls is the loop's terminal
// condition (IsDone=true).
func (t *Thinker) Think(ctx context.Context, messages []llm.Message, tools []tool.Tool) (ThinkResult, error) {
	defs := make([]llm.ToolDefinition, len(tools))
	for i, tl := range tools {
		defs[i] = llm.ToolDefinition{Name: tl.Name(), Description: tl.Description(), Parameters: tl.InputSchema()}
	}

	msg, err := t.provider.CallLLMWithTools(ctx, messages, defs)
	if err != nil {
		return ThinkResult{}, fmt.Errorf("think: %w", err)
	}

	calls := make([]ToolCallRequest, len(msg.ToolCalls))
	for i, tc := range msg.ToolCalls {
		calls[i] = ToolCallRequest{ID: tc.ID, Name: tc.Name, Arguments: tc.Arguments}
	}

	return ThinkResult{
		Thought:   msg.Content,
		ToolCalls: calls,
		Usage:     llm.Usage{}, // provider does not yet surface usage on this path
		IsDone:    len(calls) == 0,
	}, nil
}
