// Package fasttrack implements the L1 execution tier: a small, fixed-size
// tool loop for requests the router judged don't need the full ReAct
// engine's budget machinery or reasoning trace.
package fasttrack

import (
	"context"
	"encoding/json"
	"os"
	"strconv"
	"time"

	"github.com/pocketomega/sunny-agent/internal/llm"
	"github.com/pocketomega/sunny-agent/internal/logging"
	"github.com/pocketomega/sunny-agent/internal/stream"
	"github.com/pocketomega/sunny-agent/internal/tool"
)

// MaxSteps bounds the L1 loop: up to this many LLM calls, the last of which
// always omits tool schemas to force a summary. Configurable via
// FASTTRACK_MAX_STEPS (default 3, clamped to [1,10]) — mirrors the teacher's
// AGENT_MAX_STEPS idiom (internal/agent/state.go's loadMaxSteps).
var MaxSteps = loadMaxSteps()

func loadMaxSteps() int {
	const defaultSteps = 3
	v := os.Getenv("FASTTRACK_MAX_STEPS")
	if v == "" {
		return defaultSteps
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 || n > 10 {
		logging.L().Warnf("invalid FASTTRACK_MAX_STEPS=%q (must be 1-10), using default %d", v, defaultSteps)
		return defaultSteps
	}
	return n
}

// ToolSource is the subset of tool.Registry this tier dispatches against.
// L1 always sees the full catalog (no tool_filter concept applies here —
// that's a sub-agent restriction, orthogonal to execution tier).
type ToolSource interface {
	Execute(ctx context.Context, name string, args []byte) (tool.Result, error)
	SchemasFor(tier tool.Tier) []tool.Tool
}

// Engine runs the L1 bounded tool loop.
type Engine struct {
	provider llm.Provider
	tools    ToolSource
}

// NewEngine creates an Engine bound to provider and tools.
func NewEngine(provider llm.Provider, tools ToolSource) *Engine {
	return &Engine{provider: provider, tools: tools}
}

// Execute runs the bounded loop to completion. messages must already carry
// the system prompt, history, and user input.
func (e *Engine) Execute(ctx context.Context, messages []llm.Message) (ExecutionResult, error) {
	start := time.Now()
	msgs := make([]llm.Message, len(messages))
	copy(msgs, messages)

	schemas := e.tools.SchemasFor(tool.TierL1)
	var toolDefs []llm.ToolDefinition
	for _, s := range schemas {
		toolDefs = append(toolDefs, llm.ToolDefinition{Name: s.Name(), Description: s.Description(), Parameters: s.InputSchema()})
	}

	var calls []ToolCallRecord
	var reply string

	for step := 0; step < MaxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return ExecutionResult{}, err
		}

		final := step == MaxSteps-1
		var msg llm.Message
		var err error
		if final {
			msg, err = e.provider.CallLLM(ctx, msgs)
		} else {
			msg, err = e.provider.CallLLMWithTools(ctx, msgs, toolDefs)
		}
		if err != nil {
			return ExecutionResult{}, err
		}

		if len(msg.ToolCalls) == 0 {
			reply = msg.Content
			break
		}

		assistantMsg := llm.Message{Role: llm.RoleAssistant, Content: msg.Content, ToolCalls: msg.ToolCalls}
		msgs = append(msgs, assistantMsg)

		// Sequential, not concurrent: L1 is the "terse" tier and
		// intentionally does not fan out tool calls.
		for _, tc := range msg.ToolCalls {
			tcStart := time.Now()
			args := tc.Arguments
			if !json.Valid(args) {
				args = json.RawMessage(`{}`)
			}
			res, execErr := e.tools.Execute(ctx, tc.Name, args)
			if execErr != nil {
				return ExecutionResult{}, execErr
			}
			duration := time.Since(tcStart).Milliseconds()

			calls = append(calls, ToolCallRecord{
				ToolName: tc.Name, Arguments: string(args), Result: res.JSON(),
				IsError: res.IsError(), DurationMs: duration,
			})
			msgs = append(msgs, llm.Message{Role: llm.RoleTool, Content: res.JSON(), Name: tc.Name, ToolCallID: tc.ID})
		}

		reply = msg.Content
	}

	return ExecutionResult{
		Reply: reply, ToolCalls: calls, Source: "L1",
		DurationMs: time.Since(start).Milliseconds(),
	}, nil
}

// ExecuteStream runs the same loop, emitting events as it goes. Per the
// kept streaming design note: when the very first LLM call returns a
// complete answer with no tool calls, the whole reply is forwarded as a
// single delta rather than split token-by-token — a legitimate degenerate
// case of this tier's non-streaming LLM calls, not a bug.
func (e *Engine) ExecuteStream(ctx context.Context, messages []llm.Message, emitter stream.Emitter) (ExecutionResult, error) {
	emit := func(ev stream.Event) {
		if emitter != nil {
			emitter.Emit(ev)
		}
	}
	emit(stream.Status("executing"))

	msgs := make([]llm.Message, len(messages))
	copy(msgs, messages)

	schemas := e.tools.SchemasFor(tool.TierL1)
	var toolDefs []llm.ToolDefinition
	for _, s := range schemas {
		toolDefs = append(toolDefs, llm.ToolDefinition{Name: s.Name(), Description: s.Description(), Parameters: s.InputSchema()})
	}

	start := time.Now()
	var calls []ToolCallRecord
	var reply string

	for step := 0; step < MaxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return ExecutionResult{}, err
		}

		final := step == MaxSteps-1
		var msg llm.Message
		var err error
		if final {
			msg, err = e.provider.CallLLMStream(ctx, msgs, func(delta string) {
				emit(stream.Delta(delta))
			})
		} else {
			msg, err = e.provider.CallLLMWithTools(ctx, msgs, toolDefs)
		}
		if err != nil {
			return ExecutionResult{}, err
		}

		if len(msg.ToolCalls) == 0 {
			reply = msg.Content
			if !final {
				// Complete answer on a non-final, tools-visible step: the
				// model chose not to call anything. Forward the whole
				// reply as one delta rather than a second streamed call.
				emit(stream.Delta(msg.Content))
			}
			emit(stream.Finish(step+1, 0, false, ""))
			break
		}

		assistantMsg := llm.Message{Role: llm.RoleAssistant, Content: msg.Content, ToolCalls: msg.ToolCalls}
		msgs = append(msgs, assistantMsg)

		for _, tc := range msg.ToolCalls {
			tcStart := time.Now()
			args := tc.Arguments
			if !json.Valid(args) {
				args = json.RawMessage(`{}`)
			}
			emit(stream.ToolCall(0, tc.Name, string(args)))
			res, execErr := e.tools.Execute(ctx, tc.Name, args)
			if execErr != nil {
				return ExecutionResult{}, execErr
			}
			emit(stream.ToolResult(0, tc.Name, res.JSON()))
			duration := time.Since(tcStart).Milliseconds()

			calls = append(calls, ToolCallRecord{
				ToolName: tc.Name, Arguments: string(args), Result: res.JSON(),
				IsError: res.IsError(), DurationMs: duration,
			})
			msgs = append(msgs, llm.Message{Role: llm.RoleTool, Content: res.JSON(), Name: tc.Name, ToolCallID: tc.ID})
		}

		reply = msg.Content
		if step == MaxSteps-1 {
			emit(stream.Finish(step+1, 0, false, ""))
		}
	}

	return ExecutionResult{
		Reply: reply, ToolCalls: calls, Source: "L1",
		DurationMs: time.Since(start).Milliseconds(),
	}, nil
}

// ToolCallRecord is one executed tool call, exposed on ExecutionResult.
type ToolCallRecord struct {
	ToolName   string `json:"tool_name"`
	Arguments  string `json:"arguments"`
	Result     string `json:"result"`
	IsError    bool   `json:"is_error"`
	DurationMs int64  `json:"duration_ms"`
}

// ExecutionResult is this tier's outward-facing return value, field-aligned
// with react.ExecutionResult so the router can treat both tiers uniformly.
type ExecutionResult struct {
	Reply      string
	ToolCalls  []ToolCallRecord
	Source     string
	DurationMs int64
}
