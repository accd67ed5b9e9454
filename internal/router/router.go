// Package router implements ExecutionRouter: the single entry point that
// owns the shared registries and dispatches one classified request to
// either the L1 fast-track tier or the L3 deep ReAct tier.
package router

import (
	"context"

	"github.com/pocketomega/sunny-agent/internal/fasttrack"
	"github.com/pocketomega/sunny-agent/internal/intent"
	"github.com/pocketomega/sunny-agent/internal/llm"
	"github.com/pocketomega/sunny-agent/internal/logging"
	"github.com/pocketomega/sunny-agent/internal/react"
	"github.com/pocketomega/sunny-agent/internal/skill"
	"github.com/pocketomega/sunny-agent/internal/stream"
	"github.com/pocketomega/sunny-agent/internal/subagent"
	"github.com/pocketomega/sunny-agent/internal/todo"
	"github.com/pocketomega/sunny-agent/internal/tool"
)

// SystemPrompt is the core's own system message, prepended ahead of any
// upstream history on every request. The router owns this text — it never
// trusts a caller-supplied system message, matching intent.Result's
// deliberate omission of one.
const SystemPrompt = "You are an execution core that reasons step by step and calls tools when needed."

// ExecutionResult is the router's tier-agnostic outward shape, letting an
// OutputValidator operate uniformly whether the request ran on L1 or L3.
type ExecutionResult struct {
	Reply          string
	ToolCalls      []react.ToolCallRecord
	Source         string
	DurationMs     int64
	ReasoningTrace *react.ReasoningTrace
	Iterations     int
	TokensUsed     int
	IsDegraded     bool
	DegradeReason  string
}

func fromL1(r fasttrack.ExecutionResult) ExecutionResult {
	calls := make([]react.ToolCallRecord, len(r.ToolCalls))
	for i, c := range r.ToolCalls {
		calls[i] = react.ToolCallRecord{
			ToolName: c.ToolName, Arguments: c.Arguments, Result: c.Result,
			IsError: c.IsError, DurationMs: c.DurationMs,
		}
	}
	return ExecutionResult{Reply: r.Reply, ToolCalls: calls, Source: r.Source, DurationMs: r.DurationMs}
}

func fromL3(r react.ExecutionResult) ExecutionResult {
	return ExecutionResult{
		Reply: r.Reply, ToolCalls: r.ToolCalls, Source: r.Source, DurationMs: r.DurationMs,
		ReasoningTrace: r.ReasoningTrace, Iterations: r.Iterations, TokensUsed: r.TokensUsed,
		IsDegraded: r.IsDegraded, DegradeReason: r.DegradeReason,
	}
}

// OutputValidator inspects (and may rewrite) a tier's result before it
// reaches the caller. Standing in for the out-of-scope numeric cross-check
// / hallucination detector named in the distillation; nil is a pass-through.
type OutputValidator func(ctx context.Context, result ExecutionResult) ExecutionResult

// Router owns the process-wide registries and LLM client, and constructs
// the L1/L3 engines that share them.
type Router struct {
	Tools     *tool.Registry
	Skills    *skill.Registry
	SubAgents *subagent.Registry
	Provider  llm.Provider
	TodoStore todo.Store

	l1 *fasttrack.Engine
	l3 *react.Engine

	Validator OutputValidator
}

// New builds a Router. todoStore may be nil (Todo injection then never
// fires, as if every session id were empty).
func New(provider llm.Provider, tools *tool.Registry, skills *skill.Registry, subAgents *subagent.Registry, todoStore todo.Store) *Router {
	return &Router{
		Tools: tools, Skills: skills, SubAgents: subAgents, Provider: provider, TodoStore: todoStore,
		l1: fasttrack.NewEngine(provider, tools),
		l3: react.NewEngine(provider, tools, todoStore),
	}
}

// buildMessages assembles [system, ...history, user] per the reference
// fast_track.py / react engines' own message construction — the router is
// the one place that owns this, since intent.Result only ever carries
// history, never a prebuilt message list (that belongs to subagent_call's
// ExecuteRaw path alone).
func buildMessages(in intent.Result) []llm.Message {
	messages := make([]llm.Message, 0, len(in.HistoryMessages)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: SystemPrompt})
	for _, h := range in.HistoryMessages {
		messages = append(messages, llm.Message{Role: h.Role, Content: h.Content})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: in.RawInput})
	return messages
}

// route resolves the normalized route, logging a warning when the upstream
// classifier supplied something unrecognized — NormalizedRoute already
// degrades silently, the router adds the warning the distillation calls for.
func route(in intent.Result) intent.Route {
	normalized := in.NormalizedRoute()
	if in.Route != normalized {
		logging.L().Warnf("router: unrecognized route %q, degrading to %q", in.Route, normalized)
	}
	return normalized
}

// Execute dispatches one classified request to L1 or L3 and applies the
// optional OutputValidator.
func (rt *Router) Execute(ctx context.Context, in intent.Result) (ExecutionResult, error) {
	messages := buildMessages(in)

	var result ExecutionResult
	switch route(in) {
	case intent.RouteDeep:
		r, err := rt.l3.Execute(ctx, react.DefaultL3Config(), rt.Tools, messages)
		if err != nil {
			return ExecutionResult{}, err
		}
		result = fromL3(r)
	default:
		r, err := rt.l1.Execute(ctx, messages)
		if err != nil {
			return ExecutionResult{}, err
		}
		result = fromL1(r)
	}

	if rt.Validator != nil {
		result = rt.Validator(ctx, result)
	}
	return result, nil
}

// ExecuteStream runs the same dispatch, emitting stream.Events as the
// chosen tier progresses.
func (rt *Router) ExecuteStream(ctx context.Context, in intent.Result, emitter stream.Emitter) (ExecutionResult, error) {
	messages := buildMessages(in)

	var result ExecutionResult
	switch route(in) {
	case intent.RouteDeep:
		r, err := rt.l3.ExecuteStream(ctx, react.DefaultL3Config(), rt.Tools, messages, emitter)
		if err != nil {
			return ExecutionResult{}, err
		}
		result = fromL3(r)
	default:
		r, err := rt.l1.ExecuteStream(ctx, messages, emitter)
		if err != nil {
			return ExecutionResult{}, err
		}
		result = fromL1(r)
	}

	if rt.Validator != nil {
		result = rt.Validator(ctx, result)
	}
	return result, nil
}
