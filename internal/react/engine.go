package react

import (
	"context"
	"strings"
	"time"

	"github.com/pocketomega/sunny-agent/internal/ambient"
	"github.com/pocketomega/sunny-agent/internal/llm"
	"github.com/pocketomega/sunny-agent/internal/logging"
	"github.com/pocketomega/sunny-agent/internal/stream"
	"github.com/pocketomega/sunny-agent/internal/todo"
	"github.com/pocketomega/sunny-agent/internal/tool"
)

const (
	todoReminderStart = "\n\n---\n<!-- todo-reminder-start -->"
	todoReminderEnd   = "<!-- todo-reminder-end -->"
	// maxTruncatedObservationLen bounds each observation string folded into
	// a degraded reply, per SPEC_FULL's "≤500 chars" rule.
	maxTruncatedObservationLen = 500
)

// ToolSource is the subset of tool.Registry / tool.RestrictedToolView the
// engine needs: dispatch plus the tier-scoped schema list offered to the
// model. Both concrete types already satisfy this, so the engine runs
// unmodified whether it's driving the shared registry or a sub-agent's
// restricted view.
type ToolSource interface {
	Executor
	SchemasFor(tier tool.Tier) []tool.Tool
}

// Engine runs the L3 Deep ReAct loop: Think -> Act -> Observe, bounded by
// L3Config, with Todo re-injection into messages[0] on every iteration and
// budget-exhaustion degradation synthesized from the reasoning trace alone.
type Engine struct {
	thinker   *Thinker
	actor     *Actor
	todoStore todo.Store
}

// NewEngine creates an Engine. todoStore may be nil, in which case Todo
// injection is skipped entirely (equivalent to every session id being
// empty).
func NewEngine(provider llm.Provider, tools ToolSource, todoStore todo.Store) *Engine {
	return &Engine{
		thinker:   NewThinker(provider),
		actor:     NewActor(tools),
		todoStore: todoStore,
	}
}

// toolsFor resolves the tier-scoped schema list from whatever ToolSource
// backs the engine's Actor, used each iteration so newly hot-reloaded
// skills/tools are picked up without reconstructing the engine.
func (e *Engine) toolsFor(tools ToolSource, final bool) []tool.Tool {
	if final {
		return nil
	}
	return tools.SchemasFor(tool.TierL3)
}

// Execute runs the loop to completion (or degradation) without emitting
// stream events. messages must already carry the system prompt and any
// prior conversation history — assembling that history is the caller's
// (router/handler) responsibility, not this package's.
func (e *Engine) Execute(ctx context.Context, cfg L3Config, tools ToolSource, messages []llm.Message) (ExecutionResult, error) {
	return e.run(ctx, cfg, tools, messages, nil)
}

// ExecuteStream runs the loop, emitting stream.Events at each stage to emitter.
func (e *Engine) ExecuteStream(ctx context.Context, cfg L3Config, tools ToolSource, messages []llm.Message, emitter stream.Emitter) (ExecutionResult, error) {
	return e.run(ctx, cfg, tools, messages, emitter)
}

// ExecuteRaw accepts a fully prepared message list (system prompt + task)
// and runs the same loop as Execute. It exists as a distinct entry point
// for subagent_call: a sub-agent's messages are built fresh from its own
// agent.md system_prompt and task, never from a parent's conversation
// history, and its ambient session id is always cleared before dispatch
// (see internal/ambient), which makes Todo injection a no-op for it without
// any special-casing here.
func (e *Engine) ExecuteRaw(ctx context.Context, cfg L3Config, tools ToolSource, messages []llm.Message) (ExecutionResult, error) {
	return e.run(ctx, cfg, tools, messages, nil)
}

func (e *Engine) run(ctx context.Context, cfg L3Config, tools ToolSource, messages []llm.Message, emitter stream.Emitter) (ExecutionResult, error) {
	start := time.Now()
	cfg = cfg.applyDefaults()
	observer := NewObserver(cfg)
	trace := &ReasoningTrace{}
	sessionID := ambient.SessionID(ctx)

	msgs := make([]llm.Message, len(messages))
	copy(msgs, messages)

	emit := func(ev stream.Event) {
		if emitter != nil {
			emitter.Emit(ev)
		}
	}

	emit(stream.Status("executing"))

	for step := 0; ; step++ {
		if err := ctx.Err(); err != nil {
			return ExecutionResult{}, err
		}

		if stop, reason := observer.ShouldStop(); stop {
			return e.degrade(trace, reason, start, observer, emit), nil
		}
		if step >= cfg.MaxIterations {
			return e.degrade(trace, "max_iterations", start, observer, emit), nil
		}

		if len(msgs) > 0 && sessionID != "" && e.todoStore != nil {
			items, err := e.todoStore.Get(ctx, sessionID)
			if err != nil {
				logging.L().Warnf("react: todo injection: %v", err)
			} else {
				msgs[0].Content = injectTodoSnapshot(msgs[0].Content, items)
			}
		}

		final := step == cfg.MaxIterations-1
		toolCatalog := e.toolsFor(tools, final)

		observer.RecordLLMCall()
		think, err := e.thinker.Think(ctx, msgs, toolCatalog)
		if err != nil {
			return ExecutionResult{}, err
		}
		emit(stream.Thought(step, think.Thought))

		if think.IsDone {
			msgs = append(msgs, llm.Message{Role: llm.RoleAssistant, Content: think.Thought})
			trace.Steps = append(trace.Steps, ReasoningStep{Step: step, Thought: think.Thought, DurationMs: time.Since(start).Milliseconds()})
			emit(stream.Finish(step+1, observer.LLMCallCount(), false, ""))
			return ExecutionResult{
				Reply: think.Thought, ToolCalls: trace.ToToolCallRecords(), Source: "L3",
				DurationMs: time.Since(start).Milliseconds(), ReasoningTrace: trace,
				Iterations: step + 1, TokensUsed: observer.LLMCallCount(), IsDegraded: false,
			}, nil
		}

		for _, tc := range think.ToolCalls {
			emit(stream.ToolCall(step, tc.Name, string(tc.Arguments)))
		}

		actMessages, obs, err := e.actor.Act(ctx, think)
		if err != nil {
			return ExecutionResult{}, err
		}
		msgs = append(msgs, actMessages...)

		for _, o := range obs {
			emit(stream.ToolResult(step, o.ToolName, o.Result.JSON()))
		}

		trace.Steps = append(trace.Steps, ReasoningStep{
			Step: step, Thought: think.Thought, ToolCalls: think.ToolCalls,
			Observations: obs, DurationMs: time.Since(start).Milliseconds(),
		})
	}
}

// degrade synthesizes a truthful partial reply from the trace's raw
// observation text, issuing no additional LLM call.
func (e *Engine) degrade(trace *ReasoningTrace, reason string, start time.Time, observer *Observer, emit func(stream.Event)) ExecutionResult {
	obs := trace.TruncatedObservations(maxTruncatedObservationLen)
	var reply string
	if len(obs) == 0 {
		reply = "抱歉，在可用的步骤预算内未能得出结论。"
	} else {
		reply = strings.Join(obs, "\n")
	}
	emit(stream.Finish(len(trace.Steps), observer.LLMCallCount(), true, reason))
	return ExecutionResult{
		Reply: reply, ToolCalls: trace.ToToolCallRecords(), Source: "L3",
		DurationMs: time.Since(start).Milliseconds(), ReasoningTrace: trace,
		Iterations: len(trace.Steps), TokensUsed: observer.LLMCallCount(),
		IsDegraded: true, DegradeReason: reason,
	}
}

// injectTodoSnapshot idempotently rewrites content: any previously injected
// block (delimited by todoReminderStart/todoReminderEnd) is stripped first,
// then, if any item is active (pending or in_progress), a fresh block with
// the full JSON snapshot is appended. A system message is never replaced
// with a new message — only its Content is rewritten — avoiding
// consecutive-role violations on strict providers.
func injectTodoSnapshot(content string, items []todo.Item) string {
	if startIdx := strings.Index(content, todoReminderStart); startIdx != -1 {
		if endIdx := strings.Index(content[startIdx:], todoReminderEnd); endIdx != -1 {
			content = content[:startIdx] + content[startIdx+endIdx+len(todoReminderEnd):]
		}
	}

	hasActive := false
	for _, it := range items {
		if it.Status == "pending" || it.Status == "in_progress" {
			hasActive = true
			break
		}
	}
	if !hasActive {
		return content
	}

	return content + todoReminderStart + "\n" + todo.Snapshot(items) + "\n" + todoReminderEnd
}
