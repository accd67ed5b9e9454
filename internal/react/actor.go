package react

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pocketomega/sunny-agent/internal/llm"
	"github.com/pocketomega/sunny-agent/internal/tool"
)

// Executor is implemented by both tool.Registry and tool.RestrictedToolView,
// letting Actor run unmodified whether it's driving the top-level tool
// catalog or a sub-agent's restricted view.
type Executor interface {
	Execute(ctx context.Context, name string, args []byte) (tool.Result, error)
}

// Actor turns one think step's tool calls into an assistant message plus
// one tool message per call, running the calls concurrently and merging
// results in request order.
type Actor struct {
	executor Executor
}

// NewActor creates an Actor bound to executor.
func NewActor(executor Executor) *Actor {
	return &Actor{executor: executor}
}

// Act builds the assistant message for think (thought + requested
// tool_calls), executes every call concurrently via errgroup.Group, and
// returns the assistant message followed by one tool message per call (in
// original request order) plus the raw Observations for trace recording.
//
// errgroup.WithContext is deliberately not used for per-tool failures —
// only ctx's own cancellation should abort siblings; one tool's Error
// Result must never cancel the others, since an Error Result is a normal,
// LLM-consumable outcome, not a failure of the batch. A returned error here
// is ctx cancellation only, propagated unchanged per the Executor contract.
func (a *Actor) Act(ctx context.Context, think ThinkResult) ([]llm.Message, []Observation, error) {
	toolCalls := make([]llm.ToolCall, len(think.ToolCalls))
	for i, c := range think.ToolCalls {
		toolCalls[i] = llm.ToolCall{ID: c.ID, Name: c.Name, Arguments: c.Arguments}
	}
	assistantMsg := llm.Message{Role: llm.RoleAssistant, Content: think.Thought, ToolCalls: toolCalls}

	obs := make([]Observation, len(think.ToolCalls))
	var g errgroup.Group
	for i, call := range think.ToolCalls {
		i, call := i, call
		g.Go(func() error {
			start := time.Now()
			res, err := a.executor.Execute(ctx, call.Name, call.Arguments)
			if err != nil {
				return err
			}
			obs[i] = Observation{
				ToolCallID: call.ID,
				ToolName:   call.Name,
				Result:     res,
				DurationMs: time.Since(start).Milliseconds(),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	messages := make([]llm.Message, 0, len(obs)+1)
	messages = append(messages, assistantMsg)
	for _, o := range obs {
		messages = append(messages, llm.Message{
			Role:       llm.RoleTool,
			Content:    o.Result.JSON(),
			Name:       o.ToolName,
			ToolCallID: o.ToolCallID,
		})
	}

	return messages, obs, nil
}
