// Package react implements the L3 Deep ReAct execution tier: a
// Think -> Act -> Observe loop bounded by iteration count, LLM-call count,
// and wall-clock timeout, with a reasoning trace kept for audit and for
// synthesizing a degraded reply when a budget is exhausted.
package react

import (
	"encoding/json"

	"github.com/pocketomega/sunny-agent/internal/llm"
	"github.com/pocketomega/sunny-agent/internal/tool"
)

// ToolCallRequest is one tool invocation the LLM asked for in a single
// think step. Several of these can appear in one ThinkResult and are
// executed concurrently by Actor.
type ToolCallRequest struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// ThinkResult is Thinker.Think's output: the model's reply for this step,
// plus any tool calls it requested. IsDone is true iff ToolCalls is empty —
// a step with no tool calls is the loop's terminal condition.
type ThinkResult struct {
	Thought   string
	ToolCalls []ToolCallRequest
	Usage     llm.Usage
	IsDone    bool
}

// Observation is the recorded outcome of running one ToolCallRequest:
// Actor produces these, in the same order as the originating ToolCalls.
type Observation struct {
	ToolCallID string
	ToolName   string
	Result     tool.Result
	DurationMs int64
}

// ToolCallRecord projects one action/observation pair into the shape
// ExecutionResult.tool_calls exposes to callers outside the engine.
type ToolCallRecord struct {
	ToolName   string `json:"tool_name"`
	Arguments  string `json:"arguments"`
	Result     string `json:"result"`
	IsError    bool   `json:"is_error"`
	DurationMs int64  `json:"duration_ms"`
}

// ReasoningStep is one iteration's full record: the thought, the tool
// calls it requested, and their observations.
type ReasoningStep struct {
	Step         int
	Thought      string
	ToolCalls    []ToolCallRequest
	Observations []Observation
	TokensUsed   int
	DurationMs   int64
}

// ReasoningTrace is the ordered sequence of steps for one execution, used
// both for audit export and for synthesizing a degraded reply without any
// further LLM call.
type ReasoningTrace struct {
	Steps []ReasoningStep
}

// ToToolCallRecords flattens every observation across all steps into the
// ExecutionResult-facing record shape, in step order.
func (t *ReasoningTrace) ToToolCallRecords() []ToolCallRecord {
	var out []ToolCallRecord
	for _, step := range t.Steps {
		for _, obs := range step.Observations {
			argsJSON := "{}"
			for _, tc := range step.ToolCalls {
				if tc.ID == obs.ToolCallID {
					argsJSON = string(tc.Arguments)
					break
				}
			}
			out = append(out, ToolCallRecord{
				ToolName:   obs.ToolName,
				Arguments:  argsJSON,
				Result:     obs.Result.JSON(),
				IsError:    obs.Result.IsError(),
				DurationMs: obs.DurationMs,
			})
		}
	}
	return out
}

// TruncatedObservations returns every observation's result JSON across the
// trace, each capped at maxLen runes, for degraded-reply synthesis — built
// without any additional LLM call per the degradation design.
func (t *ReasoningTrace) TruncatedObservations(maxLen int) []string {
	var out []string
	for _, step := range t.Steps {
		for _, obs := range step.Observations {
			s := obs.Result.JSON()
			if runes := []rune(s); len(runes) > maxLen {
				s = string(runes[:maxLen])
			}
			out = append(out, s)
		}
	}
	return out
}

// L3Config bounds one ReAct execution.
type L3Config struct {
	MaxIterations  int
	MaxLLMCalls    int
	TimeoutSeconds int
}

// DefaultL3Config returns the engine's out-of-the-box budget, used when a
// caller (e.g. subagent_call for an agent.md with no explicit limits)
// supplies a zero-value L3Config.
func DefaultL3Config() L3Config {
	return L3Config{MaxIterations: 15, MaxLLMCalls: 30, TimeoutSeconds: 120}
}

// applyDefaults fills zero fields, so a partially specified L3Config (e.g.
// subagent_call only setting MaxIterations from agent.max_iterations) still
// has sane bounds for the rest.
func (c L3Config) applyDefaults() L3Config {
	d := DefaultL3Config()
	if c.MaxIterations <= 0 {
		c.MaxIterations = d.MaxIterations
	}
	if c.MaxLLMCalls <= 0 {
		c.MaxLLMCalls = d.MaxLLMCalls
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = d.TimeoutSeconds
	}
	return c
}

// ExecutionResult is the engine's outward-facing return value.
type ExecutionResult struct {
	Reply          string
	ToolCalls      []ToolCallRecord
	Source         string
	DurationMs     int64
	ReasoningTrace *ReasoningTrace
	Iterations     int
	TokensUsed     int
	IsDegraded     bool
	DegradeReason  string
}
