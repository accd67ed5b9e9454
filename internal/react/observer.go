package react

import "time"

// Observer owns the reasoning trace's budget bookkeeping: elapsed timer and
// LLM-call counter. It does not track tokens — budget enforcement in this
// codebase is by LLM-call count, matching llm.Usage's doc comment on why
// token accounting is record-only here. Max-iterations is enforced by the
// engine's own loop structure, not here.
type Observer struct {
	cfg          L3Config
	startedAt    time.Time
	llmCallCount int
}

// NewObserver creates an Observer for one execution, starting its timeout
// clock immediately.
func NewObserver(cfg L3Config) *Observer {
	return &Observer{cfg: cfg.applyDefaults(), startedAt: time.Now()}
}

// RecordLLMCall increments the LLM-call counter.
func (o *Observer) RecordLLMCall() { o.llmCallCount++ }

// LLMCallCount returns the number of LLM calls recorded so far.
func (o *Observer) LLMCallCount() int { return o.llmCallCount }

// ShouldStop evaluates, in order: elapsed time against TimeoutSeconds
// ("timeout"), then LLM-call count against MaxLLMCalls ("budget").
func (o *Observer) ShouldStop() (bool, string) {
	if o.cfg.TimeoutSeconds > 0 && time.Since(o.startedAt) >= time.Duration(o.cfg.TimeoutSeconds)*time.Second {
		return true, "timeout"
	}
	if o.llmCallCount >= o.cfg.MaxLLMCalls {
		return true, "budget"
	}
	return false, ""
}
