// Package ambient carries the two scoped values the execution core reads
// at every layer without threading them through every function signature:
// the current session id (for Todo reads/writes) and the current sub-agent
// nesting depth (for subagent_call's anti-recursion guard).
//
// Both are modeled on Go's native context.Context value propagation rather
// than a literal port of contextvars.ContextVar+Token: a context.Context
// node is immutable and scoped to the subtree rooted at it, which already
// gives the "child sees parent's value, child's Set is invisible to
// parent" semantics the original needs. Reset is simply continuing to use
// the pre-call context.Context after a nested call returns — there is
// nothing to unwind. The pre-call context.Context value is still handed
// back from each Set call, purely so call sites have an explicit,
// grep-able restore point.
package ambient

import "context"

type sessionIDKey struct{}
type agentDepthKey struct{}

// SessionID returns the ambient session id, or "" if none has been set.
// An empty session id disables Todo reads/writes for the current subtree
// (a sub-agent must never mutate its parent's Todo list).
func SessionID(ctx context.Context) string {
	if v, ok := ctx.Value(sessionIDKey{}).(string); ok {
		return v
	}
	return ""
}

// WithSessionID returns a derived context carrying sessionID, plus the
// pre-call context as a restore token. Callers that want to shadow the
// session id for a nested call (e.g. subagent_call clearing it) do:
//
//	child, token := ambient.WithSessionID(ctx, "")
//	result := doWork(child)
//	_ = token // the parent's ctx, unchanged, is still in scope after return
func WithSessionID(ctx context.Context, sessionID string) (child context.Context, token context.Context) {
	return context.WithValue(ctx, sessionIDKey{}, sessionID), ctx
}

// AgentDepth returns the ambient sub-agent nesting depth, 0 at the root.
func AgentDepth(ctx context.Context) int {
	if v, ok := ctx.Value(agentDepthKey{}).(int); ok {
		return v
	}
	return 0
}

// WithAgentDepth returns a derived context carrying depth, plus the
// pre-call context as a restore token.
func WithAgentDepth(ctx context.Context, depth int) (child context.Context, token context.Context) {
	return context.WithValue(ctx, agentDepthKey{}, depth), ctx
}
