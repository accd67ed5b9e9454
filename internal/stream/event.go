// Package stream defines the normalized event shape the execution engines
// emit during a streaming run, and an in-process channel-based emitter.
// Framing these events onto SSE for HTTP clients is the transport layer's
// job (internal/web); this package only defines what an event is.
package stream

// Type discriminates the kind of event carried by an Event.
type Type string

const (
	TypeStatus     Type = "status"
	TypeThought    Type = "thought"
	TypeToolCall   Type = "tool_call"
	TypeToolResult Type = "tool_result"
	TypeDelta      Type = "delta"
	TypeClarify    Type = "clarify"
	TypeFinish     Type = "finish"
	TypeError      Type = "error"
)

// Event is one frame of a streaming execution. Payload fields are grouped
// by which Type populates them; a consumer switches on Type and reads the
// matching fields.
type Event struct {
	Type Type `json:"type"`

	// status
	Phase string `json:"phase,omitempty"`

	// thought (L3 only)
	Step    int    `json:"step,omitempty"`
	Content string `json:"content,omitempty"`

	// tool_call / tool_result
	ToolName string `json:"name,omitempty"`
	ToolArgs any    `json:"args,omitempty"`
	Result   any    `json:"result,omitempty"`

	// delta
	Text string `json:"text,omitempty"`

	// clarify
	Question  string `json:"question,omitempty"`
	SessionID string `json:"session_id,omitempty"`

	// finish
	Iterations    int    `json:"iterations,omitempty"`
	TokensUsed    int    `json:"tokens_used,omitempty"`
	IsDegraded    bool   `json:"is_degraded,omitempty"`
	DegradeReason string `json:"degrade_reason,omitempty"`

	// error
	Message string `json:"message,omitempty"`
}

// Status builds a status event.
func Status(phase string) Event { return Event{Type: TypeStatus, Phase: phase} }

// Thought builds an L3 thought event.
func Thought(step int, content string) Event {
	return Event{Type: TypeThought, Step: step, Content: content}
}

// ToolCall builds a tool_call event. step is 0 when not applicable to the
// emitting engine (L1 does not number steps).
func ToolCall(step int, name string, args any) Event {
	return Event{Type: TypeToolCall, Step: step, ToolName: name, ToolArgs: args}
}

// ToolResult builds a tool_result event.
func ToolResult(step int, name string, result any) Event {
	return Event{Type: TypeToolResult, Step: step, ToolName: name, Result: result}
}

// Delta builds a token-level reply-text event.
func Delta(text string) Event { return Event{Type: TypeDelta, Text: text} }

// Clarify builds a clarifying-question event.
func Clarify(question, sessionID string) Event {
	return Event{Type: TypeClarify, Question: question, SessionID: sessionID}
}

// Finish builds the terminal event of a successful (possibly degraded) run.
func Finish(iterations, tokensUsed int, isDegraded bool, degradeReason string) Event {
	return Event{
		Type: TypeFinish, Iterations: iterations, TokensUsed: tokensUsed,
		IsDegraded: isDegraded, DegradeReason: degradeReason,
	}
}

// Error builds a terminal error event.
func Error(message string) Event { return Event{Type: TypeError, Message: message} }

// Emitter is implemented by callers of a streaming engine to receive
// events as they are produced. A nil Emitter is never passed to engine
// code — callers that don't want streaming use the non-streaming Execute
// entry point instead.
type Emitter interface {
	Emit(Event)
}

// ChannelEmitter adapts a buffered channel to the Emitter interface, which
// is how internal/web bridges engine output to its SSE writer goroutine.
type ChannelEmitter chan Event

// Emit sends ev on the channel. If the channel's buffer is full and no
// reader is draining it, Emit blocks — callers are expected to size the
// buffer for their consumer's pace or drain concurrently.
func (c ChannelEmitter) Emit(ev Event) { c <- ev }
