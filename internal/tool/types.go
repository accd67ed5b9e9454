package tool

import (
	"context"
	"encoding/json"
	"fmt"
)

// Tier labels a tool as visible to the bounded L1 fast-track loop, the full
// L3 ReAct loop, or both. A tool's Tiers() return value is a subset of
// {TierL1, TierL3}.
type Tier string

const (
	TierL1 Tier = "L1"
	TierL3 Tier = "L3"
)

// RiskLevel classifies the blast radius of a tool call, for audit and future
// guardrail wiring; the core does not itself gate execution on risk level.
type RiskLevel string

const (
	RiskRead     RiskLevel = "read"
	RiskSuggest  RiskLevel = "suggest"
	RiskWrite    RiskLevel = "write"
	RiskCritical RiskLevel = "critical"
)

// Tool is the unified interface for all tools. Both native built-in tools
// and MCP tool adapters implement this interface.
type Tool interface {
	// Name returns the tool identifier (LLM uses this name to invoke the tool).
	Name() string

	// Description returns a natural-language description for LLM prompt injection.
	Description() string

	// InputSchema returns a standard JSON Schema defining the tool's parameters.
	// Compatible with MCP protocol and OpenAI Function Calling.
	InputSchema() json.RawMessage

	// Tiers reports which execution tiers this tool is visible in.
	Tiers() []Tier

	// TimeoutMS is the registry-enforced fail-safe timeout for this tool.
	// Per the nesting contract (SPEC_FULL §4.1), any internal I/O timeout
	// the tool implements itself must be strictly smaller than this value.
	TimeoutMS() int

	// RiskLevel classifies the tool for audit purposes.
	RiskLevel() RiskLevel

	// Execute runs the tool with JSON-encoded arguments and returns a
	// Result. Execute itself should only return a non-nil error for
	// conditions the caller must not swallow into a Result — in practice
	// that is limited to ctx cancellation; everything else becomes a
	// Result.Error.
	Execute(ctx context.Context, args json.RawMessage) (Result, error)

	// Init initializes tool resources (e.g. MCP client connections).
	// Native tools may return nil.
	Init(ctx context.Context) error

	// Close releases tool resources.
	Close() error
}

// Result is the tagged-sum ToolResult from SPEC_FULL §3: either a success
// carrying structured data, or an error carrying a reason string. It
// serializes to the canonical {"status":"success",...} /
// {"status":"error","error":...} JSON shape the LLM consumes.
type Result struct {
	ok     bool
	data   map[string]any
	reason string
}

// Success builds a successful Result. data may be nil.
func Success(data map[string]any) Result {
	if data == nil {
		data = map[string]any{}
	}
	return Result{ok: true, data: data}
}

// Error builds a failed Result carrying a human-readable reason.
func Error(reason string) Result {
	return Result{ok: false, reason: reason}
}

// Errorf builds a failed Result with a formatted reason.
func Errorf(format string, args ...any) Result {
	return Result{ok: false, reason: fmt.Sprintf(format, args...)}
}

// IsError reports whether this Result is the Error case.
func (r Result) IsError() bool { return !r.ok }

// Reason returns the error reason; empty for a successful Result.
func (r Result) Reason() string { return r.reason }

// Data returns the success payload; nil for an Error Result.
func (r Result) Data() map[string]any { return r.data }

// MarshalJSON renders the canonical LLM-facing shape.
func (r Result) MarshalJSON() ([]byte, error) {
	if r.ok {
		out := map[string]any{"status": "success"}
		for k, v := range r.data {
			out[k] = v
		}
		return json.Marshal(out)
	}
	return json.Marshal(map[string]any{"status": "error", "error": r.reason})
}

// JSON renders the canonical JSON string form, swallowing the (impossible)
// marshal error since Result's fields are always JSON-safe.
func (r Result) JSON() string {
	b, _ := json.Marshal(r)
	return string(b)
}

// SchemaParam describes a single parameter for the SchemaBuilder helper.
type SchemaParam struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"` // "string", "integer", "boolean", "number", "object", "array"
	Description string   `json:"description"`
	Required    bool     `json:"-"`
	Enum        []string `json:"enum,omitempty"`
}

// BuildSchema generates a standard JSON Schema object from a list of SchemaParams.
// This helper lets native tools avoid hand-writing JSON strings.
func BuildSchema(params ...SchemaParam) json.RawMessage {
	properties := make(map[string]any)
	var required []string

	for _, p := range params {
		prop := map[string]any{
			"type":        p.Type,
			"description": p.Description,
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}

	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}

	data, _ := json.Marshal(schema)
	return data
}
