// Package intent defines the boundary type the execution core consumes
// from an upstream intent classifier. The classifier itself is out of
// scope here — the core only needs a typed result to route on.
package intent

// Route selects which execution tier handles a request.
type Route string

const (
	RouteStandard Route = "standard"
	RouteDeep     Route = "deep"
)

// HistoryMessage is one turn of prior conversation handed to the core
// alongside a new request. Roles are restricted to user/assistant —
// the core assembles its own system message and never trusts an
// upstream-supplied one.
type HistoryMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Result is the upstream classification the router dispatches on. Any
// Route value other than the ones declared above is treated as
// RouteStandard by the router — an unrecognized route degrades to the
// cheaper tier rather than failing the request.
type Result struct {
	Route      Route  `json:"route"`
	Complexity string `json:"complexity,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Primary    string `json:"primary"`
	SubIntent  string `json:"sub_intent,omitempty"`
	UserGoal   string `json:"user_goal,omitempty"`
	RawInput   string `json:"raw_input"`
	SessionID  string `json:"session_id"`

	// HistoryMessages is the bounded ordered turn history preceding
	// RawInput. The router prepends these (after its own system
	// message, before the new user turn) when assembling L1/L3
	// message lists — it never re-derives history itself.
	HistoryMessages []HistoryMessage `json:"history_messages,omitempty"`
}

// NormalizedRoute returns r.Route if it is a recognized value, otherwise
// RouteStandard.
func (r Result) NormalizedRoute() Route {
	switch r.Route {
	case RouteStandard, RouteDeep:
		return r.Route
	default:
		return RouteStandard
	}
}
