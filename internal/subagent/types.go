package subagent

// Type selects how subagent_call dispatches an invocation.
type Type string

const (
	// TypeLocalReact runs the shared ReAct engine against a restricted tool
	// view and the agent's own system prompt. Named local_react rather than
	// the reference implementation's local_l3, since this codebase calls
	// its ReAct engine by that name throughout, not "L3".
	TypeLocalReact Type = "local_react"
	// TypeLocalCode dispatches to a statically registered LocalCodeExecutor.
	TypeLocalCode Type = "local_code"
	// TypeHTTP posts the task to an external endpoint.
	TypeHTTP Type = "http"
)

const (
	defaultMaxIterations = 10
	defaultTimeoutMS     = 60_000
	defaultMaxDepth      = 3
)

// Definition is the parsed content of one agent.md: YAML frontmatter plus a
// Markdown body. For local_react agents the body is appended to
// system_prompt as supplementary instructions; other types ignore it.
type Definition struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Type        Type   `yaml:"type"`

	// local_react fields.
	SystemPrompt string   `yaml:"system_prompt"`
	ToolFilter   []string `yaml:"tools"`

	// local_code fields.
	Entry string `yaml:"entry"`

	// http fields.
	Endpoint string `yaml:"endpoint"`

	MaxIterations int `yaml:"max_iterations"`
	TimeoutMS     int `yaml:"timeout_ms"`
	MaxDepth      int `yaml:"max_depth"`

	Body string `yaml:"-"`
	Dir  string `yaml:"-"`
}

// applyDefaults fills zero-valued budget fields with conservative defaults
// so an agent.md author need only specify what they care to constrain.
func (d *Definition) applyDefaults() {
	if d.MaxIterations <= 0 {
		d.MaxIterations = defaultMaxIterations
	}
	if d.TimeoutMS <= 0 {
		d.TimeoutMS = defaultTimeoutMS
	}
	if d.MaxDepth <= 0 {
		d.MaxDepth = defaultMaxDepth
	}
}

// EffectiveSystemPrompt returns SystemPrompt with Body appended, so authors
// can keep the frontmatter terse and put longer instructions in the body.
func (d *Definition) EffectiveSystemPrompt() string {
	if d.Body == "" {
		return d.SystemPrompt
	}
	if d.SystemPrompt == "" {
		return d.Body
	}
	return d.SystemPrompt + "\n\n" + d.Body
}
