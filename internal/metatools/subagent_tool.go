package metatools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pocketomega/sunny-agent/internal/ambient"
	"github.com/pocketomega/sunny-agent/internal/llm"
	"github.com/pocketomega/sunny-agent/internal/react"
	"github.com/pocketomega/sunny-agent/internal/subagent"
	"github.com/pocketomega/sunny-agent/internal/tool"
)

// subAgentHTTPTimeout is the HTTP client's overall ceiling for a http-type
// subagent_call. The agent's own timeout_ms additionally bounds each request
// through its context, so the shorter of the two applies.
const subAgentHTTPTimeout = 60 * time.Second

// SubAgentCallTool dispatches one task to a named sub-agent, enforcing the
// anti-recursion depth guard before touching any dispatch path.
type SubAgentCallTool struct {
	registry     *subagent.Registry
	toolRegistry *tool.Registry
	provider     llm.Provider
	httpClient   *http.Client
}

// NewSubAgentCallTool creates a SubAgentCallTool. toolRegistry is the
// shared top-level registry local_react agents get a RestrictedToolView
// over; provider drives their ReAct engine.
func NewSubAgentCallTool(registry *subagent.Registry, toolRegistry *tool.Registry, provider llm.Provider) *SubAgentCallTool {
	return &SubAgentCallTool{
		registry:     registry,
		toolRegistry: toolRegistry,
		provider:     provider,
		httpClient:   &http.Client{Timeout: subAgentHTTPTimeout},
	}
}

func (t *SubAgentCallTool) Name() string { return "subagent_call" }

func (t *SubAgentCallTool) Description() string {
	names := t.registry.Names()
	if len(names) == 0 {
		return "将一个任务委派给子智能体执行（当前没有可用子智能体）。"
	}
	return fmt.Sprintf("将一个任务委派给指定子智能体执行，子智能体在受限的工具集和独立预算下运行。可用子智能体：%s。", strings.Join(names, ", "))
}

func (t *SubAgentCallTool) InputSchema() json.RawMessage {
	return tool.BuildSchema(
		tool.SchemaParam{Name: "agent_name", Type: "string", Description: "子智能体名称", Required: true, Enum: t.registry.Names()},
		tool.SchemaParam{Name: "task", Type: "string", Description: "交给子智能体执行的任务描述", Required: true},
	)
}

func (t *SubAgentCallTool) Tiers() []tool.Tier           { return []tool.Tier{tool.TierL3} }
func (t *SubAgentCallTool) TimeoutMS() int               { return 180000 }
func (t *SubAgentCallTool) RiskLevel() tool.RiskLevel    { return tool.RiskWrite }
func (t *SubAgentCallTool) Init(_ context.Context) error { return nil }
func (t *SubAgentCallTool) Close() error                 { return nil }

type subAgentCallArgs struct {
	AgentName string `json:"agent_name"`
	Task      string `json:"task"`
}

// Execute implements the exact pipeline: lookup, depth guard (before any
// dispatch), ambient push (depth+1, session_id=""), then dispatch on type.
// The ambient push is scoped to childCtx alone — ctx, still held by the
// caller, is never mutated, so there is nothing to explicitly unwind on
// return (see ambient's doc comment on context.Context-based reset).
func (t *SubAgentCallTool) Execute(ctx context.Context, args json.RawMessage) (tool.Result, error) {
	var a subAgentCallArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return tool.Errorf("参数解析失败: %v", err), nil
	}

	def, ok := t.registry.Get(a.AgentName)
	if !ok {
		return tool.Errorf("未知子智能体: %s", a.AgentName), nil
	}

	depth := ambient.AgentDepth(ctx)
	if depth >= def.MaxDepth {
		return tool.Error("depth exceeded"), nil
	}

	childCtx, _ := ambient.WithAgentDepth(ctx, depth+1)
	childCtx, _ = ambient.WithSessionID(childCtx, "")

	switch def.Type {
	case subagent.TypeLocalReact:
		return t.dispatchLocalReact(childCtx, def, a.Task)
	case subagent.TypeLocalCode:
		return t.dispatchLocalCode(childCtx, def, a.Task)
	case subagent.TypeHTTP:
		return t.dispatchHTTP(childCtx, def, a.Task)
	default:
		return tool.Errorf("子智能体 %s 的类型无效: %s", def.Name, def.Type), nil
	}
}

// dispatchLocalReact builds a RestrictedToolView scoped to the agent's
// tool_filter (nil filter means the full registry), a private L3Config
// derived from the agent's own budget fields, and runs the shared ReAct
// engine's ExecuteRaw against a fresh [system, user] message pair — never
// the parent's conversation history.
func (t *SubAgentCallTool) dispatchLocalReact(ctx context.Context, def *subagent.Definition, task string) (tool.Result, error) {
	var tools react.ToolSource = t.toolRegistry
	if def.ToolFilter != nil {
		tools = tool.NewRestrictedToolView(t.toolRegistry, def.ToolFilter)
	}

	cfg := react.L3Config{
		MaxIterations:  def.MaxIterations,
		MaxLLMCalls:    def.MaxIterations * 2, // grounded on subagent_call.py's budget derivation
		TimeoutSeconds: def.TimeoutMS / 1000,
	}

	engine := react.NewEngine(t.provider, tools, nil) // sub-agents never touch the parent's Todo store
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: def.EffectiveSystemPrompt()},
		{Role: llm.RoleUser, Content: task},
	}

	result, err := engine.ExecuteRaw(ctx, cfg, tools, messages)
	if err != nil {
		return tool.Errorf("子智能体执行失败: %v", err), nil
	}

	return tool.Success(map[string]any{
		"agent":       def.Name,
		"report":      result.Reply,
		"iterations":  result.Iterations,
		"tokens_used": result.TokensUsed,
		"is_degraded": result.IsDegraded,
	}), nil
}

// dispatchLocalCode resolves def.Entry against the process-wide static
// registry (Go has no dynamic-import equivalent of importlib) and runs it.
func (t *SubAgentCallTool) dispatchLocalCode(ctx context.Context, def *subagent.Definition, task string) (tool.Result, error) {
	executor, err := subagent.LookupLocalCodeExecutor(def.Entry)
	if err != nil {
		return tool.Errorf("%v", err), nil
	}
	report, err := executor.Execute(ctx, task)
	if err != nil {
		return tool.Errorf("子智能体执行失败: %v", err), nil
	}
	return tool.Success(map[string]any{"agent": def.Name, "report": report}), nil
}

// dispatchHTTP POSTs {"task": task} to def.Endpoint and parses a "reply" or
// "result" field from the JSON response.
func (t *SubAgentCallTool) dispatchHTTP(ctx context.Context, def *subagent.Definition, task string) (tool.Result, error) {
	body, err := json.Marshal(map[string]string{"task": task})
	if err != nil {
		return tool.Errorf("构造请求失败: %v", err), nil
	}

	if def.TimeoutMS > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(def.TimeoutMS)*time.Millisecond)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, def.Endpoint, bytes.NewReader(body))
	if err != nil {
		return tool.Errorf("构造请求失败: %v", err), nil
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return tool.Error("子智能体调用超时"), nil
		}
		return tool.Errorf("子智能体连接失败: %v", err), nil
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return tool.Errorf("读取子智能体响应失败: %v", err), nil
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return tool.Errorf("子智能体返回非 2xx 状态: %d", resp.StatusCode), nil
	}

	var parsed struct {
		Reply  string `json:"reply"`
		Result string `json:"result"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return tool.Errorf("子智能体响应非 JSON: %v", err), nil
	}

	report := parsed.Reply
	if report == "" {
		report = parsed.Result
	}
	return tool.Success(map[string]any{"agent": def.Name, "report": report}), nil
}
