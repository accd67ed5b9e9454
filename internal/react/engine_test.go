package react

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/pocketomega/sunny-agent/internal/ambient"
	"github.com/pocketomega/sunny-agent/internal/llm"
	"github.com/pocketomega/sunny-agent/internal/todo"
	"github.com/pocketomega/sunny-agent/internal/tool"
)

// scriptedProvider replays a fixed sequence of Messages, one per
// CallLLMWithTools invocation, so tests can script exact ReAct transcripts
// without a real LLM. seen holds a copy of the message list of each
// CallLLMWithTools call.
type scriptedProvider struct {
	replies []llm.Message
	calls   int
	seen    [][]llm.Message
}

func (p *scriptedProvider) CallLLM(ctx context.Context, messages []llm.Message) (llm.Message, error) {
	return p.next()
}

func (p *scriptedProvider) CallLLMWithTools(ctx context.Context, messages []llm.Message, tools []llm.ToolDefinition) (llm.Message, error) {
	p.seen = append(p.seen, append([]llm.Message(nil), messages...))
	return p.next()
}

func (p *scriptedProvider) CallLLMStream(ctx context.Context, messages []llm.Message, cb llm.StreamCallback) (llm.Message, error) {
	return p.next()
}

func (p *scriptedProvider) GetName() string { return "scripted" }

func (p *scriptedProvider) next() (llm.Message, error) {
	if p.calls >= len(p.replies) {
		return llm.Message{Role: llm.RoleAssistant, Content: "out of script"}, nil
	}
	m := p.replies[p.calls]
	p.calls++
	return m, nil
}

// stubTool is a minimal tool.Tool for engine tests.
type stubTool struct {
	name   string
	result tool.Result
}

func (s *stubTool) Name() string                    { return s.name }
func (s *stubTool) Description() string             { return "stub" }
func (s *stubTool) InputSchema() json.RawMessage     { return tool.BuildSchema() }
func (s *stubTool) Tiers() []tool.Tier               { return []tool.Tier{tool.TierL3} }
func (s *stubTool) TimeoutMS() int                   { return 1000 }
func (s *stubTool) RiskLevel() tool.RiskLevel        { return tool.RiskRead }
func (s *stubTool) Init(ctx context.Context) error   { return nil }
func (s *stubTool) Close() error                     { return nil }
func (s *stubTool) Execute(ctx context.Context, args json.RawMessage) (tool.Result, error) {
	return s.result, nil
}

// registryStub is a minimal ToolSource backed by a static tool set, used in
// place of tool.Registry so engine tests don't need the full registry.
type registryStub struct {
	tools map[string]tool.Tool
}

func newRegistryStub(tools ...tool.Tool) *registryStub {
	m := make(map[string]tool.Tool, len(tools))
	for _, t := range tools {
		m[t.Name()] = t
	}
	return &registryStub{tools: m}
}

func (r *registryStub) Execute(ctx context.Context, name string, args []byte) (tool.Result, error) {
	t, ok := r.tools[name]
	if !ok {
		return tool.Error("unknown tool: " + name), nil
	}
	return t.Execute(ctx, args)
}

func (r *registryStub) SchemasFor(tier tool.Tier) []tool.Tool {
	var out []tool.Tool
	for _, t := range r.tools {
		out = append(out, t)
	}
	return out
}

func TestEngine_Execute_DoneOnFirstStep(t *testing.T) {
	provider := &scriptedProvider{replies: []llm.Message{
		{Role: llm.RoleAssistant, Content: "all done, no tools needed"},
	}}
	eng := NewEngine(provider, newRegistryStub(), nil)

	res, err := eng.Execute(context.Background(), DefaultL3Config(), newRegistryStub(), []llm.Message{
		{Role: llm.RoleSystem, Content: "sys"},
		{Role: llm.RoleUser, Content: "hi"},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.IsDegraded {
		t.Fatalf("expected non-degraded result, got degraded: %s", res.DegradeReason)
	}
	if res.Reply != "all done, no tools needed" {
		t.Errorf("unexpected reply: %q", res.Reply)
	}
	if res.Iterations != 1 {
		t.Errorf("expected 1 iteration, got %d", res.Iterations)
	}
}

func TestEngine_Execute_OneToolCallThenDone(t *testing.T) {
	weather := &stubTool{name: "get_weather", result: tool.Success(map[string]any{"temp": 72})}
	provider := &scriptedProvider{replies: []llm.Message{
		{Role: llm.RoleAssistant, Content: "checking weather", ToolCalls: []llm.ToolCall{
			{ID: "call1", Name: "get_weather", Arguments: json.RawMessage(`{}`)},
		}},
		{Role: llm.RoleAssistant, Content: "it's 72 degrees"},
	}}
	tools := newRegistryStub(weather)
	eng := NewEngine(provider, tools, nil)

	res, err := eng.Execute(context.Background(), DefaultL3Config(), tools, []llm.Message{
		{Role: llm.RoleSystem, Content: "sys"},
		{Role: llm.RoleUser, Content: "what's the weather"},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Reply != "it's 72 degrees" {
		t.Errorf("unexpected reply: %q", res.Reply)
	}
	if len(res.ToolCalls) != 1 || res.ToolCalls[0].ToolName != "get_weather" {
		t.Errorf("unexpected tool calls: %+v", res.ToolCalls)
	}
	if res.Iterations != 2 {
		t.Errorf("expected 2 iterations, got %d", res.Iterations)
	}
}

func TestEngine_Execute_DegradesOnMaxIterations(t *testing.T) {
	pingTool := &stubTool{name: "ping", result: tool.Success(map[string]any{"pong": true})}
	// Every reply requests a tool call, so the loop never finishes on its own.
	replies := make([]llm.Message, 0, 5)
	for i := 0; i < 5; i++ {
		replies = append(replies, llm.Message{Role: llm.RoleAssistant, Content: "pinging", ToolCalls: []llm.ToolCall{
			{ID: "c", Name: "ping", Arguments: json.RawMessage(`{}`)},
		}})
	}
	provider := &scriptedProvider{replies: replies}
	tools := newRegistryStub(pingTool)
	eng := NewEngine(provider, tools, nil)

	cfg := L3Config{MaxIterations: 2, MaxLLMCalls: 30, TimeoutSeconds: 120}
	res, err := eng.Execute(context.Background(), cfg, tools, []llm.Message{
		{Role: llm.RoleSystem, Content: "sys"},
		{Role: llm.RoleUser, Content: "go"},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !res.IsDegraded {
		t.Fatalf("expected degraded result")
	}
	if res.DegradeReason != "max_iterations" {
		t.Errorf("expected max_iterations reason, got %q", res.DegradeReason)
	}
	if !strings.Contains(res.Reply, "pong") {
		t.Errorf("expected degraded reply to fold in observation text, got %q", res.Reply)
	}
}

func TestEngine_Execute_DegradesOnBudget(t *testing.T) {
	replies := make([]llm.Message, 0, 5)
	for i := 0; i < 5; i++ {
		replies = append(replies, llm.Message{Role: llm.RoleAssistant, Content: "thinking", ToolCalls: []llm.ToolCall{
			{ID: "c", Name: "noop", Arguments: json.RawMessage(`{}`)},
		}})
	}
	provider := &scriptedProvider{replies: replies}
	tools := newRegistryStub(&stubTool{name: "noop", result: tool.Success(nil)})
	eng := NewEngine(provider, tools, nil)

	cfg := L3Config{MaxIterations: 15, MaxLLMCalls: 2, TimeoutSeconds: 120}
	res, err := eng.Execute(context.Background(), cfg, tools, []llm.Message{
		{Role: llm.RoleSystem, Content: "sys"},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !res.IsDegraded || res.DegradeReason != "budget" {
		t.Fatalf("expected budget degradation, got degraded=%v reason=%q", res.IsDegraded, res.DegradeReason)
	}
}

func TestEngine_Execute_PropagatesContextCancellation(t *testing.T) {
	provider := &scriptedProvider{replies: []llm.Message{
		{Role: llm.RoleAssistant, Content: "never reached"},
	}}
	tools := newRegistryStub()
	eng := NewEngine(provider, tools, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := eng.Execute(ctx, DefaultL3Config(), tools, []llm.Message{{Role: llm.RoleSystem, Content: "sys"}})
	if err == nil {
		t.Fatal("expected cancellation error, got nil")
	}
}

func TestInjectTodoSnapshot_IdempotentAndConditional(t *testing.T) {
	base := "you are an assistant"

	// No active items: leaves content untouched.
	got := injectTodoSnapshot(base, []todo.Item{{ID: "1", Status: "completed"}})
	if got != base {
		t.Errorf("expected no injection for all-completed items, got %q", got)
	}

	// One pending item: appends a block.
	withBlock := injectTodoSnapshot(base, []todo.Item{{ID: "1", Status: "pending"}})
	if !strings.Contains(withBlock, todoReminderStart) || !strings.Contains(withBlock, todoReminderEnd) {
		t.Fatalf("expected injected block, got %q", withBlock)
	}

	// Re-injecting replaces rather than duplicates the block.
	again := injectTodoSnapshot(withBlock, []todo.Item{{ID: "1", Status: "in_progress"}})
	if strings.Count(again, todoReminderStart) != 1 {
		t.Errorf("expected exactly one injected block after re-injection, got %q", again)
	}
	if !strings.Contains(again, "in_progress") {
		t.Errorf("expected refreshed snapshot content, got %q", again)
	}
}

func TestEngine_Execute_InjectsAndRefreshesTodoAcrossSteps(t *testing.T) {
	pingTool := &stubTool{name: "ping", result: tool.Success(map[string]any{"ok": true})}
	provider := &scriptedProvider{replies: []llm.Message{
		{Role: llm.RoleAssistant, Content: "step1", ToolCalls: []llm.ToolCall{
			{ID: "c1", Name: "ping", Arguments: json.RawMessage(`{}`)},
		}},
		{Role: llm.RoleAssistant, Content: "done"},
	}}
	tools := newRegistryStub(pingTool)
	store := todo.NewMemoryStore()
	defer store.Close()
	eng := NewEngine(provider, tools, store)

	ctx, _ := ambient.WithSessionID(context.Background(), "sess-1")
	store.Set(ctx, "sess-1", []todo.Item{{ID: "1", Content: "write tests", Status: "pending", Priority: "high"}})

	messages := []llm.Message{{Role: llm.RoleSystem, Content: "sys prompt"}, {Role: llm.RoleUser, Content: "go"}}
	_, err := eng.Execute(ctx, DefaultL3Config(), tools, messages)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	// Both steps must see the snapshot in the system message, exactly once.
	if len(provider.seen) != 2 {
		t.Fatalf("expected 2 LLM calls, got %d", len(provider.seen))
	}
	for i, msgs := range provider.seen {
		sys := msgs[0].Content
		if !strings.HasPrefix(sys, "sys prompt") || !strings.Contains(sys, "write tests") {
			t.Errorf("step %d: expected todo snapshot in system message, got %q", i, sys)
		}
		if strings.Count(sys, todoReminderStart) != 1 {
			t.Errorf("step %d: expected exactly one injected block, got %q", i, sys)
		}
	}
	if !strings.Contains(todo.Snapshot([]todo.Item{{ID: "1", Status: "pending"}}), "pending") {
		t.Fatal("sanity check on todo.Snapshot failed")
	}
}

func TestEngine_ExecuteRaw_SkipsTodoInjectionWhenSessionEmpty(t *testing.T) {
	provider := &scriptedProvider{replies: []llm.Message{
		{Role: llm.RoleAssistant, Content: "subagent reply"},
	}}
	tools := newRegistryStub()
	store := todo.NewMemoryStore()
	defer store.Close()
	eng := NewEngine(provider, tools, store)

	res, err := eng.ExecuteRaw(context.Background(), DefaultL3Config(), tools, []llm.Message{
		{Role: llm.RoleSystem, Content: "subagent system prompt"},
		{Role: llm.RoleUser, Content: "task"},
	})
	if err != nil {
		t.Fatalf("ExecuteRaw: %v", err)
	}
	if res.Reply != "subagent reply" {
		t.Errorf("unexpected reply: %q", res.Reply)
	}
	if len(provider.seen) != 1 || provider.seen[0][0].Content != "subagent system prompt" {
		t.Errorf("expected system prompt to reach the provider without a todo block, got %+v", provider.seen)
	}
}

func TestEngine_Execute_FinalStepForcesNilSchemas(t *testing.T) {
	// With MaxIterations=1, step 0 is both the first and last iteration, so
	// the thinker must receive nil tools and the model is expected to reply
	// without requesting any. The scripted reply has no tool calls either
	// way; this test mainly guards against a panic/index error in the
	// final-step calculation.
	provider := &scriptedProvider{replies: []llm.Message{
		{Role: llm.RoleAssistant, Content: "forced summary"},
	}}
	tools := newRegistryStub(&stubTool{name: "x", result: tool.Success(nil)})
	eng := NewEngine(provider, tools, nil)

	cfg := L3Config{MaxIterations: 1, MaxLLMCalls: 30, TimeoutSeconds: 120}
	res, err := eng.Execute(context.Background(), cfg, tools, []llm.Message{{Role: llm.RoleSystem, Content: "sys"}})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Reply != "forced summary" {
		t.Errorf("unexpected reply: %q", res.Reply)
	}
}

func TestDefaultL3Config_UsedWhenZeroValue(t *testing.T) {
	cfg := L3Config{}.applyDefaults()
	if cfg.MaxIterations != 15 || cfg.MaxLLMCalls != 30 || cfg.TimeoutSeconds != 120 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}
