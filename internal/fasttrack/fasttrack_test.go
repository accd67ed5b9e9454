package fasttrack

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/pocketomega/sunny-agent/internal/llm"
	"github.com/pocketomega/sunny-agent/internal/tool"
)

type scriptedProvider struct {
	replies []llm.Message
	calls   int
}

func (p *scriptedProvider) CallLLM(ctx context.Context, messages []llm.Message) (llm.Message, error) {
	return p.next()
}

func (p *scriptedProvider) CallLLMWithTools(ctx context.Context, messages []llm.Message, tools []llm.ToolDefinition) (llm.Message, error) {
	return p.next()
}

func (p *scriptedProvider) CallLLMStream(ctx context.Context, messages []llm.Message, cb llm.StreamCallback) (llm.Message, error) {
	m, err := p.next()
	if err == nil && m.Content != "" {
		cb(m.Content)
	}
	return m, err
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

type stubTool struct {
	name   string
	result tool.Result
}

func (s *stubTool) Name() string                  { return s.name }
func (s *stubTool) Description() string           { return "stub" }
func (s *stubTool) InputSchema() json.RawMessage   { return tool.BuildSchema() }
func (s *stubTool) Tiers() []tool.Tier             { return []tool.Tier{tool.TierL1} }
func (s *stubTool) TimeoutMS() int                 { return 1000 }
func (s *stubTool) RiskLevel() tool.RiskLevel      { return tool.RiskRead }
func (s *stubTool) Init(ctx context.Context) error { return nil }
func (s *stubTool) Close() error                   { return nil }
func (s *stubTool) Execute(ctx context.Context, args json.RawMessage) (tool.Result, error) {
	return s.result, nil
}

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

func TestEngine_Execute_NoToolsNeeded(t *testing.T) {
	provider := &scriptedProvider{replies: []llm.Message{{Role: llm.RoleAssistant, Content: "4"}}}
	tools := newRegistryStub()
	eng := NewEngine(provider, tools)

	res, err := eng.Execute(context.Background(), []llm.Message{
		{Role: llm.RoleSystem, Content: "sys"},
		{Role: llm.RoleUser, Content: "what is 2+2?"},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Reply != "4" || res.Source != "L1" || len(res.ToolCalls) != 0 {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestEngine_Execute_OneToolCallThenSummary(t *testing.T) {
	search := &stubTool{name: "web_search", result: tool.Success(map[string]any{"hits": 3})}
	provider := &scriptedProvider{replies: []llm.Message{
		{Role: llm.RoleAssistant, Content: "searching", ToolCalls: []llm.ToolCall{
			{ID: "c1", Name: "web_search", Arguments: json.RawMessage(`{"query":"X"}`)},
		}},
		{Role: llm.RoleAssistant, Content: "found 3 hits"},
	}}
	tools := newRegistryStub(search)
	eng := NewEngine(provider, tools)

	res, err := eng.Execute(context.Background(), []llm.Message{
		{Role: llm.RoleSystem, Content: "sys"},
		{Role: llm.RoleUser, Content: "search latest news on X"},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Reply != "found 3 hits" {
		t.Errorf("unexpected reply: %q", res.Reply)
	}
	if len(res.ToolCalls) != 1 || res.ToolCalls[0].ToolName != "web_search" {
		t.Errorf("unexpected tool calls: %+v", res.ToolCalls)
	}
	if res.ToolCalls[0].DurationMs < 0 {
		t.Errorf("expected non-negative duration")
	}
}

func TestEngine_Execute_ForcesSummaryOnFinalStep(t *testing.T) {
	ping := &stubTool{name: "ping", result: tool.Success(nil)}
	replies := make([]llm.Message, 0, MaxSteps)
	for i := 0; i < MaxSteps; i++ {
		replies = append(replies, llm.Message{Role: llm.RoleAssistant, Content: "still pinging", ToolCalls: []llm.ToolCall{
			{ID: "c", Name: "ping", Arguments: json.RawMessage(`{}`)},
		}})
	}
	// Final step uses CallLLM (no tools), scripted to return a plain reply.
	replies[len(replies)-1] = llm.Message{Role: llm.RoleAssistant, Content: "forced summary"}
	provider := &scriptedProvider{replies: replies}
	tools := newRegistryStub(ping)
	eng := NewEngine(provider, tools)

	res, err := eng.Execute(context.Background(), []llm.Message{{Role: llm.RoleSystem, Content: "sys"}})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Reply != "forced summary" {
		t.Errorf("expected forced summary reply, got %q", res.Reply)
	}
}

func TestEngine_Execute_PropagatesContextCancellation(t *testing.T) {
	provider := &scriptedProvider{replies: []llm.Message{{Role: llm.RoleAssistant, Content: "never reached"}}}
	tools := newRegistryStub()
	eng := NewEngine(provider, tools)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := eng.Execute(ctx, []llm.Message{{Role: llm.RoleSystem, Content: "sys"}})
	if err == nil {
		t.Fatal("expected cancellation error")
	}
}

func TestLoadMaxSteps_DefaultAndClamping(t *testing.T) {
	os.Unsetenv("FASTTRACK_MAX_STEPS")
	if n := loadMaxSteps(); n != 3 {
		t.Errorf("expected default 3, got %d", n)
	}

	os.Setenv("FASTTRACK_MAX_STEPS", "7")
	defer os.Unsetenv("FASTTRACK_MAX_STEPS")
	if n := loadMaxSteps(); n != 7 {
		t.Errorf("expected 7, got %d", n)
	}

	os.Setenv("FASTTRACK_MAX_STEPS", "99")
	if n := loadMaxSteps(); n != 3 {
		t.Errorf("expected clamp to default 3 for out-of-range, got %d", n)
	}

	os.Setenv("FASTTRACK_MAX_STEPS", "not-a-number")
	if n := loadMaxSteps(); n != 3 {
		t.Errorf("expected default 3 for invalid input, got %d", n)
	}
}
