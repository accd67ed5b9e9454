// Package metatools implements the fixed, small catalog of LLM-visible
// tools that front larger subsystems: a fixed set of five tools
// (skill_call, skill_exec, subagent_call, todo_write, todo_read). The skill
// and sub-agent tools recompute their description and name enum at
// schema-emission time from the live registry. This keeps the LLM's tool-context size O(1) in the
// number of skills/sub-agents, instead of registering one tool per item.
package metatools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pocketomega/sunny-agent/internal/skill"
	"github.com/pocketomega/sunny-agent/internal/tool"
)

// SkillCallTool loads a skill's instructions into the conversation. The LLM
// continues its own ReAct loop against the returned instructions — there is
// no separate interpreter; this is a prompt-driven workflow, not a
// sub-execution.
type SkillCallTool struct {
	registry *skill.Registry
}

// NewSkillCallTool creates a SkillCallTool bound to registry.
func NewSkillCallTool(registry *skill.Registry) *SkillCallTool {
	return &SkillCallTool{registry: registry}
}

func (t *SkillCallTool) Name() string { return "skill_call" }

func (t *SkillCallTool) Description() string {
	names := t.registry.Names()
	if len(names) == 0 {
		return "加载一个技能的使用说明（当前没有可用技能）。"
	}
	return fmt.Sprintf("加载指定技能的使用说明，可用技能：%s。", strings.Join(names, ", "))
}

func (t *SkillCallTool) InputSchema() json.RawMessage {
	return tool.BuildSchema(
		tool.SchemaParam{Name: "skill_name", Type: "string", Description: "要加载的技能名称", Required: true, Enum: t.registry.Names()},
	)
}

func (t *SkillCallTool) Tiers() []tool.Tier        { return []tool.Tier{tool.TierL3} }
func (t *SkillCallTool) TimeoutMS() int            { return 5000 }
func (t *SkillCallTool) RiskLevel() tool.RiskLevel { return tool.RiskRead }
func (t *SkillCallTool) Init(_ context.Context) error  { return nil }
func (t *SkillCallTool) Close() error              { return nil }

type skillCallArgs struct {
	SkillName string `json:"skill_name"`
}

func (t *SkillCallTool) Execute(_ context.Context, args json.RawMessage) (tool.Result, error) {
	var a skillCallArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return tool.Errorf("参数解析失败: %v", err), nil
	}
	rendered, err := t.registry.Render(a.SkillName)
	if err != nil {
		return tool.Errorf("未知技能: %s", a.SkillName), nil
	}
	return tool.Success(map[string]any{"instructions": rendered}), nil
}

// SkillExecTool runs one of a skill's declared scripts in a subprocess.
type SkillExecTool struct {
	registry *skill.Registry
}

// NewSkillExecTool creates a SkillExecTool bound to registry.
func NewSkillExecTool(registry *skill.Registry) *SkillExecTool {
	return &SkillExecTool{registry: registry}
}

func (t *SkillExecTool) Name() string { return "skill_exec" }

func (t *SkillExecTool) Description() string {
	names := t.registry.Names()
	if len(names) == 0 {
		return "执行某个技能声明的脚本（当前没有可用技能）。"
	}
	return fmt.Sprintf("执行指定技能的脚本，技能需先通过 skill_call 了解其声明的脚本名。可用技能：%s。", strings.Join(names, ", "))
}

func (t *SkillExecTool) InputSchema() json.RawMessage {
	return tool.BuildSchema(
		tool.SchemaParam{Name: "skill_name", Type: "string", Description: "技能名称", Required: true, Enum: t.registry.Names()},
		tool.SchemaParam{Name: "script", Type: "string", Description: "技能内声明的脚本名称", Required: true},
		tool.SchemaParam{Name: "args", Type: "object", Description: "传给脚本的参数，作为 JSON 经 stdin 传入", Required: false},
	)
}

func (t *SkillExecTool) Tiers() []tool.Tier        { return []tool.Tier{tool.TierL3} }
func (t *SkillExecTool) TimeoutMS() int            { return 60000 }
func (t *SkillExecTool) RiskLevel() tool.RiskLevel { return tool.RiskWrite }
func (t *SkillExecTool) Init(_ context.Context) error  { return nil }
func (t *SkillExecTool) Close() error              { return nil }

type skillExecArgs struct {
	SkillName string         `json:"skill_name"`
	Script    string         `json:"script"`
	Args      map[string]any `json:"args"`
}

func (t *SkillExecTool) Execute(ctx context.Context, args json.RawMessage) (tool.Result, error) {
	var a skillExecArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return tool.Errorf("参数解析失败: %v", err), nil
	}
	def, ok := t.registry.Get(a.SkillName)
	if !ok {
		return tool.Errorf("未知技能: %s", a.SkillName), nil
	}
	out, err := skill.RunScript(ctx, def, a.Script, a.Args)
	if err != nil {
		return tool.Errorf("脚本执行失败: %v", err), nil
	}
	return tool.Success(map[string]any{"output": out}), nil
}
