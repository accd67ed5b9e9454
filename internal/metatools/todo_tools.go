package metatools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/pocketomega/sunny-agent/internal/ambient"
	"github.com/pocketomega/sunny-agent/internal/todo"
	"github.com/pocketomega/sunny-agent/internal/tool"
)

// TodoWriteTool overwrites the current session's task list. The engine
// re-injects the resulting snapshot into the system prompt on every
// subsequent step, so the model never needs to re-ask for its own plan.
type TodoWriteTool struct {
	store todo.Store
}

// NewTodoWriteTool creates a TodoWriteTool bound to store.
func NewTodoWriteTool(store todo.Store) *TodoWriteTool {
	return &TodoWriteTool{store: store}
}

func (t *TodoWriteTool) Name() string { return "todo_write" }
func (t *TodoWriteTool) Description() string {
	return "覆盖写入当前会话的任务清单（待办/进行中/已完成），用于管理多步骤任务的执行计划。"
}

func (t *TodoWriteTool) InputSchema() json.RawMessage {
	return tool.BuildSchema(
		tool.SchemaParam{Name: "todos", Type: "array", Description: "任务项数组，每项包含 id、content、status（pending/in_progress/completed）、priority（low/medium/high）", Required: true},
	)
}

func (t *TodoWriteTool) Tiers() []tool.Tier        { return []tool.Tier{tool.TierL3} }
func (t *TodoWriteTool) TimeoutMS() int            { return 3000 }
func (t *TodoWriteTool) RiskLevel() tool.RiskLevel { return tool.RiskWrite }
func (t *TodoWriteTool) Init(_ context.Context) error { return nil }
func (t *TodoWriteTool) Close() error                 { return nil }

// rawItem accepts a looser shape than todo.Item: id may arrive as a JSON
// number or a string (a common LLM inconsistency) and is coerced to string
// before normalization.
type rawItem struct {
	ID       any    `json:"id"`
	Content  string `json:"content"`
	Status   string `json:"status"`
	Priority string `json:"priority"`
}

type todoWriteArgs struct {
	Todos []rawItem `json:"todos"`
}

// idToString coerces a decoded "id" value (string, json.Number, or bare
// float64 when UseNumber isn't in play) to its string form.
func idToString(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case json.Number:
		return id.String()
	case float64:
		return json.Number(fmt.Sprintf("%v", id)).String()
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", id)
	}
}

func (t *TodoWriteTool) Execute(ctx context.Context, args json.RawMessage) (tool.Result, error) {
	dec := json.NewDecoder(bytes.NewReader(args))
	dec.UseNumber()
	var a todoWriteArgs
	if err := dec.Decode(&a); err != nil {
		return tool.Errorf("参数解析失败: %v", err), nil
	}

	items := make([]todo.Item, len(a.Todos))
	for i, r := range a.Todos {
		items[i] = todo.Item{
			ID:       idToString(r.ID),
			Content:  r.Content,
			Status:   r.Status,
			Priority: r.Priority,
		}.Normalize()
	}

	sessionID := ambient.SessionID(ctx)
	if err := t.store.Set(ctx, sessionID, items); err != nil {
		return tool.Errorf("写入任务清单失败: %v", err), nil
	}

	inProgress := 0
	for _, it := range items {
		if it.Status == "in_progress" {
			inProgress++
		}
	}

	return tool.Success(map[string]any{
		"snapshot": todo.Snapshot(items),
		"title":    fmt.Sprintf("%d in-progress", inProgress),
	}), nil
}

// TodoReadTool reads back the current session's task list with a counts
// summary, for a model that wants to check its own plan's state rather
// than relying solely on the system-prompt injection.
type TodoReadTool struct {
	store todo.Store
}

// NewTodoReadTool creates a TodoReadTool bound to store.
func NewTodoReadTool(store todo.Store) *TodoReadTool {
	return &TodoReadTool{store: store}
}

func (t *TodoReadTool) Name() string        { return "todo_read" }
func (t *TodoReadTool) Description() string { return "读取当前会话的任务清单及各状态计数。" }

func (t *TodoReadTool) InputSchema() json.RawMessage { return tool.BuildSchema() }
func (t *TodoReadTool) Tiers() []tool.Tier           { return []tool.Tier{tool.TierL3} }
func (t *TodoReadTool) TimeoutMS() int               { return 3000 }
func (t *TodoReadTool) RiskLevel() tool.RiskLevel    { return tool.RiskRead }
func (t *TodoReadTool) Init(_ context.Context) error { return nil }
func (t *TodoReadTool) Close() error                 { return nil }

func (t *TodoReadTool) Execute(ctx context.Context, _ json.RawMessage) (tool.Result, error) {
	sessionID := ambient.SessionID(ctx)
	items, err := t.store.Get(ctx, sessionID)
	if err != nil {
		return tool.Errorf("读取任务清单失败: %v", err), nil
	}

	var pending, inProgress, completed int
	for _, it := range items {
		switch it.Status {
		case "pending":
			pending++
		case "in_progress":
			inProgress++
		case "completed":
			completed++
		}
	}

	return tool.Success(map[string]any{
		"snapshot": todo.Snapshot(items),
		"counts": map[string]any{
			"pending":     pending,
			"in_progress": inProgress,
			"completed":   completed,
		},
	}), nil
}
