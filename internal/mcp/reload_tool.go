package mcp

import (
	"context"
	"encoding/json"

	"github.com/pocketomega/sunny-agent/internal/tool"
)

// ReloadTool implements tool.Tool and exposes the "mcp_reload" built-in command.
// When invoked by the agent, it triggers a diff-based hot reload of mcp.json:
//   - New servers: scanned (if stdio Python), then connected and registered.
//   - Removed servers: their tools are unregistered and connections closed.
//   - Unchanged servers: left untouched.
//
// The tool takes no input parameters and returns a human-readable summary.
type ReloadTool struct {
	manager  *Manager
	registry *tool.Registry
}

// NewReloadTool creates a ReloadTool wired to the given manager and registry.
func NewReloadTool(manager *Manager, registry *tool.Registry) *ReloadTool {
	return &ReloadTool{manager: manager, registry: registry}
}

func (t *ReloadTool) Name() string { return "mcp_reload" }

func (t *ReloadTool) Description() string {
	return "Reloads the MCP server configuration from mcp.json. " +
		"Connects new servers and registers their tools, disconnects removed servers and unregisters theirs; unchanged servers are left as they are. " +
		"New stdio Python servers are security-scanned before activation. " +
		"Returns a summary of changes made."
}

// InputSchema returns an empty schema — mcp_reload accepts no arguments.
func (t *ReloadTool) InputSchema() json.RawMessage {
	return tool.BuildSchema()
}

// Tiers exposes mcp_reload only to the full ReAct loop; reconfiguring the
// tool surface mid-task is not something the bounded fast-track should do.
func (t *ReloadTool) Tiers() []tool.Tier { return []tool.Tier{tool.TierL3} }

// TimeoutMS bounds the scan+reconnect sequence Reload performs.
func (t *ReloadTool) TimeoutMS() int { return 30_000 }

// RiskLevel reflects that mcp_reload can add or remove the agent's own
// tool surface.
func (t *ReloadTool) RiskLevel() tool.RiskLevel { return tool.RiskCritical }

// Execute triggers the hot-reload and returns a change summary.
func (t *ReloadTool) Execute(ctx context.Context, _ json.RawMessage) (tool.Result, error) {
	summary, err := t.manager.Reload(ctx, t.registry)
	if err != nil {
		return tool.Error(err.Error()), nil
	}
	return tool.Success(map[string]any{"output": summary}), nil
}

// Init is a no-op; ReloadTool has no additional initialisation requirements.
func (t *ReloadTool) Init(_ context.Context) error { return nil }

// Close is a no-op; lifecycle is managed by Manager.
func (t *ReloadTool) Close() error { return nil }
