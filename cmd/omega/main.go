package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/pocketomega/sunny-agent/internal/config"
	"github.com/pocketomega/sunny-agent/internal/llm/openai"
	"github.com/pocketomega/sunny-agent/internal/logging"
	"github.com/pocketomega/sunny-agent/internal/mcp"
	"github.com/pocketomega/sunny-agent/internal/metatools"
	"github.com/pocketomega/sunny-agent/internal/router"
	"github.com/pocketomega/sunny-agent/internal/skill"
	"github.com/pocketomega/sunny-agent/internal/subagent"
	"github.com/pocketomega/sunny-agent/internal/todo"
	"github.com/pocketomega/sunny-agent/internal/tool"
	"github.com/pocketomega/sunny-agent/internal/tool/builtin"
	"github.com/pocketomega/sunny-agent/internal/web"
)

func main() {
	config.LoadEnv()

	if err := logging.Init(os.Getenv("LOG_LEVEL"), os.Getenv("ENV") != "production"); err != nil {
		log.Fatalf("failed to initialize logging: %v", err)
	}
	defer logging.Sync()

	fmt.Println("╔══════════════════════════════════════╗")
	fmt.Println("║            sunny-agent               ║")
	fmt.Println("║  L1 fast-track + L3 ReAct execution   ║")
	fmt.Println("╚══════════════════════════════════════╝")

	llmClient, err := openai.NewClientFromEnv()
	if err != nil {
		log.Fatalf("failed to initialize LLM client: %v", err)
	}
	model := os.Getenv("LLM_MODEL")
	baseURL := os.Getenv("LLM_BASE_URL")
	fmt.Printf("LLM: %s @ %s\n", model, baseURL)

	workspaceDir := os.Getenv("WORKSPACE_DIR")
	if workspaceDir == "" {
		workspaceDir, _ = os.Getwd()
	}
	if info, statErr := os.Stat(workspaceDir); statErr != nil || !info.IsDir() {
		log.Fatalf("WORKSPACE_DIR %q does not exist or is not a directory", workspaceDir)
	}
	fmt.Printf("Workspace: %s\n", workspaceDir)

	registry := buildToolRegistry(workspaceDir)
	if err := registry.InitAll(context.Background()); err != nil {
		log.Fatalf("failed to initialize tools: %v", err)
	}
	defer registry.CloseAll()

	skillRegistry := skill.NewRegistry()
	skillDirs := skillDirectories(workspaceDir)
	for _, loadErr := range skillRegistry.LoadDirs(skillDirs...) {
		log.Printf("skill load warning: %v", loadErr)
	}
	fmt.Printf("Skills: %d loaded\n", len(skillRegistry.List()))

	subAgentRegistry := subagent.NewRegistry()
	agentDirs := subAgentDirectories(workspaceDir)
	for _, loadErr := range subAgentRegistry.LoadDirs(agentDirs...) {
		log.Printf("sub-agent load warning: %v", loadErr)
	}
	fmt.Printf("Sub-agents: %d loaded\n", len(subAgentRegistry.List()))

	todoStore := todo.NewMemoryStore()
	defer todoStore.Close()

	registry.Register(metatools.NewSkillCallTool(skillRegistry))
	registry.Register(metatools.NewSkillExecTool(skillRegistry))
	registry.Register(metatools.NewSubAgentCallTool(subAgentRegistry, registry, llmClient))
	registry.Register(metatools.NewTodoWriteTool(todoStore))
	registry.Register(metatools.NewTodoReadTool(todoStore))

	fmt.Printf("Tools: %d registered\n", len(registry.List()))

	var mcpMgr *mcp.Manager
	mcpServerCount := 0
	mcpConfigPath := os.Getenv("MCP_CONFIG")
	if mcpConfigPath == "" {
		mcpConfigPath = "mcp.json"
	}
	if _, statErr := os.Stat(mcpConfigPath); statErr == nil {
		mcpMgr = mcp.NewManager(mcpConfigPath)
		registry.Register(mcp.NewReloadTool(mcpMgr, registry))

		n, mcpErrs := mcpMgr.ConnectAll(context.Background())
		for _, e := range mcpErrs {
			log.Printf("MCP connect warning: %v", e)
		}
		mcpServerCount = n
		if n > 0 {
			if regErr := mcpMgr.RegisterTools(context.Background(), registry); regErr != nil {
				log.Printf("MCP register tools warning: %v", regErr)
			}
			fmt.Printf("MCP: %d server(s) connected\n", n)
		}
		defer mcpMgr.CloseAll()
	}

	rt := router.New(llmClient, registry, skillRegistry, subAgentRegistry, todoStore)

	agentHandler := web.NewAgentHandler(rt)
	healthInfo := web.HealthInfo{
		LLMModel:       model,
		ToolCount:      len(registry.List()),
		MCPServerCount: mcpServerCount,
	}

	server, err := web.NewServer(agentHandler, healthInfo)
	if err != nil {
		log.Fatalf("failed to create web server: %v", err)
	}
	if err := server.Start(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

// buildToolRegistry registers the shell, file, time and web-reader builtin
// tools plus the HTTP and search tools, gated by the same environment
// switches the teacher used. git_info, config_edit and the mcp_server tools
// are not registered here.
func buildToolRegistry(workspaceDir string) *tool.Registry {
	registry := tool.NewRegistry()

	shellEnabled := os.Getenv("TOOL_SHELL_ENABLED") != "false"
	registry.Register(builtin.NewShellTool(workspaceDir, shellEnabled))
	registry.Register(builtin.NewFileReadTool(workspaceDir))
	registry.Register(builtin.NewFileWriteTool(workspaceDir))
	registry.Register(builtin.NewFileListTool(workspaceDir))
	registry.Register(builtin.NewFileFindTool(workspaceDir))
	registry.Register(builtin.NewFileGrepTool(workspaceDir))
	registry.Register(builtin.NewFileMoveTool(workspaceDir))
	registry.Register(builtin.NewFileOpenTool(workspaceDir))
	registry.Register(builtin.NewFileDeleteTool(workspaceDir))
	registry.Register(builtin.NewFilePatchTool(workspaceDir))
	registry.Register(builtin.NewTimeTool())
	registry.Register(builtin.NewWebReaderTool())

	if os.Getenv("TOOL_HTTP_ENABLED") != "false" {
		allowInternal := os.Getenv("TOOL_HTTP_ALLOW_INTERNAL") == "true"
		registry.Register(builtin.NewHTTPRequestTool(allowInternal))
	}
	if key := os.Getenv("TAVILY_API_KEY"); key != "" {
		registry.Register(builtin.NewTavilySearchTool(key))
	}
	if key := os.Getenv("BRAVE_API_KEY"); key != "" {
		registry.Register(builtin.NewBraveSearchTool(key))
	}

	return registry
}

// skillDirectories returns the skill load order: the workspace-local
// skills directory first, then SKILLS_DIR when it is set. Later directories
// override earlier ones on name collision.
func skillDirectories(workspaceDir string) []string {
	dirs := []string{filepath.Join(workspaceDir, "skills")}
	if extra := os.Getenv("SKILLS_DIR"); extra != "" {
		dirs = append(dirs, extra)
	}
	return dirs
}

func subAgentDirectories(workspaceDir string) []string {
	dirs := []string{filepath.Join(workspaceDir, "agents")}
	if extra := os.Getenv("AGENTS_DIR"); extra != "" {
		dirs = append(dirs, extra)
	}
	return dirs
}
