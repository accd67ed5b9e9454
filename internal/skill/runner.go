package skill

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/pocketomega/sunny-agent/internal/logging"
)

// runRequest is the JSON envelope sent to a skill script via stdin.
type runRequest struct {
	Arguments map[string]any `json:"arguments"`
}

// runResponse is the JSON envelope a skill script writes to stdout, as a
// single line.
type runResponse struct {
	Output string `json:"output"`
	Error  string `json:"error"`
}

// RunScript executes one of def's allow-listed scripts via the stdio JSON
// protocol: the request is written as one line of JSON to stdin, and the
// script must write one line of JSON to stdout. scriptName not present in
// def.Scripts is rejected without spawning a process — the allow-list is
// the security boundary between "the model can invoke any file on disk"
// and "the model can only invoke what the skill author enumerated".
//
// The script's own deadline (TimeoutS) is kept strictly inside ctx's
// deadline by the caller (the skill_exec meta-tool), which must itself run
// under a tool-registry timeout larger than every script's TimeoutS.
func RunScript(ctx context.Context, def *Definition, scriptName string, args map[string]any) (string, error) {
	s, ok := def.ScriptByName(scriptName)
	if !ok {
		return "", fmt.Errorf("skill %q has no script %q", def.Name, scriptName)
	}

	runCtx, cancel := context.WithTimeout(ctx, time.Duration(s.TimeoutS)*time.Second)
	defer cancel()

	cmd, err := buildCmd(runCtx, def, s)
	if err != nil {
		return "", err
	}

	reqData, err := json.Marshal(runRequest{Arguments: args})
	if err != nil {
		return "", fmt.Errorf("encode arguments: %w", err)
	}
	reqData = append(reqData, '\n')
	cmd.Stdin = bytes.NewReader(reqData)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if stderr.Len() > 0 {
		logging.L().Debugw("skill script stderr", "skill", def.Name, "script", scriptName, "stderr", stderr.String())
	}
	if runErr != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("run %s/%s: %w: %s", def.Name, scriptName, runErr, msg)
		}
		return "", fmt.Errorf("run %s/%s: %w", def.Name, scriptName, runErr)
	}

	scanner := bufio.NewScanner(&stdout)
	if !scanner.Scan() {
		return "", fmt.Errorf("%s/%s produced no output — expected one line of JSON on stdout", def.Name, scriptName)
	}

	var resp runResponse
	if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
		return "", fmt.Errorf("%s/%s: non-JSON output %q: %w", def.Name, scriptName, scanner.Text(), err)
	}
	if resp.Error != "" {
		return "", fmt.Errorf("%s", resp.Error)
	}

	return resp.Output, nil
}

// buildCmd constructs the exec.Cmd for script s, dispatching on its file
// extension: .py runs under python3, .js under node, .sh under sh, anything
// else is executed directly (a precompiled or otherwise self-contained
// binary checked into the skill directory).
func buildCmd(ctx context.Context, def *Definition, s Script) (*exec.Cmd, error) {
	scriptPath := filepath.Join(def.Dir, s.Path)

	var cmd *exec.Cmd
	switch ext := strings.ToLower(filepath.Ext(scriptPath)); ext {
	case ".py":
		cmd = exec.CommandContext(ctx, "python3", scriptPath)
	case ".js":
		cmd = exec.CommandContext(ctx, "node", scriptPath)
	case ".sh":
		cmd = exec.CommandContext(ctx, "sh", scriptPath)
	default:
		cmd = exec.CommandContext(ctx, scriptPath)
	}
	cmd.Dir = def.Dir
	return cmd, nil
}
