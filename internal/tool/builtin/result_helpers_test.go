package builtin

import "github.com/pocketomega/sunny-agent/internal/tool"

// resultOutput extracts the "output" string convention these tools use for
// their success payload, for tests written against the old flat
// Output/Error ToolResult shape.
func resultOutput(r tool.Result) string {
	if r.IsError() {
		return ""
	}
	s, _ := r.Data()["output"].(string)
	return s
}
