package subagent

import (
	"context"
	"fmt"
	"sync"
)

// LocalCodeExecutor is implemented by native Go code registered to back a
// local_code SubAgentDefinition. Go has no dynamic import-by-dotted-path
// mechanism (no safe cross-platform equivalent of importlib without the
// Linux-only, CGO-bound plugin package), so local_code agents resolve their
// `entry` string against this static registry instead of loading code at
// runtime.
type LocalCodeExecutor interface {
	Execute(ctx context.Context, task string) (string, error)
}

var (
	localCodeMu        sync.RWMutex
	localCodeExecutors = make(map[string]LocalCodeExecutor)
)

// RegisterLocalCodeExecutor associates entry with ex. Intended to be called
// from bootstrap code (mirroring the explicit tool.Registry.Register calls
// in cmd/omega/main.go), not from package init magic, so the set of
// resolvable entries is visible at the call site that wires the process.
func RegisterLocalCodeExecutor(entry string, ex LocalCodeExecutor) {
	localCodeMu.Lock()
	defer localCodeMu.Unlock()
	localCodeExecutors[entry] = ex
}

// LookupLocalCodeExecutor returns the executor registered for entry, or an
// error analogous to an ImportError in the reference implementation.
func LookupLocalCodeExecutor(entry string) (LocalCodeExecutor, error) {
	localCodeMu.RLock()
	defer localCodeMu.RUnlock()
	ex, ok := localCodeExecutors[entry]
	if !ok {
		return nil, fmt.Errorf("local_code entry not registered: %s", entry)
	}
	return ex, nil
}
