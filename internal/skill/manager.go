package skill

import (
	"context"
	"fmt"
	"strings"

	"github.com/pocketomega/sunny-agent/internal/logging"
)

// Manager owns the lifecycle of a workspace's skill catalog: it scans one or
// more skill directories into a Registry at startup and supports diff-based
// hot reload so skills added, removed, or edited on disk take effect without
// a restart — without requiring the agent to re-announce its tool list,
// since skill_call/skill_exec stay registered and simply read through to
// whatever the Registry currently holds.
type Manager struct {
	dirs     []string
	registry *Registry
}

// NewManager creates a Manager that loads skills from dirs, in order
// (later directories override earlier ones on name collision).
func NewManager(registry *Registry, dirs ...string) *Manager {
	return &Manager{dirs: dirs, registry: registry}
}

// LoadAll performs the initial scan. Per-skill errors are non-fatal — other
// skills continue to load.
func (m *Manager) LoadAll(_ context.Context) (int, []error) {
	errs := m.registry.LoadDirs(m.dirs...)
	names := m.registry.Names()
	for _, n := range names {
		logging.L().Infof("skill registry: loaded %s", n)
	}
	return len(names), errs
}

// Reload re-scans the configured directories and replaces the registry's
// contents, returning a human-readable summary of what changed.
func (m *Manager) Reload(_ context.Context) string {
	before := make(map[string]bool)
	for _, n := range m.registry.Names() {
		before[n] = true
	}

	errs := m.registry.LoadDirs(m.dirs...)

	after := make(map[string]bool)
	for _, n := range m.registry.Names() {
		after[n] = true
	}

	added, removed, kept := 0, 0, 0
	for n := range after {
		if before[n] {
			kept++
		} else {
			added++
			logging.L().Infof("skill registry: added %s", n)
		}
	}
	for n := range before {
		if !after[n] {
			removed++
			logging.L().Infof("skill registry: removed %s", n)
		}
	}

	var parts []string
	parts = append(parts, fmt.Sprintf("Skill reload: +%d added, -%d removed, %d unchanged", added, removed, kept))
	for _, e := range errs {
		parts = append(parts, fmt.Sprintf("[WARNING] %v", e))
	}
	return strings.Join(parts, "\n")
}
