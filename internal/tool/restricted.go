package tool

import (
	"context"
	"sort"

	"github.com/pocketomega/sunny-agent/internal/logging"
)

// RestrictedToolView wraps a Registry with a subtractive allow-list: only
// tool names present in the allow-list are visible through the view, no
// matter what the underlying Registry later gains. This is the opposite of
// Registry.WithExtra (which is additive): WithExtra grows what's visible,
// RestrictedToolView shrinks it. It is used for subagent dispatch, where a
// sub-agent definition enumerates the exact tool names it may call.
//
// Names in the allow-list that don't resolve against the parent are dropped
// at construction time with a warning; they are simply never visible,
// rather than causing a construction error.
type RestrictedToolView struct {
	parent *Registry
	allow  map[string]struct{}
}

// NewRestrictedToolView builds a view exposing only the named tools from
// parent. Unknown names are logged and skipped.
func NewRestrictedToolView(parent *Registry, allowedNames []string) *RestrictedToolView {
	allow := make(map[string]struct{}, len(allowedNames))
	for _, name := range allowedNames {
		if _, ok := parent.Get(name); !ok {
			logging.L().Warnf("restricted tool view: allow-listed tool %q not found in parent registry", name)
			continue
		}
		allow[name] = struct{}{}
	}
	return &RestrictedToolView{parent: parent, allow: allow}
}

// Get returns the tool only if its name is on the allow-list.
func (v *RestrictedToolView) Get(name string) (Tool, bool) {
	if _, ok := v.allow[name]; !ok {
		return nil, false
	}
	return v.parent.Get(name)
}

// List returns the allow-listed tools that still resolve against the
// parent, sorted by name. A tool unregistered from the parent after this
// view was built simply disappears from List/Get, same as Registry views.
func (v *RestrictedToolView) List() []Tool {
	result := make([]Tool, 0, len(v.allow))
	for name := range v.allow {
		if t, ok := v.parent.Get(name); ok {
			result = append(result, t)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name() < result[j].Name()
	})
	return result
}

// SchemasFor returns the allow-listed tools visible in the given tier.
func (v *RestrictedToolView) SchemasFor(tier Tier) []Tool {
	all := v.List()
	result := make([]Tool, 0, len(all))
	for _, t := range all {
		for _, tt := range t.Tiers() {
			if tt == tier {
				result = append(result, t)
				break
			}
		}
	}
	return result
}

// Execute runs name if and only if it is allow-listed; otherwise it reports
// an Error Result without touching the parent Registry at all.
func (v *RestrictedToolView) Execute(ctx context.Context, name string, args []byte) (Result, error) {
	if _, ok := v.allow[name]; !ok {
		return Error("PermissionError: tool not authorized: " + name), nil
	}
	return v.parent.Execute(ctx, name, args)
}
