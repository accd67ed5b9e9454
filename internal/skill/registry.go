package skill

import (
	"fmt"
	"sync"
)

// renderHeaderFmt is the fixed wrapper Render puts around a skill's body so
// skill_call's output matches the catalog format consumed downstream,
// independent of any per-skill body formatting choices.
const renderHeaderFmt = "[Skill instructions - %s]\n\n---\n\n%s"

// Registry holds the catalog of loaded skill Definitions, keyed by name.
// Unlike the builtin tool.Registry, a Registry entry is never itself a
// tool.Tool — skill_call and skill_exec in package metatools are the only
// tools that reach into it, so the LLM's tool list carries two fixed entries
// no matter how many skills are installed.
type Registry struct {
	mu     sync.RWMutex
	skills map[string]*Definition
}

// NewRegistry creates an empty skill Registry.
func NewRegistry() *Registry {
	return &Registry{skills: make(map[string]*Definition)}
}

// LoadDirs scans each directory in order and merges the results into the
// registry. Later directories override earlier ones on name collision, so a
// workspace-local skills/ directory can shadow a bundled one.
func (r *Registry) LoadDirs(dirs ...string) []error {
	var errs []error
	merged := make(map[string]*Definition)

	for _, dir := range dirs {
		defs, scanErrs := ScanDir(dir)
		errs = append(errs, scanErrs...)
		for _, def := range defs {
			merged[def.Name] = def
		}
	}

	r.mu.Lock()
	r.skills = merged
	r.mu.Unlock()

	return errs
}

// Get returns the Definition registered under name.
func (r *Registry) Get(name string) (*Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.skills[name]
	return d, ok
}

// List returns all loaded Definitions, unordered.
func (r *Registry) List() []*Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Definition, 0, len(r.skills))
	for _, d := range r.skills {
		out = append(out, d)
	}
	return out
}

// Names returns the loaded skill names, unordered, for building
// skill_call/skill_exec's enum schema.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.skills))
	for name := range r.skills {
		out = append(out, name)
	}
	return out
}

// Render returns the skill's instruction body wrapped in the fixed header
// format skill_call hands back to the model.
func (r *Registry) Render(name string) (string, error) {
	def, ok := r.Get(name)
	if !ok {
		return "", fmt.Errorf("unknown skill: %q", name)
	}
	return fmt.Sprintf(renderHeaderFmt, def.Name, def.Body), nil
}
