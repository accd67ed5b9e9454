package skill

// Script describes one allow-listed script a skill exposes to skill_exec.
// Name is the identifier the LLM passes as skill_exec's script argument;
// Path is resolved relative to the skill's directory.
type Script struct {
	Name     string `yaml:"name"`
	Path     string `yaml:"path"`
	TimeoutS int    `yaml:"timeout_s"`
}

// Definition is the parsed content of one skill's SKILL.md: YAML frontmatter
// plus a Markdown instruction body. One Definition corresponds to one entry
// in the skill_call/skill_exec catalog — never its own registered tool.
type Definition struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Scripts     []Script `yaml:"scripts"`

	// Body is the Markdown instruction text following the frontmatter,
	// returned verbatim (wrapped) by Render.
	Body string `yaml:"-"`

	// Dir is the absolute path to the skill's directory, set by the loader.
	Dir string `yaml:"-"`
}

// ScriptByName returns the Script with the given name, or false if it is
// not in this skill's allow-list.
func (d *Definition) ScriptByName(name string) (Script, bool) {
	for _, s := range d.Scripts {
		if s.Name == name {
			return s, true
		}
	}
	return Script{}, false
}

const defaultScriptTimeoutS = 30
