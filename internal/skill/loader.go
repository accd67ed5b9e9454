package skill

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const skillFile = "SKILL.md"

const frontmatterDelim = "---"

// ScanDir scans dir for one-level subdirectories containing a SKILL.md and
// returns all valid Definitions. A subdirectory without SKILL.md is silently
// skipped. If dir itself does not exist, an empty slice is returned (not an
// error) — a workspace need not carry any skills.
func ScanDir(dir string) ([]*Definition, []error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, []error{fmt.Errorf("skill: scan %q: %w", dir, err)}
	}

	var defs []*Definition
	var errs []error

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		skillDir := filepath.Join(dir, e.Name())
		mdPath := filepath.Join(skillDir, skillFile)

		data, err := os.ReadFile(mdPath)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			errs = append(errs, fmt.Errorf("skill: read %q: %w", mdPath, err))
			continue
		}

		def, err := parseDefinition(data)
		if err != nil {
			errs = append(errs, fmt.Errorf("skill %q: %w", e.Name(), err))
			continue
		}
		if err := validateDefinition(def, e.Name()); err != nil {
			errs = append(errs, err)
			continue
		}

		def.Dir = skillDir
		defs = append(defs, def)
	}

	return defs, errs
}

// parseDefinition splits a SKILL.md file into YAML frontmatter and Markdown
// body. The file must open with a "---" delimiter line, followed by YAML,
// followed by a closing "---" line; everything after is the body.
func parseDefinition(data []byte) (*Definition, error) {
	text := string(data)
	lines := strings.Split(text, "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != frontmatterDelim {
		return nil, fmt.Errorf("missing opening %q frontmatter delimiter", frontmatterDelim)
	}

	closeIdx := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == frontmatterDelim {
			closeIdx = i
			break
		}
	}
	if closeIdx == -1 {
		return nil, fmt.Errorf("missing closing %q frontmatter delimiter", frontmatterDelim)
	}

	yamlBlock := strings.Join(lines[1:closeIdx], "\n")
	body := strings.TrimLeft(strings.Join(lines[closeIdx+1:], "\n"), "\n")

	var def Definition
	if err := yaml.Unmarshal([]byte(yamlBlock), &def); err != nil {
		return nil, fmt.Errorf("parse frontmatter: %w", err)
	}
	def.Body = strings.TrimRight(body, "\n")

	for i := range def.Scripts {
		if def.Scripts[i].TimeoutS <= 0 {
			def.Scripts[i].TimeoutS = defaultScriptTimeoutS
		}
	}

	return &def, nil
}

// validateDefinition checks that required fields are present and script
// names are unique within the skill.
func validateDefinition(def *Definition, dirName string) error {
	if def.Name == "" {
		return fmt.Errorf("skill %q: name is required", dirName)
	}
	if def.Description == "" {
		return fmt.Errorf("skill %q: description is required", dirName)
	}

	seen := make(map[string]bool, len(def.Scripts))
	for _, s := range def.Scripts {
		if s.Name == "" {
			return fmt.Errorf("skill %q: script entry missing name", def.Name)
		}
		if s.Path == "" {
			return fmt.Errorf("skill %q: script %q missing path", def.Name, s.Name)
		}
		if seen[s.Name] {
			return fmt.Errorf("skill %q: duplicate script name %q", def.Name, s.Name)
		}
		seen[s.Name] = true
	}

	return nil
}
