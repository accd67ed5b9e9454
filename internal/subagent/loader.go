package subagent

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const agentFile = "agent.md"

const frontmatterDelim = "---"

// ScanDir scans dir for one-level subdirectories containing an agent.md and
// returns all valid Definitions. Mirrors skill.ScanDir's shape and error
// tolerance: a missing dir is not an error, a subdirectory without agent.md
// is silently skipped, and a malformed definition is reported but does not
// stop the scan of its siblings.
func ScanDir(dir string) ([]*Definition, []error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, []error{fmt.Errorf("subagent: scan %q: %w", dir, err)}
	}

	var defs []*Definition
	var errs []error

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		agentDir := filepath.Join(dir, e.Name())
		mdPath := filepath.Join(agentDir, agentFile)

		data, err := os.ReadFile(mdPath)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			errs = append(errs, fmt.Errorf("subagent: read %q: %w", mdPath, err))
			continue
		}

		def, err := parseDefinition(data)
		if err != nil {
			errs = append(errs, fmt.Errorf("subagent %q: %w", e.Name(), err))
			continue
		}
		if err := validateDefinition(def, e.Name()); err != nil {
			errs = append(errs, err)
			continue
		}

		def.Dir = agentDir
		defs = append(defs, def)
	}

	return defs, errs
}

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
	def.applyDefaults()

	return &def, nil
}

func validateDefinition(def *Definition, dirName string) error {
	if def.Name == "" {
		return fmt.Errorf("subagent %q: name is required", dirName)
	}
	if def.Description == "" {
		return fmt.Errorf("subagent %q: description is required", dirName)
	}

	switch def.Type {
	case TypeLocalReact, TypeLocalCode, TypeHTTP:
	case "":
		def.Type = TypeLocalReact
	default:
		return fmt.Errorf("subagent %q: unknown type %q — supported: local_react | local_code | http", def.Name, def.Type)
	}

	if def.Type == TypeLocalCode && def.Entry == "" {
		return fmt.Errorf("subagent %q: type local_code requires entry", def.Name)
	}
	if def.Type == TypeHTTP && def.Endpoint == "" {
		return fmt.Errorf("subagent %q: type http requires endpoint", def.Name)
	}

	return nil
}
