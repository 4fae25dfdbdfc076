// Package script loads YAML dialog scripts and runs them against a
// program under test.
package script

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	ErrInvalidScript  = errors.New("invalid script")
	ErrScriptNotFound = errors.New("script not found")
)

// Parse decodes and validates a script.
func Parse(data []byte) (*Script, error) {
	var sc Script
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScript, err)
	}
	if err := normalizeAndValidate(&sc); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Load reads the script at path. A script without a name is named after
// its file.
func Load(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrScriptNotFound, path)
		}
		return nil, fmt.Errorf("read script %q: %w", path, err)
	}
	var sc Script
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("%w: parse %q: %v", ErrInvalidScript, path, err)
	}
	if strings.TrimSpace(sc.Name) == "" {
		sc.Name = nameFromFile(path)
	}
	if err := normalizeAndValidate(&sc); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &sc, nil
}

// LoadDir loads every .yaml and .yml file in dir, sorted by name.
func LoadDir(dir string) ([]*Script, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read scripts dir: %w", err)
	}

	seen := make(map[string]string)
	var out []*Script
	for _, entry := range entries {
		if entry.IsDir() || !isYAML(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		sc, err := Load(path)
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[sc.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate script name %q in %s and %s", ErrInvalidScript, sc.Name, prev, path)
		}
		seen[sc.Name] = path
		out = append(out, sc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Save writes sc to path as YAML after validating it.
func Save(path string, sc *Script) error {
	if sc == nil {
		return fmt.Errorf("%w: script is required", ErrInvalidScript)
	}
	clean := clone(sc)
	if err := normalizeAndValidate(clean); err != nil {
		return err
	}
	data, err := yaml.Marshal(clean)
	if err != nil {
		return fmt.Errorf("marshal script: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write script %q: %w", path, err)
	}
	return nil
}

func isYAML(name string) bool {
	name = strings.ToLower(name)
	return strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")
}

func nameFromFile(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func normalizeAndValidate(sc *Script) error {
	sc.Name = strings.TrimSpace(sc.Name)
	if sc.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidScript)
	}
	sc.Entry = strings.TrimSpace(sc.Entry)
	sc.Description = strings.TrimSpace(sc.Description)
	if sc.Timeout < 0 {
		return fmt.Errorf("%w: timeout must not be negative", ErrInvalidScript)
	}
	if len(sc.Steps) == 0 {
		return fmt.Errorf("%w: at least one step is required", ErrInvalidScript)
	}
	for i, step := range sc.Steps {
		switch actions := step.actions(); len(actions) {
		case 0:
			return fmt.Errorf("%w: step[%d] has no action", ErrInvalidScript, i)
		case 1:
		default:
			return fmt.Errorf("%w: step[%d] has several actions (%s)", ErrInvalidScript, i, strings.Join(actions, ", "))
		}
		if step.ExpectRegex != "" {
			if _, err := regexp.Compile(step.ExpectRegex); err != nil {
				return fmt.Errorf("%w: step[%d].expect_regex: %v", ErrInvalidScript, i, err)
			}
		}
	}
	return nil
}

func clone(sc *Script) *Script {
	out := *sc
	out.Args = append([]string(nil), sc.Args...)
	out.Steps = append([]Step(nil), sc.Steps...)
	return &out
}
