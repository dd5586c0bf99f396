package scenario

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// LoadDir reads every scenario pack under dir (recursively, one
// scenario per *.yaml file), validates it, and returns the packs in
// path order. A missing directory is not an error; a malformed pack is.
func LoadDir(dir string) ([]Scenario, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, nil
	}

	pattern := filepath.Join(dir, "**", "*.yaml")
	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, fmt.Errorf("glob %q: %w", pattern, err)
	}
	sort.Strings(matches)

	var scenarios []Scenario
	for _, path := range matches {
		sc, err := loadFile(path)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, sc)
	}
	return scenarios, nil
}

func loadFile(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("read scenario pack %s: %w", path, err)
	}

	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return Scenario{}, fmt.Errorf("parse scenario pack %s: %w", path, err)
	}

	sc.applyDefaults()
	if err := sc.Validate(); err != nil {
		return Scenario{}, fmt.Errorf("invalid scenario pack %s: %w", path, err)
	}
	return sc, nil
}
