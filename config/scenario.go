package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rustyeddy/otto/scenario"
)

// LoadScenarios reads every *.json file in dir, each yielding exactly one
// scenario.Definition. Per-file parse errors are collected, not fatal.
func LoadScenarios(dir string) ([]scenario.Definition, []error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, []error{fmt.Errorf("config: read scenario dir %s: %w", dir, err)}
	}

	var defs []scenario.Definition
	var errs []error
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			errs = append(errs, fmt.Errorf("config: read %s: %w", path, err))
			continue
		}
		var def scenario.Definition
		if err := json.Unmarshal(data, &def); err != nil {
			errs = append(errs, fmt.Errorf("config: parse %s: %w", path, err))
			continue
		}
		if def.ScenarioID == "" {
			errs = append(errs, fmt.Errorf("config: %s: missing scenario_id", path))
			continue
		}
		defs = append(defs, def)
	}
	return defs, errs
}
