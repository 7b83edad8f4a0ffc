package cmd

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/inference-sim/orderflow-sim/sim"
	"github.com/inference-sim/orderflow-sim/sim/workload"
)

// LoadScenario reads a scenario YAML file. Keys absent from the file keep
// their sim.DefaultSettings values. Uses strict parsing: unrecognized keys
// (typos) are rejected.
func LoadScenario(path string) (sim.GameSettings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return sim.GameSettings{}, fmt.Errorf("reading scenario: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes a scenario document over the default settings.
func ParseScenario(data []byte) (sim.GameSettings, error) {
	settings := sim.DefaultSettings()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&settings); err != nil {
		return sim.GameSettings{}, fmt.Errorf("parsing scenario: %w", err)
	}
	return settings, nil
}

// scenarioSource names where the base settings of a command come from.
type scenarioSource struct {
	configPath   string
	preset       string
	schedulePath string
}

// load resolves the base settings: a scenario file, a built-in preset, or
// the defaults. A schedule file switches the session to predetermined mode.
func (s scenarioSource) load(seed string) (sim.GameSettings, error) {
	if s.configPath != "" && s.preset != "" {
		return sim.GameSettings{}, fmt.Errorf("--config and --preset are mutually exclusive")
	}
	settings := sim.DefaultSettings()
	switch {
	case s.configPath != "":
		loaded, err := LoadScenario(s.configPath)
		if err != nil {
			return sim.GameSettings{}, err
		}
		settings = loaded
	case s.preset != "":
		build, ok := workload.Scenarios[s.preset]
		if !ok {
			return sim.GameSettings{}, fmt.Errorf("unknown preset %q", s.preset)
		}
		settings = build(seed)
	}
	if s.schedulePath != "" {
		orders, err := workload.LoadSchedule(s.schedulePath)
		if err != nil {
			return sim.GameSettings{}, err
		}
		settings.Mode = sim.ModePredetermined
		settings.Schedule = orders
	}
	return settings, nil
}
