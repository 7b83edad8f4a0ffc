package cmd

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/inference-sim/orderflow-sim/sim"
	"github.com/inference-sim/orderflow-sim/sim/journal"
	"github.com/inference-sim/orderflow-sim/sim/session"
)

// Script is a recorded sequence of ticks and player commands.
type Script struct {
	Scenario    string       `yaml:"scenario,omitempty"` // scenario file, relative to the working directory
	Settings    *yaml.Node   `yaml:"settings,omitempty"` // inline scenario, decoded over the defaults
	TickSeconds int64        `yaml:"tick_seconds,omitempty"`
	Steps       []ScriptStep `yaml:"steps"`
}

// ScriptStep is either a batch of ticks or one command.
type ScriptStep struct {
	Ticks   int                `yaml:"ticks,omitempty"`
	Command string             `yaml:"command,omitempty"`
	Order   string             `yaml:"order,omitempty"`
	Station string             `yaml:"station,omitempty"`
	Fatal   bool               `yaml:"fatal,omitempty"`
	Patch   *sim.SettingsPatch `yaml:"patch,omitempty"`
}

// LoadScript reads a replay script with strict field checking.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading script: %w", err)
	}
	var s Script
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("parsing script: %w", err)
	}
	return &s, nil
}

// settings resolves the script's session settings.
func (s *Script) settings() (sim.GameSettings, error) {
	switch {
	case s.Scenario != "" && s.Settings != nil:
		return sim.GameSettings{}, fmt.Errorf("script: scenario and settings are mutually exclusive")
	case s.Scenario != "":
		return LoadScenario(s.Scenario)
	case s.Settings != nil:
		data, err := yaml.Marshal(s.Settings)
		if err != nil {
			return sim.GameSettings{}, fmt.Errorf("script settings: %w", err)
		}
		return ParseScenario(data)
	default:
		return sim.DefaultSettings(), nil
	}
}

// Replay runs the script and returns the final state. Failed commands are
// logged and the replay continues, as they would in a live session.
func Replay(script *Script) (*sim.GameState, error) {
	settings, err := script.settings()
	if err != nil {
		return nil, err
	}
	dt := script.TickSeconds
	if dt <= 0 {
		dt = sim.Minute
	}
	s, err := session.New(settings)
	if err != nil {
		return nil, err
	}
	if err := s.Start(); err != nil {
		return nil, err
	}
	for i, step := range script.Steps {
		if step.Ticks > 0 {
			for n := 0; n < step.Ticks && s.Snapshot().Status != sim.SessionCompleted; n++ {
				if err := s.Tick(dt); err != nil {
					return nil, fmt.Errorf("step %d: %w", i, err)
				}
			}
			continue
		}
		if err := applyStep(s, step); err != nil {
			logrus.Warnf("Replay step %d (%s): %v", i, step.Command, err)
		}
	}
	return s.Snapshot(), nil
}

func applyStep(s *session.Session, step ScriptStep) error {
	var err error
	switch journal.Kind(step.Command) {
	case journal.KindReleaseOrder:
		_, err = s.ReleaseOrder(step.Order)
	case journal.KindPause:
		_, err = s.Pause()
	case journal.KindResume:
		_, err = s.Resume()
	case journal.KindHoldOrder:
		_, err = s.HoldOrder(step.Order)
	case journal.KindResumeOrder:
		_, err = s.ResumeOrder(step.Order)
	case journal.KindChangeSettings:
		if step.Patch == nil {
			return fmt.Errorf("change_settings without patch")
		}
		_, err = s.ChangeSettings(*step.Patch)
	case journal.KindUndo:
		_, err = s.Undo()
	case journal.KindRedo:
		_, err = s.Redo()
	case "inject_failure":
		err = s.InjectFailure(step.Station, step.Fatal)
	default:
		return fmt.Errorf("unknown command %q", step.Command)
	}
	return err
}

// Fingerprint returns the SHA-256 of the state's JSON encoding.
func Fingerprint(state *sim.GameState) (string, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// printDecisionSummary writes per-kind decision counts.
func printDecisionSummary(w io.Writer, decisions []journal.Decision) {
	sum := journal.Summarize(decisions)
	fmt.Fprintf(w, "Decisions            : %d (undo %d, redo %d, orders touched %d)\n", sum.Total, sum.Undone, sum.Redone, sum.OrderIDs)
	for _, k := range journal.Kinds {
		if n := sum.ByKind[k]; n > 0 {
			fmt.Fprintf(w, "  %-16s %d\n", k, n)
		}
	}
}

var scriptPath string

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay a recorded tick/command script and print the state fingerprint",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel(logLevel)

		script, err := LoadScript(scriptPath)
		if err != nil {
			logrus.Fatalf("Failed to load script: %v", err)
		}
		state, err := Replay(script)
		if err != nil {
			logrus.Fatalf("Replay failed: %v", err)
		}
		state.KPI.Print(os.Stdout)
		printDecisionSummary(os.Stdout, state.Decisions)

		fp, err := Fingerprint(state)
		if err != nil {
			logrus.Fatalf("Fingerprint failed: %v", err)
		}
		fmt.Fprintf(os.Stdout, "sha256: %s\n", fp)
	},
}

func init() {
	replayCmd.Flags().StringVar(&scriptPath, "script", "", "Replay script YAML file")
	replayCmd.Flags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")
	_ = replayCmd.MarkFlagRequired("script")

	rootCmd.AddCommand(replayCmd)
}
