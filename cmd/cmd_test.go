package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/orderflow-sim/sim"
	"github.com/inference-sim/orderflow-sim/sim/journal"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseScenario_KeepsDefaultsForMissingKeys(t *testing.T) {
	// GIVEN a scenario that only sets two keys
	settings, err := ParseScenario([]byte("session_minutes: 15\nseed: \"7\"\n"))

	// THEN the rest keeps the default values
	require.NoError(t, err)
	assert.Equal(t, 15, settings.SessionMinutes)
	assert.Equal(t, "7", settings.Seed)
	assert.Equal(t, 1, settings.SpeedMultiplier)
	assert.Len(t, settings.Departments, 5)
	require.NoError(t, settings.Validate())
}

func TestParseScenario_ReplacesDepartments(t *testing.T) {
	doc := `
departments:
  - {id: saw, name: Saw, capacity: 1, max_queue_size: 2, policy: edd, base_minutes: 4}
`
	settings, err := ParseScenario([]byte(doc))

	require.NoError(t, err)
	require.Len(t, settings.Departments, 1)
	assert.Equal(t, sim.PolicyEDD, settings.Departments[0].Policy)
}

func TestParseScenario_RejectsUnknownKeys(t *testing.T) {
	_, err := ParseScenario([]byte("sesion_minutes: 15\n"))
	assert.Error(t, err)
}

func TestScenarioSource_Load(t *testing.T) {
	schedule := writeFile(t, "schedule.yaml", "orders:\n  - {id: A, release_minute: 0, route: [cutting]}\n")

	t.Run("preset", func(t *testing.T) {
		s, err := scenarioSource{preset: "rush-hour"}.load("9")
		require.NoError(t, err)
		assert.Equal(t, 60, s.SessionMinutes)
		assert.Equal(t, "9", s.Seed)
	})

	t.Run("unknown preset", func(t *testing.T) {
		_, err := scenarioSource{preset: "chaos"}.load("")
		assert.Error(t, err)
	})

	t.Run("config and preset together", func(t *testing.T) {
		_, err := scenarioSource{configPath: "x.yaml", preset: "steady"}.load("")
		assert.Error(t, err)
	})

	t.Run("schedule switches mode", func(t *testing.T) {
		s, err := scenarioSource{schedulePath: schedule}.load("")
		require.NoError(t, err)
		assert.Equal(t, sim.ModePredetermined, s.Mode)
		assert.Len(t, s.Schedule, 1)
	})
}

func TestRunToCompletion(t *testing.T) {
	settings := sim.DefaultSettings()
	settings.SessionMinutes = 15

	state, err := runToCompletion(context.Background(), settings, sim.Minute)

	require.NoError(t, err)
	assert.Equal(t, sim.SessionCompleted, state.Status)
	assert.Equal(t, 15*sim.Minute, state.Clock.Elapsed)

	_, err = runToCompletion(context.Background(), settings, 0)
	assert.Error(t, err)
}

func TestRunToCompletion_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := runToCompletion(ctx, sim.DefaultSettings(), sim.Minute)

	assert.ErrorIs(t, err, context.Canceled)
}

const replayScript = `
settings:
  session_minutes: 15
  mode: predetermined
  seed: lesson-1
  schedule:
    - {id: A, release_minute: 0, route: [cutting, welding], due_in_minutes: 20, value: 100}
    - {id: B, release_minute: 1, route: [cutting], value: 50}
tick_seconds: 60
steps:
  - ticks: 2
  - command: hold_order
    order: A
  - ticks: 1
  - command: undo
  - command: pause
  - ticks: 3
  - command: resume
  - command: change_settings
    patch: {speed_multiplier: 2}
  - command: release_order
    order: missing
  - ticks: 20
`

func TestReplay_IsDeterministic(t *testing.T) {
	// GIVEN a recorded script
	path := writeFile(t, "script.yaml", replayScript)
	script, err := LoadScript(path)
	require.NoError(t, err)

	// WHEN it is replayed twice
	a, err := Replay(script)
	require.NoError(t, err)
	b, err := Replay(script)
	require.NoError(t, err)

	// THEN both runs produce the same fingerprint
	fa, err := Fingerprint(a)
	require.NoError(t, err)
	fb, err := Fingerprint(b)
	require.NoError(t, err)
	assert.Equal(t, fa, fb)
	assert.Len(t, fa, 64)

	assert.Equal(t, sim.SessionCompleted, a.Status)
	// hold, undo, pause, resume, change_settings; the failed release records nothing
	assert.Len(t, a.Decisions, 5)
}

func TestReplay_UnknownCommand_IsSkipped(t *testing.T) {
	script := &Script{Steps: []ScriptStep{{Command: "teleport"}, {Ticks: 1}}}

	state, err := Replay(script)

	require.NoError(t, err)
	assert.Empty(t, state.Decisions)
	assert.Equal(t, sim.Minute, state.Clock.Elapsed)
}

func TestLoadScript_RejectsUnknownKeys(t *testing.T) {
	path := writeFile(t, "script.yaml", "steps:\n  - tick: 1\n")

	_, err := LoadScript(path)

	assert.Error(t, err)
}

func TestPrintDecisionSummary(t *testing.T) {
	var buf bytes.Buffer
	decisions := []journal.Decision{
		{Kind: "pause"}, {Kind: "resume"}, {Kind: "undo"},
	}

	printDecisionSummary(&buf, decisions)

	assert.Contains(t, buf.String(), "Decisions            : 3 (undo 1, redo 0, orders touched 0)")
	assert.Contains(t, buf.String(), "pause")
}

func TestSweep_ResultsInSeedOrder(t *testing.T) {
	// GIVEN three seeds run two at a time
	base := sim.DefaultSettings()
	base.SessionMinutes = 15
	seeds := []int64{3, 1, 2}

	// WHEN the sweep runs
	results, err := Sweep(context.Background(), base, seeds, 2, sim.Minute)

	// THEN results follow the input order and match single runs
	require.NoError(t, err)
	require.Len(t, results, 3)
	for i, r := range results {
		assert.Equal(t, seeds[i], r.Seed)
		assert.Equal(t, "ok", r.Status)
	}
	single := base.Clone()
	single.Seed = "1"
	state, err := runToCompletion(context.Background(), single, sim.Minute)
	require.NoError(t, err)
	assert.Equal(t, state.KPI, results[1].KPI)

	var buf bytes.Buffer
	printSweep(&buf, results)
	assert.Contains(t, buf.String(), "mean on-time rate over 3 seeds")
}

func TestSweep_FailingSeedDoesNotStopOthers(t *testing.T) {
	// GIVEN predetermined settings without a schedule, which fail to start
	base := sim.DefaultSettings()
	base.SessionMinutes = 15
	base.Mode = sim.ModePredetermined

	results, err := Sweep(context.Background(), base, []int64{1, 2}, 2, sim.Minute)

	require.NoError(t, err)
	for _, r := range results {
		assert.Equal(t, "error", r.Status)
		assert.Equal(t, "empty_schedule", r.Detail)
	}
}
