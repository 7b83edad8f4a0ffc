package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/orderflow-sim/sim/simerr"
)

func TestDefaultSettings_Valid(t *testing.T) {
	s := DefaultSettings()
	require.NoError(t, s.Validate())
	assert.Equal(t, 30*Minute, s.SessionDuration())
	assert.Len(t, s.Departments, 5)
}

func TestGameSettings_Validate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*GameSettings)
	}{
		{"session length", func(s *GameSettings) { s.SessionMinutes = 20 }},
		{"speed", func(s *GameSettings) { s.SpeedMultiplier = 3 }},
		{"complexity", func(s *GameSettings) { s.ComplexityLevel = "expert" }},
		{"mode", func(s *GameSettings) { s.Mode = "random" }},
		{"zero rate in procedural mode", func(s *GameSettings) { s.OrderGenerationRate = 0 }},
		{"quality rate above 1", func(s *GameSettings) { s.QualityIssueRate = 1.5 }},
		{"negative maintenance", func(s *GameSettings) { s.MaintenanceMinutes = -1 }},
		{"zero capacity", func(s *GameSettings) { s.Departments[0].Capacity = 0 }},
		{"unknown policy", func(s *GameSettings) { s.Departments[0].Policy = "lifo" }},
		{"zero base duration", func(s *GameSettings) { s.Departments[0].BaseMinutes = 0 }},
		{"duplicate department", func(s *GameSettings) { s.Departments[1].ID = s.Departments[0].ID }},
		{"condition above 1", func(s *GameSettings) { s.Departments[0].EquipmentCondition = 1.2 }},
		{"unknown tier", func(s *GameSettings) { s.Customers[0].Tier = "platinum" }},
		{"duplicate customer", func(s *GameSettings) { s.Customers[1].ID = s.Customers[0].ID }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.mutate(&s)
			assert.ErrorIs(t, s.Validate(), simerr.ErrInvalidSettings)
		})
	}
}

func TestGameSettings_Validate_PredeterminedIgnoresRate(t *testing.T) {
	s := DefaultSettings()
	s.Mode = ModePredetermined
	s.OrderGenerationRate = 0
	assert.NoError(t, s.Validate())
}

func TestGameSettings_Clone_IsDeep(t *testing.T) {
	due := 12.0
	s := DefaultSettings()
	s.Schedule = []ScheduledOrderSpec{{ID: "A", Route: []string{"cutting"}, DueMinute: &due, StationMinutes: map[string]float64{"cutting": 3}}}

	c := s.Clone()
	c.Departments[0].Capacity = 99
	c.Schedule[0].Route[0] = "welding"
	*c.Schedule[0].DueMinute = 1
	c.Schedule[0].StationMinutes["cutting"] = 9

	assert.Equal(t, 1, s.Departments[0].Capacity)
	assert.Equal(t, "cutting", s.Schedule[0].Route[0])
	assert.Equal(t, 12.0, *s.Schedule[0].DueMinute)
	assert.Equal(t, 3.0, s.Schedule[0].StationMinutes["cutting"])
}

func TestSettingsPatch_Validate(t *testing.T) {
	ids := map[string]bool{"cut": true}
	speed, badSpeed := 2, 5
	rate := -1.0

	assert.NoError(t, (&SettingsPatch{SpeedMultiplier: &speed}).Validate(ids))
	assert.ErrorIs(t, (&SettingsPatch{SpeedMultiplier: &badSpeed}).Validate(ids), simerr.ErrInvalidSettings)
	assert.ErrorIs(t, (&SettingsPatch{OrderGenerationRate: &rate}).Validate(ids), simerr.ErrInvalidSettings)
	assert.ErrorIs(t, (&SettingsPatch{StationPolicies: map[string]DispatchPolicy{"cut": "random"}}).Validate(ids), simerr.ErrInvalidSettings)
	assert.ErrorIs(t, (&SettingsPatch{}).Validate(ids), simerr.ErrInvalidSettings)
}

func TestClock_PausedTimeDoesNotCountAsElapsed(t *testing.T) {
	c := Clock{Speed: 2}

	c.advanceActive(c.Scale(30))
	c.advancePaused(c.Scale(10))

	assert.Equal(t, int64(80), c.Now)
	assert.Equal(t, int64(60), c.Elapsed)
	assert.Equal(t, int64(20), c.PausedTotal)
}

func TestMinutesToTicks(t *testing.T) {
	assert.Equal(t, int64(600), MinutesToTicks(10))
	assert.Equal(t, int64(90), MinutesToTicks(1.5))
	assert.Equal(t, int64(0), MinutesToTicks(0))
}

func TestIsValidSpeed(t *testing.T) {
	for _, s := range []int{1, 2, 4, 8} {
		assert.True(t, IsValidSpeed(s), "speed %d", s)
	}
	for _, s := range []int{0, 3, 16, -1} {
		assert.False(t, IsValidSpeed(s), "speed %d", s)
	}
}
