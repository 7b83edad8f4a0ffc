package workload

import (
	"fmt"
	"slices"

	"github.com/inference-sim/orderflow-sim/sim"
	"github.com/inference-sim/orderflow-sim/sim/simerr"
)

// Profile holds the generator tables for one complexity level.
type Profile struct {
	RouteMin, RouteMax int            // stations visited per order
	Priorities         []sim.Priority // parallel to PriorityWeights
	PriorityWeights    []float64
	Value              Sampler // order value
	DueSlack           Sampler // due window as a multiple of nominal route work
	NoDueProb          float64 // chance an order carries no due time
	HalfOrderProb      float64
	BurstCV            float64 // arrival CV; <= 1 means Poisson
}

var profiles = map[sim.ComplexityLevel]Profile{
	sim.ComplexityBasic: {
		RouteMin: 2, RouteMax: 3,
		Priorities:      sim.Priorities,
		PriorityWeights: []float64{0.3, 0.6, 0.1, 0},
		Value:           &GaussianSampler{Mean: 400, StdDev: 100, Min: 100, Max: 800},
		DueSlack:        &GaussianSampler{Mean: 3.0, StdDev: 0.5, Min: 2.0, Max: 4.5},
		NoDueProb:       0.1,
		HalfOrderProb:   0.02,
		BurstCV:         1,
	},
	sim.ComplexityIntermediate: {
		RouteMin: 3, RouteMax: 4,
		Priorities:      sim.Priorities,
		PriorityWeights: []float64{0.2, 0.5, 0.25, 0.05},
		Value:           &GaussianSampler{Mean: 800, StdDev: 250, Min: 200, Max: 2000},
		DueSlack:        &GaussianSampler{Mean: 2.2, StdDev: 0.5, Min: 1.3, Max: 3.5},
		NoDueProb:       0.05,
		HalfOrderProb:   0.05,
		BurstCV:         1,
	},
	sim.ComplexityAdvanced: {
		RouteMin: 3, RouteMax: 5,
		Priorities:      sim.Priorities,
		PriorityWeights: []float64{0.1, 0.45, 0.3, 0.15},
		Value:           &GaussianSampler{Mean: 1500, StdDev: 600, Min: 300, Max: 5000},
		DueSlack:        &GaussianSampler{Mean: 1.7, StdDev: 0.4, Min: 1.1, Max: 3.0},
		NoDueProb:       0.05,
		HalfOrderProb:   0.08,
		BurstCV:         1.8,
	},
}

// ProfileFor returns the generator tables for level; the empty level means intermediate.
func ProfileFor(level sim.ComplexityLevel) (Profile, error) {
	if level == "" {
		level = sim.ComplexityIntermediate
	}
	p, ok := profiles[level]
	if !ok {
		return Profile{}, fmt.Errorf("complexity level %q: %w", level, simerr.ErrUnknownValue)
	}
	return p, nil
}

// Built-in scenario presets for common shop-floor patterns.
// Each returns valid settings ready for NewSource.

// ScenarioSteadyFlow is a calm 30-minute shift at a moderate arrival rate.
func ScenarioSteadyFlow(seed string) sim.GameSettings {
	s := sim.DefaultSettings()
	s.Seed = seed
	s.ComplexityLevel = sim.ComplexityBasic
	s.OrderGenerationRate = 8
	return s
}

// ScenarioRushHour floods the floor with urgent work for an hour.
func ScenarioRushHour(seed string) sim.GameSettings {
	s := sim.DefaultSettings()
	s.Seed = seed
	s.SessionMinutes = 60
	s.ComplexityLevel = sim.ComplexityAdvanced
	s.OrderGenerationRate = 20
	s.Events.RushOrders = true
	s.RushOrderRate = 0.3
	return s
}

// ScenarioBreakdowns runs on worn equipment with failures and quality issues enabled.
func ScenarioBreakdowns(seed string) sim.GameSettings {
	s := sim.DefaultSettings()
	s.Seed = seed
	s.Events.EquipmentFailures = true
	s.Events.QualityIssues = true
	s.QualityIssueRate = 0.1
	s.Departments = slices.Clone(s.Departments)
	for i := range s.Departments {
		s.Departments[i].EquipmentCondition *= 0.8
		s.Departments[i].Reliability *= 0.9
	}
	return s
}

// Scenarios maps preset names to constructors.
var Scenarios = map[string]func(seed string) sim.GameSettings{
	"steady":     ScenarioSteadyFlow,
	"rush-hour":  ScenarioRushHour,
	"breakdowns": ScenarioBreakdowns,
}
