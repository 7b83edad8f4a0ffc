package workload

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/orderflow-sim/sim"
)

func drainGenerator(t *testing.T, settings sim.GameSettings, key int64) []sim.ScheduledOrder {
	t.Helper()
	g, err := NewGenerator(settings, sim.NewSimulationKey(key))
	require.NoError(t, err)
	return g.Next(settings.SessionDuration())
}

func TestGenerator_SameKey_SameStream(t *testing.T) {
	// GIVEN identical settings and keys
	settings := sim.DefaultSettings()

	// WHEN two generators are drained
	a := drainGenerator(t, settings, 7)
	b := drainGenerator(t, settings, 7)

	// THEN they produce identical order streams
	require.Equal(t, len(a), len(b))
	require.NotEmpty(t, a)
	for i := range a {
		assert.Equal(t, a[i].ReleaseTime, b[i].ReleaseTime, "order %d", i)
		assert.Equal(t, a[i].Order, b[i].Order, "order %d", i)
	}
}

func TestGenerator_DifferentKeys_DifferentStreams(t *testing.T) {
	settings := sim.DefaultSettings()

	a := drainGenerator(t, settings, 1)
	b := drainGenerator(t, settings, 2)

	same := len(a) == len(b)
	for i := 0; same && i < len(a); i++ {
		same = a[i].ReleaseTime == b[i].ReleaseTime
	}
	assert.False(t, same, "different keys produced the same arrival times")
}

func TestGenerator_OrdersAreWellFormed(t *testing.T) {
	settings := sim.DefaultSettings()
	settings.SessionMinutes = 60
	settings.OrderGenerationRate = 60
	stations := make(map[string]int)
	for i, d := range settings.Departments {
		stations[d.ID] = i
	}

	orders := drainGenerator(t, settings, 42)

	require.NotEmpty(t, orders)
	customers := map[string]bool{"acme": true, "bolt": true, "craft": true, "delta": true}
	seen := make(map[string]bool)
	prev := int64(0)
	for _, so := range orders {
		o := so.Order
		assert.False(t, seen[o.ID], "duplicate id %s", o.ID)
		seen[o.ID] = true
		assert.GreaterOrEqual(t, so.ReleaseTime, prev, "release times must be non-decreasing")
		assert.Less(t, so.ReleaseTime, settings.SessionDuration())
		prev = so.ReleaseTime

		assert.Equal(t, sim.StatusQueued, o.Status)
		assert.True(t, customers[o.CustomerID], "unknown customer %q", o.CustomerID)
		assert.Greater(t, o.Value, 0.0)
		if o.DueTime != 0 {
			assert.Greater(t, o.DueTime, so.ReleaseTime)
		}

		// THEN routes follow floor order without repeats
		require.GreaterOrEqual(t, len(o.Route), 3)
		require.LessOrEqual(t, len(o.Route), 4)
		for i := 1; i < len(o.Route); i++ {
			assert.Less(t, stations[o.Route[i-1]], stations[o.Route[i]], "route %v out of floor order", o.Route)
		}
	}
}

func TestGenerator_ArrivalRate_MatchesSetting(t *testing.T) {
	// GIVEN a Poisson profile at 120 orders/hour over an hour
	settings := sim.DefaultSettings()
	settings.SessionMinutes = 60
	settings.OrderGenerationRate = 120

	// WHEN the generator is drained
	orders := drainGenerator(t, settings, 42)

	// THEN the count is within 25% of the expected 120
	assert.InDelta(t, 120, len(orders), 30)
}

func TestGenerator_Next_HonoursLimit(t *testing.T) {
	g, err := NewGenerator(sim.DefaultSettings(), sim.NewSimulationKey(3))
	require.NoError(t, err)

	first := g.Next(10 * sim.Minute)
	rest := g.Next(30 * sim.Minute)

	for _, so := range first {
		assert.LessOrEqual(t, so.ReleaseTime, 10*sim.Minute)
	}
	for _, so := range rest {
		assert.Greater(t, so.ReleaseTime, 10*sim.Minute)
	}
	assert.Empty(t, g.Next(30*sim.Minute), "orders must be returned once")
}

func TestGenerator_SetRate_ChangesLaterGaps(t *testing.T) {
	// GIVEN two generators with the same key
	settings := sim.DefaultSettings()
	settings.SessionMinutes = 60
	slow, err := NewGenerator(settings, sim.NewSimulationKey(5))
	require.NoError(t, err)
	fast, err := NewGenerator(settings, sim.NewSimulationKey(5))
	require.NoError(t, err)

	// WHEN one of them is sped up tenfold before draining
	fast.SetRate(settings.OrderGenerationRate * 10)

	// THEN it produces many more orders
	assert.Greater(t, len(fast.Next(sim.Hour)), 3*len(slow.Next(sim.Hour)))
}

func TestGenerator_RushOrders(t *testing.T) {
	settings := sim.DefaultSettings()
	settings.SessionMinutes = 60
	settings.OrderGenerationRate = 60
	settings.Events.RushOrders = true
	settings.RushOrderRate = 1

	for _, so := range drainGenerator(t, settings, 9) {
		assert.True(t, so.Order.Rush)
		assert.Equal(t, sim.PriorityUrgent, so.Order.Priority)
		assert.NotZero(t, so.Order.DueTime, "rush orders always carry a due time")
	}
}

func TestGenerator_SetRushOrders_AffectsLaterOrders(t *testing.T) {
	// GIVEN a generator started with rush orders off
	settings := sim.DefaultSettings()
	settings.SessionMinutes = 60
	settings.OrderGenerationRate = 120
	settings.RushOrderRate = 1
	settings.Events.RushOrders = false
	g, err := NewGenerator(settings, sim.NewSimulationKey(5))
	require.NoError(t, err)

	early := g.Next(30 * sim.Minute)
	require.NotEmpty(t, early)
	for _, so := range early {
		assert.False(t, so.Order.Rush, "order %s", so.Order.ID)
	}

	// WHEN rush orders are switched on mid-stream
	g.SetRushOrders(true)
	late := g.Next(sim.Hour)

	// THEN every later order is a rush order
	require.NotEmpty(t, late)
	for _, so := range late {
		assert.True(t, so.Order.Rush, "order %s", so.Order.ID)
		assert.Equal(t, sim.PriorityUrgent, so.Order.Priority)
	}
}

func TestGenerator_UnknownComplexity(t *testing.T) {
	settings := sim.DefaultSettings()
	settings.ComplexityLevel = "expert"

	_, err := NewGenerator(settings, sim.NewSimulationKey(1))

	assert.Error(t, err)
}

func TestArrivalSampler_MeanMatchesRate(t *testing.T) {
	tests := []struct {
		name string
		cv   float64
	}{
		{"poisson", 1},
		{"gamma bursty", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// GIVEN 60 orders/hour, so a 60-tick mean gap
			s := NewArrivalSampler(60, tt.cv)
			rng := sim.NewPartitionedRNG(sim.NewSimulationKey(42)).ForSubsystem(sim.SubsystemWorkload)

			// WHEN many gaps are drawn
			n := 20000
			var sum int64
			for i := 0; i < n; i++ {
				iat := s.SampleIAT(rng)
				require.GreaterOrEqual(t, iat, int64(1))
				sum += iat
			}

			// THEN the mean is within 10% of 60 (ceil adds ~0.5)
			mean := float64(sum) / float64(n)
			assert.Less(t, math.Abs(mean-60), 6.0, "mean gap %.2f", mean)
		})
	}
}

func TestWeightedChoice(t *testing.T) {
	rng := sim.NewPartitionedRNG(sim.NewSimulationKey(1)).ForSubsystem(sim.SubsystemWorkload)

	// GIVEN weights 0, 3, 1
	w := NewWeightedChoice([]float64{0, 3, 1})

	// WHEN sampled many times
	counts := make([]int, 3)
	for i := 0; i < 8000; i++ {
		counts[w.Pick(rng)]++
	}

	// THEN zero weight is never picked and the rest split about 3:1
	assert.Zero(t, counts[0])
	assert.InDelta(t, 6000, counts[1], 300)
	assert.InDelta(t, 2000, counts[2], 300)
	assert.Equal(t, 0, NewWeightedChoice([]float64{0, 0}).Pick(rng))
}

func TestGaussianSampler_Clamps(t *testing.T) {
	rng := sim.NewPartitionedRNG(sim.NewSimulationKey(1)).ForSubsystem(sim.SubsystemWorkload)
	s := &GaussianSampler{Mean: 10, StdDev: 100, Min: 5, Max: 15}

	for i := 0; i < 1000; i++ {
		v := s.Sample(rng)
		require.GreaterOrEqual(t, v, 5.0)
		require.LessOrEqual(t, v, 15.0)
	}
}

func TestScenarios_AreValid(t *testing.T) {
	for name, build := range Scenarios {
		t.Run(name, func(t *testing.T) {
			s := build("11")
			require.NoError(t, s.Validate())
			_, _, err := NewSource(s)
			assert.NoError(t, err)
		})
	}
}
