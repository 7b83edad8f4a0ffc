package workload

import (
	"fmt"
	"math"
	"math/rand"
	"slices"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/orderflow-sim/sim"
)

// Generator is the procedural OrderSource. Orders arrive with exponential
// (or, for advanced complexity, Gamma-bursty) inter-arrival times; priority,
// value, route and due window come from the complexity profile.
// Deterministic given the same settings and key.
type Generator struct {
	profile   Profile
	stations  []*sim.Station // one per department, config order
	customers []sim.Customer
	tierPick  *WeightedChoice
	priority  *WeightedChoice

	rushEnabled bool
	rushRate    float64

	rng         *rand.Rand
	arrival     ArrivalSampler
	nextArrival int64
	horizon     int64
	seq         int
}

// NewGenerator builds a procedural generator drawing from the workload
// subsystem of key. Orders are released strictly before the session ends.
func NewGenerator(settings sim.GameSettings, key sim.SimulationKey) (*Generator, error) {
	profile, err := ProfileFor(settings.ComplexityLevel)
	if err != nil {
		return nil, err
	}
	departments := settings.Departments
	if len(departments) == 0 {
		departments = sim.DefaultDepartments()
	}
	g := &Generator{
		profile:     profile,
		customers:   sim.NewCustomerRegistry(settings.Customers).List(),
		priority:    NewWeightedChoice(profile.PriorityWeights),
		rushEnabled: settings.Events.RushOrders,
		rushRate:    settings.RushOrderRate,
		rng:         sim.NewPartitionedRNG(key).ForSubsystem(sim.SubsystemWorkload),
		horizon:     settings.SessionDuration(),
	}
	for _, d := range departments {
		g.stations = append(g.stations, sim.NewStation(d))
	}
	weights := make([]float64, len(g.customers))
	for i, c := range g.customers {
		weights[i] = c.Tier.Weight()
	}
	g.tierPick = NewWeightedChoice(weights)
	g.arrival = NewArrivalSampler(settings.OrderGenerationRate, profile.BurstCV)
	g.nextArrival = g.arrival.SampleIAT(g.rng)
	return g, nil
}

// Next implements sim.OrderSource.
func (g *Generator) Next(limit int64) []sim.ScheduledOrder {
	var out []sim.ScheduledOrder
	for g.nextArrival <= limit && g.nextArrival < g.horizon {
		out = append(out, sim.ScheduledOrder{Order: g.build(g.nextArrival), ReleaseTime: g.nextArrival})
		g.nextArrival += g.arrival.SampleIAT(g.rng)
	}
	return out
}

// SetRate implements sim.RateAdjuster. The arrival already drawn keeps its
// time; every later gap uses the new rate.
func (g *Generator) SetRate(perHour float64) {
	g.arrival = NewArrivalSampler(perHour, g.profile.BurstCV)
	logrus.Debugf("Generator rate set to %.2f orders/hour", perHour)
}

// SetRushOrders implements sim.RushToggler. Orders already drawn keep
// their priority and due time.
func (g *Generator) SetRushOrders(enabled bool) {
	g.rushEnabled = enabled
	logrus.Debugf("Generator rush orders enabled=%t", enabled)
}

// build draws one order. The draw sequence per order is fixed so that the
// stream depends only on the key and the settings.
func (g *Generator) build(release int64) *sim.Order {
	g.seq++
	id := fmt.Sprintf("ORD-%04d", g.seq)

	route, picked := g.route()
	o := sim.NewOrder(id, route, 0, release)
	o.Priority = g.profile.Priorities[g.priority.Pick(g.rng)]
	o.Value = math.Round(g.profile.Value.Sample(g.rng))
	if len(g.customers) > 0 {
		o.CustomerID = g.customers[g.tierPick.Pick(g.rng)].ID
	}
	if g.rng.Float64() < g.profile.HalfOrderProb {
		reason := sim.HalfOrderReasons[g.rng.Intn(len(sim.HalfOrderReasons))]
		if err := o.MarkHalfOrder(reason); err != nil {
			logrus.Warnf("Generator: %v", err)
		}
	}

	slack := g.profile.DueSlack.Sample(g.rng)
	noDue := g.rng.Float64() < g.profile.NoDueProb
	rush := g.rushEnabled && g.rng.Float64() < g.rushRate
	if rush {
		o.Rush = true
		o.Priority = sim.PriorityUrgent
		slack /= 2
		noDue = false
	}
	if !noDue {
		var work int64
		for _, st := range picked {
			work += st.EffectiveDuration(o)
		}
		o.DueTime = release + int64(math.Ceil(slack*float64(work)))
	}
	return o
}

// route picks between RouteMin and RouteMax stations, kept in floor order.
func (g *Generator) route() ([]string, []*sim.Station) {
	n := len(g.stations)
	lo, hi := min(g.profile.RouteMin, n), min(g.profile.RouteMax, n)
	k := lo
	if hi > lo {
		k += g.rng.Intn(hi - lo + 1)
	}
	idx := g.rng.Perm(n)[:k]
	slices.Sort(idx)

	route := make([]string, k)
	picked := make([]*sim.Station, k)
	for i, j := range idx {
		route[i] = g.stations[j].ID
		picked[i] = g.stations[j]
	}
	return route, picked
}
