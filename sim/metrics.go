// Recomputes performance KPIs and the delivery forecast from current state.
// Everything here is derived: it is rebuilt from scratch after every event
// batch instead of being patched incrementally.

package sim

import (
	"fmt"
	"io"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Distribution captures a statistical summary of a metric.
type Distribution struct {
	Mean  float64 `json:"mean"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Count int     `json:"count"`
}

// NewDistribution computes a Distribution from raw values.
// Returns zero-value Distribution for empty input.
func NewDistribution(values []float64) Distribution {
	if len(values) == 0 {
		return Distribution{}
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	return Distribution{
		Mean:  stat.Mean(sorted, nil),
		P50:   percentile(sorted, 50),
		P95:   percentile(sorted, 95),
		Min:   sorted[0],
		Max:   sorted[len(sorted)-1],
		Count: len(sorted),
	}
}

// percentile computes the p-th percentile using linear interpolation.
// Input must be sorted.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p / 100.0 * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}
	frac := rank - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

// KPISnapshot is the headline performance view attached to completion events.
type KPISnapshot struct {
	Elapsed             int64        `json:"elapsed"`
	Completed           int          `json:"completed"`
	OnTime              int          `json:"onTime"`
	Late                int          `json:"late"`
	Done                int          `json:"done"`
	Rejected            int          `json:"rejected"`
	WIP                 int          `json:"wip"`
	OnTimeRate          float64      `json:"onTimeRate"`          // [0,100]
	AverageLeadTime     float64      `json:"averageLeadTime"`     // ticks
	CapacityUtilization float64      `json:"capacityUtilization"` // [0,100]
	LeadTime            Distribution `json:"leadTime"`
	Score               float64      `json:"score"`
}

// ForecastData is the derived capacity-based forecast.
//
// ExpectedDelivery is a heuristic, not a guarantee: elapsed time plus the
// effective durations of the remaining route, inflated by the bottleneck's
// queue depth divided by its throughput.
type ForecastData struct {
	AverageLeadTime      float64          `json:"averageLeadTime"`
	CapacityUtilization  float64          `json:"capacityUtilization"`
	OnTimeRate           float64          `json:"onTimeRate"`
	ExpectedDelivery     map[string]int64 `json:"expectedDelivery"`
	BottleneckID         string           `json:"bottleneckId"`
	WIPCapacityRemaining map[string]int   `json:"wipCapacityRemaining"`
}

// recomputeMetrics rebuilds the KPI snapshot and the forecast.
func (sim *Simulator) recomputeMetrics() {
	kpi := KPISnapshot{
		Elapsed:  sim.Clock.Elapsed,
		Rejected: len(sim.rejected),
		Score:    sim.Score,
	}
	leadTimes := make([]float64, 0, len(sim.completed))
	for _, o := range sim.completed {
		switch o.Status {
		case StatusCompletedOnTime:
			kpi.OnTime++
		case StatusCompletedLate:
			kpi.Late++
		case StatusDone:
			kpi.Done++
		}
		leadTimes = append(leadTimes, float64(o.CompletedAt-o.CreatedAt))
	}
	kpi.Completed = len(sim.completed)
	if dated := kpi.OnTime + kpi.Late; dated > 0 {
		kpi.OnTimeRate = clampPercent(float64(kpi.OnTime) / float64(dated) * 100)
	}
	kpi.LeadTime = NewDistribution(leadTimes)
	kpi.AverageLeadTime = kpi.LeadTime.Mean

	util := 0.0
	for _, st := range sim.stations {
		kpi.WIP += st.WIP()
		util += st.Utilization
	}
	if len(sim.stations) > 0 {
		kpi.CapacityUtilization = clampPercent(util / float64(len(sim.stations)))
	}
	sim.kpi = kpi
	sim.forecast = sim.buildForecast(kpi)
}

func (sim *Simulator) buildForecast(kpi KPISnapshot) ForecastData {
	f := ForecastData{
		AverageLeadTime:      kpi.AverageLeadTime,
		CapacityUtilization:  kpi.CapacityUtilization,
		OnTimeRate:           kpi.OnTimeRate,
		ExpectedDelivery:     make(map[string]int64, len(sim.active)),
		WIPCapacityRemaining: make(map[string]int, len(sim.stations)),
	}
	for _, st := range sim.stations {
		f.WIPCapacityRemaining[st.ID] = st.Limit() - st.WIP()
	}
	bottleneck := sim.bottleneck()
	var inflation int64
	if bottleneck != nil {
		f.BottleneckID = bottleneck.ID
		if rate := bottleneck.ThroughputRate(sim.Clock.Elapsed); rate > 0 {
			inflation = int64(math.Ceil(float64(bottleneck.QueueLen()) / rate))
		}
	}
	for _, o := range sim.active {
		f.ExpectedDelivery[o.ID] = sim.Clock.Elapsed + sim.remainingWork(o) + inflation
	}
	return f
}

// bottleneck returns the station with the highest utilization. Ties go to
// the larger WIP, then to configuration order. Nil while the floor is idle.
func (sim *Simulator) bottleneck() *Station {
	var best *Station
	for _, st := range sim.stations {
		if best == nil ||
			st.Utilization > best.Utilization ||
			(st.Utilization == best.Utilization && st.WIP() > best.WIP()) {
			best = st
		}
	}
	if best == nil || (best.Utilization == 0 && best.WIP() == 0) {
		return nil
	}
	return best
}

// remainingWork sums the effective durations of the steps o still has to do.
// The current step counts its remaining slot time when in process.
func (sim *Simulator) remainingWork(o *Order) int64 {
	var total int64
	for i, id := range o.RemainingRoute() {
		st, ok := sim.stationIndex[id]
		if !ok {
			continue
		}
		if i == 0 {
			if rem, inProcess := st.Remaining(o); inProcess {
				total += rem
				continue
			}
		}
		total += st.EffectiveDuration(o)
	}
	return total
}

func clampPercent(v float64) float64 {
	return math.Min(math.Max(v, 0), 100)
}

// Print writes a human-readable KPI summary.
func (k KPISnapshot) Print(w io.Writer) {
	fmt.Fprintln(w, "=== Session KPIs ===")
	fmt.Fprintf(w, "Elapsed              : %s\n", formatElapsed(k.Elapsed))
	fmt.Fprintf(w, "Completed Orders     : %d (on-time %d, late %d, done %d)\n", k.Completed, k.OnTime, k.Late, k.Done)
	fmt.Fprintf(w, "Rejected Orders      : %d\n", k.Rejected)
	fmt.Fprintf(w, "Work In Progress     : %d\n", k.WIP)
	fmt.Fprintf(w, "On-Time Rate         : %.1f%%\n", k.OnTimeRate)
	if k.Completed > 0 {
		fmt.Fprintf(w, "Average Lead Time    : %.1f min\n", k.AverageLeadTime/float64(Minute))
		fmt.Fprintf(w, "Lead Time p95        : %.1f min\n", k.LeadTime.P95/float64(Minute))
	}
	fmt.Fprintf(w, "Capacity Utilization : %.1f%%\n", k.CapacityUtilization)
	fmt.Fprintf(w, "Score                : %.0f\n", k.Score)
}
