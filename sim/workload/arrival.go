package workload

import (
	"math"
	"math/rand"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/inference-sim/orderflow-sim/sim"
)

// ArrivalSampler draws the gap before the next procedural order.
type ArrivalSampler interface {
	// SampleIAT returns the next inter-arrival time in ticks, never below 1.
	SampleIAT(rng *rand.Rand) int64
}

// PoissonSampler draws exponential gaps (CV = 1).
type PoissonSampler struct {
	ratePerTick float64
}

func (s *PoissonSampler) SampleIAT(rng *rand.Rand) int64 {
	return ceilTicks(distuv.Exponential{Rate: s.ratePerTick, Src: rng}.Rand())
}

// GammaSampler draws Gamma gaps. With CV > 1 orders arrive in clumps
// separated by quiet stretches.
type GammaSampler struct {
	shape float64 // 1/CV²
	rate  float64 // shape × orders per tick
}

func (s *GammaSampler) SampleIAT(rng *rand.Rand) int64 {
	return ceilTicks(distuv.Gamma{Alpha: s.shape, Beta: s.rate, Src: rng}.Rand())
}

func ceilTicks(v float64) int64 {
	return max(int64(math.Ceil(v)), 1)
}

// NewArrivalSampler returns a sampler averaging perHour orders per simulated
// hour. cv <= 1 gives Poisson arrivals, larger values Gamma bursts.
func NewArrivalSampler(perHour, cv float64) ArrivalSampler {
	ratePerTick := max(perHour/float64(sim.Hour), 1e-12)
	if cv <= 1 {
		return &PoissonSampler{ratePerTick: ratePerTick}
	}
	shape := 1.0 / (cv * cv)
	if shape < 0.01 {
		logrus.Warnf("Gamma shape %.4f (CV=%.1f) is very small; falling back to Poisson", shape, cv)
		return &PoissonSampler{ratePerTick: ratePerTick}
	}
	return &GammaSampler{shape: shape, rate: shape * ratePerTick}
}
