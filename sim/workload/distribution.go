package workload

import (
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
)

// Sampler draws a real-valued sample, e.g. an order value or a due-date slack factor.
type Sampler interface {
	Sample(rng *rand.Rand) float64
}

// GaussianSampler produces clamped Gaussian samples.
type GaussianSampler struct {
	Mean, StdDev float64
	Min, Max     float64
}

func (s *GaussianSampler) Sample(rng *rand.Rand) float64 {
	if s.Min == s.Max {
		return s.Min
	}
	val := distuv.Normal{Mu: s.Mean, Sigma: s.StdDev, Src: rng}.Rand()
	return math.Min(s.Max, math.Max(s.Min, val))
}

// ConstantSampler always returns the same fixed value.
type ConstantSampler struct {
	Value float64
}

func (s *ConstantSampler) Sample(_ *rand.Rand) float64 {
	return s.Value
}

// WeightedChoice picks an index with probability proportional to its weight,
// using inverse CDF via binary search.
type WeightedChoice struct {
	cdf []float64
}

// NewWeightedChoice normalizes weights into a CDF. Non-positive weights are
// never picked. With no positive weight the choice always returns 0.
func NewWeightedChoice(weights []float64) *WeightedChoice {
	total := 0.0
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	cdf := make([]float64, len(weights))
	if total == 0 {
		return &WeightedChoice{cdf: cdf}
	}
	cumulative := 0.0
	last := -1
	for i, w := range weights {
		if w > 0 {
			cumulative += w / total
			last = i
		}
		cdf[i] = cumulative
	}
	// Ensure the last positive entry is exactly 1.0
	for i := last; i < len(cdf); i++ {
		cdf[i] = 1.0
	}
	return &WeightedChoice{cdf: cdf}
}

// Pick draws one index.
func (w *WeightedChoice) Pick(rng *rand.Rand) int {
	if len(w.cdf) <= 1 || w.cdf[len(w.cdf)-1] == 0 {
		return 0
	}
	u := rng.Float64()
	idx := sort.Search(len(w.cdf), func(i int) bool { return w.cdf[i] > u })
	if idx >= len(w.cdf) {
		idx = len(w.cdf) - 1
	}
	return idx
}
