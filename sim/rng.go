package sim

import (
	"hash/fnv"
	"math/rand"
)

// SimulationKey is the root of every random draw in a session. Equal keys,
// settings and tick/command sequences yield byte-identical GameState snapshots.
type SimulationKey int64

// NewSimulationKey wraps a numeric seed.
func NewSimulationKey(seed int64) SimulationKey {
	return SimulationKey(seed)
}

// KeyFromString hashes a non-numeric seed label into a key.
// Predetermined sessions accept any label as their seed.
func KeyFromString(s string) SimulationKey {
	return SimulationKey(fnv1a64(s))
}

// Random streams. Each one is seeded independently so that enabling one
// kind of random event never shifts the draws of another.
const (
	SubsystemWorkload  = "workload"  // procedural orders; seeded with the key itself
	SubsystemEquipment = "equipment" // equipment failure rolls
	SubsystemQuality   = "quality"   // quality checks after each step
)

// PartitionedRNG hands out one lazily created *rand.Rand per stream.
// The workload stream is seeded with the key, so a procedural session and a
// standalone generator with the same seed see the same orders. Every other
// stream is seeded with key XOR fnv1a64(name).
//
// Not safe for concurrent use; the simulator owns it.
type PartitionedRNG struct {
	key     SimulationKey
	streams map[string]*rand.Rand
}

// NewPartitionedRNG returns an empty set of streams for key.
func NewPartitionedRNG(key SimulationKey) *PartitionedRNG {
	return &PartitionedRNG{key: key, streams: make(map[string]*rand.Rand)}
}

// ForSubsystem returns the stream for name, creating it on first use.
// Repeated calls return the same instance.
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	r, ok := p.streams[name]
	if !ok {
		r = rand.New(rand.NewSource(p.seedFor(name)))
		p.streams[name] = r
	}
	return r
}

// Chance draws once from the named stream and reports whether the draw fell
// below prob. Always consumes exactly one value.
func (p *PartitionedRNG) Chance(name string, prob float64) bool {
	return p.ForSubsystem(name).Float64() < prob
}

// Key returns the key the streams derive from.
func (p *PartitionedRNG) Key() SimulationKey {
	return p.key
}

func (p *PartitionedRNG) seedFor(name string) int64 {
	if name == SubsystemWorkload {
		return int64(p.key)
	}
	return int64(p.key) ^ fnv1a64(name)
}

func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}
