package workload

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/orderflow-sim/sim"
	"github.com/inference-sim/orderflow-sim/sim/simerr"
)

// ParseSeed parses a decimal int64 seed.
func ParseSeed(s string) (sim.SimulationKey, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("seed %q: %w", s, simerr.ErrInvalidSeed)
	}
	return sim.NewSimulationKey(v), nil
}

// NewSource builds the order source selected by settings.Mode together with
// the key the engine's own random streams derive from.
//
// Procedural mode requires a numeric seed. Predetermined mode draws no orders
// at random, so a non-numeric seed is hashed into a key instead of rejected.
func NewSource(settings sim.GameSettings) (sim.OrderSource, sim.SimulationKey, error) {
	switch settings.Mode {
	case sim.ModePredetermined:
		orders, err := BuildSchedule(settings.Schedule)
		if err != nil {
			return nil, 0, err
		}
		key, err := ParseSeed(settings.Seed)
		if err != nil {
			key = sim.KeyFromString(settings.Seed)
			logrus.Debugf("Non-numeric seed %q hashed to key %d", settings.Seed, key)
		}
		return sim.NewStaticSource(orders), key, nil

	default:
		key, err := ParseSeed(settings.Seed)
		if err != nil {
			return nil, 0, err
		}
		g, err := NewGenerator(settings, key)
		if err != nil {
			return nil, 0, err
		}
		return g, key, nil
	}
}
