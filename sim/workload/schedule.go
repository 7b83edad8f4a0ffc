package workload

import (
	"bytes"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/inference-sim/orderflow-sim/sim"
	"github.com/inference-sim/orderflow-sim/sim/simerr"
)

// ScheduleFile is the on-disk form of a predetermined order list.
type ScheduleFile struct {
	Orders []sim.ScheduledOrderSpec `yaml:"orders"`
}

// LoadSchedule reads and parses a YAML schedule file.
// Uses strict parsing: unrecognized keys (typos) are rejected.
func LoadSchedule(path string) ([]sim.ScheduledOrderSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading schedule: %w", err)
	}
	return ParseSchedule(data)
}

// ParseSchedule decodes a schedule document.
func ParseSchedule(data []byte) ([]sim.ScheduledOrderSpec, error) {
	var f ScheduleFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&f); err != nil {
		return nil, fmt.Errorf("parsing schedule: %w", err)
	}
	return f.Orders, nil
}

// BuildSchedule converts authored specs into scheduled orders sorted by
// release time; entries with equal release times keep their authored order.
// Route validity is checked by the engine on arrival, not here.
func BuildSchedule(specs []sim.ScheduledOrderSpec) ([]sim.ScheduledOrder, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("predetermined mode: %w", simerr.ErrEmptySchedule)
	}
	out := make([]sim.ScheduledOrder, 0, len(specs))
	for i, spec := range specs {
		so, err := buildOrder(spec)
		if err != nil {
			return nil, fmt.Errorf("schedule[%d]: %w", i, err)
		}
		out = append(out, so)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ReleaseTime < out[j].ReleaseTime
	})
	return out, nil
}

func buildOrder(spec sim.ScheduledOrderSpec) (sim.ScheduledOrder, error) {
	if spec.ID == "" {
		return sim.ScheduledOrder{}, fmt.Errorf("order id required: %w", simerr.ErrInvalidSettings)
	}
	if spec.ReleaseMinute < 0 {
		return sim.ScheduledOrder{}, fmt.Errorf("order %s: release_minute must be non-negative: %w", spec.ID, simerr.ErrInvalidSettings)
	}
	if spec.DueMinute != nil && spec.DueInMinutes != nil {
		return sim.ScheduledOrder{}, fmt.Errorf("order %s: due_minute and due_in_minutes are mutually exclusive: %w", spec.ID, simerr.ErrInvalidSettings)
	}
	release := sim.MinutesToTicks(spec.ReleaseMinute)

	var due int64
	switch {
	case spec.DueMinute != nil:
		due = sim.MinutesToTicks(*spec.DueMinute)
	case spec.DueInMinutes != nil:
		due = release + sim.MinutesToTicks(*spec.DueInMinutes)
	}

	o := sim.NewOrder(spec.ID, spec.Route, due, release)
	o.CustomerID = spec.CustomerID
	o.Value = spec.Value
	if spec.Priority != "" {
		p, err := sim.ParsePriority(spec.Priority)
		if err != nil {
			return sim.ScheduledOrder{}, fmt.Errorf("order %s: %w", spec.ID, err)
		}
		o.Priority = p
	}
	if spec.HalfOrderReason != "" {
		reason, err := sim.ParseHalfOrderReason(spec.HalfOrderReason)
		if err != nil {
			return sim.ScheduledOrder{}, fmt.Errorf("order %s: %w", spec.ID, err)
		}
		if err := o.MarkHalfOrder(reason); err != nil {
			return sim.ScheduledOrder{}, err
		}
	}
	if len(spec.StationMinutes) > 0 {
		o.StationDurations = make(map[string]int64, len(spec.StationMinutes))
		for station, m := range spec.StationMinutes {
			if m <= 0 {
				return sim.ScheduledOrder{}, fmt.Errorf("order %s: station_minutes.%s must be positive: %w", spec.ID, station, simerr.ErrInvalidSettings)
			}
			o.StationDurations[station] = sim.MinutesToTicks(m)
		}
	}
	return sim.ScheduledOrder{Order: o, ReleaseTime: release}, nil
}
