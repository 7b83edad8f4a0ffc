package sim

import (
	"fmt"

	"github.com/inference-sim/orderflow-sim/sim/simerr"
)

// DispatchPolicy names the rule a station uses to pick its next order.
type DispatchPolicy string

const (
	PolicyFIFO DispatchPolicy = "fifo"
	PolicyEDD  DispatchPolicy = "edd"
	PolicySPT  DispatchPolicy = "spt"
)

// ValidDispatchPolicies is the set of recognized dispatch policy names.
// Empty defaults to FIFO.
var ValidDispatchPolicies = map[DispatchPolicy]bool{"": true, PolicyFIFO: true, PolicyEDD: true, PolicySPT: true}

// IsValidDispatchPolicy returns true if name is a recognized policy.
func IsValidDispatchPolicy(name string) bool {
	return ValidDispatchPolicies[DispatchPolicy(name)]
}

// ParseDispatchPolicy converts s into a DispatchPolicy, rejecting unknown values.
func ParseDispatchPolicy(s string) (DispatchPolicy, error) {
	if !IsValidDispatchPolicy(s) {
		return "", fmt.Errorf("dispatch policy %q: %w", s, simerr.ErrUnknownValue)
	}
	if s == "" {
		return PolicyFIFO, nil
	}
	return DispatchPolicy(s), nil
}

// Dispatcher selects the next order to leave a station queue.
// Select returns the index into queue, or -1 when nothing is eligible.
// Orders on hold are never eligible. Ties always resolve to the lowest index
// (earliest enqueue) so every policy degrades to FIFO.
type Dispatcher interface {
	Select(queue []*Order, st *Station) int
}

// FIFODispatcher picks the earliest-enqueued eligible order.
type FIFODispatcher struct{}

func (f *FIFODispatcher) Select(queue []*Order, _ *Station) int {
	for i, o := range queue {
		if o.Status != StatusOnHold {
			return i
		}
	}
	return -1
}

// EDDDispatcher picks the eligible order with the earliest due time.
// Orders without a due time sort after every dated order.
type EDDDispatcher struct{}

func (e *EDDDispatcher) Select(queue []*Order, _ *Station) int {
	best := -1
	for i, o := range queue {
		if o.Status == StatusOnHold {
			continue
		}
		if best < 0 || dueKey(o) < dueKey(queue[best]) {
			best = i
		}
	}
	return best
}

func dueKey(o *Order) int64 {
	if o.DueTime <= 0 {
		return 1<<63 - 1
	}
	return o.DueTime
}

// SPTDispatcher picks the eligible order with the shortest authored or base
// duration at this station.
type SPTDispatcher struct{}

func (s *SPTDispatcher) Select(queue []*Order, st *Station) int {
	best := -1
	var bestDur int64
	for i, o := range queue {
		if o.Status == StatusOnHold {
			continue
		}
		d := o.DurationAt(st.ID, st.BaseDuration)
		if best < 0 || d < bestDur {
			best, bestDur = i, d
		}
	}
	return best
}

// NewDispatcher creates a Dispatcher by policy.
// Empty string defaults to FIFODispatcher.
// Panics on unrecognized names.
func NewDispatcher(policy DispatchPolicy) Dispatcher {
	if !ValidDispatchPolicies[policy] {
		panic(fmt.Sprintf("unknown dispatch policy %q", policy))
	}
	switch policy {
	case "", PolicyFIFO:
		return &FIFODispatcher{}
	case PolicyEDD:
		return &EDDDispatcher{}
	case PolicySPT:
		return &SPTDispatcher{}
	default:
		panic(fmt.Sprintf("unhandled dispatch policy %q", policy))
	}
}
