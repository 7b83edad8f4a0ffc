package sim

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/orderflow-sim/sim/simerr"
)

// StationStatus is the operating state of a station.
type StationStatus string

const (
	StationOperational StationStatus = "operational"
	StationMaintenance StationStatus = "maintenance"
)

// slot is one in-process position at a station.
type slot struct {
	order     *Order
	remaining int64 // ticks of work left; 0 once finished
	duration  int64 // effective duration computed at dispatch
	startedAt int64
	finished  bool // work done, waiting for the routing controller to move it on
}

// Station is a department modeled as a finite-capacity queueing server.
//
// Invariants (checked by tests after every operation):
//   - WIP() == queue.Len() + len(inProcess)
//   - 0 <= Utilization <= 100
//   - WIP() <= MaxQueueSize + Capacity
type Station struct {
	ID           string
	Name         string
	Capacity     int // concurrent in-process orders
	MaxQueueSize int
	Policy       DispatchPolicy
	BaseDuration int64 // ticks

	Efficiency         float64 // >0; 1.0 = nominal
	EquipmentCondition float64 // (0,1]; 1.0 = new
	Reliability        float64 // probability of surviving one hour without failure

	Status               StationStatus
	MaintenanceRemaining int64

	queue      *OrderQueue
	inProcess  []*slot
	dispatcher Dispatcher

	BusyTicks      int64 // slot-ticks spent processing
	TotalProcessed int
	CycleTimeSum   int64
	Utilization    float64
}

// NewStation builds a Station from its configuration.
// Panics on an unknown dispatch policy; callers validate settings first.
func NewStation(cfg DepartmentConfig) *Station {
	policy := cfg.Policy
	if policy == "" {
		policy = PolicyFIFO
	}
	return &Station{
		ID:                 cfg.ID,
		Name:               cfg.Name,
		Capacity:           max(cfg.Capacity, 1),
		MaxQueueSize:       max(cfg.MaxQueueSize, 0),
		Policy:             policy,
		BaseDuration:       max(MinutesToTicks(cfg.BaseMinutes), 1),
		Efficiency:         positiveOr(cfg.Efficiency, 1),
		EquipmentCondition: positiveOr(cfg.EquipmentCondition, 1),
		Reliability:        positiveOr(cfg.Reliability, 1),
		Status:             StationOperational,
		queue:              &OrderQueue{},
		dispatcher:         NewDispatcher(policy),
	}
}

func positiveOr(v, def float64) float64 {
	if v <= 0 {
		return def
	}
	return v
}

// WIP returns queued plus in-process orders.
func (s *Station) WIP() int {
	return s.queue.Len() + len(s.inProcess)
}

// QueueLen returns the number of waiting orders.
func (s *Station) QueueLen() int {
	return s.queue.Len()
}

// InProcessLen returns the number of occupied slots, finished ones included.
func (s *Station) InProcessLen() int {
	return len(s.inProcess)
}

// FreeSlots returns the number of unoccupied in-process slots.
func (s *Station) FreeSlots() int {
	return s.Capacity - len(s.inProcess)
}

// Limit is the admission bound on WIP.
func (s *Station) Limit() int {
	return s.MaxQueueSize + s.Capacity
}

// SetPolicy switches the dispatch policy. Queued orders are re-evaluated on
// the next Dispatch.
func (s *Station) SetPolicy(p DispatchPolicy) {
	s.dispatcher = NewDispatcher(p)
	if p == "" {
		p = PolicyFIFO
	}
	s.Policy = p
}

// Enqueue admits an order into the queue.
// Fails with ErrCapacityExceeded when WIP has reached MaxQueueSize + Capacity;
// the caller decides whether to reject, hold or retry the order.
func (s *Station) Enqueue(o *Order, now int64) error {
	if o.IsTerminal() {
		return fmt.Errorf("enqueue %s at %s: %w", o.ID, s.ID, simerr.ErrInvalidTransition)
	}
	if s.WIP() >= s.Limit() {
		return fmt.Errorf("enqueue %s at %s (wip %d/%d): %w", o.ID, s.ID, s.WIP(), s.Limit(), simerr.ErrCapacityExceeded)
	}
	if o.Status != StatusOnHold {
		o.Status = StatusQueued
	}
	o.Steps = append(o.Steps, StepRecord{StationID: s.ID, EnqueuedAt: now, StartedAt: Unset, CompletedAt: Unset})
	s.queue.Enqueue(o)
	return nil
}

// EffectiveDuration returns the processing time of o at this station:
// base × multiplier × 1/efficiency × 1/equipmentCondition, at least one tick.
func (s *Station) EffectiveDuration(o *Order) int64 {
	base := float64(o.DurationAt(s.ID, s.BaseDuration))
	eff := base * o.Multiplier() / s.Efficiency / s.EquipmentCondition
	return max(int64(math.Round(eff)), 1)
}

// Dispatch fills free slots from the queue according to the station policy.
// Returns the orders that started processing, in start order.
func (s *Station) Dispatch(now int64) []*Order {
	if s.Status != StationOperational {
		return nil
	}
	var started []*Order
	for s.FreeSlots() > 0 && s.queue.Len() > 0 {
		i := s.dispatcher.Select(s.queue.Items(), s)
		if i < 0 {
			break
		}
		o := s.queue.RemoveAt(i)
		dur := s.EffectiveDuration(o)
		s.inProcess = append(s.inProcess, &slot{order: o, remaining: dur, duration: dur, startedAt: now})
		o.Status = StatusProcessing
		if step := o.currentStep(); step != nil {
			step.StartedAt = now
		}
		started = append(started, o)
	}
	return started
}

// Advance moves the station forward by delta ticks of active time.
// elapsedAfter is the session elapsed time at the end of the interval and is
// the denominator of utilization. Orders whose work reaches zero are marked
// finished, counted, and returned in slot order; they keep their slot until
// Release is called. A station in maintenance only counts down its repair.
func (s *Station) Advance(delta, elapsedAfter int64) []*Order {
	if delta <= 0 {
		return nil
	}
	defer s.recomputeUtilization(elapsedAfter)

	if s.Status == StationMaintenance {
		s.MaintenanceRemaining = max(s.MaintenanceRemaining-delta, 0)
		if s.MaintenanceRemaining == 0 {
			s.Status = StationOperational
			logrus.Debugf("[station %s] maintenance finished at %d", s.ID, elapsedAfter)
		}
		return nil
	}

	var done []*Order
	for _, sl := range s.inProcess {
		if sl.finished || sl.order.Status == StatusOnHold {
			continue
		}
		step := min(delta, sl.remaining)
		sl.remaining -= step
		s.BusyTicks += step
		if sl.remaining > 0 {
			continue
		}
		sl.finished = true
		completedAt := elapsedAfter - (delta - step)
		if rec := sl.order.currentStep(); rec != nil {
			rec.CompletedAt = completedAt
		}
		s.TotalProcessed++
		s.CycleTimeSum += completedAt - sl.startedAt
		done = append(done, sl.order)
	}
	return done
}

func (s *Station) recomputeUtilization(elapsed int64) {
	if elapsed <= 0 {
		s.Utilization = 0
		return
	}
	u := float64(s.BusyTicks) / float64(int64(s.Capacity)*elapsed) * 100
	s.Utilization = math.Min(math.Max(u, 0), 100)
}

// NextDeadline returns the ticks until the station next changes on its own:
// the shortest remaining work among active slots, or the end of maintenance.
func (s *Station) NextDeadline() (int64, bool) {
	if s.Status == StationMaintenance {
		return s.MaintenanceRemaining, s.MaintenanceRemaining > 0
	}
	best, ok := int64(0), false
	for _, sl := range s.inProcess {
		if sl.finished || sl.order.Status == StatusOnHold {
			continue
		}
		if !ok || sl.remaining < best {
			best, ok = sl.remaining, true
		}
	}
	return best, ok
}

// Finished returns orders whose work is done but which still occupy a slot.
func (s *Station) Finished() []*Order {
	var out []*Order
	for _, sl := range s.inProcess {
		if sl.finished {
			out = append(out, sl.order)
		}
	}
	return out
}

// Release frees the slot held by a finished order.
func (s *Station) Release(o *Order) bool {
	for i, sl := range s.inProcess {
		if sl.order == o && sl.finished {
			s.inProcess = append(s.inProcess[:i], s.inProcess[i+1:]...)
			return true
		}
	}
	return false
}

// Remaining returns the work left for o if it is in process here.
func (s *Station) Remaining(o *Order) (int64, bool) {
	for _, sl := range s.inProcess {
		if sl.order == o {
			return sl.remaining, true
		}
	}
	return 0, false
}

// Queued reports whether o waits in this station's queue.
func (s *Station) Queued(o *Order) bool {
	return s.queue.IndexOf(o.ID) >= 0
}

// Unqueue removes a waiting order. Returns false when it is not queued here.
func (s *Station) Unqueue(o *Order) bool {
	return s.queue.Remove(o.ID)
}

// Requeue puts a recalled order back at queue position index with the step
// record it had when it was taken out.
func (s *Station) Requeue(o *Order, index int, step StepRecord) error {
	if s.WIP() >= s.Limit() {
		return fmt.Errorf("requeue %s at %s (wip %d/%d): %w", o.ID, s.ID, s.WIP(), s.Limit(), simerr.ErrCapacityExceeded)
	}
	o.Status = StatusQueued
	o.Steps = append(o.Steps, step)
	s.queue.InsertAt(index, o)
	return nil
}

// Fail puts the station into maintenance for duration ticks. In-process
// orders keep their progress and resume when maintenance ends.
// Returns false if the station is already down.
func (s *Station) Fail(duration int64) bool {
	if s.Status == StationMaintenance || duration <= 0 {
		return false
	}
	s.Status = StationMaintenance
	s.MaintenanceRemaining = duration
	return true
}

// Fault is a fatal failure: every in-process order is ejected and returned to
// the caller, and the station goes into maintenance for duration ticks.
func (s *Station) Fault(duration int64) []*Order {
	lost := make([]*Order, 0, len(s.inProcess))
	for _, sl := range s.inProcess {
		lost = append(lost, sl.order)
	}
	s.inProcess = nil
	if duration > 0 {
		s.Status = StationMaintenance
		s.MaintenanceRemaining = max(s.MaintenanceRemaining, duration)
	}
	return lost
}

// AverageCycleTime returns mean ticks from start to completion.
func (s *Station) AverageCycleTime() float64 {
	if s.TotalProcessed == 0 {
		return 0
	}
	return float64(s.CycleTimeSum) / float64(s.TotalProcessed)
}

// ThroughputRate returns orders per tick: observed when available, otherwise
// the theoretical rate Capacity / BaseDuration.
func (s *Station) ThroughputRate(elapsed int64) float64 {
	if s.TotalProcessed > 0 && elapsed > 0 {
		return float64(s.TotalProcessed) / float64(elapsed)
	}
	return float64(s.Capacity) / float64(s.BaseDuration)
}

func (s *Station) String() string {
	return fmt.Sprintf("Station: (ID: %s, Status: %s, Queue: %s, InProcess: %d/%d)", s.ID, s.Status, s.queue, len(s.inProcess), s.Capacity)
}
