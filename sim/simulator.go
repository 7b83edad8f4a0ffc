package sim

import (
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/inference-sim/orderflow-sim/sim/journal"
	"github.com/inference-sim/orderflow-sim/sim/simerr"
)

// SessionStatus is the lifecycle state of a session.
type SessionStatus string

const (
	SessionSetup     SessionStatus = "setup"
	SessionRunning   SessionStatus = "running"
	SessionPaused    SessionStatus = "paused"
	SessionCompleted SessionStatus = "completed"
)

// releaseLookahead is how far past the current tick target orders are pulled
// from the source, so upcoming releases show up as scheduled.
const releaseLookahead = 5 * Minute

// Simulator is the core object that holds the state of one session.
//
// All methods must be called from a single goroutine; session.Session
// provides the serialized, concurrency-safe wrapper.
type Simulator struct {
	ID       uuid.UUID
	Settings GameSettings
	Clock    Clock
	Status   SessionStatus
	Score    float64

	stations     []*Station
	stationIndex map[string]*Station
	customers    *CustomerRegistry

	source   OrderSource
	releases *ReleaseHeap
	rng      *PartitionedRNG

	orders    map[string]*Order // every order that ever arrived
	pending   []*Order          // arrived, waiting for release
	active    []*Order          // released, not terminal
	completed []*Order
	rejected  []*Order

	events    []GameEvent
	observers []EventObserver

	journal *journal.Journal
	undo    []historyEntry
	redo    []historyEntry

	forecast ForecastData
	kpi      KPISnapshot
}

// NewSimulator validates settings and builds the shop floor.
// The session stays in setup until Start is called with an order source.
func NewSimulator(settings GameSettings) (*Simulator, error) {
	settings = settings.Clone()
	if settings.Mode == "" {
		settings.Mode = ModeProcedural
	}
	if settings.ComplexityLevel == "" {
		settings.ComplexityLevel = ComplexityIntermediate
	}
	if len(settings.Departments) == 0 {
		settings.Departments = DefaultDepartments()
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	id := uuid.NewSHA1(uuid.NameSpaceOID, []byte("orderflow-sim/"+settings.Seed))
	sim := &Simulator{
		ID:           id,
		Settings:     settings,
		Clock:        Clock{Speed: settings.SpeedMultiplier},
		Status:       SessionSetup,
		stationIndex: make(map[string]*Station, len(settings.Departments)),
		customers:    NewCustomerRegistry(settings.Customers),
		releases:     NewReleaseHeap(),
		orders:       make(map[string]*Order),
		journal:      journal.New(id),
	}
	for _, d := range settings.Departments {
		st := NewStation(d)
		sim.stations = append(sim.stations, st)
		sim.stationIndex[st.ID] = st
	}
	sim.recomputeMetrics()
	return sim, nil
}

// Start attaches the order source and moves the session from setup to running.
func (sim *Simulator) Start(src OrderSource, key SimulationKey) error {
	if sim.Status != SessionSetup {
		return fmt.Errorf("start session in status %s: %w", sim.Status, simerr.ErrInvalidTransition)
	}
	if src == nil {
		return fmt.Errorf("start session: nil order source: %w", simerr.ErrInvalidSettings)
	}
	sim.source = src
	sim.rng = NewPartitionedRNG(key)
	sim.Status = SessionRunning
	logrus.Infof("Session %s started: %d min, %d stations, mode %s, seed %q",
		sim.ID, sim.Settings.SessionMinutes, len(sim.stations), sim.Settings.Mode, sim.Settings.Seed)
	sim.emitf(EventSessionStarted, SeverityInfo, "", "", "Session started (%d min, %s mode)", sim.Settings.SessionMinutes, sim.Settings.Mode)

	sim.pullSource(sim.Clock.Elapsed + releaseLookahead)
	sim.processDue()
	sim.recomputeMetrics()
	return nil
}

// Tick advances simulated time by dt × speed ticks and processes every
// release, completion and dispatch that falls inside the interval, in
// timestamp order. While paused only the wall-side clock moves.
func (sim *Simulator) Tick(dt int64) error {
	switch sim.Status {
	case SessionSetup:
		return fmt.Errorf("tick before start: %w", simerr.ErrInvalidTransition)
	case SessionCompleted:
		return fmt.Errorf("tick: %w", simerr.ErrSessionClosed)
	}
	if dt <= 0 {
		return nil
	}
	budget := sim.Clock.Scale(dt)
	if sim.Status == SessionPaused {
		sim.Clock.advancePaused(budget)
		return nil
	}

	duration := sim.Settings.SessionDuration()
	start := sim.Clock.Elapsed
	target := min(start+budget, duration)
	overflow := start + budget - target

	sim.pullSource(target + releaseLookahead)
	sim.processDue()
	for sim.Clock.Elapsed < target {
		next := target
		if t, ok := sim.releases.PeekTime(); ok && t > sim.Clock.Elapsed && t < next {
			next = t
		}
		for _, st := range sim.stations {
			if d, ok := st.NextDeadline(); ok && sim.Clock.Elapsed+d < next {
				next = sim.Clock.Elapsed + d
			}
		}
		sim.advanceStations(next - sim.Clock.Elapsed)
		sim.processDue()
	}

	if sim.Settings.Events.EquipmentFailures {
		sim.rollEquipmentFailures(target - start)
	}
	sim.Clock.Now += overflow
	sim.recomputeMetrics()

	if sim.Clock.Elapsed >= duration {
		sim.complete()
	}
	return nil
}

// advanceStations moves every station forward by delta active ticks and
// hands finished steps to the routing controller in station order.
func (sim *Simulator) advanceStations(delta int64) {
	if delta <= 0 {
		return
	}
	after := sim.Clock.Elapsed + delta
	type finished struct {
		st *Station
		o  *Order
	}
	var done []finished
	var repaired []*Station
	for _, st := range sim.stations {
		wasDown := st.Status == StationMaintenance
		for _, o := range st.Advance(delta, after) {
			done = append(done, finished{st, o})
		}
		if wasDown && st.Status == StationOperational {
			repaired = append(repaired, st)
		}
	}
	sim.Clock.advanceActive(delta)
	for _, st := range repaired {
		sim.emitf(EventEquipmentRepaired, SeveritySuccess, st.ID, "", "%s back in operation", st.Name)
	}
	for _, f := range done {
		sim.onStepComplete(f.st, f.o)
	}
}

// processDue handles everything that is due at the current elapsed time until
// nothing changes: blocked retries, releases, auto-release and dispatch.
func (sim *Simulator) processDue() {
	for changed := true; changed; {
		changed = sim.retryBlocked()
		for {
			so, ok := sim.releases.PopDue(sim.Clock.Elapsed)
			if !ok {
				break
			}
			sim.arrive(so)
			changed = true
		}
		if !sim.Settings.ManualMode && sim.releasePending() {
			changed = true
		}
		for _, st := range sim.stations {
			for _, o := range st.Dispatch(sim.Clock.Elapsed) {
				sim.emitf(EventStepStarted, SeverityInfo, st.ID, o.ID, "%s started at %s (step %d/%d)",
					o.ID, st.Name, o.CurrentStepIndex+1, len(o.Route))
				changed = true
			}
		}
	}
}

func (sim *Simulator) pullSource(limit int64) {
	if sim.source == nil {
		return
	}
	limit = min(limit, sim.Settings.SessionDuration())
	for _, so := range sim.source.Next(limit) {
		sim.releases.Schedule(so)
	}
}

// arrive moves a scheduled order into the pending pool, or rejects it when
// its route cannot be followed.
func (sim *Simulator) arrive(so ScheduledOrder) {
	o := so.Order
	if _, dup := sim.orders[o.ID]; dup {
		o.Status = StatusError
		o.ErrorReason = "duplicate order id"
		sim.rejected = append(sim.rejected, o)
		sim.emitf(EventOrderRejected, SeverityError, "", o.ID, "Order %s rejected: duplicate id", o.ID)
		return
	}
	sim.orders[o.ID] = o
	if err := sim.validateRoute(o.Route); simerr.IsFatal(err) {
		o.Status = StatusError
		o.ErrorReason = err.Error()
		o.CompletedAt = sim.Clock.Elapsed
		sim.rejected = append(sim.rejected, o)
		sim.emitf(EventOrderRejected, SeverityError, "", o.ID, "Order %s rejected: %v", o.ID, err)
		return
	}
	sim.pending = append(sim.pending, o)
	sim.emitf(EventOrderArrived, SeverityInfo, "", o.ID, "Order %s arrived (%s, value %.0f)", o.ID, o.Priority, o.Value)
}

func (sim *Simulator) validateRoute(route []string) error {
	if len(route) == 0 {
		return fmt.Errorf("empty route: %w", simerr.ErrInvalidRoute)
	}
	for _, id := range route {
		if _, ok := sim.stationIndex[id]; !ok {
			return fmt.Errorf("unknown station %q: %w", id, simerr.ErrInvalidRoute)
		}
	}
	return nil
}

// releasePending tries to release every pending order in arrival order.
func (sim *Simulator) releasePending() bool {
	released := false
	for _, o := range append([]*Order(nil), sim.pending...) {
		if sim.releaseOrder(o) == nil {
			released = true
		}
	}
	return released
}

// releaseOrder enqueues a pending order at its first station.
func (sim *Simulator) releaseOrder(o *Order) error {
	i := indexOfOrder(sim.pending, o)
	if i < 0 {
		return fmt.Errorf("release %s: not pending: %w", o.ID, simerr.ErrInvalidTransition)
	}
	st := sim.stationIndex[o.Route[0]]
	if err := st.Enqueue(o, sim.Clock.Elapsed); err != nil {
		return err
	}
	o.CurrentStepIndex = 0
	o.ReleasedAt = sim.Clock.Elapsed
	sim.pending = removeAt(sim.pending, i)
	sim.active = append(sim.active, o)
	sim.emitf(EventOrderReleased, SeverityInfo, st.ID, o.ID, "Order %s released to %s", o.ID, st.Name)
	return nil
}

// rollEquipmentFailures draws one failure roll per operational station for
// an interval of span active ticks.
func (sim *Simulator) rollEquipmentFailures(span int64) {
	if span <= 0 {
		return
	}
	repair := max(MinutesToTicks(sim.Settings.MaintenanceMinutes), 1)
	for _, st := range sim.stations {
		p := 1 - math.Pow(st.Reliability, float64(span)/float64(Hour))
		if !sim.rng.Chance(SubsystemEquipment, p) || !st.Fail(repair) {
			continue
		}
		sim.emitf(EventEquipmentFailure, SeverityWarning, st.ID, "", "%s equipment failure, down for %.0f min", st.Name, float64(repair)/float64(Minute))
	}
}

// InjectFailure puts a station out of service from outside the engine.
// A fatal fault ejects every in-process order into error.
func (sim *Simulator) InjectFailure(stationID string, fatal bool) error {
	if sim.Status == SessionCompleted {
		return fmt.Errorf("inject failure: %w", simerr.ErrSessionClosed)
	}
	st, ok := sim.stationIndex[stationID]
	if !ok {
		return fmt.Errorf("station %q: %w", stationID, simerr.ErrUnknownValue)
	}
	repair := max(MinutesToTicks(sim.Settings.MaintenanceMinutes), 1)
	if !fatal {
		if st.Fail(repair) {
			sim.emitf(EventEquipmentFailure, SeverityWarning, st.ID, "", "%s equipment failure, down for %.0f min", st.Name, float64(repair)/float64(Minute))
		}
	} else {
		lost := st.Fault(repair)
		sim.emitf(EventEquipmentFailure, SeverityError, st.ID, "", "%s fatal fault, %d orders lost", st.Name, len(lost))
		for _, o := range lost {
			sim.failOrder(o, fmt.Sprintf("fatal fault at %s", st.ID))
		}
	}
	if sim.Status == SessionRunning {
		sim.processDue()
	}
	sim.recomputeMetrics()
	return nil
}

func (sim *Simulator) pause() error {
	if sim.Status != SessionRunning {
		return fmt.Errorf("pause in status %s: %w", sim.Status, simerr.ErrInvalidTransition)
	}
	sim.Status = SessionPaused
	sim.emitf(EventSessionPaused, SeverityInfo, "", "", "Session paused at %s", formatElapsed(sim.Clock.Elapsed))
	return nil
}

func (sim *Simulator) resume() error {
	if sim.Status != SessionPaused {
		return fmt.Errorf("resume in status %s: %w", sim.Status, simerr.ErrInvalidTransition)
	}
	sim.Status = SessionRunning
	sim.emitf(EventSessionResumed, SeverityInfo, "", "", "Session resumed at %s", formatElapsed(sim.Clock.Elapsed))
	return nil
}

func (sim *Simulator) complete() {
	sim.Status = SessionCompleted
	sim.journal.Close()
	kpi := sim.kpi
	sim.emit(GameEvent{
		Type:     EventSessionCompleted,
		Severity: SeveritySuccess,
		Message: fmt.Sprintf("Session completed: %d completed, %d rejected, on-time %.1f%%, score %.0f",
			len(sim.completed), len(sim.rejected), kpi.OnTimeRate, sim.Score),
		KPI: &kpi,
	})
	logrus.Infof("Session %s completed at elapsed %d (now %d): score %.1f", sim.ID, sim.Clock.Elapsed, sim.Clock.Now, sim.Score)
}

// Station returns the station with the given ID.
func (sim *Simulator) Station(id string) (*Station, bool) {
	st, ok := sim.stationIndex[id]
	return st, ok
}

// Stations returns the stations in configuration order.
func (sim *Simulator) Stations() []*Station {
	return sim.stations
}

// Order returns the order with the given ID.
func (sim *Simulator) Order(id string) (*Order, error) {
	o, ok := sim.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %q: %w", id, simerr.ErrUnknownOrder)
	}
	return o, nil
}

// Journal returns the decision journal.
func (sim *Simulator) Journal() *journal.Journal {
	return sim.journal
}

func indexOfOrder(list []*Order, o *Order) int {
	for i, x := range list {
		if x == o {
			return i
		}
	}
	return -1
}

func removeAt(list []*Order, i int) []*Order {
	return append(list[:i], list[i+1:]...)
}

func removeOrder(list []*Order, o *Order) []*Order {
	if i := indexOfOrder(list, o); i >= 0 {
		return removeAt(list, i)
	}
	return list
}

func formatElapsed(t int64) string {
	return fmt.Sprintf("%02d:%02d", t/Minute, t%Minute)
}
