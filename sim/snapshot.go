package sim

import (
	"maps"
	"slices"

	"github.com/inference-sim/orderflow-sim/sim/journal"
)

// SlotSnapshot is a read-only view of one in-process slot.
type SlotSnapshot struct {
	OrderID            string `json:"orderId"`
	Remaining          int64  `json:"remaining"`
	StartedAt          int64  `json:"startedAt"`
	Finished           bool   `json:"finished"`
	ExpectedCompletion int64  `json:"expectedCompletion"`
}

// StationSnapshot is a read-only view of a station.
type StationSnapshot struct {
	ID                   string         `json:"id"`
	Name                 string         `json:"name"`
	Status               StationStatus  `json:"status"`
	Policy               DispatchPolicy `json:"policy"`
	Capacity             int            `json:"capacity"`
	MaxQueueSize         int            `json:"maxQueueSize"`
	BaseDuration         int64          `json:"baseDuration"`
	Efficiency           float64        `json:"efficiency"`
	EquipmentCondition   float64        `json:"equipmentCondition"`
	Reliability          float64        `json:"reliability"`
	Queue                []string       `json:"queue"`
	InProcess            []SlotSnapshot `json:"inProcess"`
	WIP                  int            `json:"wip"`
	Utilization          float64        `json:"utilization"`
	AverageCycleTime     float64        `json:"averageCycleTime"`
	TotalProcessed       int            `json:"totalProcessed"`
	BusyTicks            int64          `json:"busyTicks"`
	MaintenanceRemaining int64          `json:"maintenanceRemaining"`
}

// GameState is the root aggregate handed to collaborators. It is a deep copy:
// nothing in it aliases engine state, so it can be read from any goroutine.
type GameState struct {
	SessionID   string             `json:"sessionId"`
	Status      SessionStatus      `json:"status"`
	Clock       Clock              `json:"clock"`
	Settings    GameSettings       `json:"settings"`
	Departments []StationSnapshot  `json:"departments"`
	Pending     []*Order           `json:"pending"`
	Scheduled   []ScheduledOrder   `json:"scheduled"`
	Active      []*Order           `json:"active"`
	Completed   []*Order           `json:"completed"`
	Rejected    []*Order           `json:"rejected"`
	Events      []GameEvent        `json:"events"`
	Decisions   []journal.Decision `json:"decisions"`
	Forecast    ForecastData       `json:"forecast"`
	KPI         KPISnapshot        `json:"kpi"`
	Customers   []Customer         `json:"customers"`
	Score       float64            `json:"score"`
	CanUndo     bool               `json:"canUndo"`
	CanRedo     bool               `json:"canRedo"`
}

// Snapshot returns a deep copy of the current state.
func (sim *Simulator) Snapshot() *GameState {
	gs := &GameState{
		SessionID: sim.ID.String(),
		Status:    sim.Status,
		Clock:     sim.Clock,
		Settings:  sim.Settings.Clone(),
		Pending:   cloneOrders(sim.pending),
		Active:    cloneOrders(sim.active),
		Completed: cloneOrders(sim.completed),
		Rejected:  cloneOrders(sim.rejected),
		Events:    make([]GameEvent, len(sim.events)),
		Decisions: sim.journal.Decisions(),
		Forecast:  cloneForecast(sim.forecast),
		KPI:       sim.kpi,
		Customers: sim.customers.List(),
		Score:     sim.Score,
		CanUndo:   sim.CanUndo(),
		CanRedo:   sim.CanRedo(),
	}
	for i, ev := range sim.events {
		if ev.KPI != nil {
			kpi := *ev.KPI
			ev.KPI = &kpi
		}
		gs.Events[i] = ev
	}
	for _, so := range sim.releases.Items() {
		gs.Scheduled = append(gs.Scheduled, ScheduledOrder{Order: so.Order.Clone(), ReleaseTime: so.ReleaseTime})
	}
	if gs.Scheduled == nil {
		gs.Scheduled = []ScheduledOrder{}
	}
	for _, st := range sim.stations {
		gs.Departments = append(gs.Departments, sim.snapshotStation(st))
	}
	return gs
}

func (sim *Simulator) snapshotStation(st *Station) StationSnapshot {
	ss := StationSnapshot{
		ID:                   st.ID,
		Name:                 st.Name,
		Status:               st.Status,
		Policy:               st.Policy,
		Capacity:             st.Capacity,
		MaxQueueSize:         st.MaxQueueSize,
		BaseDuration:         st.BaseDuration,
		Efficiency:           st.Efficiency,
		EquipmentCondition:   st.EquipmentCondition,
		Reliability:          st.Reliability,
		Queue:                make([]string, 0, st.QueueLen()),
		InProcess:            make([]SlotSnapshot, 0, len(st.inProcess)),
		WIP:                  st.WIP(),
		Utilization:          st.Utilization,
		AverageCycleTime:     st.AverageCycleTime(),
		TotalProcessed:       st.TotalProcessed,
		BusyTicks:            st.BusyTicks,
		MaintenanceRemaining: st.MaintenanceRemaining,
	}
	for _, o := range st.queue.Items() {
		ss.Queue = append(ss.Queue, o.ID)
	}
	for _, sl := range st.inProcess {
		expected := sim.Clock.Elapsed + sl.remaining
		if st.Status == StationMaintenance {
			expected += st.MaintenanceRemaining
		}
		ss.InProcess = append(ss.InProcess, SlotSnapshot{
			OrderID:            sl.order.ID,
			Remaining:          sl.remaining,
			StartedAt:          sl.startedAt,
			Finished:           sl.finished,
			ExpectedCompletion: expected,
		})
	}
	return ss
}

func cloneOrders(list []*Order) []*Order {
	out := make([]*Order, len(list))
	for i, o := range list {
		out[i] = o.Clone()
	}
	return out
}

func cloneForecast(f ForecastData) ForecastData {
	f.ExpectedDelivery = maps.Clone(f.ExpectedDelivery)
	f.WIPCapacityRemaining = maps.Clone(f.WIPCapacityRemaining)
	return f
}

// Order looks up an order by ID across every collection of the snapshot.
func (gs *GameState) Order(id string) (*Order, bool) {
	for _, list := range [][]*Order{gs.Active, gs.Pending, gs.Completed, gs.Rejected} {
		if i := slices.IndexFunc(list, func(o *Order) bool { return o.ID == id }); i >= 0 {
			return list[i], true
		}
	}
	return nil, false
}

// Department returns the snapshot of the station with the given ID.
func (gs *GameState) Department(id string) (StationSnapshot, bool) {
	for _, d := range gs.Departments {
		if d.ID == id {
			return d, true
		}
	}
	return StationSnapshot{}, false
}

// KPI returns the current KPI snapshot.
func (sim *Simulator) KPI() KPISnapshot {
	return sim.kpi
}

// Forecast returns a copy of the current forecast.
func (sim *Simulator) Forecast() ForecastData {
	return cloneForecast(sim.forecast)
}
