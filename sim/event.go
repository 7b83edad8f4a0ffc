package sim

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Severity grades a GameEvent for dashboards.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// EventType classifies a GameEvent.
type EventType string

const (
	EventSessionStarted    EventType = "session_started"
	EventSessionPaused     EventType = "session_paused"
	EventSessionResumed    EventType = "session_resumed"
	EventSessionCompleted  EventType = "session_completed"
	EventOrderArrived      EventType = "order_arrived"
	EventOrderReleased     EventType = "order_released"
	EventOrderRejected     EventType = "order_rejected"
	EventStepStarted       EventType = "step_started"
	EventStepCompleted     EventType = "step_completed"
	EventOrderCompleted    EventType = "order_completed"
	EventOrderBlocked      EventType = "order_blocked"
	EventOrderHeld         EventType = "order_held"
	EventOrderResumed      EventType = "order_resumed"
	EventOrderError        EventType = "order_error"
	EventRework            EventType = "rework"
	EventEquipmentFailure  EventType = "equipment_failure"
	EventEquipmentRepaired EventType = "equipment_repaired"
	EventSettingsChanged   EventType = "settings_changed"
	EventDecisionUndone    EventType = "decision_undone"
	EventDecisionRedone    EventType = "decision_redone"
	EventCommandFailed     EventType = "command_failed"
)

// GameEvent is one entry of the live event stream.
type GameEvent struct {
	Seq          int          `json:"seq"`
	Type         EventType    `json:"type"`
	Timestamp    int64        `json:"timestamp"` // session elapsed ticks
	Message      string       `json:"message"`
	Severity     Severity     `json:"severity"`
	DepartmentID string       `json:"departmentId,omitempty"`
	OrderID      string       `json:"orderId,omitempty"`
	DecisionID   string       `json:"decisionId,omitempty"`
	KPI          *KPISnapshot `json:"kpiSnapshot,omitempty"`
}

// EventObserver receives every event as it is emitted, on the simulation goroutine.
type EventObserver func(GameEvent)

// AddObserver registers fn to receive future events.
func (sim *Simulator) AddObserver(fn EventObserver) {
	sim.observers = append(sim.observers, fn)
}

// emit appends an event to the log and notifies observers.
func (sim *Simulator) emit(ev GameEvent) GameEvent {
	ev.Seq = len(sim.events) + 1
	ev.Timestamp = sim.Clock.Elapsed
	if ev.Severity == "" {
		ev.Severity = SeverityInfo
	}
	sim.events = append(sim.events, ev)

	entry := logrus.WithField("event", ev.Type)
	switch ev.Severity {
	case SeverityError:
		entry.Warnf("[t=%d] %s", ev.Timestamp, ev.Message)
	case SeverityWarning:
		entry.Infof("[t=%d] %s", ev.Timestamp, ev.Message)
	default:
		entry.Debugf("[t=%d] %s", ev.Timestamp, ev.Message)
	}

	for _, fn := range sim.observers {
		fn(ev)
	}
	return ev
}

func (sim *Simulator) emitf(typ EventType, sev Severity, stationID, orderID, format string, args ...any) GameEvent {
	return sim.emit(GameEvent{
		Type:         typ,
		Severity:     sev,
		DepartmentID: stationID,
		OrderID:      orderID,
		Message:      fmt.Sprintf(format, args...),
	})
}

// ReportError records a failure on the event stream with error severity.
// Used by callers that fail before reaching the engine, e.g. generator setup.
func (sim *Simulator) ReportError(err error) {
	if err == nil {
		return
	}
	sim.emitf(EventCommandFailed, SeverityError, "", "", "%v", err)
}
