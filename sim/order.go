// Defines the Order struct that models one manufacturing order in the simulation.
// Tracks its route through the stations, per-step timestamps and lifecycle status.

package sim

import (
	"fmt"
	"maps"
	"slices"

	"github.com/inference-sim/orderflow-sim/sim/simerr"
)

// Priority is the 4-level urgency of an order.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

var validPriorities = map[Priority]bool{
	PriorityLow:    true,
	PriorityNormal: true,
	PriorityHigh:   true,
	PriorityUrgent: true,
}

// Priorities lists all priorities from lowest to highest.
var Priorities = []Priority{PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent}

// ParsePriority converts s into a Priority, rejecting unknown values.
func ParsePriority(s string) (Priority, error) {
	p := Priority(s)
	if !validPriorities[p] {
		return "", fmt.Errorf("priority %q: %w", s, simerr.ErrUnknownValue)
	}
	return p, nil
}

// OrderStatus represents the lifecycle state of an order.
type OrderStatus string

const (
	StatusQueued          OrderStatus = "queued"
	StatusProcessing      OrderStatus = "processing"
	StatusDone            OrderStatus = "done"
	StatusError           OrderStatus = "error"
	StatusCompletedOnTime OrderStatus = "completed-on-time"
	StatusCompletedLate   OrderStatus = "completed-late"
	StatusOnHold          OrderStatus = "on-hold"
)

var validOrderStatuses = map[OrderStatus]bool{
	StatusQueued:          true,
	StatusProcessing:      true,
	StatusDone:            true,
	StatusError:           true,
	StatusCompletedOnTime: true,
	StatusCompletedLate:   true,
	StatusOnHold:          true,
}

// ParseOrderStatus converts s into an OrderStatus, rejecting unknown values.
func ParseOrderStatus(s string) (OrderStatus, error) {
	st := OrderStatus(s)
	if !validOrderStatuses[st] {
		return "", fmt.Errorf("order status %q: %w", s, simerr.ErrUnknownValue)
	}
	return st, nil
}

// IsTerminal reports whether the status can never change again.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case StatusDone, StatusError, StatusCompletedOnTime, StatusCompletedLate:
		return true
	}
	return false
}

// HalfOrderReason tags why an order needs only part of the standard processing time.
type HalfOrderReason string

const (
	HalfOrderNone         HalfOrderReason = ""
	HalfOrderDefectRepair HalfOrderReason = "defect_repair"
	HalfOrderPartialWork  HalfOrderReason = "partial_work"
	HalfOrderRework       HalfOrderReason = "rework"
	HalfOrderQualityIssue HalfOrderReason = "quality_issue"
)

// HalfOrderReasons lists the non-empty reasons in a fixed order.
var HalfOrderReasons = []HalfOrderReason{HalfOrderDefectRepair, HalfOrderPartialWork, HalfOrderRework, HalfOrderQualityIssue}

// HalfOrderMultiplier is the processing-time multiplier applied to half-orders.
const HalfOrderMultiplier = 0.5

// ParseHalfOrderReason converts s into a HalfOrderReason. The empty string means none.
func ParseHalfOrderReason(s string) (HalfOrderReason, error) {
	r := HalfOrderReason(s)
	if r == HalfOrderNone || slices.Contains(HalfOrderReasons, r) {
		return r, nil
	}
	return "", fmt.Errorf("half-order reason %q: %w", s, simerr.ErrUnknownValue)
}

// Unset marks a timestamp that has not happened yet.
const Unset int64 = -1

// StepRecord holds the timestamps of one visit to one station.
// Steps[i] always describes Route[i].
type StepRecord struct {
	StationID   string `json:"stationId"`
	EnqueuedAt  int64  `json:"enqueuedAt"`
	StartedAt   int64  `json:"startedAt"`
	CompletedAt int64  `json:"completedAt"`
}

// Order models a single order's lifecycle in the simulation.
type Order struct {
	ID         string   `json:"id"`
	CustomerID string   `json:"customerId,omitempty"`
	Priority   Priority `json:"priority"`
	Value      float64  `json:"value"`
	DueTime    int64    `json:"dueTime"` // elapsed ticks; 0 = no due time
	Rush       bool     `json:"rush,omitempty"`

	Route            []string     `json:"route"`
	CurrentStepIndex int          `json:"currentStepIndex"`
	Status           OrderStatus  `json:"status"`
	HeldFrom         OrderStatus  `json:"heldFrom,omitempty"` // status restored by resume
	Blocked          bool         `json:"blocked,omitempty"`  // step finished, next station full
	Steps            []StepRecord `json:"steps,omitempty"`
	ReworkCount      int          `json:"reworkCount"`
	ErrorReason      string       `json:"errorReason,omitempty"`

	CreatedAt   int64 `json:"createdAt"`
	ReleasedAt  int64 `json:"releasedAt"`
	CompletedAt int64 `json:"completedAt"`

	ProcessingTimeMultiplier float64          `json:"processingTimeMultiplier"`
	HalfOrderReason          HalfOrderReason  `json:"halfOrderReason,omitempty"`
	StationDurations         map[string]int64 `json:"stationDurations,omitempty"` // authored ticks per station
}

// NewOrder constructs an Order with the required fields and zero-value defaults.
// The order starts queued (not yet released) with a multiplier of 1.
func NewOrder(id string, route []string, dueTime, createdAt int64) *Order {
	return &Order{
		ID:                       id,
		Priority:                 PriorityNormal,
		DueTime:                  dueTime,
		Route:                    slices.Clone(route),
		Status:                   StatusQueued,
		CreatedAt:                createdAt,
		ReleasedAt:               Unset,
		CompletedAt:              Unset,
		ProcessingTimeMultiplier: 1,
	}
}

// IsTerminal reports whether the order reached a final status.
func (o *Order) IsTerminal() bool {
	return o.Status.IsTerminal()
}

// CurrentStation returns the station of the current step, or "" past the route.
func (o *Order) CurrentStation() string {
	if o.CurrentStepIndex < 0 || o.CurrentStepIndex >= len(o.Route) {
		return ""
	}
	return o.Route[o.CurrentStepIndex]
}

// IsLastStep reports whether the current step is the final route entry.
func (o *Order) IsLastStep() bool {
	return o.CurrentStepIndex == len(o.Route)-1
}

// RemainingRoute returns the stations from the current step to the end.
func (o *Order) RemainingRoute() []string {
	if o.CurrentStepIndex >= len(o.Route) {
		return nil
	}
	return slices.Clone(o.Route[o.CurrentStepIndex:])
}

// DurationAt returns the authored duration for stationID, or base when none was authored.
func (o *Order) DurationAt(stationID string, base int64) int64 {
	if d, ok := o.StationDurations[stationID]; ok && d > 0 {
		return d
	}
	return base
}

// Multiplier returns the processing-time multiplier, treating zero as 1.
func (o *Order) Multiplier() float64 {
	if o.ProcessingTimeMultiplier <= 0 {
		return 1
	}
	return o.ProcessingTimeMultiplier
}

// MarkHalfOrder tags the order as a half-order. The 0.5 multiplier applies
// uniformly to every step that has not started yet.
func (o *Order) MarkHalfOrder(reason HalfOrderReason) error {
	if o.IsTerminal() {
		return fmt.Errorf("mark half-order %s: %w", o.ID, simerr.ErrInvalidTransition)
	}
	if reason == HalfOrderNone {
		return fmt.Errorf("mark half-order %s: empty reason: %w", o.ID, simerr.ErrUnknownValue)
	}
	if _, err := ParseHalfOrderReason(string(reason)); err != nil {
		return err
	}
	o.HalfOrderReason = reason
	o.ProcessingTimeMultiplier = HalfOrderMultiplier
	return nil
}

// currentStep returns the record of the active visit, or nil before the first enqueue.
func (o *Order) currentStep() *StepRecord {
	if len(o.Steps) == 0 {
		return nil
	}
	return &o.Steps[len(o.Steps)-1]
}

// Clone returns a deep copy of the order.
func (o *Order) Clone() *Order {
	c := *o
	c.Route = slices.Clone(o.Route)
	c.Steps = slices.Clone(o.Steps)
	if o.StationDurations != nil {
		c.StationDurations = maps.Clone(o.StationDurations)
	}
	return &c
}

// This method returns a human-readable string representation of an Order.
func (o Order) String() string {
	return fmt.Sprintf("Order: (ID: %s, Status: %s, Step: %d/%d, Due: %d)", o.ID, o.Status, o.CurrentStepIndex, len(o.Route), o.DueTime)
}
