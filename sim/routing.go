package sim

import (
	"fmt"
	"slices"

	"github.com/inference-sim/orderflow-sim/sim/simerr"
)

// maxRework caps how many times quality issues can send one order back.
const maxRework = 3

// onStepComplete is called once for every step whose work reached zero.
// A failed quality check splices the station back into the remaining route
// so the step index only ever moves forward.
func (sim *Simulator) onStepComplete(st *Station, o *Order) {
	sim.emitf(EventStepCompleted, SeverityInfo, st.ID, o.ID, "%s finished at %s (step %d/%d)",
		o.ID, st.Name, o.CurrentStepIndex+1, len(o.Route))

	if sim.Settings.Events.QualityIssues && o.ReworkCount < maxRework &&
		sim.rng.Chance(SubsystemQuality, sim.Settings.QualityIssueRate) {
		sim.rework(o, st)
	}
	sim.tryAdvance(st, o)
}

// rework re-inserts st right after the current step.
func (sim *Simulator) rework(o *Order, st *Station) {
	o.ReworkCount++
	o.Route = slices.Insert(o.Route, o.CurrentStepIndex+1, st.ID)
	sim.emitf(EventRework, SeverityWarning, st.ID, o.ID, "Quality issue on %s at %s, rework #%d", o.ID, st.Name, o.ReworkCount)
}

// tryAdvance moves a finished order out of st: to the next station of its
// route, or to a terminal status after the last step. When the next station
// is full the order stays in its slot (blocked) and is retried on the next
// event. Returns true when the order left st.
func (sim *Simulator) tryAdvance(st *Station, o *Order) bool {
	if o.Status == StatusOnHold {
		return false
	}
	if o.IsLastStep() {
		st.Release(o)
		sim.finalize(o)
		return true
	}

	nextID := o.Route[o.CurrentStepIndex+1]
	next, ok := sim.stationIndex[nextID]
	if !ok {
		st.Release(o)
		sim.failOrder(o, fmt.Errorf("next station %q: %w", nextID, simerr.ErrInvalidRoute).Error())
		return true
	}
	if err := next.Enqueue(o, sim.Clock.Elapsed); err != nil {
		if !o.Blocked {
			o.Blocked = true
			sim.emitf(EventOrderBlocked, SeverityWarning, next.ID, o.ID, "%s blocked at %s: %s is full", o.ID, st.Name, next.Name)
		}
		return false
	}
	st.Release(o)
	o.Blocked = false
	o.CurrentStepIndex++
	return true
}

// retryBlocked gives every finished-but-blocked order another chance to move.
func (sim *Simulator) retryBlocked() bool {
	moved := false
	for _, st := range sim.stations {
		for _, o := range st.Finished() {
			if sim.tryAdvance(st, o) {
				moved = true
			}
		}
	}
	return moved
}

// finalize moves an order that finished its last step into the completed set.
func (sim *Simulator) finalize(o *Order) {
	o.CompletedAt = sim.Clock.Elapsed
	o.Blocked = false
	switch {
	case o.DueTime <= 0:
		o.Status = StatusDone
		sim.Score += o.Value
	case o.CompletedAt <= o.DueTime:
		o.Status = StatusCompletedOnTime
		sim.Score += o.Value
	default:
		o.Status = StatusCompletedLate
		sim.Score += o.Value / 2
	}
	sim.active = removeOrder(sim.active, o)
	sim.completed = append(sim.completed, o)
	sim.customers.recordOutcome(o)

	sim.recomputeMetrics()
	kpi := sim.kpi
	sev := SeveritySuccess
	if o.Status == StatusCompletedLate {
		sev = SeverityWarning
	}
	sim.emit(GameEvent{
		Type:     EventOrderCompleted,
		Severity: sev,
		OrderID:  o.ID,
		Message:  fmt.Sprintf("Order %s %s (lead time %s)", o.ID, o.Status, formatElapsed(o.CompletedAt-o.CreatedAt)),
		KPI:      &kpi,
	})
}

// failOrder moves an active or pending order to error. Terminal for the
// order only; the session carries on.
func (sim *Simulator) failOrder(o *Order, reason string) {
	if o.IsTerminal() {
		return
	}
	for _, st := range sim.stations {
		st.Unqueue(o)
	}
	o.Status = StatusError
	o.ErrorReason = reason
	o.Blocked = false
	o.CompletedAt = sim.Clock.Elapsed
	sim.active = removeOrder(sim.active, o)
	sim.pending = removeOrder(sim.pending, o)
	sim.rejected = append(sim.rejected, o)
	sim.customers.recordOutcome(o)
	sim.Score -= o.Value / 4
	sim.emitf(EventOrderError, SeverityError, "", o.ID, "Order %s failed: %s", o.ID, reason)
}

// holdOrder freezes an active order where it is.
func (sim *Simulator) holdOrder(o *Order) error {
	if indexOfOrder(sim.active, o) < 0 {
		return fmt.Errorf("hold %s: not in the flow: %w", o.ID, simerr.ErrInvalidTransition)
	}
	if o.Status != StatusQueued && o.Status != StatusProcessing {
		return fmt.Errorf("hold %s in status %s: %w", o.ID, o.Status, simerr.ErrInvalidTransition)
	}
	o.HeldFrom = o.Status
	o.Status = StatusOnHold
	sim.emitf(EventOrderHeld, SeverityWarning, o.CurrentStation(), o.ID, "Order %s put on hold", o.ID)
	return nil
}

// resumeOrder restores the status a held order had before the hold.
func (sim *Simulator) resumeOrder(o *Order) error {
	if o.Status != StatusOnHold {
		return fmt.Errorf("resume %s in status %s: %w", o.ID, o.Status, simerr.ErrInvalidTransition)
	}
	o.Status = o.HeldFrom
	o.HeldFrom = ""
	sim.emitf(EventOrderResumed, SeverityInfo, o.CurrentStation(), o.ID, "Order %s resumed", o.ID)
	return nil
}

// releaseRecord is where a released order sits while it still waits at its
// first station.
type releaseRecord struct {
	QueueIndex  int
	ActiveIndex int
	Step        StepRecord
	ReleasedAt  int64
}

// recallable returns the release record of o, or ErrNotUndoable once o has
// left the queue of its first station.
func (sim *Simulator) recallable(o *Order) (releaseRecord, error) {
	if o.CurrentStepIndex != 0 || o.Status != StatusQueued || len(o.Steps) == 0 {
		return releaseRecord{}, fmt.Errorf("recall %s in status %s: %w", o.ID, o.Status, simerr.ErrNotUndoable)
	}
	st := sim.stationIndex[o.Route[0]]
	qi := st.queue.IndexOf(o.ID)
	if qi < 0 {
		return releaseRecord{}, fmt.Errorf("recall %s: no longer queued at %s: %w", o.ID, st.ID, simerr.ErrNotUndoable)
	}
	return releaseRecord{
		QueueIndex:  qi,
		ActiveIndex: indexOfOrder(sim.active, o),
		Step:        o.Steps[len(o.Steps)-1],
		ReleasedAt:  o.ReleasedAt,
	}, nil
}

// rerelease undoes a recall: o returns to the queue position, step record
// and release time captured in rec.
func (sim *Simulator) rerelease(o *Order, rec releaseRecord) error {
	i := indexOfOrder(sim.pending, o)
	if i < 0 {
		return fmt.Errorf("release %s: not pending: %w", o.ID, simerr.ErrInvalidTransition)
	}
	st := sim.stationIndex[o.Route[0]]
	if err := st.Requeue(o, rec.QueueIndex, rec.Step); err != nil {
		return err
	}
	o.CurrentStepIndex = 0
	o.ReleasedAt = rec.ReleasedAt
	sim.pending = removeAt(sim.pending, i)
	sim.active = slices.Insert(sim.active, min(max(rec.ActiveIndex, 0), len(sim.active)), o)
	sim.emitf(EventOrderReleased, SeverityInfo, st.ID, o.ID, "Order %s released to %s", o.ID, st.Name)
	return nil
}

// recallOrder takes a just-released order back to pending. Only possible
// while it still waits in the queue of its first station.
func (sim *Simulator) recallOrder(o *Order, pendingIndex int) error {
	if _, err := sim.recallable(o); err != nil {
		return err
	}
	sim.stationIndex[o.Route[0]].Unqueue(o)
	o.Steps = o.Steps[:len(o.Steps)-1]
	o.ReleasedAt = Unset
	sim.active = removeOrder(sim.active, o)
	pendingIndex = min(max(pendingIndex, 0), len(sim.pending))
	sim.pending = slices.Insert(sim.pending, pendingIndex, o)
	sim.emitf(EventOrderArrived, SeverityInfo, "", o.ID, "Order %s returned to pending", o.ID)
	return nil
}
