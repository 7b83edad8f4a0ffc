package sim

import (
	"fmt"
	"maps"
	"slices"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/orderflow-sim/sim/journal"
	"github.com/inference-sim/orderflow-sim/sim/simerr"
)

// Command is a state-changing action issued by a collaborator.
//
// Inverse is called before Apply, against the state Apply will change, and
// returns the command that undoes it. Apply mutates the simulator and returns
// the decision to record (ID and Seq are assigned by the journal).
type Command interface {
	Kind() journal.Kind
	Inverse(sim *Simulator) (Command, error)
	Apply(sim *Simulator) (journal.Decision, error)
}

// historyEntry pairs a recorded command with its inverse.
type historyEntry struct {
	decisionID string
	cmd        Command
	inverse    Command
}

// Execute applies cmd, records exactly one decision and makes it undoable.
// A failed command changes nothing, records nothing and emits an
// error-severity event.
func (sim *Simulator) Execute(cmd Command) (journal.Decision, error) {
	d, inv, err := sim.applyRecorded(cmd)
	if err != nil {
		return journal.Decision{}, err
	}
	sim.undo = append(sim.undo, historyEntry{decisionID: d.ID, cmd: cmd, inverse: inv})
	sim.redo = nil
	return d, nil
}

func (sim *Simulator) applyRecorded(cmd Command) (journal.Decision, Command, error) {
	if err := sim.checkOpen(cmd.Kind()); err != nil {
		return journal.Decision{}, nil, err
	}
	inv, err := cmd.Inverse(sim)
	if err != nil {
		return journal.Decision{}, nil, sim.commandFailed(cmd.Kind(), err)
	}
	d, err := cmd.Apply(sim)
	if err != nil {
		return journal.Decision{}, nil, sim.commandFailed(cmd.Kind(), err)
	}
	d.Kind = cmd.Kind()
	rec, err := sim.record(d)
	if err != nil {
		return journal.Decision{}, nil, sim.commandFailed(cmd.Kind(), err)
	}
	return rec, inv, nil
}

// Undo reverts the most recent undoable decision by applying its inverse and
// records an undo decision. History is never deleted. The command a later
// Redo applies is the inverse of the inverse, taken from the state just
// before the undo.
func (sim *Simulator) Undo() (journal.Decision, error) {
	if err := sim.checkOpen(journal.KindUndo); err != nil {
		return journal.Decision{}, err
	}
	if len(sim.undo) == 0 {
		return journal.Decision{}, sim.commandFailed(journal.KindUndo, simerr.ErrNothingToUndo)
	}
	top := sim.undo[len(sim.undo)-1]
	again, err := top.inverse.Inverse(sim)
	if err != nil {
		return journal.Decision{}, sim.commandFailed(journal.KindUndo, fmt.Errorf("%w: %w", simerr.ErrNotUndoable, err))
	}
	if _, err := top.inverse.Apply(sim); err != nil {
		return journal.Decision{}, sim.commandFailed(journal.KindUndo, fmt.Errorf("%w: %w", simerr.ErrNotUndoable, err))
	}
	d, err := sim.record(journal.Decision{
		Kind:      journal.KindUndo,
		RevertsID: top.decisionID,
		Details:   map[string]string{"reverted": string(top.cmd.Kind())},
	})
	if err != nil {
		return journal.Decision{}, sim.commandFailed(journal.KindUndo, err)
	}
	sim.undo = sim.undo[:len(sim.undo)-1]
	sim.redo = append(sim.redo, historyEntry{decisionID: d.ID, cmd: again, inverse: top.inverse})
	sim.emit(GameEvent{Type: EventDecisionUndone, DecisionID: d.ID, Message: fmt.Sprintf("Undid %s", top.cmd.Kind())})
	return d, nil
}

// Redo re-applies the most recently undone command and records a redo decision.
func (sim *Simulator) Redo() (journal.Decision, error) {
	if err := sim.checkOpen(journal.KindRedo); err != nil {
		return journal.Decision{}, err
	}
	if len(sim.redo) == 0 {
		return journal.Decision{}, sim.commandFailed(journal.KindRedo, simerr.ErrNothingToRedo)
	}
	top := sim.redo[len(sim.redo)-1]
	inv, err := top.cmd.Inverse(sim)
	if err != nil {
		return journal.Decision{}, sim.commandFailed(journal.KindRedo, err)
	}
	if _, err := top.cmd.Apply(sim); err != nil {
		return journal.Decision{}, sim.commandFailed(journal.KindRedo, err)
	}
	d, err := sim.record(journal.Decision{
		Kind:      journal.KindRedo,
		RevertsID: top.decisionID,
		Details:   map[string]string{"reapplied": string(top.cmd.Kind())},
	})
	if err != nil {
		return journal.Decision{}, sim.commandFailed(journal.KindRedo, err)
	}
	sim.redo = sim.redo[:len(sim.redo)-1]
	sim.undo = append(sim.undo, historyEntry{decisionID: d.ID, cmd: top.cmd, inverse: inv})
	sim.emit(GameEvent{Type: EventDecisionRedone, DecisionID: d.ID, Message: fmt.Sprintf("Redid %s", top.cmd.Kind())})
	return d, nil
}

// CanUndo reports whether Undo has anything to revert.
func (sim *Simulator) CanUndo() bool { return len(sim.undo) > 0 }

// CanRedo reports whether Redo has anything to re-apply.
func (sim *Simulator) CanRedo() bool { return len(sim.redo) > 0 }

func (sim *Simulator) checkOpen(kind journal.Kind) error {
	switch sim.Status {
	case SessionCompleted:
		return sim.commandFailed(kind, simerr.ErrSessionClosed)
	case SessionSetup:
		return sim.commandFailed(kind, fmt.Errorf("session not started: %w", simerr.ErrInvalidTransition))
	}
	return nil
}

func (sim *Simulator) record(d journal.Decision) (journal.Decision, error) {
	d.Timestamp = sim.Clock.Now
	d.Elapsed = sim.Clock.Elapsed
	rec, err := sim.journal.Record(d)
	if err != nil {
		return journal.Decision{}, err
	}
	if sim.Status != SessionPaused && sim.Status != SessionSetup {
		sim.processDue()
	}
	sim.recomputeMetrics()
	return rec, nil
}

func (sim *Simulator) commandFailed(kind journal.Kind, err error) error {
	err = fmt.Errorf("%s: %w", kind, err)
	logrus.Debugf("command failed: %v", err)
	sim.emit(GameEvent{Type: EventCommandFailed, Severity: SeverityError, Message: fmt.Sprintf("%v (%s)", err, simerr.Kind(err))})
	return err
}

// === Commands ===

// ReleaseOrderCmd releases a pending order to its first station.
type ReleaseOrderCmd struct {
	OrderID string
}

func (c *ReleaseOrderCmd) Kind() journal.Kind { return journal.KindReleaseOrder }

func (c *ReleaseOrderCmd) Inverse(sim *Simulator) (Command, error) {
	o, err := sim.Order(c.OrderID)
	if err != nil {
		return nil, err
	}
	return &recallOrderCmd{OrderID: c.OrderID, PendingIndex: indexOfOrder(sim.pending, o)}, nil
}

func (c *ReleaseOrderCmd) Apply(sim *Simulator) (journal.Decision, error) {
	o, err := sim.Order(c.OrderID)
	if err != nil {
		return journal.Decision{}, err
	}
	if err := sim.releaseOrder(o); err != nil {
		return journal.Decision{}, err
	}
	return journal.Decision{OrderID: o.ID, Details: map[string]string{"station": o.Route[0]}}, nil
}

// recallOrderCmd is the inverse of ReleaseOrderCmd.
type recallOrderCmd struct {
	OrderID      string
	PendingIndex int
}

func (c *recallOrderCmd) Kind() journal.Kind { return journal.KindReleaseOrder }

// Inverse captures the queue position and timestamps so the order can go
// back exactly where it was.
func (c *recallOrderCmd) Inverse(sim *Simulator) (Command, error) {
	o, err := sim.Order(c.OrderID)
	if err != nil {
		return nil, err
	}
	rec, err := sim.recallable(o)
	if err != nil {
		return nil, err
	}
	return &rereleaseCmd{OrderID: c.OrderID, Record: rec}, nil
}

func (c *recallOrderCmd) Apply(sim *Simulator) (journal.Decision, error) {
	o, err := sim.Order(c.OrderID)
	if err != nil {
		return journal.Decision{}, err
	}
	return journal.Decision{OrderID: o.ID}, sim.recallOrder(o, c.PendingIndex)
}

// rereleaseCmd reverses a recall, restoring the original release.
type rereleaseCmd struct {
	OrderID string
	Record  releaseRecord
}

func (c *rereleaseCmd) Kind() journal.Kind { return journal.KindReleaseOrder }

func (c *rereleaseCmd) Inverse(sim *Simulator) (Command, error) {
	o, err := sim.Order(c.OrderID)
	if err != nil {
		return nil, err
	}
	return &recallOrderCmd{OrderID: c.OrderID, PendingIndex: indexOfOrder(sim.pending, o)}, nil
}

func (c *rereleaseCmd) Apply(sim *Simulator) (journal.Decision, error) {
	o, err := sim.Order(c.OrderID)
	if err != nil {
		return journal.Decision{}, err
	}
	if err := sim.rerelease(o, c.Record); err != nil {
		return journal.Decision{}, err
	}
	return journal.Decision{OrderID: o.ID, Details: map[string]string{"station": o.Route[0]}}, nil
}

// PauseCmd freezes simulated time.
type PauseCmd struct{}

func (c *PauseCmd) Kind() journal.Kind { return journal.KindPause }
func (c *PauseCmd) Inverse(*Simulator) (Command, error) { return &ResumeCmd{}, nil }
func (c *PauseCmd) Apply(sim *Simulator) (journal.Decision, error) {
	return journal.Decision{}, sim.pause()
}

// ResumeCmd restarts simulated time after a pause.
type ResumeCmd struct{}

func (c *ResumeCmd) Kind() journal.Kind { return journal.KindResume }
func (c *ResumeCmd) Inverse(*Simulator) (Command, error) { return &PauseCmd{}, nil }
func (c *ResumeCmd) Apply(sim *Simulator) (journal.Decision, error) {
	return journal.Decision{}, sim.resume()
}

// HoldOrderCmd puts a queued or processing order on hold.
type HoldOrderCmd struct {
	OrderID string
}

func (c *HoldOrderCmd) Kind() journal.Kind { return journal.KindHoldOrder }

func (c *HoldOrderCmd) Inverse(*Simulator) (Command, error) {
	return &ResumeOrderCmd{OrderID: c.OrderID}, nil
}

func (c *HoldOrderCmd) Apply(sim *Simulator) (journal.Decision, error) {
	o, err := sim.Order(c.OrderID)
	if err != nil {
		return journal.Decision{}, err
	}
	if err := sim.holdOrder(o); err != nil {
		return journal.Decision{}, err
	}
	return journal.Decision{OrderID: o.ID, Details: map[string]string{"from": string(o.HeldFrom)}}, nil
}

// ResumeOrderCmd returns a held order to the status it had before the hold.
type ResumeOrderCmd struct {
	OrderID string
}

func (c *ResumeOrderCmd) Kind() journal.Kind { return journal.KindResumeOrder }

func (c *ResumeOrderCmd) Inverse(*Simulator) (Command, error) {
	return &HoldOrderCmd{OrderID: c.OrderID}, nil
}

func (c *ResumeOrderCmd) Apply(sim *Simulator) (journal.Decision, error) {
	o, err := sim.Order(c.OrderID)
	if err != nil {
		return journal.Decision{}, err
	}
	if err := sim.resumeOrder(o); err != nil {
		return journal.Decision{}, err
	}
	return journal.Decision{OrderID: o.ID, Details: map[string]string{"to": string(o.Status)}}, nil
}

// ChangeSettingsCmd applies a settings patch mid-session.
type ChangeSettingsCmd struct {
	Patch SettingsPatch
}

func (c *ChangeSettingsCmd) Kind() journal.Kind { return journal.KindChangeSettings }

// Inverse captures the current value of every field the patch touches.
func (c *ChangeSettingsCmd) Inverse(sim *Simulator) (Command, error) {
	if err := c.Patch.Validate(sim.stationIDs()); err != nil {
		return nil, err
	}
	s := &sim.Settings
	var old SettingsPatch
	if c.Patch.SpeedMultiplier != nil {
		v := sim.Clock.Speed
		old.SpeedMultiplier = &v
	}
	if c.Patch.OrderGenerationRate != nil {
		v := s.OrderGenerationRate
		old.OrderGenerationRate = &v
	}
	if c.Patch.ManualMode != nil {
		v := s.ManualMode
		old.ManualMode = &v
	}
	if c.Patch.Events != nil {
		v := s.Events
		old.Events = &v
	}
	if c.Patch.QualityIssueRate != nil {
		v := s.QualityIssueRate
		old.QualityIssueRate = &v
	}
	if len(c.Patch.StationPolicies) > 0 {
		old.StationPolicies = make(map[string]DispatchPolicy, len(c.Patch.StationPolicies))
		for id := range c.Patch.StationPolicies {
			old.StationPolicies[id] = sim.stationIndex[id].Policy
		}
	}
	return &ChangeSettingsCmd{Patch: old}, nil
}

func (c *ChangeSettingsCmd) Apply(sim *Simulator) (journal.Decision, error) {
	if err := c.Patch.Validate(sim.stationIDs()); err != nil {
		return journal.Decision{}, err
	}
	details := make(map[string]string)
	s := &sim.Settings
	if p := c.Patch.SpeedMultiplier; p != nil {
		sim.Clock.Speed = *p
		s.SpeedMultiplier = *p
		details["speed_multiplier"] = strconv.Itoa(*p)
	}
	if p := c.Patch.OrderGenerationRate; p != nil {
		s.OrderGenerationRate = *p
		if ra, ok := sim.source.(RateAdjuster); ok {
			ra.SetRate(*p)
		}
		details["order_generation_rate"] = strconv.FormatFloat(*p, 'f', -1, 64)
	}
	if p := c.Patch.ManualMode; p != nil {
		s.ManualMode = *p
		details["manual_mode"] = strconv.FormatBool(*p)
	}
	if p := c.Patch.Events; p != nil {
		s.Events = *p
		if rt, ok := sim.source.(RushToggler); ok {
			rt.SetRushOrders(p.RushOrders)
		}
		details["events"] = fmt.Sprintf("failures=%t quality=%t rush=%t", p.EquipmentFailures, p.QualityIssues, p.RushOrders)
	}
	if p := c.Patch.QualityIssueRate; p != nil {
		s.QualityIssueRate = *p
		details["quality_issue_rate"] = strconv.FormatFloat(*p, 'f', -1, 64)
	}
	for _, id := range slices.Sorted(maps.Keys(c.Patch.StationPolicies)) {
		pol := c.Patch.StationPolicies[id]
		sim.stationIndex[id].SetPolicy(pol)
		for i := range s.Departments {
			if s.Departments[i].ID == id {
				s.Departments[i].Policy = sim.stationIndex[id].Policy
			}
		}
		details["policy."+id] = string(sim.stationIndex[id].Policy)
	}
	sim.emitf(EventSettingsChanged, SeverityInfo, "", "", "Settings changed: %v", details)
	return journal.Decision{Details: details}, nil
}

func (sim *Simulator) stationIDs() map[string]bool {
	ids := make(map[string]bool, len(sim.stations))
	for _, st := range sim.stations {
		ids[st.ID] = true
	}
	return ids
}
