// Package journal provides the append-only decision log of a simulation session.
// This package has no dependencies on sim/; it stores pure data types.
package journal

import (
	"fmt"
	"maps"
	"strconv"

	"github.com/google/uuid"

	"github.com/inference-sim/orderflow-sim/sim/simerr"
)

// Kind identifies the command a Decision records.
type Kind string

const (
	KindReleaseOrder   Kind = "release_order"
	KindPause          Kind = "pause"
	KindResume         Kind = "resume"
	KindChangeSettings Kind = "change_settings"
	KindHoldOrder      Kind = "hold_order"
	KindResumeOrder    Kind = "resume_order"
	KindUndo           Kind = "undo"
	KindRedo           Kind = "redo"
)

// Kinds lists every decision kind in a fixed order.
var Kinds = []Kind{KindReleaseOrder, KindPause, KindResume, KindChangeSettings, KindHoldOrder, KindResumeOrder, KindUndo, KindRedo}

var validKinds = map[Kind]bool{
	KindReleaseOrder:   true,
	KindPause:          true,
	KindResume:         true,
	KindChangeSettings: true,
	KindHoldOrder:      true,
	KindResumeOrder:    true,
	KindUndo:           true,
	KindRedo:           true,
}

// IsValidKind returns true if k is a recognized decision kind.
func IsValidKind(k string) bool {
	return validKinds[Kind(k)]
}

// Decision is an immutable record of one state-changing command.
// RevertsID is set on undo and redo records and names the decision they act on.
type Decision struct {
	ID        string            `json:"id"`
	Seq       int               `json:"seq"`
	Kind      Kind              `json:"kind"`
	Timestamp int64             `json:"timestamp"`
	Elapsed   int64             `json:"elapsed"`
	OrderID   string            `json:"orderId,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
	RevertsID string            `json:"revertsId,omitempty"`
}

// Journal collects decisions in the order they were recorded.
// Thread-safety: NOT thread-safe. The owning session serializes access.
type Journal struct {
	sessionID uuid.UUID
	closed    bool
	decisions []Decision
	index     map[string]int
}

// New creates an empty Journal whose decision IDs derive from sessionID.
func New(sessionID uuid.UUID) *Journal {
	return &Journal{
		sessionID: sessionID,
		decisions: make([]Decision, 0),
		index:     make(map[string]int),
	}
}

// Record appends d, assigning its sequence number and ID, and returns the
// stored copy. Fails with ErrSessionClosed once Close has been called.
func (j *Journal) Record(d Decision) (Decision, error) {
	if j.closed {
		return Decision{}, fmt.Errorf("record %s: %w", d.Kind, simerr.ErrSessionClosed)
	}
	if !validKinds[d.Kind] {
		return Decision{}, fmt.Errorf("record decision kind %q: %w", d.Kind, simerr.ErrUnknownValue)
	}
	d.Seq = len(j.decisions) + 1
	d.ID = uuid.NewSHA1(j.sessionID, []byte("decision-"+strconv.Itoa(d.Seq))).String()
	if d.Details != nil {
		d.Details = maps.Clone(d.Details)
	}
	j.index[d.ID] = len(j.decisions)
	j.decisions = append(j.decisions, d)
	return cloneDecision(d), nil
}

// Close rejects all further Record calls.
func (j *Journal) Close() {
	j.closed = true
}

// Closed reports whether the journal accepts new decisions.
func (j *Journal) Closed() bool {
	return j.closed
}

// Len returns the number of recorded decisions.
func (j *Journal) Len() int {
	return len(j.decisions)
}

// Get returns the decision with the given ID.
func (j *Journal) Get(id string) (Decision, bool) {
	i, ok := j.index[id]
	if !ok {
		return Decision{}, false
	}
	return cloneDecision(j.decisions[i]), true
}

// Decisions returns a copy of all recorded decisions in order.
func (j *Journal) Decisions() []Decision {
	out := make([]Decision, len(j.decisions))
	for i, d := range j.decisions {
		out[i] = cloneDecision(d)
	}
	return out
}

func cloneDecision(d Decision) Decision {
	if d.Details != nil {
		d.Details = maps.Clone(d.Details)
	}
	return d
}
