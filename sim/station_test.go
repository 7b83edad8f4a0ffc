package sim

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/orderflow-sim/sim/simerr"
)

func newTestStation(policy DispatchPolicy, capacity, maxQueue int, baseMinutes float64) *Station {
	return NewStation(DepartmentConfig{
		ID: "st", Name: "Station", Capacity: capacity, MaxQueueSize: maxQueue,
		Policy: policy, BaseMinutes: baseMinutes, Efficiency: 1, EquipmentCondition: 1, Reliability: 1,
	})
}

func checkWIP(t *testing.T, st *Station) {
	t.Helper()
	if st.WIP() != st.QueueLen()+st.InProcessLen() {
		t.Errorf("WIP %d != queue %d + inProcess %d", st.WIP(), st.QueueLen(), st.InProcessLen())
	}
}

func TestStation_Enqueue_FourthOrderExceedsCapacity(t *testing.T) {
	// GIVEN a FIFO station with capacity 1 and max queue size 2
	st := newTestStation(PolicyFIFO, 1, 2, 5)

	// WHEN four orders are enqueued
	var errs []error
	for i := 0; i < 4; i++ {
		errs = append(errs, st.Enqueue(NewOrder(orderIDs(4)[i], []string{"st"}, 0, 0), 0))
		checkWIP(t, st)
	}

	// THEN the first three are admitted and the fourth fails with CapacityExceeded
	for i := 0; i < 3; i++ {
		assert.NoError(t, errs[i], "enqueue %d", i+1)
	}
	assert.True(t, errors.Is(errs[3], simerr.ErrCapacityExceeded), "got %v", errs[3])
	assert.Equal(t, 3, st.WIP())
}

func TestStation_Enqueue_TerminalOrder_Rejected(t *testing.T) {
	st := newTestStation(PolicyFIFO, 1, 2, 5)
	o := NewOrder("A", []string{"st"}, 0, 0)
	o.Status = StatusDone

	err := st.Enqueue(o, 0)

	assert.ErrorIs(t, err, simerr.ErrInvalidTransition)
	assert.Equal(t, 0, st.WIP())
}

func TestStation_Dispatch_EDD_EarliestDueFirst(t *testing.T) {
	// GIVEN an EDD station holding orders due at T+10, T+5, T+20 (arrival order)
	const T = 1000
	st := newTestStation(PolicyEDD, 1, 5, 5)
	for _, o := range []*Order{
		NewOrder("due10", []string{"st"}, T+10, 0),
		NewOrder("due5", []string{"st"}, T+5, 0),
		NewOrder("due20", []string{"st"}, T+20, 0),
	} {
		require.NoError(t, st.Enqueue(o, 0))
	}

	// WHEN the station dispatches
	started := st.Dispatch(0)

	// THEN the T+5 order starts first
	require.Len(t, started, 1)
	assert.Equal(t, "due5", started[0].ID)
	assert.Equal(t, StatusProcessing, started[0].Status)
	checkWIP(t, st)
}

func TestStation_Dispatch_SPT_ShortestAuthoredDuration(t *testing.T) {
	// GIVEN an SPT station where the second order has the shortest authored duration
	st := newTestStation(PolicySPT, 1, 5, 10)
	long := NewOrder("long", []string{"st"}, 0, 0)
	short := NewOrder("short", []string{"st"}, 0, 0)
	short.StationDurations = map[string]int64{"st": 2 * Minute}
	base := NewOrder("base", []string{"st"}, 0, 0)
	long.StationDurations = map[string]int64{"st": 30 * Minute}
	for _, o := range []*Order{long, short, base} {
		require.NoError(t, st.Enqueue(o, 0))
	}

	// WHEN the station dispatches
	started := st.Dispatch(0)

	// THEN the short order starts
	require.Len(t, started, 1)
	assert.Equal(t, "short", started[0].ID)
}

func TestStation_Dispatch_TiesFallBackToFIFO(t *testing.T) {
	tests := []struct {
		name   string
		policy DispatchPolicy
	}{
		{"fifo", PolicyFIFO},
		{"edd equal due", PolicyEDD},
		{"spt equal duration", PolicySPT},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newTestStation(tt.policy, 1, 5, 5)
			for _, id := range []string{"first", "second", "third"} {
				require.NoError(t, st.Enqueue(NewOrder(id, []string{"st"}, 500, 0), 0))
			}
			started := st.Dispatch(0)
			require.Len(t, started, 1)
			assert.Equal(t, "first", started[0].ID)
		})
	}
}

func TestStation_Dispatch_SkipsHeldOrders(t *testing.T) {
	st := newTestStation(PolicyFIFO, 1, 5, 5)
	held := NewOrder("held", []string{"st"}, 0, 0)
	next := NewOrder("next", []string{"st"}, 0, 0)
	require.NoError(t, st.Enqueue(held, 0))
	require.NoError(t, st.Enqueue(next, 0))
	held.HeldFrom, held.Status = held.Status, StatusOnHold

	started := st.Dispatch(0)

	require.Len(t, started, 1)
	assert.Equal(t, "next", started[0].ID)
	assert.Equal(t, 1, st.QueueLen())
}

func TestStation_EffectiveDuration_AppliesMultipliers(t *testing.T) {
	tests := []struct {
		name       string
		efficiency float64
		condition  float64
		half       bool
		want       int64
	}{
		{"nominal", 1, 1, false, 20 * Minute},
		{"half order", 1, 1, true, 10 * Minute},
		{"efficient crew", 2, 1, false, 10 * Minute},
		{"worn equipment", 1, 0.5, false, 40 * Minute},
		{"half order on worn equipment", 1, 0.5, true, 20 * Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := NewStation(DepartmentConfig{ID: "st", Capacity: 1, BaseMinutes: 20, Efficiency: tt.efficiency, EquipmentCondition: tt.condition})
			o := NewOrder("A", []string{"st"}, 0, 0)
			if tt.half {
				require.NoError(t, o.MarkHalfOrder(HalfOrderDefectRepair))
			}
			assert.Equal(t, tt.want, st.EffectiveDuration(o))
		})
	}
}

func TestStation_Advance_CompletesAndKeepsSlotUntilRelease(t *testing.T) {
	// GIVEN a station processing a 5-minute order
	st := newTestStation(PolicyFIFO, 1, 2, 5)
	o := NewOrder("A", []string{"st"}, 0, 0)
	require.NoError(t, st.Enqueue(o, 0))
	st.Dispatch(0)

	// WHEN it advances 3 then 2 minutes
	assert.Empty(t, st.Advance(3*Minute, 3*Minute))
	done := st.Advance(2*Minute, 5*Minute)

	// THEN the order finishes, is counted, and still occupies the slot
	require.Len(t, done, 1)
	assert.Equal(t, 1, st.TotalProcessed)
	assert.Equal(t, int64(5*Minute), o.Steps[0].CompletedAt)
	assert.Equal(t, 1, st.WIP())
	assert.InDelta(t, 100.0, st.Utilization, 1e-9)
	checkWIP(t, st)

	// WHEN the routing controller releases it
	assert.True(t, st.Release(o))

	// THEN the station is empty
	assert.Equal(t, 0, st.WIP())
	assert.InDelta(t, float64(5*Minute), st.AverageCycleTime(), 1e-9)
}

func TestStation_Advance_UtilizationIsBusyOverElapsed(t *testing.T) {
	// GIVEN a capacity-2 station with one 10-minute order
	st := newTestStation(PolicyFIFO, 2, 2, 10)
	require.NoError(t, st.Enqueue(NewOrder("A", []string{"st"}, 0, 0), 0))
	st.Dispatch(0)

	// WHEN 20 minutes elapse
	st.Advance(20*Minute, 20*Minute)

	// THEN utilization is 10 busy minutes over 2 slots × 20 minutes = 25%
	assert.InDelta(t, 25.0, st.Utilization, 1e-9)
}

func TestStation_Maintenance_FreezesProgress(t *testing.T) {
	// GIVEN a station 4 minutes into a 10-minute order
	st := newTestStation(PolicyFIFO, 1, 2, 10)
	o := NewOrder("A", []string{"st"}, 0, 0)
	require.NoError(t, st.Enqueue(o, 0))
	st.Dispatch(0)
	st.Advance(4*Minute, 4*Minute)

	// WHEN the station fails for 5 minutes and 5 minutes pass
	require.True(t, st.Fail(5*Minute))
	assert.False(t, st.Fail(5*Minute), "already down")
	d, ok := st.NextDeadline()
	require.True(t, ok)
	assert.Equal(t, int64(5*Minute), d)
	assert.Empty(t, st.Advance(5*Minute, 9*Minute))

	// THEN the order kept its progress and needs 6 more minutes
	assert.Equal(t, StationOperational, st.Status)
	rem, inProcess := st.Remaining(o)
	require.True(t, inProcess)
	assert.Equal(t, int64(6*Minute), rem)
}

func TestStation_Fault_EjectsInProcess(t *testing.T) {
	st := newTestStation(PolicyFIFO, 1, 2, 10)
	a := NewOrder("A", []string{"st"}, 0, 0)
	b := NewOrder("B", []string{"st"}, 0, 0)
	require.NoError(t, st.Enqueue(a, 0))
	require.NoError(t, st.Enqueue(b, 0))
	st.Dispatch(0)

	lost := st.Fault(Minute)

	require.Len(t, lost, 1)
	assert.Equal(t, "A", lost[0].ID)
	assert.Equal(t, StationMaintenance, st.Status)
	assert.Equal(t, 1, st.WIP())
	checkWIP(t, st)
}

func TestStation_Advance_HeldOrderDoesNotProgress(t *testing.T) {
	st := newTestStation(PolicyFIFO, 1, 2, 10)
	o := NewOrder("A", []string{"st"}, 0, 0)
	require.NoError(t, st.Enqueue(o, 0))
	st.Dispatch(0)
	o.HeldFrom, o.Status = o.Status, StatusOnHold

	st.Advance(15*Minute, 15*Minute)

	rem, _ := st.Remaining(o)
	assert.Equal(t, int64(10*Minute), rem)
	_, ok := st.NextDeadline()
	assert.False(t, ok)
}

func TestStation_ThroughputRate_FallsBackToTheoretical(t *testing.T) {
	st := newTestStation(PolicyFIFO, 2, 2, 10)
	assert.InDelta(t, 2.0/float64(10*Minute), st.ThroughputRate(0), 1e-12)
}
