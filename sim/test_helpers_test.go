package sim

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

// testDepartments is a two-station floor with 10-minute steps.
func testDepartments() []DepartmentConfig {
	return []DepartmentConfig{
		{ID: "cut", Name: "Cutting", Capacity: 1, MaxQueueSize: 3, Policy: PolicyFIFO, BaseMinutes: 10, Efficiency: 1, EquipmentCondition: 1, Reliability: 1},
		{ID: "pack", Name: "Packing", Capacity: 1, MaxQueueSize: 3, Policy: PolicyFIFO, BaseMinutes: 10, Efficiency: 1, EquipmentCondition: 1, Reliability: 1},
	}
}

// testSettings returns predetermined-mode settings on testDepartments.
func testSettings() GameSettings {
	s := DefaultSettings()
	s.Mode = ModePredetermined
	s.Departments = testDepartments()
	s.QualityIssueRate = 0
	s.RushOrderRate = 0
	return s
}

// testOrder builds an order released at release with a due time relative to it.
func testOrder(id string, release, due int64, route ...string) ScheduledOrder {
	o := NewOrder(id, route, due, release)
	o.Value = 100
	return ScheduledOrder{Order: o, ReleaseTime: release}
}

// startedSim builds and starts a simulator fed by a static source.
func startedSim(t *testing.T, settings GameSettings, orders ...ScheduledOrder) *Simulator {
	t.Helper()
	sim, err := NewSimulator(settings)
	require.NoError(t, err)
	require.NoError(t, sim.Start(NewStaticSource(orders), NewSimulationKey(42)))
	return sim
}

// tickN calls Tick(dt) n times.
func tickN(t *testing.T, sim *Simulator, n int, dt int64) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, sim.Tick(dt))
	}
}

// assertStationInvariants checks the WIP and utilization invariants of every station.
func assertStationInvariants(t *testing.T, sim *Simulator) {
	t.Helper()
	for _, st := range sim.Stations() {
		if st.WIP() != st.QueueLen()+st.InProcessLen() {
			t.Errorf("%s: WIP %d != queue %d + inProcess %d", st.ID, st.WIP(), st.QueueLen(), st.InProcessLen())
		}
		if st.WIP() > st.Limit() {
			t.Errorf("%s: WIP %d exceeds limit %d", st.ID, st.WIP(), st.Limit())
		}
		if st.Utilization < 0 || st.Utilization > 100 {
			t.Errorf("%s: utilization %v outside [0,100]", st.ID, st.Utilization)
		}
	}
}

func orderIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("ORD-%04d", i+1)
	}
	return ids
}
