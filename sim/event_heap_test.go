package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReleaseHeap_ReleaseTimeOrdering(t *testing.T) {
	h := NewReleaseHeap()
	h.Schedule(testOrder("late", 100, 0))
	h.Schedule(testOrder("early", 50, 0))
	h.Schedule(testOrder("latest", 150, 0))

	var got []string
	for {
		so, ok := h.PopDue(1000)
		if !ok {
			break
		}
		got = append(got, so.Order.ID)
	}

	assert.Equal(t, []string{"early", "late", "latest"}, got)
}

func TestReleaseHeap_TiesBrokenByInsertionOrder(t *testing.T) {
	h := NewReleaseHeap()
	for _, id := range []string{"c", "a", "b"} {
		h.Schedule(testOrder(id, 60, 0))
	}

	items := h.Items()

	require.Len(t, items, 3)
	assert.Equal(t, "c", items[0].Order.ID)
	assert.Equal(t, "a", items[1].Order.ID)
	assert.Equal(t, "b", items[2].Order.ID)
	assert.Equal(t, 3, h.Len(), "Items must not drain the heap")
}

func TestReleaseHeap_PopDue_RespectsTime(t *testing.T) {
	h := NewReleaseHeap()
	h.Schedule(testOrder("A", 100, 0))

	_, ok := h.PopDue(99)
	assert.False(t, ok)
	next, ok := h.PeekTime()
	require.True(t, ok)
	assert.Equal(t, int64(100), next)

	so, ok := h.PopDue(100)
	assert.True(t, ok)
	assert.Equal(t, "A", so.Order.ID)
	_, ok = h.PeekTime()
	assert.False(t, ok)
}

func TestStaticSource_Next_ReturnsUpToLimitOnce(t *testing.T) {
	src := NewStaticSource([]ScheduledOrder{testOrder("A", 0, 0), testOrder("B", 60, 0), testOrder("C", 120, 0)})

	first := src.Next(60)
	second := src.Next(60)
	third := src.Next(1000)

	assert.Len(t, first, 2)
	assert.Empty(t, second)
	require.Len(t, third, 1)
	assert.Equal(t, "C", third[0].Order.ID)
}
