package sim

import "container/heap"

// releaseEntry is a scheduled order waiting in the release heap.
type releaseEntry struct {
	ScheduledOrder
	seq int64 // insertion order
}

// ReleaseHeap implements a priority queue of scheduled orders with
// deterministic ordering: release time → insertion sequence.
type ReleaseHeap struct {
	entries []releaseEntry
	nextSeq int64
}

// NewReleaseHeap creates an empty release heap.
func NewReleaseHeap() *ReleaseHeap {
	h := &ReleaseHeap{entries: make([]releaseEntry, 0)}
	heap.Init(h)
	return h
}

// Len implements heap.Interface
func (h *ReleaseHeap) Len() int {
	return len(h.entries)
}

// Less implements heap.Interface
func (h *ReleaseHeap) Less(i, j int) bool {
	ei, ej := h.entries[i], h.entries[j]
	if ei.ReleaseTime != ej.ReleaseTime {
		return ei.ReleaseTime < ej.ReleaseTime
	}
	return ei.seq < ej.seq
}

// Swap implements heap.Interface
func (h *ReleaseHeap) Swap(i, j int) {
	h.entries[i], h.entries[j] = h.entries[j], h.entries[i]
}

// Push implements heap.Interface
func (h *ReleaseHeap) Push(x any) {
	h.entries = append(h.entries, x.(releaseEntry))
}

// Pop implements heap.Interface
func (h *ReleaseHeap) Pop() any {
	old := h.entries
	n := len(old)
	item := old[n-1]
	h.entries = old[0 : n-1]
	return item
}

// Schedule adds a scheduled order to the heap.
func (h *ReleaseHeap) Schedule(so ScheduledOrder) {
	heap.Push(h, releaseEntry{ScheduledOrder: so, seq: h.nextSeq})
	h.nextSeq++
}

// PopDue removes and returns the next order if it is due at or before now.
func (h *ReleaseHeap) PopDue(now int64) (ScheduledOrder, bool) {
	if h.Len() == 0 || h.entries[0].ReleaseTime > now {
		return ScheduledOrder{}, false
	}
	return heap.Pop(h).(releaseEntry).ScheduledOrder, true
}

// PeekTime returns the earliest release time in the heap.
func (h *ReleaseHeap) PeekTime() (int64, bool) {
	if h.Len() == 0 {
		return 0, false
	}
	return h.entries[0].ReleaseTime, true
}

// Items returns the scheduled orders in release order without modifying the heap.
func (h *ReleaseHeap) Items() []ScheduledOrder {
	sorted := make([]releaseEntry, len(h.entries))
	copy(sorted, h.entries)
	tmp := &ReleaseHeap{entries: sorted}
	heap.Init(tmp)
	out := make([]ScheduledOrder, 0, len(sorted))
	for tmp.Len() > 0 {
		out = append(out, heap.Pop(tmp).(releaseEntry).ScheduledOrder)
	}
	return out
}
