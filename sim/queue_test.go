package sim

import (
	"testing"
)

func TestOrderQueue_InsertAt_RestoresPosition(t *testing.T) {
	// GIVEN a queue [A, C] from which B was taken at index 1
	q := &OrderQueue{}
	q.Enqueue(&Order{ID: "A"})
	q.Enqueue(&Order{ID: "C"})

	// WHEN B is inserted back at index 1
	q.InsertAt(1, &Order{ID: "B"})

	// THEN the original order is restored
	if got := q.String(); got != "[A B C]" {
		t.Errorf("InsertAt: got %s, want [A B C]", got)
	}
}

func TestOrderQueue_InsertAt_ClampsIndex(t *testing.T) {
	q := &OrderQueue{}
	q.Enqueue(&Order{ID: "A"})

	q.InsertAt(-3, &Order{ID: "F"})
	q.InsertAt(99, &Order{ID: "L"})

	if got := q.String(); got != "[F A L]" {
		t.Errorf("InsertAt clamping: got %s, want [F A L]", got)
	}
}

func TestOrderQueue_RemoveAt_PreservesOrderOfRest(t *testing.T) {
	// GIVEN a queue with orders [A, B, C]
	q := &OrderQueue{}
	for _, id := range []string{"A", "B", "C"} {
		q.Enqueue(&Order{ID: id})
	}

	// WHEN the middle order is removed
	got := q.RemoveAt(1)

	// THEN B is returned and [A, C] remain in enqueue order
	if got.ID != "B" {
		t.Errorf("RemoveAt(1): got %s, want B", got.ID)
	}
	if q.String() != "[A C]" {
		t.Errorf("remaining queue: got %s, want [A C]", q.String())
	}
}

func TestOrderQueue_RemoveAt_OutOfRange_Panics(t *testing.T) {
	q := &OrderQueue{}
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic for out-of-range index")
		}
	}()
	q.RemoveAt(0)
}

func TestOrderQueue_Remove_ByID(t *testing.T) {
	// GIVEN a queue with orders [A, B]
	q := &OrderQueue{}
	q.Enqueue(&Order{ID: "A"})
	q.Enqueue(&Order{ID: "B"})

	// WHEN A is removed and a missing ID is removed
	removed := q.Remove("A")
	missing := q.Remove("Z")

	// THEN only A is gone
	if !removed || missing {
		t.Errorf("Remove: got (%v, %v), want (true, false)", removed, missing)
	}
	if q.IndexOf("B") != 0 || q.Len() != 1 {
		t.Errorf("after Remove: queue %s, want [B]", q.String())
	}
}

func TestOrderQueue_Items_EmptyQueue(t *testing.T) {
	// GIVEN an empty queue
	q := &OrderQueue{}

	// WHEN Items() is called
	items := q.Items()

	// THEN it returns an empty (or nil) slice
	if len(items) != 0 {
		t.Errorf("Items on empty queue: got %d elements, want 0", len(items))
	}
}
