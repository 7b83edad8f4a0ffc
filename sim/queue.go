// Implements the OrderQueue, which holds all orders waiting at a station.
// Orders are appended on enqueue; the station's dispatcher picks which one leaves.

package sim

import (
	"fmt"
	"slices"
	"strings"
)

// OrderQueue holds orders waiting for a free slot at one station.
// Slice position is enqueue order, which is the FIFO tie-breaker for every
// dispatch policy.
type OrderQueue struct {
	queue []*Order
}

// Enqueue adds an order to the back of the queue.
func (q *OrderQueue) Enqueue(o *Order) {
	q.queue = append(q.queue, o)
}

func (q *OrderQueue) String() string {
	var sb strings.Builder
	sb.WriteString("[")
	for i, o := range q.queue {
		sb.WriteString(o.ID)
		if i < len(q.queue)-1 {
			sb.WriteString(" ")
		}
	}
	sb.WriteString("]")
	return sb.String()
}

// Len returns the number of orders in the queue.
func (q *OrderQueue) Len() int {
	return len(q.queue)
}

// Items returns the queue contents for iteration.
// The returned slice is the queue's internal storage -- callers within the
// sim package may iterate over it but MUST NOT append to or reslice it.
func (q *OrderQueue) Items() []*Order {
	return q.queue
}

// IndexOf returns the position of the order with the given ID, or -1.
func (q *OrderQueue) IndexOf(id string) int {
	for i, o := range q.queue {
		if o.ID == id {
			return i
		}
	}
	return -1
}

// InsertAt puts o at position i, clamped to [0, Len()].
func (q *OrderQueue) InsertAt(i int, o *Order) {
	i = min(max(i, 0), len(q.queue))
	q.queue = slices.Insert(q.queue, i, o)
}

// RemoveAt removes and returns the order at position i.
func (q *OrderQueue) RemoveAt(i int) *Order {
	if i < 0 || i >= len(q.queue) {
		panic(fmt.Sprintf("RemoveAt: index %d out of range [0,%d)", i, len(q.queue)))
	}
	o := q.queue[i]
	q.queue = append(q.queue[:i], q.queue[i+1:]...)
	return o
}

// Remove deletes the order with the given ID. Returns false when absent.
func (q *OrderQueue) Remove(id string) bool {
	i := q.IndexOf(id)
	if i < 0 {
		return false
	}
	q.RemoveAt(i)
	return true
}
