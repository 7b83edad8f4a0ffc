package sim

// ScheduledOrder pairs an order with the elapsed time at which it enters the
// live order pool. Immutable once released.
type ScheduledOrder struct {
	Order       *Order `json:"order"`
	ReleaseTime int64  `json:"releaseTime"`
}

// OrderSource feeds orders into a session.
// Next returns every order whose release time is at or before limit that has
// not been returned yet, in release-time order. Implementations are driven
// from the single simulation goroutine and need not be thread-safe.
type OrderSource interface {
	Next(limit int64) []ScheduledOrder
}

// RateAdjuster is implemented by sources whose arrival rate can change
// mid-session (orders per simulated hour).
type RateAdjuster interface {
	SetRate(perHour float64)
}

// RushToggler is implemented by sources that can start or stop producing
// rush orders mid-session.
type RushToggler interface {
	SetRushOrders(enabled bool)
}

// StaticSource is an OrderSource over a fixed list. Used by tests and by
// callers that build orders themselves.
type StaticSource struct {
	orders []ScheduledOrder
	next   int
}

// NewStaticSource returns a source over orders, which must already be sorted
// by release time.
func NewStaticSource(orders []ScheduledOrder) *StaticSource {
	return &StaticSource{orders: orders}
}

// Next implements OrderSource.
func (s *StaticSource) Next(limit int64) []ScheduledOrder {
	start := s.next
	for s.next < len(s.orders) && s.orders[s.next].ReleaseTime <= limit {
		s.next++
	}
	return s.orders[start:s.next]
}
