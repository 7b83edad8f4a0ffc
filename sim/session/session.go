// Package session wraps a Simulator for concurrent use.
//
// One goroutine at a time mutates the engine: every tick, command, undo and
// redo runs under a single mutex. After each mutation a deep-copied
// GameState is published through an atomic pointer, so readers calling
// Snapshot never block on the engine and never observe a half-applied
// mutation. Events are fanned out to subscribers on buffered channels with
// non-blocking sends; a slow subscriber loses events instead of stalling
// the simulation.
package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/orderflow-sim/sim"
	"github.com/inference-sim/orderflow-sim/sim/journal"
	"github.com/inference-sim/orderflow-sim/sim/workload"
)

// DefaultBuffer is the subscriber channel capacity used when Subscribe gets a non-positive size.
const DefaultBuffer = 256

// Session is a single-writer, many-reader handle on one simulation.
type Session struct {
	mu    sync.Mutex
	sim   *sim.Simulator
	state atomic.Pointer[sim.GameState]

	subsMu  sync.Mutex
	subs    map[int]chan sim.GameEvent
	nextSub int
	dropped atomic.Int64
}

// New validates settings and builds a session in setup status.
func New(settings sim.GameSettings) (*Session, error) {
	engine, err := sim.NewSimulator(settings)
	if err != nil {
		return nil, err
	}
	s := &Session{sim: engine, subs: make(map[int]chan sim.GameEvent)}
	engine.AddObserver(s.broadcast)
	s.publish()
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.sim.ID.String()
}

// Start builds the order source from the session settings and starts the clock.
// On failure the session stays in setup and the error is also reported on the
// event stream.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.publish()

	src, key, err := workload.NewSource(s.sim.Settings)
	if err != nil {
		s.sim.ReportError(err)
		return fmt.Errorf("start session: %w", err)
	}
	if err := s.sim.Start(src, key); err != nil {
		s.sim.ReportError(err)
		return err
	}
	return nil
}

// StartWith starts the session on a caller-supplied source and key.
func (s *Session) StartWith(src sim.OrderSource, key sim.SimulationKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.publish()

	if err := s.sim.Start(src, key); err != nil {
		s.sim.ReportError(err)
		return err
	}
	return nil
}

// Tick advances the session by dt ticks (scaled by the speed multiplier).
func (s *Session) Tick(dt int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.publish()
	return s.sim.Tick(dt)
}

// ReleaseOrder releases a pending order to its first station.
func (s *Session) ReleaseOrder(orderID string) (journal.Decision, error) {
	return s.execute(&sim.ReleaseOrderCmd{OrderID: orderID})
}

// Pause freezes the active clock.
func (s *Session) Pause() (journal.Decision, error) {
	return s.execute(&sim.PauseCmd{})
}

// Resume unfreezes the active clock.
func (s *Session) Resume() (journal.Decision, error) {
	return s.execute(&sim.ResumeCmd{})
}

// HoldOrder puts an order on hold.
func (s *Session) HoldOrder(orderID string) (journal.Decision, error) {
	return s.execute(&sim.HoldOrderCmd{OrderID: orderID})
}

// ResumeOrder lifts a hold.
func (s *Session) ResumeOrder(orderID string) (journal.Decision, error) {
	return s.execute(&sim.ResumeOrderCmd{OrderID: orderID})
}

// ChangeSettings applies a settings patch.
func (s *Session) ChangeSettings(patch sim.SettingsPatch) (journal.Decision, error) {
	return s.execute(&sim.ChangeSettingsCmd{Patch: patch})
}

// Execute runs an arbitrary command.
func (s *Session) Execute(cmd sim.Command) (journal.Decision, error) {
	return s.execute(cmd)
}

func (s *Session) execute(cmd sim.Command) (journal.Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.publish()
	return s.sim.Execute(cmd)
}

// Undo reverts the newest decision still on the undo stack.
func (s *Session) Undo() (journal.Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.publish()
	return s.sim.Undo()
}

// Redo re-applies the newest undone command.
func (s *Session) Redo() (journal.Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.publish()
	return s.sim.Redo()
}

// InjectFailure forces a station into maintenance, or into a fault when fatal is set.
func (s *Session) InjectFailure(stationID string, fatal bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.publish()
	return s.sim.InjectFailure(stationID, fatal)
}

// Snapshot returns the most recently published state. It never blocks on
// the engine. The returned value is shared between readers and must not be
// modified.
func (s *Session) Snapshot() *sim.GameState {
	return s.state.Load()
}

// publish deep-copies the engine state; callers hold s.mu.
func (s *Session) publish() {
	s.state.Store(s.sim.Snapshot())
}

// Subscribe registers a new event subscriber with the given channel capacity.
// The returned cancel function unregisters the subscriber and closes the channel.
func (s *Session) Subscribe(buffer int) (<-chan sim.GameEvent, func()) {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	ch := make(chan sim.GameEvent, buffer)

	s.subsMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.subsMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.subsMu.Lock()
			delete(s.subs, id)
			s.subsMu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Dropped returns how many events were discarded because a subscriber's buffer was full.
func (s *Session) Dropped() int64 {
	return s.dropped.Load()
}

func (s *Session) broadcast(ev sim.GameEvent) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for id, ch := range s.subs {
		select {
		case ch <- ev:
		default:
			if s.dropped.Add(1)%100 == 1 {
				logrus.Warnf("Session %s: subscriber %d is full, dropping events", s.ID(), id)
			}
		}
	}
}

// Run drives the session with a wall-clock ticker, advancing dt ticks every
// interval, until the session completes (nil) or ctx ends (ctx.Err()).
func (s *Session) Run(ctx context.Context, every time.Duration, dt int64) error {
	if every <= 0 {
		return fmt.Errorf("run: non-positive interval %v", every)
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.Tick(dt); err != nil {
				return err
			}
			if s.Snapshot().Status == sim.SessionCompleted {
				logrus.Infof("Session %s completed", s.ID())
				return nil
			}
		}
	}
}
