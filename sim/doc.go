// Package sim provides the discrete-event order-flow engine for orderflow-sim.
//
// # Reading Guide
//
// Start with these files to understand the simulation kernel:
//   - order.go: Order lifecycle (queued → processing → next station | terminal) and status enum
//   - station.go: Department stations as finite-capacity queueing servers
//   - simulator.go: The tick loop, release scheduling and the order of in-tick processing
//   - routing.go: Moving orders between stations, completion, rework, backpressure
//
// # Architecture
//
// The sim package defines the domain types and the engine; collaborators live
// in sub-packages:
//   - sim/workload/: Order generation (procedural seeded, predetermined schedules)
//   - sim/journal/: Append-only decision log
//   - sim/session/: Single-writer session wrapper with lock-free snapshots
//   - sim/simerr/: Error kinds shared by every layer
//
// Time is measured in ticks of one simulated second. The engine never reads
// wall-clock time: it only moves when Simulator.Tick is called, so the same
// settings, seed and tick sequence always produce the same GameState.
//
// # Key Interfaces
//
//   - OrderSource: supplies ScheduledOrders in release-time order
//   - Dispatcher: selects the next queued order at a station (FIFO, EDD, SPT)
//   - Command: a state-changing action that knows how to produce its own inverse
package sim
