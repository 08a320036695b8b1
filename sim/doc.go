// Package sim provides the CPU scheduling engine for mirage-sim.
//
// # Reading Guide
//
// Start with these files to understand the scheduling kernel:
//   - process.go: Process lifecycle (ready → running → terminated) and state machine
//   - scheduler.go: Ready-queue orderings for FCFS, SJF, Priority and RR
//   - simulator.go: The Scheduler engine and its one-tick step function
//
// # Architecture
//
// The sim package owns the scheduling state; sibling packages own the rest:
//   - sim/memory/: contiguous memory allocator (first/best/worst fit, split and coalesce)
//   - sim/trace/: decision trace recording and Gantt timeline summaries
//   - sim/scenario/: YAML scenarios driving both engines tick by tick
//
// Engines never call out to the transport layer and share no mutable state with each
// other. Every query returns a deep-copied snapshot, so callers may hold on to it while
// the engine keeps stepping.
//
// # Key Interfaces
//
//   - ReadyOrder: order the ready pool before the next process is dispatched
//
// Time is logical: one ExecuteStep call advances the clock by exactly one tick.
package sim
