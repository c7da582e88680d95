// Package events defines the dispatch events emitted on the event bus.
//
// Available event types:
//   - TickEvent: a tick completed and its result was published
//   - ModeChangeEvent: the dispatch mode differs from the previous tick
//   - HourSnapshotEvent: the state of charge at the start of the hour was captured
package events
