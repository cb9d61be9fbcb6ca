// Package store provides storage and pub/sub functionality for widget
// snapshots.
//
// This package is internal to netpulse and keeps the latest state of every
// dashboard widget in memory. It implements a publish-subscribe pattern for
// real-time updates to connected dashboard clients.
//
// The main components are:
//
//   - [Store]: Interface defining storage and subscription operations
//   - [MemoryStore]: In-memory implementation of Store with pub/sub
//   - [Snapshot]: Storage representation of a widget's state
//
// Subscribers receive updates via channels with non-blocking sends (slow
// subscribers will miss updates rather than block the pollers).
package store
