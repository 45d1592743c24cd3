// Package store provides SQLite-backed run history for story batches.
//
// Each batch is recorded once, after it finishes, together with the outcome
// of every top-level story: its status, duration and failure text. Batches
// are identified by UUIDv7 ids, so ids sort by start time.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Queries order deterministically: batches by start time then id, stories
// by their position in the batch.
package store
