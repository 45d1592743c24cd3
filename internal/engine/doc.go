// Package engine runs performable trees.
//
// STATE MACHINE:
//
// Each scenario run walks its steps in one of two states. In Continue the
// next step is invoked and its result inspected; a failed or pending result
// moves the run to Suppressed, where every remaining step is reported not
// performed without being invoked. The state is a RunState value passed
// into each step and returned from it, so a run never shares mutable state
// with another.
//
// After-steps run outside that machine. Once a run (or a story) finishes,
// partitions tagged ANY always run, SUCCESS partitions only when nothing
// failed and FAILURE partitions only when something did.
//
// STORY OUTCOME:
//
// The first failure across a story is kept as the story's failure. A pending
// step failure is replaced by a later real failure, never the reverse.
// Pending steps fail the story only when the runner is told to fail on
// pending.
//
// BATCHES:
//
// Runner.RunBatch runs stories on a fixed-size worker pool, each under its own
// deadline resolved from Timeouts. Cancellation is observed between steps and
// passed to step implementations through their context; a step that ignores
// it is abandoned once the deadline and a short grace period have passed.
// Story failures are either returned at once, stopping the batch, or
// collected into a path keyed map.
package engine
