// Package actionable reverses and re-applies stored records against the live
// world.
//
// A batch never aborts on one record. Each record either applies, producing a
// Transaction, or is skipped with a SkipReason:
//
//   - INVALID: the record has no before/after snapshot for the mode
//   - INVALID_LOCATION: the record has no position, or the host refused it
//   - ILLEGAL_BLOCK: the state to write is blacklisted
//   - OCCUPIED: the live state is not what the record left behind
//   - UNIMPLEMENTED: the event kind is actionable but has no applier
//   - UNKNOWN: an unexpected error or a panic on the mutation thread
//
// Every read and write of the world happens on the world.Executor goroutine.
// The applied transactions of the last batch are kept per principal so Undo
// can put the Before state back.
package actionable
