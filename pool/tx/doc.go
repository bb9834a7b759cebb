// Package tx provides undo-logged transactions over a pool region.
//
// The manager keeps the header's primary and secondary sequence numbers as
// the commit marker and an undo log of pre-images for every byte range a
// transaction overwrites.
//
// Transaction protocol:
//  1. Begin: take the pool's transaction lock. The first write bumps the
//     primary sequence; a transaction that never writes leaves no trace.
//  2. Snapshot(off, n) before writing [off, off+n): the pre-image is appended
//     to the undo log and flushed before the call returns.
//  3. Commit: run deferred frees, flush data pages, truncate the undo log,
//     set secondary = primary, flush the header page.
//
// Abort replays the undo log in reverse, truncates it and rebuilds the
// allocator's free list from the restored heap.
//
// Crash recovery:
// NewManager replays a non-empty undo log before anything else touches the
// pool. A sequence mismatch with an empty log means the crash hit after the
// log was truncated; the data is already committed and only the header is
// resynced.
//
// Nesting is flat. Begin with a context that already carries a transaction
// for the same manager returns a nested handle: committing it does nothing,
// aborting it aborts the outermost transaction. Discard ends a nested handle
// that wrote nothing without aborting anything.
//
// Objects written under Guard are fenced while a rollback restores them: the
// manager takes their locks through Options.Fence, so readers holding only a
// shared lock see either the state before the rollback or after it.
package tx
