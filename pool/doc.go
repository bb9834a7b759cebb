// Package pool is the entry point for persistent memory pools.
//
// A pool is a fixed-size file mapped into the process. It holds a header,
// an undo log and a heap; every change to the heap happens inside a
// transaction (see package tx) so the file survives crashes in a consistent
// state.
//
// # Lifecycle
//
//	reg := pool.NewRegistry()
//	p, err := pool.Create("data.pool", pool.Options{Layout: "vec", Registry: reg})
//	...
//	defer p.Close()
//
// Open maps an existing pool, verifies its layout name and rolls back any
// transaction a crash interrupted. OpenContext bounds that recovery.
//
// # Offsets and projection
//
// Persistent references are Offsets from the start of the file. They stay
// valid across processes; Go pointers into the mapping do not. Project and
// Slice turn offsets into typed pointers for the lifetime of the mapping,
// OffsetOf goes the other way.
//
// # Registry
//
// A Registry records which address ranges belong to open pools. Containers
// consult it to refuse operating on values that live in ordinary memory.
//
// # Locking
//
// Each pool has striped per-object locks. A container operation pins the
// pool with Acquire, then either takes RLock to read, or begins a
// transaction and takes Lock on the objects it writes. Object locks always
// come after the transaction lock, so a call joining a transaction held
// elsewhere in the same goroutine never waits on a writer that is itself
// waiting for that transaction. A rollback takes the locks of every object
// the transaction wrote before restoring them.
package pool
