// Package pvec implements a growable array that lives inside a pool.
//
// A Vector's header (capacity, size and the offset of its element storage)
// is itself persistent: a Vector value is only meaningful when it sits in a
// pool's heap, typically obtained from Make or Root.
//
//	reg := pool.NewRegistry()
//	p, _ := pool.Create(path, pool.Options{Layout: "ints", Registry: reg})
//	v, _, _ := pvec.Make[int64](ctx, reg, p)
//	_ = v.PushBack(ctx, reg, 42)
//
// Every constructor and mutator first checks that the receiver lies inside
// an open pool of reg and returns an ErrResidency error otherwise, before
// touching any persistent state. The operation then runs in one transaction
// on that pool: it either commits completely or leaves the pool as it was.
// A context carrying an enclosing transaction (tx.NewContext) makes the call
// join it instead.
//
// Errors are *Error values whose Kind is ErrResidency, ErrTransaction or
// ErrState; errors.Is matches both the kind and the underlying cause.
// Errors yielded by element sequences are returned unchanged.
//
// Elements are stored by value, so T must be fixed-size and must not contain
// Go pointers, strings, slices, maps, channels, funcs or interfaces.
//
// Each Vector is guarded by a read-write lock of its pool, keyed by the
// header's address. Accessors pin the pool and take it shared, so a vector
// whose pool was closed reads as empty instead of touching unmapped memory.
// Mutators take it exclusively after beginning or joining the transaction
// and hold it until the call commits or rolls back. Calls joined to an
// enclosing transaction release it on return; if that transaction later
// rolls back, the rollback retakes the lock of every vector it restores.
// Readers therefore never see a torn header, though between joined calls
// they can see changes the enclosing transaction has not committed yet.
package pvec
