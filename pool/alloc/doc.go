// Package alloc manages the heap region of a pool.
//
// The heap is a contiguous run of blocks. Every block starts with a 16-byte
// header (size, magic, flags) and sizes are multiples of 16, so walking the
// heap from its first block by size visits every block exactly once.
//
// The allocator keeps an offset-ordered free list in memory and picks the
// smallest free block that fits (best fit). Oversized blocks are split when
// the remainder can hold a minimal block. Freed blocks are merged with free
// neighbours on both sides.
//
// Every header write is preceded by a Journal.Snapshot of the bytes about to
// change, so a transaction abort or crash recovery can roll the heap back by
// replaying the undo log and calling Rebuild.
//
//	a, err := alloc.New(r, journal)
//	off, err := a.Alloc(128)   // zeroed payload at off
//	err = a.Free(off)
//
// An Allocator is not safe for concurrent use; the transaction layer holds
// the pool's transaction lock around every call.
package alloc
