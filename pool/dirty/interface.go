package dirty

import "context"

// DirtyTracker is the minimal interface for components that only report
// writes (the allocator, the vector code through a transaction).
type DirtyTracker interface {
	// Add marks a byte range as dirty. off is an absolute pool offset.
	Add(off, length int)
}

// FlushableTracker adds the flushing side used by the transaction manager.
type FlushableTracker interface {
	DirtyTracker

	// FlushRange synchronously flushes [off, off+length).
	FlushRange(off, length int) error

	// FlushDataOnly flushes every recorded range except the header page.
	FlushDataOnly(ctx context.Context) error

	// FlushHeaderAndMeta flushes the header page and syncs per mode.
	FlushHeaderAndMeta(mode FlushMode) error

	// Reset forgets all recorded ranges.
	Reset()
}
