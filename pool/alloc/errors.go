package alloc

import "errors"

var (
	// ErrNoSpace indicates that no free block large enough was found.
	ErrNoSpace = errors.New("alloc: no free block large enough")

	// ErrBadRef indicates an offset that does not name a block payload.
	ErrBadRef = errors.New("alloc: bad block reference")

	// ErrNotAllocated indicates an attempt to free a block that is already free.
	ErrNotAllocated = errors.New("alloc: block is not allocated")

	// ErrCorrupt indicates the heap walk found an inconsistent block header.
	ErrCorrupt = errors.New("alloc: corrupt heap")

	// ErrNeedSmall indicates a zero-byte request.
	ErrNeedSmall = errors.New("alloc: requested size must be positive")
)
