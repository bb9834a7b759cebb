package pool

import (
	"errors"

	"github.com/joshuapare/pmemkit/pool/region"
)

var (
	// ErrLayoutMismatch indicates Open was asked for a different layout than
	// the pool was created with.
	ErrLayoutMismatch = errors.New("pool: layout mismatch")

	// ErrClosed indicates use of a closed pool.
	ErrClosed = region.ErrClosed

	// ErrExists indicates Create found a file at the path.
	ErrExists = region.ErrExists

	// ErrNotInPool indicates an address or offset outside the pool heap.
	ErrNotInPool = errors.New("pool: address not inside pool heap")

	// ErrMisaligned indicates an offset unsuitable for the requested type.
	ErrMisaligned = errors.New("pool: misaligned offset")

	// ErrRootSize indicates Root was asked for more bytes than the existing
	// root object holds.
	ErrRootSize = errors.New("pool: root object smaller than requested")

	// ErrInvalidOptions indicates Options that fail validation.
	ErrInvalidOptions = errors.New("pool: invalid options")
)
