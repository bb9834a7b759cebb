package pvec

import (
	"fmt"

	"github.com/joshuapare/pmemkit/internal/buf"
	"github.com/joshuapare/pmemkit/pool"
)

// minCapacity is the first capacity handed out by the growth policy.
const minCapacity = 8

// recommendCap returns the capacity to grow to so that need elements fit:
// at least double the current capacity, never less than minCapacity.
func recommendCap(cur, need, limit uint64) (uint64, error) {
	if need > limit {
		return 0, fmt.Errorf("%d elements, limit %d: %w", need, limit, ErrLength)
	}
	if need <= cur {
		return cur, nil
	}
	doubled, ok := buf.MulU64(cur, 2)
	if !ok {
		doubled = limit
	}
	return min(max(doubled, minCapacity, need), limit), nil
}

// checkLen converts a caller-supplied length.
func checkLen[T any](n int) (uint64, error) {
	if n < 0 || uint64(n) > maxLen[T]() {
		return 0, fmt.Errorf("length %d: %w", n, ErrLength)
	}
	return uint64(n), nil
}

// allocate reserves zeroed storage for n elements. n must be positive.
func (s *session[T]) allocate(n uint64) (pool.Offset, []T, error) {
	bytes, ok := buf.MulU64(n, s.esz)
	if !ok {
		return 0, nil, stateError(s.op, fmt.Errorf("%d elements: %w", n, ErrLength))
	}
	off, err := s.t.Alloc(bytes)
	if err != nil {
		return 0, nil, err
	}
	elems, err := pool.Slice[T](s.p, off, n)
	if err != nil {
		return 0, nil, err
	}
	return off, elems, nil
}

// relocateWithGap moves the live elements into fresh storage of newCap
// slots, leaving gap unused slots at position at, and frees the old storage
// when the transaction commits. The old block is never written, so an abort
// anywhere in here leaves it intact. It returns the new storage.
func (s *session[T]) relocateWithGap(newCap, at, gap uint64) ([]T, error) {
	v := s.v
	old, err := s.slots()
	if err != nil {
		return nil, err
	}
	if v.size+gap > newCap || at > v.size {
		return nil, fmt.Errorf("relocate %d+%d into %d: %w", v.size, gap, newCap, ErrLength)
	}

	var (
		off   pool.Offset
		elems []T
	)
	if newCap > 0 {
		off, elems, err = s.allocate(newCap)
		if err != nil {
			return nil, err
		}
		copy(elems[:at], old[:at])
		copy(elems[at+gap:], old[at:v.size])
	}
	if v.data != 0 {
		if err := s.t.Free(v.data); err != nil {
			return nil, err
		}
	}
	v.data = off
	v.capacity = newCap
	return elems, nil
}

// relocate moves the live elements into storage of exactly newCap slots.
// Zero frees the storage.
func (s *session[T]) relocate(newCap uint64) error {
	_, err := s.relocateWithGap(newCap, s.v.size, 0)
	return err
}

// grow makes room for need elements following the growth policy.
func (s *session[T]) grow(need uint64) error {
	if need <= s.v.capacity {
		return nil
	}
	newCap, err := recommendCap(s.v.capacity, need, maxLen[T]())
	if err != nil {
		return stateError(s.op, err)
	}
	return s.relocate(newCap)
}
