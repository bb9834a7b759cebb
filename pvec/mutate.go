package pvec

import (
	"context"
	"fmt"
	"iter"

	"github.com/joshuapare/pmemkit/pool"
)

// Resize changes the length to n. New elements are zero values. Shrinking
// keeps the capacity.
func (v *Vector[T]) Resize(ctx context.Context, reg *pool.Registry, n int) error {
	var zero T
	return v.resize(ctx, reg, "Resize", n, zero)
}

// ResizeFill changes the length to n, filling new elements with value.
func (v *Vector[T]) ResizeFill(ctx context.Context, reg *pool.Registry, n int, value T) error {
	return v.resize(ctx, reg, "ResizeFill", n, value)
}

func (v *Vector[T]) resize(ctx context.Context, reg *pool.Registry, op string, n int, value T) error {
	var count uint64
	pre := func() (err error) {
		count, err = checkLen[T](n)
		return wrapState(op, err)
	}
	return v.run(ctx, reg, op, pre, func(s *session[T]) error {
		if count <= v.size {
			v.size = count
			return nil
		}
		if err := s.grow(count); err != nil {
			return err
		}
		if err := s.prepareTail(v.size, count); err != nil {
			return err
		}
		elems, err := s.slots()
		if err != nil {
			return err
		}
		fill(elems[v.size:count], value)
		v.size = count
		return nil
	})
}

// Reserve makes the capacity at least n without changing the length.
func (v *Vector[T]) Reserve(ctx context.Context, reg *pool.Registry, n int) error {
	const op = "Reserve"
	var count uint64
	pre := func() (err error) {
		count, err = checkLen[T](n)
		return wrapState(op, err)
	}
	return v.run(ctx, reg, op, pre, func(s *session[T]) error {
		if count <= v.capacity {
			return nil
		}
		return s.relocate(count)
	})
}

// ShrinkToFit reduces the capacity to the length, freeing the storage of an
// empty vector.
func (v *Vector[T]) ShrinkToFit(ctx context.Context, reg *pool.Registry) error {
	return v.run(ctx, reg, "ShrinkToFit", nil, func(s *session[T]) error {
		if v.capacity == v.size {
			return nil
		}
		return s.relocate(v.size)
	})
}

// Insert inserts values before position pos, 0 <= pos <= Len.
func (v *Vector[T]) Insert(ctx context.Context, reg *pool.Registry, pos int, values ...T) error {
	return v.insert(ctx, reg, "Insert", pos, len(values), func(dst []T) { copy(dst, values) })
}

// InsertN inserts n copies of value before position pos.
func (v *Vector[T]) InsertN(ctx context.Context, reg *pool.Registry, pos, n int, value T) error {
	return v.insert(ctx, reg, "InsertN", pos, n, func(dst []T) { fill(dst, value) })
}

// InsertSeq inserts the elements of seq before position pos. An error
// yielded by seq leaves the vector unchanged and is returned as is.
func (v *Vector[T]) InsertSeq(ctx context.Context, reg *pool.Registry, pos int, seq iter.Seq2[T, error]) error {
	const op = "InsertSeq"
	values, err := drain(op, reg, v, seq)
	if err != nil {
		return err
	}
	return v.insert(ctx, reg, op, pos, len(values), func(dst []T) { copy(dst, values) })
}

// insert opens a gap of n slots at pos and lets put fill it.
func (v *Vector[T]) insert(ctx context.Context, reg *pool.Registry, op string, pos, n int, put func(dst []T)) error {
	var at, count uint64
	pre := func() error {
		if pos < 0 || uint64(pos) > v.size {
			return stateError(op, fmt.Errorf("position %d, length %d: %w", pos, v.size, ErrOutOfRange))
		}
		var err error
		if count, err = checkLen[T](n); err != nil {
			return stateError(op, err)
		}
		at = uint64(pos)
		return nil
	}
	return v.run(ctx, reg, op, pre, func(s *session[T]) error {
		if count == 0 {
			return nil
		}
		need := v.size + count
		if need > maxLen[T]() {
			return stateError(op, fmt.Errorf("%d elements: %w", need, ErrLength))
		}

		if need > v.capacity {
			newCap, err := recommendCap(v.capacity, need, maxLen[T]())
			if err != nil {
				return stateError(op, err)
			}
			elems, err := s.relocateWithGap(newCap, at, count)
			if err != nil {
				return err
			}
			put(elems[at : at+count])
			v.size = need
			return nil
		}

		// In place: elements at and after pos move up by count.
		if err := s.preserve(at, v.size); err != nil {
			return err
		}
		if err := s.prepareTail(v.size, need); err != nil {
			return err
		}
		elems, err := s.slots()
		if err != nil {
			return err
		}
		copy(elems[at+count:need], elems[at:v.size])
		put(elems[at : at+count])
		v.size = need
		return nil
	})
}

// Erase removes the element at pos.
func (v *Vector[T]) Erase(ctx context.Context, reg *pool.Registry, pos int) error {
	return v.erase(ctx, reg, "Erase", pos, pos+1)
}

// EraseRange removes the elements [first, last).
func (v *Vector[T]) EraseRange(ctx context.Context, reg *pool.Registry, first, last int) error {
	return v.erase(ctx, reg, "EraseRange", first, last)
}

func (v *Vector[T]) erase(ctx context.Context, reg *pool.Registry, op string, first, last int) error {
	pre := func() error {
		if first < 0 || last < first || uint64(last) > v.size {
			return stateError(op, fmt.Errorf("range [%d,%d), length %d: %w", first, last, v.size, ErrOutOfRange))
		}
		return nil
	}
	return v.run(ctx, reg, op, pre, func(s *session[T]) error {
		lo, hi := uint64(first), uint64(last)
		if lo == hi {
			return nil
		}
		newSize := v.size - (hi - lo)
		if hi < v.size {
			if err := s.preserve(lo, newSize); err != nil {
				return err
			}
			elems, err := s.slots()
			if err != nil {
				return err
			}
			copy(elems[lo:newSize], elems[hi:v.size])
		}
		v.size = newSize
		return nil
	})
}

// PushBack appends value, growing the storage when full.
func (v *Vector[T]) PushBack(ctx context.Context, reg *pool.Registry, value T) error {
	return v.run(ctx, reg, "PushBack", nil, func(s *session[T]) error {
		if err := s.grow(v.size + 1); err != nil {
			return err
		}
		if err := s.prepareTail(v.size, v.size+1); err != nil {
			return err
		}
		elems, err := s.slots()
		if err != nil {
			return err
		}
		elems[v.size] = value
		v.size++
		return nil
	})
}

// PopBack removes the last element. It fails with ErrEmpty, without opening
// a transaction, when the vector is empty.
func (v *Vector[T]) PopBack(ctx context.Context, reg *pool.Registry) error {
	const op = "PopBack"
	pre := func() error {
		if v.size == 0 {
			return stateError(op, ErrEmpty)
		}
		return nil
	}
	return v.run(ctx, reg, op, pre, func(*session[T]) error {
		v.size--
		return nil
	})
}

// Clear removes all elements and keeps the storage.
func (v *Vector[T]) Clear(ctx context.Context, reg *pool.Registry) error {
	return v.run(ctx, reg, "Clear", nil, func(*session[T]) error {
		v.size = 0
		return nil
	})
}

// Set replaces the element at i.
func (v *Vector[T]) Set(ctx context.Context, reg *pool.Registry, i int, value T) error {
	const op = "Set"
	pre := func() error {
		if i < 0 || uint64(i) >= v.size {
			return stateError(op, fmt.Errorf("index %d, length %d: %w", i, v.size, ErrOutOfRange))
		}
		return nil
	}
	return v.run(ctx, reg, op, pre, func(s *session[T]) error {
		idx := uint64(i)
		if err := s.preserve(idx, idx+1); err != nil {
			return err
		}
		elems, err := s.slots()
		if err != nil {
			return err
		}
		elems[idx] = value
		return nil
	})
}

// Swap exchanges the contents of v and other, which must share a pool.
func (v *Vector[T]) Swap(ctx context.Context, reg *pool.Registry, other *Vector[T]) error {
	const op = "Swap"
	p, same, release, err := v.pair(op, reg, other)
	if err != nil {
		return err
	}
	defer release()
	if !same {
		return stateError(op, ErrCrossPool)
	}
	return v.transact(ctx, p, op, []uintptr{v.addr(), other.addr()}, nil, func(s *session[T]) error {
		if err := s.snapshotHeader(other); err != nil {
			return err
		}
		v.capacity, other.capacity = other.capacity, v.capacity
		v.size, other.size = other.size, v.size
		v.data, other.data = other.data, v.data
		return nil
	})
}

// Free releases the storage, leaving an empty vector with no capacity.
func (v *Vector[T]) Free(ctx context.Context, reg *pool.Registry) error {
	return v.run(ctx, reg, "Free", nil, func(s *session[T]) error {
		v.size = 0
		return s.relocate(0)
	})
}
