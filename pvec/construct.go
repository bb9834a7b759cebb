package pvec

import (
	"context"
	"iter"

	"github.com/joshuapare/pmemkit/pool"
)

// The Init methods construct a vector in place. The receiver's previous
// contents are treated as uninitialised: storage it referenced is not freed.
// On any error nothing persistent is retained and the receiver must not be
// used except to retry construction.

// Init constructs an empty vector.
func (v *Vector[T]) Init(ctx context.Context, reg *pool.Registry) error {
	return v.run(ctx, reg, "Init", nil, func(s *session[T]) error {
		s.reset()
		return nil
	})
}

// InitSize constructs a vector of n zero-valued elements.
func (v *Vector[T]) InitSize(ctx context.Context, reg *pool.Registry, n int) error {
	const op = "InitSize"
	var count uint64
	pre := func() (err error) {
		count, err = checkLen[T](n)
		return wrapState(op, err)
	}
	return v.run(ctx, reg, op, pre, func(s *session[T]) error {
		_, err := s.construct(count)
		return err
	})
}

// InitFill constructs a vector of n copies of value.
func (v *Vector[T]) InitFill(ctx context.Context, reg *pool.Registry, n int, value T) error {
	const op = "InitFill"
	var count uint64
	pre := func() (err error) {
		count, err = checkLen[T](n)
		return wrapState(op, err)
	}
	return v.run(ctx, reg, op, pre, func(s *session[T]) error {
		elems, err := s.construct(count)
		if err != nil {
			return err
		}
		fill(elems, value)
		return nil
	})
}

// InitSeq constructs a vector from the elements of seq. An error yielded by
// seq stops construction and is returned unchanged.
func (v *Vector[T]) InitSeq(ctx context.Context, reg *pool.Registry, seq iter.Seq2[T, error]) error {
	const op = "InitSeq"
	values, err := drain(op, reg, v, seq)
	if err != nil {
		return err
	}
	return v.initValues(ctx, reg, op, values)
}

// InitValues constructs a vector holding values.
func (v *Vector[T]) InitValues(ctx context.Context, reg *pool.Registry, values ...T) error {
	return v.initValues(ctx, reg, "InitValues", values)
}

func (v *Vector[T]) initValues(ctx context.Context, reg *pool.Registry, op string, values []T) error {
	var count uint64
	pre := func() (err error) {
		count, err = checkLen[T](len(values))
		return wrapState(op, err)
	}
	return v.run(ctx, reg, op, pre, func(s *session[T]) error {
		elems, err := s.construct(count)
		if err != nil {
			return err
		}
		copy(elems, values)
		return nil
	})
}

// InitCopy constructs a deep copy of src's live elements. src may live in
// any open pool of reg. An empty src allocates nothing.
func (v *Vector[T]) InitCopy(ctx context.Context, reg *pool.Registry, src *Vector[T]) error {
	const op = "InitCopy"
	p, same, release, err := v.pair(op, reg, src)
	if err != nil {
		return err
	}
	defer release()

	if !same {
		// Objects of another pool are never locked inside this pool's
		// transaction: copy them out under their own shared lock first.
		values, err := src.copyOut(op, reg)
		if err != nil {
			return err
		}
		return v.transact(ctx, p, op, []uintptr{v.addr()}, nil, func(s *session[T]) error {
			elems, err := s.construct(uint64(len(values)))
			if err != nil {
				return err
			}
			copy(elems, values)
			return nil
		})
	}
	return v.transact(ctx, p, op, []uintptr{v.addr(), src.addr()}, nil, func(s *session[T]) error {
		from, err := pool.Slice[T](p, src.data, src.size)
		if err != nil {
			return err
		}
		elems, err := s.construct(src.size)
		if err != nil {
			return err
		}
		copy(elems, from)
		return nil
	})
}

// InitMove constructs v from src's storage and leaves src empty, in one
// transaction. src must be in the same pool as v.
func (v *Vector[T]) InitMove(ctx context.Context, reg *pool.Registry, src *Vector[T]) error {
	const op = "InitMove"
	p, same, release, err := v.pair(op, reg, src)
	if err != nil {
		return err
	}
	defer release()
	if !same {
		return stateError(op, ErrCrossPool)
	}
	return v.transact(ctx, p, op, []uintptr{v.addr(), src.addr()}, nil, func(s *session[T]) error {
		if err := s.snapshotHeader(src); err != nil {
			return err
		}
		v.capacity, v.size, v.data = src.capacity, src.size, src.data
		src.capacity, src.size, src.data = 0, 0, 0
		return nil
	})
}

// pair guards v, pinning its pool until release, and checks that src is a
// different, resident vector. same reports whether src shares v's pool.
func (v *Vector[T]) pair(op string, reg *pool.Registry, src *Vector[T]) (p *pool.Pool, same bool, release func(), err error) {
	p, release, err = guard(op, reg, v.addr(), headerSize[T]())
	if err != nil {
		return nil, false, nil, err
	}
	if src == nil {
		release()
		return nil, false, nil, residencyError(op, nil)
	}
	sp, ok := reg.Resident(src.addr(), headerSize[T]())
	switch {
	case !ok:
		release()
		return nil, false, nil, residencyError(op, nil)
	case src == v:
		release()
		return nil, false, nil, stateError(op, ErrAliased)
	}
	return p, sp == p, release, nil
}

// construct sets v to n freshly allocated, zeroed elements and returns them.
func (s *session[T]) construct(n uint64) ([]T, error) {
	s.reset()
	if n == 0 {
		return nil, nil
	}
	off, elems, err := s.allocate(n)
	if err != nil {
		return nil, err
	}
	s.v.data, s.v.capacity, s.v.size = off, n, n
	return elems, nil
}

func (s *session[T]) reset() {
	s.v.capacity, s.v.size, s.v.data = 0, 0, 0
}

// drain collects seq into memory. The residency guard runs first so that an
// instance outside any pool reports ErrResidency before seq is consumed.
// seq runs without the container lock held, so it may read other vectors.
func drain[T any](op string, reg *pool.Registry, v *Vector[T], seq iter.Seq2[T, error]) ([]T, error) {
	if _, ok := reg.Resident(v.addr(), headerSize[T]()); !ok {
		return nil, residencyError(op, nil)
	}
	var values []T
	if seq == nil {
		return values, nil
	}
	for value, err := range seq {
		if err != nil {
			return nil, err
		}
		values = append(values, value)
	}
	return values, nil
}

func fill[T any](elems []T, value T) {
	for i := range elems {
		elems[i] = value
	}
}

func wrapState(op string, err error) error {
	if err == nil {
		return nil
	}
	return stateError(op, err)
}
