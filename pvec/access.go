package pvec

import (
	"fmt"
	"iter"
	"slices"

	"github.com/joshuapare/pmemkit/pool"
)

// Accessors pin the vector's pool, take its shared lock and open no
// transaction. A vector in no open pool reads as empty from Len and Cap;
// accessors returning an error report ErrResidency for it.

// read runs fn with v's pool pinned and v's shared lock held.
func (v *Vector[T]) read(op string, reg *pool.Registry, fn func(p *pool.Pool) error) error {
	p, release, err := guard(op, reg, v.addr(), headerSize[T]())
	if err != nil {
		return err
	}
	defer release()
	defer p.RLock(v.addr())()
	return fn(p)
}

// Len returns the number of elements.
func (v *Vector[T]) Len(reg *pool.Registry) int {
	var n int
	_ = v.read("Len", reg, func(*pool.Pool) error {
		n = int(v.size)
		return nil
	})
	return n
}

// Cap returns the number of allocated slots.
func (v *Vector[T]) Cap(reg *pool.Registry) int {
	var n int
	_ = v.read("Cap", reg, func(*pool.Pool) error {
		n = int(v.capacity)
		return nil
	})
	return n
}

// Empty reports whether the vector has no elements.
func (v *Vector[T]) Empty(reg *pool.Registry) bool {
	return v.Len(reg) == 0
}

// At returns the element at i.
func (v *Vector[T]) At(reg *pool.Registry, i int) (T, error) {
	var out T
	err := v.read("At", reg, func(p *pool.Pool) (err error) {
		out, err = v.at("At", p, i)
		return err
	})
	return out, err
}

// Front returns the first element.
func (v *Vector[T]) Front(reg *pool.Registry) (T, error) {
	var out T
	err := v.read("Front", reg, func(p *pool.Pool) (err error) {
		if v.size == 0 {
			return stateError("Front", ErrEmpty)
		}
		out, err = v.at("Front", p, 0)
		return err
	})
	return out, err
}

// Back returns the last element.
func (v *Vector[T]) Back(reg *pool.Registry) (T, error) {
	var out T
	err := v.read("Back", reg, func(p *pool.Pool) (err error) {
		if v.size == 0 {
			return stateError("Back", ErrEmpty)
		}
		out, err = v.at("Back", p, int(v.size-1))
		return err
	})
	return out, err
}

func (v *Vector[T]) at(op string, p *pool.Pool, i int) (T, error) {
	var zero T
	if i < 0 || uint64(i) >= v.size {
		return zero, stateError(op, fmt.Errorf("index %d, length %d: %w", i, v.size, ErrOutOfRange))
	}
	elems, err := v.view(op, p)
	if err != nil {
		return zero, err
	}
	return elems[i], nil
}

// Values returns a copy of the elements.
func (v *Vector[T]) Values(reg *pool.Registry) ([]T, error) {
	return v.copyOut("Values", reg)
}

func (v *Vector[T]) copyOut(op string, reg *pool.Registry) ([]T, error) {
	var out []T
	err := v.read(op, reg, func(p *pool.Pool) error {
		elems, err := v.view(op, p)
		if err != nil {
			return err
		}
		out = slices.Clone(elems)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

// All returns an iterator over a copy of the elements taken now, so the loop
// body may modify the vector. The error is that of Values.
func (v *Vector[T]) All(reg *pool.Registry) (iter.Seq2[int, T], error) {
	values, err := v.copyOut("All", reg)
	if err != nil {
		return nil, err
	}
	return slices.All(values), nil
}

// view returns the live elements in place. The caller pins p and holds v's
// lock.
func (v *Vector[T]) view(op string, p *pool.Pool) ([]T, error) {
	if err := checkElem[T](); err != nil {
		return nil, stateError(op, err)
	}
	if v.size == 0 {
		return nil, nil
	}
	elems, err := pool.Slice[T](p, v.data, v.size)
	if err != nil {
		return nil, stateError(op, err)
	}
	return elems, nil
}
