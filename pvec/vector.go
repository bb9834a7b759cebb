package pvec

import (
	"context"
	"errors"
	"math"
	"unsafe"

	"github.com/joshuapare/pmemkit/pool"
	"github.com/joshuapare/pmemkit/pool/tx"
)

// noCopy makes go vet flag accidental copies of a Vector. A copied header
// lives in ordinary memory and fails every residency check.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Vector is a persistent growable array of T.
//
// The zero value is an empty vector, so freshly allocated pool memory is a
// valid Vector. data is zero iff capacity is zero, and size <= capacity.
type Vector[T any] struct {
	_        noCopy
	capacity uint64
	size     uint64
	data     pool.Offset
}

func (v *Vector[T]) addr() uintptr { return uintptr(unsafe.Pointer(v)) }

func headerSize[T any]() uintptr { return unsafe.Sizeof(Vector[T]{}) }

func elemSize[T any]() uint64 {
	var zero T
	return uint64(unsafe.Sizeof(zero))
}

// maxLen bounds lengths so that byte sizes and int conversions never
// overflow.
func maxLen[T any]() uint64 {
	return math.MaxInt64 / elemSize[T]()
}

// session is the state of one guarded, transactional operation.
type session[T any] struct {
	op  string
	p   *pool.Pool
	t   *tx.Tx
	v   *Vector[T]
	esz uint64
}

// run executes fn as one guarded transaction on v.
func (v *Vector[T]) run(ctx context.Context, reg *pool.Registry, op string, pre func() error, fn func(s *session[T]) error) error {
	p, release, err := guard(op, reg, v.addr(), headerSize[T]())
	if err != nil {
		return err
	}
	defer release()
	return v.transact(ctx, p, op, []uintptr{v.addr()}, pre, fn)
}

// transact runs after the guard pinned p.
//
// Order: element type check, Begin, exclusive locks on objects, pre, header
// snapshot, fn, Commit. The transaction lock is always taken before object
// locks. pre may read the locked headers; when it fails the transaction is
// discarded, so nothing is written and an enclosing transaction stays
// usable. Any later failure rolls back while the locks are still held.
func (v *Vector[T]) transact(ctx context.Context, p *pool.Pool, op string, objects []uintptr,
	pre func() error, fn func(s *session[T]) error,
) error {
	if err := checkElem[T](); err != nil {
		return stateError(op, err)
	}

	t, err := p.Begin(ctx)
	if err != nil {
		return txError(op, err)
	}
	defer t.End()

	unlock := p.Lock(objects...)
	defer unlock()
	drop := t.Guard(objects...)
	defer drop()

	if pre != nil {
		if err := pre(); err != nil {
			t.Discard()
			return err
		}
	}

	s := &session[T]{op: op, p: p, t: t, v: v, esz: elemSize[T]()}
	if err := s.snapshotHeader(v); err != nil {
		return s.abort(classify(op, err))
	}
	if err := fn(s); err != nil {
		return s.abort(classify(op, err))
	}
	if err := t.Commit(); err != nil {
		return txError(op, err)
	}
	return nil
}

func (s *session[T]) abort(err error) error {
	_ = s.t.Abort()
	return err
}

func (s *session[T]) offsetOf(v *Vector[T]) (pool.Offset, error) {
	return s.p.OffsetOf(v.addr(), headerSize[T]())
}

func (s *session[T]) snapshotHeader(v *Vector[T]) error {
	off, err := s.offsetOf(v)
	if err != nil {
		return err
	}
	return s.t.Snapshot(off, uint64(headerSize[T]()))
}

// slots returns the whole storage block of v as elements.
func (s *session[T]) slots() ([]T, error) {
	return pool.Slice[T](s.p, s.v.data, s.v.capacity)
}

// preserve snapshots live elements [from, to) before they are overwritten.
func (s *session[T]) preserve(from, to uint64) error {
	if to <= from {
		return nil
	}
	off := s.v.data + pool.Offset(from*s.esz)
	return s.t.Snapshot(off, (to-from)*s.esz)
}

// prepareTail readies slots [from, to) at or past the current size for
// writing. In a transaction of its own such slots were dead when it began,
// so rolling back the header makes them unreachable again and no pre-image
// is needed. A joined transaction may have shrunk the vector earlier, so
// there the slots are preserved like live ones.
func (s *session[T]) prepareTail(from, to uint64) error {
	if to <= from {
		return nil
	}
	if s.t.Nested() {
		return s.preserve(from, to)
	}
	s.t.Add(s.v.data+pool.Offset(from*s.esz), (to-from)*s.esz)
	return nil
}

// Make allocates a Vector in p and returns it with its offset. The vector is
// empty; Destroy releases it.
func Make[T any](ctx context.Context, reg *pool.Registry, p *pool.Pool) (*Vector[T], pool.Offset, error) {
	const op = "Make"
	if p == nil || reg == nil || p.Registry() != reg {
		return nil, 0, residencyError(op, nil)
	}
	if err := checkElem[T](); err != nil {
		return nil, 0, stateError(op, err)
	}
	release, err := p.Acquire()
	if err != nil {
		return nil, 0, residencyError(op, err)
	}
	defer release()

	t, err := p.Begin(ctx)
	if err != nil {
		return nil, 0, txError(op, err)
	}
	defer t.End()

	// Allocations are zeroed and the zero Vector is empty, so there is
	// nothing to write.
	off, err := t.Alloc(uint64(headerSize[T]()))
	if err != nil {
		return nil, 0, txError(op, err)
	}
	v, err := pool.Project[Vector[T]](p, off)
	if err != nil {
		return nil, 0, txError(op, err)
	}
	if err := t.Commit(); err != nil {
		return nil, 0, txError(op, err)
	}
	return v, off, nil
}

// Destroy frees v's storage and the block holding v itself. v must have
// come from Make; it must not be used afterwards. The pool root cannot be
// destroyed.
func (v *Vector[T]) Destroy(ctx context.Context, reg *pool.Registry) error {
	return v.run(ctx, reg, "Destroy", nil, func(s *session[T]) error {
		self, err := s.offsetOf(v)
		if err != nil {
			return err
		}
		if self == s.p.RootOffset() {
			return stateError(s.op, errRootHeader)
		}
		if _, err := s.t.Usable(self); err != nil {
			return stateError(s.op, err)
		}
		v.size = 0
		if err := s.relocate(0); err != nil {
			return err
		}
		return s.t.Free(self)
	})
}

// Root returns the vector kept as p's root object, creating an empty one on
// first use.
func Root[T any](ctx context.Context, reg *pool.Registry, p *pool.Pool) (*Vector[T], error) {
	const op = "Root"
	if p == nil || reg == nil || p.Registry() != reg {
		return nil, residencyError(op, nil)
	}
	if err := checkElem[T](); err != nil {
		return nil, stateError(op, err)
	}
	off, err := p.Root(ctx, uint64(headerSize[T]()))
	switch {
	case errors.Is(err, pool.ErrClosed):
		return nil, residencyError(op, err)
	case errors.Is(err, pool.ErrRootSize):
		return nil, stateError(op, err)
	case err != nil:
		return nil, txError(op, err)
	}
	v, err := pool.Project[Vector[T]](p, off)
	if err != nil {
		return nil, stateError(op, err)
	}
	return v, nil
}
