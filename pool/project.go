package pool

import (
	"fmt"
	"unsafe"

	"github.com/joshuapare/pmemkit/internal/buf"
)

// heapSpan checks that [off, off+n) lies inside the heap and returns its
// address.
func (p *Pool) heapSpan(off Offset, n uint64) (unsafe.Pointer, error) {
	if p.r.Closed() {
		return nil, ErrClosed
	}
	heapOff, heapLen := p.r.HeapRange()
	end, ok := buf.AddU64(uint64(off), n)
	if !ok || uint64(off) < uint64(heapOff) || end > uint64(heapOff)+heapLen {
		return nil, fmt.Errorf("offset %d (+%d): %w", off, n, ErrNotInPool)
	}
	return unsafe.Add(unsafe.Pointer(unsafe.SliceData(p.r.Bytes())), uintptr(off)), nil
}

// Project returns a typed pointer to the T stored at off. T must not contain
// Go pointers; the result is valid until the pool is closed.
func Project[T any](p *Pool, off Offset) (*T, error) {
	var zero T
	size, align := unsafe.Sizeof(zero), unsafe.Alignof(zero)
	if uintptr(off)%align != 0 {
		return nil, fmt.Errorf("offset %d for alignment %d: %w", off, align, ErrMisaligned)
	}
	ptr, err := p.heapSpan(off, uint64(size))
	if err != nil {
		return nil, err
	}
	return (*T)(ptr), nil
}

// Slice returns n consecutive Ts starting at off.
func Slice[T any](p *Pool, off Offset, n uint64) ([]T, error) {
	if n == 0 {
		return nil, nil
	}
	var zero T
	size, align := unsafe.Sizeof(zero), unsafe.Alignof(zero)
	if uintptr(off)%align != 0 {
		return nil, fmt.Errorf("offset %d for alignment %d: %w", off, align, ErrMisaligned)
	}
	if p.r.Closed() {
		return nil, ErrClosed
	}
	heapOff, heapLen := p.r.HeapRange()
	if _, err := buf.CheckRange(uint64(heapOff)+heapLen, uint64(off), n, uint64(size)); err != nil {
		return nil, fmt.Errorf("%d elements at %d: %w: %w", n, off, ErrNotInPool, err)
	}
	ptr, err := p.heapSpan(off, n*uint64(size))
	if err != nil {
		return nil, err
	}
	count, ok := buf.ToInt(n)
	if !ok {
		return nil, fmt.Errorf("%d elements: %w", n, ErrNotInPool)
	}
	return unsafe.Slice((*T)(ptr), count), nil
}

// OffsetOf translates an address inside the pool heap back to an Offset.
func (p *Pool) OffsetOf(addr, size uintptr) (Offset, error) {
	if p.r.Closed() {
		return 0, ErrClosed
	}
	if !p.r.Contains(addr, size) {
		return 0, fmt.Errorf("address %#x (+%d): %w", addr, size, ErrNotInPool)
	}
	off := Offset(addr - p.r.Base())
	if _, err := p.heapSpan(off, uint64(size)); err != nil {
		return 0, err
	}
	return off, nil
}

// Bytes returns the raw bytes [off, off+n) of the heap.
func (p *Pool) Bytes(off Offset, n uint64) ([]byte, error) {
	return Slice[byte](p, off, n)
}
