package pool

import (
	"slices"
	"sync"
)

const stripeCount = 64

// stripes are a pool's per-object locks, striped by address. Two objects may
// share a stripe, so several stripes are only ever taken together through
// lockAll, in index order.
type stripes [stripeCount]sync.RWMutex

func stripe(addr uintptr) int {
	// Fibonacci hashing spreads neighbouring objects across stripes.
	return int((uint64(addr) * 0x9E3779B97F4A7C15) >> (64 - 6))
}

// indexes returns the distinct stripes of addrs in ascending order.
func indexes(addrs []uintptr) []int {
	idx := make([]int, 0, len(addrs))
	for _, a := range addrs {
		idx = append(idx, stripe(a))
	}
	slices.Sort(idx)
	return slices.Compact(idx)
}

func (s *stripes) lockAll(idx []int) (unlock func()) {
	for _, i := range idx {
		s[i].Lock()
	}
	return func() {
		for _, i := range slices.Backward(idx) {
			s[i].Unlock()
		}
	}
}

// Exclude implements tx.Fence.
func (s *stripes) Exclude(objects, held []uintptr) (release func()) {
	skip := indexes(held)
	var idx []int
	for _, i := range indexes(objects) {
		if _, found := slices.BinarySearch(skip, i); !found {
			idx = append(idx, i)
		}
	}
	return s.lockAll(idx)
}

// Lock takes the exclusive locks of the objects at addrs.
//
// Writers take these only inside a transaction, after Begin: the
// transaction lock comes first, then object locks. Readers take RLock with
// nothing else held.
func (p *Pool) Lock(addrs ...uintptr) (unlock func()) {
	return p.locks.lockAll(indexes(addrs))
}

// RLock takes the shared lock of the object at addr.
func (p *Pool) RLock(addr uintptr) (unlock func()) {
	mu := &p.locks[stripe(addr)]
	mu.RLock()
	return mu.RUnlock
}
