package pool

import (
	"sync"
)

// Registry tracks open pools by address range.
type Registry struct {
	mu    sync.RWMutex
	pools []*Pool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Resident returns the pool whose mapping contains [addr, addr+size).
func (r *Registry) Resident(addr, size uintptr) (*Pool, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.pools {
		if p.r.Contains(addr, size) {
			return p, true
		}
	}
	return nil, false
}

// Len returns the number of registered pools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.pools)
}

func (r *Registry) register(p *Pool) {
	r.mu.Lock()
	r.pools = append(r.pools, p)
	r.mu.Unlock()
}

func (r *Registry) unregister(p *Pool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, q := range r.pools {
		if q == p {
			r.pools = append(r.pools[:i], r.pools[i+1:]...)
			return
		}
	}
}
