package pvec

import (
	"github.com/joshuapare/pmemkit/pool"
)

// guard returns the open pool in reg containing [addr, addr+size) and pins
// it until release is called. It has no other side effects.
func guard(op string, reg *pool.Registry, addr, size uintptr) (p *pool.Pool, release func(), err error) {
	p, ok := reg.Resident(addr, size)
	if !ok {
		return nil, nil, residencyError(op, nil)
	}
	release, err = p.Acquire()
	if err != nil {
		return nil, nil, residencyError(op, err)
	}
	return p, release, nil
}
