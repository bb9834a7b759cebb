// Package mmfile maps pool files read-only for inspection. It never takes
// the transaction lock and never writes, so it is safe to point at a pool
// another process has open.
package mmfile

import "errors"

// ErrEmpty indicates a zero-length file.
var ErrEmpty = errors.New("mmfile: empty file")

// Mapping is a read-only view of a file.
type Mapping struct {
	data    []byte
	release func([]byte) error
}

// Bytes returns the mapped contents. They are invalid after Close.
func (m *Mapping) Bytes() []byte { return m.data }

// Len returns the mapping length.
func (m *Mapping) Len() int { return len(m.data) }

// Close releases the mapping. Calling it twice is a no-op.
func (m *Mapping) Close() error {
	if m == nil || m.data == nil {
		return nil
	}
	data := m.data
	m.data = nil
	if m.release == nil {
		return nil
	}
	return m.release(data)
}
