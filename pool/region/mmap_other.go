//go:build !unix

package region

import (
	"io"
	"os"
)

func mapFile(f *os.File, size int64) ([]byte, error) {
	data := make([]byte, size)
	if _, err := f.ReadAt(data, 0); err != nil && err != io.EOF {
		return nil, err
	}
	return data, nil
}

func unmapFile([]byte) error { return nil }

func closeMapping(r *Region) error {
	if r.f == nil {
		return nil
	}
	if _, err := r.f.WriteAt(r.data, 0); err != nil {
		return err
	}
	return r.f.Sync()
}

// Sync writes the in-memory copy back to the file.
func (r *Region) Sync() error {
	if r.Closed() {
		return ErrClosed
	}
	if _, err := r.f.WriteAt(r.data, 0); err != nil {
		return err
	}
	return r.f.Sync()
}
