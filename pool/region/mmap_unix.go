//go:build unix

package region

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

func mapFile(f *os.File, size int64) ([]byte, error) {
	if size > int64(^uint(0)>>1) {
		return nil, fmt.Errorf("region: file too large to map (%d bytes)", size)
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("region: mmap failed: %w", err)
	}
	return data, nil
}

func unmapFile(data []byte) error {
	return unix.Munmap(data)
}

func closeMapping(r *Region) error {
	return unmapFile(r.data)
}

// Sync writes every dirty page of the mapping and the file metadata to disk.
func (r *Region) Sync() error {
	if r.Closed() {
		return ErrClosed
	}
	if err := unix.Msync(r.data, unix.MS_SYNC); err != nil {
		return err
	}
	return r.f.Sync()
}
