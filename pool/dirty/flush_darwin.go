//go:build darwin

package dirty

import (
	"golang.org/x/sys/unix"
)

// flushRanges syncs the whole mapping. Darwin's msync wants the original
// mapping address; the kernel only writes dirty pages anyway.
func (t *Tracker) flushRanges(data []byte) error {
	return unix.Msync(data, unix.MS_SYNC)
}

func (t *Tracker) flushSpan(data []byte, _, _ int64) error {
	return unix.Msync(data, unix.MS_SYNC)
}

// syncFile uses F_FULLFSYNC when requested, plain fsync otherwise.
func (t *Tracker) syncFile(fullfsync bool) error {
	fd := t.r.FD()
	if fullfsync {
		_, err := unix.FcntlInt(uintptr(fd), unix.F_FULLFSYNC, 0)
		return err
	}
	return unix.Fsync(fd)
}
