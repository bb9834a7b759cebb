//go:build linux || freebsd || netbsd || openbsd

package dirty

import (
	"golang.org/x/sys/unix"
)

// flushRanges msyncs each coalesced range except the header page.
func (t *Tracker) flushRanges(data []byte) error {
	for _, r := range t.coalesce() {
		if r.Off == 0 {
			continue
		}
		end := min(r.Off+r.Len, int64(len(data)))
		if end <= r.Off {
			continue
		}
		if err := unix.Msync(data[r.Off:end], unix.MS_SYNC); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tracker) flushSpan(data []byte, start, end int64) error {
	return unix.Msync(data[start:end], unix.MS_SYNC)
}

// syncFile uses fdatasync; fullfsync has no meaning here.
func (t *Tracker) syncFile(bool) error {
	return unix.Fdatasync(t.r.FD())
}
