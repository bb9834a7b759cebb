package tx

import (
	"fmt"

	"github.com/joshuapare/pmemkit/internal/buf"
	"github.com/joshuapare/pmemkit/internal/format"
	"github.com/joshuapare/pmemkit/pool/dirty"
	"github.com/joshuapare/pmemkit/pool/region"
)

// undoLog is the on-media pre-image log.
//
//	0x00  4  entry count
//	0x08  8  bytes used by entries
//	0x10     entries: kind u32, len u32, off u64, payload padded to 8
type undoLog struct {
	r   *region.Region
	dt  dirty.FlushableTracker
	off uint64
	cap uint64
}

func newUndoLog(r *region.Region, dt dirty.FlushableTracker) *undoLog {
	off, n := r.LogRange()
	return &undoLog{r: r, dt: dt, off: uint64(off), cap: n}
}

func (l *undoLog) count() uint32 {
	return format.ReadU32(l.r.Bytes(), int(l.off)+format.LogCountOffset)
}

func (l *undoLog) used() uint64 {
	return format.ReadU64(l.r.Bytes(), int(l.off)+format.LogUsedOffset)
}

// free returns how many payload bytes one more entry could hold.
func (l *undoLog) free() uint64 {
	avail := l.cap - format.LogHeaderSize - l.used()
	if avail < format.LogEntryHeaderSize {
		return 0
	}
	return avail - format.LogEntryHeaderSize
}

// append records the current contents of [off, off+n) and makes the entry
// durable before returning.
func (l *undoLog) append(off, n uint64) error {
	if n > uint64(^uint32(0)) {
		return fmt.Errorf("snapshot of %d bytes: %w", n, ErrLogFull)
	}
	padded := uint64(format.Align8(int(n)))
	if padded > l.free() {
		return fmt.Errorf("snapshot of %d bytes, %d free: %w", n, l.free(), ErrLogFull)
	}

	data := l.r.Bytes()
	used := l.used()
	entry := l.off + format.LogHeaderSize + used
	format.PutU32(data, int(entry)+format.LogEntryKindOffset, format.LogEntrySnapshot)
	format.PutU32(data, int(entry)+format.LogEntryLenOffset, uint32(n))
	format.PutU64(data, int(entry)+format.LogEntryOffOffset, off)
	copy(data[entry+format.LogEntryHeaderSize:], data[off:off+n])

	size := format.LogEntryHeaderSize + padded
	if err := l.dt.FlushRange(int(entry), int(size)); err != nil {
		return fmt.Errorf("flush undo entry: %w", err)
	}

	// The entry is durable; publishing it is a separate flush so a torn
	// write can never expose a half-written entry.
	format.PutU32(data, int(l.off)+format.LogCountOffset, l.count()+1)
	format.PutU64(data, int(l.off)+format.LogUsedOffset, used+size)
	if err := l.dt.FlushRange(int(l.off), format.LogHeaderSize); err != nil {
		return fmt.Errorf("flush undo header: %w", err)
	}
	return nil
}

// clear truncates the log. A cleared log is the commit point.
func (l *undoLog) clear() error {
	data := l.r.Bytes()
	format.PutU32(data, int(l.off)+format.LogCountOffset, 0)
	format.PutU64(data, int(l.off)+format.LogUsedOffset, 0)
	return l.dt.FlushRange(int(l.off), format.LogHeaderSize)
}

type logEntry struct {
	off     uint64
	payload []byte
}

// entries decodes and validates every entry in order.
func (l *undoLog) entries() ([]logEntry, error) {
	data := l.r.Bytes()
	n := l.count()
	used := l.used()
	if used > l.cap-format.LogHeaderSize {
		return nil, fmt.Errorf("used %d exceeds log: %w", used, ErrLogCorrupt)
	}

	out := make([]logEntry, 0, n)
	pos := l.off + format.LogHeaderSize
	end := pos + used
	for i := range n {
		if pos+format.LogEntryHeaderSize > end {
			return nil, fmt.Errorf("entry %d truncated: %w", i, ErrLogCorrupt)
		}
		kind := format.ReadU32(data, int(pos)+format.LogEntryKindOffset)
		size := uint64(format.ReadU32(data, int(pos)+format.LogEntryLenOffset))
		target := format.ReadU64(data, int(pos)+format.LogEntryOffOffset)
		if kind != format.LogEntrySnapshot {
			return nil, fmt.Errorf("entry %d kind %d: %w", i, kind, ErrLogCorrupt)
		}
		payload := pos + format.LogEntryHeaderSize
		if payload+size > end || !l.validTarget(target, size) {
			return nil, fmt.Errorf("entry %d [%d,+%d): %w", i, target, size, ErrLogCorrupt)
		}
		out = append(out, logEntry{off: target, payload: data[payload : payload+size]})
		pos = payload + uint64(format.Align8(int(size)))
	}
	return out, nil
}

// validTarget reports whether [off, off+n) may be snapshotted.
func (l *undoLog) validTarget(off, n uint64) bool {
	end, ok := buf.AddU64(off, n)
	if !ok || end > uint64(l.r.Size()) {
		return false
	}
	return end <= l.off || off >= l.off+l.cap
}

// rollback copies every pre-image back, newest first, and marks the restored
// ranges dirty. It returns the number of entries applied.
func (l *undoLog) rollback() (int, error) {
	entries, err := l.entries()
	if err != nil {
		return 0, err
	}
	data := l.r.Bytes()
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		copy(data[e.off:], e.payload)
		l.dt.Add(int(e.off), len(e.payload))
	}
	return len(entries), nil
}
