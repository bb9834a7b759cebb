package dirty

import (
	"context"
	"sort"

	"github.com/joshuapare/pmemkit/pool/region"
)

const (
	// defaultRangeCapacity is the pre-allocated capacity for dirty ranges.
	defaultRangeCapacity = 64

	standardPageSize = 4096
)

// FlushMode controls durability guarantees for transaction commits.
type FlushMode int

const (
	// FlushAuto msyncs dirty pages and fdatasyncs after the header write.
	FlushAuto FlushMode = iota

	// FlushDataOnly only msyncs. The caller is responsible for syncing the
	// file later; useful for bulk loads followed by one Sync.
	FlushDataOnly

	// FlushFull is FlushAuto plus F_FULLFSYNC on darwin.
	FlushFull
)

// String implements fmt.Stringer.
func (m FlushMode) String() string {
	switch m {
	case FlushAuto:
		return "auto"
	case FlushDataOnly:
		return "data-only"
	case FlushFull:
		return "full"
	default:
		return "unknown"
	}
}

// ParseFlushMode maps a config string to a FlushMode.
func ParseFlushMode(s string) (FlushMode, bool) {
	switch s {
	case "", "auto":
		return FlushAuto, true
	case "data-only":
		return FlushDataOnly, true
	case "full":
		return FlushFull, true
	default:
		return FlushAuto, false
	}
}

// Range represents a dirty byte range (absolute file offsets).
type Range struct {
	Off int64
	Len int64
}

// Tracker accumulates dirty ranges and flushes them.
type Tracker struct {
	r        *region.Region
	ranges   []Range
	pageSize int64
}

var _ FlushableTracker = (*Tracker)(nil)

// NewTracker creates a dirty tracker for the given region.
func NewTracker(r *region.Region) *Tracker {
	return &Tracker{
		r:        r,
		ranges:   make([]Range, 0, defaultRangeCapacity),
		pageSize: standardPageSize,
	}
}

// Add records a dirty range.
func (t *Tracker) Add(off, length int) {
	if length <= 0 {
		return
	}
	t.ranges = append(t.ranges, Range{Off: int64(off), Len: int64(length)})
}

// FlushRange synchronously flushes the pages covering [off, off+length).
func (t *Tracker) FlushRange(off, length int) error {
	data := t.r.Bytes()
	if len(data) == 0 || length <= 0 {
		return nil
	}
	start, end := t.align(int64(off), int64(length))
	if end > int64(len(data)) {
		end = int64(len(data))
	}
	return t.flushSpan(data, start, end)
}

// FlushDataOnly flushes all dirty ranges except the header page, then clears
// the recorded ranges. A cancelled ctx stops it before anything is flushed
// and keeps the ranges.
func (t *Tracker) FlushDataOnly(ctx context.Context) error {
	if len(t.ranges) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	data := t.r.Bytes()
	if len(data) == 0 {
		return nil
	}
	if err := t.flushRanges(data); err != nil {
		return err
	}
	t.ranges = t.ranges[:0]
	return nil
}

// FlushHeaderAndMeta flushes the header page and syncs the file per mode.
func (t *Tracker) FlushHeaderAndMeta(mode FlushMode) error {
	data := t.r.Bytes()
	if len(data) == 0 {
		return nil
	}
	headerLen := min(int(t.pageSize), len(data))
	if err := t.flushSpan(data, 0, int64(headerLen)); err != nil {
		return err
	}
	if mode == FlushDataOnly {
		return nil
	}
	return t.syncFile(mode == FlushFull)
}

// Reset clears all tracked ranges.
func (t *Tracker) Reset() {
	t.ranges = t.ranges[:0]
}

// Pending returns the number of raw, uncoalesced ranges recorded.
func (t *Tracker) Pending() int {
	return len(t.ranges)
}

// CoalescedRanges returns the page-aligned ranges that the next flush writes.
func (t *Tracker) CoalescedRanges() []Range {
	return t.coalesce()
}

func (t *Tracker) align(off, length int64) (start, end int64) {
	start = (off / t.pageSize) * t.pageSize
	end = off + length
	if end%t.pageSize != 0 {
		end = ((end / t.pageSize) + 1) * t.pageSize
	}
	return start, end
}

// coalesce page-aligns all ranges, sorts them, and merges overlapping or
// adjacent ones.
func (t *Tracker) coalesce() []Range {
	if len(t.ranges) == 0 {
		return nil
	}

	aligned := make([]Range, len(t.ranges))
	for i, r := range t.ranges {
		start, end := t.align(r.Off, r.Len)
		aligned[i] = Range{Off: start, Len: end - start}
	}

	sort.Slice(aligned, func(i, j int) bool {
		return aligned[i].Off < aligned[j].Off
	})

	merged := make([]Range, 0, len(aligned))
	current := aligned[0]
	for _, next := range aligned[1:] {
		if next.Off <= current.Off+current.Len {
			end := max(current.Off+current.Len, next.Off+next.Len)
			current.Len = end - current.Off
			continue
		}
		merged = append(merged, current)
		current = next
	}
	return append(merged, current)
}
