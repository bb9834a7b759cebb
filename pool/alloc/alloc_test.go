package alloc

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/pmemkit/internal/format"
	"github.com/joshuapare/pmemkit/pool/region"
)

// recordingJournal keeps pre-images in memory so tests can roll back.
type recordingJournal struct {
	data      []byte
	snapshots []snapshot
	adds      int
	failAfter int // fail the Nth snapshot when > 0
}

type snapshot struct {
	off  uint64
	prev []byte
}

func (j *recordingJournal) Snapshot(off, n uint64) error {
	if j.failAfter > 0 && len(j.snapshots)+1 >= j.failAfter {
		return errJournalFull
	}
	j.snapshots = append(j.snapshots, snapshot{off: off, prev: append([]byte(nil), j.data[off:off+n]...)})
	return nil
}

func (j *recordingJournal) Add(int, int) { j.adds++ }

// undo restores every snapshot in reverse order.
func (j *recordingJournal) undo() {
	for i := len(j.snapshots) - 1; i >= 0; i-- {
		s := j.snapshots[i]
		copy(j.data[s.off:], s.prev)
	}
	j.snapshots = nil
}

type journalErr string

func (e journalErr) Error() string { return string(e) }

const errJournalFull = journalErr("journal full")

func newTestAllocator(t *testing.T) (*Allocator, *recordingJournal, *region.Region) {
	t.Helper()
	r, err := region.Create(filepath.Join(t.TempDir(), "alloc.pool"), region.CreateParams{
		Size:    64 * 1024,
		LogSize: format.MinLogSize,
		Layout:  "alloc-test",
		Perm:    0o644,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	j := &recordingJournal{data: r.Bytes()}
	a, err := New(r, j)
	require.NoError(t, err)
	return a, j, r
}

func TestAlloc_ZeroedAndAligned(t *testing.T) {
	a, _, r := newTestAllocator(t)

	heapOff, _ := r.HeapRange()
	// Dirty the first heap bytes so zeroing is observable.
	for i := range 64 {
		r.Bytes()[uint64(heapOff)+format.BlockHeaderSize+uint64(i)] = 0xFF
	}

	off, err := a.Alloc(40)
	require.NoError(t, err)
	require.Zero(t, uint64(off)%format.BlockAlignment)
	require.Equal(t, uint64(heapOff)+format.BlockHeaderSize, uint64(off))

	usable, err := a.Usable(off)
	require.NoError(t, err)
	require.GreaterOrEqual(t, usable, uint64(40))
	for _, b := range r.Bytes()[off : uint64(off)+usable] {
		require.Zero(t, b)
	}
}

func TestAlloc_RejectsZero(t *testing.T) {
	a, _, _ := newTestAllocator(t)
	_, err := a.Alloc(0)
	require.ErrorIs(t, err, ErrNeedSmall)
}

func TestAlloc_NoSpace(t *testing.T) {
	a, _, _ := newTestAllocator(t)
	_, err := a.Alloc(1 << 30)
	require.ErrorIs(t, err, ErrNoSpace)

	_, err = a.Alloc(^uint64(0) - 4)
	require.ErrorIs(t, err, ErrNoSpace)
}

func TestFree_CoalescesBothSides(t *testing.T) {
	a, _, _ := newTestAllocator(t)
	initial := a.Stats()
	require.Equal(t, 1, initial.FreeBlocks)

	x, err := a.Alloc(100)
	require.NoError(t, err)
	y, err := a.Alloc(100)
	require.NoError(t, err)
	z, err := a.Alloc(100)
	require.NoError(t, err)
	require.Equal(t, 3, a.Stats().AllocatedBlocks)

	require.NoError(t, a.Free(x))
	require.NoError(t, a.Free(z))
	require.Equal(t, 2, a.Stats().FreeBlocks)

	require.NoError(t, a.Free(y))
	s := a.Stats()
	require.Equal(t, 1, s.FreeBlocks)
	require.Zero(t, s.AllocatedBlocks)
	require.Zero(t, s.UsedBytes)
	require.Equal(t, initial.FreeBytes, s.FreeBytes)

	// The in-memory view matches a fresh walk.
	require.NoError(t, a.Rebuild())
	require.Equal(t, s, a.Stats())
}

func TestFree_RejectsBadOffsets(t *testing.T) {
	a, _, r := newTestAllocator(t)

	off, err := a.Alloc(16)
	require.NoError(t, err)

	require.ErrorIs(t, a.Free(off+1), ErrBadRef)
	heapOff, _ := r.HeapRange()
	require.ErrorIs(t, a.Free(heapOff), ErrBadRef)

	require.NoError(t, a.Free(off))
	require.ErrorIs(t, a.Free(off), ErrNotAllocated)
}

func TestBestFit_PrefersSmallestHole(t *testing.T) {
	a, _, _ := newTestAllocator(t)

	big, err := a.Alloc(512)
	require.NoError(t, err)
	_, err = a.Alloc(16)
	require.NoError(t, err)
	small, err := a.Alloc(64)
	require.NoError(t, err)
	_, err = a.Alloc(16)
	require.NoError(t, err)

	require.NoError(t, a.Free(big))
	require.NoError(t, a.Free(small))

	got, err := a.Alloc(48)
	require.NoError(t, err)
	require.Equal(t, small, got)
}

func TestRollback_RestoresHeap(t *testing.T) {
	a, j, _ := newTestAllocator(t)

	keep, err := a.Alloc(200)
	require.NoError(t, err)
	j.snapshots = nil // pretend the first allocation committed
	before := a.Stats()

	_, err = a.Alloc(300)
	require.NoError(t, err)
	require.NoError(t, a.Free(keep))

	j.undo()
	require.NoError(t, a.Rebuild())
	require.Equal(t, before, a.Stats())

	usable, err := a.Usable(keep)
	require.NoError(t, err)
	require.GreaterOrEqual(t, usable, uint64(200))
}

func TestAlloc_JournalFailureLeavesHeapUntouched(t *testing.T) {
	a, j, _ := newTestAllocator(t)
	before := a.Stats()

	j.failAfter = 1
	_, err := a.Alloc(64)
	require.ErrorIs(t, err, errJournalFull)
	require.Equal(t, before, a.Stats())
}

func TestRebuild_DetectsCorruption(t *testing.T) {
	a, _, r := newTestAllocator(t)

	heapOff, _ := r.HeapRange()
	format.PutU32(r.Bytes(), int(heapOff)+format.BlockMagicOffset, 0)
	require.ErrorIs(t, a.Rebuild(), ErrCorrupt)
}
