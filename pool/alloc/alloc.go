package alloc

import (
	"fmt"
	"sort"

	"github.com/joshuapare/pmemkit/internal/buf"
	"github.com/joshuapare/pmemkit/internal/format"
	"github.com/joshuapare/pmemkit/pool/region"
)

// Journal receives every heap header write the allocator makes.
type Journal interface {
	// Snapshot preserves the current contents of [off, off+n) so the write
	// that follows can be undone.
	Snapshot(off, n uint64) error

	// Add marks [off, off+length) as written.
	Add(off, length int)
}

// Stats summarises heap occupancy.
type Stats struct {
	HeapSize        uint64 `json:"heap_size"`
	UsedBytes       uint64 `json:"used_bytes"` // including block headers
	FreeBytes       uint64 `json:"free_bytes"`
	AllocatedBlocks int    `json:"allocated_blocks"`
	FreeBlocks      int    `json:"free_blocks"`
	LargestFree     uint64 `json:"largest_free"`
}

type freeBlock struct {
	off  uint64
	size uint64
}

// Allocator is a best-fit block allocator over a pool heap.
type Allocator struct {
	r       *region.Region
	j       Journal
	heapOff uint64
	heapEnd uint64

	free      []freeBlock // sorted by off
	used      uint64
	allocated int
}

// New builds an allocator for r by walking the heap.
func New(r *region.Region, j Journal) (*Allocator, error) {
	heapOff, heapLen := r.HeapRange()
	a := &Allocator{
		r:       r,
		j:       j,
		heapOff: uint64(heapOff),
		heapEnd: uint64(heapOff) + heapLen,
	}
	if err := a.Rebuild(); err != nil {
		return nil, err
	}
	return a, nil
}

// Rebuild rescans the heap and reconstructs the free list. It is called after
// the undo log has rolled header bytes back.
func (a *Allocator) Rebuild() error {
	data := a.r.Bytes()
	a.free = a.free[:0]
	a.used = 0
	a.allocated = 0

	off := a.heapOff
	for off < a.heapEnd {
		size, flags, ok := format.ReadBlockHeader(data, int(off))
		if !ok {
			return fmt.Errorf("block at %d: bad magic: %w", off, ErrCorrupt)
		}
		if size < format.MinBlockSize || size&format.BlockAlignmentMask != 0 || size > a.heapEnd-off {
			return fmt.Errorf("block at %d: size %d: %w", off, size, ErrCorrupt)
		}
		if flags&format.BlockAllocated != 0 {
			a.used += size
			a.allocated++
		} else {
			a.free = append(a.free, freeBlock{off: off, size: size})
		}
		off += size
	}
	return nil
}

// Alloc reserves a block with at least size payload bytes and returns the
// absolute offset of its zeroed payload.
func (a *Allocator) Alloc(size uint64) (region.Offset, error) {
	if size == 0 {
		return 0, ErrNeedSmall
	}
	need, ok := buf.AddU64(size, format.BlockHeaderSize+format.BlockAlignmentMask)
	if !ok {
		return 0, fmt.Errorf("request of %d bytes: %w", size, ErrNoSpace)
	}
	need &^= format.BlockAlignmentMask
	need = max(need, format.MinBlockSize)

	idx := a.bestFit(need)
	if idx < 0 {
		return 0, fmt.Errorf("request of %d bytes: %w", size, ErrNoSpace)
	}
	fb := a.free[idx]

	if err := a.j.Snapshot(fb.off, format.BlockHeaderSize); err != nil {
		return 0, err
	}

	data := a.r.Bytes()
	blockSize := fb.size
	if rem := fb.size - need; rem >= format.MinBlockSize {
		// The remainder header lands in free payload bytes whose contents do
		// not matter on rollback, so it needs no snapshot.
		format.PutBlockHeader(data, int(fb.off+need), rem, 0)
		a.j.Add(int(fb.off+need), format.BlockHeaderSize)
		a.free[idx] = freeBlock{off: fb.off + need, size: rem}
		blockSize = need
	} else {
		a.free = append(a.free[:idx], a.free[idx+1:]...)
	}

	format.PutBlockHeader(data, int(fb.off), blockSize, format.BlockAllocated)
	payload := fb.off + format.BlockHeaderSize
	clear(data[payload : fb.off+blockSize])
	a.j.Add(int(fb.off), int(blockSize))

	a.used += blockSize
	a.allocated++
	return region.Offset(payload), nil
}

// Free releases the block whose payload starts at off and merges it with
// free neighbours.
func (a *Allocator) Free(off region.Offset) error {
	blockOff, size, err := a.lookup(off)
	if err != nil {
		return err
	}
	data := a.r.Bytes()
	_, flags, _ := format.ReadBlockHeader(data, int(blockOff))
	if flags&format.BlockAllocated == 0 {
		return fmt.Errorf("free %d: %w", off, ErrNotAllocated)
	}

	idx := sort.Search(len(a.free), func(i int) bool { return a.free[i].off > blockOff })
	start, total := blockOff, size

	mergeNext := idx < len(a.free) && a.free[idx].off == blockOff+size
	if mergeNext {
		total += a.free[idx].size
	}
	mergePrev := idx > 0 && a.free[idx-1].off+a.free[idx-1].size == blockOff
	if mergePrev {
		start = a.free[idx-1].off
		total += a.free[idx-1].size
	}

	// When merging backwards only the previous header changes; ours is
	// left intact inside the merged payload.
	if err := a.j.Snapshot(start, format.BlockHeaderSize); err != nil {
		return err
	}
	format.PutBlockHeader(data, int(start), total, 0)
	a.j.Add(int(start), format.BlockHeaderSize)

	switch {
	case mergePrev && mergeNext:
		a.free[idx-1].size = total
		a.free = append(a.free[:idx], a.free[idx+1:]...)
	case mergePrev:
		a.free[idx-1].size = total
	case mergeNext:
		a.free[idx] = freeBlock{off: start, size: total}
	default:
		a.free = append(a.free, freeBlock{})
		copy(a.free[idx+1:], a.free[idx:])
		a.free[idx] = freeBlock{off: start, size: total}
	}

	a.used -= size
	a.allocated--
	return nil
}

// Usable returns the payload capacity of the allocated block at off.
func (a *Allocator) Usable(off region.Offset) (uint64, error) {
	_, size, err := a.lookup(off)
	if err != nil {
		return 0, err
	}
	return size - format.BlockHeaderSize, nil
}

// Stats reports current heap occupancy.
func (a *Allocator) Stats() Stats {
	s := Stats{
		HeapSize:        a.heapEnd - a.heapOff,
		UsedBytes:       a.used,
		AllocatedBlocks: a.allocated,
		FreeBlocks:      len(a.free),
	}
	for _, fb := range a.free {
		s.FreeBytes += fb.size
		s.LargestFree = max(s.LargestFree, fb.size)
	}
	return s
}

// bestFit returns the index of the smallest free block of at least need
// bytes, or -1.
func (a *Allocator) bestFit(need uint64) int {
	best := -1
	for i, fb := range a.free {
		if fb.size < need {
			continue
		}
		if best < 0 || fb.size < a.free[best].size {
			best = i
			if fb.size == need {
				break
			}
		}
	}
	return best
}

// lookup validates a payload offset and returns its block offset and size.
func (a *Allocator) lookup(off region.Offset) (blockOff, size uint64, err error) {
	p := uint64(off)
	if p < a.heapOff+format.BlockHeaderSize || p >= a.heapEnd || p&format.BlockAlignmentMask != 0 {
		return 0, 0, fmt.Errorf("offset %d: %w", off, ErrBadRef)
	}
	blockOff = p - format.BlockHeaderSize
	size, _, ok := format.ReadBlockHeader(a.r.Bytes(), int(blockOff))
	if !ok || size < format.MinBlockSize || size > a.heapEnd-blockOff {
		return 0, 0, fmt.Errorf("offset %d: %w", off, ErrBadRef)
	}
	return blockOff, size, nil
}
