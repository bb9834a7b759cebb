package format

import (
	"bytes"
	"fmt"

	"golang.org/x/text/unicode/norm"
)

// Header captures the pool header page. The diagram below lists every field.
//
//	Offset  Size  Description
//	------  ----  ----------------------------------------------------------
//	 0x000   8    'P' 'M' 'E' 'M' 'K' 'I' 'T' 0x00
//	 0x008   4    Major version
//	 0x00C   4    Minor version
//	 0x010  16    Pool UUID
//	 0x020   4    Primary sequence number (bumped when a transaction begins)
//	 0x024   4    Secondary sequence number (caught up when it ends)
//	 0x028   8    Last write timestamp (unix nanoseconds)
//	 0x030   8    Pool size
//	 0x038   8    Undo log offset
//	 0x040   8    Undo log size
//	 0x048   8    Heap offset
//	 0x050   8    Heap size
//	 0x058   8    Root object offset (0 when unset)
//	 0x060   8    Root object size
//	 0x068  64    Layout name, NUL padded
//	 0x1FC   4    Checksum
type Header struct {
	MajorVersion      uint32
	MinorVersion      uint32
	UUID              [UUIDSize]byte
	PrimarySequence   uint32
	SecondarySequence uint32
	LastWriteNanos    uint64
	PoolSize          uint64
	LogOffset         uint64
	LogSize           uint64
	HeapOffset        uint64
	HeapSize          uint64
	RootOffset        uint64
	RootSize          uint64
	Layout            string
	Checksum          uint32
}

// Consistent reports whether the last transaction finished.
func (h Header) Consistent() bool {
	return h.PrimarySequence == h.SecondarySequence
}

// ParseHeader validates and decodes a pool header.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("pool header: %w", ErrTruncated)
	}
	if !bytes.Equal(b[:SignatureSize], PoolSignature) {
		return Header{}, fmt.Errorf("pool header: %w", ErrSignatureMismatch)
	}
	h := Header{
		MajorVersion:      ReadU32(b, MajorVersionOffset),
		MinorVersion:      ReadU32(b, MinorVersionOffset),
		PrimarySequence:   ReadU32(b, PrimarySeqOffset),
		SecondarySequence: ReadU32(b, SecondarySeqOffset),
		LastWriteNanos:    ReadU64(b, TimeStampOffset),
		PoolSize:          ReadU64(b, PoolSizeOffset),
		LogOffset:         ReadU64(b, LogOffsetOffset),
		LogSize:           ReadU64(b, LogSizeOffset),
		HeapOffset:        ReadU64(b, HeapOffsetOffset),
		HeapSize:          ReadU64(b, HeapSizeOffset),
		RootOffset:        ReadU64(b, RootOffsetOffset),
		RootSize:          ReadU64(b, RootSizeOffset),
		Checksum:          ReadU32(b, ChecksumOffset),
	}
	copy(h.UUID[:], b[UUIDOffset:UUIDOffset+UUIDSize])
	name := b[LayoutOffset : LayoutOffset+LayoutSize]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	h.Layout = string(name)

	if h.MajorVersion != MajorVersion {
		return Header{}, fmt.Errorf("pool header: major version %d: %w", h.MajorVersion, ErrVersion)
	}
	if got := Checksum(b); got != h.Checksum {
		return Header{}, fmt.Errorf("pool header: stored 0x%08x, computed 0x%08x: %w",
			h.Checksum, got, ErrChecksum)
	}
	return h, nil
}

// ValidateGeometry checks that the log and heap regions are page aligned,
// do not overlap, and fit in a file of fileSize bytes.
func (h Header) ValidateGeometry(fileSize int64) error {
	if h.PoolSize != uint64(fileSize) {
		return fmt.Errorf("pool size %d, file size %d: %w", h.PoolSize, fileSize, ErrGeometry)
	}
	if h.LogOffset != HeaderSize || h.LogSize < MinLogSize || h.LogSize&PageAlignmentMask != 0 {
		return fmt.Errorf("log region [%d,+%d): %w", h.LogOffset, h.LogSize, ErrGeometry)
	}
	if h.HeapOffset != h.LogOffset+h.LogSize || h.HeapOffset&PageAlignmentMask != 0 {
		return fmt.Errorf("heap offset %d: %w", h.HeapOffset, ErrGeometry)
	}
	if h.HeapSize == 0 || h.HeapOffset+h.HeapSize > h.PoolSize {
		return fmt.Errorf("heap region [%d,+%d): %w", h.HeapOffset, h.HeapSize, ErrGeometry)
	}
	if h.RootOffset != 0 &&
		(h.RootOffset < h.HeapOffset || h.RootOffset+h.RootSize > h.HeapOffset+h.HeapSize) {
		return fmt.Errorf("root object [%d,+%d): %w", h.RootOffset, h.RootSize, ErrGeometry)
	}
	return nil
}

// Params describes a pool about to be formatted.
type Params struct {
	UUID     [UUIDSize]byte
	Layout   string
	PoolSize uint64
	LogSize  uint64
	Now      uint64
}

// Geometry computes region offsets for the given pool and log sizes. Both are
// rounded to whole pages.
func Geometry(poolSize, logSize uint64) (logOff, logLen, heapOff, heapLen uint64, err error) {
	if logSize == 0 {
		logSize = DefaultLogSize
	}
	logLen = AlignPage(logSize)
	poolSize &^= PageAlignmentMask
	logOff = HeaderSize
	heapOff = logOff + logLen
	if poolSize < MinPoolSize || heapOff+PageSize > poolSize {
		return 0, 0, 0, 0, fmt.Errorf("pool size %d with log %d: %w", poolSize, logLen, ErrGeometry)
	}
	heapLen = poolSize - heapOff
	return logOff, logLen, heapOff, heapLen, nil
}

// NormalizeLayout returns the canonical form of a layout name. Names are
// compared after NFC normalisation so visually equal names match.
func NormalizeLayout(name string) (string, error) {
	n := norm.NFC.String(name)
	if len(n) > LayoutSize-1 {
		return "", fmt.Errorf("layout %q: %w", name, ErrLayoutTooLong)
	}
	return n, nil
}

// Format writes a fresh header, an empty undo log, and a single free block
// spanning the heap into b. b must be PoolSize bytes long and zeroed.
func Format(b []byte, p Params) error {
	layout, err := NormalizeLayout(p.Layout)
	if err != nil {
		return err
	}
	logOff, logLen, heapOff, heapLen, err := Geometry(p.PoolSize, p.LogSize)
	if err != nil {
		return err
	}
	if uint64(len(b)) < heapOff+heapLen {
		return fmt.Errorf("format: buffer %d bytes: %w", len(b), ErrTruncated)
	}

	copy(b[SignatureOffset:], PoolSignature)
	PutU32(b, MajorVersionOffset, MajorVersion)
	PutU32(b, MinorVersionOffset, MinorVersion)
	copy(b[UUIDOffset:UUIDOffset+UUIDSize], p.UUID[:])
	PutU32(b, PrimarySeqOffset, 1)
	PutU32(b, SecondarySeqOffset, 1)
	PutU64(b, TimeStampOffset, p.Now)
	PutU64(b, PoolSizeOffset, heapOff+heapLen)
	PutU64(b, LogOffsetOffset, logOff)
	PutU64(b, LogSizeOffset, logLen)
	PutU64(b, HeapOffsetOffset, heapOff)
	PutU64(b, HeapSizeOffset, heapLen)
	copy(b[LayoutOffset:LayoutOffset+LayoutSize], layout)

	// Empty log.
	PutU32(b, int(logOff)+LogCountOffset, 0)
	PutU64(b, int(logOff)+LogUsedOffset, 0)

	// One free block covering the heap.
	PutBlockHeader(b, int(heapOff), heapLen, 0)

	PutU32(b, ChecksumOffset, Checksum(b))
	return nil
}

// Checksum computes the header checksum: the XOR of the first 127 dwords.
// The checksum field itself is excluded.
func Checksum(b []byte) uint32 {
	if len(b) < ChecksumRegionLen {
		return 0
	}
	var sum uint32
	for i := range ChecksumDwords {
		sum ^= ReadU32(b, i*DWORDSize)
	}
	return sum
}

// PutBlockHeader writes a heap block header at off.
func PutBlockHeader(b []byte, off int, size uint64, flags uint32) {
	PutU64(b, off+BlockSizeOffset, size)
	PutU32(b, off+BlockMagicOffset, BlockMagic)
	PutU32(b, off+BlockFlagsOffset, flags)
}

// ReadBlockHeader decodes the block header at off. ok is false when the magic
// does not match.
func ReadBlockHeader(b []byte, off int) (size uint64, flags uint32, ok bool) {
	if off < 0 || off+BlockHeaderSize > len(b) {
		return 0, 0, false
	}
	if ReadU32(b, off+BlockMagicOffset) != BlockMagic {
		return 0, 0, false
	}
	return ReadU64(b, off+BlockSizeOffset), ReadU32(b, off+BlockFlagsOffset), true
}
