// Package format describes the on-media layout of a pmemkit pool file: the
// header page, the undo log region and the heap block headers. It only knows
// about bytes and offsets; higher-level packages own the semantics.
package format

var (
	// PoolSignature is the eight-byte signature at the start of every pool.
	// Layout:
	//   0x00  'P' 'M' 'E' 'M' 'K' 'I' 'T' 0x00
	PoolSignature = []byte{'P', 'M', 'E', 'M', 'K', 'I', 'T', 0}
)

const (
	// HeaderSize is the size of the pool header in bytes (one page).
	HeaderSize = 4096

	// PageSize is the granularity of log and heap regions.
	PageSize = 4096

	// PageAlignmentMask is PageSize - 1.
	PageAlignmentMask = PageSize - 1

	// MajorVersion and MinorVersion identify the layout revision written by Create.
	MajorVersion = 1
	MinorVersion = 0

	// Header field offsets.
	SignatureOffset    = 0x000
	SignatureSize      = 8
	MajorVersionOffset = 0x008
	MinorVersionOffset = 0x00C
	UUIDOffset         = 0x010
	UUIDSize           = 16
	PrimarySeqOffset   = 0x020
	SecondarySeqOffset = 0x024
	TimeStampOffset    = 0x028
	PoolSizeOffset     = 0x030
	LogOffsetOffset    = 0x038
	LogSizeOffset      = 0x040
	HeapOffsetOffset   = 0x048
	HeapSizeOffset     = 0x050
	RootOffsetOffset   = 0x058
	RootSizeOffset     = 0x060
	LayoutOffset       = 0x068
	LayoutSize         = 64

	// ChecksumOffset holds the XOR of the 127 dwords preceding it.
	ChecksumOffset    = 0x1FC
	ChecksumRegionLen = 0x1FC
	ChecksumDwords    = ChecksumRegionLen / DWORDSize
	DWORDSize         = 4
)

const (
	// LogHeaderSize is the fixed prefix of the undo log region.
	LogHeaderSize = 16

	// Log header field offsets, relative to the log region start.
	LogCountOffset = 0x00
	LogUsedOffset  = 0x08

	// LogEntryHeaderSize precedes every entry payload.
	//   0x00  4  kind
	//   0x04  4  payload length
	//   0x08  8  absolute pool offset the payload belongs to
	LogEntryHeaderSize = 16
	LogEntryKindOffset = 0x00
	LogEntryLenOffset  = 0x04
	LogEntryOffOffset  = 0x08

	// LogEntrySnapshot records the pre-image of a range.
	LogEntrySnapshot uint32 = 1

	// DefaultLogSize is used when Options.LogSize is zero.
	DefaultLogSize = 256 * 1024

	// MinLogSize is the smallest accepted undo log.
	MinLogSize = PageSize
)

const (
	// BlockHeaderSize precedes every heap block payload.
	//   0x00  8  block size including this header
	//   0x08  4  magic
	//   0x0C  4  flags
	BlockHeaderSize  = 16
	BlockSizeOffset  = 0x00
	BlockMagicOffset = 0x08
	BlockFlagsOffset = 0x0C

	// BlockMagic marks a well-formed block header.
	BlockMagic uint32 = 0xB10C5AFE

	// BlockAllocated is set in the flags of an in-use block.
	BlockAllocated uint32 = 1

	// BlockAlignment is the alignment of block sizes and payloads.
	BlockAlignment     = 16
	BlockAlignmentMask = BlockAlignment - 1

	// MinBlockSize is the smallest block the allocator will create or split off.
	MinBlockSize = 32
)

const (
	// MinPoolSize leaves room for the header, a minimal log and one page of heap.
	MinPoolSize = HeaderSize + MinLogSize + PageSize

	// DefaultPoolSize is used when Options.Size is zero.
	DefaultPoolSize = 8 * 1024 * 1024
)
