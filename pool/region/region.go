package region

import (
	"errors"
	"fmt"
	"os"
	"unsafe"

	"github.com/joshuapare/pmemkit/internal/buf"
	"github.com/joshuapare/pmemkit/internal/format"
)

// Offset is an absolute byte offset into a pool file. It is the only
// persistent form of a reference; it is translated to memory by the pool.
type Offset uint64

var (
	// ErrClosed is returned when operating on a closed region.
	ErrClosed = errors.New("region: closed")
	// ErrExists is returned by Create when the path already exists.
	ErrExists = errors.New("region: file already exists")
)

// Region is an opened pool file, backed by mmap (unix) or a byte slice (others).
type Region struct {
	path string
	f    *os.File
	data []byte
	size int64
	hdr  format.Header
}

// CreateParams configures a new pool file.
type CreateParams struct {
	Size    uint64
	LogSize uint64
	Layout  string
	Perm    os.FileMode
	UUID    [format.UUIDSize]byte
	Now     uint64
}

// OpenOptions tunes how an existing file is mapped.
type OpenOptions struct {
	// PreFault touches every page after mapping so unreadable media is
	// reported as an error instead of a SIGBUS later on (linux only).
	PreFault bool
}

// Create formats a new pool file at path and maps it.
func Create(path string, p CreateParams) (*Region, error) {
	size := p.Size &^ format.PageAlignmentMask
	if _, _, _, _, err := format.Geometry(size, p.LogSize); err != nil {
		return nil, err
	}
	if _, err := format.NormalizeLayout(p.Layout); err != nil {
		return nil, err
	}
	perm := p.Perm
	if perm == 0 {
		perm = 0o600
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("%s: %w", path, ErrExists)
		}
		return nil, err
	}
	if err := f.Truncate(int64(size)); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return nil, fmt.Errorf("region: size file: %w", err)
	}

	data, err := mapFile(f, int64(size))
	if err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return nil, err
	}

	if err := format.Format(data, format.Params{
		UUID:     p.UUID,
		Layout:   p.Layout,
		PoolSize: size,
		LogSize:  p.LogSize,
		Now:      p.Now,
	}); err != nil {
		_ = unmapFile(data)
		_ = f.Close()
		_ = os.Remove(path)
		return nil, err
	}

	r := &Region{path: path, f: f, data: data, size: int64(size)}
	if err := r.Sync(); err != nil {
		_ = r.Close()
		_ = os.Remove(path)
		return nil, fmt.Errorf("region: sync new pool: %w", err)
	}
	if err := r.load(); err != nil {
		_ = r.Close()
		return nil, err
	}
	return r, nil
}

// Open maps an existing pool file read-write and validates its header.
func Open(path string, opts OpenOptions) (*Region, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	sz := st.Size()
	if sz < format.MinPoolSize {
		_ = f.Close()
		return nil, fmt.Errorf("region: %s is %d bytes: %w", path, sz, format.ErrTruncated)
	}

	data, err := mapFile(f, sz)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	r := &Region{path: path, f: f, data: data, size: sz}

	if opts.PreFault {
		if err := PreFaultPages(data); err != nil {
			_ = r.Close()
			return nil, fmt.Errorf("region: %s: %w", path, err)
		}
	}
	if err := r.load(); err != nil {
		_ = r.Close()
		return nil, err
	}
	return r, nil
}

func (r *Region) load() error {
	hdr, err := format.ParseHeader(r.data)
	if err != nil {
		return err
	}
	if err := hdr.ValidateGeometry(r.size); err != nil {
		return err
	}
	r.hdr = hdr
	return nil
}

// Close unmaps the region and closes the file. Any pointer into the mapping
// is invalid afterwards.
func (r *Region) Close() error {
	if r == nil {
		return nil
	}
	var err error
	if r.data != nil {
		err = closeMapping(r)
		r.data = nil
	}
	if r.f != nil {
		if cerr := r.f.Close(); err == nil {
			err = cerr
		}
		r.f = nil
	}
	return err
}

// Path returns the file the region was opened from.
func (r *Region) Path() string { return r.path }

// Bytes returns the whole mapping.
func (r *Region) Bytes() []byte { return r.data }

// Size returns the mapping length in bytes.
func (r *Region) Size() int64 { return r.size }

// Closed reports whether Close has been called.
func (r *Region) Closed() bool { return r == nil || r.data == nil }

// FD returns the file descriptor, or -1 when closed.
func (r *Region) FD() int {
	if r == nil || r.f == nil {
		return -1
	}
	return int(r.f.Fd())
}

// Header returns the header as parsed at open. Geometry and identity fields
// never change; sequence numbers and the root fields are read live through
// the accessors below.
func (r *Region) Header() format.Header { return r.hdr }

// Base returns the address of the first mapped byte, or 0 when closed.
func (r *Region) Base() uintptr {
	if len(r.data) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&r.data[0]))
}

// Contains reports whether [addr, addr+n) lies inside the mapping.
func (r *Region) Contains(addr, n uintptr) bool {
	base := r.Base()
	if base == 0 || addr < base {
		return false
	}
	end := addr + n
	if end < addr {
		return false
	}
	return end <= base+uintptr(len(r.data))
}

// Range returns the bytes [off, off+n) of the mapping.
func (r *Region) Range(off Offset, n uint64) ([]byte, error) {
	if r.Closed() {
		return nil, ErrClosed
	}
	b, ok := buf.Slice(r.data, uint64(off), n)
	if !ok {
		return nil, fmt.Errorf("region: range [%d,+%d) outside %d bytes: %w",
			off, n, len(r.data), format.ErrTruncated)
	}
	return b, nil
}

// LogRange returns the undo log region.
func (r *Region) LogRange() (Offset, uint64) {
	return Offset(r.hdr.LogOffset), r.hdr.LogSize
}

// HeapRange returns the heap region.
func (r *Region) HeapRange() (Offset, uint64) {
	return Offset(r.hdr.HeapOffset), r.hdr.HeapSize
}

// Sequences returns the live primary and secondary sequence numbers.
func (r *Region) Sequences() (primary, secondary uint32) {
	return format.ReadU32(r.data, format.PrimarySeqOffset),
		format.ReadU32(r.data, format.SecondarySeqOffset)
}

// RootObject returns the live root object offset and size.
func (r *Region) RootObject() (Offset, uint64) {
	return Offset(format.ReadU64(r.data, format.RootOffsetOffset)),
		format.ReadU64(r.data, format.RootSizeOffset)
}

// Seal recomputes the header checksum. Callers that modify header fields
// must call it before flushing the header page.
func (r *Region) Seal() {
	format.PutU32(r.data, format.ChecksumOffset, format.Checksum(r.data))
}
