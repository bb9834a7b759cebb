package pool

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/joshuapare/pmemkit/internal/format"
	"github.com/joshuapare/pmemkit/internal/mmfile"
)

// Info is a read-only summary of a pool file.
type Info struct {
	Path         string    `json:"path"`
	Layout       string    `json:"layout"`
	UUID         uuid.UUID `json:"uuid"`
	Version      string    `json:"version"`
	Size         uint64    `json:"size"`
	LogOffset    uint64    `json:"log_offset"`
	LogSize      uint64    `json:"log_size"`
	LogEntries   uint32    `json:"log_entries"`
	HeapOffset   uint64    `json:"heap_offset"`
	HeapSize     uint64    `json:"heap_size"`
	RootOffset   uint64    `json:"root_offset"`
	RootSize     uint64    `json:"root_size"`
	PrimarySeq   uint32    `json:"primary_seq"`
	SecondarySeq uint32    `json:"secondary_seq"`
	LastWrite    time.Time `json:"last_write"`
	Consistent   bool      `json:"consistent"`
}

// Inspect reads the header of the pool at path without opening it for
// writing and without running recovery.
func Inspect(path string) (Info, error) {
	m, err := mmfile.Map(path)
	if err != nil {
		return Info{}, err
	}
	defer m.Close()

	data := m.Bytes()
	h, err := format.ParseHeader(data)
	if err != nil {
		return Info{}, fmt.Errorf("%s: %w", path, err)
	}
	if err := h.ValidateGeometry(int64(len(data))); err != nil {
		return Info{}, fmt.Errorf("%s: %w", path, err)
	}
	entries := format.ReadU32(data, int(h.LogOffset)+format.LogCountOffset)

	return Info{
		Path:         path,
		Layout:       h.Layout,
		UUID:         uuid.UUID(h.UUID),
		Version:      fmt.Sprintf("%d.%d", h.MajorVersion, h.MinorVersion),
		Size:         h.PoolSize,
		LogOffset:    h.LogOffset,
		LogSize:      h.LogSize,
		LogEntries:   entries,
		HeapOffset:   h.HeapOffset,
		HeapSize:     h.HeapSize,
		RootOffset:   h.RootOffset,
		RootSize:     h.RootSize,
		PrimarySeq:   h.PrimarySequence,
		SecondarySeq: h.SecondarySequence,
		LastWrite:    time.Unix(0, int64(h.LastWriteNanos)).UTC(),
		Consistent:   h.Consistent() && entries == 0,
	}, nil
}
