package format

import "errors"

var (
	// ErrSignatureMismatch indicates the file does not start with PoolSignature.
	ErrSignatureMismatch = errors.New("format: signature mismatch")
	// ErrTruncated indicates the buffer lacked the bytes required for a structure.
	ErrTruncated = errors.New("format: truncated buffer")
	// ErrChecksum indicates the header checksum does not match its contents.
	ErrChecksum = errors.New("format: header checksum mismatch")
	// ErrVersion indicates a layout revision this build cannot read.
	ErrVersion = errors.New("format: unsupported version")
	// ErrGeometry indicates region offsets and sizes that do not fit the file.
	ErrGeometry = errors.New("format: inconsistent region geometry")
	// ErrLayoutTooLong indicates a layout name longer than LayoutSize-1 bytes.
	ErrLayoutTooLong = errors.New("format: layout name too long")
)
