package format

// AlignBlock returns n aligned up to the next 16-byte boundary.
//
// Example:
//
//	AlignBlock(1)  = 16
//	AlignBlock(16) = 16
//	AlignBlock(17) = 32
func AlignBlock(n uint64) uint64 {
	return (n + BlockAlignmentMask) &^ BlockAlignmentMask
}

// AlignPage returns n aligned up to the next 4KB boundary.
//
// Example:
//
//	AlignPage(1)    = 4096
//	AlignPage(4096) = 4096
//	AlignPage(4097) = 8192
func AlignPage(n uint64) uint64 {
	return (n + PageAlignmentMask) &^ PageAlignmentMask
}

// Align8 returns n aligned up to the next 8-byte boundary. Log entry payloads
// are padded to this.
func Align8(n int) int {
	return (n + 7) &^ 7
}
