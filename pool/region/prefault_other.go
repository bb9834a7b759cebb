//go:build !linux

package region

// PreFaultPages is a no-op outside Linux.
func PreFaultPages([]byte) error { return nil }
