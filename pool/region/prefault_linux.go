//go:build linux

package region

import (
	"errors"
	"fmt"
	"runtime/debug"

	"golang.org/x/sys/unix"
)

// PreFaultPages touches every page of data so inaccessible media surfaces as
// an error now rather than as SIGBUS in the middle of a transaction.
//
// MADV_POPULATE_WRITE (Linux 5.14+) is tried first because it reports EFAULT
// instead of faulting. Older kernels fall back to a manual read-through with
// SetPanicOnFault.
func PreFaultPages(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	err := unix.Madvise(data, unix.MADV_POPULATE_WRITE)
	if err == nil {
		return nil
	}
	if !errors.Is(err, unix.EINVAL) && !errors.Is(err, unix.ENOSYS) {
		return fmt.Errorf("madvise populate failed: %w", err)
	}
	return manualPreFault(data)
}

func manualPreFault(data []byte) (retErr error) {
	old := debug.SetPanicOnFault(true)
	defer debug.SetPanicOnFault(old)

	defer func() {
		if r := recover(); r != nil {
			if err, ok := r.(error); ok {
				retErr = fmt.Errorf("memory access fault during pre-fault: %w", err)
			} else {
				retErr = fmt.Errorf("memory access fault during pre-fault: %v", r)
			}
		}
	}()

	const pageSize = 4096
	var sink byte
	for i := 0; i < len(data); i += pageSize {
		sink ^= data[i]
	}
	sink ^= data[len(data)-1]
	_ = sink
	return nil
}
