// Package region maps a pmemkit pool file into memory.
//
// A Region is the lowest layer of a pool: the mapped bytes, the parsed header
// and the file descriptor used for durability syscalls. It does not allocate
// or log; see pool/alloc and pool/tx for that.
//
// # File Structure
//
//	[Header - 4KB] [Undo log - LogSize] [Heap - rest of file]
//
// # Opening a Region
//
//	r, err := region.Open("/mnt/pmem/app.pool", region.OpenOptions{})
//	if err != nil {
//	    return err
//	}
//	defer r.Close()
//
// On Unix the file is mapped MAP_SHARED read-write. On other platforms the
// file is read into memory and written back by Sync and Close.
//
// Regions never change size once created, so the mapped address range stays
// fixed for the lifetime of the Region. Residency checks rely on this.
package region
