// Package dirty tracks which byte ranges of a mapped pool were written during
// a transaction and flushes them to stable storage.
//
// Ranges are recorded cheaply with Add and coalesced into page-aligned,
// non-overlapping ranges at flush time. The header page is flushed on its
// own, after the data pages, because it carries the commit marker.
//
//	dt := dirty.NewTracker(r)
//	dt.Add(off, n)                        // after writing r.Bytes()[off:off+n]
//	_ = dt.FlushDataOnly(ctx)             // msync data pages
//	_ = dt.FlushHeaderAndMeta(dirty.FlushAuto)
//
// FlushRange is the synchronous variant used by the undo log: a log entry
// must be durable before the write it protects happens.
//
// Trackers are not safe for concurrent use; the transaction manager owns one
// per pool and serialises access.
package dirty
