package tx

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/joshuapare/pmemkit/internal/format"
	"github.com/joshuapare/pmemkit/internal/metrics"
	"github.com/joshuapare/pmemkit/pkg/log"
	"github.com/joshuapare/pmemkit/pool/alloc"
	"github.com/joshuapare/pmemkit/pool/dirty"
	"github.com/joshuapare/pmemkit/pool/region"
)

// Options configures a Manager.
type Options struct {
	// Mode controls how hard commits sync. Defaults to dirty.FlushAuto.
	Mode dirty.FlushMode

	// Logger receives recovery and abort events. Nil discards them.
	Logger log.Logger

	// Metrics receives commit and abort counts. Nil disables them.
	Metrics *metrics.Collector

	// Fence excludes readers from the objects a rollback rewrites. Nil
	// leaves rollbacks unfenced.
	Fence Fence
}

// Fence locks objects against readers.
type Fence interface {
	// Exclude takes the exclusive locks of objects, skipping those covered
	// by held, and returns a func that drops them again.
	Exclude(objects, held []uintptr) (release func())
}

// Manager serialises transactions on one pool region.
//
// At most one root transaction is active at a time; Begin blocks until the
// previous one ends. Manager is safe for concurrent use.
type Manager struct {
	r       *region.Region
	dt      *dirty.Tracker
	ulog    *undoLog
	a       *alloc.Allocator
	mode    dirty.FlushMode
	logger  log.Logger
	metrics *metrics.Collector
	fence   Fence
	layout  string

	mu     sync.Mutex // held by the active root transaction
	active *state

	statsMu sync.Mutex
	stats   alloc.Stats // as of the last commit or abort
}

// NewManager recovers any interrupted transaction on r and builds the heap
// allocator. ctx bounds recovery; a recovery stopped early leaves the undo log
// in place for the next attempt.
func NewManager(ctx context.Context, r *region.Region, opts Options) (*Manager, error) {
	m := &Manager{
		r:       r,
		dt:      dirty.NewTracker(r),
		mode:    opts.Mode,
		logger:  log.OrNoop(opts.Logger),
		metrics: opts.Metrics,
		fence:   opts.Fence,
		layout:  r.Header().Layout,
	}
	m.ulog = newUndoLog(r, m.dt)

	if err := m.recover(ctx); err != nil {
		return nil, err
	}

	a, err := alloc.New(r, journal{m})
	if err != nil {
		return nil, fmt.Errorf("build allocator: %w", err)
	}
	m.a = a
	m.publishStats()
	return m, nil
}

// recover rolls back an interrupted transaction, if any.
func (m *Manager) recover(ctx context.Context) error {
	primary, secondary := m.r.Sequences()
	pending := m.ulog.count()
	if primary == secondary && pending == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("recover: %w", err)
	}

	n, err := m.ulog.rollback()
	if err != nil {
		return fmt.Errorf("recover: %w", err)
	}
	if err := m.dt.FlushDataOnly(ctx); err != nil {
		return fmt.Errorf("recover: flush restored data: %w", err)
	}
	if err := m.ulog.clear(); err != nil {
		return fmt.Errorf("recover: clear undo log: %w", err)
	}
	data := m.r.Bytes()
	format.PutU32(data, format.SecondarySeqOffset, primary)
	m.r.Seal()
	if err := m.dt.FlushHeaderAndMeta(m.mode); err != nil {
		return fmt.Errorf("recover: flush header: %w", err)
	}

	m.logger.Info("recovered interrupted transaction",
		log.String("path", m.r.Path()),
		log.Int("entries", n),
		log.Uint64("primary", uint64(primary)),
		log.Uint64("secondary", uint64(secondary)),
	)
	m.metrics.Recovered(m.layout)
	return nil
}

// Begin starts a transaction. When ctx already carries an active transaction
// of this manager, the returned handle is nested inside it. A root handle
// holds the transaction lock from here on but writes nothing to the pool
// before its first Snapshot, Add, Alloc or Free.
func (m *Manager) Begin(ctx context.Context) (*Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if outer, ok := m.FromContext(ctx); ok {
		if outer.st.aborted {
			return nil, ErrAborted
		}
		if !outer.st.finished {
			return &Tx{m: m, st: outer.st, nested: true}, nil
		}
	}

	m.mu.Lock()
	if m.r.Bytes() == nil {
		m.mu.Unlock()
		return nil, region.ErrClosed
	}
	st := &state{}
	m.active = st
	return &Tx{m: m, st: st, locked: true}, nil
}

// start opens the transaction on disk before its first write. Until then
// the handle holds only the lock, and ending it leaves no trace.
func (t *Tx) start() {
	st := t.st
	t.wrote = true
	if st.started {
		return
	}
	primary, _ := t.m.r.Sequences()
	st.prevSeq, st.seq, st.started = primary, primary+1, true
	format.PutU32(t.m.r.Bytes(), format.PrimarySeqOffset, st.seq)
	t.m.r.Seal()
	t.m.dt.Add(0, format.HeaderSize)
}

// Stats returns heap occupancy as of the last finished transaction.
func (m *Manager) Stats() alloc.Stats {
	m.statsMu.Lock()
	defer m.statsMu.Unlock()
	return m.stats
}

// Region returns the managed region.
func (m *Manager) Region() *region.Region { return m.r }

// Wait blocks until no transaction is active and keeps new ones from
// starting until the returned release func is called.
func (m *Manager) Wait() (release func()) {
	m.mu.Lock()
	return m.mu.Unlock
}

func (m *Manager) publishStats() {
	s := m.a.Stats()
	m.statsMu.Lock()
	m.stats = s
	m.statsMu.Unlock()
	m.metrics.HeapUsage(m.layout, s.UsedBytes, s.HeapSize)
}

type span struct {
	off, end uint64
}

func (s span) contains(off, end uint64) bool {
	return off >= s.off && end <= s.end
}

// state is shared by a root transaction and every handle nested inside it.
type state struct {
	prevSeq  uint32
	seq      uint32
	covered  []span // ranges already snapshotted
	fresh    []span // payloads allocated by this transaction
	frees    []region.Offset
	touched  []uintptr // objects written, fenced on rollback
	held     []uintptr // objects whose locks the running call holds
	started  bool
	aborted  bool
	finished bool
}

func (st *state) isCovered(off, end uint64) bool {
	for _, s := range st.fresh {
		if s.contains(off, end) {
			return true
		}
	}
	for _, s := range st.covered {
		if s.contains(off, end) {
			return true
		}
	}
	return false
}

// Tx is a handle on an active transaction.
type Tx struct {
	m      *Manager
	st     *state
	nested bool
	done   bool
	wrote  bool
	locked bool // root handle holding the transaction lock
}

func (t *Tx) check() error {
	switch {
	case t.st.aborted:
		return ErrAborted
	case t.done || t.st.finished:
		return ErrNotActive
	}
	return nil
}

// Nested reports whether t joined an enclosing transaction.
func (t *Tx) Nested() bool { return t.nested }

// Region returns the region the transaction writes to.
func (t *Tx) Region() *region.Region { return t.m.r }

// Guard records that the caller holds the exclusive locks of objects and is
// going to write them. A rollback fences every object guarded during the
// transaction, except those whose locks are still held, so readers never see
// a half-restored object. Call drop before releasing the locks.
func (t *Tx) Guard(objects ...uintptr) (drop func()) {
	st := t.st
	for _, obj := range objects {
		if !slices.Contains(st.touched, obj) {
			st.touched = append(st.touched, obj)
		}
	}
	mark := len(st.held)
	st.held = append(st.held, objects...)
	return func() {
		st.held = st.held[:mark]
	}
}

// Snapshot preserves [off, off+n) in the undo log. Ranges inside blocks
// allocated by this transaction, and ranges already preserved, are skipped.
func (t *Tx) Snapshot(off region.Offset, n uint64) error {
	if err := t.check(); err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	start := uint64(off)
	end := start + n
	if end < start || !t.m.ulog.validTarget(start, n) {
		return fmt.Errorf("snapshot [%d,+%d): %w", off, n, ErrOutOfRange)
	}
	t.start()
	if t.st.isCovered(start, end) {
		t.m.dt.Add(int(start), int(n))
		return nil
	}
	if err := t.m.ulog.append(start, n); err != nil {
		return err
	}
	t.st.covered = append(t.st.covered, span{off: start, end: end})
	t.m.dt.Add(int(start), int(n))
	return nil
}

// Add marks [off, off+n) as written without preserving it. Use it for bytes
// that need no rollback, such as a fresh allocation's payload.
func (t *Tx) Add(off region.Offset, n uint64) {
	t.start()
	t.m.dt.Add(int(off), int(n))
}

// Alloc reserves a zeroed block of at least size bytes.
func (t *Tx) Alloc(size uint64) (region.Offset, error) {
	if err := t.check(); err != nil {
		return 0, err
	}
	t.start()
	off, err := t.m.a.Alloc(size)
	if err != nil {
		if errors.Is(err, alloc.ErrNoSpace) {
			t.m.metrics.AllocFailed(t.m.layout)
		}
		return 0, err
	}
	usable, err := t.m.a.Usable(off)
	if err != nil {
		return 0, err
	}
	t.st.fresh = append(t.st.fresh, span{off: uint64(off), end: uint64(off) + usable})
	return off, nil
}

// Free releases the block at off when the transaction commits.
func (t *Tx) Free(off region.Offset) error {
	if err := t.check(); err != nil {
		return err
	}
	if off == 0 {
		return nil
	}
	if _, err := t.m.a.Usable(off); err != nil {
		return err
	}
	t.start()
	t.st.frees = append(t.st.frees, off)
	return nil
}

// Usable returns the payload capacity of an allocated block.
func (t *Tx) Usable(off region.Offset) (uint64, error) {
	return t.m.a.Usable(off)
}

// Commit makes the transaction durable and releases the transaction lock. On
// a nested handle it only marks the handle done.
func (t *Tx) Commit() error {
	if err := t.check(); err != nil {
		return err
	}
	t.done = true
	if t.nested {
		return nil
	}

	m := t.m
	defer t.unlock()
	start := time.Now()

	if !t.st.started {
		t.st.finished = true
		return nil
	}
	for _, off := range t.st.frees {
		if err := m.a.Free(off); err != nil {
			_ = m.rollback(t.st)
			return fmt.Errorf("commit: free %d: %w", off, err)
		}
	}
	// Commits run to completion once started.
	if err := m.dt.FlushDataOnly(context.Background()); err != nil {
		_ = m.rollback(t.st)
		return fmt.Errorf("commit: flush data: %w", err)
	}
	if err := m.ulog.clear(); err != nil {
		_ = m.rollback(t.st)
		return fmt.Errorf("commit: clear undo log: %w", err)
	}

	// The log is empty: the transaction is committed from here on.
	data := m.r.Bytes()
	format.PutU32(data, format.SecondarySeqOffset, t.st.seq)
	format.PutU64(data, format.TimeStampOffset, uint64(time.Now().UnixNano()))
	m.r.Seal()
	m.dt.Add(0, format.HeaderSize)
	err := m.dt.FlushHeaderAndMeta(m.mode)

	m.finish(t.st)
	m.metrics.TxCommitted(m.layout, time.Since(start))
	if err != nil {
		return fmt.Errorf("commit: flush header: %w", err)
	}
	return nil
}

// Abort rolls the transaction back. On a nested handle it aborts the
// outermost transaction; the lock stays with the root handle until its End.
func (t *Tx) Abort() error {
	if t.st.aborted || t.st.finished {
		t.done = true
		if !t.nested {
			t.unlock()
		}
		return nil
	}
	t.done = true
	err := t.m.rollback(t.st)
	if !t.nested {
		t.unlock()
	}
	return err
}

// Discard ends a handle that has not written. Unlike Abort it leaves an
// enclosing transaction usable, and a root handle that never wrote ends
// without touching the pool. A handle that did write is aborted.
func (t *Tx) Discard() {
	if t.done {
		return
	}
	if t.wrote || (!t.nested && t.st.started) {
		_ = t.Abort()
		return
	}
	t.done = true
	if !t.nested {
		t.st.finished = true
		t.unlock()
	}
}

// End aborts the transaction unless it committed, and releases the
// transaction lock if a root handle still holds it. Defer it right after
// Begin.
func (t *Tx) End() {
	if !t.done {
		_ = t.Abort()
	}
	if !t.nested {
		t.unlock()
	}
}

// unlock drops the transaction lock if this root handle still holds it.
func (t *Tx) unlock() {
	if !t.locked {
		return
	}
	t.locked = false
	t.m.active = nil
	t.m.mu.Unlock()
}

// rollback undoes everything st wrote. The lock stays held.
func (m *Manager) rollback(st *state) error {
	if st.finished {
		return nil
	}
	if !st.started {
		st.aborted, st.finished = true, true
		return nil
	}
	if m.fence != nil {
		defer m.fence.Exclude(st.touched, st.held)()
	}
	n, err := m.ulog.rollback()
	if err == nil {
		err = m.dt.FlushDataOnly(context.Background())
	}
	if err == nil {
		err = m.ulog.clear()
	}

	data := m.r.Bytes()
	format.PutU32(data, format.PrimarySeqOffset, st.prevSeq)
	format.PutU32(data, format.SecondarySeqOffset, st.prevSeq)
	m.r.Seal()
	m.dt.Add(0, format.HeaderSize)
	if herr := m.dt.FlushHeaderAndMeta(m.mode); err == nil {
		err = herr
	}
	if rerr := m.a.Rebuild(); err == nil {
		err = rerr
	}

	st.aborted = true
	m.finish(st)
	m.metrics.TxAborted(m.layout)
	if err != nil {
		m.logger.Error("transaction rollback incomplete",
			log.String("path", m.r.Path()), log.Int("entries", n), log.Err(err))
		return err
	}
	m.logger.Debug("transaction rolled back",
		log.String("path", m.r.Path()), log.Int("entries", n))
	return nil
}

func (m *Manager) finish(st *state) {
	st.finished = true
	st.covered = nil
	st.fresh = nil
	st.frees = nil
	st.touched = nil
	m.dt.Reset()
	m.publishStats()
}

// journal routes allocator header writes through the active transaction.
type journal struct{ m *Manager }

func (j journal) Snapshot(off, n uint64) error {
	st := j.m.active
	if st == nil {
		return ErrNotActive
	}
	t := Tx{m: j.m, st: st}
	return t.Snapshot(region.Offset(off), n)
}

func (j journal) Add(off, length int) {
	j.m.dt.Add(off, length)
}
