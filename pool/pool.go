package pool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joshuapare/pmemkit/internal/format"
	"github.com/joshuapare/pmemkit/pkg/log"
	"github.com/joshuapare/pmemkit/pool/alloc"
	"github.com/joshuapare/pmemkit/pool/region"
	"github.com/joshuapare/pmemkit/pool/tx"
)

// Offset is a persistent reference: a byte offset from the start of the
// pool file. Zero means none.
type Offset = region.Offset

// Pool is an open persistent memory pool.
type Pool struct {
	r      *region.Region
	m      *tx.Manager
	reg    *Registry
	logger log.Logger
	id     uuid.UUID
	locks  *stripes

	// pins counts operations in flight. Close waits for it to drop to zero.
	mu     sync.Mutex
	idle   *sync.Cond
	pins   int
	closed bool
}

// Create formats a new pool file at path. It fails with ErrExists if the
// file is already there.
func Create(path string, opts Options) (*Pool, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()

	id, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("pool: generate uuid: %w", err)
	}
	r, err := region.Create(path, region.CreateParams{
		Size:    opts.Size,
		LogSize: opts.LogSize,
		Layout:  opts.Layout,
		Perm:    opts.Perm,
		UUID:    id,
		Now:     uint64(time.Now().UnixNano()),
	})
	if err != nil {
		return nil, err
	}
	p, err := attach(context.Background(), r, opts)
	if err != nil {
		return nil, err
	}
	p.logger.Info("pool created",
		log.String("path", path),
		log.String("layout", p.Layout()),
		log.Uint64("size", uint64(r.Size())),
	)
	return p, nil
}

// Open maps an existing pool, recovering an interrupted transaction if the
// previous process crashed inside one.
func Open(path string, opts Options) (*Pool, error) {
	return OpenContext(context.Background(), path, opts)
}

// OpenContext is Open with a context bounding recovery. A cancelled recovery
// leaves the pool file as it was, ready for the next open to retry.
func OpenContext(ctx context.Context, path string, opts Options) (*Pool, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()

	r, err := region.Open(path, region.OpenOptions{PreFault: opts.PreFault})
	if err != nil {
		return nil, err
	}
	if opts.Layout != "" {
		want, _ := format.NormalizeLayout(opts.Layout)
		if got := r.Header().Layout; got != want {
			_ = r.Close()
			return nil, fmt.Errorf("pool %s: layout %q, want %q: %w", path, got, want, ErrLayoutMismatch)
		}
	}
	p, err := attach(ctx, r, opts)
	if err != nil {
		return nil, err
	}
	p.logger.Info("pool opened",
		log.String("path", path),
		log.String("layout", p.Layout()),
	)
	return p, nil
}

func attach(ctx context.Context, r *region.Region, opts Options) (*Pool, error) {
	locks := new(stripes)
	m, err := tx.NewManager(ctx, r, tx.Options{
		Mode:    opts.FlushMode,
		Logger:  opts.Logger,
		Metrics: opts.Metrics,
		Fence:   locks,
	})
	if err != nil {
		_ = r.Close()
		return nil, err
	}
	reg := opts.Registry
	if reg == nil {
		reg = NewRegistry()
	}
	p := &Pool{
		r:      r,
		m:      m,
		reg:    reg,
		logger: log.OrNoop(opts.Logger),
		id:     uuid.UUID(r.Header().UUID),
		locks:  locks,
	}
	p.idle = sync.NewCond(&p.mu)
	reg.register(p)
	return p, nil
}

// Close unregisters and unmaps the pool. Operations started afterwards fail
// with ErrClosed; Close waits for those in flight and for the active
// transaction. Closing twice is a no-op.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.reg.unregister(p)
	for p.pins > 0 {
		p.idle.Wait()
	}
	p.mu.Unlock()

	release := p.m.Wait()
	defer release()
	err := p.r.Close()
	p.logger.Info("pool closed", log.String("path", p.r.Path()))
	return err
}

// Acquire pins the pool open for the duration of an operation. It never
// blocks: once Close has started it fails with ErrClosed.
func (p *Pool) Acquire() (release func(), err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrClosed
	}
	p.pins++
	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			p.pins--
			if p.pins == 0 {
				p.idle.Broadcast()
			}
			p.mu.Unlock()
		})
	}, nil
}

// Begin starts a transaction, or joins the one ctx carries for this pool.
func (p *Pool) Begin(ctx context.Context) (*tx.Tx, error) {
	if p.r.Closed() {
		return nil, ErrClosed
	}
	return p.m.Begin(ctx)
}

// Root returns the root object, allocating size zeroed bytes on first use.
// An existing root smaller than size is an error.
func (p *Pool) Root(ctx context.Context, size uint64) (Offset, error) {
	release, err := p.Acquire()
	if err != nil {
		return 0, err
	}
	defer release()

	t, err := p.m.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer t.End()

	off, have := p.r.RootObject()
	if off != 0 {
		if have < size {
			return 0, fmt.Errorf("root holds %d bytes, want %d: %w", have, size, ErrRootSize)
		}
		return off, t.Commit()
	}

	off, err = t.Alloc(size)
	if err != nil {
		return 0, err
	}
	if err := t.Snapshot(format.RootOffsetOffset, 16); err != nil {
		return 0, err
	}
	data := p.r.Bytes()
	format.PutU64(data, format.RootOffsetOffset, uint64(off))
	format.PutU64(data, format.RootSizeOffset, size)
	p.r.Seal()
	if err := t.Commit(); err != nil {
		return 0, err
	}
	p.logger.Debug("root object allocated",
		log.Uint64("offset", uint64(off)), log.Uint64("size", size))
	return off, nil
}

// RootOffset returns the root object, or 0 if none was allocated.
func (p *Pool) RootOffset() Offset {
	off, _ := p.r.RootObject()
	return off
}

// Stats returns heap occupancy as of the last finished transaction.
func (p *Pool) Stats() alloc.Stats { return p.m.Stats() }

// UUID returns the identifier generated when the pool was created.
func (p *Pool) UUID() uuid.UUID { return p.id }

// Layout returns the pool's layout name.
func (p *Pool) Layout() string { return p.r.Header().Layout }

// Path returns the pool file path.
func (p *Pool) Path() string { return p.r.Path() }

// Registry returns the registry the pool is recorded in.
func (p *Pool) Registry() *Registry { return p.reg }

// IsClosed reports whether Close was called.
func (p *Pool) IsClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}
