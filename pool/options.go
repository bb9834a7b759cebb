package pool

import (
	"fmt"
	"os"

	"github.com/joshuapare/pmemkit/internal/format"
	"github.com/joshuapare/pmemkit/internal/metrics"
	"github.com/joshuapare/pmemkit/pkg/log"
	"github.com/joshuapare/pmemkit/pool/dirty"
)

// Options configures Create and Open.
type Options struct {
	// Layout names the data structure stored in the pool. Create stores it;
	// Open rejects pools created with a different name. Empty on Open skips
	// the check.
	Layout string

	// Size is the total pool file size for Create. Rounded down to pages.
	Size uint64

	// LogSize is the undo log size for Create. Rounded up to pages.
	LogSize uint64

	// Perm is the file mode for Create.
	Perm os.FileMode

	// FlushMode controls commit durability.
	FlushMode dirty.FlushMode

	// PreFault touches every page at open so unreadable media fails early.
	PreFault bool

	// Registry records the pool's address range. Nil gives the pool a
	// private registry, reachable through (*Pool).Registry.
	Registry *Registry

	// Logger receives lifecycle events. Nil discards them.
	Logger log.Logger

	// Metrics receives transaction and heap metrics. Nil disables them.
	Metrics *metrics.Collector
}

// DefaultOptions returns options suitable for most callers.
func DefaultOptions() Options {
	return Options{
		Size:      format.DefaultPoolSize,
		LogSize:   format.DefaultLogSize,
		Perm:      0o644,
		FlushMode: dirty.FlushAuto,
	}
}

// withDefaults fills zero fields from DefaultOptions.
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Size == 0 {
		o.Size = d.Size
	}
	if o.LogSize == 0 {
		o.LogSize = d.LogSize
	}
	if o.Perm == 0 {
		o.Perm = d.Perm
	}
	return o
}

func (o Options) validate() error {
	if o.FlushMode < dirty.FlushAuto || o.FlushMode > dirty.FlushFull {
		return fmt.Errorf("flush mode %d: %w", o.FlushMode, ErrInvalidOptions)
	}
	if _, err := format.NormalizeLayout(o.Layout); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}
	if o.Size != 0 && o.Size < format.MinPoolSize {
		return fmt.Errorf("size %d below minimum %d: %w", o.Size, format.MinPoolSize, ErrInvalidOptions)
	}
	return nil
}
