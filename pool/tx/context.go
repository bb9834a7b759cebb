package tx

import "context"

// ctxKey is unique per manager so transactions on different pools can be
// carried by the same context.
type ctxKey struct{ m *Manager }

// NewContext returns a copy of ctx carrying t. Begin on t's manager with the
// returned context joins t instead of starting a new transaction.
func NewContext(ctx context.Context, t *Tx) context.Context {
	return context.WithValue(ctx, ctxKey{t.m}, t)
}

// FromContext returns the transaction ctx carries for this manager.
func (m *Manager) FromContext(ctx context.Context) (*Tx, bool) {
	t, ok := ctx.Value(ctxKey{m}).(*Tx)
	return t, ok
}
