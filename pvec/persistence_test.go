package pvec

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/pmemkit/pool"
)

func TestRootVector_SurvivesReopen(t *testing.T) {
	e := newEnv(t)
	path := filepath.Join(t.TempDir(), "root.pool")
	opts := pool.Options{Layout: "vector", Size: 1 << 20, LogSize: 16 << 10, Registry: e.reg}

	p, err := pool.Create(path, opts)
	require.NoError(t, err)
	v, err := Root[int64](e.ctx, e.reg, p)
	require.NoError(t, err)
	off := p.RootOffset()
	require.NoError(t, v.InitValues(e.ctx, e.reg, 1, 2, 3))
	for i := range 20 {
		require.NoError(t, v.PushBack(e.ctx, e.reg, int64(i)))
	}
	require.NoError(t, v.EraseRange(e.ctx, e.reg, 0, 3))
	want, err := v.Values(e.reg)
	require.NoError(t, err)
	require.NoError(t, p.Close())

	// The old mapping is gone.
	requireKind(t, v.PushBack(e.ctx, e.reg, 0), ErrResidency)

	p, err = pool.Open(path, opts)
	require.NoError(t, err)
	defer p.Close()
	v, err = Root[int64](e.ctx, e.reg, p)
	require.NoError(t, err)
	require.Equal(t, off, p.RootOffset())
	got, err := v.Values(e.reg)
	require.NoError(t, err)
	require.Equal(t, want, got)

	info, err := pool.Inspect(path)
	require.NoError(t, err)
	require.True(t, info.Consistent)
}

func TestOpen_LayoutMismatch(t *testing.T) {
	e := newEnv(t)
	path := e.p.Path()
	require.NoError(t, e.p.Close())

	_, err := pool.Open(path, pool.Options{Layout: "something-else", Registry: e.reg})
	require.ErrorIs(t, err, pool.ErrLayoutMismatch)
}

func TestRoot_Errors(t *testing.T) {
	e := newEnv(t)

	_, err := Root[int64](e.ctx, pool.NewRegistry(), e.p)
	requireKind(t, err, ErrResidency)

	_, err = Root[int64](e.ctx, e.reg, e.p)
	require.NoError(t, err)
	_, err = Root[[64]int64](e.ctx, e.reg, e.p)
	require.NoError(t, err, "header size does not depend on T")

	require.NoError(t, e.p.Close())
	_, err = Root[int64](e.ctx, e.reg, e.p)
	requireKind(t, err, ErrResidency)
}
