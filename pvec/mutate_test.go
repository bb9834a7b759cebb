package pvec

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/pmemkit/pool"
)

func TestResize(t *testing.T) {
	e := newEnv(t)
	v := e.withValues(t, 1, 2, 3)

	require.NoError(t, v.Resize(e.ctx, e.reg, 5))
	requireValues(t, e, v, 1, 2, 3, 0, 0)
	capAfterGrow := v.Cap(e.reg)

	require.NoError(t, v.Resize(e.ctx, e.reg, 2))
	requireValues(t, e, v, 1, 2)
	require.Equal(t, capAfterGrow, v.Cap(e.reg), "shrinking keeps capacity")

	// Regrowing within capacity must not expose the old tail.
	require.NoError(t, v.ResizeFill(e.ctx, e.reg, 4, 9))
	requireValues(t, e, v, 1, 2, 9, 9)

	requireKind(t, v.Resize(e.ctx, e.reg, -1), ErrState)
}

func TestReserveAndShrinkToFit(t *testing.T) {
	e := newEnv(t)
	v := e.withValues(t, 1, 2)

	require.NoError(t, v.Reserve(e.ctx, e.reg, 100))
	require.Equal(t, 100, v.Cap(e.reg))
	require.NoError(t, v.Reserve(e.ctx, e.reg, 10))
	require.Equal(t, 100, v.Cap(e.reg), "reserve never shrinks")
	requireValues(t, e, v, 1, 2)

	require.NoError(t, v.ShrinkToFit(e.ctx, e.reg))
	require.Equal(t, 2, v.Cap(e.reg))
	requireValues(t, e, v, 1, 2)

	require.NoError(t, v.Clear(e.ctx, e.reg))
	require.NoError(t, v.ShrinkToFit(e.ctx, e.reg))
	require.Zero(t, v.Cap(e.reg))
	require.Zero(t, v.data)
}

func TestInsert(t *testing.T) {
	e := newEnv(t)
	v := e.withValues(t, 1, 5)
	require.NoError(t, v.Reserve(e.ctx, e.reg, 16))

	// In place.
	require.NoError(t, v.Insert(e.ctx, e.reg, 1, 2, 3, 4))
	requireValues(t, e, v, 1, 2, 3, 4, 5)
	require.Equal(t, 16, v.Cap(e.reg))

	require.NoError(t, v.Insert(e.ctx, e.reg, 0, 0))
	require.NoError(t, v.Insert(e.ctx, e.reg, v.Len(e.reg), 6))
	requireValues(t, e, v, 0, 1, 2, 3, 4, 5, 6)

	// With relocation.
	require.NoError(t, v.InsertN(e.ctx, e.reg, 3, 20, 7))
	require.Equal(t, 27, v.Len(e.reg))
	got, err := v.Values(e.reg)
	require.NoError(t, err)
	require.Equal(t, []int64{0, 1, 2}, got[:3])
	for _, x := range got[3:23] {
		require.Equal(t, int64(7), x)
	}
	require.Equal(t, []int64{3, 4, 5, 6}, got[23:])

	require.NoError(t, v.InsertSeq(e.ctx, e.reg, 1, seqOf[int64](-1, -2)))
	front, err := v.At(e.reg, 1)
	require.NoError(t, err)
	require.Equal(t, int64(-1), front)

	requireKind(t, v.Insert(e.ctx, e.reg, -1, 1), ErrState)
	err = v.Insert(e.ctx, e.reg, v.Len(e.reg)+1, 1)
	requireKind(t, err, ErrState)
	require.ErrorIs(t, err, ErrOutOfRange)
}

func TestErase(t *testing.T) {
	e := newEnv(t)
	v := e.withValues(t, 0, 1, 2, 3, 4, 5)
	capBefore := v.Cap(e.reg)

	require.NoError(t, v.Erase(e.ctx, e.reg, 0))
	requireValues(t, e, v, 1, 2, 3, 4, 5)

	require.NoError(t, v.EraseRange(e.ctx, e.reg, 1, 3))
	requireValues(t, e, v, 1, 4, 5)

	require.NoError(t, v.EraseRange(e.ctx, e.reg, 2, 3))
	requireValues(t, e, v, 1, 4)

	require.NoError(t, v.EraseRange(e.ctx, e.reg, 1, 1))
	requireValues(t, e, v, 1, 4)
	require.Equal(t, capBefore, v.Cap(e.reg))

	requireKind(t, v.Erase(e.ctx, e.reg, 2), ErrState)
	requireKind(t, v.EraseRange(e.ctx, e.reg, 1, 0), ErrState)
}

func TestPushPop(t *testing.T) {
	e := newEnv(t)
	v := e.newVec(t)

	for i := range 10 {
		require.NoError(t, v.PushBack(e.ctx, e.reg, int64(i)))
	}
	back, err := v.Back(e.reg)
	require.NoError(t, err)
	require.Equal(t, int64(9), back)

	for range 10 {
		require.NoError(t, v.PopBack(e.ctx, e.reg))
	}
	require.True(t, v.Empty(e.reg))

	err = v.PopBack(e.ctx, e.reg)
	requireKind(t, err, ErrState)
	require.ErrorIs(t, err, ErrEmpty)
}

func TestPopBack_EmptyOpensNoTransaction(t *testing.T) {
	e := newEnv(t)
	v := e.newVec(t)

	before, err := pool.Inspect(e.p.Path())
	require.NoError(t, err)
	require.Error(t, v.PopBack(e.ctx, e.reg))
	after, err := pool.Inspect(e.p.Path())
	require.NoError(t, err)
	require.Equal(t, before.PrimarySeq, after.PrimarySeq)
}

func TestSetAndAccessors(t *testing.T) {
	e := newEnv(t)
	v := e.withValues(t, 1, 2, 3)

	require.NoError(t, v.Set(e.ctx, e.reg, 1, 20))
	x, err := v.At(e.reg, 1)
	require.NoError(t, err)
	require.Equal(t, int64(20), x)

	front, err := v.Front(e.reg)
	require.NoError(t, err)
	require.Equal(t, int64(1), front)

	requireKind(t, v.Set(e.ctx, e.reg, 3, 0), ErrState)
	_, err = v.At(e.reg, 3)
	require.ErrorIs(t, err, ErrOutOfRange)
	_, err = v.At(e.reg, -1)
	requireKind(t, err, ErrState)

	all, err := v.All(e.reg)
	require.NoError(t, err)
	var seen []int64
	for i, x := range all {
		require.Equal(t, len(seen), i)
		seen = append(seen, x)
	}
	require.Equal(t, []int64{1, 20, 3}, seen)

	empty := e.newVec(t)
	_, err = empty.Front(e.reg)
	require.ErrorIs(t, err, ErrEmpty)
	_, err = empty.Back(e.reg)
	require.ErrorIs(t, err, ErrEmpty)

	// A volatile vector reads as empty; element access reports residency.
	var volatile Vector[int64]
	require.Zero(t, volatile.Len(nil))
	require.Zero(t, volatile.Cap(e.reg))
	_, err = volatile.Values(e.reg)
	requireKind(t, err, ErrResidency)
	_, err = volatile.All(e.reg)
	requireKind(t, err, ErrResidency)
}

func TestSwap(t *testing.T) {
	e := newEnv(t)
	a := e.withValues(t, 1, 2)
	b := e.withValues(t, 3)

	require.NoError(t, a.Swap(e.ctx, e.reg, b))
	requireValues(t, e, a, 3)
	requireValues(t, e, b, 1, 2)

	other := newPool(t, e.reg)
	c, _, err := Make[int64](e.ctx, e.reg, other)
	require.NoError(t, err)
	err = a.Swap(e.ctx, e.reg, c)
	require.ErrorIs(t, err, ErrCrossPool)
	requireValues(t, e, a, 3)
}

func TestFreeAndDestroy(t *testing.T) {
	e := newEnv(t)
	baseline := e.p.Stats()

	v := e.withValues(t, 1, 2, 3)
	require.NoError(t, v.Free(e.ctx, e.reg))
	require.Zero(t, v.Cap(e.reg))
	require.Zero(t, v.Len(e.reg))

	require.NoError(t, v.PushBack(e.ctx, e.reg, 4))
	requireValues(t, e, v, 4)
	require.NoError(t, v.Destroy(e.ctx, e.reg))
	require.Equal(t, baseline, e.p.Stats())
}
