package pvec

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/joshuapare/pmemkit/pool"
)

func TestConstructors_OutsidePoolFailWithResidency(t *testing.T) {
	e := newEnv(t)
	src := e.withValues(t, 1, 2, 3)
	baseline := e.p.Stats()

	ctors := map[string]func(v *Vector[int64]) error{
		"default":  func(v *Vector[int64]) error { return v.Init(e.ctx, e.reg) },
		"size":     func(v *Vector[int64]) error { return v.InitSize(e.ctx, e.reg, 100) },
		"fill":     func(v *Vector[int64]) error { return v.InitFill(e.ctx, e.reg, 100, 5) },
		"seq":      func(v *Vector[int64]) error { return v.InitSeq(e.ctx, e.reg, seqOf[int64](0, 1, 2, 3, 4, 5)) },
		"copy":     func(v *Vector[int64]) error { return v.InitCopy(e.ctx, e.reg, src) },
		"move":     func(v *Vector[int64]) error { return v.InitMove(e.ctx, e.reg, src) },
		"values":   func(v *Vector[int64]) error { return v.InitValues(e.ctx, e.reg, 1, 2, 3) },
		"bad seq":  func(v *Vector[int64]) error { return v.InitSeq(e.ctx, e.reg, failingSeq(2)) },
		"nil reg":  func(v *Vector[int64]) error { return v.Init(e.ctx, nil) },
		"nil seq":  func(v *Vector[int64]) error { return v.InitSeq(e.ctx, e.reg, nil) },
		"negative": func(v *Vector[int64]) error { return v.InitSize(e.ctx, e.reg, -1) },
	}
	for name, ctor := range ctors {
		t.Run(name, func(t *testing.T) {
			var volatile Vector[int64]
			requireKind(t, ctor(&volatile), ErrResidency)
			require.Equal(t, make([]byte, len(header(&volatile))), header(&volatile))
			require.Equal(t, baseline, e.p.Stats(), "no persistent allocation retained")
		})
	}
	requireValues(t, e, src, 1, 2, 3)
}

func TestConstructors_InRegistryWithoutThePool(t *testing.T) {
	e := newEnv(t)
	v := e.newVec(t)

	other := pool.NewRegistry()
	requireKind(t, v.InitValues(e.ctx, other, 1), ErrResidency)
	_, _, err := Make[int64](e.ctx, other, e.p)
	requireKind(t, err, ErrResidency)
}

// A valid pool-resident container copied into a volatile instance: the copy
// fails, the original stays valid and can be destroyed.
func TestCopyIntoVolatile(t *testing.T) {
	e := newEnv(t)
	baseline := e.p.Stats()

	v := e.newVec(t)
	require.NoError(t, v.Init(e.ctx, e.reg))

	var volatile Vector[int64]
	requireKind(t, volatile.InitCopy(e.ctx, e.reg, v), ErrResidency)

	require.True(t, v.Empty(e.reg))
	require.NoError(t, v.PushBack(e.ctx, e.reg, 7))
	require.NoError(t, v.Destroy(e.ctx, e.reg))
	require.Equal(t, baseline, e.p.Stats())
}

// Move into a volatile instance: rejected before the source is touched.
func TestMoveIntoVolatile(t *testing.T) {
	e := newEnv(t)
	baseline := e.p.Stats()

	v := e.newVec(t)
	require.NoError(t, v.Init(e.ctx, e.reg))
	before := capture(t, e, v)

	var volatile Vector[int64]
	requireKind(t, volatile.InitMove(e.ctx, e.reg, v), ErrResidency)
	requireUnchanged(t, before, e, v)

	require.NoError(t, v.Destroy(e.ctx, e.reg))
	require.Equal(t, baseline, e.p.Stats())
}

func TestMutators_OutsidePoolFailWithResidency(t *testing.T) {
	e := newEnv(t)
	baseline := e.p.Stats()
	other := e.withValues(t, 1)
	withOther := e.p.Stats()

	muts := map[string]func(v *Vector[int64]) error{
		"Resize":      func(v *Vector[int64]) error { return v.Resize(e.ctx, e.reg, 10) },
		"ResizeFill":  func(v *Vector[int64]) error { return v.ResizeFill(e.ctx, e.reg, 10, 3) },
		"Reserve":     func(v *Vector[int64]) error { return v.Reserve(e.ctx, e.reg, 10) },
		"ShrinkToFit": func(v *Vector[int64]) error { return v.ShrinkToFit(e.ctx, e.reg) },
		"Insert":      func(v *Vector[int64]) error { return v.Insert(e.ctx, e.reg, 0, 1, 2) },
		"InsertN":     func(v *Vector[int64]) error { return v.InsertN(e.ctx, e.reg, 0, 4, 2) },
		"InsertSeq":   func(v *Vector[int64]) error { return v.InsertSeq(e.ctx, e.reg, 0, seqOf[int64](1)) },
		"Erase":       func(v *Vector[int64]) error { return v.Erase(e.ctx, e.reg, 0) },
		"EraseRange":  func(v *Vector[int64]) error { return v.EraseRange(e.ctx, e.reg, 0, 0) },
		"PushBack":    func(v *Vector[int64]) error { return v.PushBack(e.ctx, e.reg, 1) },
		"PopBack":     func(v *Vector[int64]) error { return v.PopBack(e.ctx, e.reg) },
		"Clear":       func(v *Vector[int64]) error { return v.Clear(e.ctx, e.reg) },
		"Set":         func(v *Vector[int64]) error { return v.Set(e.ctx, e.reg, 0, 1) },
		"Swap":        func(v *Vector[int64]) error { return v.Swap(e.ctx, e.reg, other) },
		"Free":        func(v *Vector[int64]) error { return v.Free(e.ctx, e.reg) },
		"Destroy":     func(v *Vector[int64]) error { return v.Destroy(e.ctx, e.reg) },
	}
	for name, mut := range muts {
		t.Run(name, func(t *testing.T) {
			var volatile Vector[int64]
			requireKind(t, mut(&volatile), ErrResidency)
			require.Equal(t, withOther, e.p.Stats())
		})
	}
	requireValues(t, e, other, 1)
	require.NoError(t, other.Destroy(e.ctx, e.reg))
	require.Equal(t, baseline, e.p.Stats())
}

func TestResidency_ClosedPool(t *testing.T) {
	e := newEnv(t)
	v := e.withValues(t, 1, 2)
	require.NoError(t, e.p.Close())

	// v's memory is unmapped; only the guard may look at its address.
	requireKind(t, v.PushBack(e.ctx, e.reg, 3), ErrResidency)
	_, _, err := Make[int64](e.ctx, e.reg, e.p)
	requireKind(t, err, ErrResidency)

	require.Zero(t, v.Len(e.reg))
	require.Zero(t, v.Cap(e.reg))
	require.True(t, v.Empty(e.reg))
	_, err = v.At(e.reg, 0)
	requireKind(t, err, ErrResidency)
	_, err = v.Front(e.reg)
	requireKind(t, err, ErrResidency)
	_, err = v.Back(e.reg)
	requireKind(t, err, ErrResidency)
	_, err = v.Values(e.reg)
	requireKind(t, err, ErrResidency)
	_, err = v.All(e.reg)
	requireKind(t, err, ErrResidency)
}

func TestResidency_CloseWaitsForReaders(t *testing.T) {
	e := newEnv(t)
	v := e.withValues(t, 1, 2, 3)

	var g errgroup.Group
	for range 4 {
		g.Go(func() error {
			for {
				x, err := v.Back(e.reg)
				if err != nil {
					if errors.Is(err, ErrResidency) {
						return nil
					}
					return err
				}
				if x != 3 {
					return fmt.Errorf("back = %d", x)
				}
			}
		})
	}
	require.NoError(t, e.p.Close())
	require.NoError(t, g.Wait())
}

func TestResidency_CancelledContextIsTransactionError(t *testing.T) {
	e := newEnv(t)
	v := e.withValues(t, 1)
	before := capture(t, e, v)

	ctx, cancel := context.WithCancel(e.ctx)
	cancel()
	err := v.PushBack(ctx, e.reg, 2)
	requireKind(t, err, ErrTransaction)
	require.ErrorIs(t, err, context.Canceled)
	requireUnchanged(t, before, e, v)
}
