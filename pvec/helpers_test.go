package pvec

import (
	"context"
	"errors"
	"iter"
	"path/filepath"
	"testing"
	"unsafe"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/pmemkit/pool"
	"github.com/joshuapare/pmemkit/pool/alloc"
)

type env struct {
	ctx context.Context
	reg *pool.Registry
	p   *pool.Pool
}

func newEnv(t *testing.T) *env {
	t.Helper()
	reg := pool.NewRegistry()
	return &env{ctx: context.Background(), reg: reg, p: newPool(t, reg)}
}

func newPool(t *testing.T, reg *pool.Registry) *pool.Pool {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vec.pool")
	p, err := pool.Create(path, pool.Options{
		Layout:   "pvec-test",
		Size:     2 << 20,
		LogSize:  64 << 10,
		Registry: reg,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

// newVec allocates an empty vector in the env's pool.
func (e *env) newVec(t *testing.T) *Vector[int64] {
	t.Helper()
	v, _, err := Make[int64](e.ctx, e.reg, e.p)
	require.NoError(t, err)
	return v
}

func (e *env) withValues(t *testing.T, values ...int64) *Vector[int64] {
	t.Helper()
	v := e.newVec(t)
	require.NoError(t, v.InitValues(e.ctx, e.reg, values...))
	return v
}

func seqOf[T any](values ...T) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for _, v := range values {
			if !yield(v, nil) {
				return
			}
		}
	}
}

var errBadElement = errors.New("element constructor failed")

// failingSeq yields n values and then an error.
func failingSeq(n int) iter.Seq2[int64, error] {
	return func(yield func(int64, error) bool) {
		for i := range n {
			if !yield(int64(i), nil) {
				return
			}
		}
		yield(0, errBadElement)
	}
}

func header[T any](v *Vector[T]) []byte {
	b := unsafe.Slice((*byte)(unsafe.Pointer(v)), unsafe.Sizeof(*v))
	return append([]byte(nil), b...)
}

// state captures everything a failed call must leave untouched.
type state struct {
	header []byte
	values []int64
	stats  alloc.Stats
}

func capture(t *testing.T, e *env, v *Vector[int64]) state {
	t.Helper()
	values, err := v.Values(e.reg)
	require.NoError(t, err)
	return state{header: header(v), values: values, stats: e.p.Stats()}
}

func requireUnchanged(t *testing.T, before state, e *env, v *Vector[int64]) {
	t.Helper()
	after := capture(t, e, v)
	if diff := cmp.Diff(before, after, cmp.AllowUnexported(state{})); diff != "" {
		t.Fatalf("persistent state changed (-before +after):\n%s", diff)
	}
}

func requireValues(t *testing.T, e *env, v *Vector[int64], want ...int64) {
	t.Helper()
	got, err := v.Values(e.reg)
	require.NoError(t, err)
	if want == nil {
		want = []int64{}
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("values mismatch (-want +got):\n%s", diff)
	}
	require.GreaterOrEqual(t, v.Cap(e.reg), v.Len(e.reg))
}

func requireKind(t *testing.T, err, kind error) *Error {
	t.Helper()
	require.Error(t, err)
	require.ErrorIs(t, err, kind)
	var pe *Error
	require.ErrorAs(t, err, &pe)
	require.Equal(t, kind, pe.Kind)
	return pe
}
