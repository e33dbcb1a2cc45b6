package main

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// allStrategies returns every registered strategy with a config under
// which it is defined for the given size (the distributed strategy needs
// a rank count that divides the size).
func allStrategies(t *testing.T, size int) map[string]Config {
	t.Helper()
	cfgs := make(map[string]Config)
	for _, name := range StrategyNames() {
		cfg := DefaultConfig()
		cfg.Size = size
		cfg.Workers = 3
		cfg.Processes = 2
		if name == "distributed" {
			require.Zerof(t, size%cfg.Processes, "test sizes must divide across %d ranks", cfg.Processes)
		}
		cfgs[name] = cfg
	}
	return cfgs
}

// TestKnownProduct checks the one worked example every strategy must
// reproduce: [[1,2],[3,4]] x [[5,6],[7,8]] = [[19,22],[43,50]].
func TestKnownProduct(t *testing.T) {
	for name, cfg := range allStrategies(t, 2) {
		t.Run(name, func(t *testing.T) {
			a := NewMatrix(2, 2)
			copy(a.Data(), []uint64{1, 2, 3, 4})
			b := NewMatrix(2, 2)
			copy(b.Data(), []uint64{5, 6, 7, 8})
			c := NewMatrix(2, 2)

			s, err := StrategyByName(name)
			require.NoError(t, err)
			require.NoError(t, s.Multiply(cfg, a, b, c))
			require.Equal(t, []uint64{19, 22, 43, 50}, c.Data())
		})
	}
}

// TestStrategiesBitIdenticalToSequential is the central contract: with
// integer elements and fixed accumulation order there is no tolerance,
// every strategy must match the sequential result exactly.
func TestStrategiesBitIdenticalToSequential(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for _, size := range []int{2, 4, 8, 16, 32, 64} {
		a := NewRandMatrix(size, size, rng)
		b := NewRandMatrix(size, size, rng)

		want := NewMatrix(size, size)
		seq, err := StrategyByName("seq")
		require.NoError(t, err)
		require.NoError(t, seq.Multiply(Config{Size: size}, a, b, want))

		for name, cfg := range allStrategies(t, size) {
			t.Run(fmt.Sprintf("%s/size=%d", name, size), func(t *testing.T) {
				s, err := StrategyByName(name)
				require.NoError(t, err)
				c := NewMatrix(size, size)
				require.NoError(t, s.Multiply(cfg, a, b, c))
				require.True(t, c.Equal(want), "result differs from sequential")
			})
		}
	}
}

// TestSequentialAgainstGonum cross-checks the baseline against an
// independent implementation. Small sequence-valued operands keep every
// intermediate below 2^53, so the float64 oracle is exact.
func TestSequentialAgainstGonum(t *testing.T) {
	for _, size := range []int{2, 3, 5, 8, 16} {
		a := NewSequenceMatrix(size, size)
		b := NewSequenceMatrix(size, size)
		c := NewMatrix(size, size)
		require.NoError(t, SequentialStrategy{}.Multiply(Config{Size: size}, a, b, c))

		fa := mat.NewDense(size, size, nil)
		fb := mat.NewDense(size, size, nil)
		for i := 0; i < size; i++ {
			for j := 0; j < size; j++ {
				fa.Set(i, j, float64(a.At(i, j)))
				fb.Set(i, j, float64(b.At(i, j)))
			}
		}
		var fc mat.Dense
		fc.Mul(fa, fb)

		for i := 0; i < size; i++ {
			for j := 0; j < size; j++ {
				require.Equal(t, fc.At(i, j), float64(c.At(i, j)),
					"size %d element (%d,%d)", size, i, j)
			}
		}
	}
}

// TestShapeMismatchWritesNothing fills the result with a sentinel and
// checks every strategy fails without touching a single element.
func TestShapeMismatchWritesNothing(t *testing.T) {
	const sentinel = uint64(0xDEADBEEF)
	for name, cfg := range allStrategies(t, 4) {
		t.Run(name, func(t *testing.T) {
			a := NewMatrix(4, 3) // inner dimension 3...
			b := NewMatrix(4, 4) // ...does not match 4
			c := NewMatrix(4, 4)
			for i := range c.Data() {
				c.Data()[i] = sentinel
			}

			s, err := StrategyByName(name)
			require.NoError(t, err)
			err = s.Multiply(cfg, a, b, c)
			require.Error(t, err)
			require.True(t, errors.Is(err, ErrShapeMismatch))
			for i, v := range c.Data() {
				require.Equalf(t, sentinel, v, "element %d was written despite mismatch", i)
			}
		})
	}
}

// TestOperandsNotMutated: the kernel call must never write to A or B
// under any strategy.
func TestOperandsNotMutated(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	size := 16
	a := NewRandMatrix(size, size, rng)
	b := NewRandMatrix(size, size, rng)
	aBefore := a.Clone()
	bBefore := b.Clone()

	for name, cfg := range allStrategies(t, size) {
		t.Run(name, func(t *testing.T) {
			s, err := StrategyByName(name)
			require.NoError(t, err)
			c := NewMatrix(size, size)
			require.NoError(t, s.Multiply(cfg, a, b, c))
			require.True(t, a.Equal(aBefore), "A was mutated")
			require.True(t, b.Equal(bBefore), "B was mutated")
		})
	}
}

// TestWrappingAccumulation: overflow wraps per uint64 arithmetic in
// every strategy, identically.
func TestWrappingAccumulation(t *testing.T) {
	size := 2
	a := NewMatrix(size, size)
	b := NewMatrix(size, size)
	for i := range a.Data() {
		a.Data()[i] = ^uint64(0) // 2^64 - 1
		b.Data()[i] = ^uint64(0)
	}

	want := NewMatrix(size, size)
	require.NoError(t, SequentialStrategy{}.Multiply(Config{Size: size}, a, b, want))

	for name, cfg := range allStrategies(t, size) {
		t.Run(name, func(t *testing.T) {
			s, err := StrategyByName(name)
			require.NoError(t, err)
			c := NewMatrix(size, size)
			require.NoError(t, s.Multiply(cfg, a, b, c))
			require.True(t, c.Equal(want))
		})
	}
}

func TestStrategyRegistry(t *testing.T) {
	require.Equal(t, []string{"device", "distributed", "parallel", "seq"}, StrategyNames())

	_, err := StrategyByName("simd")
	require.Error(t, err)
}
