package main

import (
	"sort"

	"github.com/pkg/errors"
)

// ===========================================================================
// WHAT'S GOING ON HERE
// ===========================================================================
//
// This file defines the one contract every execution strategy in this repo
// implements, multiply(A, B) -> C, plus the sequential baseline kernel
// that every other strategy must reproduce bit-for-bit.
//
// The strategies differ only in HOW they partition the m×n output domain:
//
//   seq          one thread of control, row-major triple loop (this file)
//   parallel     row slices across a goroutine pool (matmul_parallel.go)
//   distributed  row blocks across isolated ranks joined by collective
//                primitives (matmul_distributed.go)
//   device       one invocation per output element on a 2-D device grid
//                (matmul_device.go)
//
// WHY bit-identical? The elements are uint64 and accumulation order is k
// ascending in every strategy, so there is no floating-point reassociation
// to hide behind: any difference between a strategy's output and the
// sequential output is a partitioning bug, not noise. The tests lean on
// this hard.
//
// ===========================================================================

// Strategy is one execution strategy for the multiply contract.
//
// Multiply computes C = A·B into c. It must:
//   - return ErrShapeMismatch (wrapped) before any computation when the
//     operands are not multiplicable, leaving c untouched;
//   - never mutate a or b;
//   - write every element of c exactly once on success;
//   - leave c's contents undefined-but-unread on failure (callers must
//     not use c after an error).
//
// Strategies hold no per-call state; all parallelism degree and sizing
// comes from cfg.
type Strategy interface {
	Name() string
	Multiply(cfg Config, a, b, c *Matrix) error
}

var registeredStrategies = make(map[string]Strategy)

// RegisterStrategy registers a strategy under its name. Call from
// package initialization; duplicate names panic.
func RegisterStrategy(s Strategy) {
	if _, dup := registeredStrategies[s.Name()]; dup {
		panic("strategy already registered: " + s.Name())
	}
	registeredStrategies[s.Name()] = s
}

// StrategyByName looks up a registered strategy.
func StrategyByName(name string) (Strategy, error) {
	s, ok := registeredStrategies[name]
	if !ok {
		return nil, errors.Errorf("unknown strategy %q (have %v)", name, StrategyNames())
	}
	return s, nil
}

// StrategyNames returns the registered strategy names, sorted.
func StrategyNames() []string {
	names := make([]string, 0, len(registeredStrategies))
	for name := range registeredStrategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// mulRows computes output rows [lo, hi) of c = a·b: for each (i, j),
// C[i,j] = Σ_{k=0..w-1} A[i,k]*B[k,j], k ascending, wrapping on overflow.
//
// The result write uses row stride m (c.rows), not n: result[i*m+j].
// The two coincide for the square matrices this repo computes; the
// indexing is NOT correct for non-square results and must be revisited
// before lifting the square-only constraint.
func mulRows(a, b, c *Matrix, lo, hi int) {
	m := c.rows
	n := b.cols
	w := a.cols
	for i := lo; i < hi; i++ {
		arow := a.data[i*w : (i+1)*w]
		for j := 0; j < n; j++ {
			var tmp uint64
			for k := 0; k < w; k++ {
				tmp += arow[k] * b.data[k*n+j]
			}
			c.data[i*m+j] = tmp
		}
	}
}

// SequentialStrategy is the single-threaded baseline: the naive triple
// loop over the whole output domain.
type SequentialStrategy struct{}

// Name implements Strategy.
func (SequentialStrategy) Name() string { return "seq" }

// Multiply implements Strategy.
func (SequentialStrategy) Multiply(cfg Config, a, b, c *Matrix) error {
	if err := CanMultiply(a, b); err != nil {
		return err
	}
	mulRows(a, b, c, 0, c.rows)
	return nil
}

func init() {
	RegisterStrategy(SequentialStrategy{})
}
