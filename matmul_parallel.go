package main

import (
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"
)

// ===========================================================================
// WHAT'S GOING ON HERE
// ===========================================================================
//
// Shared-memory data parallelism: partition the m output rows into T
// contiguous slices and hand each slice to one goroutine. This is the
// cheapest decomposition that exists for matmul:
//
//   - A and B are read-only for the whole call, so sharing them costs
//     nothing.
//   - Each output row has exactly one writer, so there is no write
//     contention and no lock anywhere; the only synchronization is the
//     join barrier at the end of the call.
//   - Slices are whole rows, so for any reasonable row length two workers
//     never write the same cache line (no false sharing).
//
// The descriptor list is built up front and dispatched as one goroutine
// per descriptor; the call does not return, and timing does not stop,
// until every worker has finished its slice.
//
// ===========================================================================

// workerDesc describes one worker's share of the output: a contiguous,
// disjoint row range [lo, hi). The union of all descriptors covers
// [0, m) exactly once. A and B are shared read-only by every descriptor;
// rows [lo, hi) of C are written by this descriptor alone.
type workerDesc struct {
	idx    int
	lo, hi int
}

// workerSpan computes worker idx's row slice for an m-row output split
// across the given worker count.
//
// The slice arithmetic follows the step rule step = max(1, m/workers):
// worker idx owns [idx*step, (idx+1)*step) clipped to m, and a worker
// whose start row is already past m gets an empty slice (defined
// early-exit, not an error; happens when workers > m). The truncated
// division leaves a remainder of up to step-1 rows uncovered, so the
// last worker's slice is extended to m; anything else would silently
// drop output rows.
func workerSpan(idx, workers, m int) (lo, hi int) {
	step := m / workers
	if step == 0 {
		step = 1
	}
	lo = idx * step
	if lo >= m {
		return 0, 0
	}
	hi = lo + step
	if idx == workers-1 || hi > m {
		hi = m
	}
	return lo, hi
}

// makeWorkerDescs builds the per-worker descriptor list for an m-row
// output split across the given worker count.
func makeWorkerDescs(workers, m int) []workerDesc {
	descs := make([]workerDesc, workers)
	for idx := range descs {
		lo, hi := workerSpan(idx, workers, m)
		descs[idx] = workerDesc{idx: idx, lo: lo, hi: hi}
	}
	return descs
}

// ParallelStrategy computes C = A·B with a pool of goroutines, one per
// row slice.
type ParallelStrategy struct{}

// Name implements Strategy.
func (ParallelStrategy) Name() string { return "parallel" }

// Multiply implements Strategy. The call launches cfg.numWorkers()
// workers and joins all of them before returning; if any worker reports
// failure the call returns failure, but siblings are still drained first
// and the result is considered invalid.
func (ParallelStrategy) Multiply(cfg Config, a, b, c *Matrix) error {
	if err := CanMultiply(a, b); err != nil {
		return err
	}

	workers := cfg.numWorkers()
	descs := makeWorkerDescs(workers, c.rows)

	var g errgroup.Group
	for _, d := range descs {
		d := d
		if d.lo >= d.hi {
			klog.V(2).Infof("worker %d: empty slice, nothing to do", d.idx)
			continue
		}
		g.Go(func() error {
			mulRows(a, b, c, d.lo, d.hi)
			return nil
		})
	}
	return g.Wait()
}

func init() {
	RegisterStrategy(ParallelStrategy{})
}
