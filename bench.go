package main

import (
	"encoding/json"
	"io"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// ===========================================================================
// WHAT'S GOING ON HERE
// ===========================================================================
//
// The benchmark harness: run every strategy over a sweep of sizes on the
// same operands and report comparable numbers. Each C-era variant of this
// program printed only its own elapsed time, so comparing strategies
// meant juggling six binaries; here one suite does the sweep and emits
// structured JSON for analysis.
//
// WHAT WE'RE MEASURING:
//   - wall-clock time per multiply (the TimedMultiply bracket)
//   - GOPS (billions of multiply-add pairs per second; elements are
//     integers, so this is ops, not FLOPS)
//   - speedup relative to the sequential baseline at the same size
//
// Results are verified against the sequential result before they are
// recorded: a fast wrong kernel is not a benchmark result, it is a bug.
//
// ===========================================================================

// BenchmarkResult is a single (strategy, size) measurement.
type BenchmarkResult struct {
	Strategy     string        `json:"strategy"`
	Size         int           `json:"size"`
	Workers      int           `json:"workers"`
	Iterations   int           `json:"iterations"`
	TotalTime    time.Duration `json:"total_time_ns"`
	AvgTime      time.Duration `json:"avg_time_ns"`
	GOPS         float64       `json:"gops"`
	SpeedupVsSeq float64       `json:"speedup_vs_seq"`
}

// BenchmarkSuite is one full sweep on one machine.
type BenchmarkSuite struct {
	RunID     string            `json:"run_id"`
	Timestamp time.Time         `json:"timestamp"`
	Hardware  HardwareInfo      `json:"hardware"`
	Results   []BenchmarkResult `json:"results"`
}

// HardwareInfo describes the benchmarking host.
type HardwareInfo struct {
	OS     string `json:"os"`
	Arch   string `json:"arch"`
	NumCPU int    `json:"num_cpu"`
}

// DetectHardware gathers host information for the suite header.
func DetectHardware() HardwareInfo {
	return HardwareInfo{
		OS:     runtime.GOOS,
		Arch:   runtime.GOARCH,
		NumCPU: runtime.NumCPU(),
	}
}

// gops converts an average multiply duration at size m into billions of
// multiply-add pairs per second.
func gops(m int, avg time.Duration) float64 {
	if avg <= 0 {
		return 0
	}
	ops := 2 * float64(m) * float64(m) * float64(m)
	return ops / avg.Seconds() / 1e9
}

// RunBenchmark measures one strategy at one size with shared operands.
// seqC, when non-nil, is the sequential result on the same operands and
// is used both for verification and for the speedup baseline.
func RunBenchmark(s Strategy, cfg Config, a, b, seqC *Matrix, seqAvg time.Duration, iterations int) (BenchmarkResult, error) {
	res := BenchmarkResult{
		Strategy:   s.Name(),
		Size:       cfg.Size,
		Workers:    cfg.numWorkers(),
		Iterations: iterations,
	}

	c := NewMatrix(cfg.Size, cfg.Size)
	for i := 0; i < iterations; i++ {
		elapsed, err := TimedMultiply(s, cfg, a, b, c)
		if err != nil {
			return res, errors.Wrapf(err, "strategy %s at size %d", s.Name(), cfg.Size)
		}
		res.TotalTime += elapsed
	}
	if seqC != nil && !c.Equal(seqC) {
		return res, errors.Errorf("strategy %s at size %d: result differs from sequential", s.Name(), cfg.Size)
	}

	res.AvgTime = res.TotalTime / time.Duration(iterations)
	res.GOPS = gops(cfg.Size, res.AvgTime)
	if seqAvg > 0 && res.AvgTime > 0 {
		res.SpeedupVsSeq = float64(seqAvg) / float64(res.AvgTime)
	}
	return res, nil
}

// RunBenchmarkSuite sweeps the given sizes across the given strategies.
// The sequential strategy always runs first at each size to provide the
// verification oracle and speedup baseline. onResult, when non-nil, is
// called after each measurement (the CLI hangs a progress bar on it).
func RunBenchmarkSuite(cfg Config, sizes []int, strategyNames []string, iterations int,
	onResult func(BenchmarkResult)) (*BenchmarkSuite, error) {

	if iterations < 1 {
		return nil, errors.Errorf("iterations must be at least 1, got %d", iterations)
	}

	suite := &BenchmarkSuite{
		RunID:     uuid.NewString(),
		Timestamp: time.Now(),
		Hardware:  DetectHardware(),
	}

	seq, err := StrategyByName("seq")
	if err != nil {
		return nil, err
	}

	for _, size := range sizes {
		runCfg := cfg
		runCfg.Size = size

		a := NewSequenceMatrix(size, size)
		b := NewSequenceMatrix(size, size)

		seqC := NewMatrix(size, size)
		var seqTotal time.Duration
		for i := 0; i < iterations; i++ {
			elapsed, err := TimedMultiply(seq, runCfg, a, b, seqC)
			if err != nil {
				return nil, errors.Wrapf(err, "sequential baseline at size %d", size)
			}
			seqTotal += elapsed
		}
		seqAvg := seqTotal / time.Duration(iterations)

		seqResult := BenchmarkResult{
			Strategy:     seq.Name(),
			Size:         size,
			Workers:      1,
			Iterations:   iterations,
			TotalTime:    seqTotal,
			AvgTime:      seqAvg,
			GOPS:         gops(size, seqAvg),
			SpeedupVsSeq: 1,
		}
		suite.Results = append(suite.Results, seqResult)
		if onResult != nil {
			onResult(seqResult)
		}

		for _, name := range strategyNames {
			if name == seq.Name() {
				continue
			}
			s, err := StrategyByName(name)
			if err != nil {
				return nil, err
			}
			if name == "distributed" && size%runCfg.numProcesses() != 0 {
				// The distributed strategy's equal-block scatter would
				// abort; skip the combination instead of failing the
				// whole sweep.
				klog.Warningf("bench: skipping distributed at size %d: rows do not divide across %d ranks",
					size, runCfg.numProcesses())
				continue
			}
			res, err := RunBenchmark(s, runCfg, a, b, seqC, seqAvg, iterations)
			if err != nil {
				return nil, err
			}
			suite.Results = append(suite.Results, res)
			if onResult != nil {
				onResult(res)
			}
		}
	}
	return suite, nil
}

// WriteJSON writes the suite as indented JSON.
func (s *BenchmarkSuite) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(s), "encoding benchmark suite")
}
