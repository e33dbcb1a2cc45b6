package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

// bench sweeps sizes across strategies and reports comparable numbers;
// see bench.go for what is measured and why results are verified against
// the sequential baseline.
var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Benchmark every strategy across a sweep of sizes",
	RunE:  runBench,
}

var benchFlags struct {
	sizes      []int
	strategies []string
	iterations int
	threads    int
	processes  int
	jsonPath   string
}

func init() {
	f := benchCmd.Flags()
	f.IntSliceVar(&benchFlags.sizes, "sizes", []int{128, 256, 512}, "square sizes to sweep")
	f.StringSliceVar(&benchFlags.strategies, "strategies", StrategyNames(), "strategies to benchmark")
	f.IntVarP(&benchFlags.iterations, "iterations", "n", 3, "measurements per (strategy, size)")
	f.IntVarP(&benchFlags.threads, "threads", "t", 0, "worker count for shared-memory parallelism (0 = all CPUs)")
	f.IntVar(&benchFlags.processes, "processes", 0, "rank count for the distributed strategy (0 = all CPUs)")
	f.StringVar(&benchFlags.jsonPath, "json", "", "write the full suite as JSON to this file")
	rootCmd.AddCommand(benchCmd)
}

func runBench(cmd *cobra.Command, args []string) error {
	cfg := DefaultConfig()
	cfg.Workers = benchFlags.threads
	cfg.Processes = benchFlags.processes

	total := len(benchFlags.sizes) * len(benchFlags.strategies)
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetDescription("benchmarking"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionClearOnFinish(),
	)

	suite, err := RunBenchmarkSuite(cfg, benchFlags.sizes, benchFlags.strategies, benchFlags.iterations,
		func(BenchmarkResult) {
			_ = bar.Add(1)
		})
	if err != nil {
		return err
	}
	_ = bar.Finish()

	fmt.Printf("run %s on %s/%s (%d CPUs)\n\n",
		suite.RunID, suite.Hardware.OS, suite.Hardware.Arch, suite.Hardware.NumCPU)
	fmt.Printf("%-12s %8s %10s %12s %10s %10s\n",
		"strategy", "size", "memory", "avg time", "GOPS", "speedup")
	for _, r := range suite.Results {
		mem := humanize.IBytes(uint64(3 * r.Size * r.Size * 8))
		fmt.Printf("%-12s %8d %10s %12s %10.3f %9.2fx\n",
			r.Strategy, r.Size, mem, r.AvgTime.String(), r.GOPS, r.SpeedupVsSeq)
	}

	if benchFlags.jsonPath != "" {
		out, err := os.Create(benchFlags.jsonPath)
		if err != nil {
			return err
		}
		defer out.Close()
		if err := suite.WriteJSON(out); err != nil {
			return err
		}
		fmt.Printf("\nwrote %s\n", benchFlags.jsonPath)
	}
	return nil
}
