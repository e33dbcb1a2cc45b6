package main

import (
	goflag "flag"
	"os"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

var rootCmd = &cobra.Command{
	Use:   "matmult",
	Short: "Dense square matrix-multiplication benchmarks across execution strategies",
	Long: `matmult multiplies two square matrices with the same O(n^3) algorithm
realized through interchangeable execution strategies: a sequential
baseline, a shared-memory goroutine pool, distributed ranks joined by
collective primitives, and a simulated device offload. Every strategy
produces a bit-identical result; only the decomposition differs.`,
	SilenceUsage: true,
}

func main() {
	// klog's verbosity flags (-v, -logtostderr, ...) ride along on the
	// root command.
	fs := goflag.NewFlagSet("klog", goflag.ContinueOnError)
	klog.InitFlags(fs)
	rootCmd.PersistentFlags().AddGoFlagSet(fs)

	err := rootCmd.Execute()
	klog.Flush()
	if err != nil {
		os.Exit(1)
	}
}
