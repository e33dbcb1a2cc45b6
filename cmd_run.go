package main

import (
	"fmt"
	"math/rand"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// run executes one multiply with one strategy, the moral equivalent of
// running one of the original standalone benchmark binaries.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Multiply two square matrices with the chosen strategy",
	RunE:  runMultiply,
}

var runFlags struct {
	size      int
	threads   int
	processes int
	strategy  string
	print     bool
	random    bool
	seed      int64
}

func init() {
	f := runCmd.Flags()
	f.IntVarP(&runFlags.size, "size", "m", DefaultSize, "row/column size of the square matrices")
	f.IntVarP(&runFlags.threads, "threads", "t", 0, "worker count for shared-memory parallelism (0 = all CPUs)")
	f.IntVar(&runFlags.processes, "processes", 0, "rank count for the distributed strategy (0 = all CPUs)")
	f.StringVarP(&runFlags.strategy, "strategy", "s", "seq",
		"execution strategy: "+strings.Join(StrategyNames(), ", "))
	f.BoolVarP(&runFlags.print, "print", "p", false, "print the input and output matrices")
	f.BoolVar(&runFlags.random, "random", false, "fill operands randomly instead of with the sequence 0,1,2,...")
	f.Int64Var(&runFlags.seed, "seed", 1, "PRNG seed for --random operands")
	rootCmd.AddCommand(runCmd)
}

func runMultiply(cmd *cobra.Command, args []string) error {
	if runFlags.size < 2 {
		return errors.Errorf("bad --size %d: need at least 2", runFlags.size)
	}

	cfg := DefaultConfig()
	cfg.Size = runFlags.size
	cfg.Workers = runFlags.threads
	cfg.Processes = runFlags.processes
	cfg.PrintMatrices = runFlags.print
	cfg.Deterministic = !runFlags.random
	cfg.Seed = runFlags.seed

	strategy, err := StrategyByName(runFlags.strategy)
	if err != nil {
		return err
	}

	var a, b *Matrix
	if cfg.Deterministic {
		a = NewSequenceMatrix(cfg.Size, cfg.Size)
		b = NewSequenceMatrix(cfg.Size, cfg.Size)
	} else {
		rng := rand.New(rand.NewSource(cfg.Seed))
		a = NewRandMatrix(cfg.Size, cfg.Size, rng)
		b = NewRandMatrix(cfg.Size, cfg.Size, rng)
	}
	c := NewMatrix(cfg.Size, cfg.Size)

	elapsed, err := TimedMultiply(strategy, cfg, a, b, c)
	if err != nil {
		return err
	}

	fmt.Printf("%s: %dx%d multiply in %s\n", strategy.Name(), cfg.Size, cfg.Size, elapsed)

	// The distributed strategy reassembles the result only at the
	// coordinator, which is the process running this command, so the
	// dump below is always the coordinator's view.
	if cfg.PrintMatrices {
		a.Print(os.Stdout)
		fmt.Println()
		b.Print(os.Stdout)
		fmt.Println()
		c.Print(os.Stdout)
	}
	return nil
}
