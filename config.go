package main

import "runtime"

// DefaultSize is the default row/column dimension for every strategy.
const DefaultSize = 1024

// Config carries every knob a multiply strategy consumes. It is an
// immutable value passed by argument into the kernel entry points:
// kernels stay callable repeatedly and testable in isolation, with no
// process-wide mutable state.
type Config struct {
	// Size is the square dimension m (= n = w).
	Size int

	// Workers is the shared-memory worker count. Zero means
	// runtime.NumCPU().
	Workers int

	// Processes is the rank count for the distributed strategy. Zero
	// means runtime.NumCPU().
	Processes int

	// PrintMatrices dumps operands and result to stdout after a run.
	// Computation never depends on it; only the CLI reads it.
	PrintMatrices bool

	// Deterministic selects sequence initialization (element i = i)
	// instead of random operands.
	Deterministic bool

	// Seed seeds the operand PRNG when Deterministic is false.
	Seed int64
}

// DefaultConfig returns the defaults shared by every strategy: 1024×1024
// matrices and one worker per available processor.
func DefaultConfig() Config {
	return Config{
		Size:      DefaultSize,
		Workers:   0,
		Processes: 0,
	}
}

// numWorkers resolves the effective shared-memory worker count.
func (c Config) numWorkers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.NumCPU()
}

// numProcesses resolves the effective distributed rank count.
func (c Config) numProcesses() int {
	if c.Processes > 0 {
		return c.Processes
	}
	return runtime.NumCPU()
}
