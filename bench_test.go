package main

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimedMultiplyBracketsTheCall(t *testing.T) {
	size := 32
	a := NewSequenceMatrix(size, size)
	b := NewSequenceMatrix(size, size)
	c := NewMatrix(size, size)

	elapsed, err := TimedMultiply(SequentialStrategy{}, Config{Size: size}, a, b, c)
	require.NoError(t, err)
	assert.Greater(t, elapsed, time.Duration(0))

	want := NewMatrix(size, size)
	require.NoError(t, SequentialStrategy{}.Multiply(Config{Size: size}, a, b, want))
	require.True(t, c.Equal(want))
}

func TestTimedMultiplyReportsFailure(t *testing.T) {
	a := NewMatrix(2, 3)
	b := NewMatrix(2, 2)
	c := NewMatrix(2, 2)
	_, err := TimedMultiply(SequentialStrategy{}, Config{Size: 2}, a, b, c)
	require.Error(t, err)
}

func TestRunBenchmarkSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping benchmark suite in short mode")
	}

	cfg := DefaultConfig()
	cfg.Workers = 2
	cfg.Processes = 2

	var seen int
	suite, err := RunBenchmarkSuite(cfg, []int{8, 16}, StrategyNames(), 2,
		func(BenchmarkResult) { seen++ })
	require.NoError(t, err)

	// Every (size, strategy) pair measured, sequential first per size.
	require.Len(t, suite.Results, 2*len(StrategyNames()))
	require.Equal(t, len(suite.Results), seen)
	require.NotEmpty(t, suite.RunID)

	for _, r := range suite.Results {
		assert.Equal(t, 2, r.Iterations)
		assert.Greater(t, r.AvgTime, time.Duration(0))
		if r.Strategy == "seq" {
			assert.Equal(t, 1.0, r.SpeedupVsSeq)
		} else {
			assert.Greater(t, r.SpeedupVsSeq, 0.0)
		}
	}

	var buf bytes.Buffer
	require.NoError(t, suite.WriteJSON(&buf))
	var decoded BenchmarkSuite
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Equal(t, suite.RunID, decoded.RunID)
}

func TestGOPS(t *testing.T) {
	// 2*m^3 ops; m=100 in 1s is 2e6/1e9 = 0.002 GOPS.
	assert.InDelta(t, 0.002, gops(100, time.Second), 1e-9)
	assert.Zero(t, gops(100, 0))
}
