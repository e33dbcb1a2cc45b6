package main

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequenceMatrix(t *testing.T) {
	m := NewSequenceMatrix(3, 4)
	require.Equal(t, 3, m.Rows())
	require.Equal(t, 4, m.Cols())
	for i := 0; i < 3; i++ {
		for j := 0; j < 4; j++ {
			assert.Equal(t, uint64(i*4+j), m.At(i, j))
		}
	}
}

func TestRandMatrixDeterministicPerSeed(t *testing.T) {
	a := NewRandMatrix(8, 8, rand.New(rand.NewSource(42)))
	b := NewRandMatrix(8, 8, rand.New(rand.NewSource(42)))
	require.True(t, a.Equal(b), "same seed must produce the same matrix")

	c := NewRandMatrix(8, 8, rand.New(rand.NewSource(43)))
	require.False(t, a.Equal(c), "different seeds should differ")
}

func TestCanMultiply(t *testing.T) {
	a := NewMatrix(2, 3)
	b := NewMatrix(3, 5)
	require.NoError(t, CanMultiply(a, b))

	bad := NewMatrix(2, 5)
	err := CanMultiply(a, bad)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrShapeMismatch))
}

func TestCloneIsDeep(t *testing.T) {
	a := NewSequenceMatrix(3, 3)
	b := a.Clone()
	b.Set(0, 0, 999)
	assert.Equal(t, uint64(0), a.At(0, 0))
	assert.Equal(t, uint64(999), b.At(0, 0))
}

func TestPrintRowMajor(t *testing.T) {
	m := NewSequenceMatrix(2, 3)
	var buf bytes.Buffer
	m.Print(&buf)
	require.Equal(t, "0 1 2\n3 4 5\n", buf.String())
}
