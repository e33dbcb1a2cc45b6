package main

import (
	"fmt"
	"io"
	"math/rand"

	"github.com/pkg/errors"
)

var (
	// ErrShapeMismatch indicates the two operands cannot be multiplied:
	// the left operand's column count differs from the right operand's
	// row count. Kernels detect this before touching the result buffer.
	ErrShapeMismatch = errors.New("matrix: shape mismatch")

	// ErrInvalidShape indicates a non-positive dimension.
	ErrInvalidShape = errors.New("matrix: invalid shape")
)

// Matrix is a dense, row-major buffer of uint64 elements with logical
// dimensions rows × cols. Accumulation wraps on overflow; that is the
// defined arithmetic for this repo, not an error condition.
//
// All working matrices in this repo are square. The multiply kernels
// inherit a square-only constraint in their result indexing (see
// writeIndex in matmul.go), so Matrix deliberately does not promise
// non-square multiplication support.
type Matrix struct {
	rows, cols int
	data       []uint64
}

// NewMatrix allocates a zero-filled rows × cols matrix.
func NewMatrix(rows, cols int) *Matrix {
	if rows <= 0 || cols <= 0 {
		panic(fmt.Sprintf("matrix: dimensions must be positive, got %dx%d", rows, cols))
	}
	return &Matrix{
		rows: rows,
		cols: cols,
		data: make([]uint64, rows*cols),
	}
}

// NewSequenceMatrix allocates a rows × cols matrix with element i set to i
// in flat row-major order. Deterministic inputs make cross-strategy
// comparisons exact.
func NewSequenceMatrix(rows, cols int) *Matrix {
	m := NewMatrix(rows, cols)
	for i := range m.data {
		m.data[i] = uint64(i)
	}
	return m
}

// NewRandMatrix allocates a rows × cols matrix filled from rng.
func NewRandMatrix(rows, cols int, rng *rand.Rand) *Matrix {
	m := NewMatrix(rows, cols)
	for i := range m.data {
		m.data[i] = rng.Uint64()
	}
	return m
}

// Rows returns the number of rows.
func (m *Matrix) Rows() int { return m.rows }

// Cols returns the number of columns.
func (m *Matrix) Cols() int { return m.cols }

// At returns the element at row i, column j.
func (m *Matrix) At(i, j int) uint64 {
	return m.data[i*m.cols+j]
}

// Set stores v at row i, column j.
func (m *Matrix) Set(i, j int, v uint64) {
	m.data[i*m.cols+j] = v
}

// Row returns the slice backing row i. The caller must not grow it.
func (m *Matrix) Row(i int) []uint64 {
	return m.data[i*m.cols : (i+1)*m.cols]
}

// Data returns the flat row-major backing slice.
func (m *Matrix) Data() []uint64 { return m.data }

// Clone returns a deep copy.
func (m *Matrix) Clone() *Matrix {
	out := NewMatrix(m.rows, m.cols)
	copy(out.data, m.data)
	return out
}

// Equal reports whether the two matrices have identical shape and
// bit-identical elements.
func (m *Matrix) Equal(other *Matrix) bool {
	if m.rows != other.rows || m.cols != other.cols {
		return false
	}
	for i, v := range m.data {
		if other.data[i] != v {
			return false
		}
	}
	return true
}

// Print writes the matrix to w in row-major order, space-separated, one
// row per line. This matches the -p output of every strategy.
func (m *Matrix) Print(w io.Writer) {
	for i := 0; i < m.rows; i++ {
		row := m.Row(i)
		for j, v := range row {
			if j > 0 {
				fmt.Fprint(w, " ")
			}
			fmt.Fprintf(w, "%d", v)
		}
		fmt.Fprintln(w)
	}
}

// CanMultiply checks the operands are multiplicable: a is (m × w),
// b must be (w × n). On mismatch it returns ErrShapeMismatch (wrapped
// with the offending dimensions) and the caller must not have computed
// anything.
func CanMultiply(a, b *Matrix) error {
	if a.cols != b.rows {
		return errors.Wrapf(ErrShapeMismatch, "left is %dx%d, right is %dx%d",
			a.rows, a.cols, b.rows, b.cols)
	}
	return nil
}
