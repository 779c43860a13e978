// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"github.com/born-ml/optbench/internal/tensor"
)

// Type aliases for public API

// Shape represents the dimensions of a tensor.
// Example: Shape{2, 3, 4} represents a 3D tensor with dimensions 2×3×4.
type Shape = tensor.Shape

// Tensor is the read-only view shared by Dense and Sparse.
type Tensor = tensor.Tensor

// Dense is a row-major float64 tensor.
//
// In-place operations return the receiver so updates chain:
//
//	m.Scale(beta1).AddScaled(1-beta1, grad)
type Dense = tensor.Dense

// Sparse is a COO tensor holding flat indices and values.
type Sparse = tensor.Sparse

// Zeros creates a zero-filled dense tensor.
func Zeros(shape Shape) *Dense {
	return tensor.Zeros(shape)
}

// ZerosLike creates a zero-filled dense tensor with the shape of t.
func ZerosLike(t Tensor) *Dense {
	return tensor.ZerosLike(t)
}

// Full creates a dense tensor with every element set to value.
func Full(shape Shape, value float64) *Dense {
	return tensor.Full(shape, value)
}

// FromSlice creates a dense tensor from a copy of data.
//
// Returns an error if len(data) does not match the shape.
func FromSlice(data []float64, shape Shape) (*Dense, error) {
	return tensor.FromSlice(data, shape)
}

// MustFromSlice is like FromSlice but panics on error.
func MustFromSlice(data []float64, shape Shape) *Dense {
	return tensor.MustFromSlice(data, shape)
}

// NewSparse creates a sparse tensor from flat indices and values.
//
// Example:
//
//	g, err := tensor.NewSparse(tensor.Shape{2, 2}, []int{0, 3}, []float64{1, -1})
func NewSparse(shape Shape, indices []int, values []float64) (*Sparse, error) {
	return tensor.NewSparse(shape, indices, values)
}
