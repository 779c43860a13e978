// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the float64 tensors that optbench optimizers update.
//
// # Overview
//
// This package contains:
//   - Dense: row-major float64 tensor with in-place arithmetic
//   - Sparse: COO tensor used to carry sparse gradients
//   - Tensor: read-only interface shared by both layouts
//   - Shape: tensor dimensions
//
// # Basic Usage
//
//	import "github.com/born-ml/optbench/tensor"
//
//	func main() {
//	    w := tensor.MustFromSlice([]float64{1, 2, 3, 4}, tensor.Shape{2, 2})
//	    g := tensor.Full(tensor.Shape{2, 2}, 0.5)
//
//	    // In-place update: w -= 0.1 * g
//	    w.AddScaled(-0.1, g)
//	}
//
// # Sparse Gradients
//
// A sparse gradient lists flat indices and values; duplicate indices are
// summed on densification:
//
//	g, err := tensor.NewSparse(tensor.Shape{4}, []int{3}, []float64{1})
//	dense := g.ToDense() // [0 0 0 1]
//
// Optimizers that only support dense inputs reject a Sparse gradient with
// optim.ErrUnsupportedInput.
//
// # Shape Rules
//
// Binary operations on Dense require identical shapes and panic otherwise.
// Optimizers validate gradient shapes before touching any tensor, so a
// mismatched gradient surfaces as an error from Step instead.
package tensor
