// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"github.com/born-ml/optbench/internal/nn"
	"github.com/born-ml/optbench/tensor"
)

// Parameter represents a trainable parameter.
//
// Example:
//
//	// Create a weight parameter
//	weight := nn.NewParameter("weight", tensor.Zeros(tensor.Shape{3, 2}))
//
//	// Access the tensor
//	w := weight.Tensor()
//
//	// Gradient may be dense or sparse, or nil when absent
//	grad := weight.Grad()
//
// Methods:
//
//	Name() string
//	    Returns the parameter name (e.g., "weight", "bias").
//
//	Tensor() *tensor.Dense
//	    Returns the parameter tensor. Optimizers update it in place.
//
//	Shape() tensor.Shape
//	    Returns the parameter tensor's shape.
//
//	Grad() tensor.Tensor
//	    Returns the gradient tensor (nil if absent).
//
//	SetGrad(grad tensor.Tensor)
//	    Sets the gradient tensor.
//
//	ZeroGrad()
//	    Clears the gradient tensor.
type Parameter = nn.Parameter

// NewParameter creates a new trainable parameter wrapping t.
func NewParameter(name string, t *tensor.Dense) *Parameter {
	return nn.NewParameter(name, t)
}
