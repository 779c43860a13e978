// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the trainable parameter type used by optbench.
//
// # Overview
//
// A Parameter pairs a mutable dense tensor with its most recent gradient.
// Objectives write gradients into parameters; optimizers read them and
// update the tensors in place.
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/optbench/nn"
//	    "github.com/born-ml/optbench/tensor"
//	)
//
//	func main() {
//	    w := nn.NewParameter("weight", tensor.Zeros(tensor.Shape{10, 4}))
//
//	    // After computing the gradient
//	    w.SetGrad(grad)
//
//	    // Before the next loss evaluation
//	    w.ZeroGrad()
//	}
//
// # Identity
//
// Optimizers key their per-parameter state by the *Parameter pointer, so a
// parameter keeps its state across steps even if its values change, and two
// parameters with equal values never share state.
package nn
