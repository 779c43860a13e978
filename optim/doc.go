// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides optimization algorithms for training models.
//
// # Overview
//
// This package contains:
//   - LAMB: layer-wise adaptive moments with a per-tensor trust ratio
//   - SAM: Sharpness-Aware Minimization, a two-pass wrapper around any optimizer
//   - MuonLite: unit-norm gradient direction fed into an EMA momentum buffer
//   - SGD, AdamW, Adafactor: baselines
//   - A registry that builds any of them from a Spec
//   - A warmup + cosine learning rate schedule
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/optbench/nn"
//	    "github.com/born-ml/optbench/optim"
//	    "github.com/born-ml/optbench/tensor"
//	)
//
//	func main() {
//	    w := nn.NewParameter("w", tensor.Zeros(tensor.Shape{10, 4}))
//
//	    optimizer, err := optim.NewLAMB([]*nn.Parameter{w}, optim.LAMBConfig{
//	        LR:          1e-3,
//	        WeightDecay: 0.01,
//	    })
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    for step := range 100 {
//	        optimizer.ZeroGrad()
//	        loss := computeLossAndGradients() // sets w's gradient
//	        if _, err := optimizer.Step(nil); err != nil {
//	            log.Fatal(err)
//	        }
//	    }
//	}
//
// # SAM
//
// SAM needs two gradient evaluations per update. Either drive the phases
// yourself:
//
//	optimizer.ZeroGrad()
//	computeLossAndGradients()
//	optimizer.FirstStep()  // w ← w + e(w)
//	optimizer.ZeroGrad()
//	computeLossAndGradients()
//	optimizer.SecondStep() // w ← w - e(w), then base step
//
// or pass a closure and let Step do both passes:
//
//	loss, err := optimizer.Step(computeLossAndGradients)
//
// # Registry
//
// Kinds are selected by name; Build is the only place that maps a Spec to a
// constructor:
//
//	kind, _ := optim.ParseKind("muon")
//	spec, _ := optim.DefaultSpec(kind)
//	opt, err := optim.Build(spec, params)
//
// # Errors
//
// Step and the constructors return errors that wrap one of:
//   - ErrUnsupportedInput: sparse gradient to a dense-only optimizer
//   - ErrInvalidState: SAM phase misuse
//   - ErrConfiguration: bad hyperparameters, unknown optimizer names,
//     gradient/parameter shape mismatch
//
// Test with errors.Is. A failed Step leaves every parameter and state
// tensor unchanged.
package optim
