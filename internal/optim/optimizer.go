// Package optim implements optimization algorithms for training models.
//
// This package provides:
//   - Optimizer interface: Base interface for all optimizers
//   - LAMB: layer-wise trust-ratio scaled adaptive moments
//   - SAM: Sharpness-Aware Minimization around any base optimizer
//   - MuonLite: normalized-gradient momentum ("directional conditioning")
//   - SGD (with momentum / Nesterov), AdamW and Adafactor baselines
//   - Build: a closed registry selecting one of the above from a Spec
//
// Design inspired by PyTorch's torch.optim but adapted for Go: parameters
// are grouped into Group values carrying typed hyperparameters, every
// parameter receives a stable ParamID at construction, and per-parameter
// state lives in an arena indexed by that id.
//
// Example usage:
//
//	optimizer, err := optim.NewLAMB(params, optim.LAMBConfig{LR: 1e-3})
//	if err != nil {
//	    return err
//	}
//
//	for step := range steps {
//	    optimizer.ZeroGrad()
//	    loss := computeLossAndGradients(params)
//	    if _, err := optimizer.Step(nil); err != nil {
//	        return err
//	    }
//	}
//
// Steps are compute-then-commit: every gradient is validated before any
// parameter or state is touched, so a failed step leaves the model exactly
// as it was.
package optim

import (
	"github.com/born-ml/optbench/internal/nn"
)

// Closure recomputes the loss and populates parameter gradients.
//
// Passed to Step when the optimizer should own the forward/backward call.
type Closure func() (float64, error)

// Optimizer is the base interface for all optimization algorithms.
//
// Optimizers update model parameters in place based on the gradients
// attached to them. Parameters whose gradient is absent are skipped and
// their state is left untouched.
type Optimizer interface {
	// Step applies one update to every parameter with a gradient.
	//
	// If closure is non-nil it is invoked first and its loss returned;
	// otherwise the returned loss is 0.
	Step(closure Closure) (float64, error)

	// ZeroGrad clears all parameter gradients to absent.
	//
	// This should be called before each backward pass to prevent
	// stale gradients from the previous iteration being applied.
	ZeroGrad()

	// GetLR returns the learning rate of the first parameter group.
	GetLR() float64

	// SetLR sets the learning rate of every parameter group.
	SetLR(lr float64)

	// NumGroups returns the number of parameter groups.
	NumGroups() int

	// GroupLR returns the learning rate of group i.
	GroupLR(i int) float64

	// SetGroupLR sets the learning rate of group i.
	//
	// Useful for learning rate scheduling during training.
	SetGroupLR(i int, lr float64)

	// Params returns all tracked parameters in ParamID order.
	Params() []*nn.Parameter
}

// evalClosure runs the optional closure.
func evalClosure(closure Closure) (float64, error) {
	if closure == nil {
		return 0, nil
	}
	return closure()
}
