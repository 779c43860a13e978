// Package nn holds the trainable parameter type shared by optimizers and
// objectives.
package nn

import (
	"github.com/born-ml/optbench/internal/tensor"
)

// Parameter represents a trainable parameter.
//
// A parameter owns a mutable dense tensor that optimizers update in place,
// plus the gradient most recently computed for it. The gradient may be
// absent (nil), which optimizers treat as "skip this parameter this step".
//
// Parameters are identified by pointer: two parameters with identical
// contents are still distinct.
//
// Example:
//
//	w := nn.NewParameter("linear.weight", tensor.Zeros(tensor.Shape{10, 4}))
//	w.SetGrad(grad)
//	optimizer.Step(nil)
//	w.ZeroGrad()
type Parameter struct {
	name   string        // Parameter name (e.g., "weight", "bias")
	tensor *tensor.Dense // The parameter tensor
	grad   tensor.Tensor // Gradient (nil when absent)
}

// NewParameter creates a new trainable parameter.
//
// Parameters:
//   - name: Descriptive name for this parameter (e.g., "linear1.weight")
//   - t: The initialized parameter tensor
func NewParameter(name string, t *tensor.Dense) *Parameter {
	return &Parameter{
		name:   name,
		tensor: t,
	}
}

// Name returns the parameter name.
func (p *Parameter) Name() string {
	return p.name
}

// Tensor returns the parameter tensor.
func (p *Parameter) Tensor() *tensor.Dense {
	return p.tensor
}

// Shape returns the parameter tensor's shape.
func (p *Parameter) Shape() tensor.Shape {
	return p.tensor.Shape()
}

// Grad returns the gradient tensor, or nil if none is present.
func (p *Parameter) Grad() tensor.Tensor {
	return p.grad
}

// SetGrad sets the gradient tensor.
//
// The gradient may be dense or sparse; shape checks are left to the
// optimizer so a bad gradient surfaces as a step error.
func (p *Parameter) SetGrad(grad tensor.Tensor) {
	p.grad = grad
}

// ZeroGrad clears the gradient.
//
// Should be called before each backward computation so gradients from the
// previous iteration are not reused.
func (p *Parameter) ZeroGrad() {
	p.grad = nil
}
