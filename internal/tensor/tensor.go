// Package tensor implements the dense float64 arrays that optimizers update.
//
// The package is intentionally small: a row-major Dense tensor with the
// in-place elementwise operations optimizer steps need (scale, axpy, addcmul,
// sqrt, norms), and a COO Sparse tensor used only to represent sparse
// gradients. Arithmetic is delegated to gonum's floats package.
//
// In-place operations return their receiver so updates read like the math:
//
//	expAvg.Scale(beta1).AddScaled(1-beta1, grad)
//	expAvgSq.Scale(beta2).AddMul(1-beta2, grad, grad)
//
// Binary operations require identical shapes and panic otherwise; callers
// that accept external input validate shapes first.
package tensor

// Tensor is the read-only view shared by dense and sparse tensors.
//
// Gradients are passed around as Tensor so that algorithms which only
// support dense inputs can detect and reject a sparse representation.
type Tensor interface {
	// Shape returns the tensor's logical shape.
	Shape() Shape

	// NumElements returns the number of logical elements.
	NumElements() int

	// IsSparse reports whether the tensor uses a sparse layout.
	IsSparse() bool

	// ToDense returns a dense view. Dense tensors return themselves;
	// sparse tensors materialize a new Dense.
	ToDense() *Dense
}

var (
	_ Tensor = (*Dense)(nil)
	_ Tensor = (*Sparse)(nil)
)
