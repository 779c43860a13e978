package tensor

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// Dense is a row-major float64 tensor.
type Dense struct {
	shape Shape
	data  []float64
}

// Zeros creates a zero-filled tensor.
//
// Panics if the shape is invalid.
func Zeros(shape Shape) *Dense {
	if err := shape.Validate(); err != nil {
		panic(err)
	}
	return &Dense{
		shape: shape.Clone(),
		data:  make([]float64, shape.NumElements()),
	}
}

// ZerosLike creates a zero-filled tensor with the same shape as t.
func ZerosLike(t Tensor) *Dense {
	return Zeros(t.Shape())
}

// Full creates a tensor with every element set to value.
func Full(shape Shape, value float64) *Dense {
	return Zeros(shape).Fill(value)
}

// FromSlice creates a tensor from a Go slice.
// The slice is copied into the tensor's memory.
func FromSlice(data []float64, shape Shape) (*Dense, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	if shape.NumElements() != len(data) {
		return nil, errors.Errorf("tensor: shape %v requires %d elements, but got %d", shape, shape.NumElements(), len(data))
	}
	t := Zeros(shape)
	copy(t.data, data)
	return t, nil
}

// MustFromSlice is like FromSlice but panics on error.
func MustFromSlice(data []float64, shape Shape) *Dense {
	t, err := FromSlice(data, shape)
	if err != nil {
		panic(err)
	}
	return t
}

// Shape returns the tensor's shape.
func (t *Dense) Shape() Shape {
	return t.shape
}

// NumElements returns the total number of elements.
func (t *Dense) NumElements() int {
	return len(t.data)
}

// IsSparse always returns false.
func (t *Dense) IsSparse() bool {
	return false
}

// ToDense returns t itself.
func (t *Dense) ToDense() *Dense {
	return t
}

// Data returns the underlying storage. Writes are visible to the tensor.
func (t *Dense) Data() []float64 {
	return t.data
}

// At returns the element at the given multi-dimensional index.
func (t *Dense) At(index ...int) float64 {
	if len(index) != len(t.shape) {
		panic(fmt.Sprintf("tensor: index rank %d does not match shape %v", len(index), t.shape))
	}
	strides := t.shape.ComputeStrides()
	offset := 0
	for i, idx := range index {
		if idx < 0 || idx >= t.shape[i] {
			panic(fmt.Sprintf("tensor: index %v out of range for shape %v", index, t.shape))
		}
		offset += idx * strides[i]
	}
	return t.data[offset]
}

// Clone returns a deep copy.
func (t *Dense) Clone() *Dense {
	out := &Dense{shape: t.shape.Clone(), data: make([]float64, len(t.data))}
	copy(out.data, t.data)
	return out
}

// CopyFrom overwrites t with the contents of src.
func (t *Dense) CopyFrom(src *Dense) *Dense {
	t.mustMatch(src)
	copy(t.data, src.data)
	return t
}

// Fill sets every element to value.
func (t *Dense) Fill(value float64) *Dense {
	for i := range t.data {
		t.data[i] = value
	}
	return t
}

// Scale multiplies every element by c.
func (t *Dense) Scale(c float64) *Dense {
	floats.Scale(c, t.data)
	return t
}

// Add adds other elementwise.
func (t *Dense) Add(other *Dense) *Dense {
	t.mustMatch(other)
	floats.Add(t.data, other.data)
	return t
}

// Sub subtracts other elementwise.
func (t *Dense) Sub(other *Dense) *Dense {
	t.mustMatch(other)
	floats.Sub(t.data, other.data)
	return t
}

// AddScaled computes t += alpha * other.
func (t *Dense) AddScaled(alpha float64, other *Dense) *Dense {
	t.mustMatch(other)
	floats.AddScaled(t.data, alpha, other.data)
	return t
}

// AddMul computes t += value * a * b elementwise (addcmul).
func (t *Dense) AddMul(value float64, a, b *Dense) *Dense {
	t.mustMatch(a)
	t.mustMatch(b)
	for i := range t.data {
		t.data[i] += value * a.data[i] * b.data[i]
	}
	return t
}

// Mul multiplies by other elementwise.
func (t *Dense) Mul(other *Dense) *Dense {
	t.mustMatch(other)
	floats.Mul(t.data, other.data)
	return t
}

// Div divides by other elementwise.
func (t *Dense) Div(other *Dense) *Dense {
	t.mustMatch(other)
	floats.Div(t.data, other.data)
	return t
}

// AddConst adds c to every element.
func (t *Dense) AddConst(c float64) *Dense {
	floats.AddConst(c, t.data)
	return t
}

// Square squares every element.
func (t *Dense) Square() *Dense {
	floats.Mul(t.data, t.data)
	return t
}

// Sqrt takes the square root of every element.
func (t *Dense) Sqrt() *Dense {
	for i, v := range t.data {
		t.data[i] = math.Sqrt(v)
	}
	return t
}

// Rsqrt replaces every element with its reciprocal square root.
func (t *Dense) Rsqrt() *Dense {
	for i, v := range t.data {
		t.data[i] = 1 / math.Sqrt(v)
	}
	return t
}

// Norm returns the Euclidean (L2) norm over all elements.
func (t *Dense) Norm() float64 {
	return floats.Norm(t.data, 2)
}

// Sum returns the sum of all elements.
func (t *Dense) Sum() float64 {
	return floats.Sum(t.data)
}

// Mean returns the arithmetic mean of all elements.
func (t *Dense) Mean() float64 {
	return floats.Sum(t.data) / float64(len(t.data))
}

// RMS returns the root mean square, ‖t‖₂ / sqrt(n).
func (t *Dense) RMS() float64 {
	return t.Norm() / math.Sqrt(float64(len(t.data)))
}

// Equal reports whether both tensors have the same shape and identical elements.
func (t *Dense) Equal(other *Dense) bool {
	return t.shape.Equal(other.shape) && floats.Equal(t.data, other.data)
}

// EqualApprox is like Equal but allows an absolute tolerance per element.
func (t *Dense) EqualApprox(other *Dense, tol float64) bool {
	return t.shape.Equal(other.shape) && floats.EqualApprox(t.data, other.data, tol)
}

// String implements fmt.Stringer.
func (t *Dense) String() string {
	return fmt.Sprintf("Dense%v%v", t.shape, t.data)
}

func (t *Dense) mustMatch(other *Dense) {
	if !t.shape.Equal(other.shape) {
		panic(fmt.Sprintf("tensor: shape mismatch %v vs %v", t.shape, other.shape))
	}
}
