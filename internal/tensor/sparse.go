package tensor

import "github.com/pkg/errors"

// Sparse is a coordinate-format (COO) tensor.
//
// Indices are flat row-major offsets into the logical shape. Duplicate
// indices are allowed and are summed when densified, matching how sparse
// embedding gradients accumulate.
type Sparse struct {
	shape   Shape
	indices []int
	values  []float64
}

// NewSparse creates a sparse tensor from flat indices and their values.
func NewSparse(shape Shape, indices []int, values []float64) (*Sparse, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	if len(indices) != len(values) {
		return nil, errors.Errorf("tensor: %d indices but %d values", len(indices), len(values))
	}
	n := shape.NumElements()
	for _, idx := range indices {
		if idx < 0 || idx >= n {
			return nil, errors.Errorf("tensor: sparse index %d out of range for shape %v", idx, shape)
		}
	}

	s := &Sparse{
		shape:   shape.Clone(),
		indices: make([]int, len(indices)),
		values:  make([]float64, len(values)),
	}
	copy(s.indices, indices)
	copy(s.values, values)
	return s, nil
}

// Shape returns the logical shape.
func (s *Sparse) Shape() Shape {
	return s.shape
}

// NumElements returns the number of logical elements.
func (s *Sparse) NumElements() int {
	return s.shape.NumElements()
}

// IsSparse always returns true.
func (s *Sparse) IsSparse() bool {
	return true
}

// NNZ returns the number of stored entries (duplicates included).
func (s *Sparse) NNZ() int {
	return len(s.values)
}

// ToDense materializes a new dense tensor.
func (s *Sparse) ToDense() *Dense {
	out := Zeros(s.shape)
	for i, idx := range s.indices {
		out.data[idx] += s.values[i]
	}
	return out
}
