// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor_test

import (
	"testing"

	"github.com/born-ml/optbench/tensor"
)

// TestTensorInterface verifies that both layouts implement tensor.Tensor.
func TestTensorInterface(_ *testing.T) {
	var _ tensor.Tensor = (*tensor.Dense)(nil)
	var _ tensor.Tensor = (*tensor.Sparse)(nil)
}

// TestDenseAPI verifies the Dense alias exposes the constructors and in-place ops.
func TestDenseAPI(t *testing.T) {
	w, err := tensor.FromSlice([]float64{1, 2, 3, 4}, tensor.Shape{2, 2})
	if err != nil {
		t.Fatalf("FromSlice failed: %v", err)
	}

	if !w.Shape().Equal(tensor.Shape{2, 2}) {
		t.Errorf("Shape() = %v, want (2, 2)", w.Shape())
	}
	if n := w.NumElements(); n != 4 {
		t.Errorf("NumElements() = %d, want 4", n)
	}

	w.AddScaled(-0.5, tensor.Full(tensor.Shape{2, 2}, 2))
	want := []float64{0, 1, 2, 3}
	for i, v := range w.Data() {
		if v != want[i] {
			t.Errorf("Data()[%d] = %v, want %v", i, v, want[i])
		}
	}

	z := tensor.ZerosLike(w)
	if z.Sum() != 0 || !z.Shape().Equal(w.Shape()) {
		t.Errorf("ZerosLike() = %v, want zeros of shape %v", z, w.Shape())
	}

	if _, err := tensor.FromSlice([]float64{1}, tensor.Shape{2}); err == nil {
		t.Error("FromSlice with wrong length should fail")
	}
}

// TestSparseAPI verifies sparse gradients densify with duplicates summed.
func TestSparseAPI(t *testing.T) {
	g, err := tensor.NewSparse(tensor.Shape{4}, []int{3, 3, 0}, []float64{1, 2, -1})
	if err != nil {
		t.Fatalf("NewSparse failed: %v", err)
	}
	if !g.IsSparse() {
		t.Error("IsSparse() = false, want true")
	}

	d := g.ToDense()
	want := tensor.MustFromSlice([]float64{-1, 0, 0, 3}, tensor.Shape{4})
	if !d.Equal(want) {
		t.Errorf("ToDense() = %v, want %v", d, want)
	}
}
