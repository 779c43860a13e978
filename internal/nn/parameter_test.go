package nn_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/born-ml/optbench/internal/nn"
	"github.com/born-ml/optbench/internal/tensor"
)

func TestParameter_GradLifecycle(t *testing.T) {
	p := nn.NewParameter("w", tensor.MustFromSlice([]float64{1, 2}, tensor.Shape{2}))
	assert.Equal(t, "w", p.Name())
	assert.True(t, p.Shape().Equal(tensor.Shape{2}))
	assert.Nil(t, p.Grad(), "gradient starts absent")

	p.SetGrad(tensor.MustFromSlice([]float64{0.5, 0.5}, tensor.Shape{2}))
	assert.NotNil(t, p.Grad())

	p.ZeroGrad()
	assert.Nil(t, p.Grad(), "ZeroGrad makes the gradient absent")
}

func TestParameter_IdentityNotValue(t *testing.T) {
	a := nn.NewParameter("a", tensor.Zeros(tensor.Shape{2}))
	b := nn.NewParameter("a", tensor.Zeros(tensor.Shape{2}))

	seen := map[*nn.Parameter]bool{a: true}
	assert.False(t, seen[b], "equal contents are distinct parameters")
}
