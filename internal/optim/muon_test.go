package optim_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/optbench/internal/nn"
	"github.com/born-ml/optbench/internal/optim"
	"github.com/born-ml/optbench/internal/tensor"
)

func TestMuonLite_NormalizedStep(t *testing.T) {
	param := newParam("w", 2.0)
	optimizer, err := optim.NewMuonLite([]*nn.Parameter{param}, optim.MuonLiteConfig{LR: 0.1, Momentum: 0})
	require.NoError(t, err)

	setGrad(param, 4.0)
	_, err = optimizer.Step(nil)
	require.NoError(t, err)

	// g / ‖g‖ = 1, buffer = 1, w = 2 - 0.1 * 1
	assert.InDelta(t, 1.9, param.Tensor().Data()[0], 1e-12)
	st, ok := optimizer.State(param)
	require.True(t, ok)
	assert.InDelta(t, 1.0, st.MomentumBuffer.Data()[0], 1e-12)
}

func TestMuonLite_ScaleInvariant(t *testing.T) {
	for _, k := range []float64{1e-6, 0.5, 10, 1e6} {
		ref := newParam("ref", 1, -1)
		scaled := newParam("scaled", 1, -1)

		refOpt, err := optim.NewMuonLite([]*nn.Parameter{ref}, optim.DefaultMuonLiteConfig())
		require.NoError(t, err)
		scaledOpt, err := optim.NewMuonLite([]*nn.Parameter{scaled}, optim.DefaultMuonLiteConfig())
		require.NoError(t, err)

		for i := 0; i < 3; i++ {
			setGrad(ref, 3, 4)
			setGrad(scaled, 3*k, 4*k)
			_, err = refOpt.Step(nil)
			require.NoError(t, err)
			_, err = scaledOpt.Step(nil)
			require.NoError(t, err)
		}

		assert.True(t, ref.Tensor().EqualApprox(scaled.Tensor(), 1e-12), "k=%v", k)
	}
}

func TestMuonLite_MomentumAccumulates(t *testing.T) {
	param := newParam("w", 0, 0)
	optimizer, err := optim.NewMuonLite([]*nn.Parameter{param}, optim.MuonLiteConfig{LR: 1, Momentum: 0.5})
	require.NoError(t, err)

	// direction is [0.6, 0.8] on every step.
	setGrad(param, 3, 4)
	_, err = optimizer.Step(nil)
	require.NoError(t, err)
	// buf = 0.5 * [0.6, 0.8]
	assert.InDeltaSlice(t, []float64{-0.3, -0.4}, param.Tensor().Data(), 1e-12)

	_, err = optimizer.Step(nil)
	require.NoError(t, err)
	// buf = 0.5 * buf + 0.5 * dir = 0.75 * dir
	assert.InDeltaSlice(t, []float64{-0.75, -1.0}, param.Tensor().Data(), 1e-12)
}

func TestMuonLite_ZeroGradient(t *testing.T) {
	param := newParam("w", 1, 1)
	optimizer, err := optim.NewMuonLite([]*nn.Parameter{param}, optim.DefaultMuonLiteConfig())
	require.NoError(t, err)

	setGrad(param, 0, 0)
	_, err = optimizer.Step(nil)
	require.NoError(t, err)

	// ‖g‖ is floored at eps so nothing divides by zero.
	assert.Equal(t, []float64{1, 1}, param.Tensor().Data())
}

func TestMuonLite_WeightDecayBeforeNormalization(t *testing.T) {
	param := newParam("w", 3)
	optimizer, err := optim.NewMuonLite([]*nn.Parameter{param},
		optim.MuonLiteConfig{LR: 0.1, Momentum: 0, WeightDecay: 1})
	require.NoError(t, err)

	// g + wd*w = -3 + 3 = 0: the decay cancels the gradient exactly.
	setGrad(param, -3)
	_, err = optimizer.Step(nil)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, param.Tensor().Data()[0], 1e-12)
}

func TestMuonLite_SparseGradient(t *testing.T) {
	param := newParam("emb", 1, 1, 1, 1)
	optimizer, err := optim.NewMuonLite([]*nn.Parameter{param}, optim.MuonLiteConfig{LR: 0.5, Momentum: 0})
	require.NoError(t, err)

	grad, err := tensor.NewSparse(tensor.Shape{4}, []int{3}, []float64{-2})
	require.NoError(t, err)
	param.SetGrad(grad)

	_, err = optimizer.Step(nil)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, 1, 1, 1.5}, param.Tensor().Data(), 1e-12)
}

func TestMuonLite_SkipsMissingGradients(t *testing.T) {
	a := newParam("a", 1)
	b := newParam("b", 1)
	optimizer, err := optim.NewMuonLite([]*nn.Parameter{a, b}, optim.DefaultMuonLiteConfig())
	require.NoError(t, err)

	setGrad(a, 1)
	_, err = optimizer.Step(nil)
	require.NoError(t, err)

	assert.Equal(t, 1.0, b.Tensor().Data()[0])
	_, ok := optimizer.State(b)
	assert.False(t, ok)
}
