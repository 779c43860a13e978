package optim_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/optbench/internal/nn"
	"github.com/born-ml/optbench/internal/optim"
	"github.com/born-ml/optbench/internal/tensor"
)

func TestLAMB_FirstStep(t *testing.T) {
	param := newParam("w", 1.0, 1.0)
	optimizer, err := optim.NewLAMB([]*nn.Parameter{param}, optim.LAMBConfig{
		LR:    0.01,
		Betas: [2]float64{0.9, 0.999},
		Eps:   1e-8,
	})
	require.NoError(t, err)

	setGrad(param, 0.1, 0.0)
	_, err = optimizer.Step(nil)
	require.NoError(t, err)

	st, ok := optimizer.State(param)
	require.True(t, ok)
	assert.Equal(t, 1, st.Step)
	assert.InDeltaSlice(t, []float64{0.01, 0}, st.ExpAvg.Data(), 1e-15)
	assert.InDeltaSlice(t, []float64{1e-5, 0}, st.ExpAvgSq.Data(), 1e-18)

	// update = [0.01 / (sqrt(1e-5) + 1e-8), 0]
	// trust = ‖w‖ / ‖update‖ = √2 / 3.1622... ≈ 0.447, below the clamp
	u := 0.01 / (math.Sqrt(1e-5) + 1e-8)
	trust := math.Sqrt2 / u
	require.Less(t, trust, 10.0)

	data := param.Tensor().Data()
	assert.InDelta(t, 1-0.01*trust*u, data[0], 1e-12)
	assert.InDelta(t, 1-0.01*math.Sqrt2, data[0], 1e-12)
	assert.Equal(t, 1.0, data[1], "zero gradient coordinate does not move")
}

func TestLAMB_TrustRatioClamped(t *testing.T) {
	// With large weights ‖w‖/‖update‖ ≈ 447, so the ratio is clamped to 10.
	param := newParam("w", 1000, 1000)
	optimizer, err := optim.NewLAMB([]*nn.Parameter{param}, optim.LAMBConfig{LR: 0.01})
	require.NoError(t, err)

	setGrad(param, 0.1, 0.0)
	_, err = optimizer.Step(nil)
	require.NoError(t, err)

	u := 0.01 / (math.Sqrt(1e-5) + 1e-8)
	data := param.Tensor().Data()
	assert.InDelta(t, 1000-0.01*10*u, data[0], 1e-9)
	assert.Equal(t, 1000.0, data[1])
}

func TestLAMB_ZeroWeightsStillMove(t *testing.T) {
	// ‖w‖ = 0 is floored at eps, so the step is lr * eps/‖u‖ * u.
	param := newParam("w", 0, 0)
	optimizer, err := optim.NewLAMB([]*nn.Parameter{param}, optim.LAMBConfig{LR: 0.1})
	require.NoError(t, err)

	setGrad(param, 1, 0)
	_, err = optimizer.Step(nil)
	require.NoError(t, err)

	data := param.Tensor().Data()
	assert.Less(t, data[0], 0.0)
	assert.InDelta(t, -0.1*1e-8, data[0], 1e-15)
	assert.False(t, math.IsNaN(data[0]))
}

func TestLAMB_WeightDecayEntersUpdate(t *testing.T) {
	// With a zero gradient the whole update is wd * w, so trust * ‖update‖ = ‖w‖
	// and each coordinate shrinks by exactly lr * w.
	param := newParam("w", 2, -4)
	optimizer, err := optim.NewLAMB([]*nn.Parameter{param}, optim.LAMBConfig{LR: 0.1, WeightDecay: 0.5})
	require.NoError(t, err)

	setGrad(param, 0, 0)
	_, err = optimizer.Step(nil)
	require.NoError(t, err)

	assert.InDeltaSlice(t, []float64{1.8, -3.6}, param.Tensor().Data(), 1e-12)
}

func TestLAMB_StepCountsOnlyUpdates(t *testing.T) {
	a := newParam("a", 1, 2)
	b := newParam("b", 3)
	optimizer, err := optim.NewLAMB([]*nn.Parameter{a, b}, optim.LAMBConfig{LR: 0.01})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		setGrad(a, 0.1, 0.2)
		if i%2 == 0 {
			setGrad(b, 0.3)
		}
		_, err := optimizer.Step(nil)
		require.NoError(t, err)
		optimizer.ZeroGrad()
	}

	stA, ok := optimizer.State(a)
	require.True(t, ok)
	stB, ok := optimizer.State(b)
	require.True(t, ok)
	assert.Equal(t, 5, stA.Step)
	assert.Equal(t, 3, stB.Step)
}

func TestLAMB_MissingGradientLeavesParameterAndState(t *testing.T) {
	a := newParam("a", 1, 2)
	b := newParam("b", 3)
	optimizer, err := optim.NewLAMB([]*nn.Parameter{a, b}, optim.LAMBConfig{LR: 0.01})
	require.NoError(t, err)

	setGrad(a, 0.1, 0.2)
	_, err = optimizer.Step(nil)
	require.NoError(t, err)

	_, ok := optimizer.State(b)
	assert.False(t, ok, "no state before the first gradient")
	assert.Equal(t, []float64{3}, b.Tensor().Data())

	stA, _ := optimizer.State(a)
	expAvg := stA.ExpAvg.Clone()
	before := a.Tensor().Clone()

	optimizer.ZeroGrad()
	setGrad(b, 0.5)
	_, err = optimizer.Step(nil)
	require.NoError(t, err)

	assert.True(t, a.Tensor().Equal(before))
	assert.True(t, stA.ExpAvg.Equal(expAvg))
	assert.Equal(t, 1, stA.Step)
}

func TestLAMB_RejectsSparseWithoutMutation(t *testing.T) {
	dense := newParam("dense", 1, 2)
	emb := newParam("emb", 3, 4, 5)
	optimizer, err := optim.NewLAMB([]*nn.Parameter{dense, emb}, optim.LAMBConfig{LR: 0.1})
	require.NoError(t, err)

	setGrad(dense, 1, 1)
	sparse, err := tensor.NewSparse(tensor.Shape{3}, []int{2}, []float64{1})
	require.NoError(t, err)
	emb.SetGrad(sparse)

	_, err = optimizer.Step(nil)
	require.ErrorIs(t, err, optim.ErrUnsupportedInput)

	assert.Equal(t, []float64{1, 2}, dense.Tensor().Data())
	assert.Equal(t, []float64{3, 4, 5}, emb.Tensor().Data())
	assert.Zero(t, optimizer.StateStore().Len())
}

func TestLAMB_MatrixParameter(t *testing.T) {
	w := nn.NewParameter("w", tensor.MustFromSlice([]float64{1, 2, 3, 4}, tensor.Shape{2, 2}))
	optimizer, err := optim.NewLAMB([]*nn.Parameter{w}, optim.LAMBConfig{LR: 0.01})
	require.NoError(t, err)

	before := w.Tensor().Norm()
	w.SetGrad(tensor.Full(tensor.Shape{2, 2}, 1))
	_, err = optimizer.Step(nil)
	require.NoError(t, err)

	// All coordinates receive the same update, scaled so its norm is lr * ‖w‖.
	delta := tensor.MustFromSlice([]float64{1, 2, 3, 4}, tensor.Shape{2, 2}).Sub(w.Tensor())
	assert.InDelta(t, 0.01*before, delta.Norm(), 1e-10)
}
