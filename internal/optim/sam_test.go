package optim_test

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/optbench/internal/nn"
	"github.com/born-ml/optbench/internal/optim"
)

func newSAM(t *testing.T, params ...*nn.Parameter) *optim.SAM {
	t.Helper()
	base, err := optim.NewSGD(params, optim.SGDConfig{LR: 0.1})
	require.NoError(t, err)
	sam, err := optim.NewSAM(base, optim.SAMConfig{Rho: 0.05})
	require.NoError(t, err)
	return sam
}

func TestSAM_PerturbAndRestore(t *testing.T) {
	param := newParam("w", 1, 2)
	sam := newSAM(t, param)

	setGrad(param, 3, 4)
	require.NoError(t, sam.FirstStep())

	// e(w) = 0.05 * [3, 4] / 5 = [0.03, 0.04]
	assert.InDeltaSlice(t, []float64{1.03, 2.04}, param.Tensor().Data(), 1e-12)
	assert.Equal(t, optim.PhasePerturbed, sam.Phase())
	assert.True(t, sam.Stashed(param))

	sam.ZeroGrad()
	setGrad(param, 1, 1)
	require.NoError(t, sam.SecondStep())

	// Restored to [1, 2], then SGD with the second gradient.
	assert.InDeltaSlice(t, []float64{0.9, 1.9}, param.Tensor().Data(), 1e-12)
	assert.Equal(t, optim.PhaseReady, sam.Phase())
}

func TestSAM_GlobalNormAcrossParameters(t *testing.T) {
	a := newParam("a", 0)
	b := newParam("b", 0)
	sam := newSAM(t, a, b)

	setGrad(a, 3)
	setGrad(b, 4)
	require.NoError(t, sam.FirstStep())

	assert.InDelta(t, 0.03, a.Tensor().Data()[0], 1e-12)
	assert.InDelta(t, 0.04, b.Tensor().Data()[0], 1e-12)
}

func TestSAM_ZeroGradientIsFinite(t *testing.T) {
	param := newParam("w", 1, 2)
	sam := newSAM(t, param)

	setGrad(param, 0, 0)
	require.NoError(t, sam.FirstStep())
	assert.Equal(t, []float64{1, 2}, param.Tensor().Data())

	require.NoError(t, sam.SecondStep())
	assert.Equal(t, []float64{1, 2}, param.Tensor().Data())
}

func TestSAM_PhaseErrors(t *testing.T) {
	param := newParam("w", 1, 2)
	sam := newSAM(t, param)

	err := sam.SecondStep()
	require.ErrorIs(t, err, optim.ErrInvalidState)
	assert.Equal(t, []float64{1, 2}, param.Tensor().Data())

	setGrad(param, 3, 4)
	require.NoError(t, sam.FirstStep())

	err = sam.FirstStep()
	require.ErrorIs(t, err, optim.ErrInvalidState)
	assert.InDeltaSlice(t, []float64{1.03, 2.04}, param.Tensor().Data(), 1e-12, "not perturbed twice")
}

func TestSAM_StashClearedAfterSecondStep(t *testing.T) {
	a := newParam("a", 1)
	b := newParam("b", 1)
	c := newParam("c", 1)
	sam := newSAM(t, a, b, c)

	setGrad(a, 1)
	setGrad(c, 1)
	require.NoError(t, sam.FirstStep())
	assert.True(t, sam.Stashed(a))
	assert.False(t, sam.Stashed(b), "no gradient, no perturbation")
	assert.True(t, sam.Stashed(c))

	require.NoError(t, sam.SecondStep())
	for _, p := range []*nn.Parameter{a, b, c} {
		assert.False(t, sam.Stashed(p), p.Name())
	}
	assert.False(t, sam.Stashed(newParam("untracked", 0)))
}

func TestSAM_StepWithClosure(t *testing.T) {
	param := newParam("w", 1, 2)
	sam := newSAM(t, param)

	var seen [][]float64
	calls := 0
	closure := func() (float64, error) {
		calls++
		seen = append(seen, param.Tensor().Clone().Data())
		if calls == 1 {
			setGrad(param, 3, 4)
		} else {
			setGrad(param, 1, 1)
		}
		return float64(calls), nil
	}

	loss, err := sam.Step(closure)
	require.NoError(t, err)
	assert.Equal(t, 2.0, loss, "loss of the perturbed evaluation")
	assert.Equal(t, 2, calls)
	assert.InDeltaSlice(t, []float64{1, 2}, seen[0], 1e-12)
	assert.InDeltaSlice(t, []float64{1.03, 2.04}, seen[1], 1e-12)
	assert.InDeltaSlice(t, []float64{0.9, 1.9}, param.Tensor().Data(), 1e-12)
}

func TestSAM_StepRequiresClosure(t *testing.T) {
	sam := newSAM(t, newParam("w", 1))
	_, err := sam.Step(nil)
	require.ErrorIs(t, err, optim.ErrInvalidState)
}

func TestSAM_SecondClosureFailureRestores(t *testing.T) {
	param := newParam("w", 1, 2)
	sam := newSAM(t, param)

	boom := errors.New("boom")
	calls := 0
	_, err := sam.Step(func() (float64, error) {
		calls++
		if calls == 2 {
			return 0, boom
		}
		setGrad(param, 3, 4)
		return 1, nil
	})
	require.ErrorIs(t, err, boom)
	assert.InDeltaSlice(t, []float64{1, 2}, param.Tensor().Data(), 1e-12)
	assert.Equal(t, optim.PhaseReady, sam.Phase())
	assert.False(t, sam.Stashed(param))
}

func TestSAM_DelegatesLearningRate(t *testing.T) {
	sam := newSAM(t, newParam("w", 1))
	assert.Equal(t, 0.1, sam.GetLR())

	sam.SetLR(0.2)
	assert.Equal(t, 0.2, sam.Base().GetLR())
	assert.Equal(t, 1, sam.NumGroups())

	sam.SetGroupLR(0, 0.3)
	assert.Equal(t, 0.3, sam.GroupLR(0))
}

func TestSAM_Construction(t *testing.T) {
	_, err := optim.NewSAM(nil, optim.SAMConfig{})
	require.ErrorIs(t, err, optim.ErrConfiguration)

	base, err := optim.NewSGD([]*nn.Parameter{newParam("w", 1)}, optim.SGDConfig{LR: 0.1})
	require.NoError(t, err)
	_, err = optim.NewSAM(base, optim.SAMConfig{Rho: -1})
	require.ErrorIs(t, err, optim.ErrConfiguration)

	sam, err := optim.NewSAM(base, optim.SAMConfig{})
	require.NoError(t, err)
	assert.Equal(t, base.Params(), sam.Params())
	assert.Equal(t, "ready", sam.Phase().String())
}

func TestSAM_ZeroRhoIsKept(t *testing.T) {
	param := newParam("w", 1, 2)
	base, err := optim.NewSGD([]*nn.Parameter{param}, optim.SGDConfig{LR: 0.1})
	require.NoError(t, err)
	sam, err := optim.NewSAM(base, optim.SAMConfig{Rho: 0})
	require.NoError(t, err)

	setGrad(param, 3, 4)
	require.NoError(t, sam.FirstStep())
	assert.Equal(t, []float64{1, 2}, param.Tensor().Data())

	require.NoError(t, sam.SecondStep())
	assert.InDeltaSlice(t, []float64{0.7, 1.6}, param.Tensor().Data(), 1e-12)
}
