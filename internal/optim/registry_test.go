package optim_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/optbench/internal/nn"
	"github.com/born-ml/optbench/internal/optim"
)

func TestParseKind(t *testing.T) {
	for _, k := range optim.Kinds() {
		got, err := optim.ParseKind(string(k))
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}

	got, err := optim.ParseKind("  LAMB ")
	require.NoError(t, err)
	assert.Equal(t, optim.KindLAMB, got)

	_, err = optim.ParseKind("rmsprop")
	require.ErrorIs(t, err, optim.ErrConfiguration)
}

func TestBuild_DefaultSpecs(t *testing.T) {
	want := map[optim.Kind]optim.Optimizer{
		optim.KindSGDMomentum: &optim.SGD{},
		optim.KindAdamW:       &optim.AdamW{},
		optim.KindLAMB:        &optim.LAMB{},
		optim.KindAdafactor:   &optim.Adafactor{},
		optim.KindSAM:         &optim.SAM{},
		optim.KindMuon:        &optim.MuonLite{},
	}

	for _, k := range optim.Kinds() {
		t.Run(string(k), func(t *testing.T) {
			spec, err := optim.DefaultSpec(k)
			require.NoError(t, err)
			assert.Equal(t, k, spec.Kind())

			p := newParam("w", 1, 2)
			opt, err := optim.Build(spec, []*nn.Parameter{p})
			require.NoError(t, err)
			assert.IsType(t, want[k], opt)
			assert.Equal(t, []*nn.Parameter{p}, opt.Params())

			// Every built optimizer completes a step through the common interface.
			_, err = opt.Step(func() (float64, error) {
				setGrad(p, 0.1, -0.1)
				return 1, nil
			})
			require.NoError(t, err)
			assert.NotEqual(t, []float64{1, 2}, p.Tensor().Data())
		})
	}
}

func TestBuild_SAMWrapsSGD(t *testing.T) {
	spec := optim.SAMSpec{
		Base:   optim.SGDConfig{LR: 0.2, Momentum: 0.9},
		Config: optim.SAMConfig{Rho: 0.1},
	}
	opt, err := optim.Build(spec, []*nn.Parameter{newParam("w", 1)})
	require.NoError(t, err)

	sam, ok := opt.(*optim.SAM)
	require.True(t, ok)
	assert.IsType(t, &optim.SGD{}, sam.Base())
	assert.Equal(t, 0.2, sam.GetLR())
}

func TestBuild_Errors(t *testing.T) {
	params := []*nn.Parameter{newParam("w", 1)}

	_, err := optim.Build(nil, params)
	require.ErrorIs(t, err, optim.ErrConfiguration)

	opt, err := optim.Build(optim.LAMBSpec{Config: optim.LAMBConfig{Eps: -1}}, params)
	require.ErrorIs(t, err, optim.ErrConfiguration)
	assert.True(t, opt == nil, "failed build returns a nil interface, got %#v", opt)

	opt, err = optim.Build(optim.SAMSpec{Base: optim.SGDConfig{Nesterov: true}}, params)
	require.ErrorIs(t, err, optim.ErrConfiguration)
	assert.True(t, opt == nil, "failed build returns a nil interface, got %#v", opt)

	opt, err = optim.Build(optim.SAMSpec{Base: optim.DefaultSGDConfig(), Config: optim.SAMConfig{Rho: -1}}, params)
	require.ErrorIs(t, err, optim.ErrConfiguration)
	assert.True(t, opt == nil, "failed build returns a nil interface, got %#v", opt)

	_, err = optim.DefaultSpec("rmsprop")
	require.ErrorIs(t, err, optim.ErrConfiguration)
}
