package bench_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/optbench/internal/bench"
	"github.com/born-ml/optbench/internal/config"
	"github.com/born-ml/optbench/internal/optim"
)

func smallTask(name string) config.TaskConfig {
	return config.TaskConfig{
		Name:         name,
		Dim:          5,
		Condition:    50,
		Classes:      3,
		Features:     4,
		TrainSamples: 64,
		ValSamples:   32,
		Spread:       1,
		VocabSize:    6,
		TrainTokens:  400,
		ValTokens:    200,
	}
}

// numericalGradient computes the gradient of every parameter element with
// central differences.
func numericalGradient(t *testing.T, obj bench.Objective, epsilon float64) [][]float64 {
	t.Helper()
	var grads [][]float64
	for _, p := range obj.Params() {
		data := p.Tensor().Data()
		g := make([]float64, len(data))
		for i := range data {
			orig := data[i]
			data[i] = orig + epsilon
			plus, err := obj.Loss()
			require.NoError(t, err)
			data[i] = orig - epsilon
			minus, err := obj.Loss()
			require.NoError(t, err)
			data[i] = orig
			g[i] = (plus - minus) / (2 * epsilon)
		}
		grads = append(grads, g)
	}
	return grads
}

func TestObjectives_AnalyticGradients(t *testing.T) {
	for _, name := range bench.Tasks() {
		t.Run(name, func(t *testing.T) {
			obj, err := bench.NewObjective(smallTask(name), 1)
			require.NoError(t, err)

			// Move off the symmetric zero initialization.
			for _, p := range obj.Params() {
				for i := range p.Tensor().Data() {
					p.Tensor().Data()[i] += 0.1 * math.Sin(float64(i+1))
				}
			}

			_, err = obj.Loss()
			require.NoError(t, err)
			var analytic [][]float64
			for _, p := range obj.Params() {
				require.NotNil(t, p.Grad(), p.Name())
				analytic = append(analytic, p.Grad().ToDense().Clone().Data())
			}

			numeric := numericalGradient(t, obj, 1e-6)
			for k := range analytic {
				assert.InDeltaSlice(t, numeric[k], analytic[k], 1e-4, obj.Params()[k].Name())
			}
		})
	}
}

func TestObjectives_Deterministic(t *testing.T) {
	for _, name := range bench.Tasks() {
		a, err := bench.NewObjective(smallTask(name), 7)
		require.NoError(t, err)
		b, err := bench.NewObjective(smallTask(name), 7)
		require.NoError(t, err)

		for i, p := range a.Params() {
			assert.True(t, p.Tensor().Equal(b.Params()[i].Tensor()), name)
		}
		assert.Equal(t, a.Evaluate(), b.Evaluate(), name)
	}
}

func TestObjectives_EvaluateLeavesGradients(t *testing.T) {
	obj, err := bench.NewObjective(smallTask(bench.TaskSoftmax), 1)
	require.NoError(t, err)

	obj.Evaluate()
	for _, p := range obj.Params() {
		assert.Nil(t, p.Grad())
	}
}

func TestSoftmax_InitialMetrics(t *testing.T) {
	obj, err := bench.NewObjective(smallTask(bench.TaskSoftmax), 1)
	require.NoError(t, err)

	// Zero weights predict the uniform distribution.
	m := obj.Evaluate()
	assert.InDelta(t, math.Log(3), m.Loss, 1e-12)
	assert.Equal(t, "acc", m.MetricName)
}

func TestBigram_InitialMetrics(t *testing.T) {
	obj, err := bench.NewObjective(smallTask(bench.TaskBigram), 1)
	require.NoError(t, err)

	m := obj.Evaluate()
	assert.InDelta(t, math.Log(6), m.Loss, 1e-12)
	assert.InDelta(t, 6, m.Metric, 1e-9, "uniform model has perplexity = vocab size")
	assert.Equal(t, "nll", obj.LossName())
	assert.Equal(t, "val_nll=1.7918 val_ppl=6.0000", m.String())
}

func TestRosenbrock_Start(t *testing.T) {
	obj, err := bench.NewObjective(config.TaskConfig{Name: bench.TaskRosenbrock}, 0)
	require.NoError(t, err)

	// f(-1.5, 2) = 2.5² + 100·(2 - 2.25)²
	m := obj.Evaluate()
	assert.InDelta(t, 6.25+6.25, m.Loss, 1e-12)
	assert.InDelta(t, math.Hypot(2.5, 1), m.Metric, 1e-12)
}

func TestPerplexity_Capped(t *testing.T) {
	assert.InDelta(t, math.E, bench.Perplexity(1), 1e-12)
	assert.Equal(t, math.Exp(20), bench.Perplexity(1000))
}

func TestNewObjective_Errors(t *testing.T) {
	bad := []config.TaskConfig{
		{Name: "cifar10"},
		{Name: bench.TaskQuadratic, Dim: 0, Condition: 10},
		{Name: bench.TaskQuadratic, Dim: 3, Condition: 0.5},
		{Name: bench.TaskSoftmax, Classes: 3, Features: 2, TrainSamples: 10, ValSamples: 0, Spread: 1},
		{Name: bench.TaskSoftmax, Classes: 3, Features: 2, TrainSamples: 10, ValSamples: 10, Spread: 0},
		{Name: bench.TaskBigram, VocabSize: 4, TrainTokens: 1, ValTokens: 10},
	}
	for _, cfg := range bad {
		_, err := bench.NewObjective(cfg, 0)
		assert.ErrorIs(t, err, optim.ErrConfiguration, "%+v", cfg)
	}
}

func TestNewObjective_ReportsFirstBadFieldInOrder(t *testing.T) {
	tests := []struct {
		cfg  config.TaskConfig
		want string
	}{
		{
			config.TaskConfig{Name: bench.TaskBigram, VocabSize: 4, TrainTokens: 1, ValTokens: 0},
			"task.train_tokens must be >= 2, got 1",
		},
		{
			config.TaskConfig{Name: bench.TaskSoftmax, Classes: 0, Features: 0, TrainSamples: 0, ValSamples: 0, Spread: 1},
			"task.classes must be >= 1, got 0",
		},
		{
			config.TaskConfig{Name: bench.TaskSoftmax, Classes: 3, Features: 2, TrainSamples: -1, ValSamples: 0, Spread: 1},
			"task.train_samples must be >= 1, got -1",
		},
	}
	for _, tt := range tests {
		// Repeat to catch any ordering that depends on iteration.
		for range 20 {
			_, err := bench.NewObjective(tt.cfg, 0)
			require.ErrorIs(t, err, optim.ErrConfiguration)
			assert.Contains(t, err.Error(), tt.want)
		}
	}
}
