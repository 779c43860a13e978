package bench_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/optbench/internal/bench"
	"github.com/born-ml/optbench/internal/config"
	"github.com/born-ml/optbench/internal/optim"
)

func sweepConfig(workers int) *config.Config {
	cfg := config.Default()
	cfg.Task = smallTask(bench.TaskQuadratic)
	cfg.Run = runConfig(30)
	cfg.Run.Workers = workers
	return cfg
}

func TestSweep_AllOptimizers(t *testing.T) {
	cfg := sweepConfig(3)

	results, err := bench.Sweep(context.Background(), cfg, nil)
	require.NoError(t, err)
	require.Len(t, results, len(optim.Kinds()))

	for i, r := range results {
		assert.Equal(t, cfg.Optimizers[i].Label, r.Label)
		assert.Equal(t, cfg.Optimizers[i].Spec.Kind(), r.Kind)
		assert.Equal(t, bench.TaskQuadratic, r.Task)
		assert.Len(t, r.Losses, 30)
	}
}

func TestSweep_DeterministicAcrossWorkerCounts(t *testing.T) {
	seq, err := bench.Sweep(context.Background(), sweepConfig(1), nil)
	require.NoError(t, err)
	par, err := bench.Sweep(context.Background(), sweepConfig(4), nil)
	require.NoError(t, err)

	require.Len(t, par, len(seq))
	for i := range seq {
		assert.Equal(t, seq[i].Losses, par[i].Losses, seq[i].Label)
		assert.Equal(t, seq[i].Final, par[i].Final, seq[i].Label)
	}
}

func TestSweep_SameStartingPoint(t *testing.T) {
	results, err := bench.Sweep(context.Background(), sweepConfig(0), nil)
	require.NoError(t, err)

	// Every run evaluates its first loss at the same initial parameters,
	// except SAM, which reports the loss at the perturbed point.
	first := results[0].Losses[0]
	for _, r := range results {
		if r.Kind == optim.KindSAM {
			continue
		}
		assert.Equal(t, first, r.Losses[0], r.Label)
	}
}

func TestSweep_Errors(t *testing.T) {
	cfg := sweepConfig(2)
	cfg.Task.Name = "cifar10"
	_, err := bench.Sweep(context.Background(), cfg, nil)
	require.ErrorIs(t, err, optim.ErrConfiguration)

	cfg = sweepConfig(2)
	cfg.Optimizers = []config.OptimizerConfig{{
		Label: "bad-lamb",
		Spec:  optim.LAMBSpec{Config: optim.LAMBConfig{Eps: -1}},
	}}
	_, err = bench.Sweep(context.Background(), cfg, nil)
	require.ErrorIs(t, err, optim.ErrConfiguration)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = bench.Sweep(ctx, sweepConfig(2), nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestWriteSummary(t *testing.T) {
	results := []*bench.Result{
		{
			Label:  "lamb",
			Task:   bench.TaskBigram,
			Losses: []float64{2, 1.5, 1},
			Final:  bench.Metrics{Loss: 1, LossName: "nll", Metric: 2.718, MetricName: "ppl"},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, bench.WriteSummary(&buf, results))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"optimizer", "task", "n_steps_recorded", "final_loss", "final_metric", "final_perplexity_like"}, rows[0])
	assert.Equal(t, "lamb", rows[1][0])
	assert.Equal(t, "bigram", rows[1][1])
	assert.Equal(t, "3", rows[1][2])
	assert.Equal(t, "1", rows[1][3])

	ppl, err := strconv.ParseFloat(rows[1][5], 64)
	require.NoError(t, err)
	assert.InDelta(t, 2.718281828, ppl, 1e-7)
}

func TestWriteReport(t *testing.T) {
	results, err := bench.Sweep(context.Background(), sweepConfig(2), nil)
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "outputs")
	require.NoError(t, bench.WriteReport(dir, results))

	f, err := os.Open(filepath.Join(dir, bench.CurvesFile))
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 1+len(results)*30)
	assert.Equal(t, []string{"optimizer", "step", "loss"}, rows[0])
	assert.Equal(t, []string{results[0].Label, "1"}, rows[1][:2])

	_, err = os.Stat(filepath.Join(dir, bench.SummaryFile))
	require.NoError(t, err)
}
