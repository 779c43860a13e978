package bench

import (
	"math"
	"math/rand/v2"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/born-ml/optbench/internal/config"
	"github.com/born-ml/optbench/internal/nn"
	"github.com/born-ml/optbench/internal/optim"
	"github.com/born-ml/optbench/internal/tensor"
)

// dataset is a labelled design matrix.
type dataset struct {
	x *mat.Dense // [n × features]
	y []int
}

// softmax is multinomial logistic regression on Gaussian clusters: one
// cluster centre per class, samples drawn around it with the configured
// spread. Parameters are W [classes × features] and b [classes].
type softmax struct {
	w, b       *nn.Parameter
	train, val dataset
	classes    int
	features   int
}

func newSoftmax(cfg config.TaskConfig, seed int64) (*softmax, error) {
	err := checkBounds(TaskSoftmax,
		bound{"classes", cfg.Classes, 1},
		bound{"features", cfg.Features, 1},
		bound{"train_samples", cfg.TrainSamples, 1},
		bound{"val_samples", cfg.ValSamples, 1},
	)
	if err != nil {
		return nil, err
	}
	if cfg.Spread <= 0 || math.IsNaN(cfg.Spread) {
		return nil, errors.Wrapf(optim.ErrConfiguration, "bench: softmax: task.spread must be > 0, got %v", cfg.Spread)
	}

	centreDist := distuv.Normal{Mu: 0, Sigma: 2, Src: newSource(seed, 0)}
	centres := mat.NewDense(cfg.Classes, cfg.Features, nil)
	for i := 0; i < cfg.Classes; i++ {
		for j := 0; j < cfg.Features; j++ {
			centres.Set(i, j, centreDist.Rand())
		}
	}

	s := &softmax{
		w:        nn.NewParameter("W", tensor.Zeros(tensor.Shape{cfg.Classes, cfg.Features})),
		b:        nn.NewParameter("b", tensor.Zeros(tensor.Shape{cfg.Classes})),
		classes:  cfg.Classes,
		features: cfg.Features,
	}
	s.train = sampleClusters(centres, cfg.TrainSamples, cfg.Spread, newSource(seed, 1))
	s.val = sampleClusters(centres, cfg.ValSamples, cfg.Spread, newSource(seed, 2))
	return s, nil
}

func sampleClusters(centres *mat.Dense, n int, spread float64, src rand.Source) dataset {
	classes, features := centres.Dims()
	rng := rand.New(src)
	noise := distuv.Normal{Mu: 0, Sigma: spread, Src: src}

	d := dataset{x: mat.NewDense(n, features, nil), y: make([]int, n)}
	for i := 0; i < n; i++ {
		c := rng.IntN(classes)
		d.y[i] = c
		for j := 0; j < features; j++ {
			d.x.Set(i, j, centres.At(c, j)+noise.Rand())
		}
	}
	return d
}

func (s *softmax) Name() string            { return TaskSoftmax }
func (s *softmax) LossName() string        { return "loss" }
func (s *softmax) Params() []*nn.Parameter { return []*nn.Parameter{s.w, s.b} }

// logProbs returns log softmax(X·Wᵀ + b) row by row.
func (s *softmax) logProbs(x *mat.Dense) *mat.Dense {
	n, _ := x.Dims()
	w := mat.NewDense(s.classes, s.features, s.w.Tensor().Data())
	b := s.b.Tensor().Data()

	logits := mat.NewDense(n, s.classes, nil)
	logits.Mul(x, w.T())
	for i := 0; i < n; i++ {
		row := logits.RawRowView(i)
		floats.Add(row, b)
		floats.AddConst(-floats.LogSumExp(row), row)
	}
	return logits
}

// Loss returns the mean cross-entropy on the training set.
//
//	dL/dW = (P - Y)ᵀ · X / n
//	dL/db = Σ_rows (P - Y) / n
func (s *softmax) Loss() (float64, error) {
	n, _ := s.train.x.Dims()
	logp := s.logProbs(s.train.x)

	loss := 0.0
	delta := mat.NewDense(n, s.classes, nil)
	for i := 0; i < n; i++ {
		lp := logp.RawRowView(i)
		row := delta.RawRowView(i)
		loss -= lp[s.train.y[i]]
		for c, v := range lp {
			row[c] = math.Exp(v)
		}
		row[s.train.y[i]]--
	}

	gradW := mat.NewDense(s.classes, s.features, nil)
	gradW.Mul(delta.T(), s.train.x)
	gradW.Scale(1/float64(n), gradW)

	gradB := make([]float64, s.classes)
	for c := 0; c < s.classes; c++ {
		gradB[c] = floats.Sum(mat.Col(nil, c, delta)) / float64(n)
	}

	s.w.SetGrad(tensor.MustFromSlice(gradW.RawMatrix().Data, tensor.Shape{s.classes, s.features}))
	s.b.SetGrad(tensor.MustFromSlice(gradB, tensor.Shape{s.classes}))
	return loss / float64(n), nil
}

// Evaluate reports validation cross-entropy and accuracy.
func (s *softmax) Evaluate() Metrics {
	n, _ := s.val.x.Dims()
	logp := s.logProbs(s.val.x)

	loss, correct := 0.0, 0
	for i := 0; i < n; i++ {
		lp := logp.RawRowView(i)
		loss -= lp[s.val.y[i]]
		if floats.MaxIdx(lp) == s.val.y[i] {
			correct++
		}
	}
	return Metrics{
		Loss:       loss / float64(n),
		LossName:   "loss",
		Metric:     float64(correct) / float64(n),
		MetricName: "acc",
	}
}
