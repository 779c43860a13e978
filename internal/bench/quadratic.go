package bench

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/born-ml/optbench/internal/config"
	"github.com/born-ml/optbench/internal/nn"
	"github.com/born-ml/optbench/internal/optim"
	"github.com/born-ml/optbench/internal/tensor"
)

// quadratic is f(x) = 0.5 · Σ a_i x_i² with a log-spaced in [1, condition].
// The minimum is x = 0; Metric is ‖x‖.
type quadratic struct {
	x    *nn.Parameter
	a    []float64
	grad []float64
}

func newQuadratic(cfg config.TaskConfig, seed int64) (*quadratic, error) {
	if err := checkBounds(TaskQuadratic, bound{"dim", cfg.Dim, 1}); err != nil {
		return nil, err
	}
	if cfg.Condition < 1 || math.IsNaN(cfg.Condition) {
		return nil, errors.Wrapf(optim.ErrConfiguration, "bench: quadratic: task.condition must be >= 1, got %v", cfg.Condition)
	}

	a := make([]float64, cfg.Dim)
	if cfg.Dim == 1 {
		a[0] = 1
	} else {
		floats.LogSpan(a, 1, cfg.Condition)
	}

	init := distuv.Normal{Mu: 0, Sigma: 1, Src: newSource(seed, 0)}
	x0 := make([]float64, cfg.Dim)
	for i := range x0 {
		x0[i] = init.Rand()
	}

	return &quadratic{
		x:    nn.NewParameter("x", tensor.MustFromSlice(x0, tensor.Shape{cfg.Dim})),
		a:    a,
		grad: make([]float64, cfg.Dim),
	}, nil
}

func (q *quadratic) Name() string            { return TaskQuadratic }
func (q *quadratic) LossName() string        { return "loss" }
func (q *quadratic) Params() []*nn.Parameter { return []*nn.Parameter{q.x} }

func (q *quadratic) Loss() (float64, error) {
	x := q.x.Tensor().Data()
	floats.MulTo(q.grad, q.a, x)
	loss := 0.5 * floats.Dot(q.grad, x)
	q.x.SetGrad(tensor.MustFromSlice(q.grad, tensor.Shape{len(x)}))
	return loss, nil
}

func (q *quadratic) Evaluate() Metrics {
	x := q.x.Tensor().Data()
	loss := 0.0
	for i, v := range x {
		loss += 0.5 * q.a[i] * v * v
	}
	return Metrics{Loss: loss, LossName: "loss", Metric: floats.Norm(x, 2), MetricName: "dist"}
}

// rosenbrock is f(x, y) = (1-x)² + 100·(y-x²)², started from (-1.5, 2).
// The minimum is (1, 1); Metric is the distance to it.
type rosenbrock struct {
	xy *nn.Parameter
}

func newRosenbrock() *rosenbrock {
	return &rosenbrock{
		xy: nn.NewParameter("xy", tensor.MustFromSlice([]float64{-1.5, 2}, tensor.Shape{2})),
	}
}

func (r *rosenbrock) Name() string            { return TaskRosenbrock }
func (r *rosenbrock) LossName() string        { return "loss" }
func (r *rosenbrock) Params() []*nn.Parameter { return []*nn.Parameter{r.xy} }

func (r *rosenbrock) Loss() (float64, error) {
	p := r.xy.Tensor().Data()
	x, y := p[0], p[1]
	d := y - x*x
	grad := []float64{-2*(1-x) - 400*x*d, 200 * d}
	r.xy.SetGrad(tensor.MustFromSlice(grad, tensor.Shape{2}))
	return rosenbrockValue(x, y), nil
}

func (r *rosenbrock) Evaluate() Metrics {
	p := r.xy.Tensor().Data()
	return Metrics{
		Loss:       rosenbrockValue(p[0], p[1]),
		LossName:   "loss",
		Metric:     math.Hypot(p[0]-1, p[1]-1),
		MetricName: "dist",
	}
}

func rosenbrockValue(x, y float64) float64 {
	d := y - x*x
	return (1-x)*(1-x) + 100*d*d
}
