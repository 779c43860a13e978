// Package bench runs optimizers against small synthetic objectives and
// reports how far each one gets.
//
// Every objective computes its loss and analytic gradients in one call, so
// Objective.Loss can be passed straight to Optimizer.Step as a closure.
package bench

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/pkg/errors"

	"github.com/born-ml/optbench/internal/config"
	"github.com/born-ml/optbench/internal/nn"
	"github.com/born-ml/optbench/internal/optim"
)

// Task names accepted by NewObjective.
const (
	TaskQuadratic  = "quadratic"
	TaskRosenbrock = "rosenbrock"
	TaskSoftmax    = "softmax"
	TaskBigram     = "bigram"
)

// Tasks returns every known task name.
func Tasks() []string {
	return []string{TaskQuadratic, TaskRosenbrock, TaskSoftmax, TaskBigram}
}

// Objective is a differentiable training problem over its own parameters.
type Objective interface {
	// Name returns the task name.
	Name() string
	// Params returns the trainable parameters in a stable order.
	Params() []*nn.Parameter
	// Loss computes the training loss at the current parameters and
	// attaches the gradient of every parameter.
	Loss() (float64, error)
	// Evaluate measures held-out performance without touching gradients.
	Evaluate() Metrics
	// LossName labels the loss in progress lines ("loss" or "nll").
	LossName() string
}

// Metrics is one evaluation of an objective.
type Metrics struct {
	Loss       float64
	LossName   string  // "loss" or "nll"
	Metric     float64 // Task-specific: accuracy, distance to optimum or perplexity
	MetricName string
}

// String formats m like the training log's eval lines.
func (m Metrics) String() string {
	return fmt.Sprintf("val_%s=%.4f val_%s=%.4f", m.LossName, m.Loss, m.MetricName, m.Metric)
}

// Perplexity returns exp(loss), capped at exp(20).
func Perplexity(loss float64) float64 {
	return math.Exp(math.Min(20, loss))
}

// NewObjective builds the task named in cfg. Data and initial parameters
// depend only on cfg and seed, so every optimizer in a sweep starts from
// the same point.
func NewObjective(cfg config.TaskConfig, seed int64) (Objective, error) {
	switch cfg.Name {
	case TaskQuadratic:
		return newQuadratic(cfg, seed)
	case TaskRosenbrock:
		return newRosenbrock(), nil
	case TaskSoftmax:
		return newSoftmax(cfg, seed)
	case TaskBigram:
		return newBigram(cfg, seed)
	default:
		return nil, errors.Wrapf(optim.ErrConfiguration, "bench: unknown task %q (known: %v)", cfg.Name, Tasks())
	}
}

// newSource returns a deterministic random source for one data stream.
func newSource(seed int64, stream uint64) *rand.PCG {
	return rand.NewPCG(uint64(seed), stream)
}

// bound is a configured size and the smallest value the task accepts.
type bound struct {
	name     string
	value    int
	minValue int
}

// checkBounds reports the first field, in order, that is below its minimum.
func checkBounds(task string, fields ...bound) error {
	for _, f := range fields {
		if f.value < f.minValue {
			return errors.Wrapf(optim.ErrConfiguration, "bench: %s: task.%s must be >= %d, got %d", task, f.name, f.minValue, f.value)
		}
	}
	return nil
}
