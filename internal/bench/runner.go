package bench

import (
	"context"
	"fmt"
	"io"
	"log"
	"math"

	"github.com/pkg/errors"

	"github.com/born-ml/optbench/internal/config"
	"github.com/born-ml/optbench/internal/optim"
)

// Eval is one periodic evaluation.
type Eval struct {
	Step int
	Metrics
}

// Result is the outcome of one training run.
type Result struct {
	Label    string
	Kind     optim.Kind
	Task     string
	Losses   []float64 // Training loss per completed step
	Evals    []Eval
	Final    Metrics
	Diverged bool // Training stopped on a non-finite loss
}

// Runner drives the training loop.
type Runner struct {
	Run    config.RunConfig
	Logger *log.Logger // nil discards progress lines
}

// NewRunner creates a runner for run, logging to logger.
func NewRunner(run config.RunConfig, logger *log.Logger) *Runner {
	return &Runner{Run: run, Logger: logger}
}

func (r *Runner) logger() *log.Logger {
	if r.Logger == nil {
		return log.New(io.Discard, "", 0)
	}
	return r.Logger
}

// Train runs opt on obj for Run.MaxSteps steps.
//
// SAM gets the two-pass step (zero_grad, loss, first_step, zero_grad, loss,
// second_step); every other optimizer gets zero_grad, loss, step. Progress
// is logged every LogEvery steps and evaluated every EvalEvery steps and
// once more at the end. A non-finite training loss stops the run early and
// marks it Diverged; it is not an error.
func (r *Runner) Train(ctx context.Context, label string, obj Objective, opt optim.Optimizer) (*Result, error) {
	logger := r.logger()
	res := &Result{Label: label, Task: obj.Name()}
	if k, ok := kindOf(opt); ok {
		res.Kind = k
	}

	var sched *optim.Scheduler
	if r.Run.Schedule == config.ScheduleCosine {
		sched = optim.NewCosineScheduler(opt, r.Run.WarmupSteps, r.Run.MaxSteps, r.Run.MinLRRatio)
	}

	for step := 1; step <= r.Run.MaxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrapf(err, "bench: %s stopped at step %d", label, step)
		}
		if sched != nil {
			sched.Step()
		}

		loss, err := trainStep(obj, opt)
		if err != nil {
			return nil, errors.WithMessagef(err, "bench: %s step %d", label, step)
		}
		res.Losses = append(res.Losses, loss)

		if math.IsNaN(loss) || math.IsInf(loss, 0) {
			logger.Printf("%s step=%d diverged (train_%s=%v)", label, step, obj.LossName(), loss)
			res.Diverged = true
			break
		}

		if step%r.Run.LogEvery == 0 {
			logger.Printf("%s %s", label, trainLine(step, obj.LossName(), loss))
		}
		if step%r.Run.EvalEvery == 0 {
			m := obj.Evaluate()
			res.Evals = append(res.Evals, Eval{Step: step, Metrics: m})
			logger.Printf("%s step=%d %s", label, step, m)
		}
	}

	res.Final = obj.Evaluate()
	logger.Printf("%s final %s", label, res.Final)
	return res, nil
}

// trainStep performs one optimization step and returns the training loss.
func trainStep(obj Objective, opt optim.Optimizer) (float64, error) {
	if sam, ok := opt.(*optim.SAM); ok {
		// Returns the loss at the perturbed weights, as the two-pass loop reports.
		return sam.Step(obj.Loss)
	}

	opt.ZeroGrad()
	loss, err := obj.Loss()
	if err != nil {
		return 0, err
	}
	if _, err := opt.Step(nil); err != nil {
		return 0, err
	}
	return loss, nil
}

func trainLine(step int, lossName string, loss float64) string {
	if lossName == "nll" {
		return fmt.Sprintf("step=%d train_nll=%.4f train_ppl=%.2f", step, loss, Perplexity(loss))
	}
	return fmt.Sprintf("step=%d train_loss=%.4f", step, loss)
}

// kindOf reports the registry kind of a concrete optimizer.
func kindOf(opt optim.Optimizer) (optim.Kind, bool) {
	switch opt.(type) {
	case *optim.SGD:
		return optim.KindSGDMomentum, true
	case *optim.AdamW:
		return optim.KindAdamW, true
	case *optim.LAMB:
		return optim.KindLAMB, true
	case *optim.Adafactor:
		return optim.KindAdafactor, true
	case *optim.SAM:
		return optim.KindSAM, true
	case *optim.MuonLite:
		return optim.KindMuon, true
	default:
		return "", false
	}
}
