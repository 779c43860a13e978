package optim

import (
	"github.com/born-ml/optbench/internal/nn"
	"github.com/born-ml/optbench/internal/tensor"
)

// SGD implements Stochastic Gradient Descent optimizer with optional momentum.
//
// Update rule without momentum:
//
//	param = param - lr * (gradient + weight_decay * param)
//
// Update rule with momentum:
//
//	d = gradient + weight_decay * param
//	velocity = momentum * velocity + d
//	param = param - lr * velocity                    // classic
//	param = param - lr * (d + momentum * velocity)   // Nesterov
//
// Momentum helps accelerate SGD in relevant directions and dampens oscillations.
// Sparse gradients are densified.
//
// Example:
//
//	optimizer, _ := optim.NewSGD(params, optim.SGDConfig{
//	    LR:       0.01,
//	    Momentum: 0.9,
//	})
type SGD struct {
	base[SGDConfig, *SGDState]
}

// SGDConfig holds configuration for SGD optimizer.
type SGDConfig struct {
	LR          float64 // Learning rate (default: 0.01)
	Momentum    float64 // Momentum factor (default: 0.0, range: [0, 1))
	WeightDecay float64 // L2 penalty added to the gradient (default: 0.0)
	Nesterov    bool    // Use Nesterov momentum (requires Momentum > 0)
}

// DefaultSGDConfig returns the SGD-momentum hyperparameters used for benchmarking.
func DefaultSGDConfig() SGDConfig {
	return SGDConfig{LR: 0.01, Momentum: 0.9}
}

func (c SGDConfig) learningRate() float64 { return c.LR }

func (c SGDConfig) withLearningRate(lr float64) SGDConfig {
	c.LR = lr
	return c
}

func (c SGDConfig) normalize() (SGDConfig, error) {
	if c.LR == 0 {
		c.LR = 0.01
	}
	if err := checkLR("sgd", c.LR); err != nil {
		return c, err
	}
	if err := checkMomentum("sgd", c.Momentum); err != nil {
		return c, err
	}
	if c.Nesterov && c.Momentum == 0 {
		return c, configErrorf("sgd: nesterov momentum requires a momentum > 0")
	}
	return c, checkWeightDecay("sgd", c.WeightDecay)
}

// SGDState is the per-parameter state of SGD.
//
// The velocity buffer is only allocated when the group uses momentum.
type SGDState struct {
	MomentumBuffer *tensor.Dense
}

func (s *SGDState) export(put func(string, *tensor.Dense)) {
	if s.MomentumBuffer != nil {
		put("momentum_buffer", s.MomentumBuffer)
	}
}

func (s *SGDState) restore(r stateReader) error {
	if !r.has("momentum_buffer") {
		return nil
	}
	var err error
	s.MomentumBuffer, err = r.tensor("momentum_buffer", r.shape)
	return err
}

// NewSGD creates a new SGD optimizer over a single parameter group.
//
// Parameters:
//   - params: Model parameters to optimize
//   - config: SGD configuration (LR, Momentum, WeightDecay, Nesterov)
func NewSGD(params []*nn.Parameter, config SGDConfig) (*SGD, error) {
	return NewSGDGroups(singleGroup(params, config))
}

// NewSGDGroups creates a new SGD optimizer over ordered parameter groups.
func NewSGDGroups(groups []Group[SGDConfig]) (*SGD, error) {
	b, err := newBase("sgd", groups, func(p *nn.Parameter, cfg SGDConfig) *SGDState {
		st := &SGDState{}
		if cfg.Momentum != 0 {
			// Initialize velocity to zeros with same shape as parameter
			st.MomentumBuffer = tensor.ZerosLike(p.Tensor())
		}
		return st
	})
	if err != nil {
		return nil, err
	}
	return &SGD{base: b}, nil
}

// Step performs a single optimization step.
//
// Parameters with no gradient (not in computational graph) are skipped.
func (s *SGD) Step(closure Closure) (float64, error) {
	loss, err := evalClosure(closure)
	if err != nil {
		return 0, err
	}

	entries, err := s.collect(false)
	if err != nil {
		return loss, err
	}

	for _, e := range entries {
		cfg := s.groups[e.group].Config
		if cfg.Momentum == 0 {
			// Simple SGD: param -= lr * grad
			s.updateParameter(e.param, e.grad, cfg)
		} else {
			// SGD with momentum
			s.updateParameterWithMomentum(e.param, e.grad, s.stateFor(e), cfg)
		}
	}
	return loss, nil
}

// decayed returns grad + weight_decay * param without touching grad.
func decayed(param *nn.Parameter, grad *tensor.Dense, weightDecay float64) *tensor.Dense {
	if weightDecay == 0 {
		return grad
	}
	return grad.Clone().AddScaled(weightDecay, param.Tensor())
}

// updateParameter performs simple SGD update without momentum.
func (s *SGD) updateParameter(param *nn.Parameter, grad *tensor.Dense, cfg SGDConfig) {
	d := decayed(param, grad, cfg.WeightDecay)
	param.Tensor().AddScaled(-cfg.LR, d)
}

// updateParameterWithMomentum performs SGD update with momentum.
func (s *SGD) updateParameterWithMomentum(param *nn.Parameter, grad *tensor.Dense, st *SGDState, cfg SGDConfig) {
	if st.MomentumBuffer == nil {
		// Momentum was enabled after this state was created.
		st.MomentumBuffer = tensor.ZerosLike(param.Tensor())
	}

	d := decayed(param, grad, cfg.WeightDecay)

	// velocity = momentum * velocity + d
	velocity := st.MomentumBuffer
	velocity.Scale(cfg.Momentum).Add(d)

	if cfg.Nesterov {
		// param -= lr * (d + momentum * velocity)
		param.Tensor().AddScaled(-cfg.LR, d).AddScaled(-cfg.LR*cfg.Momentum, velocity)
		return
	}

	// param -= lr * velocity
	param.Tensor().AddScaled(-cfg.LR, velocity)
}
