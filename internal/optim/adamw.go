package optim

import (
	"math"

	"github.com/born-ml/optbench/internal/nn"
	"github.com/born-ml/optbench/internal/tensor"
)

// AdamW implements Adam with decoupled weight decay.
//
// AdamW combines ideas from RMSprop and momentum:
//   - Maintains exponential moving averages of gradients (first moment)
//   - Maintains exponential moving averages of squared gradients (second moment)
//   - Applies bias correction to compensate for initialization at zero
//   - Decays weights directly instead of through the gradient
//
// Update rule:
//
//	param = param * (1 - lr * weight_decay)            // Decoupled decay
//	m_t = beta1 * m_{t-1} + (1-beta1) * gradient       // First moment
//	v_t = beta2 * v_{t-1} + (1-beta2) * gradient²      // Second moment
//	m_hat = m_t / (1 - beta1^t)                        // Bias correction
//	v_hat = v_t / (1 - beta2^t)                        // Bias correction
//	param = param - lr * m_hat / (sqrt(v_hat) + eps)   // Parameter update
//
// The timestep t is tracked per parameter, so a parameter that skips steps
// (absent gradient) keeps its own bias correction.
//
// Reference: "Decoupled Weight Decay Regularization" (Loshchilov & Hutter, 2019)
//
// Sparse gradients are rejected with ErrUnsupportedInput.
type AdamW struct {
	base[AdamWConfig, *AdamWState]
}

// AdamWConfig holds configuration for AdamW optimizer.
type AdamWConfig struct {
	LR          float64    // Learning rate (default: 0.001)
	Betas       [2]float64 // Coefficients for computing running averages (default: [0.9, 0.999])
	Eps         float64    // Term for numerical stability (default: 1e-8)
	WeightDecay float64    // Decoupled weight decay (DefaultAdamWConfig: 0.01)
}

// DefaultAdamWConfig returns the default AdamW hyperparameters.
func DefaultAdamWConfig() AdamWConfig {
	return AdamWConfig{LR: 1e-3, Betas: [2]float64{0.9, 0.999}, Eps: 1e-8, WeightDecay: 1e-2}
}

func (c AdamWConfig) learningRate() float64 { return c.LR }

func (c AdamWConfig) withLearningRate(lr float64) AdamWConfig {
	c.LR = lr
	return c
}

func (c AdamWConfig) normalize() (AdamWConfig, error) {
	// Set defaults
	if c.LR == 0 {
		c.LR = 0.001
	}
	if c.Betas[0] == 0 {
		c.Betas[0] = 0.9
	}
	if c.Betas[1] == 0 {
		c.Betas[1] = 0.999
	}
	if c.Eps == 0 {
		c.Eps = 1e-8
	}
	if err := checkLR("adamw", c.LR); err != nil {
		return c, err
	}
	if err := checkBetas("adamw", c.Betas); err != nil {
		return c, err
	}
	if err := checkEps("adamw", c.Eps); err != nil {
		return c, err
	}
	return c, checkWeightDecay("adamw", c.WeightDecay)
}

// AdamWState is the per-parameter state of AdamW.
type AdamWState struct {
	Step     int           // Timestep for bias correction
	ExpAvg   *tensor.Dense // First moment estimates
	ExpAvgSq *tensor.Dense // Second moment estimates
}

func (s *AdamWState) export(put func(string, *tensor.Dense)) {
	put("step", scalar(float64(s.Step)))
	put("exp_avg", s.ExpAvg)
	put("exp_avg_sq", s.ExpAvgSq)
}

func (s *AdamWState) restore(r stateReader) error {
	var err error
	if s.Step, err = r.step("step"); err != nil {
		return err
	}
	if s.ExpAvg, err = r.tensor("exp_avg", r.shape); err != nil {
		return err
	}
	s.ExpAvgSq, err = r.tensor("exp_avg_sq", r.shape)
	return err
}

// NewAdamW creates a new AdamW optimizer over a single parameter group.
//
// Default hyperparameters for zero-valued fields:
//   - LR: 0.001
//   - Beta1: 0.9
//   - Beta2: 0.999
//   - Eps: 1e-8
func NewAdamW(params []*nn.Parameter, config AdamWConfig) (*AdamW, error) {
	return NewAdamWGroups(singleGroup(params, config))
}

// NewAdamWGroups creates a new AdamW optimizer over ordered parameter groups.
func NewAdamWGroups(groups []Group[AdamWConfig]) (*AdamW, error) {
	b, err := newBase("adamw", groups, func(p *nn.Parameter, _ AdamWConfig) *AdamWState {
		return &AdamWState{
			ExpAvg:   tensor.ZerosLike(p.Tensor()),
			ExpAvgSq: tensor.ZerosLike(p.Tensor()),
		}
	})
	if err != nil {
		return nil, err
	}
	return &AdamW{base: b}, nil
}

// Step performs a single optimization step using the AdamW algorithm.
//
// Parameters with no gradient are skipped.
func (a *AdamW) Step(closure Closure) (float64, error) {
	loss, err := evalClosure(closure)
	if err != nil {
		return 0, err
	}

	entries, err := a.collect(true)
	if err != nil {
		return loss, err
	}

	for _, e := range entries {
		st := a.stateFor(e)
		st.Step++
		a.updateParameter(e.param, e.grad, st, a.groups[e.group].Config)
	}
	return loss, nil
}

// updateParameter performs AdamW update for a single parameter.
func (a *AdamW) updateParameter(param *nn.Parameter, grad *tensor.Dense, st *AdamWState, cfg AdamWConfig) {
	beta1, beta2 := cfg.Betas[0], cfg.Betas[1]

	// bias_correction1 = 1 - beta1^t
	// bias_correction2 = 1 - beta2^t
	biasCorrection1 := 1.0 - math.Pow(beta1, float64(st.Step))
	biasCorrection2Sqrt := math.Sqrt(1.0 - math.Pow(beta2, float64(st.Step)))
	stepSize := cfg.LR / biasCorrection1

	// Get raw data for in-place updates
	gradData := grad.Data()
	mData := st.ExpAvg.Data()
	vData := st.ExpAvgSq.Data()
	paramData := param.Tensor().Data()

	decay := 1.0 - cfg.LR*cfg.WeightDecay

	// Update moments and parameters element-wise
	for i := range paramData {
		g := gradData[i]

		paramData[i] *= decay

		// m_t = beta1 * m_{t-1} + (1-beta1) * grad
		mData[i] = beta1*mData[i] + (1.0-beta1)*g

		// v_t = beta2 * v_{t-1} + (1-beta2) * grad²
		vData[i] = beta2*vData[i] + (1.0-beta2)*g*g

		// param = param - lr/bc1 * m_t / (sqrt(v_t)/sqrt(bc2) + eps)
		denom := math.Sqrt(vData[i])/biasCorrection2Sqrt + cfg.Eps
		paramData[i] -= stepSize * mData[i] / denom
	}
}
