package optim

import (
	"math"

	"github.com/born-ml/optbench/internal/nn"
	"github.com/born-ml/optbench/internal/tensor"
)

// maxTrustRatio bounds LAMB's layer-wise scaling when the update norm is
// tiny relative to the weight norm.
const maxTrustRatio = 10.0

// LAMB implements Layer-wise Adaptive Moments (LAMB).
//
// Update rule, per parameter:
//
//	m = beta1 * m + (1-beta1) * g
//	v = beta2 * v + (1-beta2) * g²
//	u = m / (sqrt(v) + eps)  [+ weight_decay * w]
//	trust = min(max(‖w‖, eps) / max(‖u‖, eps), 10)
//	w = w - lr * trust * u
//
// The moments are NOT bias corrected. This is a deliberate simplification
// kept for benchmarking parity, not an oversight: early steps therefore use
// moments shrunk towards zero, which the trust ratio largely cancels out.
//
// Reference: "Large Batch Optimization for Deep Learning: Training BERT in
// 76 minutes" (You et al., 2019)
//
// Sparse gradients are rejected with ErrUnsupportedInput.
type LAMB struct {
	base[LAMBConfig, *LAMBState]
}

// LAMBConfig holds configuration for the LAMB optimizer.
type LAMBConfig struct {
	LR          float64    // Learning rate (default: 1e-3)
	Betas       [2]float64 // Coefficients for computing running averages (default: [0.9, 0.999])
	Eps         float64    // Term for numerical stability (default: 1e-8)
	WeightDecay float64    // Decay added to the update before the trust ratio (default: 0)
}

// DefaultLAMBConfig returns the default LAMB hyperparameters.
func DefaultLAMBConfig() LAMBConfig {
	return LAMBConfig{LR: 1e-3, Betas: [2]float64{0.9, 0.999}, Eps: 1e-8}
}

func (c LAMBConfig) learningRate() float64 { return c.LR }

func (c LAMBConfig) withLearningRate(lr float64) LAMBConfig {
	c.LR = lr
	return c
}

func (c LAMBConfig) normalize() (LAMBConfig, error) {
	d := DefaultLAMBConfig()
	if c.LR == 0 {
		c.LR = d.LR
	}
	if c.Betas == [2]float64{} {
		c.Betas = d.Betas
	}
	if c.Eps == 0 {
		c.Eps = d.Eps
	}
	if err := checkLR("lamb", c.LR); err != nil {
		return c, err
	}
	if err := checkBetas("lamb", c.Betas); err != nil {
		return c, err
	}
	if err := checkEps("lamb", c.Eps); err != nil {
		return c, err
	}
	return c, checkWeightDecay("lamb", c.WeightDecay)
}

// LAMBState is the per-parameter state of LAMB.
type LAMBState struct {
	Step     int           // Number of steps taken with a present gradient
	ExpAvg   *tensor.Dense // First moment estimate
	ExpAvgSq *tensor.Dense // Second moment estimate
}

func (s *LAMBState) export(put func(string, *tensor.Dense)) {
	put("step", scalar(float64(s.Step)))
	put("exp_avg", s.ExpAvg)
	put("exp_avg_sq", s.ExpAvgSq)
}

func (s *LAMBState) restore(r stateReader) error {
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

// NewLAMB creates a LAMB optimizer over a single parameter group.
//
// Zero-valued LR, Betas and Eps receive defaults; see DefaultLAMBConfig.
func NewLAMB(params []*nn.Parameter, config LAMBConfig) (*LAMB, error) {
	return NewLAMBGroups(singleGroup(params, config))
}

// NewLAMBGroups creates a LAMB optimizer over ordered parameter groups.
func NewLAMBGroups(groups []Group[LAMBConfig]) (*LAMB, error) {
	b, err := newBase("lamb", groups, func(p *nn.Parameter, _ LAMBConfig) *LAMBState {
		return &LAMBState{
			ExpAvg:   tensor.ZerosLike(p.Tensor()),
			ExpAvgSq: tensor.ZerosLike(p.Tensor()),
		}
	})
	if err != nil {
		return nil, err
	}
	return &LAMB{base: b}, nil
}

// Step performs a single optimization step.
//
// Parameters with no gradient are skipped. If any gradient is sparse or
// mis-shaped, no parameter is modified.
func (l *LAMB) Step(closure Closure) (float64, error) {
	loss, err := evalClosure(closure)
	if err != nil {
		return 0, err
	}

	entries, err := l.collect(true)
	if err != nil {
		return loss, err
	}

	for _, e := range entries {
		l.updateParameter(e.param.Tensor(), e.grad, l.stateFor(e), l.groups[e.group].Config)
	}
	return loss, nil
}

// updateParameter performs the LAMB update for a single parameter.
func (l *LAMB) updateParameter(w, grad *tensor.Dense, st *LAMBState, cfg LAMBConfig) {
	beta1, beta2 := cfg.Betas[0], cfg.Betas[1]

	st.Step++
	st.ExpAvg.Scale(beta1).AddScaled(1-beta1, grad)
	st.ExpAvgSq.Scale(beta2).AddMul(1-beta2, grad, grad)

	denom := st.ExpAvgSq.Clone().Sqrt().AddConst(cfg.Eps)
	update := st.ExpAvg.Clone().Div(denom)
	if cfg.WeightDecay > 0 {
		update.AddScaled(cfg.WeightDecay, w)
	}

	trust := trustRatio(w.Norm(), update.Norm(), cfg.Eps)
	w.AddScaled(-cfg.LR*trust, update)
}

// trustRatio computes min(max(wNorm, eps) / max(uNorm, eps), maxTrustRatio).
func trustRatio(wNorm, uNorm, eps float64) float64 {
	return math.Min(math.Max(wNorm, eps)/math.Max(uNorm, eps), maxTrustRatio)
}
