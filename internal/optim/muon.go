package optim

import (
	"math"

	"github.com/born-ml/optbench/internal/nn"
	"github.com/born-ml/optbench/internal/tensor"
)

// MuonLite is a lightweight stand-in for Muon-style directional conditioning.
//
// Each gradient is normalized to unit L2 norm before entering an
// exponential-moving-average momentum buffer:
//
//	g = g + weight_decay * w          (if weight_decay > 0)
//	g = g / max(‖g‖, eps)
//	buf = momentum * buf + (1-momentum) * g
//	w = w - lr * buf
//
// Gradient magnitude is discarded entirely; only direction survives. This
// approximates the conditioning effect of Muon's orthogonalized updates but
// is not equivalent to them.
//
// Sparse gradients are densified.
type MuonLite struct {
	base[MuonLiteConfig, *MuonState]
}

// MuonLiteConfig holds configuration for the MuonLite optimizer.
//
// Momentum is used as given, so a zero Momentum disables smoothing; use
// DefaultMuonLiteConfig for the usual 0.95.
type MuonLiteConfig struct {
	LR          float64 // Learning rate (default: 1e-2)
	Momentum    float64 // EMA coefficient of the momentum buffer, in [0, 1)
	WeightDecay float64 // Decay folded into the gradient before normalization (default: 0)
	Eps         float64 // Lower bound of the gradient norm (default: 1e-8)
}

// DefaultMuonLiteConfig returns the default MuonLite hyperparameters.
func DefaultMuonLiteConfig() MuonLiteConfig {
	return MuonLiteConfig{LR: 1e-2, Momentum: 0.95, Eps: 1e-8}
}

func (c MuonLiteConfig) learningRate() float64 { return c.LR }

func (c MuonLiteConfig) withLearningRate(lr float64) MuonLiteConfig {
	c.LR = lr
	return c
}

func (c MuonLiteConfig) normalize() (MuonLiteConfig, error) {
	d := DefaultMuonLiteConfig()
	if c.LR == 0 {
		c.LR = d.LR
	}
	if c.Eps == 0 {
		c.Eps = d.Eps
	}
	if err := checkLR("muon", c.LR); err != nil {
		return c, err
	}
	if err := checkMomentum("muon", c.Momentum); err != nil {
		return c, err
	}
	if err := checkEps("muon", c.Eps); err != nil {
		return c, err
	}
	return c, checkWeightDecay("muon", c.WeightDecay)
}

// MuonState is the per-parameter state of MuonLite.
type MuonState struct {
	MomentumBuffer *tensor.Dense
}

func (s *MuonState) export(put func(string, *tensor.Dense)) {
	put("momentum_buffer", s.MomentumBuffer)
}

func (s *MuonState) restore(r stateReader) error {
	var err error
	s.MomentumBuffer, err = r.tensor("momentum_buffer", r.shape)
	return err
}

// NewMuonLite creates a MuonLite optimizer over a single parameter group.
func NewMuonLite(params []*nn.Parameter, config MuonLiteConfig) (*MuonLite, error) {
	return NewMuonLiteGroups(singleGroup(params, config))
}

// NewMuonLiteGroups creates a MuonLite optimizer over ordered parameter groups.
func NewMuonLiteGroups(groups []Group[MuonLiteConfig]) (*MuonLite, error) {
	b, err := newBase("muon", groups, func(p *nn.Parameter, _ MuonLiteConfig) *MuonState {
		return &MuonState{MomentumBuffer: tensor.ZerosLike(p.Tensor())}
	})
	if err != nil {
		return nil, err
	}
	return &MuonLite{base: b}, nil
}

// Step performs a single optimization step.
//
// Parameters with no gradient are skipped. The caller's gradient tensors
// are never modified.
func (m *MuonLite) Step(closure Closure) (float64, error) {
	loss, err := evalClosure(closure)
	if err != nil {
		return 0, err
	}

	entries, err := m.collect(false)
	if err != nil {
		return loss, err
	}

	for _, e := range entries {
		cfg := m.groups[e.group].Config
		w := e.param.Tensor()

		g := directionOf(e.grad, w, cfg)

		buf := m.stateFor(e).MomentumBuffer
		buf.Scale(cfg.Momentum).AddScaled(1-cfg.Momentum, g)

		w.AddScaled(-cfg.LR, buf)
	}
	return loss, nil
}

// directionOf returns the (optionally decayed) gradient scaled to unit
// norm, floored at eps.
func directionOf(grad, w *tensor.Dense, cfg MuonLiteConfig) *tensor.Dense {
	g := grad.Clone()
	if cfg.WeightDecay > 0 {
		g.AddScaled(cfg.WeightDecay, w)
	}
	return g.Scale(1 / math.Max(g.Norm(), cfg.Eps))
}
