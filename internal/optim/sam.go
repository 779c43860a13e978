package optim

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/optbench/internal/nn"
	"github.com/born-ml/optbench/internal/tensor"
)

// Phase is the position of a SAM optimizer in its two-step protocol.
type Phase int

const (
	// PhaseReady accepts FirstStep.
	PhaseReady Phase = iota
	// PhasePerturbed holds perturbed weights and accepts SecondStep.
	PhasePerturbed
)

// String implements fmt.Stringer.
func (p Phase) String() string {
	switch p {
	case PhaseReady:
		return "ready"
	case PhasePerturbed:
		return "perturbed"
	default:
		return "unknown"
	}
}

// SAM implements Sharpness-Aware Minimization around a base optimizer.
//
// Each training step evaluates gradients twice:
//
//  1. At the current weights w: FirstStep moves to w + e(w), with
//     e(w) = rho * g / (‖g‖ + eps) and ‖g‖ the global L2 norm.
//  2. At the perturbed weights: SecondStep subtracts e(w), restoring w,
//     then lets the base optimizer descend using the second gradients.
//
// Ascending before descending steers training towards flat minima; the
// normalization keeps the ascent length ≈ rho whatever the gradient scale.
//
// Calling FirstStep twice, or SecondStep without FirstStep, returns
// ErrInvalidState.
//
// Example:
//
//	sam.ZeroGrad()
//	computeLossAndGradients()
//	if err := sam.FirstStep(); err != nil { ... }
//	sam.ZeroGrad()
//	computeLossAndGradients()
//	if err := sam.SecondStep(); err != nil { ... }
//
// Reference: "Sharpness-Aware Minimization for Efficiently Improving
// Generalization" (Foret et al., 2021)
type SAM struct {
	base   Optimizer
	params []*nn.Parameter
	ids    map[*nn.Parameter]ParamID
	rho    float64
	eps    float64
	phase  Phase
	stash  *Store[*tensor.Dense] // Perturbation e(w) per parameter, only while perturbed
}

// SAMConfig holds configuration for the SAM wrapper.
type SAMConfig struct {
	Rho float64 // Neighbourhood radius, used as given; zero disables the perturbation
	Eps float64 // Added to the gradient norm (default: 1e-12)
}

// DefaultSAMConfig returns the default SAM hyperparameters.
func DefaultSAMConfig() SAMConfig {
	return SAMConfig{Rho: 0.05, Eps: 1e-12}
}

// NewSAM wraps base, tracking every parameter base optimizes.
func NewSAM(base Optimizer, config SAMConfig) (*SAM, error) {
	if base == nil {
		return nil, configErrorf("sam: base optimizer is nil")
	}
	if config.Eps == 0 {
		config.Eps = DefaultSAMConfig().Eps
	}
	if math.IsNaN(config.Rho) || config.Rho < 0 {
		return nil, configErrorf("sam: invalid rho %v (must be >= 0)", config.Rho)
	}
	if err := checkEps("sam", config.Eps); err != nil {
		return nil, err
	}

	params := base.Params()
	ids := make(map[*nn.Parameter]ParamID, len(params))
	for i, p := range params {
		ids[p] = ParamID(i)
	}

	return &SAM{
		base:   base,
		params: params,
		ids:    ids,
		rho:    config.Rho,
		eps:    config.Eps,
		phase:  PhaseReady,
		stash:  newStore[*tensor.Dense](len(params)),
	}, nil
}

// Base returns the wrapped optimizer.
func (s *SAM) Base() Optimizer {
	return s.base
}

// Phase returns the current protocol phase.
func (s *SAM) Phase() Phase {
	return s.phase
}

// Stashed reports whether p currently holds a perturbation.
func (s *SAM) Stashed(p *nn.Parameter) bool {
	id, ok := s.ids[p]
	if !ok {
		return false
	}
	_, ok = s.stash.Get(id)
	return ok
}

// gradNorm returns the L2 norm of the per-parameter gradient norms, which
// equals the norm of all gradients concatenated. Zero if none are present.
func gradNorm(grads []*tensor.Dense) float64 {
	norms := make([]float64, 0, len(grads))
	for _, g := range grads {
		if g != nil {
			norms = append(norms, g.Norm())
		}
	}
	if len(norms) == 0 {
		return 0
	}
	return floats.Norm(norms, 2)
}

// FirstStep perturbs every parameter with a gradient along the normalized
// gradient direction and stashes the perturbation.
func (s *SAM) FirstStep() error {
	if s.phase != PhaseReady {
		return errors.Wrapf(ErrInvalidState, "sam: FirstStep called in phase %s", s.phase)
	}

	grads := make([]*tensor.Dense, len(s.params))
	for i, p := range s.params {
		g, err := checkGrad("sam", p, false)
		if err != nil {
			return err
		}
		grads[i] = g
	}

	scale := s.rho / (gradNorm(grads) + s.eps)
	for i, p := range s.params {
		if grads[i] == nil {
			continue
		}
		ew := grads[i].Clone().Scale(scale)
		p.Tensor().Add(ew)
		s.stash.Put(ParamID(i), ew)
	}

	s.phase = PhasePerturbed
	return nil
}

// SecondStep restores the original weights and applies the base optimizer
// using the gradients computed at the perturbed point.
func (s *SAM) SecondStep() error {
	if s.phase != PhasePerturbed {
		return errors.Wrapf(ErrInvalidState, "sam: SecondStep called in phase %s", s.phase)
	}

	s.restore()

	if _, err := s.base.Step(nil); err != nil {
		return errors.WithMessage(err, "sam: base step")
	}
	return nil
}

// restore subtracts and drops every stashed perturbation.
func (s *SAM) restore() {
	s.stash.Range(func(id ParamID, ew *tensor.Dense) bool {
		s.params[id].Tensor().Sub(ew)
		s.stash.Delete(id)
		return true
	})
	s.phase = PhaseReady
}

// Step runs the full two-pass protocol, calling closure once at the
// current weights and once at the perturbed weights.
//
// Returns the loss of the second evaluation. A nil closure returns
// ErrInvalidState because SAM cannot run without re-evaluating gradients.
// If the second evaluation fails, the original weights are restored.
func (s *SAM) Step(closure Closure) (float64, error) {
	if closure == nil {
		return 0, errors.Wrap(ErrInvalidState, "sam: Step requires a closure; use FirstStep/SecondStep")
	}
	if s.phase != PhaseReady {
		return 0, errors.Wrapf(ErrInvalidState, "sam: Step called in phase %s", s.phase)
	}

	s.ZeroGrad()
	if _, err := closure(); err != nil {
		return 0, err
	}
	if err := s.FirstStep(); err != nil {
		return 0, err
	}

	s.ZeroGrad()
	loss, err := closure()
	if err != nil {
		s.restore()
		return 0, err
	}
	return loss, s.SecondStep()
}

// ZeroGrad delegates to the base optimizer.
func (s *SAM) ZeroGrad() {
	s.base.ZeroGrad()
}

// GetLR returns the base optimizer's learning rate.
func (s *SAM) GetLR() float64 {
	return s.base.GetLR()
}

// SetLR sets the base optimizer's learning rate.
func (s *SAM) SetLR(lr float64) {
	s.base.SetLR(lr)
}

// NumGroups returns the base optimizer's group count.
func (s *SAM) NumGroups() int {
	return s.base.NumGroups()
}

// GroupLR returns the learning rate of the base optimizer's group i.
func (s *SAM) GroupLR(i int) float64 {
	return s.base.GroupLR(i)
}

// SetGroupLR sets the learning rate of the base optimizer's group i.
func (s *SAM) SetGroupLR(i int, lr float64) {
	s.base.SetGroupLR(i, lr)
}

// Params returns the tracked parameters.
func (s *SAM) Params() []*nn.Parameter {
	return s.params
}
