// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package optim

import (
	"github.com/born-ml/optbench/internal/optim"
	"github.com/born-ml/optbench/nn"
)

// Optimizer interface defines the common interface for all optimizers.
type Optimizer = optim.Optimizer

// Closure recomputes the loss and populates parameter gradients.
type Closure = optim.Closure

// Group is an ordered set of parameters sharing one hyperparameter set.
type Group[C any] = optim.Group[C]

// ParamID is the stable index of a parameter within an optimizer.
type ParamID = optim.ParamID

// Store is the per-parameter state arena keyed by ParamID.
type Store[R any] = optim.Store[R]

// Error categories. Test with errors.Is.
var (
	ErrUnsupportedInput = optim.ErrUnsupportedInput
	ErrInvalidState     = optim.ErrInvalidState
	ErrConfiguration    = optim.ErrConfiguration
)

// SGD (Stochastic Gradient Descent)

// SGD represents the SGD optimizer with optional momentum.
type SGD = optim.SGD

// SGDConfig contains configuration for SGD optimizer.
type SGDConfig = optim.SGDConfig

// SGDState is the per-parameter SGD state.
type SGDState = optim.SGDState

// DefaultSGDConfig returns the default SGD hyperparameters.
func DefaultSGDConfig() SGDConfig {
	return optim.DefaultSGDConfig()
}

// NewSGD creates a new SGD optimizer.
//
// Example:
//
//	optimizer, err := optim.NewSGD(params, optim.SGDConfig{
//	    LR:       0.01,
//	    Momentum: 0.9,
//	})
func NewSGD(params []*nn.Parameter, config SGDConfig) (*SGD, error) {
	return optim.NewSGD(params, config)
}

// NewSGDGroups creates an SGD optimizer with per-group hyperparameters.
func NewSGDGroups(groups []Group[SGDConfig]) (*SGD, error) {
	return optim.NewSGDGroups(groups)
}

// AdamW (Adam with decoupled weight decay)

// AdamW represents the AdamW optimizer.
type AdamW = optim.AdamW

// AdamWConfig contains configuration for AdamW optimizer.
type AdamWConfig = optim.AdamWConfig

// AdamWState is the per-parameter AdamW state.
type AdamWState = optim.AdamWState

// DefaultAdamWConfig returns the default AdamW hyperparameters.
func DefaultAdamWConfig() AdamWConfig {
	return optim.DefaultAdamWConfig()
}

// NewAdamW creates a new AdamW optimizer with bias correction.
//
// Example:
//
//	optimizer, err := optim.NewAdamW(params, optim.AdamWConfig{
//	    LR:          1e-3,
//	    Betas:       [2]float64{0.9, 0.999},
//	    WeightDecay: 0.01,
//	})
func NewAdamW(params []*nn.Parameter, config AdamWConfig) (*AdamW, error) {
	return optim.NewAdamW(params, config)
}

// NewAdamWGroups creates an AdamW optimizer with per-group hyperparameters.
func NewAdamWGroups(groups []Group[AdamWConfig]) (*AdamW, error) {
	return optim.NewAdamWGroups(groups)
}

// LAMB (Layer-wise Adaptive Moments for Batch training)

// LAMB represents the LAMB optimizer.
type LAMB = optim.LAMB

// LAMBConfig contains configuration for LAMB optimizer.
type LAMBConfig = optim.LAMBConfig

// LAMBState is the per-parameter LAMB state.
type LAMBState = optim.LAMBState

// DefaultLAMBConfig returns the default LAMB hyperparameters.
func DefaultLAMBConfig() LAMBConfig {
	return optim.DefaultLAMBConfig()
}

// NewLAMB creates a new LAMB optimizer.
//
// Each parameter's update is rescaled by the trust ratio
// max(‖w‖, eps)/max(‖u‖, eps), capped at 10. Zero weights give eps/‖u‖;
// only when both norms are zero is the ratio 1.
//
// Example:
//
//	optimizer, err := optim.NewLAMB(params, optim.LAMBConfig{
//	    LR:          1e-3,
//	    WeightDecay: 0.01,
//	})
func NewLAMB(params []*nn.Parameter, config LAMBConfig) (*LAMB, error) {
	return optim.NewLAMB(params, config)
}

// NewLAMBGroups creates a LAMB optimizer with per-group hyperparameters.
func NewLAMBGroups(groups []Group[LAMBConfig]) (*LAMB, error) {
	return optim.NewLAMBGroups(groups)
}

// Adafactor (factored second moments)

// Adafactor represents the Adafactor optimizer.
type Adafactor = optim.Adafactor

// AdafactorConfig contains configuration for Adafactor optimizer.
type AdafactorConfig = optim.AdafactorConfig

// AdafactorState is the per-parameter Adafactor state.
type AdafactorState = optim.AdafactorState

// DefaultAdafactorConfig returns the default Adafactor hyperparameters.
func DefaultAdafactorConfig() AdafactorConfig {
	return optim.DefaultAdafactorConfig()
}

// NewAdafactor creates a new Adafactor optimizer.
//
// Example:
//
//	// Relative step size, no learning rate needed
//	optimizer, err := optim.NewAdafactor(params, optim.DefaultAdafactorConfig())
func NewAdafactor(params []*nn.Parameter, config AdafactorConfig) (*Adafactor, error) {
	return optim.NewAdafactor(params, config)
}

// NewAdafactorGroups creates an Adafactor optimizer with per-group hyperparameters.
func NewAdafactorGroups(groups []Group[AdafactorConfig]) (*Adafactor, error) {
	return optim.NewAdafactorGroups(groups)
}

// MuonLite (normalized gradient + momentum)

// MuonLite represents the MuonLite optimizer.
type MuonLite = optim.MuonLite

// MuonLiteConfig contains configuration for MuonLite optimizer.
type MuonLiteConfig = optim.MuonLiteConfig

// MuonState is the per-parameter MuonLite state.
type MuonState = optim.MuonState

// DefaultMuonLiteConfig returns the default MuonLite hyperparameters.
func DefaultMuonLiteConfig() MuonLiteConfig {
	return optim.DefaultMuonLiteConfig()
}

// NewMuonLite creates a new MuonLite optimizer.
//
// Each gradient is scaled to unit L2 norm before entering the momentum
// buffer, so the step size does not depend on the gradient's magnitude.
func NewMuonLite(params []*nn.Parameter, config MuonLiteConfig) (*MuonLite, error) {
	return optim.NewMuonLite(params, config)
}

// NewMuonLiteGroups creates a MuonLite optimizer with per-group hyperparameters.
func NewMuonLiteGroups(groups []Group[MuonLiteConfig]) (*MuonLite, error) {
	return optim.NewMuonLiteGroups(groups)
}

// SAM (Sharpness-Aware Minimization)

// SAM wraps a base optimizer with a two-pass perturb/restore step.
type SAM = optim.SAM

// SAMConfig contains configuration for the SAM wrapper.
type SAMConfig = optim.SAMConfig

// Phase is SAM's position in its two-pass protocol.
type Phase = optim.Phase

// SAM phases.
const (
	PhaseReady     Phase = optim.PhaseReady
	PhasePerturbed Phase = optim.PhasePerturbed
)

// DefaultSAMConfig returns the default SAM hyperparameters.
func DefaultSAMConfig() SAMConfig {
	return optim.DefaultSAMConfig()
}

// NewSAM wraps base with Sharpness-Aware Minimization.
//
// Example:
//
//	base, _ := optim.NewSGD(params, optim.SGDConfig{LR: 0.1, Momentum: 0.9})
//	sam, err := optim.NewSAM(base, optim.SAMConfig{Rho: 0.05})
func NewSAM(base Optimizer, config SAMConfig) (*SAM, error) {
	return optim.NewSAM(base, config)
}

// Registry

// Kind names an optimizer family.
type Kind = optim.Kind

// Optimizer kinds.
const (
	KindSGDMomentum Kind = optim.KindSGDMomentum
	KindAdamW       Kind = optim.KindAdamW
	KindLAMB        Kind = optim.KindLAMB
	KindAdafactor   Kind = optim.KindAdafactor
	KindSAM         Kind = optim.KindSAM
	KindMuon        Kind = optim.KindMuon
)

// Spec is a closed set of optimizer descriptions accepted by Build.
type Spec = optim.Spec

// Spec variants, one per Kind.
type (
	SGDMomentumSpec = optim.SGDMomentumSpec
	AdamWSpec       = optim.AdamWSpec
	LAMBSpec        = optim.LAMBSpec
	AdafactorSpec   = optim.AdafactorSpec
	SAMSpec         = optim.SAMSpec
	MuonSpec        = optim.MuonSpec
)

// Kinds returns every registered kind in a fixed order.
func Kinds() []Kind {
	return optim.Kinds()
}

// ParseKind resolves a case-insensitive optimizer name.
func ParseKind(name string) (Kind, error) {
	return optim.ParseKind(name)
}

// DefaultSpec returns the default Spec for k.
func DefaultSpec(k Kind) (Spec, error) {
	return optim.DefaultSpec(k)
}

// Build constructs the optimizer described by spec over params.
func Build(spec Spec, params []*nn.Parameter) (Optimizer, error) {
	return optim.Build(spec, params)
}

// Learning rate schedules

// Scheduler applies a warmup + cosine schedule to every parameter group.
type Scheduler = optim.Scheduler

// CosineSchedule returns the learning rate at step: linear warmup to maxLR,
// then cosine decay to minLR at totalSteps.
func CosineSchedule(step, warmupSteps, totalSteps int, maxLR, minLR float64) float64 {
	return optim.CosineSchedule(step, warmupSteps, totalSteps, maxLR, minLR)
}

// NewCosineScheduler creates a scheduler over opt's current group learning
// rates, decaying each to minRatio times its starting value.
func NewCosineScheduler(opt Optimizer, warmupSteps, totalSteps int, minRatio float64) *Scheduler {
	return optim.NewCosineScheduler(opt, warmupSteps, totalSteps, minRatio)
}
