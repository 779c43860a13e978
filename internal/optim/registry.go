package optim

import (
	"strings"

	"github.com/born-ml/optbench/internal/nn"
)

// Kind names one of the optimizers Build knows how to construct.
type Kind string

// Known optimizer kinds.
const (
	KindSGDMomentum Kind = "sgd_momentum"
	KindAdamW       Kind = "adamw"
	KindLAMB        Kind = "lamb"
	KindAdafactor   Kind = "adafactor"
	KindSAM         Kind = "sam"
	KindMuon        Kind = "muon"
)

// Kinds returns every known kind in a stable order.
func Kinds() []Kind {
	return []Kind{KindSGDMomentum, KindAdamW, KindLAMB, KindAdafactor, KindSAM, KindMuon}
}

// ParseKind resolves an optimizer name, case-insensitively.
func ParseKind(name string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Kinds() {
		if k == known {
			return k, nil
		}
	}
	return "", configErrorf("unknown optimizer: %q", name)
}

// Spec selects an optimizer and carries its configuration.
//
// The set of implementations is closed: SGDMomentumSpec, AdamWSpec,
// LAMBSpec, AdafactorSpec, SAMSpec and MuonSpec.
type Spec interface {
	Kind() Kind
	isSpec()
}

// SGDMomentumSpec selects SGD with momentum.
type SGDMomentumSpec struct{ Config SGDConfig }

// AdamWSpec selects AdamW.
type AdamWSpec struct{ Config AdamWConfig }

// LAMBSpec selects LAMB.
type LAMBSpec struct{ Config LAMBConfig }

// AdafactorSpec selects Adafactor.
type AdafactorSpec struct{ Config AdafactorConfig }

// SAMSpec selects SAM wrapped around SGD with momentum.
type SAMSpec struct {
	Base   SGDConfig
	Config SAMConfig
}

// MuonSpec selects MuonLite.
type MuonSpec struct{ Config MuonLiteConfig }

func (SGDMomentumSpec) Kind() Kind { return KindSGDMomentum }
func (AdamWSpec) Kind() Kind       { return KindAdamW }
func (LAMBSpec) Kind() Kind        { return KindLAMB }
func (AdafactorSpec) Kind() Kind   { return KindAdafactor }
func (SAMSpec) Kind() Kind         { return KindSAM }
func (MuonSpec) Kind() Kind        { return KindMuon }

func (SGDMomentumSpec) isSpec() {}
func (AdamWSpec) isSpec()       {}
func (LAMBSpec) isSpec()        {}
func (AdafactorSpec) isSpec()   {}
func (SAMSpec) isSpec()         {}
func (MuonSpec) isSpec()        {}

// DefaultSpec returns the spec of kind k with default hyperparameters.
func DefaultSpec(k Kind) (Spec, error) {
	switch k {
	case KindSGDMomentum:
		return SGDMomentumSpec{Config: DefaultSGDConfig()}, nil
	case KindAdamW:
		return AdamWSpec{Config: DefaultAdamWConfig()}, nil
	case KindLAMB:
		return LAMBSpec{Config: DefaultLAMBConfig()}, nil
	case KindAdafactor:
		return AdafactorSpec{Config: DefaultAdafactorConfig()}, nil
	case KindSAM:
		return SAMSpec{Base: DefaultSGDConfig(), Config: DefaultSAMConfig()}, nil
	case KindMuon:
		return MuonSpec{Config: DefaultMuonLiteConfig()}, nil
	default:
		return nil, configErrorf("unknown optimizer: %q", k)
	}
}

// Build constructs the optimizer selected by spec over a flat parameter list.
//
// On error the returned Optimizer is nil, never a typed nil pointer.
func Build(spec Spec, params []*nn.Parameter) (Optimizer, error) {
	var (
		opt Optimizer
		err error
	)
	switch s := spec.(type) {
	case SGDMomentumSpec:
		opt, err = NewSGD(params, s.Config)
	case AdamWSpec:
		opt, err = NewAdamW(params, s.Config)
	case LAMBSpec:
		opt, err = NewLAMB(params, s.Config)
	case AdafactorSpec:
		opt, err = NewAdafactor(params, s.Config)
	case SAMSpec:
		opt, err = buildSAM(params, s)
	case MuonSpec:
		opt, err = NewMuonLite(params, s.Config)
	case nil:
		return nil, configErrorf("no optimizer spec given")
	default:
		return nil, configErrorf("unsupported optimizer spec %T", spec)
	}
	if err != nil {
		return nil, err
	}
	return opt, nil
}

func buildSAM(params []*nn.Parameter, s SAMSpec) (*SAM, error) {
	base, err := NewSGD(params, s.Base)
	if err != nil {
		return nil, err
	}
	return NewSAM(base, s.Config)
}
