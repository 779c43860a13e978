package config

import (
	"reflect"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/born-ml/optbench/internal/optim"
)

// OptimizerConfig is one entry of the optimizers list.
type OptimizerConfig struct {
	Label string     // Name used in logs and reports; defaults to the kind
	Spec  optim.Spec // Kind and hyperparameters
}

// optimizerFields is the YAML shape of an optimizer entry. Pointers tell
// an absent key apart from an explicit zero.
type optimizerFields struct {
	Name           string    `yaml:"name"`
	Label          string    `yaml:"label"`
	LR             *float64  `yaml:"lr"`
	Betas          []float64 `yaml:"betas"`
	Eps            *float64  `yaml:"eps"`
	Momentum       *float64  `yaml:"momentum"`
	Nesterov       *bool     `yaml:"nesterov"`
	WeightDecay    *float64  `yaml:"weight_decay"`
	Rho            *float64  `yaml:"rho"`
	RelativeStep   *bool     `yaml:"relative_step"`
	ScaleParameter *bool     `yaml:"scale_parameter"`
	WarmupInit     *bool     `yaml:"warmup_init"`
	Beta1          *float64  `yaml:"beta1"`
	ClipThreshold  *float64  `yaml:"clip_threshold"`
	DecayRate      *float64  `yaml:"decay_rate"`
}

// optimizerKeys holds every key an optimizer entry may use.
var optimizerKeys = yamlKeys(reflect.TypeOf(optimizerFields{}))

func yamlKeys(t reflect.Type) map[string]bool {
	keys := make(map[string]bool, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		name, _, _ := strings.Cut(t.Field(i).Tag.Get("yaml"), ",")
		keys[name] = true
	}
	return keys
}

// UnmarshalYAML decodes an entry over the defaults of its kind.
//
// node.Decode does not inherit the outer decoder's KnownFields setting, so
// keys are checked here.
func (o *OptimizerConfig) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(node.Content); i += 2 {
			if k := node.Content[i]; !optimizerKeys[k.Value] {
				return invalidf("line %d: unknown optimizer key %q", k.Line, k.Value)
			}
		}
	}

	var f optimizerFields
	if err := node.Decode(&f); err != nil {
		return err
	}

	kind, err := optim.ParseKind(f.Name)
	if err != nil {
		return invalidf("line %d: %v", node.Line, err)
	}
	spec, err := optim.DefaultSpec(kind)
	if err != nil {
		return err
	}

	var betas *[2]float64
	if f.Betas != nil {
		if len(f.Betas) != 2 {
			return invalidf("line %d: betas needs 2 values, got %d", node.Line, len(f.Betas))
		}
		betas = &[2]float64{f.Betas[0], f.Betas[1]}
	}

	switch s := spec.(type) {
	case optim.SGDMomentumSpec:
		f.applySGD(&s.Config)
		spec = s
	case optim.AdamWSpec:
		set(&s.Config.LR, f.LR)
		set(&s.Config.Betas, betas)
		set(&s.Config.Eps, f.Eps)
		set(&s.Config.WeightDecay, f.WeightDecay)
		spec = s
	case optim.LAMBSpec:
		set(&s.Config.LR, f.LR)
		set(&s.Config.Betas, betas)
		set(&s.Config.Eps, f.Eps)
		set(&s.Config.WeightDecay, f.WeightDecay)
		spec = s
	case optim.AdafactorSpec:
		set(&s.Config.LR, f.LR)
		set(&s.Config.WeightDecay, f.WeightDecay)
		set(&s.Config.RelativeStep, f.RelativeStep)
		set(&s.Config.ScaleParameter, f.ScaleParameter)
		set(&s.Config.WarmupInit, f.WarmupInit)
		set(&s.Config.Beta1, f.Beta1)
		set(&s.Config.ClipThreshold, f.ClipThreshold)
		set(&s.Config.DecayRate, f.DecayRate)
		spec = s
	case optim.SAMSpec:
		f.applySGD(&s.Base)
		set(&s.Config.Rho, f.Rho)
		spec = s
	case optim.MuonSpec:
		set(&s.Config.LR, f.LR)
		set(&s.Config.Momentum, f.Momentum)
		set(&s.Config.WeightDecay, f.WeightDecay)
		set(&s.Config.Eps, f.Eps)
		spec = s
	}

	o.Spec = spec
	o.Label = f.Label
	if o.Label == "" {
		o.Label = string(kind)
	}
	return nil
}

// MarshalYAML writes the entry back in the same shape it is read.
func (o OptimizerConfig) MarshalYAML() (any, error) {
	out := map[string]any{"name": string(o.Spec.Kind())}
	if o.Label != string(o.Spec.Kind()) {
		out["label"] = o.Label
	}
	switch s := o.Spec.(type) {
	case optim.SGDMomentumSpec:
		putSGD(out, s.Config)
	case optim.AdamWSpec:
		out["lr"], out["betas"], out["eps"], out["weight_decay"] = s.Config.LR, s.Config.Betas[:], s.Config.Eps, s.Config.WeightDecay
	case optim.LAMBSpec:
		out["lr"], out["betas"], out["eps"], out["weight_decay"] = s.Config.LR, s.Config.Betas[:], s.Config.Eps, s.Config.WeightDecay
	case optim.AdafactorSpec:
		c := s.Config
		if c.LR != 0 {
			out["lr"] = c.LR
		}
		out["weight_decay"] = c.WeightDecay
		out["relative_step"] = c.RelativeStep
		out["scale_parameter"] = c.ScaleParameter
		out["warmup_init"] = c.WarmupInit
		out["beta1"] = c.Beta1
		out["clip_threshold"] = c.ClipThreshold
		out["decay_rate"] = c.DecayRate
	case optim.SAMSpec:
		putSGD(out, s.Base)
		out["rho"] = s.Config.Rho
	case optim.MuonSpec:
		out["lr"], out["momentum"], out["weight_decay"], out["eps"] = s.Config.LR, s.Config.Momentum, s.Config.WeightDecay, s.Config.Eps
	}
	return out, nil
}

func (f *optimizerFields) applySGD(c *optim.SGDConfig) {
	set(&c.LR, f.LR)
	set(&c.Momentum, f.Momentum)
	set(&c.Nesterov, f.Nesterov)
	set(&c.WeightDecay, f.WeightDecay)
}

func putSGD(out map[string]any, c optim.SGDConfig) {
	out["lr"] = c.LR
	out["momentum"] = c.Momentum
	out["nesterov"] = c.Nesterov
	out["weight_decay"] = c.WeightDecay
}

// set overwrites *dst when the key was present.
func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
