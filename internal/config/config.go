// Package config loads optbench experiment configuration from YAML.
//
// A config file has four sections:
//
//	seed: 42
//	run:        {max_steps, log_every, eval_every, workers, schedule, warmup_steps, min_lr_ratio}
//	task:       {name, dim, condition, classes, features, ...}
//	optimizers: [{name: lamb, lr: 0.01}, {name: sam, rho: 0.05}, ...]
//
// Every section is decoded over Default(), so a file only needs the values it
// changes. Each optimizer entry is decoded over the defaults of its kind.
package config

import (
	"bytes"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/born-ml/optbench/internal/optim"
)

// Schedule names accepted by RunConfig.Schedule.
const (
	ScheduleConstant = "constant"
	ScheduleCosine   = "cosine"
)

// Config is a full experiment: one task, several optimizers.
type Config struct {
	Seed       int64             `yaml:"seed"`
	Run        RunConfig         `yaml:"run"`
	Task       TaskConfig        `yaml:"task"`
	Optimizers []OptimizerConfig `yaml:"optimizers"`
}

// RunConfig controls the training loop.
type RunConfig struct {
	MaxSteps    int     `yaml:"max_steps"`
	LogEvery    int     `yaml:"log_every"`
	EvalEvery   int     `yaml:"eval_every"`
	Workers     int     `yaml:"workers"` // Concurrent runs in a sweep; 0 means one per CPU
	Schedule    string  `yaml:"schedule"`
	WarmupSteps int     `yaml:"warmup_steps"`
	MinLRRatio  float64 `yaml:"min_lr_ratio"`
}

// TaskConfig selects and sizes a synthetic objective. Fields irrelevant to
// the selected task are ignored.
type TaskConfig struct {
	Name string `yaml:"name"`

	// quadratic
	Dim       int     `yaml:"dim"`
	Condition float64 `yaml:"condition"`

	// softmax
	Classes      int     `yaml:"classes"`
	Features     int     `yaml:"features"`
	TrainSamples int     `yaml:"train_samples"`
	ValSamples   int     `yaml:"val_samples"`
	Spread       float64 `yaml:"spread"`

	// bigram
	VocabSize   int `yaml:"vocab_size"`
	TrainTokens int `yaml:"train_tokens"`
	ValTokens   int `yaml:"val_tokens"`
}

// Default returns the built-in experiment: every optimizer on a small
// softmax-regression task.
func Default() *Config {
	cfg := &Config{
		Seed: 42,
		Run: RunConfig{
			MaxSteps:   200,
			LogEvery:   20,
			EvalEvery:  100,
			Schedule:   ScheduleConstant,
			MinLRRatio: 0.1,
		},
		Task: TaskConfig{
			Name:         "softmax",
			Dim:          16,
			Condition:    100,
			Classes:      4,
			Features:     8,
			TrainSamples: 512,
			ValSamples:   256,
			Spread:       1.0,
			VocabSize:    16,
			TrainTokens:  4096,
			ValTokens:    1024,
		},
	}
	for _, k := range optim.Kinds() {
		spec, _ := optim.DefaultSpec(k)
		cfg.Optimizers = append(cfg.Optimizers, OptimizerConfig{Label: string(k), Spec: spec})
	}
	return cfg
}

// Load reads and validates the config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "config: read")
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, errors.WithMessage(err, path)
	}
	return cfg, nil
}

// Parse decodes YAML over Default and validates the result.
// Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, optim.ErrConfiguration) {
			return nil, err
		}
		return nil, errors.Wrapf(optim.ErrConfiguration, "config: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks run bounds and optimizer labels.
func (c *Config) Validate() error {
	r := c.Run
	switch {
	case r.MaxSteps <= 0:
		return invalidf("run.max_steps must be > 0, got %d", r.MaxSteps)
	case r.LogEvery <= 0:
		return invalidf("run.log_every must be > 0, got %d", r.LogEvery)
	case r.EvalEvery <= 0:
		return invalidf("run.eval_every must be > 0, got %d", r.EvalEvery)
	case r.Workers < 0:
		return invalidf("run.workers must be >= 0, got %d", r.Workers)
	case r.WarmupSteps < 0:
		return invalidf("run.warmup_steps must be >= 0, got %d", r.WarmupSteps)
	case r.MinLRRatio < 0 || r.MinLRRatio > 1:
		return invalidf("run.min_lr_ratio must be in [0, 1], got %v", r.MinLRRatio)
	}
	if r.Schedule != ScheduleConstant && r.Schedule != ScheduleCosine {
		return invalidf("run.schedule must be %q or %q, got %q", ScheduleConstant, ScheduleCosine, r.Schedule)
	}
	if strings.TrimSpace(c.Task.Name) == "" {
		return invalidf("task.name is required")
	}

	if len(c.Optimizers) == 0 {
		return invalidf("at least one optimizer is required")
	}
	seen := make(map[string]bool, len(c.Optimizers))
	for i, o := range c.Optimizers {
		if o.Spec == nil {
			return invalidf("optimizers[%d] has no optimizer kind", i)
		}
		if seen[o.Label] {
			return invalidf("duplicate optimizer label %q", o.Label)
		}
		seen[o.Label] = true
	}
	return nil
}

// Select keeps only the optimizers whose label or kind is in names,
// preserving file order. An empty names list keeps everything.
func (c *Config) Select(names []string) error {
	if len(names) == 0 {
		return nil
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[strings.ToLower(strings.TrimSpace(n))] = true
	}

	var kept []OptimizerConfig
	for _, o := range c.Optimizers {
		if want[strings.ToLower(o.Label)] || want[string(o.Spec.Kind())] {
			kept = append(kept, o)
		}
	}
	if len(kept) == 0 {
		return invalidf("no configured optimizer matches %v", names)
	}
	c.Optimizers = kept
	return nil
}

func invalidf(format string, args ...any) error {
	return errors.Wrapf(optim.ErrConfiguration, "config: "+format, args...)
}

// Marshal encodes the resolved config, defaults included, as YAML that
// Parse reads back to the same experiment.
func (c *Config) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, errors.Wrap(err, "config: encode")
	}
	if err := enc.Close(); err != nil {
		return nil, errors.Wrap(err, "config: encode")
	}
	return buf.Bytes(), nil
}
