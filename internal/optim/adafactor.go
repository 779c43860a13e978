package optim

import (
	"math"

	"github.com/born-ml/optbench/internal/nn"
	"github.com/born-ml/optbench/internal/tensor"
)

// Adafactor implements the Adafactor optimizer with the semantics of the
// Hugging Face transformers implementation.
//
// For parameters of rank >= 2 the second moment is factored into row and
// column statistics over the last two dimensions, so memory is O(n+m)
// instead of O(n·m) per matrix. Lower-rank parameters keep a full second
// moment.
//
//	beta2_t = 1 - t^decay_rate
//	r = beta2_t * r + (1-beta2_t) * mean_cols(g² + eps1)
//	c = beta2_t * c + (1-beta2_t) * mean_rows(g² + eps1)
//	u = g / sqrt(r ⊗ c / mean(r))
//	u = u / max(RMS(u) / clip_threshold, 1)
//	u = lr_t * u                         (then EMA with beta1 if enabled)
//	w = w - weight_decay * lr_t * w - u
//
// With RelativeStep the learning rate is derived from the step count
// (min(1e-2, 1/sqrt(t)), or 1e-6·t with WarmupInit); with ScaleParameter it
// is further multiplied by max(eps2, RMS(w)).
//
// Reference: "Adafactor: Adaptive Learning Rates with Sublinear Memory Cost"
// (Shazeer & Stern, 2018)
//
// Sparse gradients are rejected with ErrUnsupportedInput.
type Adafactor struct {
	base[AdafactorConfig, *AdafactorState]
}

// AdafactorConfig holds configuration for the Adafactor optimizer.
//
// Booleans cannot carry zero-value defaults; use DefaultAdafactorConfig for
// the usual RelativeStep and ScaleParameter settings.
type AdafactorConfig struct {
	LR             float64    // External learning rate; must be 0 when RelativeStep is set
	Eps            [2]float64 // Regularizers for squared gradient and parameter scale (default: [1e-30, 1e-3])
	ClipThreshold  float64    // Threshold of root mean square of final update (default: 1.0)
	DecayRate      float64    // Exponent of the second-moment decay schedule (default: -0.8)
	Beta1          float64    // First moment coefficient; 0 disables the first moment
	WeightDecay    float64    // Decoupled weight decay (default: 0)
	ScaleParameter bool       // Scale the learning rate by the parameter RMS
	RelativeStep   bool       // Derive the learning rate from the step count
	WarmupInit     bool       // Warm the relative step up linearly (requires RelativeStep)
}

// DefaultAdafactorConfig returns the default Adafactor hyperparameters.
func DefaultAdafactorConfig() AdafactorConfig {
	return AdafactorConfig{
		Eps:            [2]float64{1e-30, 1e-3},
		ClipThreshold:  1.0,
		DecayRate:      -0.8,
		ScaleParameter: true,
		RelativeStep:   true,
	}
}

func (c AdafactorConfig) learningRate() float64 { return c.LR }

func (c AdafactorConfig) withLearningRate(lr float64) AdafactorConfig {
	c.LR = lr
	return c
}

func (c AdafactorConfig) normalize() (AdafactorConfig, error) {
	d := DefaultAdafactorConfig()
	if c.Eps == [2]float64{} {
		c.Eps = d.Eps
	}
	if c.ClipThreshold == 0 {
		c.ClipThreshold = d.ClipThreshold
	}
	if c.DecayRate == 0 {
		c.DecayRate = d.DecayRate
	}

	if err := checkLR("adafactor", c.LR); err != nil {
		return c, err
	}
	if c.LR != 0 && c.RelativeStep {
		return c, configErrorf("adafactor: cannot combine manual lr and relative_step options")
	}
	if c.LR == 0 && !c.RelativeStep {
		return c, configErrorf("adafactor: lr is required when relative_step is disabled")
	}
	if c.WarmupInit && !c.RelativeStep {
		return c, configErrorf("adafactor: warmup_init requires relative_step")
	}
	for i, eps := range c.Eps {
		if err := checkEps("adafactor", eps); err != nil {
			return c, configErrorf("adafactor: invalid eps at index %d: %v", i, eps)
		}
	}
	if math.IsNaN(c.ClipThreshold) || c.ClipThreshold <= 0 {
		return c, configErrorf("adafactor: invalid clip_threshold %v (must be > 0)", c.ClipThreshold)
	}
	if math.IsNaN(c.DecayRate) || c.DecayRate >= 0 {
		return c, configErrorf("adafactor: invalid decay_rate %v (must be < 0)", c.DecayRate)
	}
	if err := checkMomentum("adafactor", c.Beta1); err != nil {
		return c, err
	}
	return c, checkWeightDecay("adafactor", c.WeightDecay)
}

// AdafactorState is the per-parameter state of Adafactor.
//
// Exactly one of ExpAvgSq or the ExpAvgSqRow/ExpAvgSqCol pair is set,
// depending on whether the parameter is factored.
type AdafactorState struct {
	Step        int
	RMS         float64       // RMS of the parameter at the last step
	ExpAvg      *tensor.Dense // First moment (only when Beta1 > 0)
	ExpAvgSq    *tensor.Dense // Full second moment (rank < 2)
	ExpAvgSqRow *tensor.Dense // Row statistics, shape[:-1] (rank >= 2)
	ExpAvgSqCol *tensor.Dense // Column statistics, shape[:-2]+shape[-1:] (rank >= 2)
}

func (s *AdafactorState) factored() bool {
	return s.ExpAvgSqRow != nil
}

func (s *AdafactorState) export(put func(string, *tensor.Dense)) {
	put("step", scalar(float64(s.Step)))
	put("RMS", scalar(s.RMS))
	if s.ExpAvg != nil {
		put("exp_avg", s.ExpAvg)
	}
	if s.factored() {
		put("exp_avg_sq_row", s.ExpAvgSqRow)
		put("exp_avg_sq_col", s.ExpAvgSqCol)
	} else {
		put("exp_avg_sq", s.ExpAvgSq)
	}
}

func (s *AdafactorState) restore(r stateReader) error {
	var err error
	if s.Step, err = r.step("step"); err != nil {
		return err
	}
	if s.RMS, err = r.scalar("RMS"); err != nil {
		return err
	}
	if s.ExpAvg != nil {
		if s.ExpAvg, err = r.tensor("exp_avg", r.shape); err != nil {
			return err
		}
	}
	if s.factored() {
		if s.ExpAvgSqRow, err = r.tensor("exp_avg_sq_row", s.ExpAvgSqRow.Shape()); err != nil {
			return err
		}
		s.ExpAvgSqCol, err = r.tensor("exp_avg_sq_col", s.ExpAvgSqCol.Shape())
		return err
	}
	s.ExpAvgSq, err = r.tensor("exp_avg_sq", r.shape)
	return err
}

func newAdafactorState(p *nn.Parameter, cfg AdafactorConfig) *AdafactorState {
	shape := p.Shape()
	st := &AdafactorState{}
	if cfg.Beta1 > 0 {
		st.ExpAvg = tensor.Zeros(shape)
	}
	if len(shape) >= 2 {
		n := len(shape)
		st.ExpAvgSqRow = tensor.Zeros(shape[:n-1])
		colShape := append(shape[:n-2].Clone(), shape[n-1])
		st.ExpAvgSqCol = tensor.Zeros(colShape)
	} else {
		st.ExpAvgSq = tensor.Zeros(shape)
	}
	return st
}

// NewAdafactor creates an Adafactor optimizer over a single parameter group.
func NewAdafactor(params []*nn.Parameter, config AdafactorConfig) (*Adafactor, error) {
	return NewAdafactorGroups(singleGroup(params, config))
}

// NewAdafactorGroups creates an Adafactor optimizer over ordered parameter groups.
func NewAdafactorGroups(groups []Group[AdafactorConfig]) (*Adafactor, error) {
	b, err := newBase("adafactor", groups, newAdafactorState)
	if err != nil {
		return nil, err
	}
	return &Adafactor{base: b}, nil
}

// Step performs a single optimization step.
//
// Parameters with no gradient are skipped.
func (a *Adafactor) Step(closure Closure) (float64, error) {
	loss, err := evalClosure(closure)
	if err != nil {
		return 0, err
	}

	entries, err := a.collect(true)
	if err != nil {
		return loss, err
	}

	for _, e := range entries {
		a.updateParameter(e.param.Tensor(), e.grad, a.stateFor(e), a.groups[e.group].Config)
	}
	return loss, nil
}

// adafactorLR returns the effective learning rate for one parameter.
func adafactorLR(cfg AdafactorConfig, step int, rms float64) float64 {
	relStep := cfg.LR
	if cfg.RelativeStep {
		minStep := 1e-2
		if cfg.WarmupInit {
			minStep = 1e-6 * float64(step)
		}
		relStep = math.Min(minStep, 1/math.Sqrt(float64(step)))
	}
	paramScale := 1.0
	if cfg.ScaleParameter {
		paramScale = math.Max(cfg.Eps[1], rms)
	}
	return paramScale * relStep
}

func (a *Adafactor) updateParameter(w, grad *tensor.Dense, st *AdafactorState, cfg AdafactorConfig) {
	st.Step++
	st.RMS = w.RMS()
	lr := adafactorLR(cfg, st.Step, st.RMS)
	beta2t := 1.0 - math.Pow(float64(st.Step), cfg.DecayRate)

	update := grad.Clone().Square().AddConst(cfg.Eps[0])
	if st.factored() {
		approxRsqrtSecondMoment(update, st, beta2t)
		update.Mul(grad)
	} else {
		st.ExpAvgSq.Scale(beta2t).AddScaled(1-beta2t, update)
		update.CopyFrom(st.ExpAvgSq).Rsqrt().Mul(grad)
	}

	update.Scale(1 / math.Max(update.RMS()/cfg.ClipThreshold, 1.0))
	update.Scale(lr)

	if cfg.Beta1 > 0 {
		if st.ExpAvg == nil {
			// Beta1 was enabled after this state was created.
			st.ExpAvg = tensor.ZerosLike(w)
		}
		st.ExpAvg.Scale(cfg.Beta1).AddScaled(1-cfg.Beta1, update)
		update = st.ExpAvg
	}

	if cfg.WeightDecay != 0 {
		w.Scale(1 - cfg.WeightDecay*lr)
	}
	w.Sub(update)
}

// approxRsqrtSecondMoment folds sq (g² + eps1) into the factored row and
// column statistics, then overwrites sq with the reciprocal square root of
// the rank-1 second-moment approximation.
func approxRsqrtSecondMoment(sq *tensor.Dense, st *AdafactorState, beta2t float64) {
	batch, rows, cols, _ := sq.Shape().Matrices()
	u := sq.Data()
	row := st.ExpAvgSqRow.Data()
	col := st.ExpAvgSqCol.Data()

	for b := 0; b < batch; b++ {
		m := u[b*rows*cols : (b+1)*rows*cols]
		r := row[b*rows : (b+1)*rows]
		c := col[b*cols : (b+1)*cols]

		for i := 0; i < rows; i++ {
			mean := 0.0
			for j := 0; j < cols; j++ {
				mean += m[i*cols+j]
			}
			r[i] = beta2t*r[i] + (1-beta2t)*mean/float64(cols)
		}
		for j := 0; j < cols; j++ {
			mean := 0.0
			for i := 0; i < rows; i++ {
				mean += m[i*cols+j]
			}
			c[j] = beta2t*c[j] + (1-beta2t)*mean/float64(rows)
		}

		rowMean := 0.0
		for _, v := range r {
			rowMean += v
		}
		rowMean /= float64(rows)

		for i := 0; i < rows; i++ {
			rf := 1 / math.Sqrt(r[i]/rowMean)
			for j := 0; j < cols; j++ {
				m[i*cols+j] = rf / math.Sqrt(c[j])
			}
		}
	}
}
