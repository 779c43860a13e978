package optim

import (
	"github.com/pkg/errors"

	"github.com/born-ml/optbench/internal/nn"
	"github.com/born-ml/optbench/internal/tensor"
)

// Group is an ordered set of parameters sharing one hyperparameter set.
//
// Membership is fixed at construction; Config may be replaced later through
// SetGroupConfig or SetGroupLR (e.g. by a scheduler) and is read fresh on
// every step.
type Group[C any] struct {
	Params []*nn.Parameter
	Config C
}

// groupConfig is implemented by every per-group hyperparameter struct.
type groupConfig[C any] interface {
	learningRate() float64
	withLearningRate(lr float64) C
	// normalize applies zero-value defaults and validates the result.
	normalize() (C, error)
}

// entry is one validated (parameter, gradient) pair ready to be applied.
type entry struct {
	id    ParamID
	group int
	param *nn.Parameter
	grad  *tensor.Dense
}

// base carries what every grouped optimizer shares: the group list, the
// ParamID assignment and the state arena.
type base[C groupConfig[C], R record] struct {
	name     string
	groups   []Group[C]
	params   []*nn.Parameter // Indexed by ParamID
	groupOf  []int           // Indexed by ParamID
	ids      map[*nn.Parameter]ParamID
	store    *Store[R]
	newState func(p *nn.Parameter, config C) R
}

func newBase[C groupConfig[C], R record](name string, groups []Group[C], newState func(*nn.Parameter, C) R) (base[C, R], error) {
	b := base[C, R]{
		name:     name,
		ids:      make(map[*nn.Parameter]ParamID),
		newState: newState,
	}

	for gi, g := range groups {
		cfg, err := g.Config.normalize()
		if err != nil {
			return b, errors.WithMessagef(err, "%s: group %d", name, gi)
		}

		params := make([]*nn.Parameter, 0, len(g.Params))
		for _, p := range g.Params {
			if p == nil || p.Tensor() == nil {
				return b, configErrorf("%s: group %d contains a nil parameter", name, gi)
			}
			if _, dup := b.ids[p]; dup {
				return b, configErrorf("%s: parameter %q appears in more than one group", name, p.Name())
			}
			b.ids[p] = ParamID(len(b.params))
			b.params = append(b.params, p)
			b.groupOf = append(b.groupOf, gi)
			params = append(params, p)
		}
		b.groups = append(b.groups, Group[C]{Params: params, Config: cfg})
	}

	if len(b.params) == 0 {
		return b, configErrorf("%s: got an empty parameter list", name)
	}

	b.store = newStore[R](len(b.params))
	return b, nil
}

// singleGroup wraps a flat parameter list into one group.
func singleGroup[C any](params []*nn.Parameter, config C) []Group[C] {
	return []Group[C]{{Params: params, Config: config}}
}

// Params returns all tracked parameters in ParamID order.
func (b *base[C, R]) Params() []*nn.Parameter {
	return b.params
}

// ID returns the ParamID assigned to p.
func (b *base[C, R]) ID(p *nn.Parameter) (ParamID, bool) {
	id, ok := b.ids[p]
	return id, ok
}

// NumGroups returns the number of parameter groups.
func (b *base[C, R]) NumGroups() int {
	return len(b.groups)
}

// GroupConfig returns the current hyperparameters of group i.
func (b *base[C, R]) GroupConfig(i int) C {
	return b.groups[i].Config
}

// SetGroupConfig validates config and makes it group i's hyperparameters.
func (b *base[C, R]) SetGroupConfig(i int, config C) error {
	cfg, err := config.normalize()
	if err != nil {
		return errors.WithMessagef(err, "%s: group %d", b.name, i)
	}
	b.groups[i].Config = cfg
	return nil
}

// GroupLR returns the learning rate of group i.
func (b *base[C, R]) GroupLR(i int) float64 {
	return b.groups[i].Config.learningRate()
}

// SetGroupLR sets the learning rate of group i.
func (b *base[C, R]) SetGroupLR(i int, lr float64) {
	b.groups[i].Config = b.groups[i].Config.withLearningRate(lr)
}

// GetLR returns the learning rate of the first group.
func (b *base[C, R]) GetLR() float64 {
	return b.GroupLR(0)
}

// SetLR sets the learning rate of every group.
//
// Useful for learning rate scheduling during training.
func (b *base[C, R]) SetLR(lr float64) {
	for i := range b.groups {
		b.SetGroupLR(i, lr)
	}
}

// ZeroGrad clears gradients for all parameters.
func (b *base[C, R]) ZeroGrad() {
	for _, p := range b.params {
		p.ZeroGrad()
	}
}

// State returns the state record of p, if one has been created.
func (b *base[C, R]) State(p *nn.Parameter) (R, bool) {
	id, ok := b.ids[p]
	if !ok {
		var zero R
		return zero, false
	}
	return b.store.Get(id)
}

// StateStore exposes the state arena for enumeration.
func (b *base[C, R]) StateStore() *Store[R] {
	return b.store
}

// StateDict returns a copy of the optimizer state for serialization.
//
// State keys: "state.{param_id}.{field}" -> tensor. Scalars such as step
// counters are zero-rank tensors. Parameters without state are omitted.
func (b *base[C, R]) StateDict() map[string]*tensor.Dense {
	stateDict := make(map[string]*tensor.Dense)
	b.store.Range(func(id ParamID, r R) bool {
		r.export(func(field string, t *tensor.Dense) {
			stateDict[stateKey(id, field)] = t.Clone()
		})
		return true
	})
	return stateDict
}

// LoadStateDict replaces the optimizer state from serialization.
//
// Parameters with no keys in stateDict start without state and are
// initialized on their next step. Returns an error, leaving the current
// state untouched, if any field is missing or has the wrong shape.
func (b *base[C, R]) LoadStateDict(stateDict map[string]*tensor.Dense) error {
	store := newStore[R](len(b.params))

	for i, p := range b.params {
		id := ParamID(i)
		reader := stateReader{id: id, shape: p.Shape(), dict: stateDict}
		r := b.newState(p, b.groups[b.groupOf[i]].Config)
		if !hasAnyField(reader, r) {
			continue
		}
		if err := r.restore(reader); err != nil {
			return errors.WithMessage(err, b.name)
		}
		store.Put(id, r)
	}

	b.store = store
	return nil
}

// hasAnyField reports whether the dict holds any field a fresh record exports.
func hasAnyField(reader stateReader, fresh record) bool {
	found := false
	fresh.export(func(field string, _ *tensor.Dense) {
		if reader.has(field) {
			found = true
		}
	})
	return found
}

// collect validates every present gradient before anything is mutated.
//
// Sparse gradients are densified unless denseOnly is set, in which case
// they are rejected with ErrUnsupportedInput.
func (b *base[C, R]) collect(denseOnly bool) ([]entry, error) {
	var entries []entry
	for gi, g := range b.groups {
		for _, p := range g.Params {
			grad, err := checkGrad(b.name, p, denseOnly)
			if err != nil {
				return nil, err
			}
			if grad == nil {
				continue
			}
			entries = append(entries, entry{id: b.ids[p], group: gi, param: p, grad: grad})
		}
	}
	return entries, nil
}

// stateFor returns the record of e, creating it on first use.
func (b *base[C, R]) stateFor(e entry) R {
	return b.store.getOrInit(e.id, func() R { return b.newState(e.param, b.groups[e.group].Config) })
}

// checkGrad returns p's gradient as a dense tensor, nil if absent.
func checkGrad(name string, p *nn.Parameter, denseOnly bool) (*tensor.Dense, error) {
	raw := p.Grad()
	if raw == nil {
		return nil, nil
	}
	if !raw.Shape().Equal(p.Shape()) {
		return nil, configErrorf("%s: gradient shape %v does not match parameter %q shape %v",
			name, raw.Shape(), p.Name(), p.Shape())
	}
	if raw.IsSparse() && denseOnly {
		return nil, errors.Wrapf(ErrUnsupportedInput, "%s does not support sparse gradients (parameter %q)", name, p.Name())
	}
	return raw.ToDense(), nil
}
