package optim

import (
	"fmt"
	"math"

	"github.com/pkg/errors"

	"github.com/born-ml/optbench/internal/tensor"
)

// ParamID identifies a parameter within one optimizer.
//
// Ids are assigned at construction in group order, then insertion order
// within each group, and never change afterwards.
type ParamID int

// Store is an arena of per-parameter state records indexed by ParamID.
//
// Records are created lazily the first time a parameter is stepped with a
// present gradient. A Store is owned by exactly one optimizer.
type Store[R any] struct {
	records []R
	present []bool
}

func newStore[R any](n int) *Store[R] {
	return &Store[R]{
		records: make([]R, n),
		present: make([]bool, n),
	}
}

// Get returns the record for id and whether it exists.
func (s *Store[R]) Get(id ParamID) (R, bool) {
	if int(id) < 0 || int(id) >= len(s.records) || !s.present[id] {
		var zero R
		return zero, false
	}
	return s.records[id], true
}

// Put stores r as the record for id.
func (s *Store[R]) Put(id ParamID, r R) {
	s.records[id] = r
	s.present[id] = true
}

// Delete removes the record for id, if any.
func (s *Store[R]) Delete(id ParamID) {
	var zero R
	s.records[id] = zero
	s.present[id] = false
}

// Len returns the number of records present.
func (s *Store[R]) Len() int {
	n := 0
	for _, ok := range s.present {
		if ok {
			n++
		}
	}
	return n
}

// Range calls fn for every present record in id order until fn returns false.
func (s *Store[R]) Range(fn func(id ParamID, r R) bool) {
	for i, ok := range s.present {
		if !ok {
			continue
		}
		if !fn(ParamID(i), s.records[i]) {
			return
		}
	}
}

func (s *Store[R]) getOrInit(id ParamID, init func() R) R {
	if r, ok := s.Get(id); ok {
		return r
	}
	r := init()
	s.Put(id, r)
	return r
}

// record is implemented by every per-parameter state type so the state
// store can be exported and restored without knowing the algorithm.
type record interface {
	// export emits every persistent field.
	export(put func(field string, t *tensor.Dense))

	// restore reads every persistent field, validating tensor shapes
	// against the owning parameter's shape.
	restore(r stateReader) error
}

// stateKey formats a state dict key: "state.{param_id}.{field}".
func stateKey(id ParamID, field string) string {
	return fmt.Sprintf("state.%d.%s", id, field)
}

// scalar wraps a persistent scalar (step counters, running RMS) as a
// zero-rank tensor so it can travel in a state dict.
func scalar(v float64) *tensor.Dense {
	return tensor.Full(tensor.Shape{}, v)
}

// stateReader resolves the fields of one parameter's record.
type stateReader struct {
	id    ParamID
	shape tensor.Shape
	dict  map[string]*tensor.Dense
}

func (r stateReader) has(field string) bool {
	_, ok := r.dict[stateKey(r.id, field)]
	return ok
}

// tensor returns a copy of field with the given shape.
func (r stateReader) tensor(field string, shape tensor.Shape) (*tensor.Dense, error) {
	t, ok := r.dict[stateKey(r.id, field)]
	if !ok {
		return nil, configErrorf("state for parameter %d is missing %q", r.id, field)
	}
	if !t.Shape().Equal(shape) {
		return nil, configErrorf("%s shape mismatch for parameter %d: expected %v, got %v",
			field, r.id, shape, t.Shape())
	}
	return t.Clone(), nil
}

func (r stateReader) scalar(field string) (float64, error) {
	t, ok := r.dict[stateKey(r.id, field)]
	if !ok {
		return 0, configErrorf("state for parameter %d is missing %q", r.id, field)
	}
	if t.NumElements() != 1 {
		return 0, configErrorf("%s for parameter %d must be a scalar, got shape %v", field, r.id, t.Shape())
	}
	return t.Data()[0], nil
}

func (r stateReader) step(field string) (int, error) {
	v, err := r.scalar(field)
	if err != nil {
		return 0, err
	}
	if v < 0 || v != math.Trunc(v) {
		return 0, errors.Wrapf(ErrConfiguration, "%s for parameter %d must be a non-negative integer, got %v", field, r.id, v)
	}
	return int(v), nil
}
