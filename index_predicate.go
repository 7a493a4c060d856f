package statecache

import (
	"fmt"
	"iter"

	"github.com/hupe1980/statecache/change"
	"github.com/hupe1980/statecache/id"
	"github.com/hupe1980/statecache/internal/bitmap"
)

// PredicateIndex tracks the subset of entities satisfying a predicate.
// Entities that stop matching leave the index; the primary store is not
// affected.
type PredicateIndex[E id.Identified[E]] struct {
	name    string
	store   Store[E]
	pred    func(E) bool
	members *bitmap.Set
}

// AddPredicateIndex registers a filtered view of the entities matching pred.
func AddPredicateIndex[E id.Identified[E]](c *Cache[E], pred func(E) bool, opts ...IndexOption) (*PredicateIndex[E], error) {
	o := applyIndexOptions(KindPredicate, len(c.indexes), opts)
	ix := &PredicateIndex[E]{
		name:    o.name,
		store:   c.store,
		pred:    pred,
		members: bitmap.New(),
	}
	if err := c.register(KindPredicate, o.name, ix); err != nil {
		return nil, err
	}
	return ix, nil
}

// Validate implements Index. It evaluates the predicate for every new state
// so that a failing predicate aborts the batch before anything is mutated.
func (p *PredicateIndex[E]) Validate(batch []change.Change[E]) error {
	for _, ch := range batch {
		if e, ok := ch.New(); ok {
			_ = p.pred(e)
		}
	}
	return nil
}

// Apply implements Index.
func (p *PredicateIndex[E]) Apply(batch []change.Change[E]) {
	for _, ch := range batch {
		key := ch.ID().Int64()
		p.members.Remove(key)
		if e, ok := ch.New(); ok && p.pred(e) {
			p.members.Add(key)
		}
	}
}

// Name returns the index name.
func (p *PredicateIndex[E]) Name() string { return p.name }

// All returns the matching entities in ascending identity order.
func (p *PredicateIndex[E]) All() []E {
	return resolve(p.store, p.IDs())
}

// IDs returns the matching identities in ascending order.
func (p *PredicateIndex[E]) IDs() []id.ID[E] {
	out := make([]id.ID[E], 0, p.members.Len())
	for v := range p.members.All() {
		out = append(out, id.New[E](v))
	}
	return out
}

// Stream iterates over the matching entities in ascending identity order.
func (p *PredicateIndex[E]) Stream() iter.Seq[E] {
	return func(yield func(E) bool) {
		for v := range p.members.All() {
			e, ok := p.store.Get(id.New[E](v))
			if !ok {
				continue
			}
			if !yield(e) {
				return
			}
		}
	}
}

// Contains reports whether key matches the predicate.
func (p *PredicateIndex[E]) Contains(key id.ID[E]) bool {
	return p.members.Contains(key.Int64())
}

// Len returns the number of matching entities.
func (p *PredicateIndex[E]) Len() int { return p.members.Len() }

func (p *PredicateIndex[E]) verify(entities []E) error {
	expected := bitmap.New()
	for _, e := range entities {
		if p.pred(e) {
			expected.Add(e.ID().Int64())
		}
	}
	if !expected.Equal(p.members) {
		return &InconsistencyError{Index: p.name, Detail: fmt.Sprintf("holds %d members, store derives %d", p.members.Len(), expected.Len())}
	}
	return nil
}
