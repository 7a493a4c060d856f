package statecache

import (
	"fmt"
	"iter"

	"github.com/hupe1980/statecache/change"
	"github.com/hupe1980/statecache/id"
	"github.com/hupe1980/statecache/internal/bitmap"
)

// groupIndex maps every derived key to the set of identities yielding it.
// Keys are not unique, so validation only runs the derivation to surface
// failures before the batch commits.
type groupIndex[K comparable, E id.Identified[E]] struct {
	name   string
	store  Store[E]
	keys   func(E) []K
	groups map[K]*bitmap.Set
}

func newGroupIndex[K comparable, E id.Identified[E]](name string, store Store[E], keys func(E) []K) groupIndex[K, E] {
	return groupIndex[K, E]{
		name:   name,
		store:  store,
		keys:   keys,
		groups: make(map[K]*bitmap.Set),
	}
}

// Validate implements Index. Group keys never conflict; evaluating them only
// surfaces a panicking key function before the batch is committed.
func (g *groupIndex[K, E]) Validate(batch []change.Change[E]) error {
	for _, ch := range batch {
		if e, ok := ch.New(); ok {
			_ = g.keys(e)
		}
	}
	return nil
}

// Apply implements Index.
func (g *groupIndex[K, E]) Apply(batch []change.Change[E]) {
	for _, ch := range batch {
		if e, ok := ch.Old(); ok {
			for _, k := range g.keys(e) {
				g.remove(k, e.ID())
			}
		}
		if e, ok := ch.New(); ok {
			for _, k := range g.keys(e) {
				g.add(k, e.ID())
			}
		}
	}
}

func (g *groupIndex[K, E]) add(k K, key id.ID[E]) {
	set, ok := g.groups[k]
	if !ok {
		set = bitmap.New()
		g.groups[k] = set
	}
	set.Add(key.Int64())
}

func (g *groupIndex[K, E]) remove(k K, key id.ID[E]) {
	set, ok := g.groups[k]
	if !ok {
		return
	}
	set.Remove(key.Int64())
	if set.IsEmpty() {
		delete(g.groups, k)
	}
}

// Name returns the index name.
func (g *groupIndex[K, E]) Name() string { return g.name }

// Get returns the entities yielding k in ascending identity order.
func (g *groupIndex[K, E]) Get(k K) []E {
	return resolve(g.store, g.IDs(k))
}

// IDs returns the identities yielding k in ascending order.
func (g *groupIndex[K, E]) IDs(k K) []id.ID[E] {
	set, ok := g.groups[k]
	if !ok {
		return nil
	}
	out := make([]id.ID[E], 0, set.Len())
	for v := range set.All() {
		out = append(out, id.New[E](v))
	}
	return out
}

// Stream iterates over the entities yielding k in ascending identity order.
func (g *groupIndex[K, E]) Stream(k K) iter.Seq[E] {
	return func(yield func(E) bool) {
		set, ok := g.groups[k]
		if !ok {
			return
		}
		for v := range set.All() {
			e, ok := g.store.Get(id.New[E](v))
			if !ok {
				continue
			}
			if !yield(e) {
				return
			}
		}
	}
}

// Count returns the number of entities yielding k.
func (g *groupIndex[K, E]) Count(k K) int {
	set, ok := g.groups[k]
	if !ok {
		return 0
	}
	return set.Len()
}

// Contains reports whether any entity yields k.
func (g *groupIndex[K, E]) Contains(k K) bool {
	_, ok := g.groups[k]
	return ok
}

// Len returns the number of distinct keys.
func (g *groupIndex[K, E]) Len() int { return len(g.groups) }

// Keys iterates over the distinct keys in unspecified order.
func (g *groupIndex[K, E]) Keys() iter.Seq[K] {
	return func(yield func(K) bool) {
		for k := range g.groups {
			if !yield(k) {
				return
			}
		}
	}
}

func (g *groupIndex[K, E]) verify(entities []E) error {
	expected := make(map[K]*bitmap.Set, len(g.groups))
	for _, e := range entities {
		for _, k := range g.keys(e) {
			set, ok := expected[k]
			if !ok {
				set = bitmap.New()
				expected[k] = set
			}
			set.Add(e.ID().Int64())
		}
	}
	if len(expected) != len(g.groups) {
		return &InconsistencyError{Index: g.name, Detail: fmt.Sprintf("holds %d keys, store derives %d", len(g.groups), len(expected))}
	}
	for k, want := range expected {
		got, ok := g.groups[k]
		if !ok || !got.Equal(want) {
			return &InconsistencyError{Index: g.name, Detail: fmt.Sprintf("members of key %v differ from store", k)}
		}
	}
	return nil
}

// OneToManyIndex groups entities by a single derived key, e.g. robots by
// status.
type OneToManyIndex[K comparable, E id.Identified[E]] struct {
	groupIndex[K, E]
}

// AddOneToManyIndex registers a grouping index keyed by fn.
func AddOneToManyIndex[K comparable, E id.Identified[E]](c *Cache[E], fn func(E) K, opts ...IndexOption) (*OneToManyIndex[K, E], error) {
	o := applyIndexOptions(KindOneToMany, len(c.indexes), opts)
	keys := func(e E) []K { return []K{fn(e)} }
	ix := &OneToManyIndex[K, E]{groupIndex: newGroupIndex(o.name, c.store, keys)}
	if err := c.register(KindOneToMany, o.name, ix); err != nil {
		return nil, err
	}
	return ix, nil
}

// ManyToManyIndex files every entity under each key it yields. Keys are not
// unique.
type ManyToManyIndex[K comparable, E id.Identified[E]] struct {
	groupIndex[K, E]
}

// AddManyToManyIndex registers a multi-key grouping index. fn may return nil.
func AddManyToManyIndex[K comparable, E id.Identified[E]](c *Cache[E], fn func(E) []K, opts ...IndexOption) (*ManyToManyIndex[K, E], error) {
	o := applyIndexOptions(KindManyToMany, len(c.indexes), opts)
	ix := &ManyToManyIndex[K, E]{groupIndex: newGroupIndex(o.name, c.store, fn)}
	if err := c.register(KindManyToMany, o.name, ix); err != nil {
		return nil, err
	}
	return ix, nil
}
