package statecache

import (
	"fmt"
	"iter"

	"github.com/hupe1980/statecache/change"
	"github.com/hupe1980/statecache/id"
)

// uniqueIndex maps every derived key to the single identity claiming it.
//
// Validation works on the net effect of a batch: every identity touched by
// the batch first releases all keys it held, then the new states claim their
// keys. Two entities exchanging keys in one batch is therefore legal.
type uniqueIndex[K comparable, E id.Identified[E]] struct {
	name  string
	store Store[E]
	keys  func(E) ([]K, error)
	owner map[K]id.ID[E]
}

func newUniqueIndex[K comparable, E id.Identified[E]](name string, store Store[E], keys func(E) ([]K, error)) uniqueIndex[K, E] {
	return uniqueIndex[K, E]{
		name:  name,
		store: store,
		keys:  keys,
		owner: make(map[K]id.ID[E]),
	}
}

// Validate implements Index.
func (u *uniqueIndex[K, E]) Validate(batch []change.Change[E]) error {
	touched := make(map[id.ID[E]]struct{}, len(batch))
	for _, ch := range batch {
		touched[ch.ID()] = struct{}{}
	}

	claims := make(map[K]id.ID[E])
	var order []K
	for _, ch := range batch {
		e, ok := ch.New()
		if !ok {
			continue
		}
		ks, err := u.keys(e)
		if err != nil {
			return err
		}
		claimant := e.ID()
		for _, k := range ks {
			prev, dup := claims[k]
			if !dup {
				claims[k] = claimant
				order = append(order, k)
				continue
			}
			if prev != claimant {
				return u.conflict(k, prev, claimant)
			}
		}
	}

	for _, k := range order {
		owner, ok := u.owner[k]
		if !ok {
			continue
		}
		claimant := claims[k]
		if owner == claimant {
			continue
		}
		if _, released := touched[owner]; !released {
			return u.conflict(k, owner, claimant)
		}
	}
	return nil
}

// Apply implements Index.
func (u *uniqueIndex[K, E]) Apply(batch []change.Change[E]) {
	for _, ch := range batch {
		e, ok := ch.Old()
		if !ok {
			continue
		}
		for _, k := range u.mustKeys(e) {
			if u.owner[k] == e.ID() {
				delete(u.owner, k)
			}
		}
	}
	for _, ch := range batch {
		e, ok := ch.New()
		if !ok {
			continue
		}
		for _, k := range u.mustKeys(e) {
			u.owner[k] = e.ID()
		}
	}
}

// mustKeys derives keys for a state that already passed validation. A
// failure here means the derivation function is not pure.
func (u *uniqueIndex[K, E]) mustKeys(e E) []K {
	ks, err := u.keys(e)
	if err != nil {
		panic(fmt.Errorf("statecache: index %q: derivation changed for validated state: %w", u.name, err))
	}
	return ks
}

func (u *uniqueIndex[K, E]) conflict(k K, owner, claimant id.ID[E]) error {
	return &ConstraintError{
		Index:    u.name,
		Key:      k,
		Owner:    owner.Int64(),
		Claimant: claimant.Int64(),
	}
}

// Name returns the index name.
func (u *uniqueIndex[K, E]) Name() string { return u.name }

// Get returns the entity claiming k, or false if no entity does.
func (u *uniqueIndex[K, E]) Get(k K) (E, bool) {
	owner, ok := u.owner[k]
	if !ok {
		var zero E
		return zero, false
	}
	return u.store.Get(owner)
}

// GetID returns the identity claiming k.
func (u *uniqueIndex[K, E]) GetID(k K) (id.ID[E], bool) {
	owner, ok := u.owner[k]
	return owner, ok
}

// Contains reports whether some entity claims k.
func (u *uniqueIndex[K, E]) Contains(k K) bool {
	_, ok := u.owner[k]
	return ok
}

// Len returns the number of claimed keys.
func (u *uniqueIndex[K, E]) Len() int { return len(u.owner) }

// Keys iterates over the claimed keys in unspecified order.
func (u *uniqueIndex[K, E]) Keys() iter.Seq[K] {
	return func(yield func(K) bool) {
		for k := range u.owner {
			if !yield(k) {
				return
			}
		}
	}
}

func (u *uniqueIndex[K, E]) verify(entities []E) error {
	expected := make(map[K]id.ID[E], len(u.owner))
	for _, e := range entities {
		ks, err := u.keys(e)
		if err != nil {
			return &InconsistencyError{Index: u.name, Detail: err.Error()}
		}
		for _, k := range ks {
			if prev, dup := expected[k]; dup && prev != e.ID() {
				return &InconsistencyError{Index: u.name, Detail: fmt.Sprintf("key %v derived by %s and %s", k, prev, e.ID())}
			}
			expected[k] = e.ID()
		}
	}
	if len(expected) != len(u.owner) {
		return &InconsistencyError{Index: u.name, Detail: fmt.Sprintf("holds %d keys, store derives %d", len(u.owner), len(expected))}
	}
	for k, want := range expected {
		if got, ok := u.owner[k]; !ok || got != want {
			return &InconsistencyError{Index: u.name, Detail: fmt.Sprintf("key %v maps to %s, store derives %s", k, got, want)}
		}
	}
	return nil
}

// OneToOneIndex maps each entity to exactly one unique key.
type OneToOneIndex[K comparable, E id.Identified[E]] struct {
	uniqueIndex[K, E]
}

// AddOneToOneIndex registers an index keyed by fn. Every entity must yield a
// key (fn returning false fails the batch with ErrDerivation) and no two
// entities may yield the same key.
func AddOneToOneIndex[K comparable, E id.Identified[E]](c *Cache[E], fn func(E) (K, bool), opts ...IndexOption) (*OneToOneIndex[K, E], error) {
	return addOneToOne(c, KindOneToOne, fn, false, opts)
}

// AddOptionalOneToOneIndex is like AddOneToOneIndex, but entities for which
// fn returns false are left out of the index.
func AddOptionalOneToOneIndex[K comparable, E id.Identified[E]](c *Cache[E], fn func(E) (K, bool), opts ...IndexOption) (*OneToOneIndex[K, E], error) {
	return addOneToOne(c, KindOptionalOneToOne, fn, true, opts)
}

func addOneToOne[K comparable, E id.Identified[E]](c *Cache[E], kind string, fn func(E) (K, bool), optional bool, opts []IndexOption) (*OneToOneIndex[K, E], error) {
	o := applyIndexOptions(kind, len(c.indexes), opts)
	keys := func(e E) ([]K, error) {
		k, ok := fn(e)
		if !ok {
			if optional {
				return nil, nil
			}
			return nil, &DerivationError{Index: o.name, ID: e.ID().Int64()}
		}
		return []K{k}, nil
	}
	ix := &OneToOneIndex[K, E]{uniqueIndex: newUniqueIndex(o.name, c.store, keys)}
	if err := c.register(kind, o.name, ix); err != nil {
		return nil, err
	}
	return ix, nil
}

// ManyToOneIndex maps every key an entity yields back to that entity. A key
// is claimed by at most one entity at a time, e.g. the grid cells occupied by
// robots.
type ManyToOneIndex[K comparable, E id.Identified[E]] struct {
	uniqueIndex[K, E]
}

// AddManyToOneIndex registers an ownership index. fn returns the keys an
// entity claims. A nil or empty slice is accepted and claims nothing, so such
// an entity never conflicts with anyone; unlike AddOneToOneIndex, there is no
// way for fn to reject an entity.
func AddManyToOneIndex[K comparable, E id.Identified[E]](c *Cache[E], fn func(E) []K, opts ...IndexOption) (*ManyToOneIndex[K, E], error) {
	o := applyIndexOptions(KindManyToOne, len(c.indexes), opts)
	keys := func(e E) ([]K, error) { return fn(e), nil }
	ix := &ManyToOneIndex[K, E]{uniqueIndex: newUniqueIndex(o.name, c.store, keys)}
	if err := c.register(KindManyToOne, o.name, ix); err != nil {
		return nil, err
	}
	return ix, nil
}

// KeysOf returns the keys claimed by key's current state.
func (ix *ManyToOneIndex[K, E]) KeysOf(key id.ID[E]) []K {
	e, ok := ix.store.Get(key)
	if !ok {
		return nil
	}
	return ix.mustKeys(e)
}
