package statecache

import (
	"iter"

	"github.com/hupe1980/statecache/id"
	"github.com/hupe1980/statecache/internal/bitmap"
)

// Store is the primary keyed store behind a Cache.
//
// A Store is owned by exactly one Cache, which is the only caller of Put and
// Delete. Implementations need no locking.
type Store[E id.Identified[E]] interface {
	// Get returns the current state for an identity.
	Get(key id.ID[E]) (E, bool)
	// Len returns the number of entities.
	Len() int
	// All iterates over every entity.
	All() iter.Seq[E]
	// Put inserts or replaces the state for e.ID().
	Put(e E)
	// Delete removes an identity.
	Delete(key id.ID[E])
}

// HashStore is a Store backed by a Go map. Iteration order is unspecified.
type HashStore[E id.Identified[E]] struct {
	m map[id.ID[E]]E
}

// NewHashStore creates an empty map-backed store.
func NewHashStore[E id.Identified[E]]() *HashStore[E] {
	return &HashStore[E]{m: make(map[id.ID[E]]E)}
}

// Get returns the state stored for key.
func (s *HashStore[E]) Get(key id.ID[E]) (E, bool) {
	e, ok := s.m[key]
	return e, ok
}

// Len returns the number of entities.
func (s *HashStore[E]) Len() int { return len(s.m) }

// All iterates over every entity in map order.
func (s *HashStore[E]) All() iter.Seq[E] {
	return func(yield func(E) bool) {
		for _, e := range s.m {
			if !yield(e) {
				return
			}
		}
	}
}

// Put inserts or replaces e.
func (s *HashStore[E]) Put(e E) { s.m[e.ID()] = e }

// Delete removes key.
func (s *HashStore[E]) Delete(key id.ID[E]) { delete(s.m, key) }

// SortedStore is a Store that iterates in ascending identity order.
// Simulations that walk the whole store every step use it to stay
// deterministic across runs.
type SortedStore[E id.Identified[E]] struct {
	m    map[id.ID[E]]E
	keys *bitmap.Set
}

// NewSortedStore creates an empty identity-ordered store.
func NewSortedStore[E id.Identified[E]]() *SortedStore[E] {
	return &SortedStore[E]{
		m:    make(map[id.ID[E]]E),
		keys: bitmap.New(),
	}
}

// Get returns the state stored for key.
func (s *SortedStore[E]) Get(key id.ID[E]) (E, bool) {
	e, ok := s.m[key]
	return e, ok
}

// Len returns the number of entities.
func (s *SortedStore[E]) Len() int { return len(s.m) }

// All iterates over every entity in ascending identity order.
func (s *SortedStore[E]) All() iter.Seq[E] {
	return func(yield func(E) bool) {
		for k := range s.keys.All() {
			if !yield(s.m[id.New[E](k)]) {
				return
			}
		}
	}
}

// Put inserts or replaces e.
func (s *SortedStore[E]) Put(e E) {
	key := e.ID()
	s.m[key] = e
	s.keys.Add(key.Int64())
}

// Delete removes key.
func (s *SortedStore[E]) Delete(key id.ID[E]) {
	delete(s.m, key)
	s.keys.Remove(key.Int64())
}
