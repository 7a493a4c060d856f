package statecache

import (
	"github.com/hupe1980/statecache/change"
	"github.com/hupe1980/statecache/id"
)

// Index kinds reported to loggers and metrics collectors.
const (
	KindOneToOne         = "one-to-one"
	KindOptionalOneToOne = "optional-one-to-one"
	KindManyToOne        = "many-to-one"
	KindOneToMany        = "one-to-many"
	KindManyToMany       = "many-to-many"
	KindPredicate        = "predicate"
	KindCustom           = "custom"
)

// Index is a view derived from the cache's entities and maintained from the
// change records of every committed batch.
//
// Validate inspects a whole batch and reports a constraint violation without
// mutating anything. Apply is called only after every registered index
// accepted the same batch, and only after the primary store was updated.
// Both receive the batch in the same order.
type Index[E id.Identified[E]] interface {
	Validate(batch []change.Change[E]) error
	Apply(batch []change.Change[E])
}

// verifier is implemented by indexes that can compare their maintained state
// with the state derived from scratch.
type verifier[E id.Identified[E]] interface {
	verify(entities []E) error
}

func resolve[E id.Identified[E]](store Store[E], keys []id.ID[E]) []E {
	out := make([]E, 0, len(keys))
	for _, k := range keys {
		if e, ok := store.Get(k); ok {
			out = append(out, e)
		}
	}
	return out
}
