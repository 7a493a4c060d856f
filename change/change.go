// Package change models the transitions the cache feeds to its indexes.
//
// A Change describes what happens to one identity within a batch: it is
// added, updated from one state to another, or removed. Changes are built by
// the cache for every mutation, validated by every index, and then applied;
// they are never stored.
package change

import (
	"errors"
	"fmt"

	"github.com/hupe1980/statecache/id"
)

// Kind tags a Change.
type Kind uint8

const (
	// KindAdd introduces a new identity.
	KindAdd Kind = iota + 1
	// KindUpdate replaces the state of an existing identity.
	KindUpdate
	// KindRemove deletes an existing identity.
	KindRemove
)

func (k Kind) String() string {
	switch k {
	case KindAdd:
		return "add"
	case KindUpdate:
		return "update"
	case KindRemove:
		return "remove"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

var (
	// ErrIdentityMismatch is returned by Validate when an update links states
	// with different identities.
	ErrIdentityMismatch = errors.New("change: update states have different identities")
	// ErrInvalidKind is returned by Validate for a zero or unknown Kind.
	ErrInvalidKind = errors.New("change: invalid kind")
)

// Change is one transition of a single identity.
//
// Add carries only a new state, Remove only an old state, Update both.
type Change[E id.Identified[E]] struct {
	kind   Kind
	oldVal E
	newVal E
}

// Add returns a change introducing e.
func Add[E id.Identified[E]](e E) Change[E] {
	return Change[E]{kind: KindAdd, newVal: e}
}

// Update returns a change replacing oldVal with newVal.
func Update[E id.Identified[E]](oldVal, newVal E) Change[E] {
	return Change[E]{kind: KindUpdate, oldVal: oldVal, newVal: newVal}
}

// Remove returns a change deleting oldVal.
func Remove[E id.Identified[E]](oldVal E) Change[E] {
	return Change[E]{kind: KindRemove, oldVal: oldVal}
}

// Kind returns the change kind.
func (c Change[E]) Kind() Kind { return c.kind }

// ID returns the identity the change applies to.
func (c Change[E]) ID() id.ID[E] {
	if c.kind == KindRemove {
		return c.oldVal.ID()
	}
	return c.newVal.ID()
}

// Old returns the state before the change. ok is false for Add.
func (c Change[E]) Old() (e E, ok bool) {
	if c.kind == KindAdd {
		return e, false
	}
	return c.oldVal, true
}

// New returns the state after the change. ok is false for Remove.
func (c Change[E]) New() (e E, ok bool) {
	if c.kind == KindRemove {
		return e, false
	}
	return c.newVal, true
}

// Validate checks the structural invariants of the change.
func (c Change[E]) Validate() error {
	switch c.kind {
	case KindAdd, KindRemove:
		return nil
	case KindUpdate:
		if c.oldVal.ID() != c.newVal.ID() {
			return fmt.Errorf("%w: %s -> %s", ErrIdentityMismatch, c.oldVal.ID(), c.newVal.ID())
		}
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrInvalidKind, c.kind)
	}
}

func (c Change[E]) String() string {
	return fmt.Sprintf("%s(%s)", c.kind, c.ID())
}
