package statecache

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an identity is not in the cache.
	ErrNotFound = errors.New("entity not found")
	// ErrAlreadyExists is returned when adding an identity that is already
	// present, or twice within one batch.
	ErrAlreadyExists = errors.New("entity already exists")
	// ErrStaleState is returned when an update's base state differs from the
	// stored state.
	ErrStaleState = errors.New("stale entity state")
	// ErrInvalidID is returned for malformed (negative) identities.
	ErrInvalidID = errors.New("invalid identity")
	// ErrInvalidChange is returned for change records that do not fit the
	// operation, or that touch one identity twice in a batch.
	ErrInvalidChange = errors.New("invalid change")
	// ErrConstraintViolation is returned when a batch would let two entities
	// claim the same key of a unique index.
	ErrConstraintViolation = errors.New("index constraint violation")
	// ErrDerivation is returned when a derivation function yields no key for
	// an index that requires one.
	ErrDerivation = errors.New("index derivation failed")
	// ErrInconsistent is returned by Verify when an index disagrees with the
	// primary store.
	ErrInconsistent = errors.New("index inconsistent with store")
	// ErrStoreNotEmpty is returned by NewWithStore for a pre-populated store.
	ErrStoreNotEmpty = errors.New("store is not empty")
)

// PreconditionError reports a batch rejected before any index was consulted.
//
// The sentinel describing the failure can be matched with errors.Is.
type PreconditionError struct {
	Op    string
	ID    int64
	cause error
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s %d: %v", e.Op, e.ID, e.cause)
}

func (e *PreconditionError) Unwrap() error { return e.cause }

// ConstraintError reports two identities claiming the same key of a unique
// index.
type ConstraintError struct {
	Index    string
	Key      any
	Owner    int64
	Claimant int64
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("index %q: key %v claimed by %d and %d", e.Index, e.Key, e.Owner, e.Claimant)
}

func (e *ConstraintError) Unwrap() error { return ErrConstraintViolation }

// DerivationError reports an entity for which a required key is absent.
type DerivationError struct {
	Index string
	ID    int64
}

func (e *DerivationError) Error() string {
	return fmt.Sprintf("index %q: no key derived for %d", e.Index, e.ID)
}

func (e *DerivationError) Unwrap() error { return ErrDerivation }

// InconsistencyError reports an index whose maintained state differs from
// the state derived from the primary store.
type InconsistencyError struct {
	Index  string
	Detail string
}

func (e *InconsistencyError) Error() string {
	return fmt.Sprintf("index %q: %s", e.Index, e.Detail)
}

func (e *InconsistencyError) Unwrap() error { return ErrInconsistent }

// IsConstraintViolation reports whether err is a uniqueness violation.
func IsConstraintViolation(err error) bool {
	return errors.Is(err, ErrConstraintViolation)
}

// IsNotFound reports whether err is caused by a missing identity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func precondition(op string, id int64, cause error) error {
	return &PreconditionError{Op: op, ID: id, cause: cause}
}
