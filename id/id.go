package id

import (
	"cmp"
	"strconv"
)

// ID identifies one logical entity of type T across all of its versions.
//
// The zero value is the valid identity 0. Negative values are malformed and
// rejected by the cache.
type ID[T any] struct {
	v int64
}

// New returns the identity with the given raw value.
func New[T any](v int64) ID[T] {
	return ID[T]{v: v}
}

// Int64 returns the raw value.
func (i ID[T]) Int64() int64 { return i.v }

// Valid reports whether the identity is well-formed (non-negative).
func (i ID[T]) Valid() bool { return i.v >= 0 }

// Compare orders identities numerically.
func (i ID[T]) Compare(other ID[T]) int { return cmp.Compare(i.v, other.v) }

func (i ID[T]) String() string { return strconv.FormatInt(i.v, 10) }

// Identified is implemented by entities that carry an identity of type ID[T].
type Identified[T any] interface {
	ID() ID[T]
}
