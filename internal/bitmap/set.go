package bitmap

import (
	"iter"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

// Set is an ordered set of non-negative int64 values.
// The zero value is not usable; call New.
type Set struct {
	rb *roaring64.Bitmap
}

// New creates an empty set.
func New() *Set {
	return &Set{rb: roaring64.New()}
}

// Add inserts v. Negative values are ignored.
func (s *Set) Add(v int64) {
	if v < 0 {
		return
	}
	s.rb.Add(uint64(v))
}

// Remove deletes v.
func (s *Set) Remove(v int64) {
	if v < 0 {
		return
	}
	s.rb.Remove(uint64(v))
}

// Contains reports whether v is a member.
func (s *Set) Contains(v int64) bool {
	if v < 0 {
		return false
	}
	return s.rb.Contains(uint64(v))
}

// Len returns the number of members.
func (s *Set) Len() int {
	return int(s.rb.GetCardinality())
}

// IsEmpty returns true if the set has no members.
func (s *Set) IsEmpty() bool {
	return s.rb.IsEmpty()
}

// All iterates over the members in ascending order.
func (s *Set) All() iter.Seq[int64] {
	return func(yield func(int64) bool) {
		it := s.rb.Iterator()
		for it.HasNext() {
			if !yield(int64(it.Next())) {
				return
			}
		}
	}
}

// Equal reports whether both sets hold the same members.
func (s *Set) Equal(other *Set) bool {
	return s.rb.Equals(other.rb)
}
