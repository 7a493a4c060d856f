// Package rng provides the seeded random source shared by the grid
// simulation and the randomized cache tests. Equal seeds yield equal
// sequences, which keeps simulation runs reproducible.
package rng

import (
	"math/rand"
	"sync"
)

// RNG is a seeded random source safe for concurrent use.
type RNG struct {
	mu   sync.Mutex
	rand *rand.Rand
	seed int64
}

// New creates a source seeded with seed.
func New(seed int64) *RNG {
	return &RNG{rand: rand.New(rand.NewSource(seed)), seed: seed}
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 { return r.seed }

// Intn returns a uniform value in [0, n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Chance returns true with probability p.
func (r *RNG) Chance(p float64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64() < p
}

// Perm returns a permutation of [0, n).
func (r *RNG) Perm(n int) []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Perm(n)
}

// Zipf returns a value in [0, n) where small values are favoured:
// P(k) is proportional to 1/(k+1)^s. s must be greater than 1.
func (r *RNG) Zipf(n int, s float64) int {
	if n <= 1 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return int(rand.NewZipf(r.rand, s, 1, uint64(n-1)).Uint64())
}
