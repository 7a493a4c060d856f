// Package id provides typed entity identities and an injectable generator.
//
// An ID[T] is a comparable value scoped to the entity type T, so identities
// of different entity types cannot be mixed up at compile time:
//
//	type Robot struct{ id id.ID[Robot] }
//	func (r Robot) ID() id.ID[Robot] { return r.id }
//
// Identities are allocated by a Generator, which keeps one monotonic counter
// per entity type. Generators are plain values owned by the caller, so tests
// can create a fresh one (or Reset it) without touching global state:
//
//	gen := id.NewGenerator()
//	first := id.Next[Robot](gen)  // 0
//	second := id.Next[Robot](gen) // 1
package id
