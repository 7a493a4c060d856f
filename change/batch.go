package change

import "github.com/hupe1980/statecache/id"

// AddAll returns one Add change per entity, in order.
func AddAll[E id.Identified[E]](es []E) []Change[E] {
	out := make([]Change[E], len(es))
	for i, e := range es {
		out[i] = Add(e)
	}
	return out
}

// RemoveAll returns one Remove change per entity, in order.
func RemoveAll[E id.Identified[E]](es []E) []Change[E] {
	out := make([]Change[E], len(es))
	for i, e := range es {
		out[i] = Remove(e)
	}
	return out
}

// Diff computes the changes that turn the state set before into after.
// Entities are matched by identity; equal reports whether two states of the
// same identity are unchanged. The result lists removals and updates in the
// order of before, followed by additions in the order of after.
func Diff[E id.Identified[E]](before, after []E, equal func(a, b E) bool) []Change[E] {
	next := make(map[id.ID[E]]E, len(after))
	for _, e := range after {
		next[e.ID()] = e
	}
	seen := make(map[id.ID[E]]struct{}, len(before))

	var out []Change[E]
	for _, prev := range before {
		seen[prev.ID()] = struct{}{}
		cur, ok := next[prev.ID()]
		switch {
		case !ok:
			out = append(out, Remove(prev))
		case !equal(prev, cur):
			out = append(out, Update(prev, cur))
		}
	}
	for _, e := range after {
		if _, ok := seen[e.ID()]; !ok {
			out = append(out, Add(e))
		}
	}
	return out
}

