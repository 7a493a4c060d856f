package statecache

import (
	"iter"
	"slices"

	"github.com/hupe1980/statecache/id"
)

type coordinate struct {
	X, Y int
}

type testState struct {
	id        id.ID[testState]
	locations []coordinate
	name      string
	group     string
	active    bool
}

func (s testState) ID() id.ID[testState] { return s.id }

// locationState is the narrower view some derivations are written against.
type locationState interface {
	Locations() []coordinate
}

func (s testState) Locations() []coordinate { return s.locations }

func tid(v int64) id.ID[testState] { return id.New[testState](v) }

func located(v int64, cells ...coordinate) testState {
	return testState{id: tid(v), locations: cells}
}

func named(v int64, name string) testState {
	return testState{id: tid(v), name: name}
}

func (s testState) withLocations(cells ...coordinate) testState {
	s.locations = cells
	return s
}

func (s testState) withName(name string) testState {
	s.name = name
	return s
}

func (s testState) withGroup(group string) testState {
	s.group = group
	return s
}

func (s testState) withActive(active bool) testState {
	s.active = active
	return s
}

func byName(s testState) (string, bool) {
	if s.name == "" {
		return "", false
	}
	return s.name, true
}

func byGroup(s testState) string { return s.group }

func isActive(s testState) bool { return s.active }

func idsOf(states []testState) []int64 {
	out := make([]int64, len(states))
	for i, s := range states {
		out[i] = s.ID().Int64()
	}
	return out
}

func keysOf[K comparable](seq iter.Seq[K]) []K {
	return slices.Collect(seq)
}
