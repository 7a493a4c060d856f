package statecache

import (
	"errors"
	"testing"

	"github.com/hupe1980/statecache/change"
	"github.com/hupe1980/statecache/id"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_AddGet(t *testing.T) {
	c := New[testState]()
	assert.Equal(t, Empty, c.State())
	assert.True(t, c.IsEmpty())

	s := named(1, "one")
	require.NoError(t, c.Add(s))

	got, ok := c.Get(tid(1))
	require.True(t, ok)
	assert.Equal(t, s, got)
	assert.True(t, c.Contains(tid(1)))
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, Populated, c.State())

	_, ok = c.Get(tid(2))
	assert.False(t, ok)

	_, err := c.Require(tid(2))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.True(t, IsNotFound(err))

	got, err = c.Require(tid(1))
	require.NoError(t, err)
	assert.Equal(t, s, got)
}

func TestCache_AddExisting(t *testing.T) {
	c := New[testState]()
	require.NoError(t, c.Add(named(1, "one")))

	err := c.Add(named(1, "other"))
	assert.ErrorIs(t, err, ErrAlreadyExists)

	var pe *PreconditionError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, OpAdd, pe.Op)
	assert.Equal(t, int64(1), pe.ID)

	got, _ := c.Get(tid(1))
	assert.Equal(t, "one", got.name)
}

func TestCache_AddAllDuplicateInBatch(t *testing.T) {
	c := New[testState]()
	err := c.AddAll([]testState{named(1, "a"), named(2, "b"), named(1, "c")})
	assert.ErrorIs(t, err, ErrAlreadyExists)
	assert.Equal(t, 0, c.Len())
}

func TestCache_InvalidID(t *testing.T) {
	c := New[testState]()
	assert.ErrorIs(t, c.Add(named(-1, "neg")), ErrInvalidID)
	assert.ErrorIs(t, c.Remove(tid(-5)), ErrInvalidID)
	assert.Equal(t, 0, c.Len())
}

func TestCache_Update(t *testing.T) {
	c := New[testState]()
	s := named(1, "one")
	require.NoError(t, c.Add(s))

	next := s.withName("uno")
	require.NoError(t, c.Update(s, next))

	got, _ := c.Get(tid(1))
	assert.Equal(t, "uno", got.name)
}

func TestCache_UpdateStale(t *testing.T) {
	c := New[testState]()
	s := named(1, "one")
	require.NoError(t, c.Add(s))
	require.NoError(t, c.Update(s, s.withName("uno")))

	err := c.Update(s, s.withName("eins"))
	assert.ErrorIs(t, err, ErrStaleState)

	got, _ := c.Get(tid(1))
	assert.Equal(t, "uno", got.name)
}

func TestCache_UpdateMissing(t *testing.T) {
	c := New[testState]()
	s := named(1, "one")
	assert.ErrorIs(t, c.Update(s, s.withName("x")), ErrNotFound)
}

func TestCache_UpdateIdentityMismatch(t *testing.T) {
	c := New[testState]()
	require.NoError(t, c.AddAll([]testState{named(1, "one"), named(2, "two")}))

	err := c.Update(named(1, "one"), named(2, "two"))
	assert.ErrorIs(t, err, ErrInvalidChange)
	assert.ErrorIs(t, err, change.ErrIdentityMismatch)
}

func TestCache_UpdateAllRejectsOtherKinds(t *testing.T) {
	c := New[testState]()
	err := c.UpdateAll([]change.Change[testState]{change.Add(named(1, "one"))})
	assert.ErrorIs(t, err, ErrInvalidChange)
	assert.Equal(t, 0, c.Len())
}

func TestCache_UpdateAllDuplicateIdentity(t *testing.T) {
	c := New[testState]()
	s := named(1, "one")
	require.NoError(t, c.Add(s))

	err := c.UpdateAll([]change.Change[testState]{
		change.Update(s, s.withName("a")),
		change.Update(s, s.withName("b")),
	})
	assert.ErrorIs(t, err, ErrInvalidChange)

	got, _ := c.Get(tid(1))
	assert.Equal(t, "one", got.name)
}

func TestCache_RemoveMissing(t *testing.T) {
	c := New[testState]()
	require.NoError(t, c.Add(named(1, "one")))

	err := c.Remove(tid(2))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, c.Len())
	assert.True(t, c.Contains(tid(1)))
}

func TestCache_RemoveAll(t *testing.T) {
	c := New[testState]()
	require.NoError(t, c.AddAll([]testState{named(1, "a"), named(2, "b"), named(3, "c")}))

	require.NoError(t, c.RemoveAll([]id.ID[testState]{tid(1), tid(3)}))
	assert.Equal(t, []id.ID[testState]{tid(2)}, c.IDs())

	// One missing identity aborts the whole batch.
	err := c.RemoveAll([]id.ID[testState]{tid(2), tid(9)})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.True(t, c.Contains(tid(2)))

	err = c.RemoveAll([]id.ID[testState]{tid(2), tid(2)})
	assert.ErrorIs(t, err, ErrInvalidChange)
	assert.True(t, c.Contains(tid(2)))

	require.NoError(t, c.Remove(tid(2)))
	assert.Equal(t, Empty, c.State())
}

func TestCache_Upsert(t *testing.T) {
	c := New[testState]()
	require.NoError(t, c.Upsert(named(1, "one")))
	require.NoError(t, c.Upsert(named(1, "uno")))

	got, _ := c.Get(tid(1))
	assert.Equal(t, "uno", got.name)

	require.NoError(t, c.UpsertAll([]testState{named(1, "eins"), named(2, "zwei")}))
	assert.Equal(t, 2, c.Len())

	err := c.UpsertAll([]testState{named(3, "a"), named(3, "b")})
	assert.ErrorIs(t, err, ErrInvalidChange)
	assert.False(t, c.Contains(tid(3)))
}

func TestCache_ApplyMixedBatch(t *testing.T) {
	c := New[testState]()
	a, b := named(1, "a"), named(2, "b")
	require.NoError(t, c.AddAll([]testState{a, b}))

	err := c.Apply([]change.Change[testState]{
		change.Remove(a),
		change.Update(b, b.withName("bb")),
		change.Add(named(3, "c")),
	})
	require.NoError(t, err)

	assert.False(t, c.Contains(tid(1)))
	got, _ := c.Get(tid(2))
	assert.Equal(t, "bb", got.name)
	assert.True(t, c.Contains(tid(3)))
}

func TestCache_ApplyStaleRemove(t *testing.T) {
	c := New[testState]()
	a := named(1, "a")
	require.NoError(t, c.Add(a))
	require.NoError(t, c.Update(a, a.withName("aa")))

	err := c.Apply([]change.Change[testState]{change.Remove(a)})
	assert.ErrorIs(t, err, ErrStaleState)
	assert.True(t, c.Contains(tid(1)))

	err = c.Apply([]change.Change[testState]{{}})
	assert.ErrorIs(t, err, ErrInvalidChange)
}

func TestCache_Clear(t *testing.T) {
	c := New[testState]()
	groups, err := AddOneToManyIndex(c, byGroup)
	require.NoError(t, err)

	require.NoError(t, c.AddAll([]testState{
		named(1, "a").withGroup("x"),
		named(2, "b").withGroup("y"),
	}))
	require.NoError(t, c.Clear())

	assert.Equal(t, Empty, c.State())
	assert.Equal(t, 0, groups.Len())
	require.NoError(t, c.Clear())
}

func TestCache_EmptyBatchIsNoop(t *testing.T) {
	metrics := &BasicMetricsCollector{}
	c := New[testState](WithMetricsCollector(metrics))

	require.NoError(t, c.AddAll(nil))
	require.NoError(t, c.RemoveAll(nil))
	assert.Equal(t, int64(0), metrics.GetStats().CommitCount)
}

type versioned struct {
	id      id.ID[versioned]
	version int
	note    string
}

func (v versioned) ID() id.ID[versioned] { return v.id }

// Equal ignores the note, so stale checks only compare versions.
func (v versioned) Equal(other versioned) bool { return v.version == other.version }

func TestCache_UpdateUsesEqualMethod(t *testing.T) {
	c := New[versioned]()
	stored := versioned{id: id.New[versioned](1), version: 1, note: "stored"}
	require.NoError(t, c.Add(stored))

	base := versioned{id: id.New[versioned](1), version: 1, note: "caller copy"}
	require.NoError(t, c.Update(base, versioned{id: id.New[versioned](1), version: 2}))

	err := c.Update(base, versioned{id: id.New[versioned](1), version: 3})
	assert.ErrorIs(t, err, ErrStaleState)
}

func TestCache_NewWithStore(t *testing.T) {
	store := NewSortedStore[testState]()
	c, err := NewWithStore[testState](store, WithName("robots"))
	require.NoError(t, err)
	assert.Equal(t, "robots", c.Name())

	require.NoError(t, c.AddAll([]testState{named(5, "e"), named(1, "a"), named(3, "c")}))
	assert.Equal(t, []id.ID[testState]{tid(1), tid(3), tid(5)}, c.IDs())

	_, err = NewWithStore[testState](store)
	assert.ErrorIs(t, err, ErrStoreNotEmpty)
}

func TestCache_Metrics(t *testing.T) {
	metrics := &BasicMetricsCollector{}
	c := New[testState](WithMetricsCollector(metrics), WithLogger(NoopLogger()))
	_, err := AddManyToOneIndex(c, testState.Locations)
	require.NoError(t, err)

	require.NoError(t, c.AddAll([]testState{located(1, coordinate{0, 0}), located(2, coordinate{0, 1})}))
	assert.Error(t, c.Add(located(3, coordinate{0, 0})))
	assert.Error(t, c.Remove(tid(9)))

	stats := metrics.GetStats()
	assert.Equal(t, int64(1), stats.CommitCount)
	assert.Equal(t, int64(2), stats.CommitChanges)
	assert.Equal(t, int64(2), stats.RejectCount)
	assert.Equal(t, int64(1), stats.ConstraintErrors)
	assert.Equal(t, int64(1), stats.IndexCount)
}
