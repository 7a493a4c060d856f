package statecache

import (
	"context"
	"fmt"
	"iter"
	"reflect"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/statecache/change"
	"github.com/hupe1980/statecache/id"
)

// State is the coarse lifecycle state of a Cache.
type State uint8

const (
	// Empty means the cache holds no entities. Every index is empty.
	Empty State = iota
	// Populated means the cache holds at least one entity.
	Populated
)

func (s State) String() string {
	if s == Empty {
		return "empty"
	}
	return "populated"
}

// Operation names reported to loggers and metrics collectors.
const (
	OpAdd       = "add"
	OpAddAll    = "add_all"
	OpUpdate    = "update"
	OpUpdateAll = "update_all"
	OpRemove    = "remove"
	OpRemoveAll = "remove_all"
	OpUpsert    = "upsert"
	OpUpsertAll = "upsert_all"
	OpApply     = "apply"
	OpClear     = "clear"
)

type registeredIndex[E id.Identified[E]] struct {
	name string
	kind string
	ix   Index[E]
}

// Cache holds the current state of every entity of type E together with the
// secondary indexes registered against it.
//
// Every mutating call is one batch: the cache derives the change records,
// checks preconditions, lets every index validate the whole batch and only
// then commits the store and applies the batch to every index. A rejected
// batch leaves the store and all indexes untouched.
//
// A Cache is meant for a single writer. It performs no locking; reads may
// interleave with each other but not with a mutation.
type Cache[E id.Identified[E]] struct {
	store   Store[E]
	indexes []registeredIndex[E]
	name    string
	logger  *Logger
	metrics MetricsCollector
}

// New creates an empty cache backed by a HashStore.
func New[E id.Identified[E]](opts ...Option) *Cache[E] {
	return newCache[E](NewHashStore[E](), opts)
}

// NewWithStore creates a cache backed by store, which must be empty.
func NewWithStore[E id.Identified[E]](store Store[E], opts ...Option) (*Cache[E], error) {
	if store.Len() != 0 {
		return nil, fmt.Errorf("%w: %d entities", ErrStoreNotEmpty, store.Len())
	}
	return newCache(store, opts), nil
}

func newCache[E id.Identified[E]](store Store[E], opts []Option) *Cache[E] {
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	return &Cache[E]{
		store:   store,
		name:    o.name,
		logger:  o.logger.WithCache(o.name),
		metrics: o.metricsCollector,
	}
}

// Name returns the cache name.
func (c *Cache[E]) Name() string { return c.name }

// Get returns the current state of key, or false if it is absent.
func (c *Cache[E]) Get(key id.ID[E]) (E, bool) {
	return c.store.Get(key)
}

// Require returns the current state of key or an ErrNotFound error.
func (c *Cache[E]) Require(key id.ID[E]) (E, error) {
	e, ok := c.store.Get(key)
	if !ok {
		return e, precondition("get", key.Int64(), ErrNotFound)
	}
	return e, nil
}

// Contains reports whether key is present.
func (c *Cache[E]) Contains(key id.ID[E]) bool {
	_, ok := c.store.Get(key)
	return ok
}

// Len returns the number of entities.
func (c *Cache[E]) Len() int { return c.store.Len() }

// IsEmpty reports whether the cache holds no entities.
func (c *Cache[E]) IsEmpty() bool { return c.store.Len() == 0 }

// State returns Empty or Populated.
func (c *Cache[E]) State() State {
	if c.store.Len() == 0 {
		return Empty
	}
	return Populated
}

// All iterates over every entity in the store's iteration order.
func (c *Cache[E]) All() iter.Seq[E] { return c.store.All() }

// IDs returns every identity in the store's iteration order.
func (c *Cache[E]) IDs() []id.ID[E] {
	out := make([]id.ID[E], 0, c.store.Len())
	for e := range c.store.All() {
		out = append(out, e.ID())
	}
	return out
}

// Add inserts a new entity.
func (c *Cache[E]) Add(e E) error {
	return c.addAll(OpAdd, []E{e})
}

// AddAll inserts new entities as one batch. Identities must be pairwise
// distinct and absent from the cache.
func (c *Cache[E]) AddAll(es []E) error {
	return c.addAll(OpAddAll, es)
}

func (c *Cache[E]) addAll(op string, es []E) error {
	batch := make([]change.Change[E], 0, len(es))
	seen := make(map[id.ID[E]]struct{}, len(es))
	for _, e := range es {
		key := e.ID()
		if err := c.checkID(op, key, seen, ErrAlreadyExists); err != nil {
			return c.reject(op, len(es), err)
		}
		if c.Contains(key) {
			return c.reject(op, len(es), precondition(op, key.Int64(), ErrAlreadyExists))
		}
		batch = append(batch, change.Add(e))
	}
	return c.commit(op, batch)
}

// Update replaces oldVal with newVal. oldVal must equal the stored state and
// both must share an identity.
func (c *Cache[E]) Update(oldVal, newVal E) error {
	return c.updateAll(OpUpdate, []change.Change[E]{change.Update(oldVal, newVal)})
}

// UpdateAll applies update changes as one batch.
func (c *Cache[E]) UpdateAll(changes []change.Change[E]) error {
	return c.updateAll(OpUpdateAll, changes)
}

func (c *Cache[E]) updateAll(op string, changes []change.Change[E]) error {
	for _, ch := range changes {
		if ch.Kind() != change.KindUpdate {
			return c.reject(op, len(changes), fmt.Errorf("%w: %s in %s", ErrInvalidChange, ch.Kind(), op))
		}
	}
	return c.apply(op, changes)
}

// Remove deletes key.
func (c *Cache[E]) Remove(key id.ID[E]) error {
	return c.removeAll(OpRemove, []id.ID[E]{key})
}

// RemoveAll deletes keys as one batch.
func (c *Cache[E]) RemoveAll(keys []id.ID[E]) error {
	return c.removeAll(OpRemoveAll, keys)
}

func (c *Cache[E]) removeAll(op string, keys []id.ID[E]) error {
	batch := make([]change.Change[E], 0, len(keys))
	seen := make(map[id.ID[E]]struct{}, len(keys))
	for _, key := range keys {
		if err := c.checkID(op, key, seen, ErrInvalidChange); err != nil {
			return c.reject(op, len(keys), err)
		}
		cur, ok := c.store.Get(key)
		if !ok {
			return c.reject(op, len(keys), precondition(op, key.Int64(), ErrNotFound))
		}
		batch = append(batch, change.Remove(cur))
	}
	return c.commit(op, batch)
}

// Upsert adds e, or replaces the stored state of e.ID() without a stale
// check.
func (c *Cache[E]) Upsert(e E) error {
	return c.upsertAll(OpUpsert, []E{e})
}

// UpsertAll upserts es as one batch.
func (c *Cache[E]) UpsertAll(es []E) error {
	return c.upsertAll(OpUpsertAll, es)
}

func (c *Cache[E]) upsertAll(op string, es []E) error {
	batch := make([]change.Change[E], 0, len(es))
	seen := make(map[id.ID[E]]struct{}, len(es))
	for _, e := range es {
		key := e.ID()
		if err := c.checkID(op, key, seen, ErrInvalidChange); err != nil {
			return c.reject(op, len(es), err)
		}
		if cur, ok := c.store.Get(key); ok {
			batch = append(batch, change.Update(cur, e))
		} else {
			batch = append(batch, change.Add(e))
		}
	}
	return c.commit(op, batch)
}

// Apply commits a mixed batch of Add, Update and Remove changes. Update and
// Remove changes must carry the stored state as their old state.
func (c *Cache[E]) Apply(changes []change.Change[E]) error {
	return c.apply(OpApply, changes)
}

func (c *Cache[E]) apply(op string, changes []change.Change[E]) error {
	batch := make([]change.Change[E], 0, len(changes))
	seen := make(map[id.ID[E]]struct{}, len(changes))
	for _, ch := range changes {
		if err := ch.Validate(); err != nil {
			return c.reject(op, len(changes), fmt.Errorf("%w: %w", ErrInvalidChange, err))
		}
		key := ch.ID()
		if err := c.checkID(op, key, seen, ErrInvalidChange); err != nil {
			return c.reject(op, len(changes), err)
		}
		cur, present := c.store.Get(key)
		switch ch.Kind() {
		case change.KindAdd:
			if present {
				return c.reject(op, len(changes), precondition(op, key.Int64(), ErrAlreadyExists))
			}
			batch = append(batch, ch)
			continue
		case change.KindUpdate, change.KindRemove:
			if !present {
				return c.reject(op, len(changes), precondition(op, key.Int64(), ErrNotFound))
			}
		}
		oldVal, _ := ch.Old()
		if !equal(cur, oldVal) {
			return c.reject(op, len(changes), precondition(op, key.Int64(), ErrStaleState))
		}
		// Indexes derive the released keys from the stored state.
		if newVal, ok := ch.New(); ok {
			batch = append(batch, change.Update(cur, newVal))
		} else {
			batch = append(batch, change.Remove(cur))
		}
	}
	return c.commit(op, batch)
}

// Clear removes every entity in one batch.
func (c *Cache[E]) Clear() error {
	return c.commit(OpClear, change.RemoveAll(slices.Collect(c.store.All())))
}

// AddIndex registers a caller-defined index. The index is back-filled with
// an Add change for every entity currently in the cache; if it rejects that
// batch it is not registered.
func (c *Cache[E]) AddIndex(ix Index[E], opts ...IndexOption) error {
	o := applyIndexOptions(KindCustom, len(c.indexes), opts)
	return c.register(KindCustom, o.name, ix)
}

func (c *Cache[E]) register(kind, name string, ix Index[E]) error {
	logger := c.logger.WithIndex(name)
	backfill := change.AddAll(slices.Collect(c.store.All()))
	if err := ix.Validate(backfill); err != nil {
		logger.LogIndexRegistered(kind, len(backfill), err)
		return err
	}
	ix.Apply(backfill)
	c.indexes = append(c.indexes, registeredIndex[E]{name: name, kind: kind, ix: ix})
	c.metrics.RecordIndexRegistered(kind)
	logger.LogIndexRegistered(kind, len(backfill), nil)
	return nil
}

// Verify recomputes every built-in index from the primary store and reports
// the first index whose maintained state differs. Indexes are checked
// concurrently; Verify must not overlap a mutation.
func (c *Cache[E]) Verify(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	entities := slices.Collect(c.store.All())
	if len(entities) != c.store.Len() {
		err := &InconsistencyError{Index: "store", Detail: fmt.Sprintf("iterated %d entities, Len reports %d", len(entities), c.store.Len())}
		c.logger.LogVerify(ctx, len(c.indexes), err)
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, r := range c.indexes {
		v, ok := r.ix.(verifier[E])
		if !ok {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return v.verify(entities)
		})
	}
	err := g.Wait()
	c.logger.LogVerify(ctx, len(c.indexes), err)
	return err
}

// checkID rejects malformed identities and identities already seen in the
// batch, reporting the latter with dupErr.
func (c *Cache[E]) checkID(op string, key id.ID[E], seen map[id.ID[E]]struct{}, dupErr error) error {
	if !key.Valid() {
		return precondition(op, key.Int64(), ErrInvalidID)
	}
	if _, dup := seen[key]; dup {
		return precondition(op, key.Int64(), dupErr)
	}
	seen[key] = struct{}{}
	return nil
}

func (c *Cache[E]) commit(op string, batch []change.Change[E]) error {
	if len(batch) == 0 {
		return nil
	}
	start := time.Now()

	for _, r := range c.indexes {
		if err := r.ix.Validate(batch); err != nil {
			return c.reject(op, len(batch), err)
		}
	}

	for _, ch := range batch {
		if newVal, ok := ch.New(); ok {
			c.store.Put(newVal)
		} else {
			c.store.Delete(ch.ID())
		}
	}
	for _, r := range c.indexes {
		r.ix.Apply(batch)
	}

	c.metrics.RecordCommit(op, len(batch), time.Since(start))
	c.logger.LogCommit(op, len(batch), c.store.Len(), nil)
	return nil
}

func (c *Cache[E]) reject(op string, n int, err error) error {
	c.metrics.RecordRejection(op, err)
	c.logger.LogCommit(op, n, c.store.Len(), err)
	return err
}

// equal compares two states with their Equal method when they have one.
func equal[E any](a, b E) bool {
	if eq, ok := any(a).(interface{ Equal(E) bool }); ok {
		return eq.Equal(b)
	}
	return reflect.DeepEqual(a, b)
}
