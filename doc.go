// Package statecache provides an in-memory cache of identity-keyed states
// with declarative secondary indexes and atomic batch mutations.
//
// A Cache holds at most one state per identity. Secondary indexes derive
// keys from each state and are maintained automatically on every mutation.
// Uniqueness-constrained indexes reject batches that would leave a key with
// two owners, and a rejected batch leaves the cache and every index exactly
// as they were.
//
// # Quick Start
//
//	type Robot struct {
//		Key  id.ID[Robot]
//		Cell Cell
//		Next Cell
//	}
//
//	func (r Robot) ID() id.ID[Robot] { return r.Key }
//
//	c := statecache.New[Robot]()
//	cells, _ := statecache.AddManyToOneIndex(c, func(r Robot) []Cell {
//		return []Cell{r.Cell, r.Next}
//	})
//
//	_ = c.Add(Robot{Key: id.New[Robot](0), Cell: Cell{0, 0}, Next: Cell{0, 1}})
//	owner, _ := cells.Get(Cell{0, 1})
//
// # Index Kinds
//
//	OneToOne          exactly one key per state, unique across states
//	OptionalOneToOne  zero or one key per state, unique across states
//	ManyToOne         any number of keys per state, each unique
//	OneToMany         one key per state, shared by many states
//	ManyToMany        many keys per state, shared by many states
//	Predicate         the set of states satisfying a predicate
//
// Caller-defined indexes implement Index and are registered with AddIndex.
//
// # Batches
//
// Every mutation is a batch of changes. AddAll, UpdateAll, RemoveAll,
// UpsertAll and Apply validate the whole batch against the store and
// every index before anything is written. Uniqueness is checked on the
// net effect of the batch, so two states may swap keys in one UpdateAll.
//
// # Consistency
//
// Verify recomputes every built-in index from the primary store and
// reports an *InconsistencyError for the first mismatch.
//
// # Observability
//
// Cache operations accept a *Logger (log/slog) and a MetricsCollector. The
// metrics/prommetrics package exports the collector to Prometheus.
package statecache
