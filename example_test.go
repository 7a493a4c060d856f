package statecache_test

import (
	"errors"
	"fmt"
	"log"

	"github.com/hupe1980/statecache"
	"github.com/hupe1980/statecache/change"
	"github.com/hupe1980/statecache/id"
)

type Cell struct{ X, Y int }

type Robot struct {
	id    id.ID[Robot]
	cells []Cell
	idle  bool
}

func (r Robot) ID() id.ID[Robot] { return r.id }

func (r Robot) Cells() []Cell { return r.cells }

// Example_ownership demonstrates a many-to-one index guarding grid cells.
func Example_ownership() {
	gen := id.NewGenerator()
	cache := statecache.New[Robot]()

	cells, err := statecache.AddManyToOneIndex(cache, Robot.Cells, statecache.WithIndexName("cells"))
	if err != nil {
		log.Fatal(err)
	}

	a := Robot{id: id.Next[Robot](gen), cells: []Cell{{0, 1}}}
	b := Robot{id: id.Next[Robot](gen), cells: []Cell{{1, 0}}}
	if err := cache.AddAll([]Robot{a, b}); err != nil {
		log.Fatal(err)
	}

	intruder := Robot{id: id.Next[Robot](gen), cells: []Cell{{0, 1}}}
	err = cache.Add(intruder)
	fmt.Println(errors.Is(err, statecache.ErrConstraintViolation))

	// Swap cells in one batch.
	err = cache.UpdateAll([]change.Change[Robot]{
		change.Update(a, Robot{id: a.id, cells: []Cell{{1, 0}}}),
		change.Update(b, Robot{id: b.id, cells: []Cell{{0, 1}}}),
	})
	if err != nil {
		log.Fatal(err)
	}

	owner, _ := cells.GetID(Cell{1, 0})
	fmt.Println(owner)
	// Output:
	// true
	// 0
}

// Example_predicate demonstrates a back-filled predicate index.
func Example_predicate() {
	cache := statecache.New[Robot]()
	for i := range 10 {
		_ = cache.Add(Robot{id: id.New[Robot](int64(i)), idle: i < 4})
	}

	idle, err := statecache.AddPredicateIndex(cache, func(r Robot) bool { return r.idle })
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(idle.Len(), idle.IDs())
	// Output: 4 [0 1 2 3]
}
