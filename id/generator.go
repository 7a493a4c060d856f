package id

import (
	"reflect"
	"sync"
	"sync/atomic"
)

// Generator allocates identities from one monotonic counter per entity type.
// It is safe for concurrent use.
type Generator struct {
	mu       sync.Mutex
	counters map[reflect.Type]*atomic.Int64
}

// NewGenerator creates a generator whose counters all start at 0.
func NewGenerator() *Generator {
	return &Generator{counters: make(map[reflect.Type]*atomic.Int64)}
}

func (g *Generator) counter(t reflect.Type) *atomic.Int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.counters[t]
	if !ok {
		c = new(atomic.Int64)
		g.counters[t] = c
	}
	return c
}

// Next allocates a fresh identity for type T.
func Next[T any](g *Generator) ID[T] {
	return ID[T]{v: g.counter(reflect.TypeFor[T]()).Add(1) - 1}
}

// Counter returns the raw counter backing type T. The counter holds the value
// the next call to Next will return.
func Counter[T any](g *Generator) *atomic.Int64 {
	return g.counter(reflect.TypeFor[T]())
}

// Init sets the next identity returned for type T.
func Init[T any](g *Generator, next int64) {
	g.counter(reflect.TypeFor[T]()).Store(next)
}

// Reset sets every counter back to 0. Counters obtained through Counter
// before the reset observe the new value.
func (g *Generator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, c := range g.counters {
		c.Store(0)
	}
}
