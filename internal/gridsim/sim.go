// Package gridsim runs a deterministic robot grid on top of a statecache.
//
// Every robot occupies one cell and may hold a reservation on a second one.
// The cells index enforces that no cell has two claimants, so collisions
// surface as rejected batches rather than as corrupted state.
package gridsim

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"

	"golang.org/x/time/rate"

	"github.com/hupe1980/statecache"
	"github.com/hupe1980/statecache/change"
	"github.com/hupe1980/statecache/id"
	"github.com/hupe1980/statecache/internal/rng"
)

// Index names registered on the simulated cache.
const (
	IndexCells   = "cells"
	IndexStatus  = "status"
	IndexBlocked = "blocked"
	IndexName    = "name"
)

var directions = [4]Cell{{X: 1}, {X: -1}, {Y: 1}, {Y: -1}}

var glyphs = map[Status]byte{Idle: 'I', Moving: 'M', Blocked: 'B'}

// Sim owns a robot cache and advances it step by step.
type Sim struct {
	cfg    Config
	rng    *rng.RNG
	gen    *id.Generator
	logger *statecache.Logger
	step   int

	// limiter paces Run when the config sets a step rate.
	limiter *rate.Limiter

	cache   *statecache.Cache[Robot]
	cells   *statecache.ManyToOneIndex[Cell, Robot]
	status  *statecache.OneToManyIndex[Status, Robot]
	blocked *statecache.PredicateIndex[Robot]
	names   *statecache.OneToOneIndex[string, Robot]
}

// New validates cfg, registers the indexes and places cfg.Robots robots on
// distinct random cells. opts are passed to the cache.
func New(cfg Config, opts ...statecache.Option) (*Sim, error) {
	s, err := newSim(cfg, opts)
	if err != nil {
		return nil, err
	}

	robots := make([]Robot, 0, cfg.Robots)
	for _, cell := range s.distinctCells(cfg.Robots) {
		key := id.Next[Robot](s.gen)
		robots = append(robots, Robot{
			Key:  key,
			Name: fmt.Sprintf("r%03d", key.Int64()),
			Cell: cell,
		})
	}
	if err := s.cache.AddAll(robots); err != nil {
		return nil, fmt.Errorf("place robots: %w", err)
	}
	return s, nil
}

// Restore builds a simulation from robots read with ReadSnapshot. The
// snapshot is admitted as one batch, so overlapping cells or duplicate
// names are rejected. cfg.Robots is ignored.
func Restore(cfg Config, robots []Robot, opts ...statecache.Option) (*Sim, error) {
	cfg.Robots = max(len(robots), 1)
	s, err := newSim(cfg, opts)
	if err != nil {
		return nil, err
	}
	if err := s.Load(robots); err != nil {
		return nil, fmt.Errorf("restore: %w", err)
	}
	return s, nil
}

// Load replaces the current population with robots in one batch. Robots
// absent from robots are removed, changed ones updated and new ones added.
// Identities handed out later by Spawn stay above every loaded identity.
func (s *Sim) Load(robots []Robot) error {
	for _, r := range robots {
		for _, c := range r.Cells() {
			if !s.inBounds(c) {
				return fmt.Errorf("load robot %s: cell (%d,%d) outside %dx%d grid", r.Key, c.X, c.Y, s.cfg.Width, s.cfg.Height)
			}
		}
	}

	batch := change.Diff(s.Robots(), robots, Robot.Equal)
	if err := s.cache.Apply(batch); err != nil {
		return fmt.Errorf("load robots: %w", err)
	}

	next := id.Counter[Robot](s.gen).Load()
	for _, r := range robots {
		next = max(next, r.Key.Int64()+1)
	}
	id.Init[Robot](s.gen, next)
	s.logger.Debug("robots loaded", "robots", len(robots), "changes", len(batch))
	return nil
}

func newSim(cfg Config, opts []statecache.Option) (*Sim, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var store statecache.Store[Robot] = statecache.NewHashStore[Robot]()
	if cfg.Store == StoreSorted {
		store = statecache.NewSortedStore[Robot]()
	}
	c, err := statecache.NewWithStore(store, append([]statecache.Option{statecache.WithName("robots")}, opts...)...)
	if err != nil {
		return nil, err
	}

	s := &Sim{
		cfg:    cfg,
		rng:    rng.New(cfg.Seed),
		gen:    id.NewGenerator(),
		logger: statecache.NoopLogger(),
		cache:  c,
	}
	if cfg.StepRate > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.StepRate), 1)
	}
	if err := s.registerIndexes(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Sim) registerIndexes() error {
	var err error
	if s.cells, err = statecache.AddManyToOneIndex(s.cache, Robot.Cells, statecache.WithIndexName(IndexCells)); err != nil {
		return err
	}
	statusOf := func(r Robot) Status { return r.Status }
	if s.status, err = statecache.AddOneToManyIndex(s.cache, statusOf, statecache.WithIndexName(IndexStatus)); err != nil {
		return err
	}
	isBlocked := func(r Robot) bool { return r.Status == Blocked }
	if s.blocked, err = statecache.AddPredicateIndex(s.cache, isBlocked, statecache.WithIndexName(IndexBlocked)); err != nil {
		return err
	}
	nameOf := func(r Robot) (string, bool) { return r.Name, r.Name != "" }
	s.names, err = statecache.AddOneToOneIndex(s.cache, nameOf, statecache.WithIndexName(IndexName))
	return err
}

// WithLogger sets the logger used for step summaries.
func (s *Sim) WithLogger(l *statecache.Logger) *Sim {
	if l != nil {
		s.logger = l
	}
	return s
}

// Cache returns the simulated cache.
func (s *Sim) Cache() *statecache.Cache[Robot] { return s.cache }

// At returns the robot occupying or reserving cell.
func (s *Sim) At(cell Cell) (Robot, bool) { return s.cells.Get(cell) }

// ByName returns the robot called name.
func (s *Sim) ByName(name string) (Robot, bool) { return s.names.Get(name) }

// Blocked returns the identities of blocked robots in ascending order.
func (s *Sim) Blocked() []id.ID[Robot] { return s.blocked.IDs() }

// CountStatus returns how many robots are in status st.
func (s *Sim) CountStatus(st Status) int { return s.status.Count(st) }

// Robots returns every robot in ascending identity order.
func (s *Sim) Robots() []Robot {
	robots := slices.Collect(s.cache.All())
	slices.SortFunc(robots, func(a, b Robot) int { return a.Key.Compare(b.Key) })
	return robots
}

// StepResult describes one step.
type StepResult struct {
	Step     int
	Proposed int
	Moves    int
	Rejected int
	// Atomic is true when the whole move batch committed in one Apply.
	Atomic  bool
	Blocked []id.ID[Robot]
}

// Step advances the simulation by one step.
func (s *Sim) Step() (StepResult, error) {
	s.step++
	res := StepResult{Step: s.step}

	before := s.Robots()
	after := make([]Robot, len(before))
	for i, r := range before {
		after[i] = r
		if target, ok := s.plan(r); ok {
			after[i] = r.MoveTo(target)
			res.Proposed++
		} else if r.Status != Idle {
			after[i] = r.Rest()
		}
	}
	batch := change.Diff(before, after, Robot.Equal)

	err := s.cache.Apply(batch)
	switch {
	case err == nil:
		res.Atomic = true
		res.Moves = res.Proposed
	case statecache.IsConstraintViolation(err):
		if err := s.fallback(batch, &res); err != nil {
			return res, err
		}
	default:
		return res, fmt.Errorf("step %d: %w", s.step, err)
	}

	s.logger.Debug("step",
		"step", res.Step,
		"proposed", res.Proposed,
		"moves", res.Moves,
		"rejected", res.Rejected,
		"atomic", res.Atomic,
	)
	return res, nil
}

// plan picks the cell r tries to enter. A robot holding a reservation always
// retries it.
func (s *Sim) plan(r Robot) (Cell, bool) {
	if r.HasNext {
		return r.Next, true
	}
	if !s.rng.Chance(s.cfg.MoveChance) {
		return Cell{}, false
	}
	d := directions[s.rng.Intn(len(directions))]
	target := Cell{X: r.Cell.X + d.X, Y: r.Cell.Y + d.Y}
	if !s.inBounds(target) {
		return Cell{}, false
	}
	return target, true
}

func (s *Sim) inBounds(c Cell) bool {
	return c.X >= 0 && c.Y >= 0 && c.X < s.cfg.Width && c.Y < s.cfg.Height
}

// Spawn adds a robot on a free cell and returns it. With a spawn skew set,
// cells near the grid centre are strongly preferred, which crowds robots
// together. It fails with ErrGridTooSmall when every cell is claimed.
func (s *Sim) Spawn() (Robot, error) {
	free := make([]Cell, 0)
	for y := 0; y < s.cfg.Height; y++ {
		for x := 0; x < s.cfg.Width; x++ {
			if c := (Cell{X: x, Y: y}); !s.cells.Contains(c) {
				free = append(free, c)
			}
		}
	}
	if len(free) == 0 {
		return Robot{}, fmt.Errorf("%w: no free cell", ErrGridTooSmall)
	}

	var cell Cell
	if s.cfg.SpawnSkew > 1 {
		slices.SortStableFunc(free, func(a, b Cell) int { return s.centreDistance(a) - s.centreDistance(b) })
		cell = free[s.rng.Zipf(len(free), s.cfg.SpawnSkew)]
	} else {
		cell = free[s.rng.Intn(len(free))]
	}

	key := id.Next[Robot](s.gen)
	r := Robot{
		Key:  key,
		Name: fmt.Sprintf("r%03d", key.Int64()),
		Cell: cell,
	}
	if err := s.cache.Add(r); err != nil {
		return Robot{}, err
	}
	return r, nil
}

// centreDistance is the doubled Manhattan distance of c from the grid
// centre, kept integral for odd and even grid sizes.
func (s *Sim) centreDistance(c Cell) int {
	dx := 2*c.X - (s.cfg.Width - 1)
	dy := 2*c.Y - (s.cfg.Height - 1)
	return abs(dx) + abs(dy)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// distinctCells returns n distinct random cells of the grid.
func (s *Sim) distinctCells(n int) []Cell {
	perm := s.rng.Perm(s.cfg.Width * s.cfg.Height)
	cells := make([]Cell, n)
	for i := range n {
		cells[i] = Cell{X: perm[i] % s.cfg.Width, Y: perm[i] / s.cfg.Width}
	}
	return cells
}

// Retire removes the robot called name, releasing its cells.
func (s *Sim) Retire(name string) error {
	key, ok := s.names.GetID(name)
	if !ok {
		return fmt.Errorf("retire %q: %w", name, statecache.ErrNotFound)
	}
	return s.cache.Remove(key)
}

// fallback commits the batch one robot at a time. A robot whose move is
// rejected reserves its target if it is free and is blocked either way.
func (s *Sim) fallback(batch []change.Change[Robot], res *StepResult) error {
	for _, ch := range batch {
		oldVal, _ := ch.Old()
		newVal, _ := ch.New()

		err := s.cache.Update(oldVal, newVal)
		if err == nil {
			if newVal.Status == Moving {
				res.Moves++
			}
			continue
		}
		if !statecache.IsConstraintViolation(err) {
			return fmt.Errorf("step %d: %w", s.step, err)
		}

		res.Rejected++
		res.Blocked = append(res.Blocked, oldVal.Key)
		err = s.cache.Update(oldVal, oldVal.Reserve(newVal.Cell))
		if err == nil {
			continue
		}
		if !statecache.IsConstraintViolation(err) {
			return fmt.Errorf("step %d: %w", s.step, err)
		}
		if err := s.cache.Update(oldVal, oldVal.Block()); err != nil {
			return fmt.Errorf("step %d: %w", s.step, err)
		}
	}
	return nil
}

// Run executes the configured number of steps, paced by the step rate if
// one is set, and verifies the cache.
func (s *Sim) Run(ctx context.Context) (Report, error) {
	rep := Report{Robots: s.cache.Len()}
	for i := 0; i < s.cfg.Steps; i++ {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return rep, err
			}
		}
		res, err := s.Step()
		if err != nil {
			return rep, err
		}
		rep.add(res)

		if s.cfg.VerifyEvery > 0 && res.Step%s.cfg.VerifyEvery == 0 {
			rep.Verifications++
			if err := s.cache.Verify(ctx); err != nil {
				rep.VerifyErr = err
				return rep, fmt.Errorf("step %d: %w", res.Step, err)
			}
		}
	}

	rep.Verifications++
	rep.VerifyErr = s.cache.Verify(ctx)
	rep.Idle = s.CountStatus(Idle)
	rep.Moving = s.CountStatus(Moving)
	rep.BlockedNow = s.blocked.Len()
	s.logger.Info("simulation finished",
		"seed", s.rng.Seed(),
		"steps", rep.Steps,
		"moves", rep.Moves,
		"rejected", rep.Rejected,
		"consistent", rep.VerifyErr == nil,
	)
	return rep, rep.VerifyErr
}

// Render draws the grid: robots as I, M or B by status, reservations as
// '+' and free cells as '.'.
func (s *Sim) Render(w io.Writer) error {
	var b strings.Builder
	for y := 0; y < s.cfg.Height; y++ {
		for x := 0; x < s.cfg.Width; x++ {
			cell := Cell{X: x, Y: y}
			r, ok := s.cells.Get(cell)
			switch {
			case !ok:
				b.WriteByte('.')
			case r.Cell != cell:
				b.WriteByte('+')
			default:
				b.WriteByte(glyphs[r.Status])
			}
		}
		b.WriteByte('\n')
	}
	_, err := io.WriteString(w, b.String())
	return err
}
