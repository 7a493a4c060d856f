package gridsim

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/statecache"
	"github.com/hupe1980/statecache/change"
	"github.com/hupe1980/statecache/id"
)

func TestConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		require.NoError(t, DefaultConfig().Validate())
	})

	t.Run("load", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "sim.yaml")
		require.NoError(t, os.WriteFile(path, []byte("width: 4\nheight: 3\nrobots: 5\nstore: hash\nlog_level: debug\n"), 0o600))

		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, 4, cfg.Width)
		assert.Equal(t, 3, cfg.Height)
		assert.Equal(t, 5, cfg.Robots)
		assert.Equal(t, StoreHash, cfg.Store)
		assert.Equal(t, DefaultConfig().Steps, cfg.Steps)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("invalid", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Store = "btree"
		assert.Error(t, cfg.Validate())

		cfg = DefaultConfig()
		cfg.MoveChance = 1.5
		assert.Error(t, cfg.Validate())

		cfg = DefaultConfig()
		cfg.SpawnSkew = 0.5
		assert.Error(t, cfg.Validate())

		cfg = DefaultConfig()
		cfg.Width, cfg.Height, cfg.Robots = 2, 2, 5
		assert.ErrorIs(t, cfg.Validate(), ErrGridTooSmall)
	})

	t.Run("level", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.LogLevel = "debug"
		assert.Equal(t, "DEBUG", cfg.Level().String())
		cfg.LogLevel = ""
		assert.Equal(t, "WARN", cfg.Level().String())
	})
}

func smallConfig() Config {
	cfg := DefaultConfig()
	cfg.Width, cfg.Height, cfg.Robots = 6, 5, 18
	cfg.Steps = 60
	cfg.Seed = 7
	cfg.MoveChance = 0.8
	cfg.VerifyEvery = 10
	return cfg
}

func TestSim_Deterministic(t *testing.T) {
	run := func(store string) ([]Robot, Report) {
		cfg := smallConfig()
		cfg.Store = store
		s, err := New(cfg)
		require.NoError(t, err)
		rep, err := s.Run(context.Background())
		require.NoError(t, err)
		return s.Robots(), rep
	}

	robotsA, repA := run(StoreSorted)
	robotsB, repB := run(StoreSorted)
	robotsC, repC := run(StoreHash)

	assert.Equal(t, robotsA, robotsB)
	assert.Equal(t, repA, repB)
	assert.Equal(t, robotsA, robotsC)
	assert.Equal(t, repA, repC)
	assert.True(t, repA.Consistent())
	assert.Equal(t, 7, repA.Verifications)
}

func TestSim_StepInvariants(t *testing.T) {
	s, err := New(smallConfig())
	require.NoError(t, err)

	for range 40 {
		res, err := s.Step()
		require.NoError(t, err)
		assert.Equal(t, res.Proposed, res.Moves+res.Rejected)
		if res.Atomic {
			assert.Zero(t, res.Rejected)
		}

		occupied := map[Cell]bool{}
		for _, r := range s.Robots() {
			assert.False(t, occupied[r.Cell], "cell %v occupied twice", r.Cell)
			occupied[r.Cell] = true

			for _, cell := range r.Cells() {
				owner, ok := s.At(cell)
				require.True(t, ok)
				assert.Equal(t, r.Key, owner.Key)
			}
			named, ok := s.ByName(r.Name)
			require.True(t, ok)
			assert.Equal(t, r, named)
		}
		assert.Equal(t, 18, s.CountStatus(Idle)+s.CountStatus(Moving)+s.CountStatus(Blocked))
		assert.Len(t, s.Blocked(), s.CountStatus(Blocked))
		require.NoError(t, s.Cache().Verify(t.Context()))
	}
}

func pairConfig() Config {
	cfg := DefaultConfig()
	cfg.Width, cfg.Height, cfg.Robots = 2, 1, 2
	cfg.Steps = 200
	cfg.MoveChance = 1
	return cfg
}

func TestSim_Contention(t *testing.T) {
	s, err := New(pairConfig())
	require.NoError(t, err)

	rep, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Positive(t, rep.Rejected)
	assert.Positive(t, rep.FallbackSteps)
	assert.Equal(t, rep.Proposed, rep.Moves+rep.Rejected)
}

func TestSim_Swap(t *testing.T) {
	s, err := New(pairConfig())
	require.NoError(t, err)

	robots := s.Robots()
	a, b := robots[0], robots[1]

	err = s.Cache().Update(a, a.MoveTo(b.Cell))
	require.ErrorIs(t, err, statecache.ErrConstraintViolation)

	require.NoError(t, s.Cache().UpdateAll([]change.Change[Robot]{
		change.Update(a, a.MoveTo(b.Cell)),
		change.Update(b, b.MoveTo(a.Cell)),
	}))

	got, ok := s.At(b.Cell)
	require.True(t, ok)
	assert.Equal(t, a.Key, got.Key)
	got, ok = s.At(a.Cell)
	require.True(t, ok)
	assert.Equal(t, b.Key, got.Key)
	assert.Equal(t, 2, s.CountStatus(Moving))
}

func TestSim_Reservation(t *testing.T) {
	cfg := pairConfig()
	cfg.Width = 3
	s, err := New(cfg)
	require.NoError(t, err)

	robots := s.Robots()
	a := robots[0]
	free := Cell{}
	for x := range 3 {
		if _, ok := s.At(Cell{X: x}); !ok {
			free = Cell{X: x}
		}
	}

	require.NoError(t, s.Cache().Update(a, a.Reserve(free)))
	owner, ok := s.At(free)
	require.True(t, ok)
	assert.Equal(t, a.Key, owner.Key)
	assert.Equal(t, []id.ID[Robot]{a.Key}, s.Blocked())

	var buf bytes.Buffer
	require.NoError(t, s.Render(&buf))
	assert.Contains(t, buf.String(), "+")
	assert.Contains(t, buf.String(), "B")
}

func robotID(v int64) id.ID[Robot] { return id.New[Robot](v) }

func TestSim_Render(t *testing.T) {
	s, err := New(pairConfig())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, s.Render(&buf))
	assert.Equal(t, "II\n", buf.String())
}

func TestSim_RunCanceled(t *testing.T) {
	s, err := New(smallConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReport_WriteTo(t *testing.T) {
	s, err := New(smallConfig())
	require.NoError(t, err)
	rep, err := s.Run(context.Background())
	require.NoError(t, err)

	var buf bytes.Buffer
	n, err := rep.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)
	assert.Contains(t, buf.String(), "robots:        18")
	assert.Contains(t, buf.String(), "verify:        ok (7 checks)")
}
