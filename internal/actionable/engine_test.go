package actionable

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/chronicle/internal/identity"
	"github.com/roach88/chronicle/internal/queryir"
	"github.com/roach88/chronicle/internal/record"
	"github.com/roach88/chronicle/internal/result"
	"github.com/roach88/chronicle/internal/world"
	"github.com/roach88/chronicle/internal/world/memworld"
)

func TestMain(m *testing.M) {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
	os.Exit(m.Run())
}

var (
	t0     = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	origin = record.Location{World: "overworld", X: 10, Y: 64, Z: 10}
	alex   = identity.Principal{ID: uuid.MustParse("6f1d1a2e-7c9b-4b8e-9f3a-2d5c8e1b4a70"), Name: "Alex", Location: origin}
)

func newEngine(t *testing.T, w world.World, opts Options) *Engine {
	t.Helper()
	exec := world.NewExecutor(16)
	exec.Start()
	t.Cleanup(exec.Stop)
	return New(w, exec, opts)
}

func blockRecord(id, kind string, ts time.Time, loc record.Location, before, after string) result.Result {
	target := after
	if after == world.Air {
		target = before
	}
	return result.NewComplete(record.Event{
		ID:        id,
		EventName: kind,
		Timestamp: ts,
		Location:  loc,
		Cause:     "tnt",
		Target:    target,
		Extra: record.Payload{
			record.KeyBefore: world.Block(before).Payload(),
			record.KeyAfter:  world.Block(after).Payload(),
		},
	})
}

func rollback(records ...result.Result) Request {
	return Request{Mode: Rollback, Principal: alex, Records: records}
}

func TestRollbackAppliesBefore(t *testing.T) {
	w := memworld.New("overworld")
	e := newEngine(t, w, Options{})

	sum, err := e.Apply(context.Background(), rollback(
		blockRecord("r1", record.BlockBreak, t0, origin, "stone", world.Air),
	))
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Applied)
	assert.Equal(t, "stone", w.Block(origin))

	tx := sum.Results[0].Transaction
	require.NotNil(t, tx)
	assert.True(t, tx.Before.IsAir())
	assert.Equal(t, "stone", tx.After.Block)
}

func TestRollbackTwiceSkipsSecond(t *testing.T) {
	w := memworld.New("overworld")
	e := newEngine(t, w, Options{})
	rec := blockRecord("r1", record.BlockBreak, t0, origin, "stone", world.Air)

	first, err := e.Apply(context.Background(), rollback(rec))
	require.NoError(t, err)
	require.Equal(t, 1, first.Applied)

	second, err := e.Apply(context.Background(), rollback(rec))
	require.NoError(t, err)
	assert.Equal(t, 0, second.Applied)
	require.Equal(t, 1, second.Skipped)
	assert.Equal(t, SkipOccupied, second.Results[0].Skip)
	assert.NotEqual(t, SkipUnknown, second.Results[0].Skip)
	assert.Equal(t, 1, w.Writes())
}

func TestRestoreAppliesAfter(t *testing.T) {
	w := memworld.New("overworld")
	e := newEngine(t, w, Options{})

	sum, err := e.Apply(context.Background(), Request{
		Mode:      Restore,
		Principal: alex,
		Records:   []result.Result{blockRecord("r1", record.BlockPlace, t0, origin, world.Air, "dirt")},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Applied)
	assert.Equal(t, "dirt", w.Block(origin))
}

func TestRollbackNewestFirst(t *testing.T) {
	w := memworld.New("overworld")
	e := newEngine(t, w, Options{})

	// Stone was placed, then broken. Rolling both back walks the break first.
	placed := blockRecord("r1", record.BlockPlace, t0, origin, world.Air, "stone")
	broken := blockRecord("r2", record.BlockBreak, t0.Add(time.Minute), origin, "stone", world.Air)

	sum, err := e.Apply(context.Background(), rollback(placed, broken))
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Applied, sum.String())
	assert.Equal(t, "r2", sum.Results[0].Record.ID)
	assert.Equal(t, world.Air, w.Block(origin))
}

func TestRestoreOldestFirst(t *testing.T) {
	w := memworld.New("overworld")
	e := newEngine(t, w, Options{})

	placed := blockRecord("r1", record.BlockPlace, t0, origin, world.Air, "stone")
	broken := blockRecord("r2", record.BlockBreak, t0.Add(time.Minute), origin, "stone", world.Air)

	sum, err := e.Apply(context.Background(), Request{Mode: Restore, Principal: alex, Records: []result.Result{broken, placed}})
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Applied, sum.String())
	assert.Equal(t, "r1", sum.Results[0].Record.ID)
	assert.Equal(t, world.Air, w.Block(origin))
}

func TestOverwriteIgnoresLiveState(t *testing.T) {
	w := memworld.New("overworld")
	w.Set(origin, "dirt")
	e := newEngine(t, w, Options{})

	req := rollback(blockRecord("r1", record.BlockBreak, t0, origin, "stone", world.Air))
	sum, err := e.Apply(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, SkipOccupied, sum.Results[0].Skip)

	req.Flags = queryir.Overwrite
	sum, err = e.Apply(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, 1, sum.Applied)
	assert.Equal(t, "dirt", sum.Results[0].Transaction.Before.Block)
	assert.Equal(t, "stone", w.Block(origin))
}

func TestSkipReasons(t *testing.T) {
	noExtra := blockRecord("r1", record.BlockBreak, t0, origin, "stone", world.Air)
	noExtra.Extra = nil

	badSnapshot := blockRecord("r2", record.BlockBreak, t0, origin, "stone", world.Air)
	badSnapshot.Extra = record.Payload{record.KeyBefore: map[string]any{"properties": "x"}, record.KeyAfter: map[string]any{"block": "air"}}

	noLocation := blockRecord("r3", record.BlockBreak, t0, record.Location{}, "stone", world.Air)
	unknownWorld := blockRecord("r4", record.BlockBreak, t0, record.Location{World: "nether"}, "stone", world.Air)
	blacklisted := blockRecord("r5", record.BlockBreak, t0, origin, "bedrock", world.Air)

	entity := result.NewComplete(record.Event{ID: "r6", EventName: record.EntityKill, Timestamp: t0, Location: origin, Cause: "zombie", Target: "pig"})

	tests := []struct {
		name string
		rec  result.Result
		want SkipReason
	}{
		{"missing snapshot", noExtra, SkipInvalid},
		{"malformed snapshot", badSnapshot, SkipInvalid},
		{"missing location", noLocation, SkipInvalidLocation},
		{"refused position", unknownWorld, SkipInvalidLocation},
		{"blacklisted block", blacklisted, SkipIllegalBlock},
		{"no applier", entity, SkipUnimplemented},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := memworld.New("overworld")
			e := newEngine(t, w, Options{Blacklist: []string{"bedrock"}})

			sum, err := e.Apply(context.Background(), rollback(tt.rec))
			require.NoError(t, err)
			require.Len(t, sum.Results, 1)
			assert.False(t, sum.Results[0].Applied)
			assert.Equal(t, tt.want, sum.Results[0].Skip)
			assert.Error(t, sum.Results[0].Err)
			assert.Equal(t, 1, sum.Skips[tt.want])
			assert.Equal(t, 0, w.Writes())
		})
	}
}

func TestNonActionableKindsLeftOut(t *testing.T) {
	e := newEngine(t, memworld.New("overworld"), Options{})
	join := result.NewComplete(record.Event{ID: "j", EventName: record.PlayerJoin, Timestamp: t0, Location: origin})

	sum, err := e.Apply(context.Background(), rollback(join))
	require.NoError(t, err)
	assert.Empty(t, sum.Results)
	assert.Zero(t, sum.Skipped)
}

// hostWorld wraps a world so tests can inject host failures. It does not
// implement world.CubeScanner.
type hostWorld struct {
	inner world.World
	apply func(loc record.Location, s world.Snapshot) (bool, error)
}

func (h hostWorld) ReadSnapshot(loc record.Location) (world.Snapshot, error) {
	return h.inner.ReadSnapshot(loc)
}

func (h hostWorld) ApplySnapshot(loc record.Location, s world.Snapshot) (bool, error) {
	if h.apply != nil {
		return h.apply(loc, s)
	}
	return h.inner.ApplySnapshot(loc, s)
}

func TestHostFailuresAreUnknown(t *testing.T) {
	rec := blockRecord("r1", record.BlockBreak, t0, origin, "stone", world.Air)

	t.Run("panic", func(t *testing.T) {
		w := hostWorld{inner: memworld.New("overworld"), apply: func(record.Location, world.Snapshot) (bool, error) {
			panic("chunk exploded")
		}}
		e := newEngine(t, w, Options{})
		sum, err := e.Apply(context.Background(), rollback(rec, rec))
		require.NoError(t, err)
		assert.Equal(t, 2, sum.Skips[SkipUnknown], "batch continues after a panic")
		var pe *world.PanicError
		assert.ErrorAs(t, sum.Results[0].Err, &pe)
	})

	t.Run("error", func(t *testing.T) {
		w := hostWorld{inner: memworld.New("overworld"), apply: func(record.Location, world.Snapshot) (bool, error) {
			return false, errors.New("io")
		}}
		e := newEngine(t, w, Options{})
		sum, err := e.Apply(context.Background(), rollback(rec))
		require.NoError(t, err)
		assert.Equal(t, SkipUnknown, sum.Results[0].Skip)
	})

	t.Run("stopped executor", func(t *testing.T) {
		exec := world.NewExecutor(1)
		exec.Start()
		exec.Stop()
		e := New(memworld.New("overworld"), exec, Options{})
		sum, err := e.Apply(context.Background(), rollback(rec))
		require.NoError(t, err)
		assert.Equal(t, SkipUnknown, sum.Results[0].Skip)
		assert.ErrorIs(t, sum.Results[0].Err, world.ErrExecutorStopped)
	})
}

func TestPanickingApplierIsUnknown(t *testing.T) {
	w := memworld.New("overworld")
	appliers := DefaultAppliers()
	appliers[record.BlockPlace] = ApplierFunc(func(result.Result, Mode) (Plan, error) {
		panic("bad payload")
	})
	e := newEngine(t, w, Options{Appliers: appliers})

	other := record.Location{World: "overworld", X: 20, Y: 64, Z: 20}
	sum, err := e.Apply(context.Background(), rollback(
		blockRecord("r1", record.BlockPlace, t0.Add(time.Second), other, world.Air, "dirt"),
		blockRecord("r2", record.BlockBreak, t0, origin, "stone", world.Air),
	))
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Applied)
	assert.Equal(t, 1, sum.Skips[SkipUnknown])
	assert.ErrorContains(t, sum.Results[0].Err, "bad payload")
	assert.Equal(t, "stone", w.Block(origin))
}

func TestEntityDataGetsCoordinates(t *testing.T) {
	w := memworld.New("overworld")
	e := newEngine(t, w, Options{})

	chest := world.Snapshot{Block: "chest", Entity: map[string]any{"items": []any{map[string]any{"id": "apple"}}}}
	rec := result.NewComplete(record.Event{
		ID: "r1", EventName: record.BlockBreak, Timestamp: t0, Location: origin, Target: "chest",
		Extra: record.Payload{record.KeyBefore: chest.Payload(), record.KeyAfter: world.Block(world.Air).Payload()},
	})

	sum, err := e.Apply(context.Background(), rollback(rec))
	require.NoError(t, err)
	require.Equal(t, 1, sum.Applied)

	live, err := w.ReadSnapshot(origin)
	require.NoError(t, err)
	assert.Equal(t, int64(10), live.Entity["x"])
	assert.Equal(t, int64(64), live.Entity["y"])
	assert.True(t, live.Equal(chest))
}

func TestUndoRevertsLastBatch(t *testing.T) {
	w := memworld.New("overworld")
	e := newEngine(t, w, Options{})
	other := record.Location{World: "overworld", X: 11, Y: 64, Z: 10}

	_, err := e.Apply(context.Background(), rollback(
		blockRecord("r1", record.BlockBreak, t0, origin, "stone", world.Air),
		blockRecord("r2", record.BlockBreak, t0, other, "glass", world.Air),
	))
	require.NoError(t, err)
	assert.Equal(t, 2, e.History().Len(alex))

	sum, err := e.Undo(context.Background(), alex, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Applied)
	assert.Equal(t, Undo, sum.Mode)
	assert.Equal(t, world.Air, w.Block(origin))
	assert.Equal(t, world.Air, w.Block(other))

	_, err = e.Undo(context.Background(), alex, 0)
	assert.ErrorIs(t, err, ErrNothingToUndo)
}

func TestUndoIsPerPrincipal(t *testing.T) {
	w := memworld.New("overworld")
	e := newEngine(t, w, Options{})

	_, err := e.Apply(context.Background(), rollback(blockRecord("r1", record.BlockBreak, t0, origin, "stone", world.Air)))
	require.NoError(t, err)

	_, err = e.Undo(context.Background(), identity.Console(), 0)
	assert.ErrorIs(t, err, ErrNothingToUndo)
	assert.Equal(t, 1, e.History().Len(alex))
}

func TestUndoSkipsChangedPositions(t *testing.T) {
	w := memworld.New("overworld")
	e := newEngine(t, w, Options{})

	_, err := e.Apply(context.Background(), rollback(blockRecord("r1", record.BlockBreak, t0, origin, "stone", world.Air)))
	require.NoError(t, err)
	w.Set(origin, "dirt")

	sum, err := e.Undo(context.Background(), alex, 0)
	require.NoError(t, err)
	assert.Equal(t, SkipOccupied, sum.Results[0].Skip)
	assert.Equal(t, "dirt", w.Block(origin))
}

func TestDrainLiquids(t *testing.T) {
	near := record.Location{World: "overworld", X: 12, Y: 64, Z: 10}
	far := record.Location{World: "overworld", X: 30, Y: 64, Z: 10}

	for _, tc := range []struct {
		name string
		w    func(*memworld.World) world.World
	}{
		{"scanner", func(m *memworld.World) world.World { return m }},
		{"cube walk", func(m *memworld.World) world.World { return hostWorld{inner: m} }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			m := memworld.New("overworld")
			m.Set(near, "water")
			m.Set(far, "water")
			e := newEngine(t, tc.w(m), Options{Liquids: []string{"water", "lava"}})

			sum, err := e.Apply(context.Background(), Request{
				Mode:      Rollback,
				Principal: alex,
				Flags:     queryir.DrainLiquids,
				Radius:    3,
			})
			require.NoError(t, err)
			assert.Equal(t, 1, sum.Cleaned)
			assert.Equal(t, world.Air, m.Block(near))
			assert.Equal(t, "water", m.Block(far))

			undone, err := e.Undo(context.Background(), alex, 0)
			require.NoError(t, err)
			assert.Equal(t, 1, undone.Applied)
			assert.Equal(t, "water", m.Block(near))
		})
	}
}

func TestCleanAreaNeedsRadius(t *testing.T) {
	near := record.Location{World: "overworld", X: 11, Y: 64, Z: 10}
	m := memworld.New("overworld")
	m.Set(near, "fire")
	e := newEngine(t, m, Options{Hazards: []string{"fire"}})

	sum, err := e.Apply(context.Background(), Request{Mode: Rollback, Principal: alex, Flags: queryir.CleanArea})
	require.NoError(t, err)
	assert.Zero(t, sum.Cleaned)
	assert.Equal(t, "fire", m.Block(near))

	sum, err = e.Apply(context.Background(), Request{Mode: Rollback, Principal: alex, Flags: queryir.CleanArea, Radius: 2})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Cleaned)
	assert.Equal(t, world.Air, m.Block(near))
}

func TestCancelledContextStopsBatch(t *testing.T) {
	e := newEngine(t, memworld.New("overworld"), Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sum, err := e.Apply(ctx, rollback(blockRecord("r1", record.BlockBreak, t0, origin, "stone", world.Air)))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, sum.Results)
}

func TestSummaryString(t *testing.T) {
	sum := newSummary(Rollback)
	sum.add(Result{Applied: true})
	sum.add(Result{Skip: SkipOccupied})
	sum.add(Result{Skip: SkipInvalid})
	assert.Equal(t, "rollback: 1 applied, 2 skipped (INVALID=1, OCCUPIED=1)", sum.String())
}
