package memworld

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/chronicle/internal/record"
	"github.com/roach88/chronicle/internal/world"
)

func TestWorldReadApply(t *testing.T) {
	w := New("overworld")
	loc := record.Location{World: "overworld", X: 1, Y: 2, Z: 3}

	s, err := w.ReadSnapshot(loc)
	require.NoError(t, err)
	assert.True(t, s.IsAir())

	ok, err := w.ApplySnapshot(loc, world.Block("stone"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "stone", w.Block(loc))
	assert.Equal(t, 1, w.Writes())

	ok, err = w.ApplySnapshot(loc, world.Block(world.Air))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, world.Air, w.Block(loc))
	assert.Empty(t, w.Positions())
}

func TestWorldRefusesUnknownWorld(t *testing.T) {
	w := New("overworld")
	ok, err := w.ApplySnapshot(record.Location{World: "nether"}, world.Block("stone"))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, w.Writes())
}

func TestWorldPositionsSorted(t *testing.T) {
	w := New("a", "b")
	w.Set(record.Location{World: "b", X: 0}, "stone")
	w.Set(record.Location{World: "a", X: 2}, "stone")
	w.Set(record.Location{World: "a", X: 1, Y: 5}, "dirt")
	w.Set(record.Location{World: "a", X: 1, Y: 4}, "dirt")

	got := w.Positions()
	require.Len(t, got, 4)
	assert.Equal(t, record.Location{World: "a", X: 1, Y: 4}, got[0])
	assert.Equal(t, record.Location{World: "a", X: 1, Y: 5}, got[1])
	assert.Equal(t, record.Location{World: "a", X: 2}, got[2])
	assert.Equal(t, "b", got[3].World)

	w.Set(record.Location{World: "b", X: 0}, "")
	assert.Len(t, w.Positions(), 3)
}

func TestWorldScanCube(t *testing.T) {
	w := New("overworld", "nether")
	center := record.Location{World: "overworld", X: 0, Y: 64, Z: 0}
	w.Set(record.Location{World: "overworld", X: 2, Y: 64, Z: -2}, "water")
	w.Set(record.Location{World: "overworld", X: 3, Y: 64, Z: 0}, "water")
	w.Set(record.Location{World: "nether", X: 0, Y: 64, Z: 0}, "lava")

	got := w.ScanCube(center, 2)
	require.Len(t, got, 1)
	assert.Equal(t, record.Location{World: "overworld", X: 2, Y: 64, Z: -2}, got[0])
}
