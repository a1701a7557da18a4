package app

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/chronicle/internal/record"
	"github.com/roach88/chronicle/internal/world"
	"github.com/roach88/chronicle/internal/world/memworld"
)

func TestCaptureRecordsLiveState(t *testing.T) {
	a := newTestApp(t, "0190a000-0000-7000-8000-000000000001")
	ctx := context.Background()
	w := a.World().(*memworld.World)

	require.NoError(t, a.Place(ctx, origin, world.Block("stone")))
	require.NoError(t, a.Capture(ctx, record.BlockBreak, steveID.String(), origin, world.Block(world.Air)))
	assert.Equal(t, world.Air, w.Block(origin))
	_, err := a.Flush(ctx)
	require.NoError(t, err)

	page, err := a.Lookup(ctx, alex(origin), []string{"a:block-break", "-no-group"})
	require.NoError(t, err)
	require.Len(t, page, 1)
	before, ok := page[0].Extra.Map(record.KeyBefore)
	require.True(t, ok)
	assert.Equal(t, "stone", before["block"])
}

func TestCaptureRefusedPosition(t *testing.T) {
	a := newTestApp(t)
	err := a.Capture(context.Background(), record.BlockPlace, "tnt", record.Location{World: "mars"}, world.Block("stone"))
	assert.ErrorContains(t, err, "refused")
	assert.Zero(t, a.Recorder().Pending())
}

func TestDispatch(t *testing.T) {
	a := newTestApp(t, "0190a000-0000-7000-8000-000000000001")
	ctx := context.Background()
	p := alex(origin)

	require.NoError(t, a.Place(ctx, origin, world.Block("stone")))
	require.NoError(t, a.Capture(ctx, record.BlockBreak, steveID.String(), origin, world.Block(world.Air)))
	_, err := a.Flush(ctx)
	require.NoError(t, err)

	out, err := a.Dispatch(ctx, p, "l a:block-break r:5")
	require.NoError(t, err)
	assert.Equal(t, []string{"Steve block-break stone x1 (2024-06-01T12:00:00Z)"}, out.Lines())

	out, err = a.Dispatch(ctx, p, "explain a:block-break")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out.Lines()[0], "SELECT"))

	out, err = a.Dispatch(ctx, p, "rb a:block-break r:5")
	require.NoError(t, err)
	assert.Equal(t, []string{"rollback: 1 applied, 0 skipped"}, out.Lines())

	out, err = a.Dispatch(ctx, p, "undo")
	require.NoError(t, err)
	assert.Equal(t, []string{"undo: 1 applied, 0 skipped"}, out.Lines())

	out, err = a.Dispatch(ctx, p, "purge b:stone")
	require.NoError(t, err)
	assert.Equal(t, []string{"purged 1 records"}, out.Lines())

	out, err = a.Dispatch(ctx, p, "LOOKUP a:block-break")
	require.NoError(t, err)
	assert.Equal(t, []string{"no results"}, out.Lines())
}

func TestDispatchErrors(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	_, err := a.Dispatch(ctx, alex(origin), "   ")
	assert.ErrorContains(t, err, "empty command")

	_, err = a.Dispatch(ctx, alex(origin), "frobnicate a:block-break")
	assert.ErrorContains(t, err, "unknown command")
}
