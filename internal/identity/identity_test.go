package identity

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/chronicle/internal/record"
)

var aliceID = uuid.MustParse("0190a3c4-5b6d-7e8f-9a0b-1c2d3e4f5a6b")

func TestDirectoryResolve(t *testing.T) {
	d := NewDirectory()
	d.Add("Alice", aliceID)

	id, err := d.ResolveNameToID(context.Background(), "aLiCe")
	require.NoError(t, err)
	assert.Equal(t, aliceID, id)

	_, err = d.ResolveNameToID(context.Background(), "bob")
	require.ErrorIs(t, err, ErrUnknownName)
	assert.Contains(t, err.Error(), `"bob"`)
}

func TestDirectoryResolveIDs(t *testing.T) {
	d := NewDirectory()
	d.Add("Alice", aliceID)
	other := uuid.New()

	names, err := d.ResolveIDsToNames(context.Background(), []uuid.UUID{aliceID, other})
	require.NoError(t, err)
	assert.Equal(t, map[uuid.UUID]string{aliceID: "Alice"}, names)
	assert.Equal(t, int64(1), d.Lookups())
}

func TestDirectoryCancelled(t *testing.T) {
	d := NewDirectory()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.ResolveNameToID(ctx, "alice")
	assert.ErrorIs(t, err, context.Canceled)
	_, err = d.ResolveIDsToNames(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadDirectory(t *testing.T) {
	d, err := LoadDirectory(map[string]string{"alice": aliceID.String()})
	require.NoError(t, err)
	id, err := d.ResolveNameToID(context.Background(), "ALICE")
	require.NoError(t, err)
	assert.Equal(t, aliceID, id)

	_, err = LoadDirectory(map[string]string{"bob": "not-a-uuid"})
	assert.Error(t, err)
}

func TestPrincipalLocated(t *testing.T) {
	assert.False(t, Console().Located())
	p := Principal{Name: "alice", Location: record.Location{World: "w"}}
	assert.True(t, p.Located())
}
