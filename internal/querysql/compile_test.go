package querysql

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/chronicle/internal/queryir"
	"github.com/roach88/chronicle/internal/record"
)

var (
	testActor = uuid.MustParse("0190a3c4-5b6d-7e8f-9a0b-1c2d3e4f5a6b")
	testSince = time.UnixMilli(1700000000000)
	origin    = record.Location{World: "overworld", X: 10, Y: 64, Z: 10}
)

func newGolden(t *testing.T) *goldie.Goldie {
	return goldie.New(t, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden"))
}

func radiusQuery() *queryir.Query {
	q := queryir.NewQuery()
	q.AddCondition(queryir.In(queryir.FieldEventName, record.BlockBreak))
	q.AddCondition(queryir.FromLocationRadius(origin, 5))
	return q
}

func actorQuery() *queryir.Query {
	q := queryir.NewQuery()
	q.AddCondition(queryir.In(queryir.FieldActor, testActor))
	q.AddCondition(queryir.Gte(queryir.FieldTimestamp, testSince))
	q.AddCondition(queryir.NotIn(queryir.FieldCause, "tnt", "creeper"))
	return q
}

func TestCompileSelectGolden(t *testing.T) {
	complete := radiusQuery()
	complete.SetLimit(25)
	complete.SetSort(queryir.Ascending)

	nested := queryir.NewQuery()
	nested.AddCondition(queryir.AnyOf("scope",
		queryir.AllOf(""),
		queryir.Eq(queryir.FieldWorld, "nether"),
		queryir.AllOf("", queryir.Eq(queryir.FieldX, 1), queryir.AnyOf("")),
	))
	nested.AddCondition(queryir.AllOf("empty", queryir.AnyOf("")))

	tests := []struct {
		name    string
		dialect Dialect
		query   *queryir.Query
		flags   queryir.Flags
	}{
		{"sqlite_aggregate_radius", SQLite, radiusQuery(), 0},
		{"sqlite_complete_radius", SQLite, complete, queryir.NoGroup},
		{"sqlite_actor_blob", SQLite, actorQuery(), 0},
		{"postgres_actor_native", Postgres, actorQuery(), 0},
		{"sqlite_nested_groups", SQLite, nested, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmt, err := NewCompiler(tt.dialect).CompileSelect(tt.query, tt.flags)
			require.NoError(t, err)
			newGolden(t).Assert(t, tt.name, []byte(stmt.String()))
		})
	}
}

func TestCompileDeleteGolden(t *testing.T) {
	q := queryir.NewQuery()
	q.AddCondition(queryir.In(queryir.FieldEventName, record.BlockBreak, record.BlockPlace))
	q.AddCondition(queryir.Lte(queryir.FieldTimestamp, testSince))

	stmt, err := NewCompiler(Postgres).CompileDelete(q)
	require.NoError(t, err)
	newGolden(t).Assert(t, "postgres_delete", []byte(stmt.String()))
}

func TestCompileNeverEmitsDanglingOperators(t *testing.T) {
	leading := regexp.MustCompile(`(WHERE|\() *(AND|OR)\b`)
	trailing := regexp.MustCompile(`\b(AND|OR) *(\)|GROUP|ORDER|LIMIT|$)`)

	trees := []queryir.Condition{
		queryir.AllOf("a"),
		queryir.AnyOf("b", queryir.AllOf(""), queryir.AllOf("")),
		queryir.AllOf("c", queryir.AnyOf(""), queryir.Eq(queryir.FieldWorld, "w")),
		queryir.AnyOf("d", queryir.Eq(queryir.FieldWorld, "w"), queryir.AllOf("")),
		queryir.AllOf("e", queryir.AnyOf("", queryir.AllOf("", queryir.AnyOf("")))),
		queryir.AnyOf("f", queryir.InRange(queryir.FieldX, 1, 9), queryir.AllOf(""), queryir.In(queryir.FieldTarget, "a", "b")),
	}

	for _, dialect := range []Dialect{SQLite, Postgres} {
		for i, tree := range trees {
			q := queryir.NewQuery()
			q.AddCondition(tree)
			stmt, err := NewCompiler(dialect).CompileSelect(q, queryir.NoGroup)
			require.NoError(t, err)

			assert.False(t, leading.MatchString(stmt.SQL), "%s tree %d: %s", dialect.Name, i, stmt.SQL)
			assert.False(t, trailing.MatchString(stmt.SQL), "%s tree %d: %s", dialect.Name, i, stmt.SQL)
			assert.NotContains(t, stmt.SQL, "()")
		}
	}
}

func TestCompileAllEmptyGroupHasNoWhere(t *testing.T) {
	q := queryir.NewQuery()
	q.AddCondition(queryir.AllOf("a", queryir.AnyOf(""), queryir.AllOf("")))

	stmt, err := NewCompiler(SQLite).CompileSelect(q, 0)
	require.NoError(t, err)
	assert.NotContains(t, stmt.SQL, "WHERE")
	assert.Empty(t, stmt.Args)
}

func TestCompileValuesAreBound(t *testing.T) {
	q := queryir.NewQuery()
	q.AddCondition(queryir.In(queryir.FieldTarget, "stone'; DROP TABLE events; --"))

	stmt, err := NewCompiler(SQLite).CompileSelect(q, 0)
	require.NoError(t, err)
	assert.NotContains(t, stmt.SQL, "DROP")
	assert.Equal(t, []any{"stone'; DROP TABLE events; --"}, stmt.Args)
}

func TestCompileRejectsMalformed(t *testing.T) {
	q := queryir.NewQuery()
	q.AddCondition(queryir.In(queryir.FieldTarget))

	_, err := NewCompiler(SQLite).CompileSelect(q, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "compile select")
}

func TestCompileMutatorErrors(t *testing.T) {
	q := queryir.NewQuery()
	q.AddCondition(queryir.Eq(queryir.FieldID, "not-a-uuid"))

	_, err := NewCompiler(Postgres).CompileSelect(q, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `postgres value for "id"`)

	// SQLite keeps ids as text.
	_, err = NewCompiler(SQLite).CompileSelect(q, 0)
	require.NoError(t, err)
}

func TestCompileDeleteRequiresConditions(t *testing.T) {
	c := NewCompiler(SQLite)

	_, err := c.CompileDelete(queryir.NewQuery())
	assert.Error(t, err)

	q := queryir.NewQuery()
	q.AddCondition(queryir.AllOf("empty"))
	_, err = c.CompileDelete(q)
	assert.Error(t, err)
}

func TestCompileImplementsInterface(t *testing.T) {
	var c queryir.Compiler = NewCompiler(SQLite)
	out, err := c.Compile(radiusQuery(), 0)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out.String(), "SELECT"))
}

func TestCompileInsert(t *testing.T) {
	codec, err := record.NewCodec(false)
	require.NoError(t, err)
	defer codec.Close()

	batch := []record.Event{
		{
			ID:        "evt-1",
			EventName: record.BlockBreak,
			Timestamp: testSince,
			Location:  origin,
			Cause:     testActor.String(),
			Target:    "stone",
			Extra:     record.Payload{"before": map[string]any{"block": "stone"}},
		},
		{
			ID:        "evt-2",
			EventName: record.BlockExplode,
			Timestamp: testSince,
			Location:  origin,
			Cause:     "creeper",
			Target:    "dirt",
		},
	}

	stmts, err := NewCompiler(SQLite).CompileInsert(batch, codec.Encode)
	require.NoError(t, err)
	require.Len(t, stmts, 2)

	assert.True(t, strings.HasPrefix(stmts[0].SQL, "INSERT INTO events "))
	require.Len(t, stmts[0].Args, 20)
	// Principal causes land in actor_id as a blob, free text in cause.
	assert.Equal(t, testActor[:], stmts[0].Args[7])
	assert.Nil(t, stmts[0].Args[8])
	assert.Nil(t, stmts[0].Args[17])
	assert.Equal(t, "creeper", stmts[0].Args[18])
	assert.Equal(t, int64(1700000000000), stmts[0].Args[2])

	assert.True(t, strings.HasPrefix(stmts[1].SQL, "INSERT INTO event_extra "))
	assert.Equal(t, []any{"evt-1", []byte(`{"before":{"block":"stone"}}`)}, stmts[1].Args)
}

func TestCompileInsertChunks(t *testing.T) {
	batch := make([]record.Event, maxInsertRows+1)
	for i := range batch {
		batch[i] = record.Event{ID: "e", EventName: record.BlockPlace, Timestamp: testSince}
	}

	stmts, err := NewCompiler(SQLite).CompileInsert(batch, func(record.Payload) ([]byte, error) { return nil, nil })
	require.NoError(t, err)
	require.Len(t, stmts, 2)
	assert.Len(t, stmts[1].Args, len(eventColumns))
}
