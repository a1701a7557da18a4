package querysql

import (
	"fmt"

	"github.com/Masterminds/squirrel"

	"github.com/roach88/chronicle/internal/queryir"
	"github.com/roach88/chronicle/internal/record"
)

// Compiler renders queries for one SQL dialect.
//
// Safe for concurrent use.
type Compiler struct {
	dialect Dialect
}

// NewCompiler creates a compiler for d.
func NewCompiler(d Dialect) *Compiler {
	return &Compiler{dialect: d}
}

// Dialect returns the compiler's dialect.
func (c *Compiler) Dialect() Dialect {
	return c.dialect
}

// Compile implements queryir.Compiler.
func (c *Compiler) Compile(q *queryir.Query, flags queryir.Flags) (queryir.Compiled, error) {
	return c.CompileSelect(q, flags)
}

// CompileSelect renders a lookup. The query runs in aggregate mode unless
// the query or the no-group flag turns grouping off.
func (c *Compiler) CompileSelect(q *queryir.Query, flags queryir.Flags) (Statement, error) {
	if q == nil {
		return Statement{}, fmt.Errorf("cannot compile nil query")
	}
	if err := queryir.ValidateQuery(q); err != nil {
		return Statement{}, fmt.Errorf("compile select: %w", err)
	}

	var sb squirrel.SelectBuilder
	if q.Grouped(flags) {
		group := qualified(queryir.GroupFields, aliasEvents)
		cols := append(append([]string{}, group...), "COUNT(*) AS count", "MAX(e.ts) AS latest")
		sb = c.dialect.builder().
			Select(cols...).
			From(tableEvents + " " + aliasEvents).
			GroupBy(group...).
			OrderBy("latest " + direction(q.Sort()))
	} else {
		cols := append(qualified(eventColumns, aliasEvents), aliasExtra+".data")
		dir := direction(q.Sort())
		sb = c.dialect.builder().
			Select(cols...).
			From(tableEvents + " " + aliasEvents).
			LeftJoin(fmt.Sprintf("%s %s ON %s.event_id = %s.id", tableExtra, aliasExtra, aliasExtra, aliasEvents)).
			OrderBy("e.ts "+dir, "e.id "+dir)
	}

	sb, err := c.where(sb, q, aliasEvents)
	if err != nil {
		return Statement{}, fmt.Errorf("compile select: %w", err)
	}
	if limit := q.Limit(); limit > 0 {
		sb = sb.Limit(uint64(limit))
	}

	sql, args, err := sb.ToSql()
	if err != nil {
		return Statement{}, fmt.Errorf("compile select: %w", err)
	}
	return Statement{SQL: sql, Args: args}, nil
}

// CompileDelete renders a purge. Extra payload rows go with their events
// through the foreign key cascade. A query without conditions is refused.
func (c *Compiler) CompileDelete(q *queryir.Query) (Statement, error) {
	if q == nil || q.Len() == 0 {
		return Statement{}, fmt.Errorf("compile delete: refusing to delete without conditions")
	}
	if err := queryir.ValidateQuery(q); err != nil {
		return Statement{}, fmt.Errorf("compile delete: %w", err)
	}

	r := renderer{dialect: c.dialect}
	db := c.dialect.builder().Delete(tableEvents)
	clauses := 0
	for _, cond := range q.Conditions() {
		sql, args, err := r.render(cond)
		if err != nil {
			return Statement{}, fmt.Errorf("compile delete: %w", err)
		}
		if sql == "" {
			continue
		}
		db = db.Where(sql, args...)
		clauses++
	}
	if clauses == 0 {
		return Statement{}, fmt.Errorf("compile delete: refusing to delete without conditions")
	}

	sql, args, err := db.ToSql()
	if err != nil {
		return Statement{}, fmt.Errorf("compile delete: %w", err)
	}
	return Statement{SQL: sql, Args: args}, nil
}

// maxInsertRows keeps multi-row inserts under SQLite's bound-variable limit.
const maxInsertRows = 500

// CompileInsert renders the inserts for a batch of events: one or more
// multi-row inserts into events followed by the extra payload rows.
// encode turns a payload into its stored bytes.
func (c *Compiler) CompileInsert(batch []record.Event, encode func(record.Payload) ([]byte, error)) ([]Statement, error) {
	var stmts []Statement
	for start := 0; start < len(batch); start += maxInsertRows {
		end := min(start+maxInsertRows, len(batch))
		chunk := batch[start:end]

		events := c.dialect.builder().Insert(tableEvents).Columns(qualified(eventColumns, "")...)
		extras := c.dialect.builder().Insert(tableExtra).Columns("event_id", "data")
		hasExtra := false

		for _, e := range chunk {
			row, err := c.eventRow(e)
			if err != nil {
				return nil, fmt.Errorf("compile insert %s: %w", e.ID, err)
			}
			events = events.Values(row...)

			if len(e.Extra) == 0 {
				continue
			}
			data, err := encode(e.Extra)
			if err != nil {
				return nil, fmt.Errorf("compile insert %s: %w", e.ID, err)
			}
			id, err := c.dialect.mutate(queryir.FieldID, e.ID)
			if err != nil {
				return nil, fmt.Errorf("compile insert %s: %w", e.ID, err)
			}
			extras = extras.Values(id, data)
			hasExtra = true
		}

		sql, args, err := events.ToSql()
		if err != nil {
			return nil, fmt.Errorf("compile insert: %w", err)
		}
		stmts = append(stmts, Statement{SQL: sql, Args: args})

		if hasExtra {
			sql, args, err = extras.ToSql()
			if err != nil {
				return nil, fmt.Errorf("compile insert: %w", err)
			}
			stmts = append(stmts, Statement{SQL: sql, Args: args})
		}
	}
	return stmts, nil
}

func (c *Compiler) eventRow(e record.Event) ([]any, error) {
	var actor, cause any
	if id, ok := e.PrincipalID(); ok {
		actor = id
	} else if e.Cause != "" {
		cause = e.Cause
	}

	raw := map[string]any{
		queryir.FieldID:        e.ID,
		queryir.FieldEventName: e.EventName,
		queryir.FieldTimestamp: e.Timestamp,
		queryir.FieldWorld:     e.Location.World,
		queryir.FieldX:         e.Location.X,
		queryir.FieldY:         e.Location.Y,
		queryir.FieldZ:         e.Location.Z,
		queryir.FieldActor:     actor,
		queryir.FieldCause:     cause,
		queryir.FieldTarget:    e.Target,
	}
	row := make([]any, len(eventColumns))
	for i, f := range eventColumns {
		v, err := c.dialect.mutate(f, raw[f])
		if err != nil {
			return nil, err
		}
		row[i] = v
	}
	return row, nil
}

func (c *Compiler) where(sb squirrel.SelectBuilder, q *queryir.Query, qualifier string) (squirrel.SelectBuilder, error) {
	r := renderer{dialect: c.dialect, qualifier: qualifier}
	for _, cond := range q.Conditions() {
		sql, args, err := r.render(cond)
		if err != nil {
			return sb, err
		}
		if sql == "" {
			continue
		}
		sb = sb.Where(sql, args...)
	}
	return sb, nil
}

func direction(s queryir.Sort) string {
	if s == queryir.Ascending {
		return "ASC"
	}
	return "DESC"
}
