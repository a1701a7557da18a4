// Package querydoc compiles queryir queries into document-store
// aggregation pipelines.
//
// The pipeline is $match (from the condition tree), then either $group on
// the four identity fields plus $sort on the latest timestamp, or a plain
// $sort for complete results, then $limit. Principal ids are encoded as BSON
// binary subtype 4, timestamps as BSON dates.
package querydoc

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/roach88/chronicle/internal/queryir"
)

// Document field paths.
const (
	DocID        = "_id"
	DocEventName = "eventName"
	DocTimestamp = "timestamp"
	DocWorld     = "location.world"
	DocX         = "location.x"
	DocY         = "location.y"
	DocZ         = "location.z"
	DocActor     = "actor"
	DocCause     = "cause"
	DocTarget    = "target"
	DocExtra     = "extra"
)

var fields = map[string]string{
	queryir.FieldID:        DocID,
	queryir.FieldEventName: DocEventName,
	queryir.FieldTimestamp: DocTimestamp,
	queryir.FieldWorld:     DocWorld,
	queryir.FieldX:         DocX,
	queryir.FieldY:         DocY,
	queryir.FieldZ:         DocZ,
	queryir.FieldActor:     DocActor,
	queryir.FieldCause:     DocCause,
	queryir.FieldTarget:    DocTarget,
}

// ValueMutator converts a domain value into its stored BSON form.
type ValueMutator func(v any) (any, error)

// Pipeline is a compiled aggregation pipeline.
type Pipeline struct {
	Stages  mongo.Pipeline
	Grouped bool
}

// String renders one relaxed extended-JSON stage per line.
func (p Pipeline) String() string {
	lines := make([]string, len(p.Stages))
	for i, stage := range p.Stages {
		b, err := bson.MarshalExtJSON(stage, false, false)
		if err != nil {
			lines[i] = fmt.Sprintf("<stage %d: %v>", i, err)
			continue
		}
		lines[i] = string(b)
	}
	return strings.Join(lines, "\n")
}

// Compiler renders queries into pipelines.
//
// Safe for concurrent use.
type Compiler struct {
	mutators map[string]ValueMutator
}

// NewCompiler returns a compiler with the default value mutators.
func NewCompiler() *Compiler {
	return &Compiler{mutators: map[string]ValueMutator{
		queryir.FieldActor:     UUIDBinary,
		queryir.FieldTimestamp: DateTime,
	}}
}

// Compile implements queryir.Compiler.
func (c *Compiler) Compile(q *queryir.Query, flags queryir.Flags) (queryir.Compiled, error) {
	return c.CompilePipeline(q, flags)
}

// CompilePipeline renders a lookup pipeline.
func (c *Compiler) CompilePipeline(q *queryir.Query, flags queryir.Flags) (Pipeline, error) {
	if q == nil {
		return Pipeline{}, fmt.Errorf("cannot compile nil query")
	}
	filter, err := c.filter(q)
	if err != nil {
		return Pipeline{}, fmt.Errorf("compile pipeline: %w", err)
	}

	p := Pipeline{Grouped: q.Grouped(flags)}
	if filter != nil {
		p.Stages = append(p.Stages, bson.D{{Key: "$match", Value: filter}})
	}

	dir := 1
	if q.Sort() == queryir.Descending {
		dir = -1
	}
	if p.Grouped {
		p.Stages = append(p.Stages,
			bson.D{{Key: "$group", Value: bson.D{
				{Key: "_id", Value: bson.D{
					{Key: DocEventName, Value: "$" + DocEventName},
					{Key: DocTarget, Value: "$" + DocTarget},
					{Key: DocActor, Value: "$" + DocActor},
					{Key: DocCause, Value: "$" + DocCause},
				}},
				{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
				{Key: "latest", Value: bson.D{{Key: "$max", Value: "$" + DocTimestamp}}},
			}}},
			bson.D{{Key: "$sort", Value: bson.D{{Key: "latest", Value: dir}}}},
		)
	} else {
		p.Stages = append(p.Stages,
			bson.D{{Key: "$sort", Value: bson.D{{Key: DocTimestamp, Value: dir}, {Key: DocID, Value: dir}}}},
		)
	}

	if limit := q.Limit(); limit > 0 {
		p.Stages = append(p.Stages, bson.D{{Key: "$limit", Value: int64(limit)}})
	}
	return p, nil
}

// CompileFilter renders the filter document for a purge. A query without
// conditions is refused.
func (c *Compiler) CompileFilter(q *queryir.Query) (bson.D, error) {
	if q == nil || q.Len() == 0 {
		return nil, fmt.Errorf("compile filter: refusing to delete without conditions")
	}
	filter, err := c.filter(q)
	if err != nil {
		return nil, fmt.Errorf("compile filter: %w", err)
	}
	if filter == nil {
		return nil, fmt.Errorf("compile filter: refusing to delete without conditions")
	}
	return filter, nil
}

// Mutate applies the stored-form mutator for field.
func (c *Compiler) Mutate(field string, v any) (any, error) {
	m, ok := c.mutators[field]
	if !ok || v == nil {
		return v, nil
	}
	out, err := m(v)
	if err != nil {
		return nil, fmt.Errorf("value for %q: %w", field, err)
	}
	return out, nil
}

func (c *Compiler) filter(q *queryir.Query) (bson.D, error) {
	if err := queryir.ValidateQuery(q); err != nil {
		return nil, err
	}
	var docs bson.A
	for _, cond := range q.Conditions() {
		doc, err := c.render(cond)
		if err != nil {
			return nil, err
		}
		if doc != nil {
			docs = append(docs, doc)
		}
	}
	switch len(docs) {
	case 0:
		return nil, nil
	case 1:
		return docs[0].(bson.D), nil
	}
	return bson.D{{Key: "$and", Value: docs}}, nil
}

// render returns nil for a condition that renders to nothing.
func (c *Compiler) render(cond queryir.Condition) (bson.D, error) {
	switch v := cond.(type) {
	case queryir.FieldCondition:
		return c.field(v)
	case queryir.Group:
		return c.group(v)
	}
	return nil, fmt.Errorf("unsupported condition %T", cond)
}

func (c *Compiler) group(g queryir.Group) (bson.D, error) {
	var docs bson.A
	for _, child := range g.Children {
		doc, err := c.render(child)
		if err != nil {
			return nil, err
		}
		if doc != nil {
			docs = append(docs, doc)
		}
	}
	switch len(docs) {
	case 0:
		return nil, nil
	case 1:
		return docs[0].(bson.D), nil
	}
	op := "$and"
	if g.Operator == queryir.Or {
		op = "$or"
	}
	return bson.D{{Key: op, Value: docs}}, nil
}

func (c *Compiler) field(fc queryir.FieldCondition) (bson.D, error) {
	path, ok := fields[fc.Field]
	if !ok {
		return nil, fmt.Errorf("no document field for %q", fc.Field)
	}

	switch fc.Match {
	case queryir.Equals:
		v, err := c.Mutate(fc.Field, fc.Value)
		if err != nil {
			return nil, err
		}
		return bson.D{{Key: path, Value: v}}, nil

	case queryir.GreaterEq, queryir.LessEq:
		v, err := c.Mutate(fc.Field, fc.Value)
		if err != nil {
			return nil, err
		}
		op := "$gte"
		if fc.Match == queryir.LessEq {
			op = "$lte"
		}
		return bson.D{{Key: path, Value: bson.D{{Key: op, Value: v}}}}, nil

	case queryir.Between:
		lo, err := c.Mutate(fc.Field, fc.Range.Lower)
		if err != nil {
			return nil, err
		}
		hi, err := c.Mutate(fc.Field, fc.Range.Upper)
		if err != nil {
			return nil, err
		}
		return bson.D{{Key: path, Value: bson.D{{Key: "$gt", Value: lo}, {Key: "$lt", Value: hi}}}}, nil

	case queryir.Includes, queryir.Exclude:
		vals := make(bson.A, len(fc.Values))
		for i, raw := range fc.Values {
			v, err := c.Mutate(fc.Field, raw)
			if err != nil {
				return nil, err
			}
			vals[i] = v
		}
		if fc.Match == queryir.Includes {
			if len(vals) == 1 {
				return bson.D{{Key: path, Value: vals[0]}}, nil
			}
			return bson.D{{Key: path, Value: bson.D{{Key: "$in", Value: vals}}}}, nil
		}
		if len(vals) == 1 {
			return bson.D{{Key: path, Value: bson.D{{Key: "$ne", Value: vals[0]}}}}, nil
		}
		return bson.D{{Key: path, Value: bson.D{{Key: "$nin", Value: vals}}}}, nil
	}
	return nil, fmt.Errorf("unknown match rule %s", fc.Match)
}

// UUIDBinary encodes a UUID as BSON binary subtype 4.
func UUIDBinary(v any) (any, error) {
	var id uuid.UUID
	switch val := v.(type) {
	case uuid.UUID:
		id = val
	case string:
		parsed, err := uuid.Parse(val)
		if err != nil {
			return nil, err
		}
		id = parsed
	default:
		return nil, fmt.Errorf("cannot use %T as uuid", v)
	}
	data := make([]byte, 16)
	copy(data, id[:])
	return primitive.Binary{Subtype: bson.TypeBinaryUUID, Data: data}, nil
}

// DateTime encodes a time as a BSON date.
func DateTime(v any) (any, error) {
	switch t := v.(type) {
	case time.Time:
		return primitive.NewDateTimeFromTime(t), nil
	case int64:
		return primitive.DateTime(t), nil
	}
	return nil, fmt.Errorf("cannot use %T as timestamp", v)
}
