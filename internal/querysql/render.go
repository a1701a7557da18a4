package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/chronicle/internal/queryir"
)

// renderer turns a condition tree into a WHERE fragment with "?"
// placeholders. The statement builder rewrites placeholders for the dialect.
type renderer struct {
	dialect   Dialect
	qualifier string
}

// render returns "" for a condition that renders to nothing (an empty group).
// Callers skip empty fragments, so no fragment ever starts or ends with a
// dangling AND/OR.
func (r renderer) render(c queryir.Condition) (string, []any, error) {
	switch cond := c.(type) {
	case queryir.FieldCondition:
		return r.field(cond)
	case queryir.Group:
		return r.group(cond)
	default:
		return "", nil, fmt.Errorf("unsupported condition %T", c)
	}
}

func (r renderer) group(g queryir.Group) (string, []any, error) {
	var parts []string
	var args []any
	for _, child := range g.Children {
		sql, childArgs, err := r.render(child)
		if err != nil {
			return "", nil, err
		}
		if sql == "" {
			continue
		}
		parts = append(parts, sql)
		args = append(args, childArgs...)
	}

	switch len(parts) {
	case 0:
		return "", nil, nil
	case 1:
		return parts[0], args, nil
	}
	return "(" + strings.Join(parts, " "+g.Operator.String()+" ") + ")", args, nil
}

func (r renderer) field(c queryir.FieldCondition) (string, []any, error) {
	col, err := column(c.Field, r.qualifier)
	if err != nil {
		return "", nil, err
	}

	switch c.Match {
	case queryir.Equals, queryir.GreaterEq, queryir.LessEq:
		v, err := r.dialect.mutate(c.Field, c.Value)
		if err != nil {
			return "", nil, err
		}
		return fmt.Sprintf("%s %s ?", col, comparison[c.Match]), []any{v}, nil

	case queryir.Between:
		lo, err := r.dialect.mutate(c.Field, c.Range.Lower)
		if err != nil {
			return "", nil, err
		}
		hi, err := r.dialect.mutate(c.Field, c.Range.Upper)
		if err != nil {
			return "", nil, err
		}
		return fmt.Sprintf("%s > ? AND %s < ?", col, col), []any{lo, hi}, nil

	case queryir.Includes, queryir.Exclude:
		args := make([]any, len(c.Values))
		for i, raw := range c.Values {
			v, err := r.dialect.mutate(c.Field, raw)
			if err != nil {
				return "", nil, err
			}
			args[i] = v
		}
		return r.list(col, c, args), args, nil
	}
	return "", nil, fmt.Errorf("unknown match rule %s", c.Match)
}

var comparison = map[queryir.MatchRule]string{
	queryir.Equals:    "=",
	queryir.GreaterEq: ">=",
	queryir.LessEq:    "<=",
}

func (r renderer) list(col string, c queryir.FieldCondition, args []any) string {
	var sql string
	if c.Match == queryir.Includes {
		if len(args) == 1 {
			return col + " = ?"
		}
		return col + " IN (" + placeholders(len(args)) + ")"
	}

	if len(args) == 1 {
		sql = col + " <> ?"
	} else {
		sql = col + " NOT IN (" + placeholders(len(args)) + ")"
	}
	if nullable[c.Field] {
		sql = "(" + col + " IS NULL OR " + sql + ")"
	}
	return sql
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
