package queryir

import "fmt"

// Condition is a node of the condition tree.
//
// This is a sealed interface: only FieldCondition and Group implement it, so
// compilers can switch over it exhaustively.
type Condition interface {
	// Path is the key the condition is stored under in a Query.
	Path() string
	conditionNode()
}

// MatchRule selects the comparison a FieldCondition performs.
type MatchRule int

const (
	Equals MatchRule = iota + 1
	GreaterEq
	LessEq
	Between
	Includes
	Exclude
)

func (m MatchRule) String() string {
	switch m {
	case Equals:
		return "EQUALS"
	case GreaterEq:
		return "GREATER_EQ"
	case LessEq:
		return "LESS_EQ"
	case Between:
		return "BETWEEN"
	case Includes:
		return "INCLUDES"
	case Exclude:
		return "EXCLUDE"
	default:
		return fmt.Sprintf("MatchRule(%d)", int(m))
	}
}

// Range holds the exclusive bounds of a BETWEEN condition.
type Range struct {
	Lower any
	Upper any
}

// FieldCondition tests a single field.
//
// Which value slot is used depends on Match:
//   - EQUALS, GREATER_EQ, LESS_EQ: Value
//   - BETWEEN: Range
//   - INCLUDES, EXCLUDE: Values
//
// Values are stored in their domain form (strings, ints, time.Time,
// uuid.UUID). Compilers apply per-field value mutators at render time, so
// the same condition renders a UUID as a 16-byte blob for SQLite and as a
// binary subtype 4 for the document store.
type FieldCondition struct {
	Field  string
	Match  MatchRule
	Value  any
	Values []any
	Range  Range
}

func (c FieldCondition) Path() string { return c.Field }
func (FieldCondition) conditionNode() {}

// Operator joins the children of a Group.
type Operator int

const (
	And Operator = iota + 1
	Or
)

func (o Operator) String() string {
	switch o {
	case And:
		return "AND"
	case Or:
		return "OR"
	default:
		return fmt.Sprintf("Operator(%d)", int(o))
	}
}

// Group combines child conditions with one boolean operator.
//
// Key is the path the group is stored under in a Query. A group whose
// children are all empty groups is itself empty, and compilers omit it.
type Group struct {
	Key      string
	Operator Operator
	Children []Condition
}

func (g Group) Path() string { return g.Key }
func (Group) conditionNode() {}

// IsEmpty reports whether the group renders to nothing.
func (g Group) IsEmpty() bool {
	for _, c := range g.Children {
		child, ok := c.(Group)
		if !ok || !child.IsEmpty() {
			return false
		}
	}
	return true
}

// Eq builds an EQUALS condition.
func Eq(field string, v any) FieldCondition {
	return FieldCondition{Field: field, Match: Equals, Value: v}
}

// Gte builds a GREATER_EQ condition.
func Gte(field string, v any) FieldCondition {
	return FieldCondition{Field: field, Match: GreaterEq, Value: v}
}

// Lte builds a LESS_EQ condition.
func Lte(field string, v any) FieldCondition {
	return FieldCondition{Field: field, Match: LessEq, Value: v}
}

// InRange builds an exclusive BETWEEN condition.
func InRange(field string, lower, upper any) FieldCondition {
	return FieldCondition{Field: field, Match: Between, Range: Range{Lower: lower, Upper: upper}}
}

// In builds an INCLUDES condition.
func In(field string, values ...any) FieldCondition {
	return FieldCondition{Field: field, Match: Includes, Values: append([]any(nil), values...)}
}

// NotIn builds an EXCLUDE condition.
func NotIn(field string, values ...any) FieldCondition {
	return FieldCondition{Field: field, Match: Exclude, Values: append([]any(nil), values...)}
}

// AllOf builds an AND group stored under key.
func AllOf(key string, children ...Condition) Group {
	return Group{Key: key, Operator: And, Children: append([]Condition(nil), children...)}
}

// AnyOf builds an OR group stored under key.
func AnyOf(key string, children ...Condition) Group {
	return Group{Key: key, Operator: Or, Children: append([]Condition(nil), children...)}
}
