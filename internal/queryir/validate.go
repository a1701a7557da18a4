package queryir

import "fmt"

// Validate checks that a condition tree is well formed: every field is known
// to the compilers, every match rule has the value slot it needs, and every
// group has an operator.
//
// Compilers call Validate before rendering so a malformed tree never reaches
// a backend.
func Validate(c Condition) error {
	switch cond := c.(type) {
	case nil:
		return fmt.Errorf("nil condition")
	case FieldCondition:
		return validateField(cond)
	case Group:
		return validateGroup(cond)
	default:
		return fmt.Errorf("unsupported condition %T", c)
	}
}

// ValidateQuery validates every condition stored in q.
func ValidateQuery(q *Query) error {
	for _, c := range q.Conditions() {
		if err := Validate(c); err != nil {
			return fmt.Errorf("condition %q: %w", c.Path(), err)
		}
	}
	return nil
}

func validateField(c FieldCondition) error {
	if !IsKnownField(c.Field) {
		return fmt.Errorf("unknown field %q", c.Field)
	}
	switch c.Match {
	case Equals, GreaterEq, LessEq:
		if c.Value == nil {
			return fmt.Errorf("%s on %q needs a value", c.Match, c.Field)
		}
	case Between:
		if c.Range.Lower == nil || c.Range.Upper == nil {
			return fmt.Errorf("BETWEEN on %q needs both bounds", c.Field)
		}
	case Includes, Exclude:
		if len(c.Values) == 0 {
			return fmt.Errorf("%s on %q needs at least one value", c.Match, c.Field)
		}
		for i, v := range c.Values {
			if v == nil {
				return fmt.Errorf("%s on %q: value %d is nil", c.Match, c.Field, i)
			}
		}
	default:
		return fmt.Errorf("unknown match rule %s on %q", c.Match, c.Field)
	}
	return nil
}

func validateGroup(g Group) error {
	if g.Operator != And && g.Operator != Or {
		return fmt.Errorf("group %q: unknown operator %s", g.Key, g.Operator)
	}
	for i, child := range g.Children {
		if err := Validate(child); err != nil {
			return fmt.Errorf("group %q child %d: %w", g.Key, i, err)
		}
	}
	return nil
}
