package param

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/roach88/chronicle/internal/identity"
	"github.com/roach88/chronicle/internal/queryir"
	"github.com/roach88/chronicle/internal/record"
)

// ListParameter matches a field against a comma-separated list. Entries
// prefixed with "!" are excluded; the rest are included.
type ListParameter struct {
	Field string
	Names []string
	// Validate, when set, checks each entry with its "!" stripped.
	Validate func(v string) error
}

func (h *ListParameter) Aliases() []string                     { return h.Names }
func (h *ListParameter) AcceptsSource(identity.Principal) bool { return true }

func (h *ListParameter) AcceptsValue(raw string) bool {
	return len(splitList(raw)) > 0
}

func (h *ListParameter) Process(_ context.Context, _ Session, _, value string, q *queryir.Query) (Pending, error) {
	var include, exclude []any
	for _, v := range splitList(value) {
		negated := strings.HasPrefix(v, "!")
		v = strings.TrimPrefix(v, "!")
		if v == "" {
			return nil, fmt.Errorf("empty entry")
		}
		if h.Validate != nil {
			if err := h.Validate(v); err != nil {
				return nil, err
			}
		}
		if negated {
			exclude = append(exclude, v)
		} else {
			include = append(include, v)
		}
	}
	q.AddCondition(includeExclude(h.Field, include, exclude))
	return nil, nil
}

func includeExclude(field string, include, exclude []any) queryir.Condition {
	switch {
	case len(exclude) == 0 && len(include) == 1:
		return queryir.Eq(field, include[0])
	case len(exclude) == 0:
		return queryir.In(field, include...)
	case len(include) == 0:
		return queryir.NotIn(field, exclude...)
	}
	return queryir.AllOf(field, queryir.In(field, include...), queryir.NotIn(field, exclude...))
}

func knownEventName(name string) error {
	if _, ok := record.LookupKind(name); !ok {
		return fmt.Errorf("unknown action %q", name)
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ActorParameter matches principal ids. UUID entries are used as is; names
// are resolved through Identity when the pending work runs. Repeated actor
// tokens accumulate into one INCLUDES condition.
type ActorParameter struct {
	Identity identity.Resolver
}

func (h *ActorParameter) Aliases() []string                     { return []string{"p", "player"} }
func (h *ActorParameter) AcceptsSource(identity.Principal) bool { return true }

func (h *ActorParameter) AcceptsValue(raw string) bool {
	return len(splitList(raw)) > 0
}

func (h *ActorParameter) Process(_ context.Context, _ Session, _, value string, q *queryir.Query) (Pending, error) {
	var ids []any
	var names []string
	for _, v := range splitList(value) {
		if id, ok := record.ParsePrincipal(v); ok {
			ids = append(ids, id)
			continue
		}
		names = append(names, v)
	}
	if len(names) == 0 {
		q.Merge(actorCondition(ids), mergeActors)
		return nil, nil
	}
	if h.Identity == nil {
		return nil, fmt.Errorf("no identity service to resolve %q", names[0])
	}
	return func(ctx context.Context) error {
		for _, name := range names {
			id, err := h.Identity.ResolveNameToID(ctx, name)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		q.Merge(actorCondition(ids), mergeActors)
		return nil
	}, nil
}

func actorCondition(ids []any) queryir.Condition {
	if len(ids) == 1 {
		return queryir.Eq(queryir.FieldActor, ids[0])
	}
	return queryir.In(queryir.FieldActor, ids...)
}

func mergeActors(old, next queryir.Condition) queryir.Condition {
	seen := make(map[any]bool)
	var ids []any
	for _, c := range []queryir.Condition{old, next} {
		for _, v := range conditionValues(c) {
			if !seen[v] {
				seen[v] = true
				ids = append(ids, v)
			}
		}
	}
	return actorCondition(ids)
}

func conditionValues(c queryir.Condition) []any {
	fc, ok := c.(queryir.FieldCondition)
	if !ok {
		return nil
	}
	if fc.Match == queryir.Equals {
		return []any{fc.Value}
	}
	return fc.Values
}

// RadiusParameter limits results to a cube around the requesting principal.
// "global" lifts the default radius instead. Principals without a location
// have neither, so every r: token from them is rejected.
type RadiusParameter struct {
	Max int
}

func (h *RadiusParameter) Aliases() []string                       { return []string{"r", "radius"} }
func (h *RadiusParameter) AcceptsSource(p identity.Principal) bool { return p.Located() }

func (h *RadiusParameter) AcceptsValue(raw string) bool {
	if strings.EqualFold(raw, "global") {
		return true
	}
	n, err := strconv.Atoi(raw)
	return err == nil && n >= 0 && n <= h.Max
}

func (h *RadiusParameter) Process(_ context.Context, s Session, alias, value string, q *queryir.Query) (Pending, error) {
	if strings.EqualFold(value, "global") {
		s.MarkGlobal()
		q.RemoveCondition(queryir.PathLocation)
		return nil, nil
	}
	n, _ := strconv.Atoi(value)
	q.AddCondition(queryir.FromLocationRadius(s.Principal().Location, n))
	return nil, nil
}

// WorldParameter matches a world name.
type WorldParameter struct{}

func (WorldParameter) Aliases() []string                     { return []string{"w", "world"} }
func (WorldParameter) AcceptsSource(identity.Principal) bool { return true }
func (WorldParameter) AcceptsValue(raw string) bool          { return raw != "" }

func (WorldParameter) Process(_ context.Context, _ Session, _, value string, q *queryir.Query) (Pending, error) {
	q.AddCondition(queryir.Eq(queryir.FieldWorld, value))
	return nil, nil
}

// TimeParameter bounds the timestamp relative to the session clock. since
// and before on one query combine into a single AND group.
type TimeParameter struct {
	Names []string
	Match queryir.MatchRule
}

func (h *TimeParameter) Aliases() []string                     { return h.Names }
func (h *TimeParameter) AcceptsSource(identity.Principal) bool { return true }

func (h *TimeParameter) AcceptsValue(raw string) bool {
	_, err := ParseDuration(raw)
	return err == nil
}

func (h *TimeParameter) Process(_ context.Context, s Session, _, value string, q *queryir.Query) (Pending, error) {
	d, err := ParseDuration(value)
	if err != nil {
		return nil, err
	}
	cond := queryir.FieldCondition{
		Field: queryir.FieldTimestamp,
		Match: h.Match,
		Value: s.Now().Add(-d),
	}
	q.Merge(cond, mergeTimeBounds)
	return nil, nil
}

// mergeTimeBounds keeps at most one bound per match rule; a newer bound of
// the same rule replaces the older one.
func mergeTimeBounds(old, next queryir.Condition) queryir.Condition {
	nf := next.(queryir.FieldCondition)
	var bounds []queryir.Condition
	switch o := old.(type) {
	case queryir.FieldCondition:
		bounds = []queryir.Condition{o}
	case queryir.Group:
		bounds = o.Children
	}
	kept := make([]queryir.Condition, 0, len(bounds)+1)
	for _, b := range bounds {
		if bf, ok := b.(queryir.FieldCondition); ok && bf.Match == nf.Match {
			continue
		}
		kept = append(kept, b)
	}
	kept = append(kept, nf)
	if len(kept) == 1 {
		return nf
	}
	return queryir.AllOf(queryir.FieldTimestamp, kept...)
}

// IDParameter selects one record by id.
type IDParameter struct{}

func (IDParameter) Aliases() []string                     { return []string{"id"} }
func (IDParameter) AcceptsSource(identity.Principal) bool { return true }

func (IDParameter) AcceptsValue(raw string) bool {
	_, err := uuid.Parse(raw)
	return err == nil
}

func (IDParameter) Process(_ context.Context, _ Session, _, value string, q *queryir.Query) (Pending, error) {
	id, err := uuid.Parse(value)
	if err != nil {
		return nil, err
	}
	q.AddCondition(queryir.Eq(queryir.FieldID, id.String()))
	return nil, nil
}

// BoolFlag sets one session flag. It takes no value.
type BoolFlag struct {
	Flag    queryir.Flags
	Aliases []string
}

func (f *BoolFlag) Names() []string { return f.Aliases }

func (f *BoolFlag) AcceptsValue(raw string) bool {
	return raw == ""
}

func (f *BoolFlag) Process(_ context.Context, s Session, _, _ string) (Pending, error) {
	s.SetFlag(f.Flag)
	return nil, nil
}

// OrderFlag overrides the sort order: -order=asc or -order=desc.
type OrderFlag struct{}

func (OrderFlag) Names() []string { return []string{"order"} }

func (OrderFlag) AcceptsValue(raw string) bool {
	_, err := queryir.ParseSort(raw)
	return err == nil
}

func (OrderFlag) Process(_ context.Context, s Session, _, value string) (Pending, error) {
	sort, err := queryir.ParseSort(value)
	if err != nil {
		return nil, err
	}
	s.SetSort(sort)
	return nil, nil
}

// LimitFlag sets the page size: -per-page=N or -limit=N.
type LimitFlag struct {
	Max int
}

func (f *LimitFlag) Names() []string { return []string{"per-page", "limit"} }

func (f *LimitFlag) AcceptsValue(raw string) bool {
	n, err := strconv.Atoi(raw)
	return err == nil && n > 0 && n <= f.Max
}

func (f *LimitFlag) Process(_ context.Context, s Session, _, value string) (Pending, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return nil, err
	}
	s.SetLimit(n)
	return nil, nil
}
