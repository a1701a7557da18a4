package queryir

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// Sort orders results by timestamp.
type Sort int

const (
	Descending Sort = iota
	Ascending
)

func (s Sort) String() string {
	if s == Ascending {
		return "asc"
	}
	return "desc"
}

// ParseSort reads "asc" or "desc".
func ParseSort(s string) (Sort, error) {
	switch strings.ToLower(s) {
	case "asc", "ascending":
		return Ascending, nil
	case "desc", "descending":
		return Descending, nil
	}
	return Descending, fmt.Errorf("sort %q: want asc or desc", s)
}

// Query is a set of conditions keyed by field path, plus the aggregate mode,
// sort order and page size.
//
// Safe for concurrent use.
type Query struct {
	mu         sync.Mutex
	aggregate  bool
	sort       Sort
	limit      int
	conditions map[string]Condition
	order      []string
}

// NewQuery returns an empty aggregate query sorted newest first.
func NewQuery() *Query {
	return &Query{
		aggregate:  true,
		sort:       Descending,
		conditions: make(map[string]Condition),
	}
}

// AddCondition stores c under its path. It reports whether an earlier
// condition for the same path was replaced. A replaced condition keeps its
// original position in Conditions.
func (q *Query) AddCondition(c Condition) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	path := c.Path()
	_, replaced := q.conditions[path]
	if replaced {
		slog.Debug("condition replaced", "path", path)
	} else {
		q.order = append(q.order, path)
	}
	q.conditions[path] = c
	return replaced
}

// Merge stores c under its path, combining it with any condition already
// there. combine receives the stored condition and c and returns the
// condition to keep. The read and the write happen under one lock, so
// concurrent resolutions for the same path do not lose each other's values.
func (q *Query) Merge(c Condition, combine func(old, next Condition) Condition) {
	q.mu.Lock()
	defer q.mu.Unlock()

	path := c.Path()
	old, ok := q.conditions[path]
	if !ok {
		q.order = append(q.order, path)
		q.conditions[path] = c
		return
	}
	q.conditions[path] = combine(old, c)
}

// Condition returns the condition stored under path.
func (q *Query) Condition(path string) (Condition, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	c, ok := q.conditions[path]
	return c, ok
}

// RemoveCondition deletes the condition stored under path.
func (q *Query) RemoveCondition(path string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.conditions[path]; !ok {
		return false
	}
	delete(q.conditions, path)
	for i, p := range q.order {
		if p == path {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
	return true
}

// Conditions returns the conditions in insertion order.
func (q *Query) Conditions() []Condition {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Condition, 0, len(q.order))
	for _, p := range q.order {
		out = append(out, q.conditions[p])
	}
	return out
}

// Len returns the number of stored conditions.
func (q *Query) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.conditions)
}

func (q *Query) Aggregate() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.aggregate
}

func (q *Query) SetAggregate(v bool) {
	q.mu.Lock()
	q.aggregate = v
	q.mu.Unlock()
}

func (q *Query) Sort() Sort {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.sort
}

func (q *Query) SetSort(s Sort) {
	q.mu.Lock()
	q.sort = s
	q.mu.Unlock()
}

// Limit is the page size; zero means unlimited.
func (q *Query) Limit() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.limit
}

func (q *Query) SetLimit(n int) {
	q.mu.Lock()
	q.limit = n
	q.mu.Unlock()
}

// Grouped reports whether the query runs in aggregate mode once session
// flags are taken into account.
func (q *Query) Grouped(flags Flags) bool {
	return q.Aggregate() && !flags.Has(NoGroup)
}
