// Package result holds lookup results and resolves principal names for them.
package result

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/chronicle/internal/record"
)

// Kind tags which payload of a Result is populated.
type Kind int

const (
	// Aggregate results carry Count and Latest.
	Aggregate Kind = iota + 1
	// Complete results carry one stored record.
	Complete
)

func (k Kind) String() string {
	switch k {
	case Aggregate:
		return "aggregate"
	case Complete:
		return "complete"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Result is one row of a lookup.
//
// The envelope fields are shared by both kinds. Actor is the display form of
// whoever caused the event: a resolved principal name, the principal id when
// the name is unknown, or the free-text cause.
type Result struct {
	Kind      Kind
	EventName string
	Target    string
	Actor     string
	ActorID   uuid.UUID
	Cause     string

	// Aggregate
	Count  int64
	Latest time.Time

	// Complete
	ID        string
	Timestamp time.Time
	Location  record.Location
	Extra     record.Payload
}

// HasPrincipal reports whether a principal id caused the event.
func (r Result) HasPrincipal() bool {
	return r.ActorID != uuid.Nil
}

// Event rebuilds the stored record of a Complete result.
func (r Result) Event() record.Event {
	cause := r.Cause
	if r.HasPrincipal() {
		cause = r.ActorID.String()
	}
	return record.Event{
		ID:        r.ID,
		EventName: r.EventName,
		Timestamp: r.Timestamp,
		Location:  r.Location,
		Cause:     cause,
		Target:    r.Target,
		Extra:     r.Extra,
	}
}

// NewAggregate builds an aggregate result. actor is uuid.Nil for free-text
// causes.
func NewAggregate(eventName, target string, actor uuid.UUID, cause string, count int64, latest time.Time) Result {
	r := Result{
		Kind:      Aggregate,
		EventName: eventName,
		Target:    target,
		ActorID:   actor,
		Cause:     cause,
		Count:     count,
		Latest:    latest,
	}
	r.Actor = defaultActor(r)
	return r
}

// NewComplete builds a complete result from a stored record.
func NewComplete(e record.Event) Result {
	r := Result{
		Kind:      Complete,
		EventName: e.EventName,
		Target:    e.Target,
		ID:        e.ID,
		Timestamp: e.Timestamp,
		Location:  e.Location,
		Extra:     e.Extra,
	}
	if id, ok := e.PrincipalID(); ok {
		r.ActorID = id
	} else {
		r.Cause = e.Cause
	}
	r.Actor = defaultActor(r)
	return r
}

func defaultActor(r Result) string {
	if r.HasPrincipal() {
		return r.ActorID.String()
	}
	return r.Cause
}

// String renders a one-line summary.
func (r Result) String() string {
	switch r.Kind {
	case Aggregate:
		return fmt.Sprintf("%s %s %s x%d (%s)", r.Actor, r.EventName, r.Target, r.Count, r.Latest.UTC().Format(time.RFC3339))
	case Complete:
		return fmt.Sprintf("%s %s %s at %s (%s)", r.Actor, r.EventName, r.Target, r.Location, r.Timestamp.UTC().Format(time.RFC3339))
	default:
		return r.Kind.String()
	}
}
