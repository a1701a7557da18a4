package record

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Location is an integer block position inside a named world.
type Location struct {
	World string `json:"world"`
	X     int    `json:"x"`
	Y     int    `json:"y"`
	Z     int    `json:"z"`
}

// IsZero reports whether the location carries no world reference.
func (l Location) IsZero() bool {
	return l.World == ""
}

// String renders the location as "world:x,y,z", the form ParseLocation reads.
func (l Location) String() string {
	return fmt.Sprintf("%s:%d,%d,%d", l.World, l.X, l.Y, l.Z)
}

// ParseLocation parses "world:x,y,z".
func ParseLocation(s string) (Location, error) {
	world, coords, ok := strings.Cut(s, ":")
	if !ok || world == "" {
		return Location{}, fmt.Errorf("location %q: want world:x,y,z", s)
	}
	parts := strings.Split(coords, ",")
	if len(parts) != 3 {
		return Location{}, fmt.Errorf("location %q: want three coordinates", s)
	}
	var xyz [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return Location{}, fmt.Errorf("location %q: coordinate %d: %w", s, i, err)
		}
		xyz[i] = n
	}
	return Location{World: world, X: xyz[0], Y: xyz[1], Z: xyz[2]}, nil
}

// Event is one captured world mutation.
//
// Cause holds either a principal UUID (a player) or a free-text cause name
// such as "tnt" or "creeper". Storage keeps the two apart: principal ids go to
// a typed identifier column, free text goes to a text column.
type Event struct {
	ID        string
	EventName string
	Timestamp time.Time
	Location  Location
	Cause     string
	Target    string
	Extra     Payload
}

// PrincipalID returns the cause as a principal UUID, if it is one.
func (e Event) PrincipalID() (uuid.UUID, bool) {
	return ParsePrincipal(e.Cause)
}

// ParsePrincipal reports whether s is a principal UUID.
func ParsePrincipal(s string) (uuid.UUID, bool) {
	if len(s) != 36 {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
