package queryir

// Field paths understood by every compiler.
const (
	FieldID        = "id"
	FieldEventName = "event_name"
	FieldTimestamp = "timestamp"
	FieldWorld     = "world"
	FieldX         = "x"
	FieldY         = "y"
	FieldZ         = "z"
	FieldActor     = "actor"
	FieldCause     = "cause"
	FieldTarget    = "target"
)

// PathLocation keys the world + coordinate group built by FromLocation and
// FromLocationRadius.
const PathLocation = "location"

var knownFields = map[string]bool{
	FieldID:        true,
	FieldEventName: true,
	FieldTimestamp: true,
	FieldWorld:     true,
	FieldX:         true,
	FieldY:         true,
	FieldZ:         true,
	FieldActor:     true,
	FieldCause:     true,
	FieldTarget:    true,
}

// IsKnownField reports whether f is a field path the compilers can render.
func IsKnownField(f string) bool {
	return knownFields[f]
}

// GroupFields are the identity fields an aggregate query groups by.
var GroupFields = []string{FieldEventName, FieldTarget, FieldActor, FieldCause}
