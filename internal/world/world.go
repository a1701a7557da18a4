// Package world is the seam between the actionable engine and the host
// simulation.
//
// The host world is not safe for concurrent mutation. Every read-modify-write
// against it goes through an Executor, which runs submitted functions one at
// a time on a single owning goroutine and hands results back as futures.
package world

import (
	"fmt"

	"github.com/roach88/chronicle/internal/record"
)

// World is the host mutation API. Implementations are only called from the
// executor goroutine.
type World interface {
	ReadSnapshot(loc record.Location) (Snapshot, error)
	// ApplySnapshot writes s at loc. It reports false when the host refuses
	// the position, for example an unloaded chunk or an unknown world.
	ApplySnapshot(loc record.Location, s Snapshot) (bool, error)
}

// CubeScanner is implemented by worlds that can list their occupied positions
// cheaply. The cube spans radius blocks on each side of center.
type CubeScanner interface {
	ScanCube(center record.Location, radius int) []record.Location
}

// Cube returns every position of the cube around center, for worlds that
// cannot scan.
func Cube(center record.Location, radius int) []record.Location {
	if radius < 0 {
		return nil
	}
	side := 2*radius + 1
	out := make([]record.Location, 0, side*side*side)
	for x := center.X - radius; x <= center.X+radius; x++ {
		for y := center.Y - radius; y <= center.Y+radius; y++ {
			for z := center.Z - radius; z <= center.Z+radius; z++ {
				out = append(out, record.Location{World: center.World, X: x, Y: y, Z: z})
			}
		}
	}
	return out
}

// Air is the empty block.
const Air = "air"

// Snapshot is the full state of one block position.
type Snapshot struct {
	Block      string
	Properties map[string]string
	// Entity holds block-entity data such as container contents. Coordinates
	// are re-embedded by At before the snapshot is applied.
	Entity map[string]any
}

// Block returns a snapshot of a plain block with no state.
func Block(id string) Snapshot {
	return Snapshot{Block: id}
}

// IsAir reports whether the snapshot is empty space.
func (s Snapshot) IsAir() bool {
	return s.Block == "" || s.Block == Air
}

// Equal compares block id, properties and entity data.
func (s Snapshot) Equal(o Snapshot) bool {
	if s.IsAir() || o.IsAir() {
		return s.IsAir() && o.IsAir()
	}
	if s.Block != o.Block || len(s.Properties) != len(o.Properties) {
		return false
	}
	for k, v := range s.Properties {
		if o.Properties[k] != v {
			return false
		}
	}
	a, errA := entityKey(s.Entity)
	b, errB := entityKey(o.Entity)
	return errA == nil && errB == nil && a == b
}

func entityKey(m map[string]any) (string, error) {
	if len(m) == 0 {
		return "", nil
	}
	b, err := record.MarshalPayload(record.Payload(stripCoords(m)))
	return string(b), err
}

// String renders the block id with its properties, e.g. "oak_stairs[facing=north]".
func (s Snapshot) String() string {
	if s.IsAir() {
		return Air
	}
	if len(s.Properties) == 0 {
		return s.Block
	}
	b, _ := record.MarshalPayload(record.Payload(toAnyMap(s.Properties)))
	return s.Block + string(b)
}

// At returns a copy of s with the position embedded into its entity data and
// every nested entity compound, which is the shape the mutation API expects.
func (s Snapshot) At(loc record.Location) Snapshot {
	if s.Entity == nil {
		return s
	}
	out := s
	out.Entity = embedCoords(s.Entity, loc)
	return out
}

func embedCoords(m map[string]any, loc record.Location) map[string]any {
	out := make(map[string]any, len(m)+3)
	for k, v := range m {
		switch child := v.(type) {
		case map[string]any:
			out[k] = embedCoords(child, loc)
		case []any:
			items := make([]any, len(child))
			for i, item := range child {
				if nested, ok := item.(map[string]any); ok {
					items[i] = embedCoords(nested, loc)
				} else {
					items[i] = item
				}
			}
			out[k] = items
		default:
			out[k] = v
		}
	}
	out["x"], out["y"], out["z"] = int64(loc.X), int64(loc.Y), int64(loc.Z)
	return out
}

func stripCoords(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if k == "x" || k == "y" || k == "z" {
			continue
		}
		switch child := v.(type) {
		case map[string]any:
			out[k] = stripCoords(child)
		case []any:
			items := make([]any, len(child))
			for i, item := range child {
				if nested, ok := item.(map[string]any); ok {
					items[i] = stripCoords(nested)
				} else {
					items[i] = item
				}
			}
			out[k] = items
		default:
			out[k] = v
		}
	}
	return out
}

// Payload returns the snapshot as a record payload object.
func (s Snapshot) Payload() map[string]any {
	block := s.Block
	if s.IsAir() {
		block = Air
	}
	m := map[string]any{"block": block}
	if len(s.Properties) > 0 {
		m["properties"] = toAnyMap(s.Properties)
	}
	if len(s.Entity) > 0 {
		m["entity"] = stripCoords(s.Entity)
	}
	return m
}

// SnapshotFromPayload reverses Payload.
func SnapshotFromPayload(m map[string]any) (Snapshot, error) {
	block, ok := m["block"].(string)
	if !ok || block == "" {
		return Snapshot{}, fmt.Errorf("snapshot: missing block id")
	}
	s := Snapshot{Block: block}

	if raw, ok := m["properties"]; ok {
		props, ok := raw.(map[string]any)
		if !ok {
			return Snapshot{}, fmt.Errorf("snapshot: properties is %T", raw)
		}
		s.Properties = make(map[string]string, len(props))
		for k, v := range props {
			str, ok := v.(string)
			if !ok {
				return Snapshot{}, fmt.Errorf("snapshot: property %q is %T", k, v)
			}
			s.Properties[k] = str
		}
	}
	if raw, ok := m["entity"]; ok {
		entity, ok := raw.(map[string]any)
		if !ok {
			return Snapshot{}, fmt.Errorf("snapshot: entity is %T", raw)
		}
		s.Entity = entity
	}
	return s, nil
}

func toAnyMap(m map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
