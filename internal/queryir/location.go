package queryir

import "github.com/roach88/chronicle/internal/record"

// FromLocation matches one exact block position.
func FromLocation(loc record.Location) Group {
	return AllOf(PathLocation,
		Eq(FieldWorld, loc.World),
		Eq(FieldX, loc.X),
		Eq(FieldY, loc.Y),
		Eq(FieldZ, loc.Z),
	)
}

// FromLocationRadius matches every position within radius blocks of loc on
// each axis, inclusive. A radius of zero or less degrades to FromLocation.
func FromLocationRadius(loc record.Location, radius int) Group {
	if radius <= 0 {
		return FromLocation(loc)
	}
	// BETWEEN is exclusive; widen by one so the edge blocks match.
	r := radius + 1
	return AllOf(PathLocation,
		Eq(FieldWorld, loc.World),
		InRange(FieldX, loc.X-r, loc.X+r),
		InRange(FieldY, loc.Y-r, loc.Y+r),
		InRange(FieldZ, loc.Z-r, loc.Z+r),
	)
}
