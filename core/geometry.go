package core

import "math"

// Position3D is a point in a local east-north-up frame, in metres.
// Z is altitude above ground level.
type Position3D struct {
	X, Y, Z float64
}

// DistanceTo returns the straight-line distance between two points.
func (p Position3D) DistanceTo(other Position3D) float64 {
	dx := p.X - other.X
	dy := p.Y - other.Y
	dz := p.Z - other.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// HorizontalDistanceTo returns the ground-projected distance between two
// points, ignoring altitude.
func (p Position3D) HorizontalDistanceTo(other Position3D) float64 {
	dx := p.X - other.X
	dy := p.Y - other.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Add returns p shifted by (dx, dy, dz).
func (p Position3D) Add(dx, dy, dz float64) Position3D {
	return Position3D{X: p.X + dx, Y: p.Y + dy, Z: p.Z + dz}
}

// ElevationAngleDeg returns the elevation angle of the target as seen from
// the observer, in degrees. 0° = level with the observer, 90° = overhead.
//
// The angle is defined via atan2, which is well-behaved for a target
// directly overhead (horizontal distance 0). A target co-located with the
// observer is treated as overhead so that downstream LoS probabilities see
// the most favourable geometry rather than NaN.
func ElevationAngleDeg(observer, target Position3D) float64 {
	dh := observer.HorizontalDistanceTo(target)
	dz := target.Z - observer.Z
	if dh == 0 && dz == 0 {
		return 90
	}
	return math.Atan2(dz, dh) * 180.0 / math.Pi
}
