package core

// StationKind distinguishes the two base-station variants once, at the
// snapshot boundary, so the numeric layers never type-switch on entities.
type StationKind int

const (
	StationKindGround StationKind = iota
	StationKindDrone
)

func (k StationKind) String() string {
	switch k {
	case StationKindDrone:
		return "drone"
	default:
		return "ground"
	}
}

// StationInfo is a read-only snapshot of a base station, resolved from the
// owning entity at the start of a solver call. Solvers evaluate candidate
// drone positions by copying this value and overriding Pos; the entity
// itself is never touched.
type StationInfo struct {
	ID          string
	Kind        StationKind
	Pos         Position3D
	BandwidthHz float64
	PowerW      float64
	Capacity    int
	// RangeM is the coverage radius in metres; 0 or negative means
	// unlimited range.
	RangeM float64

	// Drone-only deployment limits; zero for ground stations.
	MinAltitudeM float64
	MaxAltitudeM float64
}

// InRange reports whether a point lies within the station's coverage radius.
func (s StationInfo) InRange(p Position3D) bool {
	if s.RangeM <= 0 {
		return true
	}
	return s.Pos.DistanceTo(p) <= s.RangeM
}

// At returns a copy of the snapshot with the position replaced. Used for
// candidate-position cost evaluation.
func (s StationInfo) At(pos Position3D) StationInfo {
	s.Pos = pos
	return s
}

// UserInfo is a read-only snapshot of a mobile user.
type UserInfo struct {
	ID        string
	Pos       Position3D
	DemandBps float64

	// QoS thresholds. MaxLatencyMs is carried for diagnostics;
	// MinThroughputBps participates in post-hoc validation.
	MaxLatencyMs     float64
	MinThroughputBps float64
}
