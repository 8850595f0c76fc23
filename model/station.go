// Package model holds the externally-owned network entities the load
// balancing engine reads: base stations, mobile users and the drone
// deployment region. Solvers never mutate these; they work on value
// snapshots taken at the start of each call.
package model

import "github.com/skyfieldworks/airground-lb/core"

// Station is the uniform capability set shared by both base-station
// variants. The variant tag is resolved once, in Snapshot, so the numeric
// layers never branch on the concrete type.
type Station interface {
	ID() string
	Position() core.Position3D
	BandwidthHz() float64
	MaxUserCapacity() int
	TransmitPowerW() float64
	CoverageRadiusM() float64
	IsInRange(u *User) bool

	// Snapshot resolves the station into the read-only form consumed by
	// the core and solver packages.
	Snapshot() core.StationInfo
}

// DroneStation is an aerial base station. Its position is owned by the
// caller; the engine proposes new positions in results but never writes
// them back.
type DroneStation struct {
	StationID      string
	Pos            core.Position3D
	Bandwidth      float64 // Hz
	Capacity       int
	PowerW         float64
	CoverageRadius float64 // metres; 0 = unlimited

	MinAltitudeM float64
	MaxAltitudeM float64

	// EnergyJ is the remaining battery energy. Drained by the external
	// mobility simulation, read here for completeness only.
	EnergyJ float64
}

func (d *DroneStation) ID() string { return d.StationID }

func (d *DroneStation) Position() core.Position3D { return d.Pos }

func (d *DroneStation) BandwidthHz() float64 { return d.Bandwidth }

func (d *DroneStation) MaxUserCapacity() int { return d.Capacity }

func (d *DroneStation) TransmitPowerW() float64 { return d.PowerW }

func (d *DroneStation) CoverageRadiusM() float64 { return d.CoverageRadius }

func (d *DroneStation) IsInRange(u *User) bool {
	return d.Snapshot().InRange(u.Pos)
}

func (d *DroneStation) Snapshot() core.StationInfo {
	return core.StationInfo{
		ID:           d.StationID,
		Kind:         core.StationKindDrone,
		Pos:          d.Pos,
		BandwidthHz:  d.Bandwidth,
		PowerW:       d.PowerW,
		Capacity:     d.Capacity,
		RangeM:       d.CoverageRadius,
		MinAltitudeM: d.MinAltitudeM,
		MaxAltitudeM: d.MaxAltitudeM,
	}
}

// GroundStation is a fixed terrestrial base station.
type GroundStation struct {
	StationID      string
	Pos            core.Position3D
	Bandwidth      float64 // Hz
	Capacity       int
	PowerW         float64 // fixed transmission power
	CoverageRadius float64 // metres; 0 = unlimited
}

func (g *GroundStation) ID() string { return g.StationID }

func (g *GroundStation) Position() core.Position3D { return g.Pos }

func (g *GroundStation) BandwidthHz() float64 { return g.Bandwidth }

func (g *GroundStation) MaxUserCapacity() int { return g.Capacity }

func (g *GroundStation) TransmitPowerW() float64 { return g.PowerW }

func (g *GroundStation) CoverageRadiusM() float64 { return g.CoverageRadius }

func (g *GroundStation) IsInRange(u *User) bool {
	return g.Snapshot().InRange(u.Pos)
}

func (g *GroundStation) Snapshot() core.StationInfo {
	return core.StationInfo{
		ID:          g.StationID,
		Kind:        core.StationKindGround,
		Pos:         g.Pos,
		BandwidthHz: g.Bandwidth,
		PowerW:      g.PowerW,
		Capacity:    g.Capacity,
		RangeM:      g.CoverageRadius,
	}
}
