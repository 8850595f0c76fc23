package model

import (
	"math/rand"

	"github.com/skyfieldworks/airground-lb/core"
)

// DeploymentRegion is the axis-aligned box drones may occupy:
// [XMin,XMax] × [YMin,YMax] × [HMin,HMax], metres.
type DeploymentRegion struct {
	XMin, XMax float64
	YMin, YMax float64
	HMin, HMax float64
}

// Contains reports whether the position lies inside the box (inclusive).
func (r DeploymentRegion) Contains(p core.Position3D) bool {
	return p.X >= r.XMin && p.X <= r.XMax &&
		p.Y >= r.YMin && p.Y <= r.YMax &&
		p.Z >= r.HMin && p.Z <= r.HMax
}

// Clamp projects the position onto the box.
func (r DeploymentRegion) Clamp(p core.Position3D) core.Position3D {
	return core.Position3D{
		X: clamp(p.X, r.XMin, r.XMax),
		Y: clamp(p.Y, r.YMin, r.YMax),
		Z: clamp(p.Z, r.HMin, r.HMax),
	}
}

// RandomPosition draws a uniform position inside the box from the supplied
// generator. Callers pass an explicitly seeded *rand.Rand so placements are
// reproducible.
func (r DeploymentRegion) RandomPosition(rng *rand.Rand) core.Position3D {
	return core.Position3D{
		X: r.XMin + rng.Float64()*(r.XMax-r.XMin),
		Y: r.YMin + rng.Float64()*(r.YMax-r.YMin),
		Z: r.HMin + rng.Float64()*(r.HMax-r.HMin),
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
