package model

import (
	"math/rand"
	"testing"

	"github.com/skyfieldworks/airground-lb/core"
)

func TestDroneStation_Snapshot(t *testing.T) {
	d := &DroneStation{
		StationID:      "uav-0",
		Pos:            core.Position3D{X: 10, Y: 20, Z: 90},
		Bandwidth:      10e6,
		Capacity:       12,
		PowerW:         5,
		CoverageRadius: 600,
		MinAltitudeM:   60,
		MaxAltitudeM:   150,
	}

	snap := d.Snapshot()
	if snap.Kind != core.StationKindDrone {
		t.Errorf("Kind = %v, want drone", snap.Kind)
	}
	if snap.ID != "uav-0" || snap.RangeM != 600 || snap.Capacity != 12 {
		t.Errorf("snapshot = %+v", snap)
	}
	if snap.MinAltitudeM != 60 || snap.MaxAltitudeM != 150 {
		t.Errorf("altitude limits = [%v, %v], want [60, 150]", snap.MinAltitudeM, snap.MaxAltitudeM)
	}
}

func TestGroundStation_SnapshotAndRange(t *testing.T) {
	g := &GroundStation{
		StationID:      "gs-0",
		Pos:            core.Position3D{Z: 25},
		Bandwidth:      20e6,
		Capacity:       30,
		PowerW:         40,
		CoverageRadius: 1000,
	}

	if g.Snapshot().Kind != core.StationKindGround {
		t.Errorf("Kind = %v, want ground", g.Snapshot().Kind)
	}
	if !g.IsInRange(&User{Pos: core.Position3D{X: 500}}) {
		t.Errorf("user at 500 m reported out of a 1000 m footprint")
	}
	if g.IsInRange(&User{Pos: core.Position3D{X: 5000}}) {
		t.Errorf("user at 5 km reported inside a 1000 m footprint")
	}

	// Zero radius means unlimited coverage.
	g.CoverageRadius = 0
	if !g.IsInRange(&User{Pos: core.Position3D{X: 1e6}}) {
		t.Errorf("unlimited-range station excluded a user")
	}
}

func TestDeploymentRegion_ContainsAndClamp(t *testing.T) {
	r := DeploymentRegion{XMin: 0, XMax: 100, YMin: 0, YMax: 100, HMin: 50, HMax: 150}

	if !r.Contains(core.Position3D{X: 50, Y: 50, Z: 100}) {
		t.Errorf("interior point reported outside")
	}
	if r.Contains(core.Position3D{X: 50, Y: 50, Z: 10}) {
		t.Errorf("point below the altitude floor reported inside")
	}

	got := r.Clamp(core.Position3D{X: -10, Y: 120, Z: 200})
	want := core.Position3D{X: 0, Y: 100, Z: 150}
	if got != want {
		t.Errorf("Clamp = %+v, want %+v", got, want)
	}
}

func TestDeploymentRegion_RandomPositionStaysInside(t *testing.T) {
	r := DeploymentRegion{XMin: 10, XMax: 20, YMin: -5, YMax: 5, HMin: 60, HMax: 61}
	rng := rand.New(rand.NewSource(4))

	for i := 0; i < 200; i++ {
		if p := r.RandomPosition(rng); !r.Contains(p) {
			t.Fatalf("RandomPosition left the box: %+v", p)
		}
	}
}
