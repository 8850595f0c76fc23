package solver

import (
	"testing"

	"github.com/skyfieldworks/airground-lb/core"
	"github.com/skyfieldworks/airground-lb/model"
)

func TestNewProblem_SnapshotsEntities(t *testing.T) {
	drone := &model.DroneStation{
		StationID:      "uav-0",
		Pos:            core.Position3D{X: 100, Y: 200, Z: 90},
		Bandwidth:      10e6,
		Capacity:       8,
		PowerW:         5,
		CoverageRadius: 600,
		MinAltitudeM:   60,
		MaxAltitudeM:   150,
	}
	user := &model.User{
		UserID:   "ue-0",
		Pos:      core.Position3D{X: 150, Y: 180},
		DataRate: 1e6,
	}
	p, err := NewProblem([]model.Station{drone}, []*model.User{user}, core.PolicyMinSum, nil)
	if err != nil {
		t.Fatal(err)
	}

	st := p.Stations[0]
	if st.ID != "uav-0" || st.Kind != core.StationKindDrone {
		t.Errorf("snapshot = %+v, want drone uav-0", st)
	}
	if st.RangeM != 600 || st.Capacity != 8 {
		t.Errorf("snapshot coverage/capacity = %v/%d", st.RangeM, st.Capacity)
	}

	// Mutating the entity after construction must not leak into the
	// snapshot.
	drone.Pos.X = 9999
	if p.Stations[0].Pos.X != 100 {
		t.Errorf("snapshot aliases the entity: %+v", p.Stations[0].Pos)
	}
}

func TestNewProblem_RequiresStations(t *testing.T) {
	if _, err := NewProblem(nil, nil, core.PolicyMinSum, nil); err == nil {
		t.Fatal("expected an error for an empty station set")
	}
}

func TestWithStationPosition_CopyOnWrite(t *testing.T) {
	p := twoCellProblem(core.PolicyProportionalFair)
	moved := p.WithStationPosition(0, core.Position3D{X: 1, Y: 2, Z: 3})

	if moved == p {
		t.Fatal("WithStationPosition returned the receiver")
	}
	if moved.Stations[0].Pos != (core.Position3D{X: 1, Y: 2, Z: 3}) {
		t.Errorf("moved position = %+v", moved.Stations[0].Pos)
	}
	if p.Stations[0].Pos == moved.Stations[0].Pos {
		t.Errorf("original problem was mutated")
	}
}

func TestDroneIndices(t *testing.T) {
	stations := []core.StationInfo{
		groundAt("gs-0", 0, 0, 500, 5),
		droneAt("uav-0", core.Position3D{X: 100, Z: 100}, 500, 5),
		groundAt("gs-1", 900, 0, 500, 5),
		droneAt("uav-1", core.Position3D{X: 800, Z: 100}, 500, 5),
	}
	p := mustProblem(stations, nil, core.PolicyMinSum)

	got := p.DroneIndices()
	if len(got) != 2 || got[0] != 1 || got[1] != 3 {
		t.Errorf("DroneIndices = %v, want [1 3]", got)
	}
}

func TestInRangeStations(t *testing.T) {
	p := twoCellProblem(core.PolicyProportionalFair)

	if got := p.InRangeStations(0); len(got) != 1 || got[0] != 0 {
		t.Errorf("user 0 in-range set = %v, want [0]", got)
	}
	if got := p.InRangeStations(2); len(got) != 1 || got[0] != 1 {
		t.Errorf("user 2 in-range set = %v, want [1]", got)
	}
}
