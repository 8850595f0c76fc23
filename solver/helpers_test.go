package solver

import (
	"math"

	"github.com/skyfieldworks/airground-lb/core"
)

// Test fixtures are built directly from snapshots so the scenarios are
// exact: station coverage and user placement control which associations
// are even possible, independent of the entity layer.

func groundAt(id string, x, y, rangeM float64, capacity int) core.StationInfo {
	return core.StationInfo{
		ID:          id,
		Kind:        core.StationKindGround,
		Pos:         core.Position3D{X: x, Y: y, Z: 25},
		BandwidthHz: 20e6,
		PowerW:      40,
		Capacity:    capacity,
		RangeM:      rangeM,
	}
}

func droneAt(id string, pos core.Position3D, rangeM float64, capacity int) core.StationInfo {
	return core.StationInfo{
		ID:           id,
		Kind:         core.StationKindDrone,
		Pos:          pos,
		BandwidthHz:  10e6,
		PowerW:       5,
		Capacity:     capacity,
		RangeM:       rangeM,
		MinAltitudeM: 60,
		MaxAltitudeM: 150,
	}
}

func userAt(id string, x, y, demandBps float64) core.UserInfo {
	return core.UserInfo{
		ID:        id,
		Pos:       core.Position3D{X: x, Y: y},
		DemandBps: demandBps,
	}
}

func mustProblem(stations []core.StationInfo, users []core.UserInfo, policy core.FairnessPolicy) *Problem {
	p, err := NewProblemFromSnapshots(stations, users, policy, nil)
	if err != nil {
		panic(err)
	}
	return p
}

// twoCellProblem is two well-separated ground stations, each covering only
// its own user cluster. Every sensible association is forced, which makes
// assertions exact.
func twoCellProblem(policy core.FairnessPolicy) *Problem {
	stations := []core.StationInfo{
		groundAt("gs-0", 0, 0, 500, 5),
		groundAt("gs-1", 2000, 0, 500, 5),
	}
	users := []core.UserInfo{
		userAt("ue-0", 50, 0, 2e6),
		userAt("ue-1", -60, 30, 2e6),
		userAt("ue-2", 2050, 0, 2e6),
	}
	return mustProblem(stations, users, policy)
}

func assignedUsers(b core.BinaryAssignment, j int) int {
	n := 0
	for _, s := range b {
		if s == j {
			n++
		}
	}
	return n
}

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}
