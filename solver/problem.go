// Package solver contains the load-balancing optimisation engines: the
// penalised successive-convex-approximation user association solver, the
// Gibbs-sampling potential-game drone positioning solver, the alternating
// air-ground coordinator, and the cooperative (Shapley), auction (VCG) and
// Stackelberg mechanisms.
//
// Every solver consumes an immutable Problem snapshot and returns a result
// value; no solver mutates the caller's stations or users. Stochastic
// solvers take an explicit seed so runs are reproducible.
package solver

import (
	"errors"

	"github.com/skyfieldworks/airground-lb/core"
	"github.com/skyfieldworks/airground-lb/model"
)

// Problem is the read-only snapshot of network state a solver call operates
// on. Station and user entities are resolved into value snapshots once, at
// construction, so concurrent solver calls on separate Problems are safe.
type Problem struct {
	Stations []core.StationInfo
	Users    []core.UserInfo
	Policy   core.FairnessPolicy
	Load     *core.LoadModel
}

// NewProblem snapshots the given entities. The load model defaults to one
// over ChannelParams{} when nil.
func NewProblem(stations []model.Station, users []*model.User, policy core.FairnessPolicy, load *core.LoadModel) (*Problem, error) {
	if len(stations) == 0 {
		return nil, errors.New("solver: problem needs at least one station")
	}
	if load == nil {
		load = core.NewLoadModel(core.NewRateEvaluator(core.ChannelParams{}), 0)
	}
	p := &Problem{
		Stations: make([]core.StationInfo, len(stations)),
		Users:    make([]core.UserInfo, len(users)),
		Policy:   policy,
		Load:     load,
	}
	for j, s := range stations {
		p.Stations[j] = s.Snapshot()
	}
	for i, u := range users {
		p.Users[i] = u.Snapshot()
	}
	return p, nil
}

// NewProblemFromSnapshots wraps already-resolved snapshots, copying the
// slices so the caller cannot alias solver state.
func NewProblemFromSnapshots(stations []core.StationInfo, users []core.UserInfo, policy core.FairnessPolicy, load *core.LoadModel) (*Problem, error) {
	if len(stations) == 0 {
		return nil, errors.New("solver: problem needs at least one station")
	}
	if load == nil {
		load = core.NewLoadModel(core.NewRateEvaluator(core.ChannelParams{}), 0)
	}
	p := &Problem{
		Stations: append([]core.StationInfo(nil), stations...),
		Users:    append([]core.UserInfo(nil), users...),
		Policy:   policy,
		Load:     load,
	}
	return p, nil
}

// WithStationPosition returns a shallow copy of the problem with station j
// moved to pos. The station slice is copied; everything else is shared.
func (p *Problem) WithStationPosition(j int, pos core.Position3D) *Problem {
	stations := append([]core.StationInfo(nil), p.Stations...)
	stations[j] = stations[j].At(pos)
	out := *p
	out.Stations = stations
	return &out
}

// RateMatrix computes the achievable rate of every (user, station) pair at
// the problem's current positions.
func (p *Problem) RateMatrix() [][]float64 {
	return p.Load.RateMatrix(p.Stations, p.Users)
}

// DroneIndices returns the indices of the movable (drone) stations.
func (p *Problem) DroneIndices() []int {
	var drones []int
	for j, s := range p.Stations {
		if s.Kind == core.StationKindDrone {
			drones = append(drones, j)
		}
	}
	return drones
}

// InRangeStations returns the station indices that cover user i.
func (p *Problem) InRangeStations(i int) []int {
	var in []int
	for j, s := range p.Stations {
		if s.InRange(p.Users[i].Pos) {
			in = append(in, j)
		}
	}
	return in
}

// nearestInRangeStation returns the closest covering station for a user
// position, or -1 when no station covers it.
func nearestInRangeStation(stations []core.StationInfo, pos core.Position3D) int {
	best := -1
	bestDist := 0.0
	for j, s := range stations {
		if !s.InRange(pos) {
			continue
		}
		d := s.Pos.DistanceTo(pos)
		if best < 0 || d < bestDist {
			best, bestDist = j, d
		}
	}
	return best
}
