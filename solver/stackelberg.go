package solver

import (
	"context"
	"errors"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/skyfieldworks/airground-lb/core"
	"github.com/skyfieldworks/airground-lb/internal/logging"
	"github.com/skyfieldworks/airground-lb/model"
)

// StackelbergConfig tunes the leader-follower game. Zero values fall back
// to the documented defaults.
type StackelbergConfig struct {
	// Region bounds the follower's candidate positions.
	Region model.DeploymentRegion

	// Rounds bounds the leader/follower alternation. Default 5.
	Rounds int
	// SearchStepM is the horizontal step of the follower's local grid
	// search, metres. Default 50.
	SearchStepM float64
	// VerticalRangeM is the altitude offset explored above and below the
	// current position. Default 20.
	VerticalRangeM float64
	// Tolerance is the objective-improvement threshold for early
	// termination. Default 1e-4.
	Tolerance float64

	PSCA PSCAConfig

	Logger logging.Logger
}

func (c StackelbergConfig) withDefaults() StackelbergConfig {
	if c.Rounds == 0 {
		c.Rounds = 5
	}
	if c.SearchStepM == 0 {
		c.SearchStepM = 50
	}
	if c.VerticalRangeM == 0 {
		c.VerticalRangeM = 20
	}
	if c.Tolerance == 0 {
		c.Tolerance = 1e-4
	}
	if c.Logger == nil {
		c.Logger = logging.Noop()
	}
	return c
}

// StackelbergResult is the outcome of one leader-follower solve.
type StackelbergResult struct {
	Positions  []core.Position3D
	Fractional core.FractionalAssignment
	Binary     core.BinaryAssignment
	Loads      []float64
	Objective  float64
	Rounds     int
	Converged  bool
}

// StackelbergSolver plays the ground network as leader and the drones as
// followers: each round associates users via P-SCA under the
// latency-optimal policy, then lets every drone locally search nearby grid
// positions for better coverage of its assigned users.
type StackelbergSolver struct {
	problem *Problem
	cfg     StackelbergConfig
}

// NewStackelbergSolver builds a solver over an immutable problem snapshot.
func NewStackelbergSolver(problem *Problem, cfg StackelbergConfig) (*StackelbergSolver, error) {
	if problem == nil {
		return nil, errors.New("solver: nil problem")
	}
	return &StackelbergSolver{problem: problem, cfg: cfg.withDefaults()}, nil
}

// Solve runs the bounded leader/follower alternation and a final
// association pass at the optimised positions.
func (s *StackelbergSolver) Solve(ctx context.Context) (*StackelbergResult, error) {
	cfg := s.cfg

	// The leader phase always optimises latency, whatever policy the
	// problem was built with.
	current := *s.problem
	current.Policy = core.PolicyLatencyOptimal
	p := &current

	prevObjective := math.Inf(1)
	rounds := 0
	converged := false

	for rounds < cfg.Rounds {
		rounds++

		psca, err := NewPSCASolver(p, cfg.PSCA)
		if err != nil {
			return nil, err
		}
		leader, err := psca.Solve(ctx)
		if err != nil {
			return nil, err
		}

		objective := leader.Objective
		moved := false
		for _, j := range p.DroneIndices() {
			if pos, ok := s.improveCoverage(p, j, leader.Binary); ok {
				p = p.WithStationPosition(j, pos)
				moved = true
			}
		}

		cfg.Logger.Debug(ctx, "stackelberg round",
			logging.Int("round", rounds),
			logging.Float64("objective", objective),
			logging.Bool("moved", moved))

		if !moved {
			converged = true
			break
		}
		if !math.IsInf(prevObjective, 1) && !math.IsInf(objective, 1) &&
			math.Abs(prevObjective-objective) < cfg.Tolerance {
			converged = true
			prevObjective = objective
			break
		}
		prevObjective = objective
	}

	// Final association against the optimised positions.
	psca, err := NewPSCASolver(p, cfg.PSCA)
	if err != nil {
		return nil, err
	}
	final, err := psca.Solve(ctx)
	if err != nil {
		return nil, err
	}

	res := &StackelbergResult{
		Positions:  make([]core.Position3D, len(p.Stations)),
		Fractional: final.Fractional,
		Binary:     final.Binary,
		Loads:      final.Loads,
		Objective:  final.Objective,
		Rounds:     rounds,
		Converged:  converged,
	}
	for j, st := range p.Stations {
		res.Positions[j] = st.Pos
	}
	return res, nil
}

// improveCoverage searches the drone's local candidate grid for a position
// with strictly better coverage of its assigned users, returning the best
// one and whether it improves on the current position.
func (s *StackelbergSolver) improveCoverage(p *Problem, j int, assignment core.BinaryAssignment) (core.Position3D, bool) {
	drone := p.Stations[j]
	var assigned []core.UserInfo
	for i, sj := range assignment {
		if sj == j {
			assigned = append(assigned, p.Users[i])
		}
	}
	if len(assigned) == 0 {
		return drone.Pos, false
	}

	bestPos := drone.Pos
	bestScore := s.coverageScore(drone, drone.Pos, assigned)
	improved := false
	for _, pos := range s.searchGrid(drone) {
		if score := s.coverageScore(drone, pos, assigned); score > bestScore {
			bestPos, bestScore = pos, score
			improved = true
		}
	}
	return bestPos, improved
}

// searchGrid is the 3×3 horizontal neighbourhood at three altitudes minus
// the current position, clamped to the deployment box and the drone's
// altitude limits.
func (s *StackelbergSolver) searchGrid(drone core.StationInfo) []core.Position3D {
	cfg := s.cfg
	var out []core.Position3D
	for _, dx := range []float64{-cfg.SearchStepM, 0, cfg.SearchStepM} {
		for _, dy := range []float64{-cfg.SearchStepM, 0, cfg.SearchStepM} {
			for _, dz := range []float64{-cfg.VerticalRangeM, 0, cfg.VerticalRangeM} {
				if dx == 0 && dy == 0 && dz == 0 {
					continue
				}
				pos := cfg.Region.Clamp(drone.Pos.Add(dx, dy, dz))
				if drone.MaxAltitudeM > drone.MinAltitudeM {
					if pos.Z < drone.MinAltitudeM {
						pos.Z = drone.MinAltitudeM
					}
					if pos.Z > drone.MaxAltitudeM {
						pos.Z = drone.MaxAltitudeM
					}
				}
				if pos != drone.Pos {
					out = append(out, pos)
				}
			}
		}
	}
	return out
}

// coverageScore is the mean of 1 − d/coverageRadius over the drone's
// assigned users; out-of-range users contribute zero. Unlimited-range
// drones fall back to inverse mean distance so nearer is still better.
func (s *StackelbergSolver) coverageScore(drone core.StationInfo, pos core.Position3D, users []core.UserInfo) float64 {
	scores := make([]float64, len(users))
	for i, u := range users {
		d := pos.DistanceTo(u.Pos)
		if drone.RangeM <= 0 {
			scores[i] = 1 / (1 + d)
			continue
		}
		if d <= drone.RangeM {
			scores[i] = 1 - d/drone.RangeM
		}
	}
	return stat.Mean(scores, nil)
}
