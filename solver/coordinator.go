package solver

import (
	"context"
	"errors"
	"math"
	"math/rand"

	"github.com/skyfieldworks/airground-lb/core"
	"github.com/skyfieldworks/airground-lb/internal/logging"
	"github.com/skyfieldworks/airground-lb/model"
)

// CoordinatorConfig tunes the alternating user-association / positioning
// optimisation. Zero values fall back to the documented defaults.
type CoordinatorConfig struct {
	// Region is the drone deployment box; also the bound checked by the
	// deployment constraint family.
	Region model.DeploymentRegion

	// MaxLoad is the upper bound of the load constraint family.
	// Default 1.0; a saturated (clamped) load of 1 always violates.
	MaxLoad float64
	// Tolerance is the objective-improvement threshold of the outer
	// alternation. Default 1e-3.
	Tolerance float64
	// MaxIterations bounds the alternation. Default 10.
	MaxIterations int

	// Seed drives the random initial drone placement and is forwarded to
	// the positioning subsolver.
	Seed int64

	PSCA PSCAConfig
	Game PotentialGameConfig

	Logger logging.Logger
}

func (c CoordinatorConfig) withDefaults() CoordinatorConfig {
	if c.MaxLoad == 0 {
		c.MaxLoad = 1.0
	}
	if c.Tolerance == 0 {
		c.Tolerance = 1e-3
	}
	if c.MaxIterations == 0 {
		c.MaxIterations = 10
	}
	if c.Logger == nil {
		c.Logger = logging.Noop()
	}
	return c
}

// Solution packages the joint association + positioning outcome. It is
// constructed once per Solve call and never mutated afterwards.
type Solution struct {
	Positions  []core.Position3D
	Fractional core.FractionalAssignment
	Binary     core.BinaryAssignment
	Loads      []float64
	Objective  float64
	Iterations int
	Converged  bool
	Feasible   bool
	Violations ViolationSet
}

// AGCTLBCoordinator alternates the P-SCA association solver and the
// potential-game positioning solver to jointly solve the air-ground
// collaborative traffic load balancing problem.
type AGCTLBCoordinator struct {
	problem *Problem
	cfg     CoordinatorConfig
}

// NewAGCTLBCoordinator builds a coordinator over an immutable problem
// snapshot.
func NewAGCTLBCoordinator(problem *Problem, cfg CoordinatorConfig) (*AGCTLBCoordinator, error) {
	if problem == nil {
		return nil, errors.New("solver: nil problem")
	}
	return &AGCTLBCoordinator{problem: problem, cfg: cfg.withDefaults()}, nil
}

// Solve runs the alternation to convergence or iteration cap, then
// validates the constraint families and assembles the Solution.
func (c *AGCTLBCoordinator) Solve(ctx context.Context) (*Solution, error) {
	cfg := c.cfg
	rng := rand.New(rand.NewSource(cfg.Seed))

	// Working copy of the problem with randomised drone placements.
	current := c.problem
	for _, j := range current.DroneIndices() {
		current = current.WithStationPosition(j, cfg.Region.RandomPosition(rng))
	}

	// Feasible warm start (first fit, least-loaded fallback) so the first
	// PSCA pass linearises around a capacity-respecting point.
	pscaCfg := cfg.PSCA
	pscaCfg.InitialBinary = c.initialAssignment(current)

	prevObjective := math.Inf(1)
	iterations := 0
	converged := false

	for iterations < cfg.MaxIterations {
		iterations++

		psca, err := NewPSCASolver(current, pscaCfg)
		if err != nil {
			return nil, err
		}
		pscaRes, err := psca.Solve(ctx)
		if err != nil {
			return nil, err
		}
		// Later iterations warm-start from the freshest association.
		pscaCfg.InitialBinary = pscaRes.Binary

		gameCfg := cfg.Game
		gameCfg.Region = cfg.Region
		gameCfg.Seed = cfg.Seed + int64(iterations)
		game, err := NewPotentialGameSolver(current, gameCfg)
		if err != nil {
			return nil, err
		}
		gameRes, err := game.Solve(ctx)
		if err != nil {
			return nil, err
		}
		for _, j := range current.DroneIndices() {
			current = current.WithStationPosition(j, gameRes.State.Positions[j])
		}

		rates := current.RateMatrix()
		loads := current.Load.LoadsFromBinary(rates, current.Users, pscaRes.Binary, len(current.Stations))
		objective := core.Objective(loads, current.Policy)
		cfg.Logger.Debug(ctx, "agctlb iteration",
			logging.Int("iteration", iterations),
			logging.Float64("objective", objective))

		if !math.IsInf(prevObjective, 1) && !math.IsInf(objective, 1) &&
			math.Abs(prevObjective-objective) < cfg.Tolerance {
			converged = true
			prevObjective = objective
			break
		}
		prevObjective = objective
	}

	// Final association pass against the settled positions.
	psca, err := NewPSCASolver(current, pscaCfg)
	if err != nil {
		return nil, err
	}
	lastPSCA, err := psca.Solve(ctx)
	if err != nil {
		return nil, err
	}

	rates := current.RateMatrix()
	loads := current.Load.LoadsFromBinary(rates, current.Users, lastPSCA.Binary, len(current.Stations))
	sol := &Solution{
		Positions:  make([]core.Position3D, len(current.Stations)),
		Fractional: lastPSCA.Fractional,
		Binary:     lastPSCA.Binary,
		Loads:      loads,
		Objective:  core.Objective(loads, current.Policy),
		Iterations: iterations,
		Converged:  converged,
	}
	for j, s := range current.Stations {
		sol.Positions[j] = s.Pos
	}
	sol.Violations = c.validate(current, sol, rates)
	sol.Feasible = sol.Violations.Feasible()
	return sol, nil
}

// initialAssignment builds a feasible binary warm start: first fit over
// in-range stations with remaining capacity, falling back to the least
// loaded station when every covering station is full.
func (c *AGCTLBCoordinator) initialAssignment(p *Problem) core.BinaryAssignment {
	counts := make([]int, len(p.Stations))
	b := core.NewBinaryAssignment(len(p.Users))
	for i := range p.Users {
		assigned := -1
		for _, j := range p.InRangeStations(i) {
			if p.Stations[j].Capacity <= 0 || counts[j] < p.Stations[j].Capacity {
				assigned = j
				break
			}
		}
		if assigned < 0 {
			// All covering stations are full; take the least loaded one.
			for _, j := range p.InRangeStations(i) {
				if assigned < 0 || counts[j] < counts[assigned] {
					assigned = j
				}
			}
		}
		if assigned >= 0 {
			counts[assigned]++
			b[i] = assigned
		}
	}
	return b
}

// validate collects the four hard constraint families plus the advisory
// QoS throughput check. Nothing is repaired.
func (c *AGCTLBCoordinator) validate(p *Problem, sol *Solution, rates [][]float64) ViolationSet {
	cfg := c.cfg
	var vs ViolationSet

	// (b) every user assigned to exactly one station.
	for i, j := range sol.Binary {
		if j < 0 || j >= len(p.Stations) {
			vs.Assignment = append(vs.Assignment, Violation{
				Kind:   ViolationAssignment,
				UserID: p.Users[i].ID,
				Detail: "user is not assigned to any station",
			})
		}
	}

	// (c) per-station user count within capacity.
	for j, count := range sol.Binary.StationCounts(len(p.Stations)) {
		if capacity := p.Stations[j].Capacity; capacity > 0 && count > capacity {
			vs.Capacity = append(vs.Capacity, Violation{
				Kind:      ViolationCapacity,
				StationID: p.Stations[j].ID,
				Value:     float64(count),
				Detail:    "assigned users exceed station capacity",
			})
		}
	}

	// (d) station loads within [0, maxLoad]; a clamped load of 1 means
	// saturation and is always infeasible.
	for j, load := range sol.Loads {
		if load < 0 || load > cfg.MaxLoad || load >= 1 {
			vs.Load = append(vs.Load, Violation{
				Kind:      ViolationLoad,
				StationID: p.Stations[j].ID,
				Value:     load,
				Detail:    "station load outside feasible range",
			})
		}
	}

	// (e) drone positions inside the deployment box.
	for _, j := range p.DroneIndices() {
		if !cfg.Region.Contains(p.Stations[j].Pos) {
			vs.Deployment = append(vs.Deployment, Violation{
				Kind:      ViolationDeployment,
				StationID: p.Stations[j].ID,
				Detail:    "drone position outside deployment region",
			})
		}
	}

	// Advisory QoS check: achieved rate below the user's minimum.
	for i, j := range sol.Binary {
		if j < 0 || j >= len(p.Stations) {
			continue
		}
		min := p.Users[i].MinThroughputBps
		if min > 0 && rates[i][j] < min {
			vs.Throughput = append(vs.Throughput, Violation{
				Kind:      ViolationThroughput,
				StationID: p.Stations[j].ID,
				UserID:    p.Users[i].ID,
				Value:     rates[i][j],
				Detail:    "achievable rate below required throughput",
			})
		}
	}

	return vs
}
