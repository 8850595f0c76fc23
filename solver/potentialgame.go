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

// PotentialGameConfig tunes the Gibbs-sampling positioning solver. Zero
// values fall back to the documented defaults.
type PotentialGameConfig struct {
	// Region is the deployment box drone moves are constrained to.
	Region model.DeploymentRegion

	// Grid step sizes per axis, metres. Defaults 50, 50, 10.
	GridStepXM float64
	GridStepYM float64
	GridStepZM float64

	// InitialPsi is the starting inverse temperature ψ (small = more
	// exploration). Default 0.5.
	InitialPsi float64
	// PsiIncrement is added to ψ each outer iteration. Default 0.5.
	PsiIncrement float64

	// Tolerance is the potential-improvement threshold. Default 1e-4.
	Tolerance float64
	// MaxIterations bounds the outer loop. Default 100.
	MaxIterations int

	// Seed makes the Gibbs draws reproducible.
	Seed int64

	Logger logging.Logger
}

func (c PotentialGameConfig) withDefaults() PotentialGameConfig {
	if c.GridStepXM == 0 {
		c.GridStepXM = 50
	}
	if c.GridStepYM == 0 {
		c.GridStepYM = 50
	}
	if c.GridStepZM == 0 {
		c.GridStepZM = 10
	}
	if c.InitialPsi == 0 {
		c.InitialPsi = 0.5
	}
	if c.PsiIncrement == 0 {
		c.PsiIncrement = 0.5
	}
	if c.Tolerance == 0 {
		c.Tolerance = 1e-4
	}
	if c.MaxIterations == 0 {
		c.MaxIterations = 100
	}
	if c.Logger == nil {
		c.Logger = logging.Noop()
	}
	return c
}

// GameState is an immutable snapshot of one iteration of the positioning
// game.
type GameState struct {
	// Positions holds every station's position; only drone entries ever
	// differ from the input problem.
	Positions []core.Position3D
	// PerStationCost maps station index to the player's individual cost;
	// non-drone entries are zero.
	PerStationCost []float64
	// PotentialValue is Φ = Σⱼ Cⱼ over the drone players.
	PotentialValue float64
	// IsEquilibrium is set by the post-hoc unilateral-deviation check.
	IsEquilibrium bool
}

// PotentialGameResult is the outcome of one positioning solve.
type PotentialGameResult struct {
	State      GameState
	Iterations int
	Converged  bool
}

// PotentialGameSolver places drones on a discretised grid by Gibbs-sampling
// best responses of a potential game. Each drone's individual cost is its
// α-fairness station cost under a greedy nearest-station proxy assignment;
// all players share the potential Φ = Σⱼ Cⱼ. ψ grows every iteration, so
// sampling anneals from exploration toward greedy best response.
type PotentialGameSolver struct {
	problem *Problem
	cfg     PotentialGameConfig
}

// NewPotentialGameSolver builds a solver over an immutable problem
// snapshot.
func NewPotentialGameSolver(problem *Problem, cfg PotentialGameConfig) (*PotentialGameSolver, error) {
	if problem == nil {
		return nil, errors.New("solver: nil problem")
	}
	return &PotentialGameSolver{problem: problem, cfg: cfg.withDefaults()}, nil
}

// Solve runs the sampling loop until no drone moves, the potential
// stabilises, or the iteration cap is hit.
func (s *PotentialGameSolver) Solve(ctx context.Context) (*PotentialGameResult, error) {
	p := s.problem
	cfg := s.cfg
	drones := p.DroneIndices()

	stations := append([]core.StationInfo(nil), p.Stations...)
	rng := rand.New(rand.NewSource(cfg.Seed))

	psi := cfg.InitialPsi
	prevPotential := math.Inf(1)
	iterations := 0
	converged := false

	for iterations < cfg.MaxIterations {
		iterations++
		moved := false

		for _, j := range drones {
			candidates := s.candidatePositions(stations[j])
			costs := make([]float64, len(candidates))
			for k, pos := range candidates {
				costs[k] = s.positionCost(stations, j, pos)
			}
			pick := gibbsSample(rng, costs, psi)
			if pick >= 0 && candidates[pick] != stations[j].Pos {
				stations[j] = stations[j].At(candidates[pick])
				moved = true
			}
		}

		potential := s.potential(stations, drones)
		cfg.Logger.Debug(ctx, "potential game iteration",
			logging.Int("iteration", iterations),
			logging.Float64("psi", psi),
			logging.Float64("potential", potential))

		if !moved {
			converged = true
			break
		}
		if !math.IsInf(prevPotential, 1) && !math.IsInf(potential, 1) &&
			math.Abs(prevPotential-potential) < cfg.Tolerance {
			converged = true
			prevPotential = potential
			break
		}
		prevPotential = potential
		psi += cfg.PsiIncrement
	}

	state := GameState{
		Positions:      make([]core.Position3D, len(stations)),
		PerStationCost: make([]float64, len(stations)),
	}
	for j, st := range stations {
		state.Positions[j] = st.Pos
	}
	for _, j := range drones {
		state.PerStationCost[j] = s.positionCost(stations, j, stations[j].Pos)
		state.PotentialValue += state.PerStationCost[j]
	}
	state.IsEquilibrium = s.verifyEquilibrium(stations, drones)

	return &PotentialGameResult{
		State:      state,
		Iterations: iterations,
		Converged:  converged,
	}, nil
}

// candidatePositions returns the drone's current grid point plus its
// 6-connected neighbours, filtered by the deployment box and the drone's
// own altitude limits.
func (s *PotentialGameSolver) candidatePositions(drone core.StationInfo) []core.Position3D {
	cfg := s.cfg
	cur := drone.Pos
	moves := []core.Position3D{
		cur,
		cur.Add(cfg.GridStepXM, 0, 0),
		cur.Add(-cfg.GridStepXM, 0, 0),
		cur.Add(0, cfg.GridStepYM, 0),
		cur.Add(0, -cfg.GridStepYM, 0),
		cur.Add(0, 0, cfg.GridStepZM),
		cur.Add(0, 0, -cfg.GridStepZM),
	}
	out := moves[:0]
	for _, pos := range moves {
		if pos != cur && !cfg.Region.Contains(pos) {
			continue
		}
		if pos != cur && drone.MaxAltitudeM > drone.MinAltitudeM &&
			(pos.Z < drone.MinAltitudeM || pos.Z > drone.MaxAltitudeM) {
			continue
		}
		out = append(out, pos)
	}
	return out
}

// positionCost evaluates drone j's individual cost at a candidate position
// without touching shared state: the candidate is applied to a local copy,
// a greedy nearest-station assignment approximates the user response, and
// the drone's resulting load is scored with the station cost branch of the
// fairness policy (+Inf when saturated).
func (s *PotentialGameSolver) positionCost(stations []core.StationInfo, j int, pos core.Position3D) float64 {
	local := append([]core.StationInfo(nil), stations...)
	local[j] = local[j].At(pos)

	var served []core.UserInfo
	for _, u := range s.problem.Users {
		if nearestInRangeStation(local, u.Pos) == j {
			served = append(served, u)
		}
	}
	load := s.problem.Load.StationLoad(local[j], served)
	return core.StationObjective(load, s.problem.Policy)
}

func (s *PotentialGameSolver) potential(stations []core.StationInfo, drones []int) float64 {
	total := 0.0
	for _, j := range drones {
		total += s.positionCost(stations, j, stations[j].Pos)
	}
	return total
}

// verifyEquilibrium perturbs each drone to its neighbour positions and
// checks that no unilateral deviation improves its cost beyond tolerance.
// The flag is diagnostic; it does not drive termination.
func (s *PotentialGameSolver) verifyEquilibrium(stations []core.StationInfo, drones []int) bool {
	for _, j := range drones {
		current := s.positionCost(stations, j, stations[j].Pos)
		for _, pos := range s.candidatePositions(stations[j]) {
			if pos == stations[j].Pos {
				continue
			}
			if s.positionCost(stations, j, pos) < current-s.cfg.Tolerance {
				return false
			}
		}
	}
	return true
}

// gibbsSample draws an index from Pr(k) ∝ exp(−ψ·(cost_k − maxCost)).
// Subtracting the largest finite cost keeps the exponents bounded;
// infinite-cost candidates get zero probability unless every candidate is
// infinite, in which case the current position (index 0) is kept.
func gibbsSample(rng *rand.Rand, costs []float64, psi float64) int {
	if len(costs) == 0 {
		return -1
	}
	maxCost := math.Inf(-1)
	for _, c := range costs {
		if !math.IsInf(c, 1) && c > maxCost {
			maxCost = c
		}
	}
	if math.IsInf(maxCost, -1) {
		return 0
	}

	weights := make([]float64, len(costs))
	total := 0.0
	for k, c := range costs {
		if math.IsInf(c, 1) {
			continue
		}
		exponent := -psi * (c - maxCost)
		if exponent > 700 {
			exponent = 700
		}
		weights[k] = math.Exp(exponent)
		total += weights[k]
	}
	if total <= 0 {
		return 0
	}

	draw := rng.Float64() * total
	for k, w := range weights {
		draw -= w
		if draw <= 0 {
			return k
		}
	}
	return len(costs) - 1
}
