package solver

import (
	"context"
	"errors"
	"math"

	"github.com/skyfieldworks/airground-lb/core"
	"github.com/skyfieldworks/airground-lb/internal/logging"
)

// scoreTieTolerance bounds the region within which two candidate scores
// count as tied in the inner descent.
const scoreTieTolerance = 1e-12

// PSCAConfig tunes the penalised successive convex approximation solver.
// Zero values fall back to the documented defaults.
type PSCAConfig struct {
	// InitialPenalty is λ₀, the starting penalty parameter. Default 1.
	InitialPenalty float64
	// PenaltyScale multiplies λ after each outer iteration. Default 0.5.
	PenaltyScale float64
	// MinPenalty stops the outer loop once λ falls below it. Default 1e-3.
	MinPenalty float64
	// Tolerance is the objective-improvement threshold for both loops.
	// Default 1e-5.
	Tolerance float64
	// MaxOuterIterations bounds the λ-shrinking loop. Default 20.
	MaxOuterIterations int
	// MaxInnerIterations bounds the coordinate-descent sweeps per outer
	// iteration. Default 50.
	MaxInnerIterations int
	// SpreadWeight is the weight put on the primary station by the
	// "spread" candidate distributions. Default 0.8.
	SpreadWeight float64

	// InitialBinary optionally warm-starts the relaxation from a binary
	// assignment (one weight-1 entry per assigned user). Users left
	// unassigned there fall back to the uniform spread.
	InitialBinary core.BinaryAssignment

	Logger logging.Logger
}

func (c PSCAConfig) withDefaults() PSCAConfig {
	if c.InitialPenalty == 0 {
		c.InitialPenalty = 1.0
	}
	if c.PenaltyScale == 0 {
		c.PenaltyScale = 0.5
	}
	if c.MinPenalty == 0 {
		c.MinPenalty = 1e-3
	}
	if c.Tolerance == 0 {
		c.Tolerance = 1e-5
	}
	if c.MaxOuterIterations == 0 {
		c.MaxOuterIterations = 20
	}
	if c.MaxInnerIterations == 0 {
		c.MaxInnerIterations = 50
	}
	if c.SpreadWeight == 0 {
		c.SpreadWeight = 0.8
	}
	if c.Logger == nil {
		c.Logger = logging.Noop()
	}
	return c
}

// PSCAResult is the outcome of one user-association solve.
type PSCAResult struct {
	Fractional core.FractionalAssignment
	Binary     core.BinaryAssignment
	// Loads are the per-station loads of the binarised assignment.
	Loads []float64
	// FractionalLoads are the loads of the relaxed solution the outer
	// loop actually optimised.
	FractionalLoads []float64
	Objective       float64
	OuterIterations int
	Converged       bool
	Violations      ViolationSet
}

// PSCASolver solves the relaxed user-association subproblem for fixed
// station positions:
//
//	min φ_α(ρ(x)) + (1/λ)·Σᵢⱼ (xᵢⱼ − xᵢⱼ²)
//	s.t. Σⱼ xᵢⱼ = 1, xᵢⱼ ∈ [0,1]
//
// The concave penalty drives weights toward {0,1} as λ shrinks. Inside the
// inner loop the penalty is replaced by its first-order expansion around
// the previous feasible point, preserving convexity of the subproblem.
type PSCASolver struct {
	problem *Problem
	cfg     PSCAConfig
}

// NewPSCASolver builds a solver over an immutable problem snapshot.
func NewPSCASolver(problem *Problem, cfg PSCAConfig) (*PSCASolver, error) {
	if problem == nil {
		return nil, errors.New("solver: nil problem")
	}
	return &PSCASolver{problem: problem, cfg: cfg.withDefaults()}, nil
}

// Solve runs the outer/inner loop to convergence or iteration cap.
func (s *PSCASolver) Solve(ctx context.Context) (*PSCAResult, error) {
	p := s.problem
	cfg := s.cfg
	nUsers := len(p.Users)

	shares := s.loadShares()
	inRange := make([][]int, nUsers)
	for i := 0; i < nUsers; i++ {
		inRange[i] = p.InRangeStations(i)
	}

	x := s.initialAssignment(inRange)
	xf := x.Clone() // linearisation point

	lambda := cfg.InitialPenalty
	prevObjective := math.Inf(1)
	outer := 0
	converged := false

	for outer < cfg.MaxOuterIterations {
		outer++
		s.innerDescent(x, xf, shares, inRange, lambda)

		objective := core.Objective(s.clampedLoads(x, shares), p.Policy)
		improvement := prevObjective - objective
		cfg.Logger.Debug(ctx, "psca outer iteration",
			logging.Int("iteration", outer),
			logging.Float64("lambda", lambda),
			logging.Float64("objective", objective))

		if !math.IsInf(prevObjective, 1) && math.Abs(improvement) < cfg.Tolerance {
			converged = true
			prevObjective = objective
			break
		}
		prevObjective = objective

		xf = x.Clone()
		lambda *= cfg.PenaltyScale
		if lambda < cfg.MinPenalty {
			converged = true
			break
		}
	}

	res := &PSCAResult{
		Fractional:      x,
		Binary:          x.Binarize(),
		FractionalLoads: s.clampedLoads(x, shares),
		OuterIterations: outer,
		Converged:       converged,
	}
	res.Loads = s.binaryLoads(res.Binary, shares)
	res.Objective = core.Objective(res.FractionalLoads, p.Policy)
	res.Violations = s.validate(x, res.Binary)
	return res, nil
}

// loadShares precomputes each user's load contribution per station at
// weight 1. Out-of-range or zero-rate pairs contribute a full saturation.
func (s *PSCASolver) loadShares() [][]float64 {
	p := s.problem
	rates := p.RateMatrix()
	shares := make([][]float64, len(p.Users))
	for i, u := range p.Users {
		shares[i] = make([]float64, len(p.Stations))
		for j := range p.Stations {
			if rates[i][j] <= 0 {
				shares[i][j] = 1
				continue
			}
			shares[i][j] = u.DemandBps / rates[i][j]
		}
	}
	return shares
}

// initialAssignment spreads each user uniformly over its in-range
// stations, or adopts the configured binary warm start where present;
// users with no coverage are spread over all stations so the sum-to-one
// invariant holds from the first iteration.
func (s *PSCASolver) initialAssignment(inRange [][]int) core.FractionalAssignment {
	nStations := len(s.problem.Stations)
	x := core.NewFractionalAssignment(len(s.problem.Users), nStations)
	warm := s.cfg.InitialBinary
	for i := range x {
		if len(warm) == len(x) && warm[i] >= 0 && warm[i] < nStations {
			x[i][warm[i]] = 1
			continue
		}
		stations := inRange[i]
		if len(stations) == 0 {
			for j := 0; j < nStations; j++ {
				x[i][j] = 1.0 / float64(nStations)
			}
			continue
		}
		for _, j := range stations {
			x[i][j] = 1.0 / float64(len(stations))
		}
	}
	return x
}

// innerDescent performs coordinate descent over users for a fixed λ,
// scoring candidate rows by the linearised penalised objective.
func (s *PSCASolver) innerDescent(x, xf core.FractionalAssignment, shares [][]float64, inRange [][]int, lambda float64) {
	p := s.problem
	cfg := s.cfg
	nStations := len(p.Stations)

	// Raw (unclamped) loads; Objective treats anything ≥ 1 as saturated.
	loads := make([]float64, nStations)
	for i, row := range x {
		for j, w := range row {
			loads[j] += w * shares[i][j]
		}
	}
	penalty := 0.0
	for i, row := range x {
		penalty += linearisedRowPenalty(row, xf[i])
	}

	prev := math.Inf(1)
	scratch := make([]float64, nStations)
	for iter := 0; iter < cfg.MaxInnerIterations; iter++ {
		for i := range x {
			// Remove user i from the running totals.
			for j, w := range x[i] {
				loads[j] -= w * shares[i][j]
			}
			penalty -= linearisedRowPenalty(x[i], xf[i])

			bestRow := x[i]
			bestScore := math.Inf(1)
			bestTotal := math.Inf(1)
			for _, cand := range s.candidateRows(x[i], inRange[i]) {
				copy(scratch, loads)
				total := 0.0
				for j, w := range cand {
					scratch[j] += w * shares[i][j]
				}
				for _, l := range scratch {
					total += l
				}
				score := core.Objective(scratch, p.Policy) +
					(linearisedRowPenalty(cand, xf[i])+penalty)/lambda
				// Plateau policies (MIN_MAX in particular) leave large
				// regions of tied scores; break ties toward the smaller
				// total load so weights still settle onto cheap stations.
				switch {
				case score < bestScore-scoreTieTolerance:
					bestScore, bestTotal, bestRow = score, total, cand
				case score <= bestScore+scoreTieTolerance && total < bestTotal-scoreTieTolerance:
					bestScore, bestTotal, bestRow = score, total, cand
				}
			}

			copy(x[i], bestRow)
			for j, w := range x[i] {
				loads[j] += w * shares[i][j]
			}
			penalty += linearisedRowPenalty(x[i], xf[i])
		}

		cur := core.Objective(loads, p.Policy) + penalty/lambda
		if !math.IsInf(prev, 1) && math.Abs(prev-cur) < cfg.Tolerance {
			return
		}
		prev = cur
	}
}

// candidateRows proposes weight distributions for one user: keep the
// current row, concentrate all weight on a single in-range station, or put
// SpreadWeight on a primary and share the remainder over the others.
func (s *PSCASolver) candidateRows(current []float64, stations []int) [][]float64 {
	nStations := len(current)
	if len(stations) == 0 {
		// No coverage: nothing to improve, keep the current row.
		return [][]float64{append([]float64(nil), current...)}
	}

	candidates := make([][]float64, 0, 1+2*len(stations))
	candidates = append(candidates, append([]float64(nil), current...))
	for _, primary := range stations {
		concentrated := make([]float64, nStations)
		concentrated[primary] = 1
		candidates = append(candidates, concentrated)

		if len(stations) > 1 {
			spread := make([]float64, nStations)
			rest := (1 - s.cfg.SpreadWeight) / float64(len(stations)-1)
			for _, j := range stations {
				spread[j] = rest
			}
			spread[primary] = s.cfg.SpreadWeight
			candidates = append(candidates, spread)
		}
	}
	return candidates
}

// linearisedRowPenalty is the first-order expansion of Σⱼ (xⱼ − xⱼ²)
// around the feasible point xfⱼ:
//
//	xⱼ − xfⱼ² − 2·xfⱼ·(xⱼ − xfⱼ)
func linearisedRowPenalty(row, rowF []float64) float64 {
	sum := 0.0
	for j, xj := range row {
		xfj := rowF[j]
		sum += xj - xfj*xfj - 2*xfj*(xj-xfj)
	}
	return sum
}

func (s *PSCASolver) clampedLoads(x core.FractionalAssignment, shares [][]float64) []float64 {
	loads := make([]float64, len(s.problem.Stations))
	for i, row := range x {
		for j, w := range row {
			loads[j] += w * shares[i][j]
		}
	}
	for j, l := range loads {
		if l > 1 {
			loads[j] = 1
		}
	}
	return loads
}

func (s *PSCASolver) binaryLoads(b core.BinaryAssignment, shares [][]float64) []float64 {
	loads := make([]float64, len(s.problem.Stations))
	for i, j := range b {
		if j >= 0 {
			loads[j] += shares[i][j]
		}
	}
	for j, l := range loads {
		if l > 1 {
			loads[j] = 1
		}
	}
	return loads
}

// validate checks the solver's output contract: per-user weight sums and
// per-station capacity. Violations are reported, never repaired.
func (s *PSCASolver) validate(x core.FractionalAssignment, b core.BinaryAssignment) ViolationSet {
	p := s.problem
	var vs ViolationSet
	for _, i := range x.InvalidRows(core.WeightSumTolerance) {
		vs.Assignment = append(vs.Assignment, Violation{
			Kind:   ViolationAssignment,
			UserID: p.Users[i].ID,
			Value:  x.RowSum(i),
			Detail: "fractional weights do not sum to one",
		})
	}
	for i, j := range b {
		if j < 0 {
			vs.Assignment = append(vs.Assignment, Violation{
				Kind:   ViolationAssignment,
				UserID: p.Users[i].ID,
				Detail: "user has no station after binarisation",
			})
		}
	}
	counts := b.StationCounts(len(p.Stations))
	for j, c := range counts {
		if capacity := p.Stations[j].Capacity; capacity > 0 && c > capacity {
			vs.Capacity = append(vs.Capacity, Violation{
				Kind:      ViolationCapacity,
				StationID: p.Stations[j].ID,
				Value:     float64(c),
				Detail:    "assigned users exceed station capacity",
			})
		}
	}
	return vs
}
