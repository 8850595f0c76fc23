package solver

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/stat/combin"

	"github.com/skyfieldworks/airground-lb/core"
	"github.com/skyfieldworks/airground-lb/internal/logging"
)

// ShapleyConfig tunes the cooperative allocator. Zero values fall back to
// the documented defaults.
type ShapleyConfig struct {
	// MaxExactStations caps the exact power-set computation; coalitions
	// larger than this use Monte Carlo permutation sampling instead.
	// Default 10.
	MaxExactStations int
	// Samples is the permutation count of the Monte Carlo estimator.
	// Default 2000.
	Samples int
	// Seed drives the Monte Carlo permutations.
	Seed int64

	Logger logging.Logger
}

func (c ShapleyConfig) withDefaults() ShapleyConfig {
	if c.MaxExactStations == 0 {
		c.MaxExactStations = 10
	}
	if c.Samples == 0 {
		c.Samples = 2000
	}
	if c.Logger == nil {
		c.Logger = logging.Noop()
	}
	return c
}

// ShapleyResult carries per-station Shapley values for the coalition of
// all problem stations.
type ShapleyResult struct {
	// Values maps station index to its Shapley value, the station's
	// average marginal contribution to the coalition cost.
	Values []float64
	// CoalitionValue is v(N), the cost of the grand coalition.
	CoalitionValue float64
	// Approximate is true when the coalition exceeded MaxExactStations
	// and values come from Monte Carlo sampling.
	Approximate bool
	// Samples is the permutation count used by the approximate path, 0
	// for the exact one.
	Samples int
}

// CooperativeAllocation is the direct min-max allocation over the full
// coalition.
type CooperativeAllocation struct {
	Binary    core.BinaryAssignment
	Loads     []float64
	Objective float64
}

// ShapleyCooperativeSolver computes how much each station contributes to
// the coalition's α-fairness cost, and a min-max cooperative allocation.
//
// The characteristic function v(S) is the α-fairness objective the
// stations in S achieve alone, under a greedy least-load user assignment
// restricted to S. Saturated loads are pulled an epsilon below 1 before
// scoring so marginal contributions stay finite; a saturated subset still
// costs enormously more than any feasible one.
type ShapleyCooperativeSolver struct {
	problem *Problem
	cfg     ShapleyConfig
}

// NewShapleyCooperativeSolver builds a solver over an immutable problem
// snapshot.
func NewShapleyCooperativeSolver(problem *Problem, cfg ShapleyConfig) (*ShapleyCooperativeSolver, error) {
	if problem == nil {
		return nil, errors.New("solver: nil problem")
	}
	return &ShapleyCooperativeSolver{problem: problem, cfg: cfg.withDefaults()}, nil
}

// Solve computes the Shapley value of every station. Coalitions up to
// MaxExactStations stations are enumerated exactly (O(2ⁿ)); larger ones
// fall back to seeded Monte Carlo permutation sampling, surfaced via
// Approximate on the result.
func (s *ShapleyCooperativeSolver) Solve(ctx context.Context) (*ShapleyResult, error) {
	n := len(s.problem.Stations)
	values := newCoalitionValues(s)

	res := &ShapleyResult{
		Values:         make([]float64, n),
		CoalitionValue: values.of(fullMask(n)),
	}

	if n > s.cfg.MaxExactStations {
		s.cfg.Logger.Warn(ctx, "coalition too large for exact shapley, sampling",
			logging.Int("stations", n),
			logging.Int("samples", s.cfg.Samples))
		res.Approximate = true
		res.Samples = s.cfg.Samples
		s.sampleValues(res.Values, values)
		return res, nil
	}

	s.exactValues(res.Values, values)
	return res, nil
}

// exactValues enumerates, for each station, every subset of the remaining
// stations and accumulates the weighted marginal contributions
//
//	φᵢ = Σ_S |S|!·(n−1−|S|)!/n! · [v(S∪{i}) − v(S)]
func (s *ShapleyCooperativeSolver) exactValues(out []float64, values *coalitionValues) {
	n := len(s.problem.Stations)
	for i := 0; i < n; i++ {
		others := make([]int, 0, n-1)
		for j := 0; j < n; j++ {
			if j != i {
				others = append(others, j)
			}
		}
		for k := 0; k <= len(others); k++ {
			weight := 1.0 / (float64(n) * float64(combin.Binomial(n-1, k)))
			if k == 0 {
				out[i] += weight * (values.of(1<<i) - values.of(0))
				continue
			}
			for _, comb := range combin.Combinations(len(others), k) {
				mask := 0
				for _, idx := range comb {
					mask |= 1 << others[idx]
				}
				out[i] += weight * (values.of(mask|1<<i) - values.of(mask))
			}
		}
	}
}

// sampleValues estimates Shapley values as the mean marginal contribution
// over random join orders.
func (s *ShapleyCooperativeSolver) sampleValues(out []float64, values *coalitionValues) {
	n := len(s.problem.Stations)
	rng := rand.New(rand.NewSource(s.cfg.Seed))
	for sample := 0; sample < s.cfg.Samples; sample++ {
		mask := 0
		for _, i := range rng.Perm(n) {
			before := values.of(mask)
			mask |= 1 << i
			out[i] += values.of(mask) - before
		}
	}
	for i := range out {
		out[i] /= float64(s.cfg.Samples)
	}
}

// MinMaxAllocation greedily assigns every user to the covering station
// that keeps the maximum load lowest, respecting capacity, and scores the
// result under the MIN_MAX policy. Users are placed in descending demand
// order so heavy hitters claim space first.
func (s *ShapleyCooperativeSolver) MinMaxAllocation(ctx context.Context) (*CooperativeAllocation, error) {
	p := s.problem
	order := make([]int, len(p.Users))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return p.Users[order[a]].DemandBps > p.Users[order[b]].DemandBps
	})

	rates := p.RateMatrix()
	loads := make([]float64, len(p.Stations))
	counts := make([]int, len(p.Stations))
	b := core.NewBinaryAssignment(len(p.Users))

	for _, i := range order {
		best := -1
		bestLoad := math.Inf(1)
		for _, j := range p.InRangeStations(i) {
			if capacity := p.Stations[j].Capacity; capacity > 0 && counts[j] >= capacity {
				continue
			}
			if rates[i][j] <= 0 {
				continue
			}
			after := loads[j] + p.Users[i].DemandBps/rates[i][j]
			if after < bestLoad {
				best, bestLoad = j, after
			}
		}
		if best < 0 {
			continue // uncoverable or everything full; reported by load 0
		}
		loads[best] = bestLoad
		counts[best]++
		b[i] = best
	}

	for j, l := range loads {
		if l > 1 {
			loads[j] = 1
		}
	}
	return &CooperativeAllocation{
		Binary:    b,
		Loads:     loads,
		Objective: core.Objective(loads, core.PolicyMinMax),
	}, nil
}

// coalitionValues memoises v(S) per coalition bitmask.
type coalitionValues struct {
	solver *ShapleyCooperativeSolver
	memo   map[int]float64
}

func newCoalitionValues(s *ShapleyCooperativeSolver) *coalitionValues {
	return &coalitionValues{solver: s, memo: make(map[int]float64)}
}

func (cv *coalitionValues) of(mask int) float64 {
	if v, ok := cv.memo[mask]; ok {
		return v
	}
	v := cv.solver.coalitionCost(mask)
	cv.memo[mask] = v
	return v
}

// coalitionCost evaluates v(S): greedy least-load assignment of every
// coverable user onto the stations in S, then the α-fairness objective of
// the resulting loads. Loads are kept strictly below 1 so the cost of a
// saturated coalition is finite but dominant.
func (s *ShapleyCooperativeSolver) coalitionCost(mask int) float64 {
	if mask == 0 {
		return 0
	}
	p := s.problem
	const saturationEps = 1e-9

	var members []int
	for j := range p.Stations {
		if mask&(1<<j) != 0 {
			members = append(members, j)
		}
	}

	loads := make([]float64, len(members))
	for _, u := range p.Users {
		best := -1
		bestLoad := math.Inf(1)
		for k, j := range members {
			st := p.Stations[j]
			if !st.InRange(u.Pos) {
				continue
			}
			rate := p.Load.Evaluator().Rate(st, u)
			if rate <= 0 {
				continue
			}
			after := loads[k] + u.DemandBps/rate
			if after < bestLoad {
				best, bestLoad = k, after
			}
		}
		if best >= 0 {
			loads[best] = bestLoad
		}
	}
	for k, l := range loads {
		if l > 1-saturationEps {
			loads[k] = 1 - saturationEps
		}
	}
	return core.Objective(loads, p.Policy)
}

func fullMask(n int) int { return (1 << n) - 1 }
