package solver

import (
	"context"
	"errors"
	"sort"

	"github.com/skyfieldworks/airground-lb/core"
	"github.com/skyfieldworks/airground-lb/internal/logging"
)

// VCGConfig tunes the truthful auction mechanism.
type VCGConfig struct {
	Logger logging.Logger
}

func (c VCGConfig) withDefaults() VCGConfig {
	if c.Logger == nil {
		c.Logger = logging.Noop()
	}
	return c
}

// VCGResult is the outcome of one auction run.
type VCGResult struct {
	// Assignment maps user index to won station index, -1 for losers.
	Assignment core.BinaryAssignment
	// Valuations is the bid matrix: each user's achievable rate per
	// station, 0 when out of range.
	Valuations [][]float64
	// Prices holds each user's Vickrey price; 0 for losers.
	Prices []float64
	// Welfare is the sum of winning valuations; Revenue the sum of
	// prices. Revenue never exceeds Welfare.
	Welfare float64
	Revenue float64
}

// VCGAuctionSolver allocates station slots by a truthful auction: each
// user's valuation for a station is its achievable rate there, winners are
// determined greedily in descending order of best valuation (a documented
// approximation of exact welfare maximisation), and each winner pays the
// externality it imposes on the runner-up bidder for its slot.
type VCGAuctionSolver struct {
	problem *Problem
	cfg     VCGConfig
}

// NewVCGAuctionSolver builds a solver over an immutable problem snapshot.
func NewVCGAuctionSolver(problem *Problem, cfg VCGConfig) (*VCGAuctionSolver, error) {
	if problem == nil {
		return nil, errors.New("solver: nil problem")
	}
	return &VCGAuctionSolver{problem: problem, cfg: cfg.withDefaults()}, nil
}

// Solve runs bid collection, winner determination and pricing.
func (s *VCGAuctionSolver) Solve(ctx context.Context) (*VCGResult, error) {
	p := s.problem
	nUsers := len(p.Users)
	nStations := len(p.Stations)

	// 1) Bid collection: valuation = achievable rate when in range.
	valuations := p.RateMatrix()

	// 2) Winner determination: users in descending order of their best
	// valuation, each taking its highest-valuation station with remaining
	// capacity. Greedy, so an approximation of exact welfare
	// maximisation.
	order := make([]int, nUsers)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return bestValuation(valuations[order[a]]) > bestValuation(valuations[order[b]])
	})

	assignment := core.NewBinaryAssignment(nUsers)
	remaining := make([]int, nStations)
	for j, st := range p.Stations {
		remaining[j] = st.Capacity
	}

	welfare := 0.0
	for _, i := range order {
		best := -1
		bestVal := 0.0
		for j, v := range valuations[i] {
			if v <= 0 {
				continue
			}
			if p.Stations[j].Capacity > 0 && remaining[j] <= 0 {
				continue
			}
			if v > bestVal {
				best, bestVal = j, v
			}
		}
		if best < 0 {
			continue // values nothing that still has room
		}
		assignment[i] = best
		if p.Stations[best].Capacity > 0 {
			remaining[best]--
		}
		welfare += bestVal
	}

	// 3) Vickrey pricing: a winner pays the highest valuation any other
	// user places on its station. Under greedy winner determination that
	// estimate can exceed the winner's own bid, so it is capped there to
	// preserve individual rationality; losers pay nothing.
	prices := make([]float64, nUsers)
	revenue := 0.0
	for i, j := range assignment {
		if j < 0 {
			continue
		}
		price := 0.0
		for k := 0; k < nUsers; k++ {
			if k == i || assignment[k] == j {
				continue
			}
			if v := valuations[k][j]; v > price {
				price = v
			}
		}
		if own := valuations[i][j]; price > own {
			price = own
		}
		prices[i] = price
		revenue += price
	}

	s.cfg.Logger.Debug(ctx, "vcg auction settled",
		logging.Float64("welfare", welfare),
		logging.Float64("revenue", revenue))

	return &VCGResult{
		Assignment: assignment,
		Valuations: valuations,
		Prices:     prices,
		Welfare:    welfare,
		Revenue:    revenue,
	}, nil
}

func bestValuation(row []float64) float64 {
	best := 0.0
	for _, v := range row {
		if v > best {
			best = v
		}
	}
	return best
}
