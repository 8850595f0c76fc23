package core

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// FairnessPolicy selects the α parameter of the load-balancing objective.
type FairnessPolicy int

const (
	// PolicyMinSum minimises the total load (α = 0).
	PolicyMinSum FairnessPolicy = iota
	// PolicyProportionalFair is proportional fairness (α = 1).
	PolicyProportionalFair
	// PolicyLatencyOptimal minimises mean delay (α = 2).
	PolicyLatencyOptimal
	// PolicyMinMax minimises the maximum station load (α → ∞).
	PolicyMinMax
)

// Alpha returns the α value of the policy; +Inf for min-max.
func (p FairnessPolicy) Alpha() float64 {
	switch p {
	case PolicyMinSum:
		return 0
	case PolicyProportionalFair:
		return 1
	case PolicyLatencyOptimal:
		return 2
	default:
		return math.Inf(1)
	}
}

func (p FairnessPolicy) String() string {
	switch p {
	case PolicyMinSum:
		return "MIN_SUM"
	case PolicyProportionalFair:
		return "PROPORTIONAL_FAIR"
	case PolicyLatencyOptimal:
		return "LATENCY_OPTIMAL"
	case PolicyMinMax:
		return "MIN_MAX"
	default:
		return "UNKNOWN"
	}
}

// LoadModel derives per-station traffic loads from an assignment and scores
// them with the α-fairness objective. A station's load is
//
//	ρⱼ = Σᵢ xᵢⱼ · λᵢ·μ / rᵢⱼ
//
// where λᵢ is the user's packet arrival rate, μ the mean packet size in
// bits and rᵢⱼ the achievable rate of the pair. Loads are clamped to 1;
// a load of 1 signals saturation and makes every objective +Inf.
type LoadModel struct {
	eval *RateEvaluator

	// MeanPacketSizeBytes converts a user's bit rate demand into a packet
	// arrival rate. Default 1500.
	meanPacketSizeBytes float64
}

// NewLoadModel builds a load model over the given evaluator.
// meanPacketSizeBytes ≤ 0 falls back to 1500.
func NewLoadModel(eval *RateEvaluator, meanPacketSizeBytes float64) *LoadModel {
	if meanPacketSizeBytes <= 0 {
		meanPacketSizeBytes = 1500
	}
	return &LoadModel{eval: eval, meanPacketSizeBytes: meanPacketSizeBytes}
}

// Evaluator returns the rate evaluator backing the model.
func (lm *LoadModel) Evaluator() *RateEvaluator { return lm.eval }

// ArrivalRate returns λᵢ, the user's packet arrival rate in packets/s.
func (lm *LoadModel) ArrivalRate(u UserInfo) float64 {
	return u.DemandBps / (lm.meanPacketSizeBytes * 8)
}

// loadShare is one user's load contribution on one station at weight 1.
// A pair with zero achievable rate saturates the station outright.
func (lm *LoadModel) loadShare(u UserInfo, rate float64) float64 {
	if rate <= 0 {
		return 1
	}
	mu := lm.meanPacketSizeBytes * 8
	return lm.ArrivalRate(u) * mu / rate
}

// RateMatrix computes achievable rates for every (user, station) pair.
// Rows are users, columns stations.
func (lm *LoadModel) RateMatrix(stations []StationInfo, users []UserInfo) [][]float64 {
	rates := make([][]float64, len(users))
	for i, u := range users {
		rates[i] = make([]float64, len(stations))
		for j, s := range stations {
			rates[i][j] = lm.eval.Rate(s, u)
		}
	}
	return rates
}

// LoadsFromFractional computes per-station loads for a fractional
// assignment using a precomputed rate matrix.
func (lm *LoadModel) LoadsFromFractional(rates [][]float64, users []UserInfo, x FractionalAssignment) []float64 {
	if len(x) == 0 {
		return nil
	}
	loads := make([]float64, len(x[0]))
	for i, row := range x {
		for j, w := range row {
			if w <= 0 {
				continue
			}
			loads[j] += w * lm.loadShare(users[i], rates[i][j])
		}
	}
	clampLoads(loads)
	return loads
}

// LoadsFromBinary computes per-station loads for a binary assignment.
func (lm *LoadModel) LoadsFromBinary(rates [][]float64, users []UserInfo, b BinaryAssignment, nStations int) []float64 {
	loads := make([]float64, nStations)
	for i, j := range b {
		if j < 0 || j >= nStations {
			continue
		}
		loads[j] += lm.loadShare(users[i], rates[i][j])
	}
	clampLoads(loads)
	return loads
}

// StationLoad computes the load of a single station serving the given users
// directly from the evaluator, bypassing the rate matrix. Used by the
// positioning solvers to cost candidate positions.
func (lm *LoadModel) StationLoad(s StationInfo, users []UserInfo) float64 {
	load := 0.0
	for _, u := range users {
		load += lm.loadShare(u, lm.eval.Rate(s, u))
	}
	if load > 1 {
		load = 1
	}
	return load
}

func clampLoads(loads []float64) {
	for j, l := range loads {
		if l > 1 {
			loads[j] = 1
		}
	}
}

// Objective evaluates the α-fairness objective φ_α over the station loads.
// It returns +Inf whenever any load has reached saturation, for every
// policy, so infeasible configurations always lose a comparison against
// feasible ones.
func Objective(loads []float64, policy FairnessPolicy) float64 {
	if len(loads) == 0 {
		return 0
	}
	for _, rho := range loads {
		if rho >= 1 {
			return math.Inf(1)
		}
	}
	switch policy {
	case PolicyMinMax:
		return floats.Max(loads)
	case PolicyProportionalFair:
		// −Σ log(1 − ρ): log1p keeps the sum accurate as ρ → 1.
		sum := 0.0
		for _, rho := range loads {
			sum -= math.Log1p(-rho)
		}
		return sum
	default:
		alpha := policy.Alpha()
		sum := 0.0
		for _, rho := range loads {
			sum += math.Pow(1-rho, 1-alpha) / (alpha - 1)
		}
		return sum
	}
}

// StationObjective is the single-station version of Objective, used as the
// individual cost Cⱼ in the positioning games.
func StationObjective(load float64, policy FairnessPolicy) float64 {
	return Objective([]float64{load}, policy)
}
