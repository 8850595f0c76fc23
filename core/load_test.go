package core

import (
	"math"
	"testing"
)

func TestObjective_SaturationIsInfiniteForEveryPolicy(t *testing.T) {
	policies := []FairnessPolicy{
		PolicyMinSum, PolicyProportionalFair, PolicyLatencyOptimal, PolicyMinMax,
	}
	for _, policy := range policies {
		got := Objective([]float64{0.2, 1.0}, policy)
		if !math.IsInf(got, 1) {
			t.Errorf("%v: objective with a saturated station = %v, want +Inf", policy, got)
		}
	}
}

func TestObjective_MonotonicInLoad(t *testing.T) {
	policies := []FairnessPolicy{
		PolicyMinSum, PolicyProportionalFair, PolicyLatencyOptimal, PolicyMinMax,
	}
	for _, policy := range policies {
		low := Objective([]float64{0.3, 0.3}, policy)
		high := Objective([]float64{0.3, 0.6}, policy)
		if high <= low {
			t.Errorf("%v: raising a load did not raise the objective: %v -> %v",
				policy, low, high)
		}
	}
}

func TestObjective_KnownValues(t *testing.T) {
	if got := Objective(nil, PolicyProportionalFair); got != 0 {
		t.Errorf("empty objective = %v, want 0", got)
	}
	if got := Objective([]float64{0.2, 0.8, 0.5}, PolicyMinMax); got != 0.8 {
		t.Errorf("min-max objective = %v, want 0.8", got)
	}
	// PROPORTIONAL_FAIR: −Σ log(1−ρ).
	want := -(math.Log(0.5) + math.Log(0.75))
	if got := Objective([]float64{0.5, 0.25}, PolicyProportionalFair); math.Abs(got-want) > 1e-12 {
		t.Errorf("proportional-fair objective = %v, want %v", got, want)
	}
	// LATENCY_OPTIMAL (α=2): Σ 1/(1−ρ).
	if got := Objective([]float64{0.5}, PolicyLatencyOptimal); math.Abs(got-2) > 1e-12 {
		t.Errorf("latency-optimal objective = %v, want 2", got)
	}
}

func TestObjective_StableNearSaturation(t *testing.T) {
	got := Objective([]float64{1 - 1e-12}, PolicyProportionalFair)
	if math.IsInf(got, 0) || math.IsNaN(got) {
		t.Errorf("objective just below saturation is not finite: %v", got)
	}
}

func TestPolicyAlpha(t *testing.T) {
	cases := []struct {
		policy FairnessPolicy
		alpha  float64
	}{
		{PolicyMinSum, 0},
		{PolicyProportionalFair, 1},
		{PolicyLatencyOptimal, 2},
	}
	for _, c := range cases {
		if got := c.policy.Alpha(); got != c.alpha {
			t.Errorf("%v.Alpha() = %v, want %v", c.policy, got, c.alpha)
		}
	}
}

func TestLoadModel_ArrivalRateAndShares(t *testing.T) {
	lm := NewLoadModel(NewRateEvaluator(ChannelParams{}), 1500)
	u := UserInfo{ID: "ue-0", DemandBps: 1.2e6}

	// 1.2 Mbit/s at 1500-byte packets is 100 packets/s.
	if got := lm.ArrivalRate(u); math.Abs(got-100) > 1e-9 {
		t.Errorf("ArrivalRate = %v, want 100", got)
	}

	// Demand of half the achievable rate loads the station to 0.5.
	if got := lm.loadShare(u, 2.4e6); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("loadShare = %v, want 0.5", got)
	}
	// An unreachable pair saturates the station.
	if got := lm.loadShare(u, 0); got != 1 {
		t.Errorf("loadShare at zero rate = %v, want 1", got)
	}
}

func TestLoadsFromBinary_MatchesFractionalUnitMass(t *testing.T) {
	lm := NewLoadModel(NewRateEvaluator(ChannelParams{}), 1500)
	users := []UserInfo{
		{ID: "ue-0", DemandBps: 1e6},
		{ID: "ue-1", DemandBps: 2e6},
	}
	rates := [][]float64{
		{8e6, 4e6},
		{8e6, 4e6},
	}

	b := BinaryAssignment{0, 1}
	fromBinary := lm.LoadsFromBinary(rates, users, b, 2)
	fromFractional := lm.LoadsFromFractional(rates, users, b.ToFractional(2))
	for j := range fromBinary {
		if math.Abs(fromBinary[j]-fromFractional[j]) > 1e-12 {
			t.Errorf("station %d: binary load %v != fractional unit-mass load %v",
				j, fromBinary[j], fromFractional[j])
		}
	}
	if math.Abs(fromBinary[0]-0.125) > 1e-9 {
		t.Errorf("station 0 load = %v, want 0.125", fromBinary[0])
	}
	if math.Abs(fromBinary[1]-0.5) > 1e-9 {
		t.Errorf("station 1 load = %v, want 0.5", fromBinary[1])
	}
}
