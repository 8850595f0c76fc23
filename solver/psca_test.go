package solver

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/skyfieldworks/airground-lb/core"
)

func TestPSCASolver_ForcedAssociations(t *testing.T) {
	// Each user is covered by exactly one station, so the solver has no
	// real choice: weights must concentrate on the covering station.
	p := twoCellProblem(core.PolicyProportionalFair)
	s, err := NewPSCASolver(p, PSCAConfig{})
	if err != nil {
		t.Fatal(err)
	}
	res, err := s.Solve(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	want := core.BinaryAssignment{0, 0, 1}
	for i, j := range res.Binary {
		if j != want[i] {
			t.Errorf("user %d assigned to station %d, want %d", i, j, want[i])
		}
	}
	if !res.Converged {
		t.Errorf("solver did not converge in %d outer iterations", res.OuterIterations)
	}
	if res.Violations.Count() != 0 {
		t.Errorf("unexpected violations: %+v", res.Violations)
	}
}

func TestPSCASolver_WeightsSumToOne(t *testing.T) {
	p := twoCellProblem(core.PolicyProportionalFair)
	s, _ := NewPSCASolver(p, PSCAConfig{})
	res, err := s.Solve(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	for i := range res.Fractional {
		if sum := res.Fractional.RowSum(i); !almostEqual(sum, 1, core.WeightSumTolerance) {
			t.Errorf("user %d weight sum = %v, want 1", i, sum)
		}
	}
	if bad := res.Fractional.InvalidRows(core.WeightSumTolerance); len(bad) != 0 {
		t.Errorf("invalid rows: %v", bad)
	}
}

func TestPSCASolver_ObjectiveFiniteAndLoadsBelowOne(t *testing.T) {
	p := twoCellProblem(core.PolicyProportionalFair)
	s, _ := NewPSCASolver(p, PSCAConfig{})
	res, err := s.Solve(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if math.IsInf(res.Objective, 0) || math.IsNaN(res.Objective) {
		t.Fatalf("objective = %v, want finite", res.Objective)
	}
	for j, load := range res.Loads {
		if load < 0 || load >= 1 {
			t.Errorf("station %d load = %v, want in [0,1)", j, load)
		}
	}
}

func TestPSCASolver_ReportsCapacityViolation(t *testing.T) {
	// One station with a single slot and two users in range: the relaxed
	// problem cannot respect capacity, and the contract is to report,
	// not repair.
	stations := []core.StationInfo{groundAt("gs-0", 0, 0, 500, 1)}
	users := []core.UserInfo{
		userAt("ue-0", 10, 0, 1e6),
		userAt("ue-1", -10, 0, 1e6),
	}
	p := mustProblem(stations, users, core.PolicyProportionalFair)
	s, _ := NewPSCASolver(p, PSCAConfig{})
	res, err := s.Solve(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if len(res.Violations.Capacity) == 0 {
		t.Fatalf("expected a capacity violation, got %+v", res.Violations)
	}
	if res.Violations.Feasible() {
		t.Errorf("violation set with capacity breach reported as feasible")
	}
}

func TestPSCASolver_UncoverableUserSaturatesObjective(t *testing.T) {
	stations := []core.StationInfo{groundAt("gs-0", 0, 0, 500, 5)}
	users := []core.UserInfo{
		userAt("ue-0", 10, 0, 1e6),
		userAt("ue-far", 50_000, 0, 1e6), // outside every footprint
	}
	p := mustProblem(stations, users, core.PolicyProportionalFair)
	s, _ := NewPSCASolver(p, PSCAConfig{})
	res, err := s.Solve(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if !math.IsInf(res.Objective, 1) {
		t.Errorf("objective with an uncoverable user = %v, want +Inf", res.Objective)
	}
}

func TestPSCASolver_WarmStartIsStable(t *testing.T) {
	// Warm-starting from the forced optimum must reproduce it.
	p := twoCellProblem(core.PolicyProportionalFair)
	s, _ := NewPSCASolver(p, PSCAConfig{
		InitialBinary: core.BinaryAssignment{0, 0, 1},
	})
	res, err := s.Solve(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	want := core.BinaryAssignment{0, 0, 1}
	for i, j := range res.Binary {
		if j != want[i] {
			t.Errorf("user %d assigned to station %d, want %d", i, j, want[i])
		}
	}
}

func TestPSCASolver_NilProblem(t *testing.T) {
	if _, err := NewPSCASolver(nil, PSCAConfig{}); err == nil {
		t.Fatal("expected an error for a nil problem")
	}
}

func TestPSCASolver_ProportionalFairSpreadsIdenticalUsers(t *testing.T) {
	// Both stations cover all three users; proportional fairness must
	// split them rather than pile everyone onto one station.
	stations := []core.StationInfo{
		groundAt("gs-0", 0, 0, 2000, 5),
		groundAt("gs-1", 800, 0, 2000, 5),
	}
	users := []core.UserInfo{
		userAt("ue-0", 100, 0, 2e6),
		userAt("ue-1", 700, 0, 2e6),
		userAt("ue-2", 420, 30, 2e6),
	}
	p := mustProblem(stations, users, core.PolicyProportionalFair)
	s, _ := NewPSCASolver(p, PSCAConfig{})
	res, err := s.Solve(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	for j := 0; j < len(stations); j++ {
		if n := assignedUsers(res.Binary, j); n == 0 || n == len(users) {
			t.Errorf("station %d serves %d of %d users, want a split", j, n, len(users))
		}
	}
	if res.Violations.Count() != 0 {
		t.Errorf("unexpected violations: %+v", res.Violations)
	}
}

func TestPSCASolver_MinMaxKeepsMaxLoadAtOrBelowProportionalFair(t *testing.T) {
	stations := []core.StationInfo{
		groundAt("gs-0", 0, 0, 700, 10),
		groundAt("gs-1", 600, 0, 700, 10),
		groundAt("gs-2", 1200, 0, 700, 10),
		groundAt("gs-3", 1800, 0, 700, 10),
	}
	users := make([]core.UserInfo, 20)
	for i := range users {
		y := 50.0
		if i%2 == 1 {
			y = -50
		}
		users[i] = userAt(fmt.Sprintf("ue-%d", i), float64(i)*90, y, 2e6)
	}

	solve := func(policy core.FairnessPolicy) *PSCAResult {
		s, err := NewPSCASolver(mustProblem(stations, users, policy), PSCAConfig{})
		if err != nil {
			t.Fatal(err)
		}
		res, err := s.Solve(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		return res
	}
	minmax := solve(core.PolicyMinMax)
	pf := solve(core.PolicyProportionalFair)

	maxLoad := func(loads []float64) float64 {
		m := 0.0
		for _, l := range loads {
			if l > m {
				m = l
			}
		}
		return m
	}
	if got, limit := maxLoad(minmax.Loads), maxLoad(pf.Loads); got > limit+1e-9 {
		t.Errorf("MIN_MAX max load %v exceeds PROPORTIONAL_FAIR max load %v", got, limit)
	}
	if minmax.Objective == pf.Objective {
		t.Errorf("both policies produced the same objective value %v", pf.Objective)
	}
}
