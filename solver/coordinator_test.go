package solver

import (
	"context"
	"testing"

	"github.com/skyfieldworks/airground-lb/core"
	"github.com/skyfieldworks/airground-lb/model"
)

func coordinatorRegion() model.DeploymentRegion {
	return model.DeploymentRegion{
		XMin: 0, XMax: 1000,
		YMin: 0, YMax: 1000,
		HMin: 60, HMax: 150,
	}
}

func coordinatorProblem() *Problem {
	stations := []core.StationInfo{
		groundAt("gs-0", 250, 250, 800, 10),
		groundAt("gs-1", 750, 750, 800, 10),
		droneAt("uav-0", core.Position3D{X: 500, Y: 500, Z: 100}, 700, 10),
	}
	users := []core.UserInfo{
		userAt("ue-0", 200, 220, 2e6),
		userAt("ue-1", 300, 260, 2e6),
		userAt("ue-2", 700, 760, 2e6),
		userAt("ue-3", 780, 720, 2e6),
		userAt("ue-4", 500, 480, 2e6),
		userAt("ue-5", 520, 540, 2e6),
	}
	return mustProblem(stations, users, core.PolicyProportionalFair)
}

func TestAGCTLBCoordinator_FeasibleScenario(t *testing.T) {
	region := coordinatorRegion()
	p := coordinatorProblem()
	c, err := NewAGCTLBCoordinator(p, CoordinatorConfig{Region: region, Seed: 1})
	if err != nil {
		t.Fatal(err)
	}
	sol, err := c.Solve(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if !sol.Feasible {
		t.Fatalf("expected a feasible solution, violations: %+v", sol.Violations)
	}
	if sol.Violations.Count() != 0 {
		t.Errorf("unexpected violations: %+v", sol.Violations)
	}
	if un := sol.Binary.Unassigned(); len(un) != 0 {
		t.Errorf("unassigned users: %v", un)
	}
	for j, load := range sol.Loads {
		if load < 0 || load >= 1 {
			t.Errorf("station %d load = %v, want in [0,1)", j, load)
		}
	}
	for _, j := range p.DroneIndices() {
		if !region.Contains(sol.Positions[j]) {
			t.Errorf("drone %d settled outside the region: %+v", j, sol.Positions[j])
		}
	}
}

func TestAGCTLBCoordinator_DeterministicUnderSeed(t *testing.T) {
	cfg := CoordinatorConfig{Region: coordinatorRegion(), Seed: 42}

	run := func() *Solution {
		c, err := NewAGCTLBCoordinator(coordinatorProblem(), cfg)
		if err != nil {
			t.Fatal(err)
		}
		sol, err := c.Solve(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		return sol
	}

	a, b := run(), run()
	for j := range a.Positions {
		if a.Positions[j] != b.Positions[j] {
			t.Errorf("station %d position differs between identical seeded runs", j)
		}
	}
	for i := range a.Binary {
		if a.Binary[i] != b.Binary[i] {
			t.Errorf("user %d association differs between identical seeded runs", i)
		}
	}
}

func TestAGCTLBCoordinator_CapacityShortfallReported(t *testing.T) {
	// A single one-slot station cannot carry three users; the solution
	// must surface the breach rather than silently drop users.
	stations := []core.StationInfo{groundAt("gs-0", 0, 0, 500, 1)}
	users := []core.UserInfo{
		userAt("ue-0", 10, 0, 1e6),
		userAt("ue-1", 0, 10, 1e6),
		userAt("ue-2", -10, 0, 1e6),
	}
	p := mustProblem(stations, users, core.PolicyProportionalFair)
	c, _ := NewAGCTLBCoordinator(p, CoordinatorConfig{Region: coordinatorRegion(), Seed: 1})
	sol, err := c.Solve(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if sol.Feasible {
		t.Fatal("over-capacity scenario reported as feasible")
	}
	if len(sol.Violations.Capacity) == 0 {
		t.Errorf("expected capacity violations, got %+v", sol.Violations)
	}
}

func TestAGCTLBCoordinator_ThroughputViolationsAreAdvisory(t *testing.T) {
	// An unreachable QoS floor must be reported without flipping the
	// hard feasibility verdict.
	stations := []core.StationInfo{groundAt("gs-0", 0, 0, 500, 10)}
	users := []core.UserInfo{
		{ID: "ue-0", Pos: core.Position3D{X: 10}, DemandBps: 1e6, MinThroughputBps: 1e15},
	}
	p := mustProblem(stations, users, core.PolicyProportionalFair)
	c, _ := NewAGCTLBCoordinator(p, CoordinatorConfig{Region: coordinatorRegion(), Seed: 1})
	sol, err := c.Solve(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if len(sol.Violations.Throughput) == 0 {
		t.Fatal("expected an advisory throughput violation")
	}
	if !sol.Feasible {
		t.Errorf("advisory throughput violation flipped feasibility: %+v", sol.Violations)
	}
}
