// Command lbsim builds a seeded random air-ground scenario and runs one of
// the load-balancing solvers against it, reporting the outcome through the
// structured logger and the Prometheus collector. It is a smoke harness for
// the engine, not the full scenario sweep driver.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"time"

	"github.com/skyfieldworks/airground-lb/core"
	"github.com/skyfieldworks/airground-lb/internal/logging"
	"github.com/skyfieldworks/airground-lb/internal/observability"
	"github.com/skyfieldworks/airground-lb/model"
	"github.com/skyfieldworks/airground-lb/solver"
)

func main() {
	var (
		solverName = flag.String("solver", "agctlb", "solver to run: psca | game | agctlb | shapley | vcg | stackelberg | all")
		policyName = flag.String("policy", "PROPORTIONAL_FAIR", "fairness policy: MIN_SUM | PROPORTIONAL_FAIR | LATENCY_OPTIMAL | MIN_MAX")
		seed       = flag.Int64("seed", 1, "random seed for scenario generation and stochastic solvers")
		users      = flag.Int("users", 40, "number of users")
		drones     = flag.Int("drones", 3, "number of drone stations")
		grounds    = flag.Int("grounds", 2, "number of ground stations")
		metricsOn  = flag.Bool("metrics", false, "serve Prometheus metrics on -metrics-addr after the run")
		metricsAdr = flag.String("metrics-addr", ":9090", "metrics listen address")
		tracingOn  = flag.Bool("tracing", false, "emit OpenTelemetry spans to stdout")
	)
	flag.Parse()

	log := logging.NewFromEnv()
	ctx := context.Background()

	policy, err := parsePolicy(*policyName)
	if err != nil {
		log.Error(ctx, "invalid policy", logging.String("error", err.Error()))
		os.Exit(2)
	}

	shutdown, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:     *tracingOn,
		ServiceName: "lbsim",
	}, log)
	if err != nil {
		log.Error(ctx, "tracing init failed", logging.String("error", err.Error()))
		os.Exit(1)
	}
	defer observability.ShutdownWithTimeout(ctx, shutdown, log)

	collector, err := observability.NewSolverCollector(nil)
	if err != nil {
		log.Error(ctx, "metrics init failed", logging.String("error", err.Error()))
		os.Exit(1)
	}

	region := model.DeploymentRegion{
		XMin: 0, XMax: 2000,
		YMin: 0, YMax: 2000,
		HMin: 60, HMax: 150,
	}
	stations, userList := buildScenario(region, *seed, *users, *drones, *grounds)
	collector.SetScenarioCounts(len(stations), len(userList))

	load := core.NewLoadModel(core.NewRateEvaluator(core.ChannelParams{}), 1500)
	problem, err := solver.NewProblem(stations, userList, policy, load)
	if err != nil {
		log.Error(ctx, "problem construction failed", logging.String("error", err.Error()))
		os.Exit(1)
	}

	names := []string{*solverName}
	if *solverName == "all" {
		names = []string{"psca", "game", "agctlb", "shapley", "vcg", "stackelberg"}
	}
	for _, name := range names {
		if err := runSolver(ctx, name, problem, region, *seed, collector, log); err != nil {
			log.Error(ctx, "solver failed",
				logging.String("solver", name),
				logging.String("error", err.Error()))
			os.Exit(1)
		}
	}

	if *metricsOn {
		log.Info(ctx, "serving metrics", logging.String("addr", *metricsAdr))
		if err := http.ListenAndServe(*metricsAdr, collector.Handler()); err != nil {
			log.Error(ctx, "metrics server failed", logging.String("error", err.Error()))
			os.Exit(1)
		}
	}
}

func runSolver(ctx context.Context, name string, problem *solver.Problem, region model.DeploymentRegion, seed int64, collector *observability.SolverCollector, log logging.Logger) error {
	tracer := observability.Tracer()
	ctx, span := tracer.Start(ctx, "solver."+name)
	defer span.End()

	start := time.Now()
	policy := problem.Policy.String()
	switch name {
	case "psca":
		s, err := solver.NewPSCASolver(problem, solver.PSCAConfig{Logger: log})
		if err != nil {
			return err
		}
		res, err := s.Solve(ctx)
		if err != nil {
			return err
		}
		collector.ObserveRun(name, policy, res.Objective, res.OuterIterations, res.Converged, time.Since(start))
		log.Info(ctx, "psca finished",
			logging.Float64("objective", res.Objective),
			logging.Int("outer_iterations", res.OuterIterations),
			logging.Bool("converged", res.Converged),
			logging.Int("violations", res.Violations.Count()))

	case "game":
		s, err := solver.NewPotentialGameSolver(problem, solver.PotentialGameConfig{
			Region: region,
			Seed:   seed,
			Logger: log,
		})
		if err != nil {
			return err
		}
		res, err := s.Solve(ctx)
		if err != nil {
			return err
		}
		collector.ObserveRun(name, policy, res.State.PotentialValue, res.Iterations, res.Converged, time.Since(start))
		log.Info(ctx, "potential game finished",
			logging.Float64("potential", res.State.PotentialValue),
			logging.Int("iterations", res.Iterations),
			logging.Bool("equilibrium", res.State.IsEquilibrium))

	case "agctlb":
		s, err := solver.NewAGCTLBCoordinator(problem, solver.CoordinatorConfig{
			Region: region,
			Seed:   seed,
			Logger: log,
		})
		if err != nil {
			return err
		}
		res, err := s.Solve(ctx)
		if err != nil {
			return err
		}
		collector.ObserveRun(name, policy, res.Objective, res.Iterations, res.Converged, time.Since(start))
		log.Info(ctx, "agctlb finished",
			logging.Float64("objective", res.Objective),
			logging.Int("iterations", res.Iterations),
			logging.Bool("feasible", res.Feasible),
			logging.Int("violations", res.Violations.Count()))

	case "shapley":
		s, err := solver.NewShapleyCooperativeSolver(problem, solver.ShapleyConfig{Seed: seed, Logger: log})
		if err != nil {
			return err
		}
		res, err := s.Solve(ctx)
		if err != nil {
			return err
		}
		collector.ObserveRun(name, policy, res.CoalitionValue, res.Samples, !res.Approximate, time.Since(start))
		log.Info(ctx, "shapley finished",
			logging.Float64("coalition_value", res.CoalitionValue),
			logging.Bool("approximate", res.Approximate),
			logging.Any("values", res.Values))

	case "vcg":
		s, err := solver.NewVCGAuctionSolver(problem, solver.VCGConfig{Logger: log})
		if err != nil {
			return err
		}
		res, err := s.Solve(ctx)
		if err != nil {
			return err
		}
		collector.ObserveRun(name, policy, res.Welfare, 1, true, time.Since(start))
		log.Info(ctx, "vcg auction finished",
			logging.Float64("welfare", res.Welfare),
			logging.Float64("revenue", res.Revenue))

	case "stackelberg":
		s, err := solver.NewStackelbergSolver(problem, solver.StackelbergConfig{
			Region: region,
			Logger: log,
		})
		if err != nil {
			return err
		}
		res, err := s.Solve(ctx)
		if err != nil {
			return err
		}
		collector.ObserveRun(name, policy, res.Objective, res.Rounds, res.Converged, time.Since(start))
		log.Info(ctx, "stackelberg finished",
			logging.Float64("objective", res.Objective),
			logging.Int("rounds", res.Rounds),
			logging.Bool("converged", res.Converged))

	default:
		return fmt.Errorf("unknown solver %q", name)
	}
	return nil
}

// buildScenario places ground stations on a fixed diagonal, drones at
// random region positions and users uniformly over the ground plane.
func buildScenario(region model.DeploymentRegion, seed int64, nUsers, nDrones, nGrounds int) ([]model.Station, []*model.User) {
	rng := rand.New(rand.NewSource(seed))

	stations := make([]model.Station, 0, nDrones+nGrounds)
	for g := 0; g < nGrounds; g++ {
		frac := (float64(g) + 1) / (float64(nGrounds) + 1)
		stations = append(stations, &model.GroundStation{
			StationID:      fmt.Sprintf("gs-%d", g),
			Pos:            core.Position3D{X: region.XMax * frac, Y: region.YMax * frac, Z: 25},
			Bandwidth:      20e6,
			Capacity:       30,
			PowerW:         40,
			CoverageRadius: 1500,
		})
	}
	for d := 0; d < nDrones; d++ {
		stations = append(stations, &model.DroneStation{
			StationID:      fmt.Sprintf("uav-%d", d),
			Pos:            region.RandomPosition(rng),
			Bandwidth:      10e6,
			Capacity:       15,
			PowerW:         5,
			CoverageRadius: 800,
			MinAltitudeM:   region.HMin,
			MaxAltitudeM:   region.HMax,
			EnergyJ:        500_000,
		})
	}

	users := make([]*model.User, nUsers)
	for i := range users {
		users[i] = &model.User{
			UserID: fmt.Sprintf("ue-%d", i),
			Pos: core.Position3D{
				X: rng.Float64() * region.XMax,
				Y: rng.Float64() * region.YMax,
			},
			DataRate:               512_000 + rng.Float64()*1_536_000,
			MaxAcceptableLatencyMs: 100,
			MinRequiredThroughput:  256_000,
		}
	}
	return stations, users
}

func parsePolicy(name string) (core.FairnessPolicy, error) {
	switch name {
	case "MIN_SUM":
		return core.PolicyMinSum, nil
	case "PROPORTIONAL_FAIR":
		return core.PolicyProportionalFair, nil
	case "LATENCY_OPTIMAL":
		return core.PolicyLatencyOptimal, nil
	case "MIN_MAX":
		return core.PolicyMinMax, nil
	default:
		return 0, fmt.Errorf("unknown fairness policy %q", name)
	}
}
