package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SolverCollector bundles Prometheus metrics for solver invocations and
// provides helpers to record per-run outcomes.
type SolverCollector struct {
	gatherer prometheus.Gatherer

	Runs       *prometheus.CounterVec
	Iterations *prometheus.HistogramVec
	Durations  *prometheus.HistogramVec
	Objective  *prometheus.GaugeVec

	ScenarioStations prometheus.Gauge
	ScenarioUsers    prometheus.Gauge
}

// NewSolverCollector registers the solver metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewSolverCollector(reg prometheus.Registerer) (*SolverCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lb_solver_runs_total",
		Help: "Total number of solver invocations, labeled by solver and convergence outcome.",
	}, []string{"solver", "converged"})
	runs, err := registerCounterVec(reg, runs, "lb_solver_runs_total")
	if err != nil {
		return nil, err
	}

	iterations := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lb_solver_iterations",
		Help:    "Outer iterations consumed per solver run.",
		Buckets: []float64{1, 2, 5, 10, 20, 50, 100, 200, 500},
	}, []string{"solver"})
	iterations, err = registerHistogramVec(reg, iterations, "lb_solver_iterations")
	if err != nil {
		return nil, err
	}

	durations := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lb_solver_duration_seconds",
		Help:    "Wall-clock solver latency in seconds.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
	}, []string{"solver"})
	durations, err = registerHistogramVec(reg, durations, "lb_solver_duration_seconds")
	if err != nil {
		return nil, err
	}

	objective := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "lb_solver_objective",
		Help: "Final objective value of the most recent solver run, labeled by solver and fairness policy.",
	}, []string{"solver", "policy"})
	objective, err = registerGaugeVec(reg, objective, "lb_solver_objective")
	if err != nil {
		return nil, err
	}

	stations, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "lb_scenario_stations",
		Help: "Stations in the current scenario snapshot.",
	}), "lb_scenario_stations")
	if err != nil {
		return nil, err
	}
	users, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "lb_scenario_users",
		Help: "Users in the current scenario snapshot.",
	}), "lb_scenario_users")
	if err != nil {
		return nil, err
	}

	return &SolverCollector{
		gatherer:         gatherer,
		Runs:             runs,
		Iterations:       iterations,
		Durations:        durations,
		Objective:        objective,
		ScenarioStations: stations,
		ScenarioUsers:    users,
	}, nil
}

// ObserveRun records the outcome of one solver invocation.
func (c *SolverCollector) ObserveRun(solver, policy string, objective float64, iterations int, converged bool, elapsed time.Duration) {
	if c == nil {
		return
	}
	outcome := "false"
	if converged {
		outcome = "true"
	}
	if c.Runs != nil {
		c.Runs.WithLabelValues(solver, outcome).Inc()
	}
	if c.Iterations != nil {
		c.Iterations.WithLabelValues(solver).Observe(float64(iterations))
	}
	if c.Durations != nil {
		c.Durations.WithLabelValues(solver).Observe(elapsed.Seconds())
	}
	if c.Objective != nil {
		c.Objective.WithLabelValues(solver, policy).Set(objective)
	}
}

// SetScenarioCounts records the size of the scenario being solved.
func (c *SolverCollector) SetScenarioCounts(stations, users int) {
	if c == nil {
		return
	}
	if c.ScenarioStations != nil {
		c.ScenarioStations.Set(float64(stations))
	}
	if c.ScenarioUsers != nil {
		c.ScenarioUsers.Set(float64(users))
	}
}

// Handler exposes a ready-to-use /metrics handler.
func (c *SolverCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
