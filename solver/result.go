package solver

import "fmt"

// ViolationKind names the constraint family a violation belongs to.
type ViolationKind int

const (
	// ViolationAssignment: a user is not assigned to exactly one station.
	ViolationAssignment ViolationKind = iota
	// ViolationCapacity: a station serves more users than its capacity.
	ViolationCapacity
	// ViolationLoad: a station load left [0, maxLoad].
	ViolationLoad
	// ViolationDeployment: a drone position lies outside the region box.
	ViolationDeployment
	// ViolationThroughput: a user's achieved rate is below its QoS
	// minimum. Informational; does not affect feasibility.
	ViolationThroughput
)

func (k ViolationKind) String() string {
	switch k {
	case ViolationAssignment:
		return "assignment"
	case ViolationCapacity:
		return "capacity"
	case ViolationLoad:
		return "load"
	case ViolationDeployment:
		return "deployment"
	case ViolationThroughput:
		return "throughput"
	default:
		return "unknown"
	}
}

// Violation is one detected constraint violation. Violations are collected
// for diagnostics; solvers never repair them silently.
type Violation struct {
	Kind      ViolationKind
	StationID string
	UserID    string
	Value     float64
	Detail    string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s violation (station=%q user=%q value=%g): %s",
		v.Kind, v.StationID, v.UserID, v.Value, v.Detail)
}

// ViolationSet groups violations by constraint family.
type ViolationSet struct {
	Assignment []Violation
	Capacity   []Violation
	Load       []Violation
	Deployment []Violation
	Throughput []Violation
}

// Feasible reports whether the four hard constraint families are all
// empty. Throughput violations are advisory and do not count.
func (vs ViolationSet) Feasible() bool {
	return len(vs.Assignment) == 0 && len(vs.Capacity) == 0 &&
		len(vs.Load) == 0 && len(vs.Deployment) == 0
}

// Count returns the total number of hard violations.
func (vs ViolationSet) Count() int {
	return len(vs.Assignment) + len(vs.Capacity) + len(vs.Load) + len(vs.Deployment)
}
