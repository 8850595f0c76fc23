package core

// WeightSumTolerance is the tolerance within which a user's fractional
// association weights must sum to one.
const WeightSumTolerance = 1e-6

// FractionalAssignment maps every user (row) to a weight per station
// (column). A valid assignment has each row summing to 1 within
// WeightSumTolerance, with every weight in [0, 1].
type FractionalAssignment [][]float64

// NewFractionalAssignment allocates a zeroed nUsers × nStations assignment.
func NewFractionalAssignment(nUsers, nStations int) FractionalAssignment {
	a := make(FractionalAssignment, nUsers)
	for i := range a {
		a[i] = make([]float64, nStations)
	}
	return a
}

// Clone deep-copies the assignment.
func (a FractionalAssignment) Clone() FractionalAssignment {
	out := make(FractionalAssignment, len(a))
	for i, row := range a {
		out[i] = make([]float64, len(row))
		copy(out[i], row)
	}
	return out
}

// RowSum returns the total weight of one user's row.
func (a FractionalAssignment) RowSum(user int) float64 {
	sum := 0.0
	for _, w := range a[user] {
		sum += w
	}
	return sum
}

// InvalidRows returns the indices of users whose weights do not sum to one
// within the given tolerance.
func (a FractionalAssignment) InvalidRows(tol float64) []int {
	var bad []int
	for i := range a {
		sum := a.RowSum(i)
		if sum < 1-tol || sum > 1+tol {
			bad = append(bad, i)
		}
	}
	return bad
}

// Binarize assigns each user to the station carrying its highest weight.
// Ties break toward the lowest station index so the result is deterministic.
func (a FractionalAssignment) Binarize() BinaryAssignment {
	b := make(BinaryAssignment, len(a))
	for i, row := range a {
		best := -1
		bestW := 0.0
		for j, w := range row {
			if w > bestW {
				best, bestW = j, w
			}
		}
		b[i] = best
	}
	return b
}

// BinaryAssignment maps each user index to a station index, or -1 for an
// unassigned user.
type BinaryAssignment []int

// NewBinaryAssignment allocates an all-unassigned assignment.
func NewBinaryAssignment(nUsers int) BinaryAssignment {
	b := make(BinaryAssignment, nUsers)
	for i := range b {
		b[i] = -1
	}
	return b
}

// Clone copies the assignment.
func (b BinaryAssignment) Clone() BinaryAssignment {
	out := make(BinaryAssignment, len(b))
	copy(out, b)
	return out
}

// StationCounts returns the number of users assigned per station.
func (b BinaryAssignment) StationCounts(nStations int) []int {
	counts := make([]int, nStations)
	for _, j := range b {
		if j >= 0 && j < nStations {
			counts[j]++
		}
	}
	return counts
}

// UsersOf returns the indices of users assigned to station j.
func (b BinaryAssignment) UsersOf(j int) []int {
	var users []int
	for i, sj := range b {
		if sj == j {
			users = append(users, i)
		}
	}
	return users
}

// Unassigned returns the indices of users without a station.
func (b BinaryAssignment) Unassigned() []int {
	var users []int
	for i, sj := range b {
		if sj < 0 {
			users = append(users, i)
		}
	}
	return users
}

// ToFractional converts a binary assignment into the equivalent 0/1
// fractional one.
func (b BinaryAssignment) ToFractional(nStations int) FractionalAssignment {
	a := NewFractionalAssignment(len(b), nStations)
	for i, j := range b {
		if j >= 0 && j < nStations {
			a[i][j] = 1
		}
	}
	return a
}
