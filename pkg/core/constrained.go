package core

import (
	"math"
	"sort"

	"github.com/ow97/archi/pkg/errors"
)

// violation summarizes how badly a fitness vector breaks its constraints.
type violation struct {
	count int     // number of violated constraints
	norm  float64 // l2 norm of the violation amounts
}

// constraintViolation measures f against nec equality and the remaining
// inequality constraints, using one tolerance per constraint. The fitness
// layout is [objectives..., eq..., ineq...] with a single objective.
func constraintViolation(f FitnessVector, nec int, tol []float64) violation {
	var v violation
	cs := f[len(f)-len(tol):]
	for i, c := range cs {
		var amount float64
		if i < nec {
			amount = math.Abs(c) - tol[i]
		} else {
			amount = c - tol[i]
		}
		if amount > 0 {
			v.count++
			v.norm += amount * amount
		}
	}
	v.norm = math.Sqrt(v.norm)
	return v
}

// lessFc orders two single-objective constrained fitness vectors:
// feasible before infeasible, feasible ties by objective, infeasible ties
// by violated-constraint count and then by aggregated violation.
func lessFc(f1, f2 FitnessVector, nec int, tol []float64) bool {
	v1 := constraintViolation(f1, nec, tol)
	v2 := constraintViolation(f2, nec, tol)
	switch {
	case v1.count == 0 && v2.count == 0:
		return f1[0] < f2[0]
	case v1.count == 0:
		return true
	case v2.count == 0:
		return false
	case v1.count != v2.count:
		return v1.count < v2.count
	case v1.norm != v2.norm:
		return v1.norm < v2.norm
	default:
		return f1[0] < f2[0]
	}
}

// SortPopulationCon returns the indices of fs sorted best-first under the
// standard constrained single-objective ordering. Each fitness vector is
// laid out as [objective, eq..., ineq...]; tol holds one tolerance per
// constraint.
func SortPopulationCon(fs []FitnessVector, nec int, tol []float64) ([]int, error) {
	if len(fs) == 0 {
		return nil, errors.New(errors.InvalidOperation, "cannot sort an empty set of fitness vectors")
	}
	nc := len(fs[0]) - 1
	if nec < 0 || nec > nc {
		return nil, errors.Newf(errors.ContractViolation,
			"%d equality constraints declared for fitness vectors with %d constraint components", nec, nc)
	}
	if len(tol) != nc {
		return nil, errors.Newf(errors.ContractViolation,
			"%d tolerances supplied for %d constraints", len(tol), nc)
	}
	for i, f := range fs {
		if len(f) != nc+1 {
			return nil, errors.Newf(errors.DimensionMismatch,
				"fitness vector %d has size %d, expected %d", i, len(f), nc+1)
		}
	}

	idx := make([]int, len(fs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return lessFc(fs[idx[a]], fs[idx[b]], nec, tol)
	})
	return idx, nil
}

// dominates reports Pareto dominance of f1 over f2 (minimization).
func dominates(f1, f2 FitnessVector) bool {
	strictly := false
	for i := range f1 {
		if f1[i] > f2[i] {
			return false
		}
		if f1[i] < f2[i] {
			strictly = true
		}
	}
	return strictly
}

// FastNonDominatedSort partitions fs into Pareto fronts, best front first.
func FastNonDominatedSort(fs []FitnessVector) [][]int {
	n := len(fs)
	dominated := make([][]int, n)
	domCount := make([]int, n)
	var first []int

	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			if dominates(fs[i], fs[j]) {
				dominated[i] = append(dominated[i], j)
			} else if dominates(fs[j], fs[i]) {
				domCount[i]++
			}
		}
		if domCount[i] == 0 {
			first = append(first, i)
		}
	}

	var fronts [][]int
	current := first
	for len(current) > 0 {
		fronts = append(fronts, current)
		var next []int
		for _, i := range current {
			for _, j := range dominated[i] {
				domCount[j]--
				if domCount[j] == 0 {
					next = append(next, j)
				}
			}
		}
		current = next
	}
	return fronts
}

// crowdingDistance computes the crowding measure of each member of a
// front, indexed like front.
func crowdingDistance(fs []FitnessVector, front []int) []float64 {
	dist := make([]float64, len(front))
	if len(front) <= 2 {
		for i := range dist {
			dist[i] = math.Inf(1)
		}
		return dist
	}
	nf := len(fs[front[0]])
	order := make([]int, len(front))
	for m := 0; m < nf; m++ {
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(a, b int) bool {
			return fs[front[order[a]]][m] < fs[front[order[b]]][m]
		})
		lo := fs[front[order[0]]][m]
		hi := fs[front[order[len(order)-1]]][m]
		dist[order[0]] = math.Inf(1)
		dist[order[len(order)-1]] = math.Inf(1)
		if hi == lo {
			continue
		}
		for k := 1; k < len(order)-1; k++ {
			prev := fs[front[order[k-1]]][m]
			next := fs[front[order[k+1]]][m]
			dist[order[k]] += (next - prev) / (hi - lo)
		}
	}
	return dist
}

// SortPopulationMo returns a strict best-first ordering of multi-objective
// fitness vectors: by non-dominated front, then by descending crowding
// distance within each front.
func SortPopulationMo(fs []FitnessVector) ([]int, error) {
	if len(fs) == 0 {
		return nil, errors.New(errors.InvalidOperation, "cannot sort an empty set of fitness vectors")
	}
	nf := len(fs[0])
	for i, f := range fs {
		if len(f) != nf {
			return nil, errors.Newf(errors.DimensionMismatch,
				"fitness vector %d has size %d, expected %d", i, len(f), nf)
		}
	}

	var out []int
	for _, front := range FastNonDominatedSort(fs) {
		dist := crowdingDistance(fs, front)
		order := make([]int, len(front))
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(a, b int) bool {
			return dist[order[a]] > dist[order[b]]
		})
		for _, k := range order {
			out = append(out, front[k])
		}
	}
	return out, nil
}
