// Package migration holds the policies an archipelago applies when
// moving individuals between islands: which individuals leave a
// population (selection) and how arrivals enter one (merging).
package migration

import (
	"github.com/ow97/archi/pkg/core"
	"github.com/ow97/archi/pkg/errors"
)

// SelectPolicy chooses the emigrants an island publishes after a
// successful evolution.
type SelectPolicy interface {
	Select(pop *core.Population) (core.IndividualsGroup, error)
	Name() string
}

// MergePolicy folds pulled migrants into a destination population.
type MergePolicy interface {
	Merge(pop *core.Population, migrants core.IndividualsGroup) error
	Name() string
}

// Policy bundles a selection and a merge policy. The zero value selects
// the champion and appends arrivals.
type Policy struct {
	Select SelectPolicy
	Merge  MergePolicy
}

// Default returns the champion/append policy pair.
func Default() Policy {
	return Policy{Select: Champion{}, Merge: Append{}}
}

// Normalized fills in defaults for unset halves of the policy.
func (p Policy) Normalized() Policy {
	if p.Select == nil {
		p.Select = Champion{}
	}
	if p.Merge == nil {
		p.Merge = Append{}
	}
	return p
}

// Champion selects the single best individual. For multi-objective
// populations the head of the non-dominated ordering stands in for the
// champion.
type Champion struct {
	// Tol is the constraint tolerance used by the champion ordering.
	Tol float64
}

func (c Champion) Select(pop *core.Population) (core.IndividualsGroup, error) {
	var g core.IndividualsGroup
	if pop.Len() == 0 {
		return g, nil
	}
	var best int
	if pop.Problem().Nobj() > 1 {
		order, err := core.SortPopulationMo(pop.Fs())
		if err != nil {
			return g, err
		}
		best = order[0]
	} else {
		var err error
		best, err = pop.Champion(c.Tol)
		if err != nil {
			return g, err
		}
	}
	g.Push(pop.IDs()[best], pop.Xs()[best], pop.Fs()[best])
	return g, nil
}

func (Champion) Name() string { return "champion" }

// TopK selects the K best individuals under the champion ordering for
// single-objective populations and the non-dominated ordering otherwise.
type TopK struct {
	K   int
	Tol float64
}

func (t TopK) Select(pop *core.Population) (core.IndividualsGroup, error) {
	var g core.IndividualsGroup
	k := t.K
	if k <= 0 {
		k = 1
	}
	if pop.Len() == 0 {
		return g, nil
	}
	if k > pop.Len() {
		k = pop.Len()
	}

	var order []int
	var err error
	if pop.Problem().Nobj() > 1 {
		order, err = core.SortPopulationMo(pop.Fs())
	} else if pop.Problem().Nc() > 0 {
		tol := make([]float64, pop.Problem().Nc())
		for i := range tol {
			tol[i] = t.Tol
		}
		order, err = core.SortPopulationCon(pop.Fs(), pop.Problem().Nec(), tol)
	} else {
		order, err = core.SortPopulationMo(pop.Fs())
	}
	if err != nil {
		return g, err
	}
	for _, idx := range order[:k] {
		g.Push(pop.IDs()[idx], pop.Xs()[idx], pop.Fs()[idx])
	}
	return g, nil
}

func (TopK) Name() string { return "top_k" }

// Append grows the destination population with every arrival.
type Append struct{}

func (Append) Merge(pop *core.Population, migrants core.IndividualsGroup) error {
	if err := migrants.Validate(); err != nil {
		return err
	}
	for i := 0; i < migrants.Len(); i++ {
		if err := pop.Inject(migrants.IDs[i], migrants.Xs[i], migrants.Fs[i]); err != nil {
			return err
		}
	}
	return nil
}

func (Append) Name() string { return "append" }

// ReplaceWorst overwrites the current worst resident with each arrival
// that improves on it. Only meaningful for single-objective populations;
// multi-objective destinations fall back to appending.
type ReplaceWorst struct {
	Tol float64
}

func (r ReplaceWorst) Merge(pop *core.Population, migrants core.IndividualsGroup) error {
	if err := migrants.Validate(); err != nil {
		return err
	}
	if pop.Problem().Nobj() > 1 || pop.Len() == 0 {
		return Append{}.Merge(pop, migrants)
	}
	for i := 0; i < migrants.Len(); i++ {
		worst, err := pop.Worst(r.Tol)
		if err != nil {
			return err
		}
		better, err := r.improves(pop, migrants.Fs[i], pop.Fs()[worst])
		if err != nil {
			return err
		}
		if !better {
			continue
		}
		if err := pop.ReplaceIndividual(worst, migrants.IDs[i], migrants.Xs[i], migrants.Fs[i]); err != nil {
			return err
		}
	}
	return nil
}

// improves reports whether the incoming fitness outranks the resident
// one under the constrained single-objective ordering.
func (r ReplaceWorst) improves(pop *core.Population, incoming, resident core.FitnessVector) (bool, error) {
	nc := pop.Problem().Nc()
	if nc == 0 {
		return incoming[0] < resident[0], nil
	}
	tol := make([]float64, nc)
	for i := range tol {
		tol[i] = r.Tol
	}
	order, err := core.SortPopulationCon([]core.FitnessVector{resident, incoming}, pop.Problem().Nec(), tol)
	if err != nil {
		return false, err
	}
	return order[0] == 1, nil
}

func (ReplaceWorst) Name() string { return "replace_worst" }

// ByName resolves policy halves from their configuration names.
func ByName(selectName string, k int, mergeName string) (Policy, error) {
	var p Policy
	switch selectName {
	case "", "champion":
		p.Select = Champion{}
	case "topk", "top_k":
		p.Select = TopK{K: k}
	default:
		return p, errors.Newf(errors.ContractViolation, "unknown selection policy %q", selectName)
	}
	switch mergeName {
	case "", "append":
		p.Merge = Append{}
	case "replace_worst":
		p.Merge = ReplaceWorst{}
	default:
		return p, errors.Newf(errors.ContractViolation, "unknown merge policy %q", mergeName)
	}
	return p, nil
}
