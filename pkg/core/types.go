package core

import (
	"github.com/ow97/archi/pkg/errors"
)

// DecisionVector is a candidate solution, one value per problem dimension.
type DecisionVector []float64

// FitnessVector holds objectives followed by equality and inequality
// constraints: [obj..., eq..., ineq...].
type FitnessVector []float64

// Clone returns an independent copy of the vector.
func (v DecisionVector) Clone() DecisionVector {
	if v == nil {
		return nil
	}
	out := make(DecisionVector, len(v))
	copy(out, v)
	return out
}

// Clone returns an independent copy of the vector.
func (v FitnessVector) Clone() FitnessVector {
	if v == nil {
		return nil
	}
	out := make(FitnessVector, len(v))
	copy(out, v)
	return out
}

// IndividualsGroup is a set of individuals as three parallel slices.
// It is the unit of exchange between islands during migration.
type IndividualsGroup struct {
	IDs []uint64         `json:"ids"`
	Xs  []DecisionVector `json:"xs"`
	Fs  []FitnessVector  `json:"fs"`
}

// Len reports the number of individuals in the group.
func (g IndividualsGroup) Len() int {
	return len(g.IDs)
}

// Validate checks that the three slices are aligned.
func (g IndividualsGroup) Validate() error {
	if len(g.IDs) != len(g.Xs) || len(g.IDs) != len(g.Fs) {
		return errors.Newf(errors.ContractViolation,
			"misaligned individuals group: %d ids, %d decision vectors, %d fitness vectors",
			len(g.IDs), len(g.Xs), len(g.Fs))
	}
	return nil
}

// Clone returns a deep copy of the group.
func (g IndividualsGroup) Clone() IndividualsGroup {
	out := IndividualsGroup{
		IDs: append([]uint64(nil), g.IDs...),
		Xs:  make([]DecisionVector, len(g.Xs)),
		Fs:  make([]FitnessVector, len(g.Fs)),
	}
	for i, x := range g.Xs {
		out.Xs[i] = x.Clone()
	}
	for i, f := range g.Fs {
		out.Fs[i] = f.Clone()
	}
	return out
}

// Push appends one individual to the group.
func (g *IndividualsGroup) Push(id uint64, x DecisionVector, f FitnessVector) {
	g.IDs = append(g.IDs, id)
	g.Xs = append(g.Xs, x.Clone())
	g.Fs = append(g.Fs, f.Clone())
}
