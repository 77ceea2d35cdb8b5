package core

import (
	"context"
	"math"
	"math/rand"

	"github.com/ow97/archi/pkg/errors"
)

// Population is an ordered collection of individuals bound to a problem.
// Each individual is a triple (unique ID, decision vector, fitness
// vector); the three internal slices are kept aligned at all times.
//
// Populations are not safe for concurrent use; islands guard them with
// their own mutex and hand out deep copies.
type Population struct {
	prob *Problem
	ids  []uint64
	xs   []DecisionVector
	fs   []FitnessVector

	// rng drives IDs and random decision vectors. draws counts the
	// values consumed so the generator can be replayed by Clone and by
	// deserialization.
	rng   *rand.Rand
	draws uint64
	seed  uint64
}

// NewPopulation builds a population of size random individuals, drawing
// decision vectors uniformly within the problem bounds.
func NewPopulation(prob *Problem, size int, seed uint64) (*Population, error) {
	p := NewEmptyPopulation(prob, seed)
	for i := 0; i < size; i++ {
		if err := p.PushBack(p.RandomDecisionVector()); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// NewEmptyPopulation builds a population with no individuals.
func NewEmptyPopulation(prob *Problem, seed uint64) *Population {
	return &Population{
		prob: prob,
		rng:  newRNG(seed),
		seed: seed,
	}
}

// NewPopulationBatch builds a population of size random individuals,
// evaluating them in one batch through bfe.
func NewPopulationBatch(ctx context.Context, prob *Problem, bfe *BatchEvaluator, size int, seed uint64) (*Population, error) {
	p := NewEmptyPopulation(prob, seed)
	xs := make([]DecisionVector, size)
	for i := range xs {
		xs[i] = p.RandomDecisionVector()
	}
	fs, err := bfe.Evaluate(ctx, prob, xs)
	if err != nil {
		return nil, err
	}
	for i := range xs {
		if err := p.PushBackXF(xs[i], fs[i]); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// RestorePopulation rebuilds a population from persisted state. draws is
// the number of generator values the original population had consumed.
func RestorePopulation(prob *Problem, ids []uint64, xs []DecisionVector, fs []FitnessVector, seed, draws uint64) (*Population, error) {
	if len(ids) != len(xs) || len(ids) != len(fs) {
		return nil, errors.Newf(errors.ContractViolation,
			"misaligned population state: %d ids, %d decision vectors, %d fitness vectors",
			len(ids), len(xs), len(fs))
	}
	for i := range xs {
		if len(xs[i]) != prob.Nx() {
			return nil, errors.Newf(errors.DimensionMismatch,
				"decision vector %d has size %d for a problem of dimension %d", i, len(xs[i]), prob.Nx())
		}
		if len(fs[i]) != prob.Nf() {
			return nil, errors.Newf(errors.DimensionMismatch,
				"fitness vector %d has size %d for a problem with fitness dimension %d", i, len(fs[i]), prob.Nf())
		}
	}
	p := &Population{
		prob: prob,
		ids:  append([]uint64(nil), ids...),
		xs:   make([]DecisionVector, len(xs)),
		fs:   make([]FitnessVector, len(fs)),
		rng:  newRNG(seed),
		seed: seed,
	}
	for i := range xs {
		p.xs[i] = xs[i].Clone()
		p.fs[i] = fs[i].Clone()
	}
	p.skip(draws)
	return p, nil
}

// next draws one generator value, tracking the replay counter.
func (p *Population) next() uint64 {
	p.draws++
	return p.rng.Uint64()
}

// nextFloat draws one uniform value in [0, 1), tracking the counter.
func (p *Population) nextFloat() float64 {
	p.draws++
	return p.rng.Float64()
}

// skip advances the generator by n values.
func (p *Population) skip(n uint64) {
	for i := uint64(0); i < n; i++ {
		p.rng.Uint64()
	}
	p.draws += n
}

// PushBack appends the decision vector x as a new individual: x is
// evaluated, a fresh 64-bit ID is drawn, and the triple is appended. The
// population is unchanged if evaluation or validation fails, though the
// generator will have advanced.
func (p *Population) PushBack(x DecisionVector) error {
	id := p.next()
	f, err := p.prob.Fitness(x)
	if err != nil {
		return err
	}
	p.ids = append(p.ids, id)
	p.xs = append(p.xs, x.Clone())
	p.fs = append(p.fs, f)
	return nil
}

// PushBackXF appends (x, f) as a new individual without evaluating,
// drawing a fresh ID. The caller vouches for f being the fitness of x.
func (p *Population) PushBackXF(x DecisionVector, f FitnessVector) error {
	if len(x) != p.prob.Nx() {
		return errors.Newf(errors.DimensionMismatch,
			"decision vector of size %d appended to a population with problem dimension %d", len(x), p.prob.Nx())
	}
	if len(f) != p.prob.Nf() {
		return errors.Newf(errors.DimensionMismatch,
			"fitness vector of size %d appended to a population with fitness dimension %d", len(f), p.prob.Nf())
	}
	p.ids = append(p.ids, p.next())
	p.xs = append(p.xs, x.Clone())
	p.fs = append(p.fs, f.Clone())
	return nil
}

// Inject appends an individual preserving its ID, the migration path: a
// migrant keeps its identity across islands.
func (p *Population) Inject(id uint64, x DecisionVector, f FitnessVector) error {
	if len(x) != p.prob.Nx() {
		return errors.Newf(errors.DimensionMismatch,
			"decision vector of size %d injected into a population with problem dimension %d", len(x), p.prob.Nx())
	}
	if len(f) != p.prob.Nf() {
		return errors.Newf(errors.DimensionMismatch,
			"fitness vector of size %d injected into a population with fitness dimension %d", len(f), p.prob.Nf())
	}
	p.ids = append(p.ids, id)
	p.xs = append(p.xs, x.Clone())
	p.fs = append(p.fs, f.Clone())
	return nil
}

// RandomDecisionVector draws a vector uniformly within the problem
// bounds; trailing integer dimensions are rounded to the grid.
func (p *Population) RandomDecisionVector() DecisionVector {
	lb, ub := p.prob.lb, p.prob.ub
	nx, nix := p.prob.Nx(), p.prob.Nix()
	x := make(DecisionVector, nx)
	for i := range x {
		v := lb[i] + (ub[i]-lb[i])*p.nextFloat()
		if i >= nx-nix {
			v = math.Round(v)
			if v < lb[i] {
				v = math.Ceil(lb[i])
			}
			if v > ub[i] {
				v = math.Floor(ub[i])
			}
		}
		x[i] = v
	}
	return x
}

// SetXF overwrites individual i in place with (x, f), keeping its ID and
// skipping evaluation.
func (p *Population) SetXF(i int, x DecisionVector, f FitnessVector) error {
	if i < 0 || i >= p.Len() {
		return errors.Newf(errors.OutOfRange,
			"individual index %d out of range for population of size %d", i, p.Len())
	}
	if len(x) != p.prob.Nx() {
		return errors.Newf(errors.DimensionMismatch,
			"decision vector of size %d set on a population with problem dimension %d", len(x), p.prob.Nx())
	}
	if len(f) != p.prob.Nf() {
		return errors.Newf(errors.DimensionMismatch,
			"fitness vector of size %d set on a population with fitness dimension %d", len(f), p.prob.Nf())
	}
	copy(p.xs[i], x)
	copy(p.fs[i], f)
	return nil
}

// SetX overwrites individual i's decision vector, re-evaluating its
// fitness. The ID is preserved.
func (p *Population) SetX(i int, x DecisionVector) error {
	f, err := p.prob.Fitness(x)
	if err != nil {
		return err
	}
	return p.SetXF(i, x, f)
}

// ReplaceIndividual overwrites individual i entirely, including its ID.
// Used when a migrant displaces a resident.
func (p *Population) ReplaceIndividual(i int, id uint64, x DecisionVector, f FitnessVector) error {
	if err := p.SetXF(i, x, f); err != nil {
		return err
	}
	p.ids[i] = id
	return nil
}

// Champion returns the index of the best individual under the scalar
// tolerance tol, broadcast to every constraint.
func (p *Population) Champion(tol float64) (int, error) {
	nc := p.prob.Nc()
	tolv := make([]float64, nc)
	for i := range tolv {
		tolv[i] = tol
	}
	return p.ChampionTol(tolv)
}

// ChampionTol returns the index of the best individual, with one
// tolerance per constraint. Only defined for non-empty single-objective
// populations.
func (p *Population) ChampionTol(tol []float64) (int, error) {
	if p.Len() == 0 {
		return 0, errors.New(errors.InvalidOperation, "cannot determine the champion of an empty population")
	}
	if p.prob.Nobj() > 1 {
		return 0, errors.New(errors.InvalidOperation, "champion is only defined for single-objective problems")
	}
	if p.prob.Nc() > 0 {
		order, err := SortPopulationCon(p.fs, p.prob.Nec(), tol)
		if err != nil {
			return 0, err
		}
		return order[0], nil
	}
	best := 0
	for i := 1; i < p.Len(); i++ {
		if p.fs[i][0] < p.fs[best][0] {
			best = i
		}
	}
	return best, nil
}

// Worst returns the index of the worst individual under the scalar
// tolerance tol. Same preconditions as Champion.
func (p *Population) Worst(tol float64) (int, error) {
	if p.Len() == 0 {
		return 0, errors.New(errors.InvalidOperation, "cannot determine the worst of an empty population")
	}
	if p.prob.Nobj() > 1 {
		return 0, errors.New(errors.InvalidOperation, "worst is only defined for single-objective problems")
	}
	if p.prob.Nc() > 0 {
		nc := p.prob.Nc()
		tolv := make([]float64, nc)
		for i := range tolv {
			tolv[i] = tol
		}
		order, err := SortPopulationCon(p.fs, p.prob.Nec(), tolv)
		if err != nil {
			return 0, err
		}
		return order[len(order)-1], nil
	}
	worst := 0
	for i := 1; i < p.Len(); i++ {
		if p.fs[i][0] > p.fs[worst][0] {
			worst = i
		}
	}
	return worst, nil
}

// Len reports the number of individuals.
func (p *Population) Len() int { return len(p.ids) }

// IDs is a read-only view of the individual IDs. Callers must not
// modify it.
func (p *Population) IDs() []uint64 { return p.ids }

// Xs is a read-only view of the decision vectors.
func (p *Population) Xs() []DecisionVector { return p.xs }

// Fs is a read-only view of the fitness vectors.
func (p *Population) Fs() []FitnessVector { return p.fs }

// Problem returns the population's problem handle.
func (p *Population) Problem() *Problem { return p.prob }

// Seed returns the seed the population generator was created from.
func (p *Population) Seed() uint64 { return p.seed }

// RNGDraws reports how many generator values the population has
// consumed. Together with Seed it pins the generator state.
func (p *Population) RNGDraws() uint64 { return p.draws }

// Group copies the population content into an IndividualsGroup.
func (p *Population) Group() IndividualsGroup {
	g := IndividualsGroup{
		IDs: append([]uint64(nil), p.ids...),
		Xs:  make([]DecisionVector, len(p.xs)),
		Fs:  make([]FitnessVector, len(p.fs)),
	}
	for i := range p.xs {
		g.Xs[i] = p.xs[i].Clone()
		g.Fs[i] = p.fs[i].Clone()
	}
	return g
}

// Clone deep-copies the population, including the exact generator state.
func (p *Population) Clone() *Population {
	out := &Population{
		prob: p.prob.Clone(),
		ids:  append([]uint64(nil), p.ids...),
		xs:   make([]DecisionVector, len(p.xs)),
		fs:   make([]FitnessVector, len(p.fs)),
		rng:  newRNG(p.seed),
		seed: p.seed,
	}
	for i := range p.xs {
		out.xs[i] = p.xs[i].Clone()
		out.fs[i] = p.fs[i].Clone()
	}
	out.skip(p.draws)
	return out
}
