// Package testutil provides the problems, algorithms and island
// strategies shared by the package test suites.
package testutil

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/ow97/archi/pkg/core"
)

// Sphere minimizes sum(x_i^2) over [-5, 5]^n.
type Sphere struct {
	Dim int
}

func (s Sphere) Fitness(x core.DecisionVector) (core.FitnessVector, error) {
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return core.FitnessVector{sum}, nil
}

func (s Sphere) Bounds() (lb, ub []float64) {
	lb = make([]float64, s.Dim)
	ub = make([]float64, s.Dim)
	for i := range lb {
		lb[i] = -5
		ub[i] = 5
	}
	return lb, ub
}

func (s Sphere) Gradient(x core.DecisionVector) (core.DecisionVector, error) {
	g := make(core.DecisionVector, len(x))
	for i, v := range x {
		g[i] = 2 * v
	}
	return g, nil
}

func (s Sphere) Name() string { return "sphere" }

// BatchSphere is a Sphere that also evaluates batches itself.
type BatchSphere struct {
	Sphere
	BatchCalls atomic.Int64
}

func (b *BatchSphere) BatchFitness(ctx context.Context, xs []core.DecisionVector) ([]core.FitnessVector, error) {
	b.BatchCalls.Add(1)
	fs := make([]core.FitnessVector, len(xs))
	for i, x := range xs {
		f, err := b.Fitness(x)
		if err != nil {
			return nil, err
		}
		fs[i] = f
	}
	return fs, nil
}

// Rosenbrock minimizes the classic banana function over [-2, 2]^n.
type Rosenbrock struct {
	Dim int
}

func (r Rosenbrock) Fitness(x core.DecisionVector) (core.FitnessVector, error) {
	var sum float64
	for i := 0; i+1 < len(x); i++ {
		a := x[i+1] - x[i]*x[i]
		b := 1 - x[i]
		sum += 100*a*a + b*b
	}
	return core.FitnessVector{sum}, nil
}

func (r Rosenbrock) Bounds() (lb, ub []float64) {
	lb = make([]float64, r.Dim)
	ub = make([]float64, r.Dim)
	for i := range lb {
		lb[i] = -2
		ub[i] = 2
	}
	return lb, ub
}

func (r Rosenbrock) Name() string { return "rosenbrock" }

// BiObjective is a two-objective problem: f1 = x0^2, f2 = (x0-2)^2.
type BiObjective struct{}

func (BiObjective) Fitness(x core.DecisionVector) (core.FitnessVector, error) {
	return core.FitnessVector{x[0] * x[0], (x[0] - 2) * (x[0] - 2)}, nil
}

func (BiObjective) Bounds() (lb, ub []float64) {
	return []float64{-5}, []float64{5}
}

func (BiObjective) NObj() int { return 2 }

func (BiObjective) Name() string { return "bi_objective" }

// ConstrainedSphere minimizes sum(x_i^2) subject to the inequality
// constraint 1 - x0 <= 0 (the first component must stay at or above 1).
type ConstrainedSphere struct {
	Dim int
}

func (c ConstrainedSphere) Fitness(x core.DecisionVector) (core.FitnessVector, error) {
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return core.FitnessVector{sum, 1 - x[0]}, nil
}

func (c ConstrainedSphere) Bounds() (lb, ub []float64) {
	lb = make([]float64, c.Dim)
	ub = make([]float64, c.Dim)
	for i := range lb {
		lb[i] = -5
		ub[i] = 5
	}
	return lb, ub
}

func (c ConstrainedSphere) NEc() int { return 0 }

func (c ConstrainedSphere) NIc() int { return 1 }

func (c ConstrainedSphere) Name() string { return "constrained_sphere" }

// IntegerBox has one continuous and one integer dimension.
type IntegerBox struct{}

func (IntegerBox) Fitness(x core.DecisionVector) (core.FitnessVector, error) {
	return core.FitnessVector{x[0] + x[1]}, nil
}

func (IntegerBox) Bounds() (lb, ub []float64) {
	return []float64{0, 0}, []float64{1, 10}
}

func (IntegerBox) NIx() int { return 1 }

// FailingProblem fails every evaluation.
type FailingProblem struct {
	Dim int
}

func (f FailingProblem) Fitness(core.DecisionVector) (core.FitnessVector, error) {
	return nil, fmt.Errorf("objective deliberately unavailable")
}

func (f FailingProblem) Bounds() (lb, ub []float64) {
	lb = make([]float64, f.Dim)
	ub = make([]float64, f.Dim)
	for i := range ub {
		lb[i] = -1
		ub[i] = 1
	}
	return lb, ub
}
