package core_test

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ow97/archi/internal/testutil"
	"github.com/ow97/archi/pkg/core"
	"github.com/ow97/archi/pkg/errors"
)

func sphere2() *core.Problem {
	return core.MustProblem(testutil.Sphere{Dim: 2})
}

func TestPopulationAlignment(t *testing.T) {
	pop, err := core.NewPopulation(sphere2(), 8, 42)
	require.NoError(t, err)

	require.Equal(t, 8, pop.Len())
	require.Len(t, pop.IDs(), 8)
	require.Len(t, pop.Xs(), 8)
	require.Len(t, pop.Fs(), 8)
	for i := 0; i < pop.Len(); i++ {
		assert.Len(t, pop.Xs()[i], 2)
		assert.Len(t, pop.Fs()[i], 1)
	}
}

func TestPopulationPushBackEvaluates(t *testing.T) {
	pop := core.NewEmptyPopulation(sphere2(), 7)
	require.NoError(t, pop.PushBack(core.DecisionVector{3, 4}))

	require.Equal(t, 1, pop.Len())
	assert.Equal(t, core.DecisionVector{3, 4}, pop.Xs()[0])
	assert.Equal(t, core.FitnessVector{25}, pop.Fs()[0])
}

func TestPopulationPushBackStrongSafety(t *testing.T) {
	pop := core.NewEmptyPopulation(sphere2(), 7)
	require.NoError(t, pop.PushBack(core.DecisionVector{1, 1}))

	err := pop.PushBack(core.DecisionVector{1})
	assert.Equal(t, errors.DimensionMismatch, errors.CodeOf(err))
	assert.Equal(t, 1, pop.Len())
}

func TestPopulationDeterminism(t *testing.T) {
	a, err := core.NewPopulation(sphere2(), 16, 1234)
	require.NoError(t, err)
	b, err := core.NewPopulation(sphere2(), 16, 1234)
	require.NoError(t, err)

	assert.Equal(t, a.IDs(), b.IDs())
	assert.Equal(t, a.Xs(), b.Xs())

	c, err := core.NewPopulation(sphere2(), 16, 4321)
	require.NoError(t, err)
	assert.NotEqual(t, a.IDs(), c.IDs())
}

func TestPopulationRandomDecisionVectorWithinBounds(t *testing.T) {
	pop, err := core.NewPopulation(sphere2(), 64, 5)
	require.NoError(t, err)
	for _, x := range pop.Xs() {
		for _, v := range x {
			assert.GreaterOrEqual(t, v, -5.0)
			assert.LessOrEqual(t, v, 5.0)
		}
	}
}

func TestPopulationIntegerDimensionsRounded(t *testing.T) {
	p := core.MustProblem(testutil.IntegerBox{})
	pop, err := core.NewPopulation(p, 32, 9)
	require.NoError(t, err)
	for _, x := range pop.Xs() {
		assert.Equal(t, math.Trunc(x[1]), x[1], "integer dimension must land on the grid")
		assert.GreaterOrEqual(t, x[1], 0.0)
		assert.LessOrEqual(t, x[1], 10.0)
	}
}

func TestPopulationSetXF(t *testing.T) {
	pop, err := core.NewPopulation(sphere2(), 2, 11)
	require.NoError(t, err)
	id := pop.IDs()[1]

	require.NoError(t, pop.SetXF(1, core.DecisionVector{1, 2}, core.FitnessVector{99}))
	assert.Equal(t, core.DecisionVector{1, 2}, pop.Xs()[1])
	assert.Equal(t, core.FitnessVector{99}, pop.Fs()[1], "set_xf must not re-evaluate")
	assert.Equal(t, id, pop.IDs()[1], "ID preserved")

	err = pop.SetXF(5, core.DecisionVector{0, 0}, core.FitnessVector{0})
	assert.Equal(t, errors.OutOfRange, errors.CodeOf(err))
	err = pop.SetXF(0, core.DecisionVector{0}, core.FitnessVector{0})
	assert.Equal(t, errors.DimensionMismatch, errors.CodeOf(err))
	err = pop.SetXF(0, core.DecisionVector{0, 0}, core.FitnessVector{0, 0})
	assert.Equal(t, errors.DimensionMismatch, errors.CodeOf(err))
}

func TestPopulationSetXReevaluates(t *testing.T) {
	pop, err := core.NewPopulation(sphere2(), 1, 11)
	require.NoError(t, err)

	require.NoError(t, pop.SetX(0, core.DecisionVector{3, 4}))
	assert.Equal(t, core.FitnessVector{25}, pop.Fs()[0])
}

func TestPopulationInjectPreservesID(t *testing.T) {
	pop := core.NewEmptyPopulation(sphere2(), 3)
	require.NoError(t, pop.Inject(777, core.DecisionVector{0, 0}, core.FitnessVector{0}))
	assert.Equal(t, uint64(777), pop.IDs()[0])
}

func TestPopulationChampionUnconstrained(t *testing.T) {
	pop := core.NewEmptyPopulation(sphere2(), 3)
	require.NoError(t, pop.PushBack(core.DecisionVector{2, 2}))
	require.NoError(t, pop.PushBack(core.DecisionVector{0, 1}))
	require.NoError(t, pop.PushBack(core.DecisionVector{3, 3}))

	best, err := pop.Champion(0)
	require.NoError(t, err)
	assert.Equal(t, 1, best)

	worst, err := pop.Worst(0)
	require.NoError(t, err)
	assert.Equal(t, 2, worst)
}

func TestPopulationChampionConstrained(t *testing.T) {
	p := core.MustProblem(testutil.ConstrainedSphere{Dim: 2})
	pop := core.NewEmptyPopulation(p, 3)
	// Infeasible but excellent objective.
	require.NoError(t, pop.PushBack(core.DecisionVector{0, 0}))
	// Feasible with a worse objective.
	require.NoError(t, pop.PushBack(core.DecisionVector{1.5, 0}))
	// Feasible, better than the previous.
	require.NoError(t, pop.PushBack(core.DecisionVector{1.1, 0}))

	best, err := pop.Champion(0)
	require.NoError(t, err)
	assert.Equal(t, 2, best, "feasible individuals outrank infeasible ones")
}

func TestPopulationChampionInvalid(t *testing.T) {
	empty := core.NewEmptyPopulation(sphere2(), 1)
	_, err := empty.Champion(0)
	assert.Equal(t, errors.InvalidOperation, errors.CodeOf(err))

	mo, err := core.NewPopulation(core.MustProblem(testutil.BiObjective{}), 4, 1)
	require.NoError(t, err)
	_, err = mo.Champion(0)
	assert.Equal(t, errors.InvalidOperation, errors.CodeOf(err))
}

func TestPopulationCloneIsDeepAndReplaysRNG(t *testing.T) {
	pop, err := core.NewPopulation(sphere2(), 4, 99)
	require.NoError(t, err)

	clone := pop.Clone()
	require.Equal(t, pop.IDs(), clone.IDs())
	require.Equal(t, pop.Xs(), clone.Xs())

	// Mutating the clone leaves the original untouched.
	require.NoError(t, clone.SetXF(0, core.DecisionVector{0, 0}, core.FitnessVector{0}))
	assert.NotEqual(t, pop.Fs()[0], clone.Fs()[0])

	// Both generators continue identically.
	require.NoError(t, pop.PushBack(pop.RandomDecisionVector()))
	require.NoError(t, clone.PushBack(clone.RandomDecisionVector()))
	assert.Equal(t, pop.IDs()[4], clone.IDs()[4])
	assert.Equal(t, pop.Xs()[4], clone.Xs()[4])
}

func TestRestorePopulationRoundTrip(t *testing.T) {
	pop, err := core.NewPopulation(sphere2(), 5, 31)
	require.NoError(t, err)

	restored, err := core.RestorePopulation(sphere2(), pop.IDs(), pop.Xs(), pop.Fs(), pop.Seed(), pop.RNGDraws())
	require.NoError(t, err)
	assert.Equal(t, pop.IDs(), restored.IDs())
	assert.Equal(t, pop.Xs(), restored.Xs())
	assert.Equal(t, pop.Fs(), restored.Fs())

	// Generator state was replayed, so future draws match.
	require.NoError(t, pop.PushBack(pop.RandomDecisionVector()))
	require.NoError(t, restored.PushBack(restored.RandomDecisionVector()))
	assert.Equal(t, pop.IDs()[5], restored.IDs()[5])
	assert.Equal(t, pop.Xs()[5], restored.Xs()[5])
}

func TestNewPopulationBatch(t *testing.T) {
	bfe := core.MustBatchEvaluator(core.ThreadBfe{MaxGoroutines: 4})
	pop, err := core.NewPopulationBatch(context.Background(), sphere2(), bfe, 6, 13)
	require.NoError(t, err)
	require.Equal(t, 6, pop.Len())

	// Batch construction draws every decision vector before any ID, so
	// its individuals differ from sequential construction with the same
	// seed; only the population size is shared.
	seq, err := core.NewPopulation(sphere2(), 6, 13)
	require.NoError(t, err)
	require.Equal(t, seq.Len(), pop.Len())
}

func TestPopulationGroup(t *testing.T) {
	pop, err := core.NewPopulation(sphere2(), 3, 77)
	require.NoError(t, err)

	g := pop.Group()
	require.NoError(t, g.Validate())
	assert.Equal(t, 3, g.Len())
	assert.Equal(t, pop.IDs(), g.IDs)
}
