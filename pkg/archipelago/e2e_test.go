package archipelago_test

import (
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ow97/archi/internal/testutil"
	"github.com/ow97/archi/pkg/archipelago"
	"github.com/ow97/archi/pkg/core"
	"github.com/ow97/archi/pkg/island"
	"github.com/ow97/archi/pkg/metrics"
	"github.com/ow97/archi/pkg/topology"
)

// A single island descends the sphere function to the origin.
func TestSingleObjectiveDescent(t *testing.T) {
	prob := core.MustProblem(testutil.Sphere{Dim: 2})
	isl, err := island.NewFromProblem(
		core.MustAlgorithm(testutil.GradientDescent{Rate: 0.1, Steps: 10}), prob, 4, 42)
	require.NoError(t, err)

	a := archipelago.New()
	t.Cleanup(a.Close)
	require.NoError(t, a.PushBack(isl))

	a.Evolve(10)
	require.NoError(t, a.WaitCheck())

	pop := isl.Population()
	for _, f := range pop.Fs() {
		assert.LessOrEqual(t, f[0], 1e-3)
	}

	best, err := pop.Champion(0)
	require.NoError(t, err)
	x := pop.Xs()[best]
	norm := math.Sqrt(x[0]*x[0] + x[1]*x[1])
	assert.LessOrEqual(t, norm, 0.05)

	xs, err := a.ChampionsX()
	require.NoError(t, err)
	assert.Equal(t, pop.Xs()[best], xs[0])
}

// A well-connected archipelago spreads a superior individual and every
// island's champion ends up at least as good.
func TestMigrationSpreadsTheBest(t *testing.T) {
	topo, err := topology.NewFullyConnected(0, 1.0)
	require.NoError(t, err)
	collector := metrics.MustNew(prometheus.NewRegistry())
	a := archipelago.New(
		archipelago.WithTopology(topo),
		archipelago.WithSeed(11),
		archipelago.WithMetrics(collector),
	)
	t.Cleanup(a.Close)

	prob := core.MustProblem(testutil.Sphere{Dim: 2})

	// One island starts with the exact optimum in its population.
	seeded := core.NewEmptyPopulation(prob, 1)
	require.NoError(t, seeded.PushBack(core.DecisionVector{0, 0}))
	isl0, err := island.New(core.MustAlgorithm(testutil.Identity{}), seeded)
	require.NoError(t, err)
	require.NoError(t, a.PushBack(isl0))

	for i := 0; i < 3; i++ {
		isl, err := island.NewFromProblem(core.MustAlgorithm(testutil.Identity{}), prob, 4, uint64(100+i))
		require.NoError(t, err)
		require.NoError(t, a.PushBack(isl))
	}

	// Several waves: the first publishes, the following ones pull.
	for w := 0; w < 3; w++ {
		a.Evolve(1)
		require.NoError(t, a.WaitCheck())
	}

	fs, err := a.ChampionsF()
	require.NoError(t, err)
	for i, f := range fs {
		assert.Zero(t, f[0], "island %d should have received the optimum", i)
	}
}

// Evolving while pushing more islands keeps the index map and migrant
// database consistent.
func TestGrowthDuringEvolution(t *testing.T) {
	a := archipelago.New(archipelago.WithSeed(1))
	t.Cleanup(a.Close)
	prob := core.MustProblem(testutil.Sphere{Dim: 2})

	for i := 0; i < 3; i++ {
		isl, err := island.NewFromProblem(core.MustAlgorithm(testutil.Identity{}), prob, 2, uint64(i))
		require.NoError(t, err)
		require.NoError(t, a.PushBack(isl))
	}
	a.Evolve(5)

	for i := 3; i < 6; i++ {
		isl, err := island.NewFromProblem(core.MustAlgorithm(testutil.Identity{}), prob, 2, uint64(i))
		require.NoError(t, err)
		require.NoError(t, a.PushBack(isl))
	}
	require.NoError(t, a.WaitCheck())

	assert.Equal(t, 6, a.Size())
	assert.Len(t, a.MigrantsDB(), 6)
	assert.Equal(t, 6, a.Topology().Len())
	for i := 0; i < 6; i++ {
		isl, err := a.At(i)
		require.NoError(t, err)
		idx, err := a.IslandIdx(isl)
		require.NoError(t, err)
		assert.Equal(t, i, idx)
	}
}
