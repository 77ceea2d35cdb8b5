package island_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ow97/archi/internal/testutil"
	"github.com/ow97/archi/pkg/core"
	"github.com/ow97/archi/pkg/errors"
	"github.com/ow97/archi/pkg/island"
)

func sphereIsland(t *testing.T, uda core.UserAlgorithm, size int, opts ...island.Option) *island.Island {
	t.Helper()
	prob := core.MustProblem(testutil.Sphere{Dim: 2})
	isl, err := island.NewFromProblem(core.MustAlgorithm(uda), prob, size, 42, opts...)
	require.NoError(t, err)
	t.Cleanup(isl.Close)
	return isl
}

func TestIslandStartsIdle(t *testing.T) {
	isl := sphereIsland(t, testutil.Identity{}, 4)
	assert.Equal(t, island.Idle, isl.Status())
	assert.Equal(t, 4, isl.Population().Len())
	assert.Equal(t, "thread_island", isl.Name())
}

func TestIslandEvolveRunsTasks(t *testing.T) {
	counting := &testutil.Counting{}
	isl := sphereIsland(t, counting, 4)

	isl.Evolve(5)
	isl.Wait()

	assert.Equal(t, int64(5), counting.Calls())
	assert.Equal(t, island.Idle, isl.Status())
}

func TestIslandWaitCheckNoError(t *testing.T) {
	isl := sphereIsland(t, testutil.Identity{}, 2)
	isl.Evolve(1)
	assert.NoError(t, isl.WaitCheck())
}

func TestIslandBusyWhileEvolving(t *testing.T) {
	release := make(chan struct{})
	isl := sphereIsland(t, testutil.Slow{Release: release}, 2)

	isl.Evolve(1)
	require.Eventually(t, func() bool {
		return isl.Status() == island.Busy
	}, time.Second, time.Millisecond)

	close(release)
	isl.Wait()
	assert.Equal(t, island.Idle, isl.Status())
}

func TestIslandSnapshotsDuringEvolution(t *testing.T) {
	release := make(chan struct{})
	isl := sphereIsland(t, testutil.Slow{Release: release}, 3)

	isl.Evolve(1)
	// Snapshots must not block on the in-flight task.
	pop := isl.Population()
	assert.Equal(t, 3, pop.Len())
	algo := isl.Algorithm()
	assert.Equal(t, "slow", algo.Name())

	close(release)
	isl.Wait()
}

func TestIslandErrorLatching(t *testing.T) {
	failing := &testutil.FailNth{N: 1}
	isl := sphereIsland(t, failing, 2)
	before := isl.Population()

	isl.Evolve(1)
	isl.Wait()
	assert.Equal(t, island.Error, isl.Status())

	err := isl.WaitCheck()
	require.Error(t, err)
	assert.Equal(t, errors.UserFailure, errors.CodeOf(err))

	// The error was consumed; the island is idle again.
	assert.Equal(t, island.Idle, isl.Status())
	assert.NoError(t, isl.WaitCheck())

	// The population is unchanged by the failed step.
	after := isl.Population()
	assert.Equal(t, before.IDs(), after.IDs())
	assert.Equal(t, before.Xs(), after.Xs())
}

func TestIslandQueueSurvivesFailure(t *testing.T) {
	failing := &testutil.FailNth{N: 1}
	isl := sphereIsland(t, failing, 2)

	// Three tasks: the first fails, the remaining two still run.
	isl.Evolve(3)
	isl.Wait()
	assert.Equal(t, int64(3), failing.Calls())

	err := isl.WaitCheck()
	require.Error(t, err, "the earliest failure is preserved")
}

func TestIslandEarliestErrorWins(t *testing.T) {
	isl := sphereIsland(t, testutil.FailAlways{}, 2)

	isl.Evolve(3)
	isl.Wait()

	require.Error(t, isl.WaitCheck())
	// Later failures were discarded with the consumed error.
	assert.NoError(t, isl.WaitCheck())
}

func TestIslandFIFOOrder(t *testing.T) {
	var mu sync.Mutex
	var order []int
	seq := &orderedAlgo{mu: &mu, order: &order}
	isl := sphereIsland(t, seq, 1)

	isl.Evolve(4)
	isl.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2, 3, 4}, order)
}

type orderedAlgo struct {
	mu    *sync.Mutex
	order *[]int
	n     int
}

func (o *orderedAlgo) Evolve(_ context.Context, pop *core.Population) (*core.Population, error) {
	o.mu.Lock()
	o.n++
	*o.order = append(*o.order, o.n)
	o.mu.Unlock()
	return pop, nil
}

func TestIslandGradientDescentConverges(t *testing.T) {
	isl := sphereIsland(t, testutil.GradientDescent{Rate: 0.1, Steps: 10}, 4)

	isl.Evolve(10)
	require.NoError(t, isl.WaitCheck())

	pop := isl.Population()
	best, err := pop.Champion(0)
	require.NoError(t, err)
	assert.Less(t, pop.Fs()[best][0], 1e-3)
}

func TestIslandSequentialVersusBatchedEvolves(t *testing.T) {
	one := sphereIsland(t, testutil.GradientDescent{Rate: 0.1, Steps: 2}, 3)
	many := sphereIsland(t, testutil.GradientDescent{Rate: 0.1, Steps: 2}, 3)

	// N sequential evolve(1) calls and one evolve(N) must agree for a
	// deterministic algorithm and strategy.
	for i := 0; i < 4; i++ {
		one.Evolve(1)
		one.Wait()
	}
	many.Evolve(4)
	many.Wait()

	assert.Equal(t, one.Population().Xs(), many.Population().Xs())
	assert.Equal(t, one.Population().Fs(), many.Population().Fs())
}

func TestIslandWithBatchEvaluator(t *testing.T) {
	bfe := core.MustBatchEvaluator(core.ThreadBfe{MaxGoroutines: 2})
	isl := sphereIsland(t, testutil.Identity{}, 5, island.WithBatchEvaluator(bfe))

	require.NotNil(t, isl.BatchEvaluator())
	assert.Equal(t, 5, isl.Population().Len())
}

func TestIslandCustomUDI(t *testing.T) {
	rec := &recordingUDI{}
	isl := sphereIsland(t, testutil.Identity{}, 2, island.WithUDI(rec))

	isl.Evolve(2)
	isl.Wait()

	assert.Equal(t, int64(2), rec.calls.Load())
	assert.Equal(t, "recording", isl.Name())
}

type recordingUDI struct {
	calls atomic.Int64
}

func (r *recordingUDI) RunEvolve(ctx context.Context, isl *island.Island) (*core.Algorithm, *core.Population, error) {
	r.calls.Add(1)
	return island.ThreadIsland{}.RunEvolve(ctx, isl)
}

func (r *recordingUDI) Name() string { return "recording" }

func TestIslandCloneIsIdleAndIndependent(t *testing.T) {
	isl := sphereIsland(t, testutil.Identity{}, 3)
	isl.Evolve(1)
	isl.Wait()

	clone, err := isl.Clone()
	require.NoError(t, err)
	t.Cleanup(clone.Close)

	assert.Equal(t, island.Idle, clone.Status())
	assert.Equal(t, isl.Population().IDs(), clone.Population().IDs())
	assert.NotEqual(t, isl.ID(), clone.ID())
}

func TestIslandExtraInfo(t *testing.T) {
	isl := sphereIsland(t, testutil.Identity{}, 2)
	info := isl.ExtraInfo()
	assert.Contains(t, info, "identity")
	assert.Contains(t, info, "sphere")
	assert.Contains(t, info, "population=2")
}
