package testutil

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/ow97/archi/pkg/core"
)

// Identity returns the population unchanged.
type Identity struct{}

func (Identity) Evolve(_ context.Context, pop *core.Population) (*core.Population, error) {
	return pop, nil
}

func (Identity) Name() string { return "identity" }

// GradientDescent runs Steps iterations of x <- x - Rate * grad(f) on
// every individual. The problem must expose a gradient.
type GradientDescent struct {
	Rate  float64
	Steps int
}

func (g GradientDescent) Evolve(ctx context.Context, pop *core.Population) (*core.Population, error) {
	steps := g.Steps
	if steps <= 0 {
		steps = 1
	}
	rate := g.Rate
	if rate == 0 {
		rate = 0.1
	}
	prob := pop.Problem()
	for i := 0; i < pop.Len(); i++ {
		x := pop.Xs()[i].Clone()
		for s := 0; s < steps; s++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			grad, err := prob.Gradient(x)
			if err != nil {
				return nil, err
			}
			for d := range x {
				x[d] -= rate * grad[d]
			}
		}
		if err := pop.SetX(i, x); err != nil {
			return nil, err
		}
	}
	return pop, nil
}

func (GradientDescent) Name() string { return "gradient_descent" }

// FailNth fails on its Nth invocation (1-based) and behaves as the
// identity otherwise. The counter is shared across clones so an island
// retrying the task observes the sequence, not a reset.
type FailNth struct {
	N     int64
	calls atomic.Int64
}

func (f *FailNth) Evolve(_ context.Context, pop *core.Population) (*core.Population, error) {
	call := f.calls.Add(1)
	if call == f.N {
		return nil, fmt.Errorf("planned failure on invocation %d", call)
	}
	return pop, nil
}

func (f *FailNth) Name() string { return "fail_nth" }

// Calls reports how many times the algorithm has been invoked.
func (f *FailNth) Calls() int64 { return f.calls.Load() }

// FailAlways fails every invocation.
type FailAlways struct{}

func (FailAlways) Evolve(_ context.Context, _ *core.Population) (*core.Population, error) {
	return nil, fmt.Errorf("this algorithm always fails")
}

func (FailAlways) Name() string { return "fail_always" }

// Slow blocks for the duration of the context or until released, then
// behaves as the identity. Used to keep islands busy in lifecycle tests.
type Slow struct {
	Release chan struct{}
}

func (s Slow) Evolve(ctx context.Context, pop *core.Population) (*core.Population, error) {
	select {
	case <-s.Release:
		return pop, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (Slow) Name() string { return "slow" }

// Counting counts invocations and returns the population unchanged.
type Counting struct {
	calls atomic.Int64
}

func (c *Counting) Evolve(_ context.Context, pop *core.Population) (*core.Population, error) {
	c.calls.Add(1)
	return pop, nil
}

func (c *Counting) Calls() int64 { return c.calls.Load() }

func (c *Counting) Name() string { return "counting" }
