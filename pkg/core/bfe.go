package core

import (
	"context"
	"fmt"
	"runtime"

	"github.com/sourcegraph/conc/pool"

	"github.com/ow97/archi/pkg/errors"
)

// UserBatchEvaluator evaluates many decision vectors against a problem,
// deciding where the evaluations run.
type UserBatchEvaluator interface {
	Evaluate(ctx context.Context, prob *Problem, xs []DecisionVector) ([]FitnessVector, error)
}

// CloneableBatchEvaluator is implemented by evaluators carrying state.
type CloneableBatchEvaluator interface {
	UserBatchEvaluator
	CloneBatchEvaluator() UserBatchEvaluator
}

// BatchEvaluator is the type-erased handle around a UserBatchEvaluator.
type BatchEvaluator struct {
	ube UserBatchEvaluator
}

// NewBatchEvaluator wraps a user batch evaluator.
func NewBatchEvaluator(ube UserBatchEvaluator) (*BatchEvaluator, error) {
	if ube == nil {
		return nil, errors.New(errors.InvalidOperation, "cannot construct a batch evaluator from a nil implementation")
	}
	return &BatchEvaluator{ube: ube}, nil
}

// MustBatchEvaluator is a NewBatchEvaluator that panics on error.
func MustBatchEvaluator(ube UserBatchEvaluator) *BatchEvaluator {
	b, err := NewBatchEvaluator(ube)
	if err != nil {
		panic(err)
	}
	return b
}

// Evaluate runs the wrapped evaluator, validating the returned batch.
func (b *BatchEvaluator) Evaluate(ctx context.Context, prob *Problem, xs []DecisionVector) ([]FitnessVector, error) {
	fs, err := b.ube.Evaluate(ctx, prob, xs)
	if err != nil {
		return nil, err
	}
	if len(fs) != len(xs) {
		return nil, errors.Newf(errors.DimensionMismatch,
			"batch evaluator returned %d fitness vectors for %d inputs", len(fs), len(xs))
	}
	return fs, nil
}

// Name reports the evaluator's name, defaulting to its Go type.
func (b *BatchEvaluator) Name() string {
	if n, ok := b.ube.(Named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", b.ube)
}

// Inner exposes the wrapped user evaluator.
func (b *BatchEvaluator) Inner() UserBatchEvaluator { return b.ube }

// Clone deep-copies the handle.
func (b *BatchEvaluator) Clone() *BatchEvaluator {
	ube := b.ube
	if c, ok := b.ube.(CloneableBatchEvaluator); ok {
		ube = c.CloneBatchEvaluator()
	}
	return &BatchEvaluator{ube: ube}
}

// ThreadBfe fans the evaluations out over a bounded goroutine pool,
// calling Problem.Fitness once per decision vector.
type ThreadBfe struct {
	// MaxGoroutines caps the pool size; 0 means GOMAXPROCS.
	MaxGoroutines int
}

// Evaluate implements UserBatchEvaluator.
func (t ThreadBfe) Evaluate(ctx context.Context, prob *Problem, xs []DecisionVector) ([]FitnessVector, error) {
	n := t.MaxGoroutines
	if n <= 0 {
		n = runtime.GOMAXPROCS(0)
	}

	fs := make([]FitnessVector, len(xs))
	p := pool.New().WithErrors().WithContext(ctx).WithMaxGoroutines(n)
	for i, x := range xs {
		p.Go(func(ctx context.Context) error {
			if err := errors.CheckContext(ctx, "batch evaluation"); err != nil {
				return err
			}
			f, err := prob.Fitness(x)
			if err != nil {
				return err
			}
			fs[i] = f
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}
	return fs, nil
}

// Name implements Named.
func (ThreadBfe) Name() string { return "thread_bfe" }

// MemberBfe delegates to the problem's own batch capability.
type MemberBfe struct{}

// Evaluate implements UserBatchEvaluator.
func (MemberBfe) Evaluate(ctx context.Context, prob *Problem, xs []DecisionVector) ([]FitnessVector, error) {
	return prob.BatchFitness(ctx, xs)
}

// Name implements Named.
func (MemberBfe) Name() string { return "member_bfe" }
