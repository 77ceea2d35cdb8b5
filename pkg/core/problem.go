package core

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/ow97/archi/pkg/errors"
)

// UserProblem is the minimal capability set a user optimization problem
// must provide. Optional capabilities are discovered through the
// interfaces below.
type UserProblem interface {
	// Fitness evaluates a decision vector into a fitness vector laid out
	// as [objectives..., equality constraints..., inequality constraints...].
	Fitness(x DecisionVector) (FitnessVector, error)

	// Bounds returns the lower and upper box bounds, one pair per
	// decision-vector component.
	Bounds() (lb, ub []float64)
}

// MultiObjective is implemented by problems with more than one objective.
type MultiObjective interface {
	NObj() int
}

// Constrained is implemented by problems with equality or inequality
// constraints.
type Constrained interface {
	NEc() int
	NIc() int
}

// IntegerDimensioned is implemented by problems whose trailing NIx
// decision-vector components are integer-valued.
type IntegerDimensioned interface {
	NIx() int
}

// BatchFitnessProvider is implemented by problems that can evaluate many
// decision vectors at once.
type BatchFitnessProvider interface {
	BatchFitness(ctx context.Context, xs []DecisionVector) ([]FitnessVector, error)
}

// GradientProvider is implemented by problems that expose an analytical
// gradient of the first objective.
type GradientProvider interface {
	Gradient(x DecisionVector) (DecisionVector, error)
}

// HessiansProvider is implemented by problems that expose analytical
// hessians, one lower-triangular matrix per fitness component.
type HessiansProvider interface {
	Hessians(x DecisionVector) ([][]float64, error)
}

// Named lets a plug-in report a human-readable name.
type Named interface {
	Name() string
}

// ExtraInfoProvider lets a plug-in report free-form descriptive detail.
type ExtraInfoProvider interface {
	ExtraInfo() string
}

// CloneableProblem is implemented by user problems that need deep-copy
// semantics. Problems without it are treated as stateless and shared.
type CloneableProblem interface {
	UserProblem
	CloneProblem() UserProblem
}

// Problem is the type-erased handle around a UserProblem. It caches the
// problem dimensions at construction time, validates every vector that
// crosses it, and counts fitness evaluations.
type Problem struct {
	udp    UserProblem
	lb, ub []float64
	nobj   int
	nec    int
	nic    int
	nix    int
	fevals atomic.Uint64
}

// NewProblem wraps a user problem, caching and validating its dimensions.
func NewProblem(udp UserProblem) (*Problem, error) {
	if udp == nil {
		return nil, errors.New(errors.InvalidOperation, "cannot construct a problem from a nil implementation")
	}
	lb, ub := udp.Bounds()
	if len(lb) != len(ub) {
		return nil, errors.Newf(errors.ContractViolation,
			"bounds of unequal length: %d lower, %d upper", len(lb), len(ub))
	}
	if len(lb) == 0 {
		return nil, errors.New(errors.ContractViolation, "a problem must have at least one dimension")
	}
	for i := range lb {
		if math.IsNaN(lb[i]) || math.IsNaN(ub[i]) {
			return nil, errors.Newf(errors.ContractViolation, "NaN bound at dimension %d", i)
		}
		if math.IsInf(lb[i], 0) || math.IsInf(ub[i], 0) {
			return nil, errors.Newf(errors.ContractViolation, "infinite bound at dimension %d", i)
		}
		if lb[i] > ub[i] {
			return nil, errors.Newf(errors.ContractViolation,
				"lower bound %g above upper bound %g at dimension %d", lb[i], ub[i], i)
		}
	}

	p := &Problem{
		udp:  udp,
		lb:   append([]float64(nil), lb...),
		ub:   append([]float64(nil), ub...),
		nobj: 1,
	}
	if mo, ok := udp.(MultiObjective); ok {
		if mo.NObj() < 1 {
			return nil, errors.Newf(errors.ContractViolation, "problem reports %d objectives", mo.NObj())
		}
		p.nobj = mo.NObj()
	}
	if c, ok := udp.(Constrained); ok {
		if c.NEc() < 0 || c.NIc() < 0 {
			return nil, errors.New(errors.ContractViolation, "negative constraint count")
		}
		p.nec, p.nic = c.NEc(), c.NIc()
	}
	if ix, ok := udp.(IntegerDimensioned); ok {
		if ix.NIx() < 0 || ix.NIx() > len(lb) {
			return nil, errors.Newf(errors.ContractViolation,
				"integer dimension count %d outside [0, %d]", ix.NIx(), len(lb))
		}
		p.nix = ix.NIx()
	}
	return p, nil
}

// MustProblem is a NewProblem that panics on error, for tests and examples.
func MustProblem(udp UserProblem) *Problem {
	p, err := NewProblem(udp)
	if err != nil {
		panic(err)
	}
	return p
}

// Fitness evaluates x, validating both directions of the exchange.
func (p *Problem) Fitness(x DecisionVector) (FitnessVector, error) {
	if len(x) != p.Nx() {
		return nil, errors.Newf(errors.DimensionMismatch,
			"decision vector of size %d passed to a problem of dimension %d", len(x), p.Nx())
	}
	f, err := p.udp.Fitness(x)
	if err != nil {
		return nil, errors.Wrap(err, errors.UserFailure, "fitness evaluation failed")
	}
	if len(f) != p.Nf() {
		return nil, errors.Newf(errors.DimensionMismatch,
			"fitness vector of size %d returned by a problem with fitness dimension %d", len(f), p.Nf())
	}
	p.fevals.Add(1)
	return f, nil
}

// BatchFitness evaluates many decision vectors through the problem's own
// batch capability. Fails with InvalidOperation when the capability is
// absent.
func (p *Problem) BatchFitness(ctx context.Context, xs []DecisionVector) ([]FitnessVector, error) {
	bf, ok := p.udp.(BatchFitnessProvider)
	if !ok {
		return nil, errors.Newf(errors.InvalidOperation,
			"problem %q does not provide batch fitness evaluation", p.Name())
	}
	for i, x := range xs {
		if len(x) != p.Nx() {
			return nil, errors.Newf(errors.DimensionMismatch,
				"decision vector %d of size %d in a batch for a problem of dimension %d", i, len(x), p.Nx())
		}
	}
	fs, err := bf.BatchFitness(ctx, xs)
	if err != nil {
		return nil, errors.Wrap(err, errors.UserFailure, "batch fitness evaluation failed")
	}
	if len(fs) != len(xs) {
		return nil, errors.Newf(errors.DimensionMismatch,
			"batch evaluation returned %d fitness vectors for %d inputs", len(fs), len(xs))
	}
	for i, f := range fs {
		if len(f) != p.Nf() {
			return nil, errors.Newf(errors.DimensionMismatch,
				"fitness vector %d of size %d returned by a problem with fitness dimension %d", i, len(f), p.Nf())
		}
	}
	p.fevals.Add(uint64(len(xs)))
	return fs, nil
}

// HasBatchFitness reports whether the wrapped problem can evaluate batches.
func (p *Problem) HasBatchFitness() bool {
	_, ok := p.udp.(BatchFitnessProvider)
	return ok
}

// Gradient returns the user gradient of the first objective at x.
func (p *Problem) Gradient(x DecisionVector) (DecisionVector, error) {
	gp, ok := p.udp.(GradientProvider)
	if !ok {
		return nil, errors.Newf(errors.InvalidOperation, "problem %q does not provide gradients", p.Name())
	}
	if len(x) != p.Nx() {
		return nil, errors.Newf(errors.DimensionMismatch,
			"decision vector of size %d passed to a problem of dimension %d", len(x), p.Nx())
	}
	g, err := gp.Gradient(x)
	if err != nil {
		return nil, errors.Wrap(err, errors.UserFailure, "gradient evaluation failed")
	}
	return g, nil
}

// HasGradient reports whether the wrapped problem exposes a gradient.
func (p *Problem) HasGradient() bool {
	_, ok := p.udp.(GradientProvider)
	return ok
}

// Hessians returns the user hessians at x.
func (p *Problem) Hessians(x DecisionVector) ([][]float64, error) {
	hp, ok := p.udp.(HessiansProvider)
	if !ok {
		return nil, errors.Newf(errors.InvalidOperation, "problem %q does not provide hessians", p.Name())
	}
	if len(x) != p.Nx() {
		return nil, errors.Newf(errors.DimensionMismatch,
			"decision vector of size %d passed to a problem of dimension %d", len(x), p.Nx())
	}
	h, err := hp.Hessians(x)
	if err != nil {
		return nil, errors.Wrap(err, errors.UserFailure, "hessians evaluation failed")
	}
	return h, nil
}

// HasHessians reports whether the wrapped problem exposes hessians.
func (p *Problem) HasHessians() bool {
	_, ok := p.udp.(HessiansProvider)
	return ok
}

// Bounds returns copies of the box bounds.
func (p *Problem) Bounds() (lb, ub []float64) {
	return append([]float64(nil), p.lb...), append([]float64(nil), p.ub...)
}

// Nx is the decision-vector dimension.
func (p *Problem) Nx() int { return len(p.lb) }

// Nf is the fitness-vector dimension: nobj + nec + nic.
func (p *Problem) Nf() int { return p.nobj + p.nec + p.nic }

// Nobj is the number of objectives.
func (p *Problem) Nobj() int { return p.nobj }

// Nec is the number of equality constraints.
func (p *Problem) Nec() int { return p.nec }

// Nic is the number of inequality constraints.
func (p *Problem) Nic() int { return p.nic }

// Nc is the total number of constraints.
func (p *Problem) Nc() int { return p.nec + p.nic }

// Nix is the number of trailing integer dimensions.
func (p *Problem) Nix() int { return p.nix }

// FitnessEvals reports how many evaluations this handle has performed.
func (p *Problem) FitnessEvals() uint64 { return p.fevals.Load() }

// Name reports the user problem's name, defaulting to its Go type.
func (p *Problem) Name() string {
	if n, ok := p.udp.(Named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", p.udp)
}

// ExtraInfo reports the user problem's free-form detail, if any.
func (p *Problem) ExtraInfo() string {
	if e, ok := p.udp.(ExtraInfoProvider); ok {
		return e.ExtraInfo()
	}
	return ""
}

// Inner exposes the wrapped user problem, for serialization and
// capability probing.
func (p *Problem) Inner() UserProblem { return p.udp }

// Clone deep-copies the handle. The evaluation counter starts at zero in
// the clone. User problems that do not implement CloneableProblem are
// shared between the original and the clone.
func (p *Problem) Clone() *Problem {
	udp := p.udp
	if c, ok := p.udp.(CloneableProblem); ok {
		udp = c.CloneProblem()
	}
	out := &Problem{
		udp:  udp,
		lb:   append([]float64(nil), p.lb...),
		ub:   append([]float64(nil), p.ub...),
		nobj: p.nobj,
		nec:  p.nec,
		nic:  p.nic,
		nix:  p.nix,
	}
	return out
}
