package core

import (
	"context"
	"fmt"

	"github.com/ow97/archi/pkg/errors"
)

// UserAlgorithm transforms one population into an evolved population.
// Implementations must not retain references to the input population
// after returning, and must treat it as read-only if they return a
// different population value.
type UserAlgorithm interface {
	Evolve(ctx context.Context, pop *Population) (*Population, error)
}

// CloneableAlgorithm is implemented by user algorithms that carry state
// (adaptive parameters, internal RNGs) and need deep-copy semantics.
type CloneableAlgorithm interface {
	UserAlgorithm
	CloneAlgorithm() UserAlgorithm
}

// Algorithm is the type-erased handle around a UserAlgorithm.
type Algorithm struct {
	uda UserAlgorithm
}

// NewAlgorithm wraps a user algorithm.
func NewAlgorithm(uda UserAlgorithm) (*Algorithm, error) {
	if uda == nil {
		return nil, errors.New(errors.InvalidOperation, "cannot construct an algorithm from a nil implementation")
	}
	return &Algorithm{uda: uda}, nil
}

// MustAlgorithm is a NewAlgorithm that panics on error, for tests and
// examples.
func MustAlgorithm(uda UserAlgorithm) *Algorithm {
	a, err := NewAlgorithm(uda)
	if err != nil {
		panic(err)
	}
	return a
}

// Evolve runs the wrapped algorithm on pop. A nil returned population or
// a user error is reported as UserFailure.
func (a *Algorithm) Evolve(ctx context.Context, pop *Population) (*Population, error) {
	out, err := a.uda.Evolve(ctx, pop)
	if err != nil {
		return nil, errors.Wrap(err, errors.UserFailure, "algorithm evolve failed")
	}
	if out == nil {
		return nil, errors.Newf(errors.UserFailure, "algorithm %q returned a nil population", a.Name())
	}
	return out, nil
}

// Name reports the user algorithm's name, defaulting to its Go type.
func (a *Algorithm) Name() string {
	if n, ok := a.uda.(Named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", a.uda)
}

// ExtraInfo reports the user algorithm's free-form detail, if any.
func (a *Algorithm) ExtraInfo() string {
	if e, ok := a.uda.(ExtraInfoProvider); ok {
		return e.ExtraInfo()
	}
	return ""
}

// Inner exposes the wrapped user algorithm.
func (a *Algorithm) Inner() UserAlgorithm { return a.uda }

// Clone deep-copies the handle. Algorithms that do not implement
// CloneableAlgorithm are treated as stateless and shared.
func (a *Algorithm) Clone() *Algorithm {
	uda := a.uda
	if c, ok := a.uda.(CloneableAlgorithm); ok {
		uda = c.CloneAlgorithm()
	}
	return &Algorithm{uda: uda}
}
