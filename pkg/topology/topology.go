// Package topology defines the migration graphs an archipelago routes
// individuals along. A topology is a directed weighted graph over island
// indices; an edge (s -> d, w) means island d pulls emigrants from
// island s's buffer with per-individual probability w.
//
// Implementations must be safe for concurrent use: the archipelago does
// not serialize access to its topology.
package topology

import (
	"math"
	"sync"

	"github.com/ow97/archi/pkg/errors"
)

// Topology is the capability set of a migration graph.
type Topology interface {
	// PushBack grows the vertex set by one.
	PushBack()

	// Connections returns the source vertices with an edge into idx,
	// together with the edge weights.
	Connections(idx int) (sources []int, weights []float64, err error)

	// Len reports the current number of vertices.
	Len() int

	// Name identifies the topology kind.
	Name() string

	// Clone returns an independent deep copy.
	Clone() Topology
}

// checkWeight validates a migration edge weight.
func checkWeight(w float64) error {
	if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
		return errors.Newf(errors.ContractViolation, "invalid migration edge weight %g", w)
	}
	return nil
}

// Unconnected is the default topology: vertices and no edges.
type Unconnected struct {
	mu sync.Mutex
	n  int
}

// NewUnconnected builds an edgeless topology with n vertices.
func NewUnconnected(n int) *Unconnected {
	return &Unconnected{n: n}
}

func (u *Unconnected) PushBack() {
	u.mu.Lock()
	u.n++
	u.mu.Unlock()
}

func (u *Unconnected) Connections(idx int) ([]int, []float64, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if idx < 0 || idx >= u.n {
		return nil, nil, errors.Newf(errors.OutOfRange,
			"vertex %d out of range for topology of size %d", idx, u.n)
	}
	return nil, nil, nil
}

func (u *Unconnected) Len() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.n
}

func (u *Unconnected) Name() string { return "unconnected" }

func (u *Unconnected) Clone() Topology {
	u.mu.Lock()
	defer u.mu.Unlock()
	return &Unconnected{n: u.n}
}

// FullyConnected links every ordered pair of distinct vertices with
// weight W.
type FullyConnected struct {
	W float64

	mu sync.Mutex
	n  int
}

// NewFullyConnected builds a complete topology with n vertices and the
// given edge weight.
func NewFullyConnected(n int, w float64) (*FullyConnected, error) {
	if err := checkWeight(w); err != nil {
		return nil, err
	}
	return &FullyConnected{W: w, n: n}, nil
}

func (f *FullyConnected) PushBack() {
	f.mu.Lock()
	f.n++
	f.mu.Unlock()
}

func (f *FullyConnected) Connections(idx int) ([]int, []float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if idx < 0 || idx >= f.n {
		return nil, nil, errors.Newf(errors.OutOfRange,
			"vertex %d out of range for topology of size %d", idx, f.n)
	}
	sources := make([]int, 0, f.n-1)
	weights := make([]float64, 0, f.n-1)
	for s := 0; s < f.n; s++ {
		if s == idx {
			continue
		}
		sources = append(sources, s)
		weights = append(weights, f.W)
	}
	return sources, weights, nil
}

func (f *FullyConnected) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.n
}

func (f *FullyConnected) Name() string { return "fully_connected" }

func (f *FullyConnected) Clone() Topology {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &FullyConnected{W: f.W, n: f.n}
}

// Ring links each vertex to its predecessor and successor with weight W.
type Ring struct {
	W float64

	mu sync.Mutex
	n  int
}

// NewRing builds a ring topology with n vertices and the given edge
// weight.
func NewRing(n int, w float64) (*Ring, error) {
	if err := checkWeight(w); err != nil {
		return nil, err
	}
	return &Ring{W: w, n: n}, nil
}

func (r *Ring) PushBack() {
	r.mu.Lock()
	r.n++
	r.mu.Unlock()
}

func (r *Ring) Connections(idx int) ([]int, []float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if idx < 0 || idx >= r.n {
		return nil, nil, errors.Newf(errors.OutOfRange,
			"vertex %d out of range for topology of size %d", idx, r.n)
	}
	switch r.n {
	case 1:
		return nil, nil, nil
	case 2:
		other := 1 - idx
		return []int{other}, []float64{r.W}, nil
	default:
		prev := (idx - 1 + r.n) % r.n
		next := (idx + 1) % r.n
		return []int{prev, next}, []float64{r.W, r.W}, nil
	}
}

func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.n
}

func (r *Ring) Name() string { return "ring" }

func (r *Ring) Clone() Topology {
	r.mu.Lock()
	defer r.mu.Unlock()
	return &Ring{W: r.W, n: r.n}
}
