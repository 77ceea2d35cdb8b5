// Package island implements the asynchronous execution unit of the
// archipelago: one evolutionary worker carrying a population, an
// algorithm and a pluggable execution strategy (UDI).
package island

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/ow97/archi/pkg/core"
	"github.com/ow97/archi/pkg/errors"
	"github.com/ow97/archi/pkg/logging"
)

// Status summarizes the island state machine.
type Status int

const (
	// Idle: no task queued or executing, no latched error.
	Idle Status = iota
	// Busy: at least one task queued or executing.
	Busy
	// Error: a previous task failed and the error has not been consumed
	// by WaitCheck yet.
	Error
)

func (s Status) String() string {
	return [...]string{"idle", "busy", "error"}[s]
}

// Coordinator is the archipelago-side pair of migration hooks an island
// invokes around each evolution step. The reference is non-owning and
// may be absent: a standalone island simply skips migration.
type Coordinator interface {
	// PreEvolve pulls emigrants from connected islands into pop.
	PreEvolve(isl *Island, pop *core.Population) error

	// PostEvolve publishes emigrants selected from pop into the
	// island's buffer slot.
	PostEvolve(isl *Island, pop *core.Population) error
}

// UDI decides where and how one evolution runs. RunEvolve must read the
// island state through the snapshot getters and return the evolved
// (algorithm, population) pair; the island installs them on success.
type UDI interface {
	RunEvolve(ctx context.Context, isl *Island) (*core.Algorithm, *core.Population, error)
	Name() string
}

// CloneableUDI is implemented by strategies carrying state.
type CloneableUDI interface {
	UDI
	CloneUDI() UDI
}

// ThreadIsland is the default UDI: it runs the algorithm directly on
// the island's worker goroutine.
type ThreadIsland struct{}

func (ThreadIsland) RunEvolve(ctx context.Context, isl *Island) (*core.Algorithm, *core.Population, error) {
	algo := isl.Algorithm()
	pop := isl.Population()
	evolved, err := algo.Evolve(ctx, pop)
	if err != nil {
		return nil, nil, err
	}
	return algo, evolved, nil
}

func (ThreadIsland) Name() string { return "thread_island" }

// Island couples (algorithm, population, UDI, optional batch evaluator)
// with a private FIFO task queue served by a single worker goroutine.
type Island struct {
	id  uuid.UUID
	udi UDI

	// mu guards the evolvable state.
	mu   sync.Mutex
	algo *core.Algorithm
	pop  *core.Population
	bfe  *core.BatchEvaluator

	// coordMu guards the archipelago back-reference.
	coordMu sync.Mutex
	coord   Coordinator

	// stMu guards the queue accounting and the error slot; cond signals
	// queue transitions to the worker and to waiters.
	stMu    sync.Mutex
	cond    *sync.Cond
	queued  int
	running bool
	lastErr error
	closed  bool

	workerDone chan struct{}
}

// Option configures optional island collaborators.
type Option func(*Island)

// WithUDI installs a custom execution strategy.
func WithUDI(udi UDI) Option {
	return func(isl *Island) {
		if udi != nil {
			isl.udi = udi
		}
	}
}

// WithBatchEvaluator attaches a batch evaluator the algorithm can use.
func WithBatchEvaluator(bfe *core.BatchEvaluator) Option {
	return func(isl *Island) {
		isl.bfe = bfe
	}
}

// New builds an island around an existing population.
func New(algo *core.Algorithm, pop *core.Population, opts ...Option) (*Island, error) {
	if algo == nil {
		return nil, errors.New(errors.InvalidOperation, "an island requires an algorithm")
	}
	if pop == nil {
		return nil, errors.New(errors.InvalidOperation, "an island requires a population")
	}
	isl := &Island{
		id:         uuid.New(),
		udi:        ThreadIsland{},
		algo:       algo,
		pop:        pop,
		workerDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(isl)
	}
	isl.cond = sync.NewCond(&isl.stMu)
	go isl.worker()
	return isl, nil
}

// NewFromProblem builds an island with a fresh random population of the
// given size and seed. When a batch evaluator is supplied through
// WithBatchEvaluator, the initial population is evaluated in one batch.
func NewFromProblem(algo *core.Algorithm, prob *core.Problem, size int, seed uint64, opts ...Option) (*Island, error) {
	if prob == nil {
		return nil, errors.New(errors.InvalidOperation, "an island requires a problem")
	}
	// Probe the options for a batch evaluator before building the
	// population, so initialisation can use it.
	probe := &Island{udi: ThreadIsland{}}
	for _, opt := range opts {
		opt(probe)
	}

	var pop *core.Population
	var err error
	if probe.bfe != nil {
		pop, err = core.NewPopulationBatch(context.Background(), prob, probe.bfe, size, seed)
	} else {
		pop, err = core.NewPopulation(prob, size, seed)
	}
	if err != nil {
		return nil, err
	}
	return New(algo, pop, opts...)
}

// ID returns the island's unique identifier.
func (isl *Island) ID() uuid.UUID { return isl.id }

// Evolve enqueues n evolution tasks and returns immediately. Tasks run
// in FIFO order on the island's worker.
func (isl *Island) Evolve(n int) {
	if n <= 0 {
		return
	}
	isl.stMu.Lock()
	defer isl.stMu.Unlock()
	if isl.closed {
		return
	}
	isl.queued += n
	isl.cond.Broadcast()
}

// Wait blocks until the queue is empty and no task is executing. It
// never reports an error.
func (isl *Island) Wait() {
	isl.stMu.Lock()
	defer isl.stMu.Unlock()
	for isl.queued > 0 || isl.running {
		isl.cond.Wait()
	}
}

// WaitCheck waits like Wait, then consumes and returns the earliest
// latched error, if any.
func (isl *Island) WaitCheck() error {
	isl.Wait()
	isl.stMu.Lock()
	defer isl.stMu.Unlock()
	err := isl.lastErr
	isl.lastErr = nil
	return err
}

// Status reports the island state. A latched error dominates until it
// is consumed by WaitCheck.
func (isl *Island) Status() Status {
	isl.stMu.Lock()
	defer isl.stMu.Unlock()
	switch {
	case isl.lastErr != nil:
		return Error
	case isl.queued > 0 || isl.running:
		return Busy
	default:
		return Idle
	}
}

// Algorithm returns a deep-copy snapshot, safe to read during a running
// evolution.
func (isl *Island) Algorithm() *core.Algorithm {
	isl.mu.Lock()
	defer isl.mu.Unlock()
	return isl.algo.Clone()
}

// Population returns a deep-copy snapshot, safe to read during a
// running evolution.
func (isl *Island) Population() *core.Population {
	isl.mu.Lock()
	defer isl.mu.Unlock()
	return isl.pop.Clone()
}

// BatchEvaluator returns a snapshot of the optional batch evaluator, or
// nil when none is attached.
func (isl *Island) BatchEvaluator() *core.BatchEvaluator {
	isl.mu.Lock()
	defer isl.mu.Unlock()
	if isl.bfe == nil {
		return nil
	}
	return isl.bfe.Clone()
}

// Problem returns the handle of the population's problem.
func (isl *Island) Problem() *core.Problem {
	isl.mu.Lock()
	defer isl.mu.Unlock()
	return isl.pop.Problem()
}

// Name reports the execution strategy's name.
func (isl *Island) Name() string { return isl.udi.Name() }

// UDI exposes the island's execution strategy.
func (isl *Island) UDI() UDI { return isl.udi }

// ExtraInfo describes the island's current composition.
func (isl *Island) ExtraInfo() string {
	isl.mu.Lock()
	algo, prob, size := isl.algo.Name(), isl.pop.Problem().Name(), isl.pop.Len()
	isl.mu.Unlock()
	return fmt.Sprintf("island %s: status=%s algorithm=%s problem=%s population=%d",
		isl.id, isl.Status(), algo, prob, size)
}

// SetCoordinator installs (or clears, with nil) the archipelago
// back-reference.
func (isl *Island) SetCoordinator(c Coordinator) {
	isl.coordMu.Lock()
	isl.coord = c
	isl.coordMu.Unlock()
}

func (isl *Island) coordinator() Coordinator {
	isl.coordMu.Lock()
	defer isl.coordMu.Unlock()
	return isl.coord
}

// Close stops the worker after the queue drains. The island accepts no
// further tasks. Safe to call more than once.
func (isl *Island) Close() {
	isl.stMu.Lock()
	if isl.closed {
		isl.stMu.Unlock()
		<-isl.workerDone
		return
	}
	isl.closed = true
	isl.cond.Broadcast()
	isl.stMu.Unlock()
	<-isl.workerDone
}

// worker serves the task queue until Close.
func (isl *Island) worker() {
	for {
		isl.stMu.Lock()
		for isl.queued == 0 && !isl.closed {
			isl.cond.Wait()
		}
		if isl.queued == 0 && isl.closed {
			isl.stMu.Unlock()
			close(isl.workerDone)
			return
		}
		isl.queued--
		isl.running = true
		isl.stMu.Unlock()

		isl.step(context.Background())

		isl.stMu.Lock()
		isl.running = false
		isl.cond.Broadcast()
		isl.stMu.Unlock()
	}
}

// latch records err as the island's failure unless an earlier one is
// still pending.
func (isl *Island) latch(err error) {
	isl.stMu.Lock()
	if isl.lastErr == nil {
		isl.lastErr = err
	}
	isl.stMu.Unlock()
	logging.GetLogger().Debug(context.Background(), "island %s task failed: %v", isl.id, err)
}

// step performs one evolution: migration pull, UDI dispatch, install,
// migration publish. On any failure the island state is left at its
// pre-step value and the error is latched; queued tasks still run.
func (isl *Island) step(ctx context.Context) {
	coord := isl.coordinator()

	isl.mu.Lock()
	origAlgo, origPop := isl.algo, isl.pop
	isl.mu.Unlock()

	if coord != nil {
		work := origPop.Clone()
		if err := coord.PreEvolve(isl, work); err != nil {
			isl.latch(err)
			return
		}
		isl.mu.Lock()
		isl.pop = work
		isl.mu.Unlock()
	}

	algo, evolved, err := isl.udi.RunEvolve(ctx, isl)
	if err != nil {
		isl.restore(origAlgo, origPop)
		isl.latch(errors.Wrap(err, errors.UserFailure, "evolution task failed"))
		return
	}

	isl.mu.Lock()
	isl.algo = algo
	isl.pop = evolved
	isl.mu.Unlock()

	if coord != nil {
		if err := coord.PostEvolve(isl, evolved); err != nil {
			isl.restore(origAlgo, origPop)
			isl.latch(err)
			return
		}
	}
}

func (isl *Island) restore(algo *core.Algorithm, pop *core.Population) {
	isl.mu.Lock()
	isl.algo = algo
	isl.pop = pop
	isl.mu.Unlock()
}

// Clone deep-copies the island in idle state. Pending tasks, the
// latched error and the coordinator binding are not carried over.
func (isl *Island) Clone() (*Island, error) {
	udi := isl.udi
	if c, ok := isl.udi.(CloneableUDI); ok {
		udi = c.CloneUDI()
	}
	isl.mu.Lock()
	algo := isl.algo.Clone()
	pop := isl.pop.Clone()
	var bfe *core.BatchEvaluator
	if isl.bfe != nil {
		bfe = isl.bfe.Clone()
	}
	isl.mu.Unlock()

	opts := []Option{WithUDI(udi)}
	if bfe != nil {
		opts = append(opts, WithBatchEvaluator(bfe))
	}
	return New(algo, pop, opts...)
}
