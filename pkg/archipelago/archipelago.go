// Package archipelago implements the container coordinating many
// islands: asynchronous evolution broadcast, migration between islands
// along a topology, and archipelago-wide lifecycle.
package archipelago

import (
	"context"
	"math/rand"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/ow97/archi/pkg/core"
	"github.com/ow97/archi/pkg/errors"
	"github.com/ow97/archi/pkg/island"
	"github.com/ow97/archi/pkg/logging"
	"github.com/ow97/archi/pkg/metrics"
	"github.com/ow97/archi/pkg/migration"
	"github.com/ow97/archi/pkg/topology"
)

// MaxSize is the maximum number of islands an archipelago accepts.
const MaxSize = 1 << 20

// Recorder observes the archipelago after each completed evolve wave.
// Implementations must tolerate concurrent island activity having long
// finished; they are only invoked from Wait with every island idle.
type Recorder interface {
	RecordWave(ctx context.Context, a *Archipelago, wave uint64) error
}

// Archipelago owns a set of islands, the migrant database and the
// migration topology.
type Archipelago struct {
	// idxMu guards the islands slice and the pointer-to-index map.
	idxMu   sync.Mutex
	islands []*island.Island
	idxMap  map[*island.Island]int

	// migrantsMu guards the migrant database and the migration RNG.
	migrantsMu sync.Mutex
	migrants   []core.IndividualsGroup
	migRNG     *rand.Rand

	// The topology is internally thread-safe; no archipelago lock
	// covers it.
	topo topology.Topology

	policy    migration.Policy
	collector *metrics.Collector
	recorder  Recorder
	waves     atomic.Uint64
	recorded  atomic.Uint64
	log       *logging.Logger
}

// Option configures an archipelago at construction.
type Option func(*Archipelago)

// WithTopology sets the migration topology. It must already hold one
// vertex per existing island; New starts empty, so a fresh topology
// starts empty too.
func WithTopology(t topology.Topology) Option {
	return func(a *Archipelago) {
		if t != nil {
			a.topo = t
		}
	}
}

// WithPolicy sets the migration policy pair.
func WithPolicy(p migration.Policy) Option {
	return func(a *Archipelago) {
		a.policy = p.Normalized()
	}
}

// WithMetrics attaches a Prometheus collector.
func WithMetrics(c *metrics.Collector) Option {
	return func(a *Archipelago) {
		a.collector = c
	}
}

// WithRecorder attaches an evolve-wave recorder.
func WithRecorder(r Recorder) Option {
	return func(a *Archipelago) {
		a.recorder = r
	}
}

// WithSeed seeds the migration RNG, pinning the Bernoulli pull
// decisions. Without it a seed is drawn from the global seed source.
func WithSeed(seed uint64) Option {
	return func(a *Archipelago) {
		a.migRNG = rand.New(rand.NewSource(int64(seed)))
	}
}

// New builds an empty archipelago with an unconnected topology.
func New(opts ...Option) *Archipelago {
	a := &Archipelago{
		idxMap: make(map[*island.Island]int),
		topo:   topology.NewUnconnected(0),
		policy: migration.Default(),
		log:    logging.GetLogger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.migRNG == nil {
		a.migRNG = rand.New(rand.NewSource(int64(core.NextSeed())))
	}
	return a
}

// IslandSpec describes how NewN builds each island.
type IslandSpec struct {
	UDI            island.UDI            // optional; ThreadIsland when nil
	Algorithm      *core.Algorithm       // required
	Problem        *core.Problem         // required
	BatchEvaluator *core.BatchEvaluator  // optional
	Size           int                   // population size
	Seed           uint64                // meta seed, see HasSeed
	HasSeed        bool                  // when set, Seed seeds a meta-RNG deriving per-island seeds
}

// NewN builds an archipelago of n islands from one spec. When the spec
// carries a seed, it seeds a meta generator from which each island's
// population seed is derived, so the islands differ deterministically;
// the islands never share the seed verbatim.
func NewN(n int, spec IslandSpec, opts ...Option) (*Archipelago, error) {
	a := New(opts...)
	var meta *rand.Rand
	if spec.HasSeed {
		meta = rand.New(rand.NewSource(int64(spec.Seed)))
	}
	for i := 0; i < n; i++ {
		var seed uint64
		if meta != nil {
			seed = meta.Uint64()
		} else {
			seed = core.NextSeed()
		}
		if err := a.pushBackSpec(spec, seed); err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

func (a *Archipelago) pushBackSpec(spec IslandSpec, seed uint64) error {
	if spec.Algorithm == nil || spec.Problem == nil {
		return errors.New(errors.InvalidOperation, "an island spec requires an algorithm and a problem")
	}
	var opts []island.Option
	if spec.UDI != nil {
		opts = append(opts, island.WithUDI(spec.UDI))
	}
	if spec.BatchEvaluator != nil {
		opts = append(opts, island.WithBatchEvaluator(spec.BatchEvaluator.Clone()))
	}
	isl, err := island.NewFromProblem(spec.Algorithm.Clone(), spec.Problem.Clone(), spec.Size, seed, opts...)
	if err != nil {
		return err
	}
	if err := a.PushBack(isl); err != nil {
		isl.Close()
		return err
	}
	return nil
}

// PushBackSpec constructs an island from spec with an explicit
// population seed and appends it.
func (a *Archipelago) PushBackSpec(spec IslandSpec, seed uint64) error {
	return a.pushBackSpec(spec, seed)
}

// PushBack takes ownership of isl and appends it: the island is indexed,
// a fresh migrant slot is added, the topology grows by one vertex, and
// the island's migration hooks are bound to this archipelago.
func (a *Archipelago) PushBack(isl *island.Island) error {
	if isl == nil {
		return errors.New(errors.InvalidOperation, "cannot add a nil island")
	}

	a.idxMu.Lock()
	if len(a.islands) >= MaxSize {
		a.idxMu.Unlock()
		return errors.Newf(errors.Overflow, "archipelago size limit of %d islands reached", MaxSize)
	}
	if _, dup := a.idxMap[isl]; dup {
		a.idxMu.Unlock()
		return errors.New(errors.InvalidOperation, "island already belongs to this archipelago")
	}
	a.islands = append(a.islands, isl)
	idx := len(a.islands) - 1
	a.idxMap[isl] = idx
	a.idxMu.Unlock()

	a.migrantsMu.Lock()
	a.migrants = append(a.migrants, core.IndividualsGroup{})
	a.migrantsMu.Unlock()

	a.topo.PushBack()
	isl.SetCoordinator(a)
	a.collector.SetIslands(idx + 1)
	a.log.Debug(context.Background(), "added island %s at index %d", isl.ID(), idx)
	return nil
}

// Size reports the number of islands.
func (a *Archipelago) Size() int {
	a.idxMu.Lock()
	defer a.idxMu.Unlock()
	return len(a.islands)
}

// At returns the island at index i.
func (a *Archipelago) At(i int) (*island.Island, error) {
	a.idxMu.Lock()
	defer a.idxMu.Unlock()
	if i < 0 || i >= len(a.islands) {
		return nil, errors.Newf(errors.OutOfRange,
			"island index %d out of range for archipelago of size %d", i, len(a.islands))
	}
	return a.islands[i], nil
}

// snapshot copies the islands slice for lock-free iteration.
func (a *Archipelago) snapshot() []*island.Island {
	a.idxMu.Lock()
	defer a.idxMu.Unlock()
	return append([]*island.Island(nil), a.islands...)
}

// Evolve enqueues n evolution tasks on every island, in index order,
// and returns immediately.
func (a *Archipelago) Evolve(n int) {
	a.waves.Add(1)
	for idx, isl := range a.snapshot() {
		isl.Evolve(n)
		a.collector.RecordEvolveTasks(strconv.Itoa(idx), n)
	}
}

// Wait blocks until every island is idle. It never reports an error.
func (a *Archipelago) Wait() {
	for _, isl := range a.snapshot() {
		isl.Wait()
	}
	if a.recorder != nil {
		if wave := a.waves.Load(); wave != 0 && a.recorded.Swap(wave) != wave {
			if err := a.recorder.RecordWave(context.Background(), a, wave); err != nil {
				a.log.Warn(context.Background(), "evolve-wave recorder failed: %v", err)
			}
		}
	}
}

// WaitCheck waits for every island, consuming latched errors in index
// order; the earliest island's error is returned after all islands have
// drained.
func (a *Archipelago) WaitCheck() error {
	var first error
	for idx, isl := range a.snapshot() {
		if err := isl.WaitCheck(); err != nil {
			a.collector.RecordTaskFailure(strconv.Itoa(idx))
			if first == nil {
				first = errors.WithFields(err, errors.Fields{"island_index": idx})
			}
		}
	}
	return first
}

// Status summarizes the archipelago: Error if any island has a latched
// error, else Busy if any island is evolving, else Idle.
func (a *Archipelago) Status() island.Status {
	status := island.Idle
	for _, isl := range a.snapshot() {
		switch isl.Status() {
		case island.Error:
			return island.Error
		case island.Busy:
			status = island.Busy
		}
	}
	return status
}

// IslandIdx returns the index of isl within this archipelago.
func (a *Archipelago) IslandIdx(isl *island.Island) (int, error) {
	a.idxMu.Lock()
	defer a.idxMu.Unlock()
	idx, ok := a.idxMap[isl]
	if !ok {
		return 0, errors.New(errors.NotFound, "the island is not a member of this archipelago")
	}
	return idx, nil
}

// ExtractMigrants atomically reads and clears the migrant buffer of
// island i.
func (a *Archipelago) ExtractMigrants(i int) (core.IndividualsGroup, error) {
	a.migrantsMu.Lock()
	defer a.migrantsMu.Unlock()
	if i < 0 || i >= len(a.migrants) {
		return core.IndividualsGroup{}, errors.Newf(errors.OutOfRange,
			"migrant slot %d out of range for archipelago of size %d", i, len(a.migrants))
	}
	g := a.migrants[i]
	a.migrants[i] = core.IndividualsGroup{}
	return g, nil
}

// MigrantsDB returns a deep copy of the migrant database.
func (a *Archipelago) MigrantsDB() []core.IndividualsGroup {
	a.migrantsMu.Lock()
	defer a.migrantsMu.Unlock()
	db := make([]core.IndividualsGroup, len(a.migrants))
	for i, g := range a.migrants {
		db[i] = g.Clone()
	}
	return db
}

// SetMigrantsDB replaces the migrant database with a deep copy of db,
// which must hold one slot per island.
func (a *Archipelago) SetMigrantsDB(db []core.IndividualsGroup) error {
	if len(db) != a.Size() {
		return errors.Newf(errors.ContractViolation,
			"migrant database of size %d assigned to an archipelago of size %d", len(db), a.Size())
	}
	for i := range db {
		if err := db[i].Validate(); err != nil {
			return err
		}
	}
	a.migrantsMu.Lock()
	defer a.migrantsMu.Unlock()
	a.migrants = make([]core.IndividualsGroup, len(db))
	for i, g := range db {
		a.migrants[i] = g.Clone()
	}
	return nil
}

// Topology returns a deep copy of the migration topology.
func (a *Archipelago) Topology() topology.Topology {
	return a.topo.Clone()
}

// SetTopology replaces the topology. The archipelago first waits for
// every island to go idle, so no in-flight migration observes the
// swap; the new topology is grown to the archipelago size if needed.
func (a *Archipelago) SetTopology(t topology.Topology) error {
	if t == nil {
		return errors.New(errors.InvalidOperation, "cannot set a nil topology")
	}
	size := a.Size()
	for t.Len() < size {
		t.PushBack()
	}
	if t.Len() != size {
		return errors.Newf(errors.ContractViolation,
			"topology with %d vertices assigned to an archipelago of size %d", t.Len(), size)
	}
	a.Wait()
	a.topo = t
	return nil
}

// IslandConnections returns the migration sources of island i.
func (a *Archipelago) IslandConnections(i int) ([]int, []float64, error) {
	if size := a.Size(); i < 0 || i >= size {
		return nil, nil, errors.Newf(errors.OutOfRange,
			"island index %d out of range for archipelago of size %d", i, size)
	}
	return a.topo.Connections(i)
}

// ChampionsX returns each island's champion decision vector.
func (a *Archipelago) ChampionsX() ([]core.DecisionVector, error) {
	var out []core.DecisionVector
	for _, isl := range a.snapshot() {
		pop := isl.Population()
		best, err := pop.Champion(0)
		if err != nil {
			return nil, err
		}
		out = append(out, pop.Xs()[best])
	}
	return out, nil
}

// ChampionsF returns each island's champion fitness vector.
func (a *Archipelago) ChampionsF() ([]core.FitnessVector, error) {
	var out []core.FitnessVector
	for _, isl := range a.snapshot() {
		pop := isl.Population()
		best, err := pop.Champion(0)
		if err != nil {
			return nil, err
		}
		out = append(out, pop.Fs()[best])
	}
	return out, nil
}

// Clone deep-copies the archipelago. The source is first drained, so
// the copy is idle: pending tasks and latched errors are not copied.
func (a *Archipelago) Clone() (*Archipelago, error) {
	a.Wait()
	out := New(
		WithTopology(a.topo.Clone()),
		WithPolicy(a.policy),
		WithMetrics(a.collector),
	)
	out.recorder = a.recorder
	for _, isl := range a.snapshot() {
		clone, err := isl.Clone()
		if err != nil {
			out.Close()
			return nil, err
		}
		// PushBack would grow the cloned topology past its size.
		out.idxMu.Lock()
		out.islands = append(out.islands, clone)
		out.idxMap[clone] = len(out.islands) - 1
		out.idxMu.Unlock()
		clone.SetCoordinator(out)
	}
	out.migrantsMu.Lock()
	out.migrants = make([]core.IndividualsGroup, 0, a.Size())
	a.migrantsMu.Lock()
	for _, g := range a.migrants {
		out.migrants = append(out.migrants, g.Clone())
	}
	a.migrantsMu.Unlock()
	out.migrantsMu.Unlock()
	out.collector.SetIslands(out.Size())
	return out, nil
}

// Close drains every island and stops their workers. The archipelago
// is only fit for destruction afterwards.
func (a *Archipelago) Close() {
	for _, isl := range a.snapshot() {
		isl.Wait()
		isl.SetCoordinator(nil)
		isl.Close()
	}
}
