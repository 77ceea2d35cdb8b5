// Package serialize persists and restores archipelagos over any
// io.Writer/io.Reader pair. Plug-ins (problems, algorithms, island
// strategies, batch evaluators, topologies) are encoded as a kind name
// plus a JSON payload; decoding resolves kinds through an explicit,
// caller-owned Registry. There is no global type registry.
package serialize

import (
	"encoding/json"
	"io"

	"github.com/ow97/archi/pkg/archipelago"
	"github.com/ow97/archi/pkg/core"
	"github.com/ow97/archi/pkg/errors"
	"github.com/ow97/archi/pkg/island"
	"github.com/ow97/archi/pkg/topology"
)

// Registry maps kind names to plug-in factories. A factory returns a
// fresh instance the JSON payload is decoded into, so factories must
// return pointers for stateful kinds.
type Registry struct {
	problems   map[string]func() core.UserProblem
	algorithms map[string]func() core.UserAlgorithm
	udis       map[string]func() island.UDI
	bfes       map[string]func() core.UserBatchEvaluator
	topologies map[string]func() topology.Topology
}

// NewRegistry builds a registry pre-loaded with the library's own
// kinds: the thread island strategy, the built-in batch evaluators and
// the built-in topologies.
func NewRegistry() *Registry {
	r := &Registry{
		problems:   make(map[string]func() core.UserProblem),
		algorithms: make(map[string]func() core.UserAlgorithm),
		udis:       make(map[string]func() island.UDI),
		bfes:       make(map[string]func() core.UserBatchEvaluator),
		topologies: make(map[string]func() topology.Topology),
	}
	r.RegisterUDI("thread_island", func() island.UDI { return &island.ThreadIsland{} })
	r.RegisterBatchEvaluator("thread_bfe", func() core.UserBatchEvaluator { return &core.ThreadBfe{} })
	r.RegisterBatchEvaluator("member_bfe", func() core.UserBatchEvaluator { return &core.MemberBfe{} })
	r.RegisterTopology("unconnected", func() topology.Topology { return NewEmptyUnconnected() })
	r.RegisterTopology("fully_connected", func() topology.Topology { return &topology.FullyConnected{} })
	r.RegisterTopology("ring", func() topology.Topology { return &topology.Ring{} })
	return r
}

// NewEmptyUnconnected returns a zero-vertex unconnected topology.
func NewEmptyUnconnected() topology.Topology { return topology.NewUnconnected(0) }

// RegisterProblem binds a problem kind name to its factory.
func (r *Registry) RegisterProblem(kind string, f func() core.UserProblem) {
	r.problems[kind] = f
}

// RegisterAlgorithm binds an algorithm kind name to its factory.
func (r *Registry) RegisterAlgorithm(kind string, f func() core.UserAlgorithm) {
	r.algorithms[kind] = f
}

// RegisterUDI binds an island-strategy kind name to its factory.
func (r *Registry) RegisterUDI(kind string, f func() island.UDI) {
	r.udis[kind] = f
}

// RegisterBatchEvaluator binds a batch-evaluator kind name to its
// factory.
func (r *Registry) RegisterBatchEvaluator(kind string, f func() core.UserBatchEvaluator) {
	r.bfes[kind] = f
}

// RegisterTopology binds a topology kind name to its factory.
func (r *Registry) RegisterTopology(kind string, f func() topology.Topology) {
	r.topologies[kind] = f
}

// handleRecord is the on-wire shape of every plug-in.
type handleRecord struct {
	Kind string          `json:"kind"`
	Spec json.RawMessage `json:"spec"`
}

type populationRecord struct {
	IDs   []uint64              `json:"ids"`
	Xs    []core.DecisionVector `json:"xs"`
	Fs    []core.FitnessVector  `json:"fs"`
	Seed  uint64                `json:"seed"`
	Draws uint64                `json:"draws"`
}

type islandRecord struct {
	Problem    handleRecord     `json:"problem"`
	Algorithm  handleRecord     `json:"algorithm"`
	UDI        handleRecord     `json:"udi"`
	Population populationRecord `json:"population"`
	Bfe        *handleRecord    `json:"bfe,omitempty"`
}

type archipelagoRecord struct {
	Islands  []islandRecord          `json:"islands"`
	Migrants []core.IndividualsGroup `json:"migrants"`
	Topology handleRecord            `json:"topology"`
}

// kindOf resolves the kind name of a plug-in value.
func kindOf(v interface{}) (string, error) {
	if n, ok := v.(core.Named); ok {
		return n.Name(), nil
	}
	return "", errors.Newf(errors.InvalidOperation,
		"%T cannot be serialized: it does not report a kind name", v)
}

func encodeHandle(v interface{}) (handleRecord, error) {
	kind, err := kindOf(v)
	if err != nil {
		return handleRecord{}, err
	}
	spec, err := json.Marshal(v)
	if err != nil {
		return handleRecord{}, errors.Wrap(err, errors.InvalidOperation, "cannot encode plug-in payload")
	}
	return handleRecord{Kind: kind, Spec: spec}, nil
}

// SaveArchipelago drains a and writes its persistent state to w as the
// triple (islands, migrant database, topology).
func SaveArchipelago(w io.Writer, a *archipelago.Archipelago) error {
	a.Wait()

	rec := archipelagoRecord{
		Migrants: a.MigrantsDB(),
	}
	topo := a.Topology()
	topoRec, err := encodeHandle(topo)
	if err != nil {
		return err
	}
	rec.Topology = topoRec

	for i := 0; i < a.Size(); i++ {
		isl, err := a.At(i)
		if err != nil {
			return err
		}
		islRec, err := encodeIsland(isl)
		if err != nil {
			return err
		}
		rec.Islands = append(rec.Islands, islRec)
	}

	return json.NewEncoder(w).Encode(rec)
}

// SaveIsland writes a standalone island to w.
func SaveIsland(w io.Writer, isl *island.Island) error {
	isl.Wait()
	rec, err := encodeIsland(isl)
	if err != nil {
		return err
	}
	return json.NewEncoder(w).Encode(rec)
}

func encodeIsland(isl *island.Island) (islandRecord, error) {
	var rec islandRecord

	pop := isl.Population()
	probRec, err := encodeHandle(pop.Problem().Inner())
	if err != nil {
		return rec, err
	}
	rec.Problem = probRec

	algoRec, err := encodeHandle(isl.Algorithm().Inner())
	if err != nil {
		return rec, err
	}
	rec.Algorithm = algoRec

	udiRec, err := encodeHandle(isl.UDI())
	if err != nil {
		return rec, err
	}
	rec.UDI = udiRec

	if bfe := isl.BatchEvaluator(); bfe != nil {
		bfeRec, err := encodeHandle(bfe.Inner())
		if err != nil {
			return rec, err
		}
		rec.Bfe = &bfeRec
	}

	rec.Population = populationRecord{
		IDs:   pop.IDs(),
		Xs:    pop.Xs(),
		Fs:    pop.Fs(),
		Seed:  pop.Seed(),
		Draws: pop.RNGDraws(),
	}
	return rec, nil
}

// LoadArchipelago reads an archipelago from r, resolving plug-in kinds
// through reg. The result is a fully built, idle archipelago; on any
// decoding failure nothing partial escapes.
func LoadArchipelago(rd io.Reader, reg *Registry, opts ...archipelago.Option) (*archipelago.Archipelago, error) {
	var rec archipelagoRecord
	if err := json.NewDecoder(rd).Decode(&rec); err != nil {
		return nil, errors.Wrap(err, errors.InvalidOperation, "cannot decode archipelago record")
	}

	topoFactory, ok := reg.topologies[rec.Topology.Kind]
	if !ok {
		return nil, errors.Newf(errors.NotFound, "unknown topology kind %q", rec.Topology.Kind)
	}
	topo := topoFactory()
	if err := json.Unmarshal(rec.Topology.Spec, topo); err != nil {
		return nil, errors.Wrap(err, errors.InvalidOperation, "cannot decode topology payload")
	}

	a := archipelago.New(opts...)
	ok = false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	for i := range rec.Islands {
		isl, err := decodeIsland(rec.Islands[i], reg)
		if err != nil {
			return nil, err
		}
		if err := a.PushBack(isl); err != nil {
			isl.Close()
			return nil, err
		}
	}
	if err := a.SetTopology(topo); err != nil {
		return nil, err
	}
	if err := a.SetMigrantsDB(rec.Migrants); err != nil {
		return nil, err
	}
	ok = true
	return a, nil
}

// LoadIsland reads a standalone island from r.
func LoadIsland(rd io.Reader, reg *Registry) (*island.Island, error) {
	var rec islandRecord
	if err := json.NewDecoder(rd).Decode(&rec); err != nil {
		return nil, errors.Wrap(err, errors.InvalidOperation, "cannot decode island record")
	}
	return decodeIsland(rec, reg)
}

func decodeIsland(rec islandRecord, reg *Registry) (*island.Island, error) {
	probFactory, ok := reg.problems[rec.Problem.Kind]
	if !ok {
		return nil, errors.Newf(errors.NotFound, "unknown problem kind %q", rec.Problem.Kind)
	}
	udp := probFactory()
	if err := json.Unmarshal(rec.Problem.Spec, udp); err != nil {
		return nil, errors.Wrap(err, errors.InvalidOperation, "cannot decode problem payload")
	}
	prob, err := core.NewProblem(udp)
	if err != nil {
		return nil, err
	}

	algoFactory, ok := reg.algorithms[rec.Algorithm.Kind]
	if !ok {
		return nil, errors.Newf(errors.NotFound, "unknown algorithm kind %q", rec.Algorithm.Kind)
	}
	uda := algoFactory()
	if err := json.Unmarshal(rec.Algorithm.Spec, uda); err != nil {
		return nil, errors.Wrap(err, errors.InvalidOperation, "cannot decode algorithm payload")
	}
	algo, err := core.NewAlgorithm(uda)
	if err != nil {
		return nil, err
	}

	udiFactory, ok := reg.udis[rec.UDI.Kind]
	if !ok {
		return nil, errors.Newf(errors.NotFound, "unknown island strategy kind %q", rec.UDI.Kind)
	}
	udi := udiFactory()
	if err := json.Unmarshal(rec.UDI.Spec, udi); err != nil {
		return nil, errors.Wrap(err, errors.InvalidOperation, "cannot decode island strategy payload")
	}

	pop, err := core.RestorePopulation(prob,
		rec.Population.IDs, rec.Population.Xs, rec.Population.Fs,
		rec.Population.Seed, rec.Population.Draws)
	if err != nil {
		return nil, err
	}

	opts := []island.Option{island.WithUDI(udi)}
	if rec.Bfe != nil {
		bfeFactory, ok := reg.bfes[rec.Bfe.Kind]
		if !ok {
			return nil, errors.Newf(errors.NotFound, "unknown batch evaluator kind %q", rec.Bfe.Kind)
		}
		ube := bfeFactory()
		if err := json.Unmarshal(rec.Bfe.Spec, ube); err != nil {
			return nil, errors.Wrap(err, errors.InvalidOperation, "cannot decode batch evaluator payload")
		}
		bfe, err := core.NewBatchEvaluator(ube)
		if err != nil {
			return nil, err
		}
		opts = append(opts, island.WithBatchEvaluator(bfe))
	}

	return island.New(algo, pop, opts...)
}
