package archipelago

import (
	"context"
	"strconv"

	"github.com/ow97/archi/pkg/core"
	"github.com/ow97/archi/pkg/island"
)

// PreEvolve implements island.Coordinator. It asks the topology for the
// sources feeding isl, reads their buffers under the migrant lock,
// decides per individual with a Bernoulli draw on the clipped edge
// weight, and merges the pulled individuals into pop.
func (a *Archipelago) PreEvolve(isl *island.Island, pop *core.Population) error {
	idx, err := a.IslandIdx(isl)
	if err != nil {
		return err
	}
	sources, weights, err := a.topo.Connections(idx)
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		return nil
	}

	var pulled core.IndividualsGroup
	a.migrantsMu.Lock()
	for k, s := range sources {
		if s < 0 || s >= len(a.migrants) {
			continue
		}
		w := weights[k]
		if w > 1 {
			w = 1
		}
		if w <= 0 {
			continue
		}
		g := a.migrants[s]
		for i := 0; i < g.Len(); i++ {
			if a.migRNG.Float64() < w {
				pulled.Push(g.IDs[i], g.Xs[i], g.Fs[i])
			}
		}
	}
	a.migrantsMu.Unlock()

	if pulled.Len() == 0 {
		return nil
	}
	if err := a.policy.Merge.Merge(pop, pulled); err != nil {
		return err
	}
	a.collector.RecordMigrantsPulled(strconv.Itoa(idx), pulled.Len())
	a.log.Debug(context.Background(), "island %d pulled %d migrants", idx, pulled.Len())
	return nil
}

// PostEvolve implements island.Coordinator. It selects emigrants from
// the evolved population and replaces the island's buffer slot under
// the migrant lock.
func (a *Archipelago) PostEvolve(isl *island.Island, pop *core.Population) error {
	idx, err := a.IslandIdx(isl)
	if err != nil {
		return err
	}
	emigrants, err := a.policy.Select.Select(pop)
	if err != nil {
		return err
	}

	a.migrantsMu.Lock()
	if idx < len(a.migrants) {
		a.migrants[idx] = emigrants
	}
	a.migrantsMu.Unlock()

	a.collector.RecordMigrantsPublished(strconv.Itoa(idx), emigrants.Len())
	return nil
}
