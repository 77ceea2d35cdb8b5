// Package archi is the concurrency and migration core of a parallel
// metaheuristic optimization framework. It orchestrates many
// independent evolutionary optimizers ("islands") running concurrently,
// each mutating its own candidate-solution population, while
// periodically exchanging individuals along a user-defined
// communication graph ("topology").
//
// Key components:
//
//   - Core: the type-erased handles user plug-ins are wrapped in
//     (Problem, Algorithm, BatchEvaluator) together with the Population
//     data model: aligned (ID, decision vector, fitness vector) triples,
//     champion extraction and the constrained and multi-objective
//     orderings.
//
//   - Island: one asynchronous evolutionary worker. Evolution tasks are
//     enqueued on a private FIFO queue and executed by a dedicated
//     worker through a pluggable execution strategy (UDI); failures are
//     latched per island and surfaced by WaitCheck.
//
//   - Archipelago: the island container. It owns the migrant database
//     and the topology, broadcasts evolve/wait requests, and mediates
//     migration between islands through pre- and post-evolve hooks.
//
//   - Topology: directed weighted graphs over island indices
//     (unconnected, fully connected, ring) deciding who pulls migrants
//     from whom.
//
//   - Migration: the selection and merge policies applied at the two
//     migration hooks.
//
//   - Serialize: archipelago persistence over any reader/writer pair,
//     with plug-in kinds resolved through an explicit registry.
//
//   - Storage: an optional SQLite recorder tracking per-island champion
//     trajectories across evolve waves.
//
// A minimal single-island run:
//
//	prob, _ := core.NewProblem(myProblem)
//	algo, _ := core.NewAlgorithm(myAlgorithm)
//	isl, _ := island.NewFromProblem(algo, prob, 20, 42)
//	arch := archipelago.New()
//	arch.PushBack(isl)
//	arch.Evolve(10)
//	if err := arch.WaitCheck(); err != nil {
//		// a task on some island failed
//	}
package archi
