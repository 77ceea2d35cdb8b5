package core

import (
	"math/rand"
	"sync"
	"time"
)

// seedSource is the process-wide fallback source of seeds, used by
// constructors that are not handed an explicit seed. Deriving seeds from
// it introduces ordering between otherwise independent constructions;
// callers that need reproducibility should pass explicit seeds instead.
var seedSource = struct {
	mu  sync.Mutex
	rng *rand.Rand
}{
	rng: rand.New(rand.NewSource(time.Now().UnixNano())),
}

// SeedGlobal reseeds the process-wide seed source.
func SeedGlobal(seed uint64) {
	seedSource.mu.Lock()
	defer seedSource.mu.Unlock()
	seedSource.rng = rand.New(rand.NewSource(int64(seed)))
}

// NextSeed draws the next seed from the process-wide seed source.
func NextSeed() uint64 {
	seedSource.mu.Lock()
	defer seedSource.mu.Unlock()
	return seedSource.rng.Uint64()
}

// newRNG builds a deterministic generator from an explicit seed.
func newRNG(seed uint64) *rand.Rand {
	return rand.New(rand.NewSource(int64(seed)))
}
