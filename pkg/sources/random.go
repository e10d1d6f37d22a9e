// Package sources provides SampleSource implementations that feed a
// producer with synthetic or file-backed audio.
package sources

import (
	"math/rand/v2"
	"time"

	"github.com/drgolem/uacsim/pkg/types"
)

// Random generates white noise uniformly distributed in [-1.0, 1.0].
// Each instance owns its generator so streams never share state.
type Random struct {
	rng *rand.Rand
}

// NewRandom creates a noise source. A zero seed picks a time-based seed.
func NewRandom(seed uint64) *Random {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Random{
		rng: rand.New(rand.NewPCG(seed, seed^0x9E3779B97F4A7C15)),
	}
}

// Fill writes len(samples) noise samples
func (r *Random) Fill(samples []float32) {
	for i := range samples {
		samples[i] = r.rng.Float32()*2 - 1
	}
}

var _ types.SampleSource = (*Random)(nil)
