package simulation

import (
	"math"
)

// Rand is a seeded 64-bit linear congruential generator with a Box-Muller
// normal sampler. It is a plain value: copying it forks the stream, and two
// generators built from the same seed produce identical sequences.
type Rand struct {
	state    uint64
	spare    float64
	hasSpare bool
}

const (
	lcgMultiplier = 6364136223846793005
	lcgIncrement  = 1442695040888963407
)

// NewRand returns a generator seeded with seed
func NewRand(seed uint64) Rand {
	r := Rand{state: seed}
	r.next()
	return r
}

func (r *Rand) next() uint64 {
	r.state = r.state*lcgMultiplier + lcgIncrement
	return r.state
}

// Float64 returns a uniform value in [0, 1) built from the top 53 bits
func (r *Rand) Float64() float64 {
	return float64(r.next()>>11) / (1 << 53)
}

// NormFloat64 returns a standard normal deviate. Box-Muller yields two
// deviates per pair of uniforms; the second is kept for the next call.
func (r *Rand) NormFloat64() float64 {
	if r.hasSpare {
		r.hasSpare = false
		return r.spare
	}
	u1 := 1 - r.Float64() // (0, 1], keeps the log finite
	u2 := r.Float64()
	radius := math.Sqrt(-2 * math.Log(u1))
	theta := 2 * math.Pi * u2
	r.spare = radius * math.Sin(theta)
	r.hasSpare = true
	return radius * math.Cos(theta)
}

// mix scrambles an iteration index into a seed offset (splitmix64 finalizer)
func mix(i uint64) uint64 {
	z := i + 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// iterationRand returns the independent generator for one simulation iteration
func iterationRand(seed uint64, iteration int) Rand {
	return NewRand(seed ^ mix(uint64(iteration)))
}
