package nn

import (
	"math"
	"math/rand/v2"
)

// DefaultInitScale is the width of the uniform range used by NewUniform
// when no scale is configured: weights fall in [-0.05, 0.05).
const DefaultInitScale = 0.1

// Initializer fills a weight buffer with starting values.
//
// Implementations own their random state; two initializers built with the
// same seed produce the same sequence regardless of what else runs in the
// process.
type Initializer interface {
	// Init fills data. fanIn and fanOut describe the layer being initialized.
	Init(data []float32, fanIn, fanOut int)
}

// Uniform draws weights from U(-scale/2, scale/2).
type Uniform struct {
	rng   *rand.Rand
	scale float32
}

// NewUniform creates a seeded uniform initializer.
//
// The distribution is zero-mean with magnitude bounded by scale/2.
func NewUniform(seed uint64, scale float32) *Uniform {
	if scale <= 0 {
		scale = DefaultInitScale
	}
	return &Uniform{
		rng:   rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		scale: scale,
	}
}

// Init fills data with uniform values. fanIn and fanOut are ignored.
func (u *Uniform) Init(data []float32, _, _ int) {
	for i := range data {
		data[i] = (u.rng.Float32() - 0.5) * u.scale
	}
}

// Xavier is Glorot uniform initialization.
//
// Values are drawn from U(-sqrt(6/(fan_in + fan_out)), sqrt(6/(fan_in + fan_out))),
// which keeps activation variance roughly constant across layers.
type Xavier struct {
	rng *rand.Rand
}

// NewXavier creates a seeded Xavier initializer.
func NewXavier(seed uint64) *Xavier {
	return &Xavier{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Init fills data using the Glorot bound for the given fan-in and fan-out.
func (x *Xavier) Init(data []float32, fanIn, fanOut int) {
	bound := math.Sqrt(6.0 / float64(fanIn+fanOut))
	for i := range data {
		data[i] = float32((x.rng.Float64()*2.0 - 1.0) * bound)
	}
}

// Constant fills every weight with the same value. Mostly useful in tests.
type Constant float32

// Init fills data with c.
func (c Constant) Init(data []float32, _, _ int) {
	for i := range data {
		data[i] = float32(c)
	}
}
