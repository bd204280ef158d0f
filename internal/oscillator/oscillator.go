// Package oscillator implements a sine oscillator driven by a fixed-point
// phase accumulator.
package oscillator

import (
	"math"

	"github.com/cbegin/drawbar-go/internal/block"
)

const twoPi = math.Pi * 2

// fracBits is the number of fractional bits in the accumulator. One output
// sample advances the phase by exactly 1<<fracBits.
const fracBits = 16

const step = 1 << fracBits

// MaxFrequencyRatio is the highest usable frequency as a fraction of the
// sample rate. It sits below Nyquist (0.5) to keep the top partials of high
// notes from aliasing; anything at or above it renders as silence.
const MaxFrequencyRatio = 0.45

// Oscillator produces a sine wave. The phase is held as pos in 16.16 fixed
// point samples; one cycle spans period units, so pos is always in
// [0, period). Changing frequency changes period, and pos is rescaled into
// the new cycle so the waveform continues from the same phase angle.
type Oscillator struct {
	sampleRate int
	freq       float64
	pos        uint32
	increment  uint32
	period     uint32
}

// New returns a silent oscillator for the given sample rate.
func New(sampleRate int) *Oscillator {
	o := &Oscillator{}
	o.Init(sampleRate)
	return o
}

// Init resets o in place. It lets owners hold oscillators by value.
func (o *Oscillator) Init(sampleRate int) {
	*o = Oscillator{sampleRate: sampleRate}
}

// SetFrequency retunes the oscillator. Frequencies that are not positive or
// not below MaxFrequencyRatio*sampleRate silence it.
func (o *Oscillator) SetFrequency(hz float64) {
	o.freq = hz
	if !(hz > 0) || hz >= MaxFrequencyRatio*float64(o.sampleRate) {
		o.increment = 0
		o.pos = 0
		return
	}
	newPeriod := periodFor(hz, o.sampleRate)
	if o.period == 0 || o.increment == 0 {
		o.pos = 0
	} else {
		// pos < period, so pos*newPeriod/period < newPeriod: the remapped
		// position is always inside the new cycle. uint64 holds the product
		// of two uint32 values without overflow.
		o.pos = uint32(uint64(o.pos) * uint64(newPeriod) / uint64(o.period))
	}
	o.period = newPeriod
	o.increment = step
}

// periodFor returns the cycle length in 16.16 fixed point samples, clamped
// to the accumulator range for very low frequencies.
func periodFor(hz float64, sampleRate int) uint32 {
	p := float64(sampleRate) * step / hz
	if p >= math.MaxUint32 {
		return math.MaxUint32
	}
	if p < step {
		return step
	}
	return uint32(p)
}

// Frequency returns the last requested frequency, even if it was clamped to
// silence.
func (o *Oscillator) Frequency() float64 { return o.freq }

// Silent reports whether the oscillator is currently producing silence.
func (o *Oscillator) Silent() bool { return o.increment == 0 }

// Phase returns the current position as a fraction of one cycle.
func (o *Oscillator) Phase() float64 {
	if o.period == 0 || o.increment == 0 {
		return 0
	}
	return float64(o.pos) / float64(o.period)
}

// Next returns one sample and advances the phase.
func (o *Oscillator) Next() float32 {
	if o.increment == 0 {
		return 0
	}
	s := math.Sin(twoPi * float64(o.pos) / float64(o.period))
	next := uint64(o.pos) + uint64(o.increment)
	o.pos = uint32(next % uint64(o.period))
	return float32(s)
}

// Render fills dst with consecutive samples.
func (o *Oscillator) Render(dst block.Block) {
	if o.increment == 0 {
		dst.Silence()
		return
	}
	for i := range dst {
		dst[i] = o.Next()
	}
}
