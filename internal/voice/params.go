package voice

import "fmt"

type Params struct {
	SampleRate int
	BlockSize  int
	RampMillis int
	// Harmonics holds the frequency multiplier of each oscillator relative
	// to the note's fundamental.
	Harmonics []float64
	// Levels holds the initial mixer gain of each oscillator.
	Levels []float32
	// DrawbarMap maps controller numbers to oscillator slots.
	DrawbarMap     map[uint8]int
	MaxDrawbarGain float32
	// VibratoHz and VibratoSemitones set the vibrato rate and the depth
	// reached with the mod wheel fully up.
	VibratoHz        float64
	VibratoSemitones float64
}

// IntegerHarmonics are the first eight partials of the harmonic series.
var IntegerHarmonics = []float64{1, 2, 3, 4, 5, 6, 7, 8}

// OrganHarmonics are the footages of a tonewheel organ's nine drawbars,
// 16' through 1', relative to the 8' fundamental.
var OrganHarmonics = []float64{0.5, 1.5, 1, 2, 3, 4, 5, 6, 8}

// DefaultLevels is the starting harmonic mix for IntegerHarmonics.
var DefaultLevels = []float32{0.5, 0.3, 0.05, 0.2, 0.05, 0.2, 0.05, 0.05}

// DefaultDrawbarMap assigns controllers 70-77 to the eight default
// oscillators.
func DefaultDrawbarMap(slots int) map[uint8]int {
	m := make(map[uint8]int, slots)
	for i := 0; i < slots; i++ {
		m[uint8(70+i)] = i
	}
	return m
}

func DefaultParams() Params {
	return Params{
		SampleRate:       44100,
		BlockSize:        16,
		RampMillis:       20,
		Harmonics:        append([]float64(nil), IntegerHarmonics...),
		Levels:           append([]float32(nil), DefaultLevels...),
		DrawbarMap:       DefaultDrawbarMap(len(IntegerHarmonics)),
		MaxDrawbarGain:   0.5,
		VibratoHz:        6,
		VibratoSemitones: 0.5,
	}
}

func (p Params) Validate() error {
	switch {
	case p.SampleRate <= 0:
		return fmt.Errorf("%w: sample rate %d", ErrInvalidParams, p.SampleRate)
	case p.BlockSize <= 0:
		return fmt.Errorf("%w: block size %d", ErrInvalidParams, p.BlockSize)
	case p.RampMillis < 0:
		return fmt.Errorf("%w: ramp %dms", ErrInvalidParams, p.RampMillis)
	case len(p.Harmonics) == 0:
		return fmt.Errorf("%w: no harmonics", ErrInvalidParams)
	case len(p.Levels) != len(p.Harmonics):
		return fmt.Errorf("%w: %d levels for %d harmonics", ErrInvalidParams, len(p.Levels), len(p.Harmonics))
	case p.MaxDrawbarGain < 0:
		return fmt.Errorf("%w: max drawbar gain %v", ErrInvalidParams, p.MaxDrawbarGain)
	case p.VibratoHz < 0 || p.VibratoSemitones < 0:
		return fmt.Errorf("%w: vibrato %vHz %v semitones", ErrInvalidParams, p.VibratoHz, p.VibratoSemitones)
	}
	for i, h := range p.Harmonics {
		if !(h > 0) {
			return fmt.Errorf("%w: harmonic %d multiplier %v", ErrInvalidParams, i, h)
		}
	}
	for cc, slot := range p.DrawbarMap {
		if cc > 127 || slot < 0 || slot >= len(p.Harmonics) {
			return fmt.Errorf("%w: controller %d mapped to slot %d", ErrInvalidParams, cc, slot)
		}
	}
	return nil
}
