package lfo

// Waveform constants.
const (
	WaveSaw      = 0
	WaveSquare   = 1
	WaveTriangle = 2
)

// LFO is a low-frequency oscillator evaluated at block rate. Each voice owns
// its own LFO so no state is shared between workers.
type LFO struct {
	depth    float64 // output range is [-depth, +depth]
	rateHz   float64
	waveform int     // 0=saw, 1=square, 2=triangle
	phase    float64 // current phase [0, 1)
}

// Set configures the LFO parameters. Unknown waveforms fall back to triangle.
func (l *LFO) Set(depth, rateHz float64, waveform int) {
	l.depth = depth
	l.rateHz = rateHz
	if waveform < WaveSaw || waveform > WaveTriangle {
		waveform = WaveTriangle
	}
	l.waveform = waveform
}

// SetDepth changes only the depth, keeping phase and rate.
func (l *LFO) SetDepth(depth float64) {
	l.depth = depth
}

func (l *LFO) Depth() float64 { return l.depth }

// Step returns the value at the current phase and then advances by samples
// at sampleRate. Returns 0 if depth or rate is zero.
func (l *LFO) Step(samples int, sampleRate float64) float64 {
	if l.depth == 0 || l.rateHz == 0 || sampleRate == 0 {
		return 0
	}

	var waveVal float64
	switch l.waveform {
	case WaveSaw:
		waveVal = 1.0 - 2.0*l.phase
	case WaveSquare:
		if l.phase < 0.5 {
			waveVal = 1.0
		} else {
			waveVal = -1.0
		}
	default: // WaveTriangle
		if l.phase < 0.5 {
			waveVal = 4.0*l.phase - 1.0
		} else {
			waveVal = 3.0 - 4.0*l.phase
		}
	}

	l.phase += l.rateHz * float64(samples) / sampleRate
	for l.phase >= 1.0 {
		l.phase -= 1.0
	}

	return waveVal * l.depth
}

// Active returns true if the LFO has non-zero depth and rate.
func (l *LFO) Active() bool {
	return l.depth != 0 && l.rateHz != 0
}

// Reset zeros the LFO phase.
func (l *LFO) Reset() {
	l.phase = 0
}
