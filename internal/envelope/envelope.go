// Package envelope implements a short linear attack/release gain ramp. It is
// not an ADSR; its only job is to keep note starts and stops free of clicks.
package envelope

import "github.com/cbegin/drawbar-go/internal/block"

type State int

const (
	Idle State = iota
	Attacking
	Sustaining
	Releasing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Attacking:
		return "attacking"
	case Sustaining:
		return "sustaining"
	case Releasing:
		return "releasing"
	default:
		return "unknown"
	}
}

// Envelope tracks a position in [0, rampLength]. The output gain is
// position/rampLength; the position moves one step per sample while
// attacking or releasing and holds otherwise.
type Envelope struct {
	state      State
	pos        int
	rampLength int
}

// New returns an idle envelope whose ramp lasts rampMillis at sampleRate.
// The ramp is never shorter than one sample.
func New(rampMillis int, sampleRate int) *Envelope {
	e := &Envelope{}
	e.Init(rampMillis, sampleRate)
	return e
}

// Init resets e in place.
func (e *Envelope) Init(rampMillis int, sampleRate int) {
	ramp := rampMillis * sampleRate / 1000
	if ramp < 1 {
		ramp = 1
	}
	*e = Envelope{rampLength: ramp}
}

// NoteOn starts or resumes the attack from the current position.
func (e *Envelope) NoteOn() {
	if e.state == Idle {
		e.pos = 0
	}
	if e.pos >= e.rampLength {
		e.state = Sustaining
		return
	}
	e.state = Attacking
}

// NoteOff starts the release from the current position.
func (e *Envelope) NoteOff() {
	if e.state == Idle {
		return
	}
	if e.pos <= 0 {
		e.state = Idle
		return
	}
	e.state = Releasing
}

func (e *Envelope) advance() {
	switch e.state {
	case Attacking:
		e.pos++
		if e.pos >= e.rampLength {
			e.pos = e.rampLength
			e.state = Sustaining
		}
	case Releasing:
		e.pos--
		if e.pos <= 0 {
			e.pos = 0
			e.state = Idle
		}
	}
}

// Process advances one sample and returns in scaled by the new gain.
func (e *Envelope) Process(in float32) float32 {
	e.advance()
	if e.pos == 0 {
		return 0
	}
	return in * e.Gain()
}

// ProcessBlock applies Process to every sample of b in place.
func (e *Envelope) ProcessBlock(b block.Block) {
	if e.state == Idle {
		b.Silence()
		return
	}
	if e.state == Sustaining {
		return
	}
	for i, s := range b {
		b[i] = e.Process(s)
	}
}

func (e *Envelope) State() State    { return e.state }
func (e *Envelope) Position() int   { return e.pos }
func (e *Envelope) RampLength() int { return e.rampLength }

// Gain returns the current output gain in [0, 1].
func (e *Envelope) Gain() float32 { return float32(e.pos) / float32(e.rampLength) }

// Active reports whether the envelope is producing any output.
func (e *Envelope) Active() bool { return e.state != Idle }
