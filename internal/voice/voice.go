// Package voice implements one monophonic additive synthesis chain: a bank of
// harmonically related sine oscillators, a mixer over the bank, and a
// click-suppressing envelope.
package voice

import (
	"math"

	"github.com/cbegin/drawbar-go/internal/block"
	"github.com/cbegin/drawbar-go/internal/envelope"
	"github.com/cbegin/drawbar-go/internal/lfo"
	"github.com/cbegin/drawbar-go/internal/midi"
	"github.com/cbegin/drawbar-go/internal/mixer"
	"github.com/cbegin/drawbar-go/internal/oscillator"
)

const noNote = -1

// Voice owns all of its DSP state by value. The mixer addresses oscillators
// by index into oscs and partials. A Voice must only be touched by the
// goroutine that renders it.
type Voice struct {
	sampleRate  int
	harmonics   []float64
	oscs        []oscillator.Oscillator
	partials    []block.Block
	frame       []float32
	mixer       mixer.Mixer
	env         envelope.Envelope
	vibrato     lfo.LFO
	vibratoMax  float64
	drawbars    map[uint8]int
	drawbarMax  float32
	fundamental float64
	detuned     bool // oscillators are off the fundamental's harmonics
	tick        int  // samples rendered through Next in the current block
	note        int
}

// New builds a voice from validated params.
func New(p Params) *Voice {
	n := len(p.Harmonics)
	v := &Voice{
		sampleRate: p.SampleRate,
		harmonics:  append([]float64(nil), p.Harmonics...),
		oscs:       make([]oscillator.Oscillator, n),
		partials:   make([]block.Block, n),
		frame:      make([]float32, n),
		vibratoMax: p.VibratoSemitones,
		drawbars:   make(map[uint8]int, len(p.DrawbarMap)),
		drawbarMax: p.MaxDrawbarGain,
		note:       noNote,
	}
	for i := range v.oscs {
		v.oscs[i].Init(p.SampleRate)
		v.partials[i] = block.New(p.BlockSize)
	}
	for cc, slot := range p.DrawbarMap {
		v.drawbars[cc] = slot
	}
	v.mixer.Init(p.Levels...)
	v.env.Init(p.RampMillis, p.SampleRate)
	v.vibrato.Set(0, p.VibratoHz, lfo.WaveTriangle)
	return v
}

func (v *Voice) setPitch(freq float64) {
	for i := range v.oscs {
		v.oscs[i].SetFrequency(freq * v.harmonics[i])
	}
}

// modulate applies vibrato for the next block of samples. Once the depth
// drops to zero the oscillators return to the plain harmonics.
func (v *Voice) modulate(samples int) {
	if v.vibrato.Active() {
		semis := v.vibrato.Step(samples, float64(v.sampleRate))
		v.setPitch(v.fundamental * math.Pow(2, semis/12))
		v.detuned = true
		return
	}
	if v.detuned {
		v.setPitch(v.fundamental)
		v.detuned = false
	}
}

func (v *Voice) HandleMessage(msg midi.Message) {
	switch msg.Kind {
	case midi.KindNoteOn:
		v.fundamental = midi.NoteToHz(int(msg.Key))
		v.setPitch(v.fundamental)
		v.detuned = false
		v.env.NoteOn()
		v.note = int(msg.Key)
	case midi.KindNoteOff:
		if int(msg.Key) == v.note {
			v.env.NoteOff()
		}
	case midi.KindAllNotesOff:
		v.env.NoteOff()
	case midi.KindControlChange:
		v.controlChange(msg.Key, msg.Value)
	}
}

func (v *Voice) controlChange(controller, value uint8) {
	if slot, ok := v.drawbars[controller]; ok {
		// Drawbars read backwards: pushing the controller up pulls the
		// drawbar in and quietens the partial.
		v.mixer.SetLevel(slot, float32(127-int(value))/127*v.drawbarMax)
		return
	}
	if controller == midi.ControllerModWheel {
		v.vibrato.SetDepth(float64(value) / 127 * v.vibratoMax)
	}
}

// Render writes the next len(dst) samples of the voice into dst.
func (v *Voice) Render(dst block.Block) {
	if !v.env.Active() {
		dst.Silence()
		return
	}
	v.modulate(len(dst))
	for i := range v.oscs {
		v.oscs[i].Render(v.partials[i])
	}
	v.mixer.MixBlocks(dst, v.partials)
	v.env.ProcessBlock(dst)
}

// Next renders a single sample. It is the per-sample equivalent of Render
// with a block of BlockSize samples, including the once-per-block vibrato
// update, and must not be interleaved with it inside one block.
func (v *Voice) Next() float32 {
	if !v.env.Active() {
		return 0
	}
	if v.tick == 0 {
		v.modulate(len(v.partials[0]))
	}
	v.tick = (v.tick + 1) % len(v.partials[0])
	for i := range v.oscs {
		v.frame[i] = v.oscs[i].Next()
	}
	return v.env.Process(v.mixer.Mix(v.frame))
}

// Note returns the last note this voice was asked to play and whether it is
// still audible.
func (v *Voice) Note() (int, bool) {
	if v.note == noNote {
		return 0, false
	}
	return v.note, v.env.Active()
}

// Envelope exposes the envelope state for inspection.
func (v *Voice) Envelope() *envelope.Envelope { return &v.env }

// Level returns the current mixer gain for an oscillator slot.
func (v *Voice) Level(slot int) float32 { return v.mixer.Level(slot) }

// Frequency returns the current frequency of an oscillator slot.
func (v *Voice) Frequency(slot int) float64 { return v.oscs[slot].Frequency() }
