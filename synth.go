// Package drawbar is a polyphonic additive synthesizer. Each note is built
// from a bank of sine oscillators tuned to harmonics of the note, mixed by
// per-harmonic drawbar levels that MIDI controllers can move while it plays.
package drawbar

import (
	"errors"
	"log/slog"
	"sync"

	intaudio "github.com/cbegin/drawbar-go/internal/audio"
	intmidi "github.com/cbegin/drawbar-go/internal/midi"
	intpool "github.com/cbegin/drawbar-go/internal/pool"
	intvoice "github.com/cbegin/drawbar-go/internal/voice"
)

// Message is one note or controller event.
type Message = intmidi.Message

// Backend names an audio output implementation.
type Backend = intaudio.Backend

const (
	BackendEbiten = intaudio.BackendEbiten
	BackendOto    = intaudio.BackendOto
)

// Routing selects which voices receive controller messages.
type Routing = intpool.Routing

const (
	RouteBroadcast = intpool.RouteBroadcast
	RouteSounding  = intpool.RouteSounding
)

var ErrClosed = errors.New("drawbar: synth closed")

// ErrQueueFull reports a message dropped because a render worker had no
// room for it, typically while no audio output is consuming blocks.
var ErrQueueFull = intpool.ErrQueueFull

type Option func(*intpool.Params)

func WithSampleRate(hz int) Option {
	return func(p *intpool.Params) { p.Voice.SampleRate = hz }
}

func WithBlockSize(samples int) Option {
	return func(p *intpool.Params) { p.Voice.BlockSize = samples }
}

func WithPolyphony(voices int) Option {
	return func(p *intpool.Params) { p.Polyphony = voices }
}

// WithWorkers sets the number of render workers. One worker renders on the
// audio callback's goroutine; more start a goroutine each.
func WithWorkers(n int) Option {
	return func(p *intpool.Params) { p.Workers = n }
}

func WithRampMillis(ms int) Option {
	return func(p *intpool.Params) { p.Voice.RampMillis = ms }
}

// WithHarmonics replaces the oscillator bank. levels holds the initial
// drawbar gain of each harmonic and must be the same length. The default
// drawbar controller map is rebuilt for the new bank.
func WithHarmonics(harmonics []float64, levels []float32) Option {
	return func(p *intpool.Params) {
		p.Voice.Harmonics = append([]float64(nil), harmonics...)
		p.Voice.Levels = append([]float32(nil), levels...)
		p.Voice.DrawbarMap = intvoice.DefaultDrawbarMap(len(harmonics))
	}
}

// WithOrganHarmonics selects the nine tonewheel organ footages.
func WithOrganHarmonics() Option {
	return func(p *intpool.Params) {
		p.Voice.Harmonics = append([]float64(nil), intvoice.OrganHarmonics...)
		p.Voice.Levels = []float32{0.4, 0.2, 0.4, 0.1, 0.05, 0.05, 0.05, 0.02, 0.02}
		p.Voice.DrawbarMap = intvoice.DefaultDrawbarMap(len(intvoice.OrganHarmonics))
	}
}

// WithDrawbarMap maps controller numbers to harmonic slots. maxGain is the
// level a drawbar reaches when pulled all the way out.
func WithDrawbarMap(m map[uint8]int, maxGain float32) Option {
	return func(p *intpool.Params) {
		p.Voice.DrawbarMap = make(map[uint8]int, len(m))
		for cc, slot := range m {
			p.Voice.DrawbarMap[cc] = slot
		}
		p.Voice.MaxDrawbarGain = maxGain
	}
}

func WithVibrato(hz, semitones float64) Option {
	return func(p *intpool.Params) {
		p.Voice.VibratoHz = hz
		p.Voice.VibratoSemitones = semitones
	}
}

func WithControlRouting(r Routing) Option {
	return func(p *intpool.Params) { p.ControlRouting = r }
}

// WithMixLevel sets the final gain applied to each worker's submix.
func WithMixLevel(level float32) Option {
	return func(p *intpool.Params) { p.MixLevel = level }
}

func WithQueueDepth(n int) Option {
	return func(p *intpool.Params) { p.QueueDepth = n }
}

func WithLogger(l *slog.Logger) Option {
	return func(p *intpool.Params) { p.Logger = l }
}

type Synth struct {
	mu      sync.Mutex
	pool    *intpool.Pool
	strider *intaudio.Strider
	player  *intaudio.Player
	log     *slog.Logger
	closed  bool
}

func New(opts ...Option) (*Synth, error) {
	p := intpool.DefaultParams()
	for _, opt := range opts {
		opt(&p)
	}
	if p.Logger == nil {
		p.Logger = slog.Default()
	}
	pl, err := intpool.New(p)
	if err != nil {
		return nil, err
	}
	return &Synth{
		pool:    pl,
		strider: intaudio.NewStrider(pl, intaudio.Channels),
		log:     p.Logger,
	}, nil
}

func (s *Synth) SampleRate() int { return s.pool.SampleRate() }
func (s *Synth) BlockSize() int  { return s.pool.BlockSize() }
func (s *Synth) Polyphony() int  { return s.pool.Polyphony() }

// Voices returns the note held by each voice, -1 for free voices.
func (s *Synth) Voices() []int { return s.pool.Snapshot() }

// HandleMessage routes a message to the voice pool. It is safe to call from
// any goroutine.
func (s *Synth) HandleMessage(msg Message) error {
	if err := s.pool.HandleMessage(msg); err != nil {
		if errors.Is(err, intpool.ErrClosed) {
			return ErrClosed
		}
		return err
	}
	return nil
}

// HandleRaw decodes one raw MIDI channel message. Messages the synth does
// not act on are dropped.
func (s *Synth) HandleRaw(raw []byte) error {
	msg, ok := intmidi.Decode(raw)
	if !ok {
		s.log.Debug("midi message ignored", "raw", raw)
		return nil
	}
	return s.HandleMessage(msg)
}

func (s *Synth) NoteOn(note, velocity uint8) error {
	return s.HandleMessage(intmidi.NoteOn(note, velocity))
}

func (s *Synth) NoteOff(note uint8) error {
	return s.HandleMessage(intmidi.NoteOff(note, 0))
}

func (s *Synth) ControlChange(controller, value uint8) error {
	return s.HandleMessage(intmidi.ControlChange(controller, value))
}

func (s *Synth) AllNotesOff() error {
	return s.HandleMessage(intmidi.AllNotesOff())
}

// Process fills dst with interleaved stereo samples, the same signal on both
// channels. It must not be called while the synth is playing through Start.
func (s *Synth) Process(dst []float32) {
	s.strider.Process(dst)
}

// Start opens the audio backend and begins playback.
func (s *Synth) Start(backend Backend) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.player != nil {
		return nil
	}
	player, err := intaudio.NewPlayer(backend, s.pool.SampleRate(), s.strider)
	if err != nil {
		return err
	}
	s.player = player
	s.player.Play()
	s.log.Info("audio output started", "backend", string(player.Backend()), "sample_rate", s.pool.SampleRate())
	return nil
}

// Stop ends playback. The synth can be started again.
func (s *Synth) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopLocked()
}

func (s *Synth) stopLocked() error {
	if s.player == nil {
		return nil
	}
	err := s.player.Stop()
	s.player = nil
	s.log.Info("audio output stopped")
	return err
}

// Close stops playback and shuts down the voice pool.
func (s *Synth) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return errors.Join(s.stopLocked(), s.pool.Close())
}
