// Package audio connects a block renderer to a system audio output.
package audio

import (
	"fmt"
	"io"
	"strings"
)

// Backend names an audio output implementation.
type Backend string

const (
	BackendEbiten Backend = "ebiten"
	BackendOto    Backend = "oto"
)

// ParseBackend accepts a backend name in any case.
func ParseBackend(name string) (Backend, error) {
	switch b := Backend(strings.ToLower(strings.TrimSpace(name))); b {
	case BackendEbiten, BackendOto:
		return b, nil
	default:
		return "", fmt.Errorf("unknown audio backend %q (expected ebiten|oto)", name)
	}
}

// output is the subset of the ebiten and oto players used here.
type output interface {
	Play()
	Pause()
	IsPlaying() bool
	Close() error
}

type Player struct {
	backend Backend
	out     output
	reader  io.ReadCloser
}

// NewPlayer opens backend at sampleRate and streams source through it. The
// player starts paused.
func NewPlayer(backend Backend, sampleRate int, source SampleSource) (*Player, error) {
	reader := NewStreamReader(source)
	var (
		out output
		err error
	)
	switch backend {
	case BackendEbiten, "":
		backend = BackendEbiten
		out, err = newEbitenOutput(sampleRate, reader)
	case BackendOto:
		out, err = newOtoOutput(sampleRate, reader)
	default:
		err = fmt.Errorf("unknown audio backend %q", backend)
	}
	if err != nil {
		return nil, err
	}
	return &Player{backend: backend, out: out, reader: reader}, nil
}

func (p *Player) Backend() Backend { return p.backend }
func (p *Player) Play()            { p.out.Play() }
func (p *Player) Pause()           { p.out.Pause() }
func (p *Player) IsPlaying() bool  { return p.out.IsPlaying() }

func (p *Player) Stop() error {
	p.out.Pause()
	if err := p.out.Close(); err != nil {
		return err
	}
	return p.reader.Close()
}
