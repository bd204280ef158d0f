package audio

import (
	"fmt"
	"io"
	"sync"

	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"
)

// ebiten allows one audio context per process.
var (
	ebitenOnce       sync.Once
	ebitenContext    *ebitaudio.Context
	ebitenSampleRate int
)

func sharedEbitenContext(sampleRate int) (*ebitaudio.Context, error) {
	ebitenOnce.Do(func() {
		ebitenSampleRate = sampleRate
		ebitenContext = ebitaudio.NewContext(sampleRate)
	})
	if ebitenSampleRate != sampleRate {
		return nil, fmt.Errorf("audio context already initialized at %d Hz (requested %d Hz)", ebitenSampleRate, sampleRate)
	}
	return ebitenContext, nil
}

func newEbitenOutput(sampleRate int, r io.Reader) (output, error) {
	ctx, err := sharedEbitenContext(sampleRate)
	if err != nil {
		return nil, err
	}
	return ctx.NewPlayerF32(r)
}
