package pool

import (
	"errors"
	"sync/atomic"

	"github.com/cbegin/drawbar-go/internal/block"
	"github.com/cbegin/drawbar-go/internal/handoff"
	"github.com/cbegin/drawbar-go/internal/midi"
	"github.com/cbegin/drawbar-go/internal/mixer"
	"github.com/cbegin/drawbar-go/internal/voice"
)

// command addresses a message to one of a worker's voices by local index.
type command struct {
	voice int
	msg   midi.Message
}

// worker owns a disjoint set of voices. Everything below except queue and the
// handoff ends is touched only by the goroutine running step.
type worker struct {
	id      int
	voices  []*voice.Voice
	queue   chan command
	partial []block.Block
	out     block.Block
	mixer   mixer.Mixer
	send    handoff.Sender
	recv    handoff.Receiver

	// lost is owned by the render goroutine.
	lost bool
}

func newWorker(id int, voices int, p Params, mode handoff.Mode) *worker {
	w := &worker{
		id:      id,
		voices:  make([]*voice.Voice, voices),
		queue:   make(chan command, p.QueueDepth),
		partial: make([]block.Block, voices),
		out:     block.New(p.Voice.BlockSize),
	}
	levels := make([]float32, voices)
	for i := range w.voices {
		w.voices[i] = voice.New(p.Voice)
		w.partial[i] = block.New(p.Voice.BlockSize)
		levels[i] = 1
	}
	w.mixer.Init(levels...)
	w.send, w.recv = handoff.New(mode, p.Voice.BlockSize)
	return w
}

// drain applies pending messages without blocking. It takes at most one
// queue's worth per call so a flood of input cannot starve rendering.
func (w *worker) drain() {
	for i := 0; i < cap(w.queue); i++ {
		select {
		case cmd := <-w.queue:
			w.voices[cmd.voice].HandleMessage(cmd.msg)
		default:
			return
		}
	}
}

// step runs one cycle: apply messages, render every voice, mix, hand off.
func (w *worker) step() error {
	w.drain()
	for i, v := range w.voices {
		v.Render(w.partial[i])
	}
	w.mixer.MixBlocks(w.out, w.partial)
	return w.send.Send(w.out)
}

// run loops step until stop is set or the consumer goes away.
func (w *worker) run(stop *atomic.Bool) error {
	defer w.send.Close()
	for !stop.Load() {
		if err := w.step(); err != nil {
			if errors.Is(err, handoff.ErrClosed) {
				return nil
			}
			return err
		}
	}
	return nil
}
