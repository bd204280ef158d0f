// Package pool allocates notes to a fixed set of voices and mixes their
// output.
//
// Voices are split across workers. With one worker the pool renders on the
// caller's goroutine and hands each block through a handoff.Cell. With more,
// each worker runs on its own goroutine and paces itself against the
// renderer through a handoff.Rendezvous: it can be at most two blocks ahead.
//
// The assignment table is only touched by message handling. Voice state is
// only touched by the worker that owns the voice; messages reach it through
// the worker's queue and are applied at the start of its next cycle.
package pool

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/cbegin/drawbar-go/internal/block"
	"github.com/cbegin/drawbar-go/internal/handoff"
	"github.com/cbegin/drawbar-go/internal/midi"
	"github.com/cbegin/drawbar-go/internal/mixer"
)

const noNote = -1

// slot locates a voice inside its worker.
type slot struct {
	worker *worker
	local  int
}

type Pool struct {
	params  Params
	mode    handoff.Mode
	log     *slog.Logger
	workers []*worker
	slots   []slot

	mu    sync.Mutex
	notes []int // recorded note per voice, noNote when free
	last  int

	// Render-side state.
	final  mixer.Mixer
	blocks []block.Block

	stop      atomic.Bool
	done      chan struct{}
	group     errgroup.Group
	closeOnce sync.Once
	closeErr  error
}

// New validates p and builds the pool. Worker goroutines are started only
// after validation succeeds.
func New(p Params) (*Pool, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	mode := handoff.Cooperative
	if p.Workers > 1 {
		mode = handoff.Threaded
	}
	log := p.Logger
	if log == nil {
		log = slog.Default()
	}
	pl := &Pool{
		params:  p,
		mode:    mode,
		log:     log,
		workers: make([]*worker, p.Workers),
		slots:   make([]slot, 0, p.Polyphony),
		notes:   make([]int, p.Polyphony),
		last:    p.Polyphony - 1,
		blocks:  make([]block.Block, p.Workers),
		done:    make(chan struct{}),
	}
	levels := make([]float32, p.Workers)
	for i := range pl.workers {
		w := newWorker(i, voicesFor(i, p.Polyphony, p.Workers), p, mode)
		pl.workers[i] = w
		for j := range w.voices {
			pl.slots = append(pl.slots, slot{worker: w, local: j})
		}
		pl.blocks[i] = block.New(p.Voice.BlockSize)
		levels[i] = p.MixLevel
	}
	for i := range pl.notes {
		pl.notes[i] = noNote
	}
	pl.final.Init(levels...)

	if mode == handoff.Threaded {
		for _, w := range pl.workers {
			pl.group.Go(func() error {
				pl.log.Debug("worker started", "worker", w.id, "voices", len(w.voices))
				err := w.run(&pl.stop)
				pl.log.Debug("worker exited", "worker", w.id, "err", err)
				return err
			})
		}
	}
	pl.log.Info("voice pool ready",
		"mode", mode.String(),
		"voices", p.Polyphony,
		"workers", p.Workers,
		"block_size", p.Voice.BlockSize,
		"sample_rate", p.Voice.SampleRate,
	)
	return pl, nil
}

func (p *Pool) Mode() handoff.Mode { return p.mode }
func (p *Pool) Polyphony() int     { return len(p.slots) }
func (p *Pool) BlockSize() int     { return p.params.Voice.BlockSize }
func (p *Pool) SampleRate() int    { return p.params.Voice.SampleRate }

// HandleMessage routes one message to the voices it concerns.
func (p *Pool) HandleMessage(msg midi.Message) error {
	switch msg.Kind {
	case midi.KindNoteOn:
		_, err := p.Assign(msg)
		return err
	case midi.KindNoteOff:
		_, err := p.Release(msg)
		return err
	case midi.KindControlChange:
		return p.ControlChange(msg)
	case midi.KindAllNotesOff:
		return p.AllNotesOff()
	}
	return nil
}

// Assign picks a voice for a NoteOn and forwards the message to it. The scan
// starts after the last assigned voice and takes the first free one; if none
// is free, the voice right after the last one is stolen. A NoteOn that cannot
// be queued leaves the assignment table unchanged.
func (p *Pool) Assign(msg midi.Message) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.notes)
	start := (p.last + 1) % n
	index := start
	free := false
	for i := 0; i < n; i++ {
		j := (start + i) % n
		if p.notes[j] == noNote {
			index = j
			free = true
			break
		}
	}
	if err := p.enqueue(index, msg); err != nil {
		return index, err
	}
	if !free {
		p.log.Debug("voice stolen", "voice", index, "from", p.notes[index], "to", msg.Key)
	}
	p.notes[index] = int(msg.Key)
	p.last = index
	return index, nil
}

// Release forwards a NoteOff to every voice recording the note and frees
// them. It returns the affected voices; a stale NoteOff affects none. A voice
// whose queue is full keeps its note so a later NoteOff can release it.
func (p *Pool) Release(msg midi.Message) ([]int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var (
		released []int
		errs     []error
	)
	for i, note := range p.notes {
		if note != int(msg.Key) {
			continue
		}
		if err := p.enqueue(i, msg); err != nil {
			errs = append(errs, err)
			continue
		}
		p.notes[i] = noNote
		released = append(released, i)
	}
	return released, firstError(errs)
}

// ControlChange forwards a controller message according to ControlRouting.
func (p *Pool) ControlChange(msg midi.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	for i, note := range p.notes {
		if p.params.ControlRouting == RouteSounding && note == noNote {
			continue
		}
		if err := p.enqueue(i, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return firstError(errs)
}

// AllNotesOff releases every voice and clears every assignment.
func (p *Pool) AllNotesOff() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	msg := midi.AllNotesOff()
	var errs []error
	for i := range p.notes {
		if err := p.enqueue(i, msg); err != nil {
			errs = append(errs, err)
			continue
		}
		p.notes[i] = noNote
	}
	return firstError(errs)
}

// firstError keeps ErrClosed ahead of ErrQueueFull so callers stop sending
// to a closed pool.
func firstError(errs []error) error {
	for _, err := range errs {
		if errors.Is(err, ErrClosed) {
			return err
		}
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// enqueue must be called with mu held so queue order matches assignment
// order. It never blocks: a cooperative worker with a full queue is drained
// inline, which is safe because cooperative rendering also holds mu, and a
// threaded worker with a full queue drops the message with ErrQueueFull.
// A threaded worker only drains while its output is being consumed.
func (p *Pool) enqueue(index int, msg midi.Message) error {
	s := p.slots[index]
	select {
	case <-p.done:
		return ErrClosed
	default:
	}
	cmd := command{voice: s.local, msg: msg}
	if p.mode == handoff.Cooperative {
		select {
		case s.worker.queue <- cmd:
		default:
			s.worker.drain()
			s.worker.queue <- cmd
		}
		return nil
	}
	select {
	case s.worker.queue <- cmd:
		return nil
	default:
		p.log.Warn("worker queue full, message dropped", "worker", s.worker.id, "voice", index, "msg", msg.String())
		return ErrQueueFull
	}
}

// Snapshot returns the note recorded for each voice, -1 for free voices.
func (p *Pool) Snapshot() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int(nil), p.notes...)
}

// Render fills dst, which must be BlockSize samples long, with the next
// block of the final mix. A worker whose producer has gone away contributes
// silence. Render must be called from a single goroutine.
//
// In cooperative mode the workers step inside Render under the same lock
// that guards message handling.
func (p *Pool) Render(dst block.Block) {
	if len(dst) != p.params.Voice.BlockSize {
		panic(fmt.Sprintf("pool: render block of %d samples, want %d", len(dst), p.params.Voice.BlockSize))
	}
	if p.stop.Load() {
		dst.Silence()
		return
	}
	if p.mode == handoff.Cooperative {
		p.mu.Lock()
		defer p.mu.Unlock()
	}
	for i, w := range p.workers {
		if p.mode == handoff.Cooperative {
			if err := w.step(); err != nil {
				p.blocks[i].Silence()
				continue
			}
		}
		if err := w.recv.Receive(p.blocks[i]); err != nil {
			p.blocks[i].Silence()
			if errors.Is(err, handoff.ErrDisconnected) && !w.lost {
				w.lost = true
				p.log.Warn("worker disconnected, substituting silence", "worker", w.id)
			}
		}
	}
	p.final.MixBlocks(dst, p.blocks)
}

// Close stops the workers and waits for them to exit. It is safe to call
// more than once. In cooperative mode Close must not race Render.
func (p *Pool) Close() error {
	p.closeOnce.Do(func() {
		p.stop.Store(true)
		close(p.done)
		if p.mode == handoff.Threaded {
			for _, w := range p.workers {
				w.recv.Close()
			}
			p.closeErr = p.group.Wait()
		}
		p.log.Debug("voice pool closed")
	})
	return p.closeErr
}
