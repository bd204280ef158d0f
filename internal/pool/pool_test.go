package pool

import (
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/cbegin/drawbar-go/internal/block"
	"github.com/cbegin/drawbar-go/internal/handoff"
	"github.com/cbegin/drawbar-go/internal/midi"
)

func testParams(voices, workers int) Params {
	p := DefaultParams()
	p.Polyphony = voices
	p.Workers = workers
	p.Voice.RampMillis = 10
	p.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return p
}

func newPool(t *testing.T, p Params) *Pool {
	t.Helper()
	pl, err := New(p)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { pl.Close() })
	return pl
}

// renderBlocks renders n blocks and returns each block's peak. It fails the
// test instead of hanging if rendering stalls.
func renderBlocks(t *testing.T, pl *Pool, n int) []float32 {
	t.Helper()
	peaks := make([]float32, n)
	done := make(chan struct{})
	go func() {
		defer close(done)
		b := block.New(pl.BlockSize())
		for i := range peaks {
			pl.Render(b)
			peaks[i] = b.Peak()
		}
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("render stalled")
	}
	return peaks
}

func TestRoundRobinSteal(t *testing.T) {
	pl := newPool(t, testParams(4, 1))
	for i, note := range []uint8{60, 62, 64, 65, 67} {
		got, err := pl.Assign(midi.NoteOn(note, 100))
		if err != nil {
			t.Fatalf("assign %d: %v", note, err)
		}
		if want := i % 4; got != want {
			t.Fatalf("note %d on voice %d, want %d", note, got, want)
		}
	}
	want := []int{67, 62, 64, 65}
	for i, n := range pl.Snapshot() {
		if n != want[i] {
			t.Fatalf("snapshot = %v, want %v", pl.Snapshot(), want)
		}
	}
}

func TestAssignPrefersReleasedVoice(t *testing.T) {
	pl := newPool(t, testParams(4, 1))
	for _, note := range []uint8{60, 62, 64, 65} {
		pl.Assign(midi.NoteOn(note, 100))
	}
	released, err := pl.Release(midi.NoteOff(62, 0))
	if err != nil || len(released) != 1 || released[0] != 1 {
		t.Fatalf("Release = %v, %v; want [1]", released, err)
	}
	got, _ := pl.Assign(midi.NoteOn(67, 100))
	if got != 1 {
		t.Fatalf("note landed on voice %d, want the released voice 1", got)
	}
}

func TestStaleNoteOffAfterSteal(t *testing.T) {
	pl := newPool(t, testParams(2, 1))
	pl.Assign(midi.NoteOn(60, 100))
	pl.Assign(midi.NoteOn(62, 100))
	pl.Assign(midi.NoteOn(64, 100))
	released, err := pl.Release(midi.NoteOff(60, 0))
	if err != nil || len(released) != 0 {
		t.Fatalf("Release of stolen note = %v, %v; want none", released, err)
	}
	snap := pl.Snapshot()
	if snap[0] != 64 || snap[1] != 62 {
		t.Fatalf("snapshot = %v, want [64 62]", snap)
	}
}

func TestReleaseDuplicateNote(t *testing.T) {
	pl := newPool(t, testParams(3, 1))
	pl.Assign(midi.NoteOn(60, 100))
	pl.Assign(midi.NoteOn(60, 100))
	released, _ := pl.Release(midi.NoteOff(60, 0))
	if len(released) != 2 {
		t.Fatalf("released %v, want both voices holding 60", released)
	}
}

func TestAllNotesOffClearsAssignments(t *testing.T) {
	pl := newPool(t, testParams(4, 1))
	pl.Assign(midi.NoteOn(60, 100))
	pl.Assign(midi.NoteOn(64, 100))
	if err := pl.HandleMessage(midi.ControlChange(midi.ControllerAllNotesOff, 0)); err != nil {
		t.Fatalf("all notes off: %v", err)
	}
	for i, n := range pl.Snapshot() {
		if n != noNote {
			t.Fatalf("voice %d still holds %d", i, n)
		}
	}
}

func TestControlRouting(t *testing.T) {
	for _, tc := range []struct {
		routing Routing
		want    int
	}{
		{RouteBroadcast, 1 + 4},
		{RouteSounding, 1 + 1},
	} {
		t.Run(tc.routing.String(), func(t *testing.T) {
			p := testParams(4, 1)
			p.ControlRouting = tc.routing
			pl := newPool(t, p)
			pl.Assign(midi.NoteOn(60, 100))
			if err := pl.ControlChange(midi.ControlChange(70, 0)); err != nil {
				t.Fatalf("control change: %v", err)
			}
			if got := len(pl.workers[0].queue); got != tc.want {
				t.Fatalf("queued %d commands, want %d", got, tc.want)
			}
		})
	}
}

func TestVoiceDistribution(t *testing.T) {
	for _, tc := range []struct {
		voices, workers int
		want            []int
	}{
		{8, 2, []int{4, 4}},
		{8, 3, []int{4, 2, 2}},
		{5, 5, []int{1, 1, 1, 1, 1}},
		{7, 1, []int{7}},
	} {
		pl := newPool(t, testParams(tc.voices, tc.workers))
		if pl.Polyphony() != tc.voices {
			t.Fatalf("polyphony = %d, want %d", pl.Polyphony(), tc.voices)
		}
		for i, w := range pl.workers {
			if len(w.voices) != tc.want[i] {
				t.Fatalf("%d/%d: worker %d owns %d voices, want %d",
					tc.voices, tc.workers, i, len(w.voices), tc.want[i])
			}
		}
	}
}

func TestModeFollowsWorkers(t *testing.T) {
	if m := newPool(t, testParams(2, 1)).Mode(); m != handoff.Cooperative {
		t.Fatalf("1 worker mode = %v, want cooperative", m)
	}
	if m := newPool(t, testParams(2, 2)).Mode(); m != handoff.Threaded {
		t.Fatalf("2 worker mode = %v, want threaded", m)
	}
}

func TestInvalidConfig(t *testing.T) {
	for _, tc := range []struct {
		name   string
		mutate func(*Params)
	}{
		{"no voices", func(p *Params) { p.Polyphony = 0 }},
		{"no workers", func(p *Params) { p.Workers = 0 }},
		{"more workers than voices", func(p *Params) { p.Workers = 9 }},
		{"queue", func(p *Params) { p.QueueDepth = 0 }},
		{"mix level", func(p *Params) { p.MixLevel = -1 }},
		{"routing", func(p *Params) { p.ControlRouting = Routing(7) }},
		{"voice", func(p *Params) { p.Voice.BlockSize = 0 }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			p := DefaultParams()
			tc.mutate(&p)
			pl, err := New(p)
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("New() err = %v, want ErrInvalidConfig", err)
			}
			if pl != nil {
				t.Fatalf("New() returned a pool alongside an error")
			}
		})
	}
}

func TestNoteLifecycle(t *testing.T) {
	for _, workers := range []int{1, 2} {
		pl := newPool(t, testParams(2, workers))
		t.Run(pl.Mode().String(), func(t *testing.T) {
			if peaks := renderBlocks(t, pl, 4); peaks[3] != 0 {
				t.Fatalf("idle pool peak = %v, want silence", peaks[3])
			}
			if err := pl.HandleMessage(midi.NoteOn(69, 100)); err != nil {
				t.Fatalf("note on: %v", err)
			}
			peaks := renderBlocks(t, pl, 50)
			var settled float32
			for _, pk := range peaks[40:] {
				settled = max(settled, pk)
			}
			if settled == 0 {
				t.Fatalf("no output after attack")
			}
			// Eight drawbar levels sum to 1.4 before the mix level.
			if limit := float32(1.4 * 0.25 * 1.0001); settled > limit {
				t.Fatalf("peak %v exceeds %v", settled, limit)
			}
			if peaks[0] >= settled {
				t.Fatalf("first block peak %v should be below the settled peak %v", peaks[0], settled)
			}

			if err := pl.HandleMessage(midi.NoteOff(69, 0)); err != nil {
				t.Fatalf("note off: %v", err)
			}
			peaks = renderBlocks(t, pl, 50)
			if peaks[len(peaks)-1] != 0 {
				t.Fatalf("peak %v after release, want silence", peaks[len(peaks)-1])
			}
		})
	}
}

func TestCooperativeQueueOverflowDrainsInline(t *testing.T) {
	p := testParams(2, 1)
	p.QueueDepth = 4
	pl := newPool(t, p)
	pl.Assign(midi.NoteOn(60, 100))
	for i := 0; i < 20; i++ {
		if err := pl.ControlChange(midi.ControlChange(70, uint8(i))); err != nil {
			t.Fatalf("control change %d: %v", i, err)
		}
	}
	renderBlocks(t, pl, 2)
	if got, want := pl.workers[0].voices[0].Level(0), float32(127-19)/127*0.5; math.Abs(float64(got-want)) > 1e-6 {
		t.Fatalf("drawbar level = %v, want the last value %v", got, want)
	}
}

func TestLostWorkerRendersSilence(t *testing.T) {
	pl := newPool(t, testParams(2, 2))
	pl.Assign(midi.NoteOn(60, 100))
	pl.Assign(midi.NoteOn(67, 100))
	renderBlocks(t, pl, 40)

	pl.workers[1].recv.Close()
	peaks := renderBlocks(t, pl, 10)
	if peaks[9] == 0 {
		t.Fatalf("remaining worker should still be heard")
	}

	pl.workers[0].recv.Close()
	peaks = renderBlocks(t, pl, 4)
	for i, pk := range peaks {
		if pk != 0 {
			t.Fatalf("block %d peak %v, want silence with every worker gone", i, pk)
		}
	}
}

func TestCloseUnblocksWorkers(t *testing.T) {
	pl, err := New(testParams(4, 2))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- pl.Close() }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Close: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Close did not return")
	}
	if err := pl.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestClosedPool(t *testing.T) {
	pl := newPool(t, testParams(2, 2))
	pl.Close()
	if err := pl.HandleMessage(midi.NoteOn(60, 100)); !errors.Is(err, ErrClosed) {
		t.Fatalf("note on after close = %v, want ErrClosed", err)
	}
	b := block.New(pl.BlockSize())
	b[0] = 1
	pl.Render(b)
	if !b.IsSilent() {
		t.Fatalf("closed pool must render silence")
	}
}

func TestRenderWrongSizePanics(t *testing.T) {
	pl := newPool(t, testParams(2, 1))
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for a mis-sized block")
		}
	}()
	pl.Render(block.New(pl.BlockSize() + 1))
}

// renderSamples renders n blocks and returns them back to back.
func renderSamples(t *testing.T, pl *Pool, n int) []float32 {
	t.Helper()
	out := make([]float32, 0, n*pl.BlockSize())
	done := make(chan struct{})
	go func() {
		defer close(done)
		b := block.New(pl.BlockSize())
		for i := 0; i < n; i++ {
			pl.Render(b)
			out = append(out, b...)
		}
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("render stalled")
	}
	return out
}

func TestReleaseDecaysLinearlyToSilence(t *testing.T) {
	p := testParams(2, 1)
	p.Voice.RampMillis = 20
	pl := newPool(t, p)
	// Same note with a one-sample ramp: the undamped signal to compare against.
	ref := p
	ref.Voice.RampMillis = 0
	rl := newPool(t, ref)

	for _, x := range []*Pool{pl, rl} {
		if err := x.HandleMessage(midi.NoteOn(60, 100)); err != nil {
			t.Fatalf("note on: %v", err)
		}
		renderSamples(t, x, 50)
	}
	if err := pl.HandleMessage(midi.NoteOff(60, 0)); err != nil {
		t.Fatalf("note off: %v", err)
	}
	env := pl.workers[0].voices[0].Envelope()
	ramp := env.RampLength()
	if ramp != 882 {
		t.Fatalf("ramp = %d samples, want 882", ramp)
	}
	// The NoteOff applies at the start of the next block; the position is
	// still the one reached by the attack.
	start := env.Position()
	released := renderSamples(t, pl, 70)
	steady := renderSamples(t, rl, 70)

	for k := range released {
		gain := float64(max(start-1-k, 0)) / float64(ramp)
		want := float64(steady[k]) * gain
		if d := math.Abs(float64(released[k]) - want); d > 1e-6 {
			t.Fatalf("sample %d after release = %v, want %v (gain %v)", k, released[k], want, gain)
		}
		if k >= ramp && released[k] != 0 {
			t.Fatalf("sample %d = %v, want silence after %d samples", k, released[k], ramp)
		}
	}
}

func TestReleaseReachesSilenceInBothModes(t *testing.T) {
	for _, workers := range []int{1, 2} {
		p := testParams(2, workers)
		p.Voice.RampMillis = 20
		pl := newPool(t, p)
		t.Run(pl.Mode().String(), func(t *testing.T) {
			pl.HandleMessage(midi.NoteOn(60, 100))
			renderSamples(t, pl, 50)
			pl.HandleMessage(midi.NoteOff(60, 0))
			out := renderSamples(t, pl, 100)

			last := -1
			for i, s := range out {
				if s != 0 {
					last = i
				}
			}
			if last < 0 {
				t.Fatalf("release ramp missing: silent immediately after NoteOff")
			}
			// A threaded worker can have two blocks rendered ahead of the
			// NoteOff: one in the handoff and one waiting to be sent.
			ramp := 882
			limit := ramp
			if workers > 1 {
				limit += 2 * pl.BlockSize()
			}
			if last >= limit {
				t.Fatalf("last non-zero sample at %d, want before %d", last, limit)
			}
		})
	}
}

func TestThreadedMessagesNeverBlockWithoutRenderer(t *testing.T) {
	p := testParams(4, 2)
	p.QueueDepth = 8
	pl := newPool(t, p)

	dropped := make(chan int, 1)
	go func() {
		n := 0
		for i := 0; i < 1000; i++ {
			if err := pl.ControlChange(midi.ControlChange(70, uint8(i%128))); errors.Is(err, ErrQueueFull) {
				n++
			}
		}
		pl.Snapshot()
		dropped <- n
	}()
	select {
	case n := <-dropped:
		if n == 0 {
			t.Fatalf("expected messages to be dropped with no renderer")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("message handling blocked with no renderer")
	}

	// Once rendering resumes the queues drain and messages are accepted again.
	renderBlocks(t, pl, 8)
	if _, err := pl.Assign(midi.NoteOn(60, 100)); err != nil {
		t.Fatalf("note on after draining: %v", err)
	}
}

func TestDroppedNoteOnLeavesVoiceFree(t *testing.T) {
	p := testParams(2, 2)
	p.QueueDepth = 1
	pl := newPool(t, p)
	// With nothing rendering, each worker drains at most twice before it
	// parks in its handoff; after that the queues stay full.
	for round := 0; round < 2; round++ {
		for i := 0; i < 10; i++ {
			pl.ControlChange(midi.ControlChange(70, 0))
		}
		time.Sleep(50 * time.Millisecond)
	}
	for i := 0; i < 10; i++ {
		pl.ControlChange(midi.ControlChange(70, 0))
	}
	if _, err := pl.Assign(midi.NoteOn(60, 100)); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("Assign = %v, want ErrQueueFull", err)
	}
	for i, n := range pl.Snapshot() {
		if n != noNote {
			t.Fatalf("voice %d records %d for a dropped NoteOn", i, n)
		}
	}
}
