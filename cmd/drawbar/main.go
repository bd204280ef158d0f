package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cbegin/drawbar-go"
	"github.com/cbegin/drawbar-go/internal/audio"
)

func main() {
	var (
		sampleRate  = flag.Int("sample-rate", 44100, "output sample rate")
		blockSize   = flag.Int("block", 16, "samples per render block")
		voices      = flag.Int("voices", 8, "polyphony")
		workers     = flag.Int("workers", 2, "render workers (1 renders on the audio callback)")
		ramp        = flag.Int("ramp", 20, "attack/release ramp in milliseconds")
		organ       = flag.Bool("organ", false, "use the nine tonewheel organ footages instead of integer harmonics")
		routing     = flag.String("routing", "broadcast", "controller routing: broadcast|sounding")
		backendName = flag.String("backend", "ebiten", "audio backend: ebiten|oto")
		input       = flag.String("input", "keys", "note source: keys|midi|demo")
		port        = flag.String("port", "", "MIDI input port name (substring match; default first port)")
		debug       = flag.Bool("debug", false, "debug logging")
	)
	flag.Parse()

	var logOut io.Writer = os.Stderr
	if *input == "keys" {
		logOut = crlfWriter{os.Stderr}
	}
	logger := newLogger(logOut, *debug)
	slog.SetDefault(logger)

	if err := run(logger, options{
		sampleRate: *sampleRate,
		blockSize:  *blockSize,
		voices:     *voices,
		workers:    *workers,
		ramp:       *ramp,
		organ:      *organ,
		routing:    *routing,
		backend:    *backendName,
		input:      *input,
		port:       *port,
	}); err != nil {
		logger.Error("drawbar failed", "err", err)
		os.Exit(1)
	}
}

type options struct {
	sampleRate, blockSize, voices, workers, ramp int
	organ                                        bool
	routing, backend, input, port                string
}

func newLogger(w io.Writer, debug bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if debug {
		opts.Level = slog.LevelDebug
		opts.AddSource = true
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func run(logger *slog.Logger, o options) error {
	backend, err := audio.ParseBackend(o.backend)
	if err != nil {
		return err
	}
	routing, err := parseRouting(o.routing)
	if err != nil {
		return err
	}
	synthOpts := []drawbar.Option{
		drawbar.WithSampleRate(o.sampleRate),
		drawbar.WithBlockSize(o.blockSize),
		drawbar.WithPolyphony(o.voices),
		drawbar.WithWorkers(o.workers),
		drawbar.WithRampMillis(o.ramp),
		drawbar.WithControlRouting(routing),
		drawbar.WithLogger(logger),
	}
	if o.organ {
		synthOpts = append(synthOpts, drawbar.WithOrganHarmonics())
	}
	synth, err := drawbar.New(synthOpts...)
	if err != nil {
		return err
	}
	defer synth.Close()
	if err := synth.Start(backend); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch o.input {
	case "keys":
		return playKeys(ctx, logger, synth)
	case "midi":
		return listenMIDI(ctx, logger, synth, o.port)
	case "demo":
		return playDemo(ctx, logger, synth)
	default:
		return fmt.Errorf("invalid -input %q (expected keys|midi|demo)", o.input)
	}
}

func parseRouting(name string) (drawbar.Routing, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "broadcast":
		return drawbar.RouteBroadcast, nil
	case "sounding":
		return drawbar.RouteSounding, nil
	default:
		return 0, fmt.Errorf("invalid -routing %q (expected broadcast|sounding)", name)
	}
}

// playDemo plays a short chord progression and returns.
func playDemo(ctx context.Context, logger *slog.Logger, synth *drawbar.Synth) error {
	chords := [][]uint8{
		{48, 55, 60, 64},
		{45, 52, 57, 60},
		{41, 48, 53, 57},
		{43, 50, 55, 59},
	}
	for i, chord := range chords {
		logger.Info("chord", "index", i, "notes", chord)
		for _, n := range chord {
			if err := synth.NoteOn(n, 100); err != nil {
				return err
			}
		}
		// Sweep the second drawbar out and back in over the chord.
		for step := 0; step <= 16; step++ {
			v := uint8(127 - step*127/16)
			if i%2 == 1 {
				v = uint8(step * 127 / 16)
			}
			if err := synth.ControlChange(71, v); err != nil && !errors.Is(err, drawbar.ErrQueueFull) {
				return err
			}
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(50 * time.Millisecond):
			}
		}
		if err := synth.AllNotesOff(); err != nil {
			return err
		}
	}
	time.Sleep(100 * time.Millisecond)
	return nil
}
