package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/cbegin/drawbar-go"
	"github.com/cbegin/drawbar-go/internal/midi"
)

// listenMIDI feeds a hardware MIDI input into the synth until ctx is done or
// the device goes away.
func listenMIDI(ctx context.Context, logger *slog.Logger, synth *drawbar.Synth, name string) error {
	drv, err := rtmididrv.New()
	if err != nil {
		return fmt.Errorf("open midi driver: %w", err)
	}
	defer drv.Close()

	ins, err := drv.Ins()
	if err != nil {
		return fmt.Errorf("list midi inputs: %w", err)
	}
	in, err := pickInput(ins, name)
	if err != nil {
		return err
	}
	if err := in.Open(); err != nil {
		return fmt.Errorf("open midi input %q: %w", in.String(), err)
	}
	defer in.Close()

	lost := make(chan error, 1)
	stop, err := gomidi.ListenTo(in, func(msg gomidi.Message, timestampms int32) {
		m, ok := midi.FromGomidi(msg)
		if !ok {
			return
		}
		logger.Debug("midi", "msg", m.String(), "ts", timestampms)
		if err := synth.HandleMessage(m); err != nil && err != drawbar.ErrClosed {
			logger.Warn("midi message dropped", "msg", m.String(), "err", err)
		}
	}, gomidi.HandleError(func(listenErr error) {
		select {
		case lost <- listenErr:
		default:
		}
	}))
	if err != nil {
		return fmt.Errorf("listen on %q: %w", in.String(), err)
	}
	defer stop()
	logger.Info("MIDI input connected", "device", in.String())

	select {
	case <-ctx.Done():
		return nil
	case err := <-lost:
		logger.Warn("MIDI input lost, releasing all notes", "device", in.String(), "err", err)
		return synth.AllNotesOff()
	}
}

func pickInput(ins []drivers.In, name string) (drivers.In, error) {
	if len(ins) == 0 {
		return nil, fmt.Errorf("no MIDI inputs found")
	}
	if name == "" {
		return ins[0], nil
	}
	names := make([]string, len(ins))
	for i, in := range ins {
		names[i] = in.String()
		if strings.Contains(strings.ToLower(in.String()), strings.ToLower(name)) {
			return in, nil
		}
	}
	return nil, fmt.Errorf("MIDI input %q not found (have %s)", name, strings.Join(names, ", "))
}
