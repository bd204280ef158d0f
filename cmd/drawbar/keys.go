package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/cbegin/drawbar-go"
)

// Two rows of a QWERTY keyboard laid out like a piano octave and a half.
const keyRow = "awsedftgyhujkolp;'"

const keyHold = 400 * time.Millisecond

// keyboard turns terminal key presses into notes. Terminals report no key
// releases, so each press holds its note for keyHold.
type keyboard struct {
	synth    *drawbar.Synth
	log      *slog.Logger
	octave   int
	drawbars [9]uint8
}

func playKeys(ctx context.Context, logger *slog.Logger, synth *drawbar.Synth) error {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return fmt.Errorf("-input keys needs a terminal on stdin")
	}
	state, err := term.MakeRaw(fd)
	if err != nil {
		return err
	}
	defer term.Restore(fd, state)

	fmt.Fprint(os.Stderr, "keys "+keyRow+" play, z/x octave, 1-9 toggle drawbars, space all off, q quit\r\n")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	kb := &keyboard{synth: synth, log: logger, octave: 5}
	keys, errc := readKeys(ctx, os.Stdin)
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errc:
			if err == io.EOF {
				return nil
			}
			return err
		case k := <-keys:
			if quit := kb.press(k); quit {
				return synth.AllNotesOff()
			}
		}
	}
}

// readKeys delivers bytes from r until ctx is done or r fails. The reader
// goroutine exits at the next byte after ctx is done.
func readKeys(ctx context.Context, r io.Reader) (<-chan byte, <-chan error) {
	keys := make(chan byte)
	errc := make(chan error, 1)
	go func() {
		buf := make([]byte, 1)
		for {
			if _, err := r.Read(buf); err != nil {
				errc <- err
				return
			}
			select {
			case keys <- buf[0]:
			case <-ctx.Done():
				return
			}
		}
	}()
	return keys, errc
}

func (kb *keyboard) press(k byte) (quit bool) {
	switch {
	case k == 'q' || k == 3 || k == 4:
		return true
	case k == 'z' && kb.octave > 0:
		kb.octave--
		kb.log.Info("octave", "octave", kb.octave)
	case k == 'x' && kb.octave < 9:
		kb.octave++
		kb.log.Info("octave", "octave", kb.octave)
	case k == ' ':
		kb.report(kb.synth.AllNotesOff())
	case k >= '1' && k <= '9':
		slot := int(k - '1')
		if kb.drawbars[slot] == 0 {
			kb.drawbars[slot] = 127
		} else {
			kb.drawbars[slot] = 0
		}
		kb.log.Info("drawbar", "slot", slot, "pushed_in", kb.drawbars[slot] == 127)
		kb.report(kb.synth.ControlChange(uint8(70+slot), kb.drawbars[slot]))
	default:
		i := strings.IndexByte(keyRow, k)
		if i < 0 {
			return false
		}
		note := kb.octave*12 + i
		if note > 127 {
			return false
		}
		n := uint8(note)
		kb.report(kb.synth.NoteOn(n, 100))
		time.AfterFunc(keyHold, func() { kb.report(kb.synth.NoteOff(n)) })
	}
	return false
}

func (kb *keyboard) report(err error) {
	if err != nil && !errors.Is(err, drawbar.ErrClosed) {
		kb.log.Warn("message dropped", "err", err)
	}
}

// crlfWriter translates newlines for a terminal in raw mode.
type crlfWriter struct{ w io.Writer }

func (c crlfWriter) Write(p []byte) (int, error) {
	if _, err := c.w.Write([]byte(strings.ReplaceAll(string(p), "\n", "\r\n"))); err != nil {
		return 0, err
	}
	return len(p), nil
}
