package pool

import (
	"fmt"
	"log/slog"

	"github.com/cbegin/drawbar-go/internal/voice"
)

// Routing selects which voices receive pool-wide controller messages.
type Routing int

const (
	// RouteBroadcast sends every controller message to every voice.
	RouteBroadcast Routing = iota
	// RouteSounding sends controller messages only to voices holding a note.
	RouteSounding
)

func (r Routing) String() string {
	switch r {
	case RouteBroadcast:
		return "broadcast"
	case RouteSounding:
		return "sounding"
	default:
		return "unknown"
	}
}

type Params struct {
	Voice     voice.Params
	Polyphony int
	// Workers is the number of render workers. 1 renders cooperatively on
	// the caller's goroutine; more than 1 starts one goroutine per worker.
	Workers int
	// MixLevel is the final mixer gain applied to each worker's output.
	MixLevel float32
	// QueueDepth bounds each worker's pending message queue.
	QueueDepth     int
	ControlRouting Routing
	Logger         *slog.Logger
}

func DefaultParams() Params {
	return Params{
		Voice:      voice.DefaultParams(),
		Polyphony:  8,
		Workers:    2,
		MixLevel:   0.25,
		QueueDepth: 256,
	}
}

func (p Params) Validate() error {
	if err := p.Voice.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	switch {
	case p.Polyphony <= 0:
		return fmt.Errorf("%w: polyphony %d", ErrInvalidConfig, p.Polyphony)
	case p.Workers <= 0:
		return fmt.Errorf("%w: workers %d", ErrInvalidConfig, p.Workers)
	case p.Workers > p.Polyphony:
		return fmt.Errorf("%w: %d workers for %d voices", ErrInvalidConfig, p.Workers, p.Polyphony)
	case p.QueueDepth <= 0:
		return fmt.Errorf("%w: queue depth %d", ErrInvalidConfig, p.QueueDepth)
	case p.MixLevel < 0:
		return fmt.Errorf("%w: mix level %v", ErrInvalidConfig, p.MixLevel)
	case p.ControlRouting != RouteBroadcast && p.ControlRouting != RouteSounding:
		return fmt.Errorf("%w: control routing %d", ErrInvalidConfig, p.ControlRouting)
	}
	return nil
}

// voicesFor returns how many voices worker i owns. Worker 0 takes the
// remainder.
func voicesFor(i, voices, workers int) int {
	n := voices / workers
	if i == 0 {
		n += voices % workers
	}
	return n
}
