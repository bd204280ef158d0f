package drawbar

import (
	"cmp"
	"slices"

	intpool "github.com/cbegin/drawbar-go/internal/pool"
)

// Event schedules a message at a frame offset from the start of a render.
type Event struct {
	Frame   int
	Message Message
}

// Render plays events through a new synth and returns frames of interleaved
// stereo output. It always renders with a single cooperative worker so the
// result is deterministic. A message takes effect at the first block that
// starts at or after its frame.
func Render(events []Event, frames int, opts ...Option) ([]float32, error) {
	opts = append(slices.Clone(opts), WithWorkers(1))
	s, err := New(opts...)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	events = slices.Clone(events)
	slices.SortStableFunc(events, func(a, b Event) int { return cmp.Compare(a.Frame, b.Frame) })

	out := make([]float32, frames*2)
	block := s.BlockSize()
	next := 0
	for start := 0; start < frames; start += block {
		for next < len(events) && events[next].Frame <= start {
			if err := s.HandleMessage(events[next].Message); err != nil {
				return nil, err
			}
			next++
		}
		end := min(start+block, frames)
		s.Process(out[start*2 : end*2])
	}
	return out, nil
}

// RenderSeconds is Render with the length given in seconds at the
// configured sample rate.
func RenderSeconds(events []Event, seconds float64, opts ...Option) ([]float32, error) {
	p := intpool.DefaultParams()
	for _, opt := range opts {
		opt(&p)
	}
	return Render(events, int(float64(p.Voice.SampleRate)*seconds), opts...)
}
