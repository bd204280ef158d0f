// Package mixer sums weighted audio sources.
package mixer

import (
	"fmt"

	"github.com/cbegin/drawbar-go/internal/block"
)

// Mixer holds one gain per input. Output is the plain weighted sum of the
// inputs; nothing is normalized, so headroom is up to the caller.
type Mixer struct {
	levels []float32
}

func New(levels ...float32) *Mixer {
	m := &Mixer{}
	m.Init(levels...)
	return m
}

// Init replaces the level table with a copy of levels.
func (m *Mixer) Init(levels ...float32) {
	m.levels = append(m.levels[:0], levels...)
}

func (m *Mixer) Len() int { return len(m.levels) }

// SetLevel replaces the gain for input i. An out of range index is a
// programmer error and panics.
func (m *Mixer) SetLevel(i int, gain float32) {
	if i < 0 || i >= len(m.levels) {
		panic(fmt.Sprintf("mixer: input %d out of range [0,%d)", i, len(m.levels)))
	}
	m.levels[i] = gain
}

func (m *Mixer) Level(i int) float32 { return m.levels[i] }

// Levels returns a copy of the level table.
func (m *Mixer) Levels() []float32 {
	return append([]float32(nil), m.levels...)
}

// Mix returns the weighted sum of one sample per input, summed in input
// order. Inputs beyond the level table are ignored.
func (m *Mixer) Mix(inputs []float32) float32 {
	var sum float32
	for i, in := range inputs {
		if i >= len(m.levels) {
			break
		}
		sum += in * m.levels[i]
	}
	return sum
}

// MixBlocks writes the weighted sum of srcs into dst. srcs are summed in
// index order so output is reproducible.
func (m *Mixer) MixBlocks(dst block.Block, srcs []block.Block) {
	dst.Silence()
	for i, src := range srcs {
		if i >= len(m.levels) {
			break
		}
		level := m.levels[i]
		if level == 0 {
			continue
		}
		for j := range dst {
			dst[j] += src[j] * level
		}
	}
}
