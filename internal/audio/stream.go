package audio

import (
	"encoding/binary"
	"math"
	"sync"

	"github.com/cbegin/drawbar-go/internal/block"
)

// Channels is the interleaved channel count of every output stream.
const Channels = 2

// SampleSource fills dst with interleaved stereo float32 samples.
type SampleSource interface {
	Process(dst []float32)
}

// BlockRenderer produces mono audio one fixed-size block at a time.
type BlockRenderer interface {
	Render(dst block.Block)
	BlockSize() int
}

// Strider adapts a BlockRenderer to callers that ask for arbitrary frame
// counts. It renders a new block whenever the previous one is used up and
// writes each mono sample to every channel of the frame.
type Strider struct {
	renderer BlockRenderer
	channels int
	buf      block.Block
	pos      int
}

func NewStrider(r BlockRenderer, channels int) *Strider {
	if channels < 1 {
		channels = 1
	}
	buf := block.New(r.BlockSize())
	return &Strider{renderer: r, channels: channels, buf: buf, pos: len(buf)}
}

// Process fills dst with whole frames. A trailing partial frame is zeroed.
func (s *Strider) Process(dst []float32) {
	frames := len(dst) / s.channels
	for f := 0; f < frames; f++ {
		if s.pos == len(s.buf) {
			s.renderer.Render(s.buf)
			s.pos = 0
		}
		v := s.buf[s.pos]
		s.pos++
		frame := dst[f*s.channels : (f+1)*s.channels]
		for c := range frame {
			frame[c] = v
		}
	}
	clear(dst[frames*s.channels:])
}

// StreamReader encodes a SampleSource as a float32 little-endian stereo
// byte stream.
type StreamReader struct {
	mu     sync.Mutex
	source SampleSource
	buf    []float32
}

func NewStreamReader(source SampleSource) *StreamReader {
	return &StreamReader{source: source}
}

func (r *StreamReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	const frameBytes = Channels * 4
	frames := len(p) / frameBytes
	if frames == 0 {
		return 0, nil
	}
	need := frames * Channels
	if cap(r.buf) < need {
		r.buf = make([]float32, need)
	}
	r.buf = r.buf[:need]
	r.source.Process(r.buf)
	for i, s := range r.buf {
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(s))
	}
	return frames * frameBytes, nil
}

func (r *StreamReader) Close() error { return nil }
