package audio

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/cbegin/drawbar-go/internal/block"
)

// ramp renders consecutive integers so tests can see block boundaries.
type ramp struct {
	size  int
	next  float32
	calls int
}

func (r *ramp) BlockSize() int { return r.size }

func (r *ramp) Render(dst block.Block) {
	r.calls++
	for i := range dst {
		dst[i] = r.next
		r.next++
	}
}

func TestStriderCrossesBlockBoundaries(t *testing.T) {
	r := &ramp{size: 4}
	s := NewStrider(r, 1)
	var got []float32
	for _, n := range []int{3, 1, 6, 2} {
		buf := make([]float32, n)
		s.Process(buf)
		got = append(got, buf...)
	}
	for i, v := range got {
		if v != float32(i) {
			t.Fatalf("sample %d = %v, want %v", i, v, i)
		}
	}
	if r.calls != 3 {
		t.Fatalf("rendered %d blocks, want 3", r.calls)
	}
}

func TestStriderDuplicatesMono(t *testing.T) {
	s := NewStrider(&ramp{size: 2}, 2)
	buf := make([]float32, 7)
	buf[6] = 9
	s.Process(buf)
	want := []float32{0, 0, 1, 1, 2, 2, 0}
	for i := range want {
		if buf[i] != want[i] {
			t.Fatalf("buf = %v, want %v", buf, want)
		}
	}
}

func TestStreamReaderEncodesFloat32LE(t *testing.T) {
	r := NewStreamReader(NewStrider(&ramp{size: 16}, Channels))
	p := make([]byte, 8*3+5)
	n, err := r.Read(p)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if n != 24 {
		t.Fatalf("read %d bytes, want 24 whole frames", n)
	}
	for i := 0; i < 6; i++ {
		v := math.Float32frombits(binary.LittleEndian.Uint32(p[i*4:]))
		if want := float32(i / 2); v != want {
			t.Fatalf("sample %d = %v, want %v", i, v, want)
		}
	}
	if n, _ := r.Read(make([]byte, 7)); n != 0 {
		t.Fatalf("short read returned %d bytes, want 0", n)
	}
}

func TestParseBackend(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want Backend
		ok   bool
	}{
		{"ebiten", BackendEbiten, true},
		{" OTO ", BackendOto, true},
		{"alsa", "", false},
	} {
		got, err := ParseBackend(tc.in)
		if (err == nil) != tc.ok || got != tc.want {
			t.Errorf("ParseBackend(%q) = %q, %v", tc.in, got, err)
		}
	}
}
