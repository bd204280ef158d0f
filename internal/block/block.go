// Package block defines the fixed-length sample buffer moved between
// pipeline stages.
package block

// Block is a run of consecutive mono samples. Its length is chosen once at
// construction and never changes; every stage that receives a Block writes
// into it in place.
type Block []float32

// New returns a silent block of size samples.
func New(size int) Block {
	return make(Block, size)
}

// Silence zeroes b.
func (b Block) Silence() {
	clear(b)
}

// CopyFrom copies src into b. Both blocks must have the same length.
func (b Block) CopyFrom(src Block) {
	if len(src) != len(b) {
		panic("block: length mismatch")
	}
	copy(b, src)
}

// Peak returns the largest absolute sample value in b.
func (b Block) Peak() float32 {
	var peak float32
	for _, s := range b {
		if s < 0 {
			s = -s
		}
		if s > peak {
			peak = s
		}
	}
	return peak
}

// IsSilent reports whether every sample in b is exactly zero.
func (b Block) IsSilent() bool {
	for _, s := range b {
		if s != 0 {
			return false
		}
	}
	return true
}
