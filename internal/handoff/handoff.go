// Package handoff moves Audio Blocks from one pipeline stage to the next.
//
// Two implementations share the Sender and Receiver interfaces. A Cell is a
// single slot used when producer and consumer run on the same goroutine. A
// Rendezvous is a capacity-1 channel used across goroutines: Send blocks
// while the previous block is still unconsumed, which paces the producer to
// the consumer's rate.
//
// Blocks are copied into and out of the handoff, so the caller keeps
// ownership of the block it passed in and no block is ever shared between
// the two sides.
package handoff

import "github.com/cbegin/drawbar-go/internal/block"

// Mode selects the handoff implementation.
type Mode int

const (
	Cooperative Mode = iota
	Threaded
)

func (m Mode) String() string {
	switch m {
	case Cooperative:
		return "cooperative"
	case Threaded:
		return "threaded"
	default:
		return "unknown"
	}
}

// Sender is the producer end of a handoff.
type Sender interface {
	// Send hands a copy of src to the consumer. It returns ErrClosed once the
	// consumer has gone away.
	Send(src block.Block) error
	// Close marks the producer as gone.
	Close()
}

// Receiver is the consumer end of a handoff.
type Receiver interface {
	// Receive copies the next block into dst. It returns ErrDisconnected once
	// the producer has gone away and nothing is left to read.
	Receive(dst block.Block) error
	// Close marks the consumer as gone.
	Close()
}

// New returns both ends of a handoff carrying blocks of size samples.
func New(mode Mode, size int) (Sender, Receiver) {
	if mode == Threaded {
		r := NewRendezvous(size)
		return rendezvousSender{r}, rendezvousReceiver{r}
	}
	c := NewCell(size)
	return c, c
}
