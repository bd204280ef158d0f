package handoff

import (
	"sync"

	"github.com/cbegin/drawbar-go/internal/block"
)

// Rendezvous is a capacity-1 cross-goroutine handoff for one producer and
// one consumer.
//
// Two slots circulate between a free list and the data channel. At most one
// slot sits in the channel and the consumer returns its slot to the free list
// before Receive returns, so a Send never waits on the free list for longer
// than one consumer copy.
type Rendezvous struct {
	data     chan block.Block
	free     chan block.Block
	done     chan struct{}
	sendOnce sync.Once
	recvOnce sync.Once
}

func NewRendezvous(size int) *Rendezvous {
	r := &Rendezvous{
		data: make(chan block.Block, 1),
		free: make(chan block.Block, 2),
		done: make(chan struct{}),
	}
	r.free <- block.New(size)
	r.free <- block.New(size)
	return r
}

// Send blocks until the previously sent block has been received, or the
// consumer closes.
func (r *Rendezvous) Send(src block.Block) error {
	var slot block.Block
	select {
	case slot = <-r.free:
	case <-r.done:
		return ErrClosed
	}
	slot.CopyFrom(src)
	select {
	case r.data <- slot:
		return nil
	case <-r.done:
		return ErrClosed
	}
}

// Receive blocks until a block is available, the producer disconnects, or
// the consumer side is closed.
func (r *Rendezvous) Receive(dst block.Block) error {
	select {
	case slot, ok := <-r.data:
		if !ok {
			return ErrDisconnected
		}
		dst.CopyFrom(slot)
		r.free <- slot
		return nil
	case <-r.done:
		return ErrClosed
	}
}

// CloseSend marks the producer as gone. Pending and future receives drain
// the buffered block, then report ErrDisconnected. The producer must not
// call Send afterwards.
func (r *Rendezvous) CloseSend() {
	r.sendOnce.Do(func() { close(r.data) })
}

// CloseReceive marks the consumer as gone and unblocks a pending Send.
func (r *Rendezvous) CloseReceive() {
	r.recvOnce.Do(func() { close(r.done) })
}

type rendezvousSender struct{ *Rendezvous }

func (s rendezvousSender) Close() { s.CloseSend() }

type rendezvousReceiver struct{ *Rendezvous }

func (r rendezvousReceiver) Close() { r.CloseReceive() }
