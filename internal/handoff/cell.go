package handoff

import "github.com/cbegin/drawbar-go/internal/block"

// Cell is a single-goroutine handoff. A Send stores a block; a Receive takes
// it and leaves the cell empty. Receiving from an empty cell is a
// programmer error and panics; prime the cell with Send before the first
// Receive.
type Cell struct {
	slot   block.Block
	full   bool
	closed bool
}

func NewCell(size int) *Cell {
	return &Cell{slot: block.New(size)}
}

func (c *Cell) Send(src block.Block) error {
	if c.closed {
		return ErrClosed
	}
	c.slot.CopyFrom(src)
	c.full = true
	return nil
}

func (c *Cell) Receive(dst block.Block) error {
	if !c.full {
		if c.closed {
			return ErrDisconnected
		}
		panic("handoff: receive from empty cell")
	}
	dst.CopyFrom(c.slot)
	c.slot.Silence()
	c.full = false
	return nil
}

// Full reports whether a block is waiting in the cell.
func (c *Cell) Full() bool { return c.full }

func (c *Cell) Close() { c.closed = true }
