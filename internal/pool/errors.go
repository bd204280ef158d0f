package pool

import "errors"

var (
	ErrInvalidConfig = errors.New("pool: invalid config")
	ErrClosed        = errors.New("pool: closed")
	// ErrQueueFull reports that a worker's queue had no room and the
	// message was dropped.
	ErrQueueFull = errors.New("pool: worker queue full")
)
