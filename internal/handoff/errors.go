package handoff

import "errors"

var (
	// ErrClosed is returned once the consumer side has gone away.
	ErrClosed = errors.New("handoff: consumer closed")
	// ErrDisconnected is returned once the producer side has gone away.
	ErrDisconnected = errors.New("handoff: producer disconnected")
)
