package voice

import "errors"

var ErrInvalidParams = errors.New("voice: invalid params")
