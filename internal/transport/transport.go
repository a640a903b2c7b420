// ABOUTME: Byte-link transport abstraction
// ABOUTME: Serial or WebSocket pipes feeding the frame parser
package transport

import (
	"io"
	"time"
)

// PollInterval bounds how long a link Read may block, so receive loops
// observe shutdown within one interval.
const PollInterval = 10 * time.Millisecond

// Link is the byte pipe carrying protocol frames. Read may return
// (0, nil) when no bytes arrived within the poll interval; callers treat
// that as "try again", not end of stream.
type Link = io.ReadWriteCloser
