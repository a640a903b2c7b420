// ABOUTME: In-memory duplex link for loopback wiring and tests
// ABOUTME: Two Links whose writes appear on the peer's reads
package transport

import (
	"io"
	"sync"
	"time"
)

type pipeLink struct {
	out  chan []byte
	in   chan []byte
	rest []byte

	closeMu sync.Mutex
	closed  chan struct{}
	peer    *pipeLink
}

// Pipe returns two connected Links. Bytes written to one side are read
// from the other. Reads honor the PollInterval contract and report
// (0, nil) when nothing is pending. Closing either side unblocks both.
func Pipe() (Link, Link) {
	ab := make(chan []byte, 64)
	ba := make(chan []byte, 64)
	a := &pipeLink{out: ab, in: ba, closed: make(chan struct{})}
	b := &pipeLink{out: ba, in: ab, closed: make(chan struct{})}
	a.peer = b
	b.peer = a
	return a, b
}

func (p *pipeLink) Read(buf []byte) (int, error) {
	if len(p.rest) == 0 {
		select {
		case data := <-p.in:
			p.rest = data
		case <-p.closed:
			return 0, io.EOF
		case <-p.peer.closed:
			// Drain what the peer wrote before it closed.
			select {
			case data := <-p.in:
				p.rest = data
			default:
				return 0, io.EOF
			}
		case <-time.After(PollInterval):
			return 0, nil
		}
	}
	n := copy(buf, p.rest)
	p.rest = p.rest[n:]
	return n, nil
}

func (p *pipeLink) Write(buf []byte) (int, error) {
	data := make([]byte, len(buf))
	copy(data, buf)
	select {
	case p.out <- data:
		return len(buf), nil
	case <-p.closed:
		return 0, io.ErrClosedPipe
	case <-p.peer.closed:
		return 0, io.ErrClosedPipe
	}
}

func (p *pipeLink) Close() error {
	p.closeMu.Lock()
	defer p.closeMu.Unlock()
	select {
	case <-p.closed:
	default:
		close(p.closed)
	}
	return nil
}
