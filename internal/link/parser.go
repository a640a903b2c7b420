// ABOUTME: Byte-stream frame parser state machine
// ABOUTME: Reassembles frames from arbitrarily chunked link reads
package link

import "log"

type parseState int

const (
	waitSync0 parseState = iota
	waitSync1
	readCmd
	readLenLo
	readLenHi
	readData
	readChecksum
)

// Parser reassembles frames from a byte stream. Frames failing the
// checksum or declaring an oversized length are dropped without reply;
// the host detects the missing ack through its own timeout.
type Parser struct {
	state   parseState
	cmd     Command
	length  int
	idx     int
	sum     byte
	payload []byte
}

// NewParser creates a frame parser
func NewParser() *Parser {
	return &Parser{payload: make([]byte, MaxPayload)}
}

// Feed consumes a chunk of link bytes, invoking handle once per complete,
// checksum-valid frame. The payload slice is only valid during the call;
// handlers that keep the bytes must copy them.
func (p *Parser) Feed(data []byte, handle func(cmd Command, payload []byte)) {
	for _, b := range data {
		switch p.state {
		case waitSync0:
			if b == SyncByte0 {
				p.state = waitSync1
			}

		case waitSync1:
			if b == SyncByte1 {
				p.state = readCmd
			} else {
				p.state = waitSync0
			}

		case readCmd:
			p.cmd = Command(b)
			p.sum = b
			p.state = readLenLo

		case readLenLo:
			p.length = int(b)
			p.sum ^= b
			p.state = readLenHi

		case readLenHi:
			p.length |= int(b) << 8
			p.sum ^= b
			p.idx = 0
			switch {
			case p.length == 0:
				p.state = readChecksum
			case p.length <= MaxPayload:
				p.state = readData
			default:
				log.Printf("link: dropping frame with invalid length %d", p.length)
				p.state = waitSync0
			}

		case readData:
			p.payload[p.idx] = b
			p.idx++
			p.sum ^= b
			if p.idx >= p.length {
				p.state = readChecksum
			}

		case readChecksum:
			if b == p.sum {
				handle(p.cmd, p.payload[:p.length])
			} else {
				log.Printf("link: checksum mismatch on %s frame (expected 0x%02X, got 0x%02X)",
					p.cmd, p.sum, b)
			}
			p.state = waitSync0
		}
	}
}
